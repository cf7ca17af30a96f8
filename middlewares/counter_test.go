package middlewares

import (
	"net/http/httptest"
	"strings"
	"testing"

	"govdata-backend/gateway"
	"govdata-backend/models"
	"govdata-backend/tracking"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupCounterApp(t *testing.T) (*fiber.App, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&models.RequestCounterEntry{}))

	recorder := tracking.NewRecorder(db, zap.NewNop(), tracking.DefaultCounterConfig())
	app := fiber.New()
	app.Use(RequestCounter(recorder))
	return app, db
}

func TestRequestCounterRecordsHandledRequest(t *testing.T) {
	app, db := setupCounterApp(t)

	app.Post("/api/data/deeds", func(c *fiber.Ctx) error {
		c.Locals(CallerKey, gateway.TenantCaller(7, 42))
		c.Locals(CacheHitKey, false)
		return c.JSON(fiber.Map{"ok": true})
	})

	req := httptest.NewRequest("POST", "/api/data/deeds?deed_number=998",
		strings.NewReader(`{"password":"secret"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	var entry models.RequestCounterEntry
	require.NoError(t, db.First(&entry).Error)
	assert.Equal(t, models.RequestTypeExternal, entry.RequestType)
	assert.Equal(t, "/api/data/deeds", entry.Endpoint)
	assert.Equal(t, "POST", entry.HTTPMethod)
	assert.Equal(t, uint(7), *entry.TenantId)
	assert.Equal(t, uint(42), *entry.UserId)
	assert.Equal(t, "deeds", entry.ServiceSlug)
	assert.True(t, entry.IsSuccessful)
	assert.Contains(t, string(entry.RequestParams), "deed_number")
	assert.Contains(t, string(entry.RequestParams), tracking.RedactionMarker)
	assert.NotContains(t, string(entry.RequestParams), "secret")
}

func TestRequestCounterRecordsHandlerError(t *testing.T) {
	app, db := setupCounterApp(t)

	app.Get("/api/data/deeds", func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusNotFound, "unknown deed")
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/api/data/deeds", nil))
	require.NoError(t, err)
	assert.Equal(t, 404, resp.StatusCode)

	var entry models.RequestCounterEntry
	require.NoError(t, db.First(&entry).Error)
	assert.Equal(t, 404, entry.ResponseStatus)
	assert.False(t, entry.IsSuccessful)
	assert.Equal(t, "unknown deed", entry.ErrorMessage)
}

func TestRequestCounterSkipsExcludedPaths(t *testing.T) {
	app, db := setupCounterApp(t)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	var count int64
	require.NoError(t, db.Model(&models.RequestCounterEntry{}).Count(&count).Error)
	assert.EqualValues(t, 0, count)
}

func TestRequestCounterMarksCacheHit(t *testing.T) {
	app, db := setupCounterApp(t)

	app.Post("/api/data/deeds", func(c *fiber.Ctx) error {
		c.Locals(CacheHitKey, true)
		return c.JSON(fiber.Map{"cached": true})
	})

	_, err := app.Test(httptest.NewRequest("POST", "/api/data/deeds", nil))
	require.NoError(t, err)

	var entry models.RequestCounterEntry
	require.NoError(t, db.First(&entry).Error)
	assert.Equal(t, models.RequestTypeCached, entry.RequestType)
	assert.True(t, entry.IsCached)
}

func TestRequestCounterMarksRateLimited(t *testing.T) {
	app, db := setupCounterApp(t)

	app.Get("/api/data/deeds", func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusTooManyRequests, "rate limit exceeded")
	})

	_, err := app.Test(httptest.NewRequest("GET", "/api/data/deeds", nil))
	require.NoError(t, err)

	var entry models.RequestCounterEntry
	require.NoError(t, db.First(&entry).Error)
	assert.True(t, entry.IsRateLimited)
}

func TestRequestCounterObservesLimiterRejections(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.RequestCounterEntry{}))

	recorder := tracking.NewRecorder(db, zap.NewNop(), tracking.DefaultCounterConfig())

	// Same registration order as the server bootstrap: counter first, then
	// the limiter, so limiter rejections still produce counter rows.
	app := fiber.New()
	app.Use(RequestCounter(recorder))
	app.Use(limiter.New(limiter.Config{Max: 1}))
	app.Get("/api/data/deeds", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"ok": true})
	})

	first, err := app.Test(httptest.NewRequest("GET", "/api/data/deeds", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, first.StatusCode)

	second, err := app.Test(httptest.NewRequest("GET", "/api/data/deeds", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusTooManyRequests, second.StatusCode)

	var entries []models.RequestCounterEntry
	require.NoError(t, db.Order("id").Find(&entries).Error)
	require.Len(t, entries, 2)
	assert.False(t, entries[0].IsRateLimited)
	assert.True(t, entries[1].IsRateLimited)
	assert.Equal(t, fiber.StatusTooManyRequests, entries[1].ResponseStatus)
}

func TestClaimsCallerMapping(t *testing.T) {
	tenant := uint(7)
	user := uint(42)
	mgmt := uint(3)

	c := &Claims{TenantID: &tenant, UserID: &user}
	caller, err := c.Caller()
	require.NoError(t, err)
	assert.False(t, caller.IsManagement())
	assert.Equal(t, uint(7), *caller.TenantRef())

	c = &Claims{ManagementUserID: &mgmt}
	caller, err = c.Caller()
	require.NoError(t, err)
	assert.True(t, caller.IsManagement())

	c = &Claims{}
	_, err = c.Caller()
	assert.Error(t, err)
}
