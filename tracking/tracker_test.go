package tracking

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"govdata-backend/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.CallLogEntry{},
		&models.OfflineSnapshot{},
		&models.RequestCounterEntry{},
		&models.RequestSummary{},
	))
	return db
}

func uintPtr(v uint) *uint { return &v }

func countEntries(t *testing.T, db *gorm.DB) int64 {
	var count int64
	require.NoError(t, db.Model(&models.CallLogEntry{}).Count(&count).Error)
	return count
}

func TestCompleteWritesOneEntry(t *testing.T) {
	db := setupTestDB(t)
	tracker := NewTracker(db, zap.NewNop())

	call := tracker.Begin(Identity{TenantID: uintPtr(7), UserID: uintPtr(42)},
		"commercial-registration", "/info", "GET")
	call.Complete(200, json.RawMessage(`{"ok":true}`), json.RawMessage(`{"cr_id":"1"}`))
	call.Finish() // deferred in real use; must be a no-op here

	assert.EqualValues(t, 1, countEntries(t, db))

	var entry models.CallLogEntry
	require.NoError(t, db.First(&entry).Error)
	assert.Equal(t, "commercial-registration", entry.ServiceSlug)
	assert.Equal(t, 200, entry.StatusCode)
	assert.Equal(t, uint(7), *entry.TenantId)
	assert.False(t, entry.Cached)
	assert.False(t, entry.FetchedAt.IsZero())
}

func TestCompleteCachedMarksEntry(t *testing.T) {
	db := setupTestDB(t)
	tracker := NewTracker(db, zap.NewNop())

	call := tracker.Begin(Identity{UserID: uintPtr(42)}, "deeds", "/deed", "GET")
	call.CompleteCached(200, json.RawMessage(`{}`), nil)

	var entry models.CallLogEntry
	require.NoError(t, db.First(&entry).Error)
	assert.True(t, entry.Cached)
	assert.EqualValues(t, 0, entry.DurationMs)
}

func TestCompleteErrorSynthesizedStatus(t *testing.T) {
	db := setupTestDB(t)
	tracker := NewTracker(db, zap.NewNop())

	call := tracker.Begin(Identity{}, "deeds", "/deed", "GET")
	call.CompleteError(504, errors.New("upstream timed out"), nil)

	var entry models.CallLogEntry
	require.NoError(t, db.First(&entry).Error)
	assert.Equal(t, 504, entry.StatusCode)
	assert.Contains(t, string(entry.ResponseBody), "upstream timed out")
}

func TestFinishCoversAbandonedCall(t *testing.T) {
	db := setupTestDB(t)
	tracker := NewTracker(db, zap.NewNop())

	func() {
		call := tracker.Begin(Identity{}, "deeds", "/deed", "GET")
		defer call.Finish()
		// Simulated panic path: Complete never runs.
		defer func() { _ = recover() }()
		panic("boom")
	}()

	assert.EqualValues(t, 1, countEntries(t, db))

	var entry models.CallLogEntry
	require.NoError(t, db.First(&entry).Error)
	assert.Equal(t, 500, entry.StatusCode)
}

func TestExactlyOneEntryPerAttempt(t *testing.T) {
	db := setupTestDB(t)
	tracker := NewTracker(db, zap.NewNop())

	// Mixed outcomes: success, cache hit, upstream failure, transport error,
	// abandoned call.
	c1 := tracker.Begin(Identity{}, "s", "/e", "GET")
	c1.Complete(200, json.RawMessage(`{}`), nil)
	c1.Finish()

	c2 := tracker.Begin(Identity{}, "s", "/e", "GET")
	c2.CompleteCached(200, json.RawMessage(`{}`), nil)
	c2.Finish()

	c3 := tracker.Begin(Identity{}, "s", "/e", "GET")
	c3.Complete(502, json.RawMessage(`{"error":"bad gateway"}`), nil)
	c3.Finish()

	c4 := tracker.Begin(Identity{}, "s", "/e", "GET")
	c4.CompleteError(504, errors.New("timeout"), nil)
	c4.Finish()

	c5 := tracker.Begin(Identity{}, "s", "/e", "GET")
	c5.Finish()

	assert.EqualValues(t, 5, countEntries(t, db))
}

func TestDurationMeasured(t *testing.T) {
	db := setupTestDB(t)
	tracker := NewTracker(db, zap.NewNop())

	start := time.Now()
	clock := start
	tracker.now = func() time.Time { return clock }

	call := tracker.Begin(Identity{}, "s", "/e", "GET")
	clock = start.Add(250 * time.Millisecond)
	call.Complete(200, json.RawMessage(`{}`), nil)

	var entry models.CallLogEntry
	require.NoError(t, db.First(&entry).Error)
	assert.EqualValues(t, 250, entry.DurationMs)
}

func TestOfflinePersist(t *testing.T) {
	db := setupTestDB(t)
	tracker := NewTracker(db, zap.NewNop())

	tracker.OfflinePersist(3, Identity{TenantID: uintPtr(7), UserID: uintPtr(42)},
		json.RawMessage(`{"cr_id":"1"}`), json.RawMessage(`{"status":"active"}`))
	tracker.OfflinePersist(3, Identity{TenantID: uintPtr(7), UserID: uintPtr(42)},
		json.RawMessage(`{"cr_id":"1"}`), json.RawMessage(`{"status":"active"}`))

	// One row per call, not per fingerprint.
	var count int64
	require.NoError(t, db.Model(&models.OfflineSnapshot{}).Count(&count).Error)
	assert.EqualValues(t, 2, count)
}
