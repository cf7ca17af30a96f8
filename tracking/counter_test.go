package tracking

import (
	"encoding/json"
	"testing"

	"govdata-backend/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestRecorder(t *testing.T) (*Recorder, *gorm.DB) {
	db := setupTestDB(t)
	return NewRecorder(db, zap.NewNop(), DefaultCounterConfig()), db
}

func TestObserveClassification(t *testing.T) {
	recorder, db := newTestRecorder(t)

	recorder.Observe(Sample{Path: "/api/data/deeds", Method: "POST", ResponseStatus: 200})
	recorder.Observe(Sample{Path: "/api/analytics/stats", Method: "GET", ResponseStatus: 200})
	recorder.Observe(Sample{Path: "/api/data/deeds", Method: "POST", ResponseStatus: 200, CacheHit: true})

	var entries []models.RequestCounterEntry
	require.NoError(t, db.Order("id").Find(&entries).Error)
	require.Len(t, entries, 3)

	assert.Equal(t, models.RequestTypeExternal, entries[0].RequestType)
	assert.Equal(t, models.RequestTypeInternal, entries[1].RequestType)
	assert.Equal(t, models.RequestTypeCached, entries[2].RequestType)
	assert.True(t, entries[2].IsCached)
}

func TestObserveSuccessDerivedFromStatus(t *testing.T) {
	recorder, db := newTestRecorder(t)

	for _, status := range []int{200, 201, 302, 399, 400, 404, 500} {
		recorder.Observe(Sample{Path: "/api/x", Method: "GET", ResponseStatus: status})
	}

	var entries []models.RequestCounterEntry
	require.NoError(t, db.Order("id").Find(&entries).Error)
	require.Len(t, entries, 7)

	for i, expected := range []bool{true, true, true, true, false, false, false} {
		assert.Equal(t, expected, entries[i].IsSuccessful, "status %d", entries[i].ResponseStatus)
	}
}

func TestObserveExcludedPaths(t *testing.T) {
	recorder, db := newTestRecorder(t)

	for _, path := range []string{"/health", "/docs", "/docs/index.html", "/openapi.json", "/static/app.js", "/favicon.ico"} {
		recorder.Observe(Sample{Path: path, Method: "GET", ResponseStatus: 200})
	}

	var count int64
	require.NoError(t, db.Model(&models.RequestCounterEntry{}).Count(&count).Error)
	assert.EqualValues(t, 0, count)
}

func TestObserveRedactsSensitiveParams(t *testing.T) {
	recorder, db := newTestRecorder(t)

	recorder.Observe(Sample{
		Path:           "/api/data/deeds",
		Method:         "POST",
		ResponseStatus: 200,
		Params: map[string]any{
			"cr_id":    "1010123456",
			"Password": "hunter2",
			"nested": map[string]any{
				"api_key": "abc123",
				"deep": map[string]any{
					"AUTHORIZATION": "Bearer xyz",
				},
			},
			"list": []any{
				map[string]any{"credit_card": "4111"},
			},
		},
	})

	var entry models.RequestCounterEntry
	require.NoError(t, db.First(&entry).Error)

	var params map[string]any
	require.NoError(t, json.Unmarshal(entry.RequestParams, &params))

	assert.Equal(t, "1010123456", params["cr_id"])
	assert.Equal(t, RedactionMarker, params["Password"])

	nested := params["nested"].(map[string]any)
	assert.Equal(t, RedactionMarker, nested["api_key"])
	deep := nested["deep"].(map[string]any)
	assert.Equal(t, RedactionMarker, deep["AUTHORIZATION"])

	list := params["list"].([]any)
	item := list[0].(map[string]any)
	assert.Equal(t, RedactionMarker, item["credit_card"])

	assert.NotContains(t, string(entry.RequestParams), "hunter2")
	assert.NotContains(t, string(entry.RequestParams), "abc123")
	assert.NotContains(t, string(entry.RequestParams), "Bearer xyz")
	assert.NotContains(t, string(entry.RequestParams), "4111")
}

func TestSanitizeDoesNotMutateInput(t *testing.T) {
	params := map[string]any{"password": "secret", "ok": "v"}
	SanitizeParams(params)
	assert.Equal(t, "secret", params["password"])
}

func TestExtractServiceSlug(t *testing.T) {
	assert.Equal(t, "deeds", ExtractServiceSlug("/api/data/deeds"))
	assert.Equal(t, "commercial-registration", ExtractServiceSlug("/api/data/commercial-registration/info"))
	assert.Equal(t, "", ExtractServiceSlug("/api/analytics/stats"))
	assert.Equal(t, "", ExtractServiceSlug("/"))
}

func TestObserveRateLimited(t *testing.T) {
	recorder, db := newTestRecorder(t)

	recorder.Observe(Sample{Path: "/api/data/deeds", Method: "POST", ResponseStatus: 429, RateLimited: true})

	var entry models.RequestCounterEntry
	require.NoError(t, db.First(&entry).Error)
	assert.True(t, entry.IsRateLimited)
	assert.False(t, entry.IsSuccessful)
}
