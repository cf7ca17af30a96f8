package tracking

import (
	"context"
	"encoding/json"
	"time"

	"govdata-backend/models"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// responseLogLimit caps the response body in human-readable log lines. The
// durable CallLogEntry always stores the full body.
const responseLogLimit = 512

// Identity carries the caller attribution for one tracked call. ManagementUserID
// and UserID are mutually exclusive in practice.
type Identity struct {
	TenantID         *uint
	UserID           *uint
	ManagementUserID *uint
}

// Tracker records every upstream call attempt exactly once. Writes are
// best-effort: a failed insert is logged and never surfaced to the caller,
// tracking must not break the data-serving path.
type Tracker struct {
	db  *gorm.DB
	log *zap.Logger
	now func() time.Time
}

func NewTracker(db *gorm.DB, log *zap.Logger) *Tracker {
	return &Tracker{db: db, log: log.Named("tracker"), now: time.Now}
}

// Call is the scoped handle for one attempt. Acquire with Begin, defer Finish,
// and call one of the Complete variants once the outcome is known. Whichever
// exit path the caller takes, exactly one CallLogEntry is written.
type Call struct {
	tracker     *Tracker
	identity    Identity
	serviceSlug string
	endpoint    string
	method      string
	startedAt   time.Time
	done        bool
}

// Begin starts timing one upstream call attempt.
func (t *Tracker) Begin(id Identity, serviceSlug, endpoint, method string) *Call {
	return &Call{
		tracker:     t,
		identity:    id,
		serviceSlug: serviceSlug,
		endpoint:    endpoint,
		method:      method,
		startedAt:   t.now(),
	}
}

// Complete writes the audit entry for this attempt. The first completion wins;
// later calls (including the deferred Finish) are no-ops.
func (c *Call) Complete(statusCode int, responseBody, requestData json.RawMessage) {
	c.complete(statusCode, responseBody, requestData, false, nil)
}

// CompleteCached records a cache-served attempt: zero duration, marked so
// analytics can tell hits from live calls.
func (c *Call) CompleteCached(statusCode int, responseBody, requestData json.RawMessage) {
	c.complete(statusCode, responseBody, requestData, true, nil)
}

// CompleteError records a failed attempt under a synthesized status (the
// gateway maps timeouts to 504, HTTP errors to their own status, anything else
// to 500) with an error payload. The original error propagates to the caller
// unchanged; tracking never swallows it.
func (c *Call) CompleteError(statusCode int, cause error, requestData json.RawMessage) {
	body, _ := json.Marshal(map[string]string{"error": cause.Error()})
	c.complete(statusCode, body, requestData, false, cause)
}

// Finish guarantees completion on abandoned exit paths (panic, early return
// before the outcome was recorded). Use as `defer call.Finish()`.
func (c *Call) Finish() {
	if c.done {
		return
	}
	body, _ := json.Marshal(map[string]string{"error": "call abandoned before completion"})
	c.complete(500, body, nil, false, nil)
}

// OfflinePersist writes the long-term snapshot for a successful call. Distinct
// lifecycle from the TTL cache: one row per call, never expires.
func (t *Tracker) OfflinePersist(serviceID uint, id Identity, params, payload json.RawMessage) {
	snap := models.OfflineSnapshot{
		TenantId:      id.TenantID,
		UserId:        id.UserID,
		ServiceId:     serviceID,
		RequestParams: datatypes.JSON(params),
		Payload:       datatypes.JSON(payload),
		FetchedAt:     t.now().UTC(),
	}
	// Detached context: a cancelled request must not lose the snapshot.
	if err := t.db.WithContext(context.Background()).Create(&snap).Error; err != nil {
		t.log.Warn("offline snapshot write failed",
			zap.Uint("service_id", serviceID), zap.Error(err))
	}
}

func (c *Call) complete(statusCode int, responseBody, requestData json.RawMessage, cached bool, cause error) {
	if c.done {
		return
	}
	c.done = true

	duration := c.tracker.now().Sub(c.startedAt)
	if cached {
		duration = 0
	}

	entry := models.CallLogEntry{
		TenantId:         c.identity.TenantID,
		UserId:           c.identity.UserID,
		ManagementUserId: c.identity.ManagementUserID,
		ServiceSlug:      c.serviceSlug,
		Endpoint:         c.endpoint,
		HTTPMethod:       c.method,
		StatusCode:       statusCode,
		RequestData:      datatypes.JSON(requestData),
		ResponseBody:     datatypes.JSON(responseBody),
		DurationMs:       duration.Milliseconds(),
		Cached:           cached,
		FetchedAt:        c.tracker.now().UTC(),
	}

	// Detached context so an in-flight call cancelled by the client still
	// produces its entry.
	if err := c.tracker.db.WithContext(context.Background()).Create(&entry).Error; err != nil {
		c.tracker.log.Warn("call log write failed",
			zap.String("service", c.serviceSlug),
			zap.Int("status", statusCode),
			zap.Error(err))
		return
	}

	c.tracker.log.Debug("upstream call tracked",
		zap.String("service", c.serviceSlug),
		zap.String("endpoint", c.endpoint),
		zap.Int("status", statusCode),
		zap.Int64("duration_ms", entry.DurationMs),
		zap.Bool("cached", cached),
		zap.ByteString("response", truncate(responseBody, responseLogLimit)))
	if cause != nil {
		c.tracker.log.Warn("upstream call failed",
			zap.String("service", c.serviceSlug), zap.Error(cause))
	}
}

func truncate(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}
