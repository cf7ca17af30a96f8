package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"govdata-backend/cache"
	"govdata-backend/models"
	"govdata-backend/tracking"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Result is what a fetch hands back. OK distinguishes a served payload from a
// structured upstream failure (non-200); transport failures never produce a
// Result, they return as errors.
type Result struct {
	Data         json.RawMessage `json:"data,omitempty"`
	Cached       bool            `json:"cached"`
	StatusCode   int             `json:"status_code"`
	ExpiresAt    *time.Time      `json:"expires_at,omitempty"`
	OK           bool            `json:"ok"`
	ErrorMessage string          `json:"error_message,omitempty"`
}

// Gateway orchestrates "serve external data, using cache when valid":
// check cache, resolve credentials, call upstream, store, and log, in the
// order and with the failure semantics the audit trail depends on.
type Gateway struct {
	db      *gorm.DB
	store   *cache.Store
	tracker *tracking.Tracker
	client  UpstreamClient
	creds   CredentialResolver
	log     *zap.Logger
}

func New(db *gorm.DB, store *cache.Store, tracker *tracking.Tracker, client UpstreamClient, creds CredentialResolver, log *zap.Logger) *Gateway {
	return &Gateway{
		db:      db,
		store:   store,
		tracker: tracker,
		client:  client,
		creds:   creds,
		log:     log.Named("gateway"),
	}
}

// Fetch serves one service call for one caller. forceRefresh skips the cache
// check outright. Exactly one CallLogEntry is written per attempt that reaches
// the tracked section (cache hits included); configuration errors fail fast
// before any attempt.
func (g *Gateway) Fetch(ctx context.Context, serviceSlug string, caller Caller, params map[string]any, forceRefresh bool) (*Result, error) {
	var service models.Service
	err := g.db.WithContext(ctx).
		Where("slug = ? AND active = ?", serviceSlug, true).
		First(&service).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnknownService
		}
		return nil, err
	}

	identity := tracking.Identity{
		TenantID:         caller.TenantRef(),
		UserID:           caller.UserRef(),
		ManagementUserID: caller.ManagementRef(),
	}
	requestData, _ := json.Marshal(params)

	// Unserializable params cannot be fingerprinted or forwarded; fail fast
	// before anything is tracked.
	cacheKey, err := cache.DeriveKey(service.Id, caller.TenantRef(), caller.CacheUserID(), params)
	if err != nil {
		return nil, err
	}

	if !forceRefresh {
		if row, err := g.store.Get(ctx, cacheKey); err == nil {
			// Cache hits still get a CallLogEntry so analytics stay complete.
			hit := g.tracker.Begin(identity, service.Slug, service.Endpoint, service.HTTPMethod)
			hit.CompleteCached(row.StatusCode, json.RawMessage(row.ResponsePayload), requestData)

			expires := row.ExpiresAt
			return &Result{
				Data:       json.RawMessage(row.ResponsePayload),
				Cached:     true,
				StatusCode: row.StatusCode,
				ExpiresAt:  &expires,
				OK:         true,
			}, nil
		} else if !errors.Is(err, cache.ErrNotFound) {
			g.log.Warn("cache lookup failed, falling through to live call",
				zap.String("service", service.Slug), zap.Error(err))
		}
	}

	apiKey, err := g.creds.Resolve(ctx, service.Id, caller)
	if err != nil {
		// Configuration failure: no external call attempted, nothing tracked.
		return nil, err
	}

	// Detached from the inbound request: a cancelled client must not abort the
	// in-flight upstream call or its log write.
	callCtx := context.WithoutCancel(ctx)

	call := g.tracker.Begin(identity, service.Slug, service.Endpoint, service.HTTPMethod)
	defer call.Finish()

	status, body, err := g.client.Call(callCtx, service.Endpoint, params, apiKey, service.HTTPMethod)
	if err != nil {
		call.CompleteError(statusForError(err), err, requestData)
		return nil, err
	}

	if status != 200 {
		call.Complete(status, body, requestData)
		return &Result{
			StatusCode:   status,
			OK:           false,
			ErrorMessage: upstreamMessage(body),
		}, nil
	}

	call.Complete(status, body, requestData)
	g.tracker.OfflinePersist(service.Id, identity, requestData, body)

	result := &Result{Data: body, Cached: false, StatusCode: status, OK: true}

	ttl := time.Duration(service.CacheTTLSeconds) * time.Second
	stored, err := g.store.Put(callCtx, cache.PutInput{
		ServiceID:  service.Id,
		TenantID:   caller.TenantRef(),
		UserID:     caller.CacheUserID(),
		Params:     params,
		Payload:    body,
		StatusCode: status,
		TTL:        ttl,
	})
	if err != nil {
		// Cache write failure never fails the fetch; the live response still
		// goes out.
		g.log.Warn("cache write failed",
			zap.String("service", service.Slug), zap.Error(err))
		return result, nil
	}
	result.ExpiresAt = &stored.ExpiresAt
	return result, nil
}

// statusForError synthesizes the status recorded for a transport failure:
// 504 for timeouts, the HTTP error's own status when one is carried, 500
// otherwise.
func statusForError(err error) int {
	var httpErr *UpstreamHTTPError
	switch {
	case errors.As(err, &httpErr):
		return httpErr.StatusCode
	case errors.Is(err, ErrUpstreamTimeout), errors.Is(err, context.DeadlineExceeded):
		return 504
	default:
		return 500
	}
}

// upstreamMessage pulls a human-readable message out of an upstream error
// body, falling back to the raw body.
func upstreamMessage(body json.RawMessage) string {
	var parsed struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil {
		if parsed.Message != "" {
			return parsed.Message
		}
		if parsed.Error != "" {
			return parsed.Error
		}
	}
	return string(body)
}
