package tracking

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"govdata-backend/models"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// RedactionMarker replaces the value of any sensitive request parameter before
// it is persisted.
const RedactionMarker = "[REDACTED]"

// sensitiveKeys is matched case-insensitively, as a substring, against every
// parameter key at every nesting depth.
var sensitiveKeys = []string{
	"password", "token", "secret", "api_key", "authorization",
	"credit_card", "ssn", "pin",
}

// CounterConfig controls request classification and exclusion.
type CounterConfig struct {
	// ExternalPrefixes marks paths proxied to the upstream API (classified
	// EXTERNAL, everything else INTERNAL).
	ExternalPrefixes []string
	// ExcludedPaths never produce a counter row.
	ExcludedPaths []string
}

func DefaultCounterConfig() CounterConfig {
	return CounterConfig{
		ExternalPrefixes: []string{"/api/data"},
		ExcludedPaths: []string{
			"/docs", "/openapi.json", "/health", "/static", "/favicon.ico",
		},
	}
}

// Sample is the request/response metadata handed to the recorder after the
// response has been computed.
type Sample struct {
	Path             string
	Method           string
	TenantID         *uint
	UserID           *uint
	ManagementUserID *uint
	ServiceID        *uint
	IPAddress        string
	UserAgent        string
	Params           map[string]any
	RequestSize      int
	ResponseStatus   int
	ResponseSize     int
	ElapsedMs        float64
	ErrorMessage     string
	CacheHit         bool
	RateLimited      bool
}

// Recorder writes one RequestCounterEntry per observed request. It sits off
// the response path: failures are logged and swallowed, never surfaced.
type Recorder struct {
	db  *gorm.DB
	log *zap.Logger
	cfg CounterConfig
}

func NewRecorder(db *gorm.DB, log *zap.Logger, cfg CounterConfig) *Recorder {
	if len(cfg.ExternalPrefixes) == 0 && len(cfg.ExcludedPaths) == 0 {
		cfg = DefaultCounterConfig()
	}
	return &Recorder{db: db, log: log.Named("counter"), cfg: cfg}
}

// Excluded reports whether the path is outside traffic accounting entirely.
func (r *Recorder) Excluded(path string) bool {
	for _, p := range r.cfg.ExcludedPaths {
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

// Observe records one request/response cycle. Exactly one row per call;
// write failures are logged, never propagated.
func (r *Recorder) Observe(s Sample) {
	if r.Excluded(s.Path) {
		return
	}

	requestType := models.RequestTypeInternal
	for _, p := range r.cfg.ExternalPrefixes {
		if strings.HasPrefix(s.Path, p) {
			requestType = models.RequestTypeExternal
			break
		}
	}
	if s.CacheHit {
		requestType = models.RequestTypeCached
	}

	var params datatypes.JSON
	if s.Params != nil {
		if b, err := json.Marshal(SanitizeParams(s.Params)); err == nil {
			params = datatypes.JSON(b)
		}
	}

	entry := models.RequestCounterEntry{
		RequestType:      requestType,
		Endpoint:         s.Path,
		HTTPMethod:       s.Method,
		TenantId:         s.TenantID,
		UserId:           s.UserID,
		ManagementUserId: s.ManagementUserID,
		ServiceId:        s.ServiceID,
		ServiceSlug:      ExtractServiceSlug(s.Path),
		IPAddress:        s.IPAddress,
		UserAgent:        s.UserAgent,
		RequestParams:    params,
		RequestSize:      s.RequestSize,
		ResponseStatus:   s.ResponseStatus,
		ResponseTimeMs:   s.ElapsedMs,
		ResponseSize:     s.ResponseSize,
		ErrorMessage:     s.ErrorMessage,
		IsSuccessful:     s.ResponseStatus >= 200 && s.ResponseStatus < 400,
		IsCached:         s.CacheHit,
		IsRateLimited:    s.RateLimited,
	}

	if err := r.db.WithContext(context.Background()).Create(&entry).Error; err != nil {
		r.log.Warn("request counter write failed",
			zap.String("endpoint", s.Path),
			zap.Int("status", s.ResponseStatus),
			zap.Error(err))
	}
}

// SanitizeParams returns a deep copy of params with every sensitive value
// replaced by the redaction marker. Nested mappings are walked recursively;
// the original map is never mutated.
func SanitizeParams(params map[string]any) map[string]any {
	out := make(map[string]any, len(params))
	for k, v := range params {
		if isSensitiveKey(k) {
			out[k] = RedactionMarker
			continue
		}
		out[k] = sanitizeValue(v)
	}
	return out
}

func sanitizeValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return SanitizeParams(val)
	case []any:
		cleaned := make([]any, len(val))
		for i, item := range val {
			cleaned[i] = sanitizeValue(item)
		}
		return cleaned
	default:
		return v
	}
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

// ExtractServiceSlug pulls the service slug out of an external-proxy path
// ("/api/data/<slug>/..."), or returns "" when the path has no service
// routing segment.
func ExtractServiceSlug(path string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for i, seg := range segments {
		if seg == "data" && i+1 < len(segments) {
			return segments[i+1]
		}
	}
	return ""
}

// Elapsed converts wall time since start into milliseconds for ResponseTimeMs.
func Elapsed(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}
