package models

import (
	"time"

	"gorm.io/datatypes"
)

// Request classification for traffic analytics.
const (
	RequestTypeInternal = "INTERNAL"
	RequestTypeExternal = "EXTERNAL"
	RequestTypeCached   = "CACHED"
)

// RequestCounterEntry is the immutable audit record of one inbound HTTP
// request/response cycle, written by the counter middleware after the response
// is computed. Distinct from CallLogEntry, which is upstream-specific.
type RequestCounterEntry struct {
	Id               uint           `json:"id" gorm:"primaryKey"`
	RequestType      string         `json:"request_type" gorm:"size:10;index"`
	Endpoint         string         `json:"endpoint" gorm:"size:255;index:idx_request_counters_endpoint_created,priority:1"`
	HTTPMethod       string         `json:"http_method" gorm:"size:10"`
	TenantId         *uint          `json:"tenant_id" gorm:"index:idx_request_counters_tenant_created,priority:1"`
	UserId           *uint          `json:"user_id" gorm:"index"`
	ManagementUserId *uint          `json:"management_user_id"`
	ServiceId        *uint          `json:"service_id"`
	ServiceSlug      string         `json:"service_slug" gorm:"index"`
	IPAddress        string         `json:"ip_address" gorm:"size:45"`
	UserAgent        string         `json:"user_agent" gorm:"size:255"`
	RequestParams    datatypes.JSON `json:"request_params"` // sanitized, sensitive keys redacted
	RequestSize      int            `json:"request_size"`
	ResponseStatus   int            `json:"response_status" gorm:"index"`
	ResponseTimeMs   float64        `json:"response_time_ms"`
	ResponseSize     int            `json:"response_size"`
	ErrorMessage     string         `json:"error_message" gorm:"size:500"`
	IsSuccessful     bool           `json:"is_successful"`
	IsCached         bool           `json:"is_cached"`
	IsRateLimited    bool           `json:"is_rate_limited"`
	CreatedAt        time.Time      `json:"created_at" gorm:"index:idx_request_counters_tenant_created,priority:2;index:idx_request_counters_endpoint_created,priority:2"`
}

// RequestSummary is a rollup over RequestCounterEntry for fast dashboard
// reads. Rows are produced only by the rollup worker, never by the live
// request path, and are recomputed idempotently per period.
type RequestSummary struct {
	Id                uint      `json:"id" gorm:"primaryKey"`
	PeriodType        string    `json:"period_type" gorm:"size:10;index:idx_request_summaries_period,priority:1"` // "hour"
	PeriodStart       time.Time `json:"period_start" gorm:"index:idx_request_summaries_period,priority:2"`
	PeriodEnd         time.Time `json:"period_end"`
	TenantId          *uint     `json:"tenant_id" gorm:"index"`
	ServiceSlug       string    `json:"service_slug"`
	TotalRequests     int64     `json:"total_requests"`
	SuccessfulCount   int64     `json:"successful_count"`
	FailedCount       int64     `json:"failed_count"`
	CachedCount       int64     `json:"cached_count"`
	ExternalCount     int64     `json:"external_count"`
	InternalCount     int64     `json:"internal_count"`
	RateLimitedCount  int64     `json:"rate_limited_count"`
	AvgResponseTimeMs float64   `json:"avg_response_time_ms"`
	CreatedAt         time.Time `json:"created_at"`
}
