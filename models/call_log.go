package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// CallLogEntry is the immutable audit record of one upstream call attempt.
// Exactly one row is written per attempt, whether it was served live, from
// cache, or failed. Rows are append-only and never updated.
type CallLogEntry struct {
	Id               string         `json:"id" gorm:"primaryKey"`
	TenantId         *uint          `json:"tenant_id" gorm:"index:idx_call_logs_tenant_fetched,priority:1"`
	UserId           *uint          `json:"user_id" gorm:"index"`
	ManagementUserId *uint          `json:"management_user_id"`
	ServiceSlug      string         `json:"service_slug" gorm:"index:idx_call_logs_service_fetched,priority:1"`
	Endpoint         string         `json:"endpoint" gorm:"size:255"`
	HTTPMethod       string         `json:"http_method" gorm:"size:10"`
	StatusCode       int            `json:"status_code" gorm:"index"`
	RequestData      datatypes.JSON `json:"request_data"`
	ResponseBody     datatypes.JSON `json:"response_body"` // stored in full; truncated only in log lines
	DurationMs       int64          `json:"duration_ms"`
	Cached           bool           `json:"cached"` // served from cache, near-zero duration
	FetchedAt        time.Time      `json:"fetched_at" gorm:"index:idx_call_logs_tenant_fetched,priority:2;index:idx_call_logs_service_fetched,priority:2"`
}

func (e *CallLogEntry) BeforeCreate(tx *gorm.DB) (err error) {
	if e.Id == "" {
		e.Id = uuid.NewString()
	}
	return
}
