package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// CachedExternalResponse is one cached upstream result, keyed by the derived
// fingerprint. At most one live row exists per CacheKey; writers upsert on the
// unique index instead of read-then-write.
type CachedExternalResponse struct {
	Id              string         `json:"id" gorm:"primaryKey"`
	TenantId        *uint          `json:"tenant_id" gorm:"index"` // nil for management/global callers
	UserId          uint           `json:"user_id" gorm:"index"`
	ServiceId       uint           `json:"service_id" gorm:"index"`
	RequestParams   datatypes.JSON `json:"request_params"`
	CacheKey        string         `json:"cache_key" gorm:"size:64;uniqueIndex:idx_cached_responses_cache_key"`
	ResponsePayload datatypes.JSON `json:"response_payload"`
	StatusCode      int            `json:"status_code"`
	TTLSeconds      int            `json:"ttl_seconds"`
	ExpiresAt       time.Time      `json:"expires_at" gorm:"index"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

func (r *CachedExternalResponse) BeforeCreate(tx *gorm.DB) (err error) {
	if r.Id == "" {
		r.Id = uuid.NewString()
	}
	return
}

// Expired reports whether the row is stale relative to now.
func (r *CachedExternalResponse) Expired(now time.Time) bool {
	return !r.ExpiresAt.After(now)
}
