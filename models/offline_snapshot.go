package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// OfflineSnapshot is a long-term copy of one successful upstream response,
// written alongside the TTL cache but with its own lifecycle: one row per
// call, no expiry, intended for later reference and export rather than
// re-serving.
type OfflineSnapshot struct {
	Id            string         `json:"id" gorm:"primaryKey"`
	TenantId      *uint          `json:"tenant_id" gorm:"index"`
	UserId        *uint          `json:"user_id"`
	ServiceId     uint           `json:"service_id" gorm:"index"`
	RequestParams datatypes.JSON `json:"request_params"`
	Payload       datatypes.JSON `json:"payload"`
	FetchedAt     time.Time      `json:"fetched_at" gorm:"index"`
}

func (s *OfflineSnapshot) BeforeCreate(tx *gorm.DB) (err error) {
	if s.Id == "" {
		s.Id = uuid.NewString()
	}
	return
}
