package models

import "time"

// ServiceCredential is an upstream API key for one service. TenantId nil means
// a system-wide fallback credential; tenant-specific credentials only take
// effect once approved.
type ServiceCredential struct {
	Id        uint      `json:"id" gorm:"primaryKey"`
	ServiceId uint      `json:"service_id" gorm:"not null;index:idx_service_credentials_service_tenant,priority:1"`
	TenantId  *uint     `json:"tenant_id" gorm:"index:idx_service_credentials_service_tenant,priority:2"`
	APIKey    string    `json:"-" gorm:"not null"`
	Approved  bool      `json:"approved"`
	CreatedAt time.Time `json:"created_at"`
}
