package models

import "time"

// IdempotencyKey stores the first successful response for a given request hash.
// Guards the mutating admin endpoints (cache clear/sweep, service registry).
type IdempotencyKey struct {
	ID             uint       `json:"id" gorm:"primaryKey"`
	Key            string     `json:"key" gorm:"size:128;uniqueIndex"` // header value
	RequestHash    string     `json:"request_hash" gorm:"size:64"`     // sha256 of method|path|body|caller
	Method         string     `json:"method" gorm:"size:10"`
	Path           string     `json:"path" gorm:"size:255"`
	TenantId       *uint      `json:"tenant_id"`
	UserID         string     `json:"user_id" gorm:"size:128"`
	ResponseStatus int        `json:"response_status"` // 0 => not completed yet
	ResponseBody   []byte     `json:"-"`               // raw response body (JSON)
	CreatedAt      time.Time  `json:"created_at"`
	CompletedAt    *time.Time `json:"completed_at"`
}
