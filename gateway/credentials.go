package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"govdata-backend/cache"
	"govdata-backend/models"

	"gorm.io/gorm"
)

// credentialCacheTTL bounds how long a resolved credential is reused before
// hitting the database again (so approval revocations take effect quickly).
const credentialCacheTTL = 5 * time.Minute

// CredentialResolver obtains the upstream API credential for one
// (service, caller) pair.
type CredentialResolver interface {
	Resolve(ctx context.Context, serviceID uint, caller Caller) (string, error)
}

// DBCredentialResolver resolves against the service_credentials table:
// tenant-specific approved credential first, system-wide fallback second,
// ErrNoCredential when neither exists. Resolved keys are held in a short-TTL
// keyed store rather than a bare process-wide map.
type DBCredentialResolver struct {
	db    *gorm.DB
	cache *cache.KeyedStore[string, string]
}

func NewDBCredentialResolver(db *gorm.DB) *DBCredentialResolver {
	return &DBCredentialResolver{
		db:    db,
		cache: cache.NewKeyedStore[string, string](),
	}
}

func (r *DBCredentialResolver) Resolve(ctx context.Context, serviceID uint, caller Caller) (string, error) {
	key := cacheKeyFor(serviceID, caller)
	if apiKey, ok := r.cache.Get(key); ok {
		return apiKey, nil
	}

	// Tenant-specific, approved credential wins.
	if tenantID := caller.TenantRef(); tenantID != nil {
		var cred models.ServiceCredential
		err := r.db.WithContext(ctx).
			Where("service_id = ? AND tenant_id = ? AND approved = ?", serviceID, *tenantID, true).
			First(&cred).Error
		if err == nil {
			r.cache.Set(key, cred.APIKey, credentialCacheTTL)
			return cred.APIKey, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return "", err
		}
	}

	// System-wide fallback.
	var cred models.ServiceCredential
	err := r.db.WithContext(ctx).
		Where("service_id = ? AND tenant_id IS NULL AND approved = ?", serviceID, true).
		First(&cred).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrNoCredential
		}
		return "", err
	}
	r.cache.Set(key, cred.APIKey, credentialCacheTTL)
	return cred.APIKey, nil
}

// Invalidate drops any cached credential for the pair, forcing a re-read.
func (r *DBCredentialResolver) Invalidate(serviceID uint, caller Caller) {
	r.cache.Delete(cacheKeyFor(serviceID, caller))
}

func cacheKeyFor(serviceID uint, caller Caller) string {
	if tenantID := caller.TenantRef(); tenantID != nil {
		return fmt.Sprintf("%d:%d", serviceID, *tenantID)
	}
	return fmt.Sprintf("%d:global", serviceID)
}
