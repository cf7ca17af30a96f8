package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"govdata-backend/models"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultTTL applies when a put does not specify its own TTL.
const DefaultTTL = 3600 * time.Second

// ErrNotFound is returned by Get when no live (non-expired) row exists.
var ErrNotFound = errors.New("cache: entry not found")

// Store is the durable TTL cache over upstream responses. All mutation goes
// through atomic upserts keyed on the unique fingerprint index, so concurrent
// identical-key writers converge on one row (last writer wins).
type Store struct {
	db  *gorm.DB
	log *zap.Logger
	now func() time.Time
}

func NewStore(db *gorm.DB, log *zap.Logger) *Store {
	return &Store{db: db, log: log.Named("cache"), now: time.Now}
}

// PutInput carries everything needed to cache one upstream response.
type PutInput struct {
	ServiceID  uint
	TenantID   *uint
	UserID     uint
	Params     map[string]any
	Payload    json.RawMessage
	StatusCode int
	TTL        time.Duration // <=0 => DefaultTTL
}

// Get returns the live row for the fingerprint, or ErrNotFound. Expired rows
// are treated as absent but left in place for SweepExpired (lazy expiry).
func (s *Store) Get(ctx context.Context, cacheKey string) (*models.CachedExternalResponse, error) {
	var row models.CachedExternalResponse
	err := s.db.WithContext(ctx).Where("cache_key = ?", cacheKey).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if row.Expired(s.now()) {
		return nil, ErrNotFound
	}
	return &row, nil
}

// Put caches one response under its derived fingerprint. An existing row for
// the same key is overwritten in place (payload, status, TTL and expiry all
// refreshed); the upsert is atomic on the unique cache_key index.
func (s *Store) Put(ctx context.Context, in PutInput) (*models.CachedExternalResponse, error) {
	ttl := in.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	cacheKey, err := DeriveKey(in.ServiceID, in.TenantID, in.UserID, in.Params)
	if err != nil {
		return nil, err
	}

	params, err := json.Marshal(in.Params)
	if err != nil {
		return nil, err
	}
	if in.Params == nil {
		params = []byte("{}")
	}

	now := s.now().UTC()
	row := models.CachedExternalResponse{
		TenantId:        in.TenantID,
		UserId:          in.UserID,
		ServiceId:       in.ServiceID,
		RequestParams:   datatypes.JSON(params),
		CacheKey:        cacheKey,
		ResponsePayload: datatypes.JSON(in.Payload),
		StatusCode:      in.StatusCode,
		TTLSeconds:      int(ttl / time.Second),
		ExpiresAt:       now.Add(ttl),
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "cache_key"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"response_payload", "status_code", "ttl_seconds", "expires_at", "updated_at",
		}),
	}).Create(&row).Error
	if err != nil {
		return nil, err
	}

	// Re-read so callers see the surviving row (an upsert that hit an existing
	// row keeps that row's id and created_at).
	var stored models.CachedExternalResponse
	if err := s.db.WithContext(ctx).Where("cache_key = ?", row.CacheKey).First(&stored).Error; err != nil {
		return &row, nil
	}
	return &stored, nil
}

// SweepExpired deletes every row whose expiry has passed and returns the count.
// Meant to run periodically or on operator demand.
func (s *Store) SweepExpired(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("expires_at <= ?", s.now().UTC()).
		Delete(&models.CachedExternalResponse{})
	if res.Error != nil {
		return 0, res.Error
	}
	s.log.Info("swept expired cache rows", zap.Int64("deleted", res.RowsAffected))
	return res.RowsAffected, nil
}

// ClearFor hard-invalidates all rows matching the given filters, regardless of
// expiry. Any filter left nil matches all.
func (s *Store) ClearFor(ctx context.Context, userID, tenantID, serviceID *uint) (int64, error) {
	q := s.db.WithContext(ctx).Model(&models.CachedExternalResponse{})
	if userID != nil {
		q = q.Where("user_id = ?", *userID)
	}
	if tenantID != nil {
		q = q.Where("tenant_id = ?", *tenantID)
	}
	if serviceID != nil {
		q = q.Where("service_id = ?", *serviceID)
	}
	res := q.Delete(&models.CachedExternalResponse{})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
