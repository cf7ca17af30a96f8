package tracking

import (
	"context"
	"time"

	"govdata-backend/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RollupConfig controls the summary worker loop.
type RollupConfig struct {
	// Window is how far back raw counter rows are re-aggregated each run.
	Window time.Duration
	// PollInterval is the delay between runs.
	PollInterval time.Duration
}

func DefaultRollupConfig() RollupConfig {
	return RollupConfig{
		Window:       48 * time.Hour,
		PollInterval: 5 * time.Minute,
	}
}

func (c RollupConfig) withDefaults() RollupConfig {
	defaults := DefaultRollupConfig()
	if c.Window <= 0 {
		c.Window = defaults.Window
	}
	if c.PollInterval <= 0 {
		c.PollInterval = defaults.PollInterval
	}
	return c
}

// RollupWorker periodically folds raw RequestCounterEntry rows into hourly
// RequestSummary rows. It recomputes the trailing window inside one
// transaction (delete + reinsert), so re-runs are idempotent and never double
// count. The live request path never touches summary rows.
type RollupWorker struct {
	db  *gorm.DB
	log *zap.Logger
	cfg RollupConfig
	now func() time.Time
}

func NewRollupWorker(db *gorm.DB, log *zap.Logger, cfg RollupConfig) *RollupWorker {
	return &RollupWorker{db: db, log: log.Named("rollup"), cfg: cfg.withDefaults(), now: time.Now}
}

// RunForever loops until ctx is cancelled.
func (w *RollupWorker) RunForever(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if err := w.RunOnce(ctx); err != nil {
			w.log.Warn("request summary rollup failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunOnce recomputes hourly summaries for the trailing window.
func (w *RollupWorker) RunOnce(ctx context.Context) error {
	now := w.now().UTC()
	windowStart := now.Add(-w.cfg.Window).Truncate(time.Hour)

	type bucket struct {
		Bucket      time.Time
		TenantId    *uint
		ServiceSlug string
		Total       int64
		Successful  int64
		Cached      int64
		External    int64
		Internal    int64
		RateLimited int64
		AvgMs       float64
	}

	// Group raw rows in memory: hour truncation is done in Go so the same
	// query works on Postgres and the SQLite test database.
	var rows []models.RequestCounterEntry
	if err := w.db.WithContext(ctx).
		Where("created_at >= ?", windowStart).
		Find(&rows).Error; err != nil {
		return err
	}

	type key struct {
		hour    int64
		tenant  uint
		hasTen  bool
		service string
	}
	buckets := make(map[key]*bucket)
	sums := make(map[key]float64)
	for _, row := range rows {
		hour := row.CreatedAt.UTC().Truncate(time.Hour)
		k := key{hour: hour.Unix(), service: row.ServiceSlug}
		if row.TenantId != nil {
			k.tenant = *row.TenantId
			k.hasTen = true
		}
		b := buckets[k]
		if b == nil {
			b = &bucket{Bucket: hour, TenantId: row.TenantId, ServiceSlug: row.ServiceSlug}
			buckets[k] = b
		}
		b.Total++
		if row.IsSuccessful {
			b.Successful++
		}
		if row.IsCached {
			b.Cached++
		}
		if row.IsRateLimited {
			b.RateLimited++
		}
		switch row.RequestType {
		case models.RequestTypeExternal:
			b.External++
		case models.RequestTypeInternal:
			b.Internal++
		}
		sums[k] += row.ResponseTimeMs
	}

	summaries := make([]models.RequestSummary, 0, len(buckets))
	for k, b := range buckets {
		avg := 0.0
		if b.Total > 0 {
			avg = sums[k] / float64(b.Total)
		}
		summaries = append(summaries, models.RequestSummary{
			PeriodType:        "hour",
			PeriodStart:       b.Bucket,
			PeriodEnd:         b.Bucket.Add(time.Hour),
			TenantId:          b.TenantId,
			ServiceSlug:       b.ServiceSlug,
			TotalRequests:     b.Total,
			SuccessfulCount:   b.Successful,
			FailedCount:       b.Total - b.Successful,
			CachedCount:       b.Cached,
			ExternalCount:     b.External,
			InternalCount:     b.Internal,
			RateLimitedCount:  b.RateLimited,
			AvgResponseTimeMs: avg,
		})
	}

	err := w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("period_type = ? AND period_start >= ?", "hour", windowStart).
			Delete(&models.RequestSummary{}).Error; err != nil {
			return err
		}
		if len(summaries) == 0 {
			return nil
		}
		return tx.Create(&summaries).Error
	})
	if err != nil {
		return err
	}

	w.log.Info("request summaries recomputed",
		zap.Time("window_start", windowStart),
		zap.Int("buckets", len(summaries)))
	return nil
}
