package database

import (
	"fmt"

	"gorm.io/gorm"
)

// Migrate applies (idempotent) schema hardening on top of AutoMigrate:
// - unique fingerprint index on cached responses (upsert target)
// - time-range + tenant/user/service composite indexes the analytics
//   queries depend on
// - idempotency keys unique index
// - basic CHECK constraints
func Migrate() error {
	return DB.Transaction(func(tx *gorm.DB) error {
		// --- Composite / helpful indexes (idempotent) ---
		indexes := []string{
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_cached_responses_cache_key ON cached_external_responses (cache_key)`,
			`CREATE INDEX IF NOT EXISTS idx_cached_responses_expires ON cached_external_responses (expires_at)`,
			`CREATE INDEX IF NOT EXISTS idx_cached_responses_owner ON cached_external_responses (tenant_id, user_id, service_id)`,
			`CREATE INDEX IF NOT EXISTS idx_call_logs_tenant_fetched ON call_log_entries (tenant_id, fetched_at)`,
			`CREATE INDEX IF NOT EXISTS idx_call_logs_service_fetched ON call_log_entries (service_slug, fetched_at)`,
			`CREATE INDEX IF NOT EXISTS idx_request_counters_tenant_created ON request_counter_entries (tenant_id, created_at)`,
			`CREATE INDEX IF NOT EXISTS idx_request_counters_endpoint_created ON request_counter_entries (endpoint, created_at)`,
			`CREATE INDEX IF NOT EXISTS idx_request_summaries_period ON request_summaries (period_type, period_start)`,
			`CREATE INDEX IF NOT EXISTS idx_offline_snapshots_service_fetched ON offline_snapshots (service_id, fetched_at)`,
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_idempotency_keys_key ON idempotency_keys (key)`,
		}
		for _, stmt := range indexes {
			if err := tx.Exec(stmt).Error; err != nil {
				return fmt.Errorf("index migration failed on: %s - %w", stmt, err)
			}
		}

		// --- Basic CHECK constraints (idempotent) ---
		checks := []string{
			// Non-negative cache TTL
			`DO $$
			BEGIN
				IF NOT EXISTS (
					SELECT 1 FROM pg_constraint
					WHERE conrelid = 'cached_external_responses'::regclass
					  AND conname  = 'chk_cached_responses_ttl_nonneg'
				) THEN
					ALTER TABLE cached_external_responses
					ADD CONSTRAINT chk_cached_responses_ttl_nonneg
					CHECK (ttl_seconds >= 0);
				END IF;
			END $$;`,
			// Call durations >= 0
			`DO $$
			BEGIN
				IF NOT EXISTS (
					SELECT 1 FROM pg_constraint
					WHERE conrelid = 'call_log_entries'::regclass
					  AND conname  = 'chk_call_logs_duration_nonneg'
				) THEN
					ALTER TABLE call_log_entries
					ADD CONSTRAINT chk_call_logs_duration_nonneg
					CHECK (duration_ms >= 0);
				END IF;
			END $$;`,
			// Service unit price >= 0 when set
			`DO $$
			BEGIN
				IF NOT EXISTS (
					SELECT 1 FROM pg_constraint
					WHERE conrelid = 'services'::regclass
					  AND conname  = 'chk_services_unit_price_nonneg'
				) THEN
					ALTER TABLE services
					ADD CONSTRAINT chk_services_unit_price_nonneg
					CHECK (unit_price IS NULL OR unit_price >= 0);
				END IF;
			END $$;`,
		}
		for _, stmt := range checks {
			if err := tx.Exec(stmt).Error; err != nil {
				return fmt.Errorf("check constraint migration failed: %w", err)
			}
		}

		return nil
	})
}
