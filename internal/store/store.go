// internal/store/store.go
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"visibility-audit/internal/common/logger"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Store is the Postgres persistence layer for audit jobs, prompt results,
// leads and beta applications. All methods use plain database/sql with
// positional parameters; the schema is bootstrapped at startup.
type Store struct {
	db  *sql.DB
	log logger.Logger
}

func New(db *sql.DB, log logger.Logger) *Store {
	return &Store{
		db:  db,
		log: log.WithFields(map[string]interface{}{"component": "store"}),
	}
}

// DB exposes the underlying handle for health checks.
func (s *Store) DB() *sql.DB {
	return s.db
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS audit_jobs (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		brand_name TEXT NOT NULL,
		industry TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'queued',
		progress INT NOT NULL DEFAULT 0,
		visibility_score INT,
		free_unlocked BOOLEAN NOT NULL DEFAULT FALSE,
		full_unlocked BOOLEAN NOT NULL DEFAULT FALSE,
		error_message TEXT,
		ip_hash TEXT NOT NULL DEFAULT '',
		idempotency_key TEXT UNIQUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		started_at TIMESTAMPTZ,
		completed_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_jobs_status ON audit_jobs (status)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_jobs_ip_created ON audit_jobs (ip_hash, created_at)`,
	`CREATE TABLE IF NOT EXISTS audit_prompt_results (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		audit_job_id UUID NOT NULL REFERENCES audit_jobs(id) ON DELETE CASCADE,
		prompt_index INT NOT NULL,
		prompt_text TEXT NOT NULL,
		platform TEXT NOT NULL,
		raw_response TEXT,
		brand_mentioned BOOLEAN,
		position_bucket TEXT,
		sentiment TEXT,
		competitors_json JSONB NOT NULL DEFAULT '[]',
		confidence REAL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_prompt_results_job ON audit_prompt_results (audit_job_id, prompt_index)`,
	`CREATE TABLE IF NOT EXISTS audit_leads (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		audit_job_id UUID NOT NULL REFERENCES audit_jobs(id) ON DELETE CASCADE,
		email TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		agency_name TEXT NOT NULL DEFAULT '',
		consent BOOLEAN NOT NULL DEFAULT FALSE,
		referrer TEXT NOT NULL DEFAULT '',
		utm_source TEXT NOT NULL DEFAULT '',
		utm_medium TEXT NOT NULL DEFAULT '',
		utm_campaign TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (audit_job_id, email)
	)`,
	`CREATE TABLE IF NOT EXISTS beta_applications (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		full_name TEXT NOT NULL,
		work_email TEXT NOT NULL,
		agency_name TEXT NOT NULL,
		website TEXT NOT NULL DEFAULT '',
		active_clients_range TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT '',
		primary_services TEXT NOT NULL,
		biggest_challenge TEXT NOT NULL,
		qualified_status TEXT NOT NULL DEFAULT 'review',
		pipeline_stage TEXT NOT NULL DEFAULT 'NEW',
		utm_source TEXT NOT NULL DEFAULT '',
		utm_medium TEXT NOT NULL DEFAULT '',
		utm_campaign TEXT NOT NULL DEFAULT '',
		submitted_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS audit_config (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

// EnsureSchema creates the tables this service owns. Statements are
// idempotent so repeated startups are safe.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	s.log.Info("database schema ensured", map[string]interface{}{
		"statements": len(schemaStatements),
	})
	return nil
}

// GetConfigValue reads a runtime override from the audit_config table.
// The second return is false when the key is absent.
func (s *Store) GetConfigValue(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM audit_config WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get config value: %w", err)
	}
	return value, true, nil
}

// SetConfigValue upserts a runtime override.
func (s *Store) SetConfigValue(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_config (key, value, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		key, value)
	if err != nil {
		return fmt.Errorf("set config value: %w", err)
	}
	return nil
}
