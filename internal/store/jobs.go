// internal/store/jobs.go
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"visibility-audit/internal/models"
)

const jobColumns = `id, brand_name, industry, status, progress, visibility_score,
	free_unlocked, full_unlocked, error_message, ip_hash, idempotency_key,
	created_at, started_at, completed_at`

func scanJob(row *sql.Row) (*models.AuditJob, error) {
	var job models.AuditJob
	err := row.Scan(
		&job.ID, &job.BrandName, &job.Industry, &job.Status, &job.Progress,
		&job.VisibilityScore, &job.FreeUnlocked, &job.FullUnlocked,
		&job.ErrorMessage, &job.IPHash, &job.IdempotencyKey,
		&job.CreatedAt, &job.StartedAt, &job.CompletedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// CreateJob inserts a queued job. When an idempotency key is supplied and a
// job with that key already exists, the existing job is returned and the
// second return is false.
func (s *Store) CreateJob(ctx context.Context, brandName, industry, ipHash string, idempotencyKey *string) (*models.AuditJob, bool, error) {
	if idempotencyKey != nil && *idempotencyKey != "" {
		job, err := scanJob(s.db.QueryRowContext(ctx,
			`SELECT `+jobColumns+` FROM audit_jobs WHERE idempotency_key = $1`,
			*idempotencyKey))
		if err == nil {
			return job, false, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, false, fmt.Errorf("lookup idempotency key: %w", err)
		}
	}

	job, err := scanJob(s.db.QueryRowContext(ctx, `
		INSERT INTO audit_jobs (id, brand_name, industry, status, progress, ip_hash, idempotency_key)
		VALUES ($1, $2, $3, 'queued', 0, $4, $5)
		RETURNING `+jobColumns,
		uuid.NewString(), brandName, industry, ipHash, idempotencyKey))
	if err != nil {
		return nil, false, fmt.Errorf("create job: %w", err)
	}
	return job, true, nil
}

// GetJob returns a job by id, or ErrNotFound.
func (s *Store) GetJob(ctx context.Context, id string) (*models.AuditJob, error) {
	job, err := scanJob(s.db.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM audit_jobs WHERE id = $1`, id))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, err
}

// ClaimJob moves a queued job to running. The status guard makes the claim
// safe against a concurrent sweeper or a retried enqueue; false means some
// other actor already transitioned the job.
func (s *Store) ClaimJob(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE audit_jobs
		SET status = 'running', progress = 5, started_at = now()
		WHERE id = $1 AND status = 'queued'`, id)
	if err != nil {
		return false, fmt.Errorf("claim job: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim job: %w", err)
	}
	return n == 1, nil
}

// UpdateProgress persists the progress percentage of a running job.
func (s *Store) UpdateProgress(ctx context.Context, id string, percent int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE audit_jobs SET progress = $2
		WHERE id = $1 AND status = 'running'`, id, percent)
	if err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	return nil
}

// CompleteJob finalizes a job with its visibility score.
func (s *Store) CompleteJob(ctx context.Context, id string, visibilityScore int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE audit_jobs
		SET status = 'completed', progress = 100, visibility_score = $2, completed_at = now()
		WHERE id = $1`, id, visibilityScore)
	if err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	return nil
}

// FailJob marks a job failed with a client-safe error message.
func (s *Store) FailJob(ctx context.Context, id, message string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE audit_jobs
		SET status = 'failed', error_message = $2, completed_at = now()
		WHERE id = $1`, id, message)
	if err != nil {
		return fmt.Errorf("fail job: %w", err)
	}
	return nil
}

// UnlockFullResults flips the gate that exposes all result rows.
func (s *Store) UnlockFullResults(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE audit_jobs SET full_unlocked = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("unlock full results: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("unlock full results: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// CountRecentByIP counts jobs created from one hashed IP in the last 24h.
// Failed jobs do not count against the cap; a visitor whose audit errored
// may retry.
func (s *Store) CountRecentByIP(ctx context.Context, ipHash string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM audit_jobs
		WHERE ip_hash = $1
		  AND created_at > now() - interval '24 hours'
		  AND status != 'failed'`,
		ipHash).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count recent by ip: %w", err)
	}
	return n, nil
}

// CountRunning counts jobs currently in the running state.
func (s *Store) CountRunning(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM audit_jobs WHERE status = 'running'`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count running: %w", err)
	}
	return n, nil
}

// SweepStuck fails running jobs whose worker died. A job is stuck when it
// started before the cutoff and never reached a terminal state.
func (s *Store) SweepStuck(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)
	res, err := s.db.ExecContext(ctx, `
		UPDATE audit_jobs
		SET status = 'failed', error_message = 'audit timed out', completed_at = now()
		WHERE status = 'running' AND started_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("sweep stuck jobs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sweep stuck jobs: %w", err)
	}
	if n > 0 {
		s.log.Warn("swept stuck audit jobs", map[string]interface{}{
			"count":  n,
			"cutoff": cutoff.Format(time.RFC3339),
		})
	}
	return n, nil
}
