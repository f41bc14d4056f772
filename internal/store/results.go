// internal/store/results.go
package store

import (
	"context"
	"encoding/json"
	"fmt"

	"visibility-audit/internal/models"
)

// InsertResults persists the full result set of one audit in a single
// transaction. Competitors are stored as a JSONB array.
func (s *Store) InsertResults(ctx context.Context, jobID string, rows []models.PromptResult) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("insert results: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO audit_prompt_results
			(audit_job_id, prompt_index, prompt_text, platform, raw_response,
			 brand_mentioned, position_bucket, sentiment, competitors_json, confidence)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`)
	if err != nil {
		return fmt.Errorf("insert results: prepare: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		competitors := row.Competitors
		if competitors == nil {
			competitors = []string{}
		}
		competitorsJSON, err := json.Marshal(competitors)
		if err != nil {
			return fmt.Errorf("insert results: marshal competitors: %w", err)
		}

		if _, err := stmt.ExecContext(ctx,
			jobID, row.PromptIndex, row.PromptText, string(row.Platform),
			row.RawResponse, row.BrandMentioned, row.PositionBucket,
			row.Sentiment, competitorsJSON, row.Confidence,
		); err != nil {
			return fmt.Errorf("insert results: exec: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("insert results: commit: %w", err)
	}
	return nil
}

// ListResults returns every result row of a job ordered by prompt index and
// then platform, so free-row partitioning sees a stable order.
func (s *Store) ListResults(ctx context.Context, jobID string) ([]models.PromptResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, audit_job_id, prompt_index, prompt_text, platform, raw_response,
		       brand_mentioned, position_bucket, sentiment, competitors_json, confidence
		FROM audit_prompt_results
		WHERE audit_job_id = $1
		ORDER BY prompt_index, platform`, jobID)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	defer rows.Close()

	var results []models.PromptResult
	for rows.Next() {
		var r models.PromptResult
		var competitorsJSON []byte
		if err := rows.Scan(
			&r.ID, &r.AuditJobID, &r.PromptIndex, &r.PromptText, &r.Platform,
			&r.RawResponse, &r.BrandMentioned, &r.PositionBucket, &r.Sentiment,
			&competitorsJSON, &r.Confidence,
		); err != nil {
			return nil, fmt.Errorf("list results: scan: %w", err)
		}
		if len(competitorsJSON) > 0 {
			if err := json.Unmarshal(competitorsJSON, &r.Competitors); err != nil {
				return nil, fmt.Errorf("list results: competitors: %w", err)
			}
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	return results, nil
}
