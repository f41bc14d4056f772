// internal/store/applications.go
package store

import (
	"context"
	"fmt"
	"strings"

	"visibility-audit/internal/models"
)

const applicationColumns = `id, full_name, work_email, agency_name, website,
	active_clients_range, role, primary_services, biggest_challenge,
	qualified_status, pipeline_stage, utm_source, utm_medium, utm_campaign,
	submitted_at, created_at`

// InsertApplication stores a beta-program submission and returns its id.
// The qualified status is decided by the caller before insertion.
func (s *Store) InsertApplication(ctx context.Context, app *models.BetaApplication) error {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO beta_applications
			(full_name, work_email, agency_name, website, active_clients_range,
			 role, primary_services, biggest_challenge, qualified_status,
			 pipeline_stage, utm_source, utm_medium, utm_campaign)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, submitted_at, created_at`,
		app.FullName, app.WorkEmail, app.AgencyName, app.Website,
		app.ActiveClientsRange, app.Role, app.PrimaryServices,
		app.BiggestChallenge, app.QualifiedStatus, app.PipelineStage,
		app.UTMSource, app.UTMMedium, app.UTMCampaign,
	).Scan(&app.ID, &app.SubmittedAt, &app.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert application: %w", err)
	}
	return nil
}

// ListApplications returns submissions newest first, optionally filtered by
// qualified status.
func (s *Store) ListApplications(ctx context.Context, status models.QualifiedStatus) ([]models.BetaApplication, error) {
	query := `SELECT ` + applicationColumns + ` FROM beta_applications`
	var args []interface{}
	if status != "" {
		query += ` WHERE qualified_status = $1`
		args = append(args, string(status))
	}
	query += ` ORDER BY submitted_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	defer rows.Close()

	var apps []models.BetaApplication
	for rows.Next() {
		var a models.BetaApplication
		if err := rows.Scan(
			&a.ID, &a.FullName, &a.WorkEmail, &a.AgencyName, &a.Website,
			&a.ActiveClientsRange, &a.Role, &a.PrimaryServices,
			&a.BiggestChallenge, &a.QualifiedStatus, &a.PipelineStage,
			&a.UTMSource, &a.UTMMedium, &a.UTMCampaign,
			&a.SubmittedAt, &a.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("list applications: scan: %w", err)
		}
		apps = append(apps, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	return apps, nil
}

// UpdateApplication patches the triage fields of a submission. Nil fields
// are left untouched; updating nothing is an error.
func (s *Store) UpdateApplication(ctx context.Context, id string, qualifiedStatus *models.QualifiedStatus, pipelineStage *models.PipelineStage) error {
	var sets []string
	var args []interface{}
	args = append(args, id)

	if qualifiedStatus != nil {
		args = append(args, string(*qualifiedStatus))
		sets = append(sets, fmt.Sprintf("qualified_status = $%d", len(args)))
	}
	if pipelineStage != nil {
		args = append(args, string(*pipelineStage))
		sets = append(sets, fmt.Sprintf("pipeline_stage = $%d", len(args)))
	}
	if len(sets) == 0 {
		return fmt.Errorf("update application: no fields to update")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE beta_applications SET `+strings.Join(sets, ", ")+` WHERE id = $1`,
		args...)
	if err != nil {
		return fmt.Errorf("update application: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update application: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
