// internal/store/leads.go
package store

import (
	"context"
	"fmt"

	"visibility-audit/internal/models"
)

// UpsertLead stores a report-unlock lead. Repeat submissions for the same
// (audit job, email) pair refresh the contact fields instead of duplicating
// the row. The lead's ID and CreatedAt are filled in from the database.
func (s *Store) UpsertLead(ctx context.Context, lead *models.AuditLead) error {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO audit_leads
			(audit_job_id, email, name, agency_name, consent, referrer,
			 utm_source, utm_medium, utm_campaign)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (audit_job_id, email) DO UPDATE SET
			name = EXCLUDED.name,
			agency_name = EXCLUDED.agency_name,
			consent = EXCLUDED.consent,
			referrer = EXCLUDED.referrer,
			utm_source = EXCLUDED.utm_source,
			utm_medium = EXCLUDED.utm_medium,
			utm_campaign = EXCLUDED.utm_campaign
		RETURNING id, created_at`,
		lead.AuditJobID, lead.Email, lead.Name, lead.AgencyName, lead.Consent,
		lead.Referrer, lead.UTMSource, lead.UTMMedium, lead.UTMCampaign,
	).Scan(&lead.ID, &lead.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert lead: %w", err)
	}
	return nil
}

// CountLeads returns the number of captured leads for reporting.
func (s *Store) CountLeads(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM audit_leads`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count leads: %w", err)
	}
	return n, nil
}
