// internal/models/lead.go
package models

import "time"

// AuditLead is the contact captured when a visitor unlocks an audit report.
// Leads are unique per (audit job, email); repeat submissions update the
// existing row instead of creating a new one.
type AuditLead struct {
	ID          string    `json:"id"`
	AuditJobID  string    `json:"audit_job_id"`
	Email       string    `json:"email"`
	Name        string    `json:"name,omitempty"`
	AgencyName  string    `json:"agency_name,omitempty"`
	Consent     bool      `json:"consent"`
	Referrer    string    `json:"referrer,omitempty"`
	UTMSource   string    `json:"utm_source,omitempty"`
	UTMMedium   string    `json:"utm_medium,omitempty"`
	UTMCampaign string    `json:"utm_campaign,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
