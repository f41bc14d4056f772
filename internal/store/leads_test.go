// internal/store/leads_test.go
package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"visibility-audit/internal/models"
)

func TestUpsertLead_FillsGeneratedFields(t *testing.T) {
	s, mock := newTestStore(t)

	now := time.Now()
	mock.ExpectQuery("INSERT INTO audit_leads").
		WithArgs("job-1", "owner@acme.test", "Pat", "Acme Digital", true,
			"https://ref.test", "newsletter", "email", "launch").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).
			AddRow("lead-1", now))

	lead := &models.AuditLead{
		AuditJobID:  "job-1",
		Email:       "owner@acme.test",
		Name:        "Pat",
		AgencyName:  "Acme Digital",
		Consent:     true,
		Referrer:    "https://ref.test",
		UTMSource:   "newsletter",
		UTMMedium:   "email",
		UTMCampaign: "launch",
	}
	require.NoError(t, s.UpsertLead(context.Background(), lead))
	assert.Equal(t, "lead-1", lead.ID)
	assert.Equal(t, now, lead.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}
