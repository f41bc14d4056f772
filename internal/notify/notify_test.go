// internal/notify/notify_test.go
package notify

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"visibility-audit/internal/common/config"
	"visibility-audit/internal/common/logger"
	"visibility-audit/internal/models"
)

// ==========================
// Mock Implementations
// ==========================

type MockEmailSender struct {
	SendEmailFunc func(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
	calls         []*ses.SendEmailInput
}

func (m *MockEmailSender) SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	m.calls = append(m.calls, params)
	if m.SendEmailFunc != nil {
		return m.SendEmailFunc(ctx, params, optFns...)
	}
	return &ses.SendEmailOutput{}, nil
}

type MockSMSSender struct {
	PublishFunc func(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
	calls       []*sns.PublishInput
}

func (m *MockSMSSender) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	m.calls = append(m.calls, params)
	if m.PublishFunc != nil {
		return m.PublishFunc(ctx, params, optFns...)
	}
	return &sns.PublishOutput{}, nil
}

// ==========================
// Test Helper Functions
// ==========================

func testNotifyConfig() config.NotifyConfig {
	var cfg config.NotifyConfig
	cfg.Email.Enabled = true
	cfg.Email.FromEmail = "noreply@visibility.test"
	cfg.Email.ToEmail = "sales@visibility.test"
	cfg.SMS.Enabled = true
	cfg.SMS.PhoneNumber = "+15550100000"
	cfg.AWS.Region = "us-east-1"
	return cfg
}

func newTestNotifier(t *testing.T, cfg config.NotifyConfig) (*Notifier, *MockEmailSender, *MockSMSSender) {
	t.Helper()
	emailMock := &MockEmailSender{}
	smsMock := &MockSMSSender{}
	return NewWithClients(cfg, emailMock, smsMock, logger.NewTestLogger(t)), emailMock, smsMock
}

// ==========================
// Core Functionality Tests
// ==========================

func TestLeadCaptured_SendsEmail(t *testing.T) {
	n, emailMock, smsMock := newTestNotifier(t, testNotifyConfig())

	score := 72
	lead := &models.AuditLead{
		AuditJobID: "job-1",
		Email:      "owner@acme.test",
		AgencyName: "Acme Digital",
	}
	job := &models.AuditJob{
		ID:              "job-1",
		BrandName:       "Acme",
		Industry:        "plumbing",
		VisibilityScore: &score,
	}

	n.LeadCaptured(context.Background(), lead, job)

	require.Len(t, emailMock.calls, 1)
	input := emailMock.calls[0]
	assert.Equal(t, []string{"sales@visibility.test"}, input.Destination.ToAddresses)
	assert.Contains(t, *input.Message.Subject.Data, "owner@acme.test")
	assert.Contains(t, *input.Message.Body.Text.Data, "Acme")
	assert.Empty(t, smsMock.calls, "lead capture should not page via SMS")
}

func TestLeadCaptured_EmailDisabled(t *testing.T) {
	cfg := testNotifyConfig()
	cfg.Email.Enabled = false
	n, emailMock, _ := newTestNotifier(t, cfg)

	n.LeadCaptured(context.Background(), &models.AuditLead{Email: "a@b.test"}, &models.AuditJob{})

	assert.Empty(t, emailMock.calls)
}

func TestBetaApplicationReceived_QualifiedTriggersSMS(t *testing.T) {
	n, emailMock, smsMock := newTestNotifier(t, testNotifyConfig())

	app := &models.BetaApplication{
		FullName:           "Pat Doe",
		WorkEmail:          "pat@agency.test",
		AgencyName:         "Agency Co",
		ActiveClientsRange: "11-30",
		QualifiedStatus:    models.QualifiedStatusQualified,
	}
	n.BetaApplicationReceived(context.Background(), app)

	require.Len(t, emailMock.calls, 1)
	require.Len(t, smsMock.calls, 1)
	assert.Contains(t, *smsMock.calls[0].Message, "Agency Co")
}

func TestBetaApplicationReceived_ReviewSkipsSMS(t *testing.T) {
	n, emailMock, smsMock := newTestNotifier(t, testNotifyConfig())

	app := &models.BetaApplication{
		AgencyName:      "Agency Co",
		QualifiedStatus: models.QualifiedStatusReview,
	}
	n.BetaApplicationReceived(context.Background(), app)

	require.Len(t, emailMock.calls, 1)
	assert.Empty(t, smsMock.calls)
}

func TestSendEmail_FailureIsSwallowed(t *testing.T) {
	n, emailMock, _ := newTestNotifier(t, testNotifyConfig())
	emailMock.SendEmailFunc = func(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
		return nil, assert.AnError
	}

	// must not panic or propagate
	n.LeadCaptured(context.Background(), &models.AuditLead{Email: "a@b.test"}, &models.AuditJob{})
}
