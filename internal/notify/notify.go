// internal/notify/notify.go
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	awsclients "visibility-audit/internal/common/aws"
	"visibility-audit/internal/common/config"
	"visibility-audit/internal/common/logger"
	"visibility-audit/internal/models"
)

// Interfaces for mocking the AWS clients in tests.
type EmailSender interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type SMSSender interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// Notifier sends internal alerts when the funnel produces something worth a
// human's attention: a captured lead or a qualified beta application.
// Notifications are best-effort; failures are logged and never surfaced to
// the visitor.
type Notifier struct {
	cfg config.NotifyConfig
	ses EmailSender
	sns SMSSender
	log logger.Logger
}

func New(ctx context.Context, cfg config.NotifyConfig, log logger.Logger) (*Notifier, error) {
	clients, err := awsclients.NewClients(ctx, cfg.AWS.Region)
	if err != nil {
		return nil, fmt.Errorf("notify: %w", err)
	}
	return NewWithClients(cfg, clients.SES, clients.SNS, log), nil
}

func NewWithClients(cfg config.NotifyConfig, emailSender EmailSender, smsSender SMSSender, log logger.Logger) *Notifier {
	return &Notifier{
		cfg: cfg,
		ses: emailSender,
		sns: smsSender,
		log: log.WithFields(map[string]interface{}{"component": "notify"}),
	}
}

// LeadCaptured alerts the sales inbox about a new report-unlock lead.
func (n *Notifier) LeadCaptured(ctx context.Context, lead *models.AuditLead, job *models.AuditJob) {
	subject := fmt.Sprintf("New audit lead: %s", lead.Email)

	var b strings.Builder
	fmt.Fprintf(&b, "A visitor unlocked their audit report.\n\n")
	fmt.Fprintf(&b, "Email: %s\n", lead.Email)
	if lead.Name != "" {
		fmt.Fprintf(&b, "Name: %s\n", lead.Name)
	}
	if lead.AgencyName != "" {
		fmt.Fprintf(&b, "Agency: %s\n", lead.AgencyName)
	}
	fmt.Fprintf(&b, "Brand audited: %s (%s)\n", job.BrandName, job.Industry)
	if job.VisibilityScore != nil {
		fmt.Fprintf(&b, "Visibility score: %d\n", *job.VisibilityScore)
	}
	if lead.UTMSource != "" {
		fmt.Fprintf(&b, "Source: %s / %s / %s\n", lead.UTMSource, lead.UTMMedium, lead.UTMCampaign)
	}

	n.sendEmail(ctx, subject, b.String())
}

// BetaApplicationReceived alerts on a new beta submission. Qualified
// applications additionally trigger an SMS so sales can follow up same-day.
func (n *Notifier) BetaApplicationReceived(ctx context.Context, app *models.BetaApplication) {
	subject := fmt.Sprintf("Beta application: %s (%s)", app.AgencyName, app.QualifiedStatus)

	var b strings.Builder
	fmt.Fprintf(&b, "Name: %s\n", app.FullName)
	fmt.Fprintf(&b, "Email: %s\n", app.WorkEmail)
	fmt.Fprintf(&b, "Agency: %s\n", app.AgencyName)
	fmt.Fprintf(&b, "Active clients: %s\n", app.ActiveClientsRange)
	fmt.Fprintf(&b, "Services: %s\n", app.PrimaryServices)
	fmt.Fprintf(&b, "Challenge: %s\n", app.BiggestChallenge)
	fmt.Fprintf(&b, "Status: %s\n", app.QualifiedStatus)

	n.sendEmail(ctx, subject, b.String())

	if app.QualifiedStatus == models.QualifiedStatusQualified {
		n.sendSMS(ctx, fmt.Sprintf("Qualified beta application from %s (%s clients)",
			app.AgencyName, app.ActiveClientsRange))
	}
}

func (n *Notifier) sendEmail(ctx context.Context, subject, body string) {
	if !n.cfg.Email.Enabled || n.cfg.Email.ToEmail == "" {
		return
	}

	_, err := n.ses.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: []string{n.cfg.Email.ToEmail},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(body)},
			},
		},
		Source: aws.String(n.cfg.Email.FromEmail),
	})
	if err != nil {
		n.log.Error("email send failed", map[string]interface{}{
			"subject": subject,
			"error":   err.Error(),
		})
	}
}

func (n *Notifier) sendSMS(ctx context.Context, message string) {
	if !n.cfg.SMS.Enabled || n.cfg.SMS.PhoneNumber == "" {
		return
	}

	_, err := n.sns.Publish(ctx, &sns.PublishInput{
		PhoneNumber: aws.String(n.cfg.SMS.PhoneNumber),
		Message:     aws.String(message),
	})
	if err != nil {
		n.log.Error("SMS send failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}
