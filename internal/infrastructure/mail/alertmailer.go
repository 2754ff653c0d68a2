package mail

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gopkg.in/gomail.v2"

	"github.com/opencat-io/opencat/internal/shared/config"
	"github.com/opencat-io/opencat/internal/shared/logger"
)

// ErrMailerNotConfigured is returned when no SMTP host or operator address
// is configured.
var ErrMailerNotConfigured = errors.New("alert mailer not configured")

// DeadLetterSummary describes one dead-lettered delivery for the alert digest.
type DeadLetterSummary struct {
	DeliverySID    string
	EndpointURL    string
	EventType      string
	Attempts       int
	LastStatusCode int
	LastError      string
	DeadLetteredAt time.Time
}

// AlertMailer notifies the operator about deliveries that exhausted retries.
type AlertMailer interface {
	SendDeadLetterDigest(summaries []DeadLetterSummary) error
}

// SMTPAlertMailer implements AlertMailer over SMTP with gomail.
type SMTPAlertMailer struct {
	cfg    config.MailConfig
	dialer *gomail.Dialer
	logger logger.Interface
}

// NewSMTPAlertMailer creates an alert mailer from the mail configuration.
func NewSMTPAlertMailer(cfg config.MailConfig, logger logger.Interface) *SMTPAlertMailer {
	return &SMTPAlertMailer{
		cfg:    cfg,
		dialer: gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword),
		logger: logger,
	}
}

var _ AlertMailer = (*SMTPAlertMailer)(nil)

// SendDeadLetterDigest sends a single e-mail summarizing the given dead
// letters. An empty slice is a no-op.
func (m *SMTPAlertMailer) SendDeadLetterDigest(summaries []DeadLetterSummary) error {
	if len(summaries) == 0 {
		return nil
	}
	if m.cfg.SMTPHost == "" || m.cfg.OperatorAddress == "" {
		m.logger.Warnw("dead letter alert skipped, mailer not configured",
			"dead_letters", len(summaries))
		return ErrMailerNotConfigured
	}

	subject := fmt.Sprintf("[opencat] %d webhook deliveries dead-lettered", len(summaries))

	var plain strings.Builder
	var html strings.Builder
	plain.WriteString("The following webhook deliveries exhausted their retries:\n\n")
	html.WriteString("<html><body><h2>Dead-lettered webhook deliveries</h2><ul>")
	for _, s := range summaries {
		fmt.Fprintf(&plain, "- %s → %s (%s): %d attempts, last status %d, last error: %s, at %s\n",
			s.DeliverySID, s.EndpointURL, s.EventType, s.Attempts, s.LastStatusCode,
			s.LastError, s.DeadLetteredAt.UTC().Format(time.RFC3339))
		fmt.Fprintf(&html, "<li><b>%s</b> → %s (%s): %d attempts, last status %d, last error: %s, at %s</li>",
			s.DeliverySID, s.EndpointURL, s.EventType, s.Attempts, s.LastStatusCode,
			s.LastError, s.DeadLetteredAt.UTC().Format(time.RFC3339))
	}
	plain.WriteString("\nReplay them via POST /v1/deliveries/:sid/replay once the endpoint recovers.\n")
	html.WriteString("</ul><p>Replay them via <code>POST /v1/deliveries/:sid/replay</code> once the endpoint recovers.</p></body></html>")

	msg := gomail.NewMessage()
	msg.SetAddressHeader("From", m.cfg.FromAddress, m.cfg.FromName)
	msg.SetHeader("To", m.cfg.OperatorAddress)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", plain.String())
	msg.AddAlternative("text/html", html.String())

	if err := m.dialer.DialAndSend(msg); err != nil {
		m.logger.Errorw("failed to send dead letter digest",
			"operator", m.cfg.OperatorAddress,
			"dead_letters", len(summaries),
			"error", err)
		return fmt.Errorf("failed to send dead letter digest: %w", err)
	}

	m.logger.Infow("dead letter digest sent",
		"operator", m.cfg.OperatorAddress,
		"dead_letters", len(summaries))
	return nil
}
