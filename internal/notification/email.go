package notification

import (
	"bytes"
	"fmt"
	"net/smtp"
	"strconv"
	"text/template"
	"time"

	"go.uber.org/zap"

	"github.com/smukkama/sentinel-server/internal/protocol"
	"github.com/smukkama/sentinel-server/pkg/config"
)

var criticalTemplate = template.Must(template.New("critical").Funcs(template.FuncMap{
	"value": func(v *float64) string {
		if v == nil {
			return "n/a"
		}
		return strconv.FormatFloat(*v, 'f', -1, 64)
	},
	"utc": func(t time.Time) string { return t.UTC().Format(time.RFC1123) },
}).Parse(`
Critical Alert
==============

{{.Title}}
{{.Message}}

Crew member: {{.UserID}}
Category: {{.Category}}
Type: {{.AnomalyType}}
Value: {{value .Value}}
Reading: {{.ReadingKind}} {{.ReadingID}}
Time: {{utc .Timestamp}}
Alert ID: {{.AlertID}}

Recommended action:
{{.Recommendation}}

---
Sentinel Notification System
`))

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// EmailNotifier emails mission control about critical alerts
type EmailNotifier struct {
	config *config.SMTPConfig
	logger *zap.Logger
	send   sendFunc
	now    func() time.Time
}

// NewEmailNotifier creates a new email notifier
func NewEmailNotifier(cfg *config.SMTPConfig, logger *zap.Logger) *EmailNotifier {
	return &EmailNotifier{
		config: cfg,
		logger: logger,
		send:   smtp.SendMail,
		now:    time.Now,
	}
}

// Notify emails CRITICAL alerts. WARNING alerts are acknowledged without
// email. The returned bool reports whether an email went out.
func (e *EmailNotifier) Notify(alert *protocol.AlertNotification) (bool, error) {
	if !alert.IsCritical() {
		e.logger.Debug("Skipping non-critical alert",
			zap.String("alert_id", alert.AlertID),
			zap.String("severity", alert.Severity))
		return false, nil
	}

	subject := fmt.Sprintf("CRITICAL: %s", alert.Title)
	body, err := renderCritical(alert)
	if err != nil {
		return false, fmt.Errorf("failed to render email template: %w", err)
	}

	return e.sendEmail(subject, body)
}

func renderCritical(alert *protocol.AlertNotification) (string, error) {
	var buf bytes.Buffer
	if err := criticalTemplate.Execute(&buf, alert); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Configured reports whether SMTP credentials are present
func (e *EmailNotifier) Configured() bool {
	return e.config.Host != "" && e.config.Username != "" && e.config.Password != ""
}

func (e *EmailNotifier) sendEmail(subject, body string) (bool, error) {
	if !e.Configured() {
		e.logger.Info("SMTP not configured, skipping email",
			zap.String("subject", subject),
			zap.String("body", body))
		return false, nil
	}

	message := fmt.Sprintf("From: %s\r\n", e.config.From)
	message += fmt.Sprintf("To: %s\r\n", e.config.To)
	message += fmt.Sprintf("Subject: %s\r\n", subject)
	message += fmt.Sprintf("Date: %s\r\n", e.now().Format(time.RFC1123Z))
	message += "Content-Type: text/plain; charset=UTF-8\r\n"
	message += "\r\n"
	message += body

	auth := smtp.PlainAuth("", e.config.Username, e.config.Password, e.config.Host)
	addr := fmt.Sprintf("%s:%d", e.config.Host, e.config.Port)
	if err := e.send(addr, auth, e.config.From, []string{e.config.To}, []byte(message)); err != nil {
		return false, fmt.Errorf("failed to send email: %w", err)
	}

	e.logger.Info("Email sent", zap.String("subject", subject))
	return true, nil
}

// TestConnection tests the SMTP connection
func (e *EmailNotifier) TestConnection() error {
	if !e.Configured() {
		return fmt.Errorf("SMTP not configured")
	}

	addr := fmt.Sprintf("%s:%d", e.config.Host, e.config.Port)
	client, err := smtp.Dial(addr)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer client.Close()

	return nil
}
