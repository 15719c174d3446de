package notification

import (
	"context"
	"crypto/tls"
	"fmt"
	"html"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/aimonitoring/alert-engine/pkg/models"
)

// EmailConfig holds the SMTP transport settings for the email driver
type EmailConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
	UseTLS   bool
	Timeout  time.Duration
}

// EmailNotifier sends alert notifications over SMTP. Recipients come
// from the channel configuration as a comma-separated list.
type EmailNotifier struct {
	cfg EmailConfig
}

// NewEmailNotifier creates the email driver
func NewEmailNotifier(cfg EmailConfig) *EmailNotifier {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &EmailNotifier{cfg: cfg}
}

func (e *EmailNotifier) Enabled() bool {
	return e.cfg.Enabled
}

// Send renders the alert into an HTML body and delivers it to each
// configured recipient. No retry; that is left to the transport.
func (e *EmailNotifier) Send(ctx context.Context, alert *models.Alert, channel *models.NotificationChannel) error {
	recipients := splitRecipients(channel.Recipients)
	if len(recipients) == 0 {
		return &Error{ChannelType: models.ChannelTypeEmail, Message: "no recipients configured"}
	}

	subject := fmt.Sprintf("[%s] %s", alert.Severity, alert.Title)
	body := e.buildBody(alert)
	msg := buildMessage(e.fromHeader(), recipients, subject, body)

	if err := e.deliver(ctx, recipients, msg); err != nil {
		return &Error{ChannelType: models.ChannelTypeEmail, Message: "smtp send failed", Err: err}
	}
	logrus.Infof("Email notification sent for alert %s to %d recipient(s)", alert.ID, len(recipients))
	return nil
}

// TestConnection sends a synthetic test message to the channel's recipients
func (e *EmailNotifier) TestConnection(ctx context.Context, channel *models.NotificationChannel) bool {
	recipients := splitRecipients(channel.Recipients)
	if len(recipients) == 0 {
		return false
	}
	msg := buildMessage(e.fromHeader(), recipients, "Alert Engine Test",
		"<p>Test notification from the alert engine.</p>")
	if err := e.deliver(ctx, recipients, msg); err != nil {
		logrus.Errorf("Email connection test failed: %v", err)
		return false
	}
	return true
}

func (e *EmailNotifier) fromHeader() string {
	if e.cfg.FromName != "" {
		return fmt.Sprintf("%s <%s>", e.cfg.FromName, e.cfg.From)
	}
	return e.cfg.From
}

func (e *EmailNotifier) deliver(ctx context.Context, recipients []string, msg string) error {
	addr := fmt.Sprintf("%s:%d", e.cfg.Host, e.cfg.Port)

	dialer := net.Dialer{Timeout: e.cfg.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial smtp %s: %w", addr, err)
	}
	defer conn.Close()

	if e.cfg.UseTLS {
		tlsConn := tls.Client(conn, &tls.Config{ServerName: e.cfg.Host})
		if err := tlsConn.Handshake(); err != nil {
			return fmt.Errorf("tls handshake: %w", err)
		}
		conn = tlsConn
	}

	c, err := smtp.NewClient(conn, e.cfg.Host)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	defer c.Quit()

	if !e.cfg.UseTLS {
		if ok, _ := c.Extension("STARTTLS"); ok {
			if err := c.StartTLS(&tls.Config{ServerName: e.cfg.Host}); err != nil {
				return fmt.Errorf("starttls: %w", err)
			}
		}
	}
	if e.cfg.Username != "" {
		auth := smtp.PlainAuth("", e.cfg.Username, e.cfg.Password, e.cfg.Host)
		if err := c.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}

	if err := c.Mail(e.cfg.From); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	for _, rcpt := range recipients {
		if err := c.Rcpt(rcpt); err != nil {
			return fmt.Errorf("smtp rcpt %s: %w", rcpt, err)
		}
	}
	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write([]byte(msg)); err != nil {
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp close: %w", err)
	}
	return nil
}

func (e *EmailNotifier) buildBody(alert *models.Alert) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf(`<div class="card"><h2>%s %s Alert</h2><p>%s</p></div>`,
		severityGlyph(alert.Severity), alert.Severity, html.EscapeString(alert.Title)))
	b.WriteString("<table>")
	writeRow := func(k, v string) {
		if v != "" {
			b.WriteString(fmt.Sprintf("<tr><td><strong>%s</strong></td><td>%s</td></tr>", k, html.EscapeString(v)))
		}
	}
	writeRow("Rule", alert.RuleName)
	writeRow("Status", string(alert.Status))
	writeRow("Service", alert.Service)
	writeRow("Alert ID", alert.ID)
	writeRow("Created", alert.CreatedAt.Format("2006-01-02 15:04:05"))
	b.WriteString("</table>")
	if alert.Description != "" {
		b.WriteString(fmt.Sprintf(`<pre class="content">%s</pre>`, html.EscapeString(alert.Description)))
	}
	return b.String()
}

func buildMessage(from string, to []string, subject, htmlBody string) string {
	body := fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <style>
    body { font-family: -apple-system,Segoe UI,Roboto,Helvetica,Arial,sans-serif; margin: 20px; color: #333; }
    .card { border-radius: 10px; border: 1px solid #f5c6cb; background-color: #fdecea; padding: 16px 20px; margin-bottom: 20px; }
    .content { background: #f8f9fa; border-radius: 6px; padding: 12px 16px; white-space: pre-wrap; }
    table td { padding: 4px 12px 4px 0; }
  </style>
</head>
<body>%s</body>
</html>`, htmlBody)

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("From: %s\r\n", from))
	sb.WriteString(fmt.Sprintf("To: %s\r\n", strings.Join(to, ", ")))
	sb.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	sb.WriteString("MIME-Version: 1.0\r\n")
	sb.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	sb.WriteString("\r\n")
	sb.WriteString(body)
	return sb.String()
}

func splitRecipients(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

var _ Notifier = (*EmailNotifier)(nil)
