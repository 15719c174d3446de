package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/aimonitoring/alert-engine/pkg/models"
)

// SlackConfig holds the settings for the Slack webhook driver
type SlackConfig struct {
	Enabled bool
	Timeout time.Duration
}

// SlackNotifier sends alert notifications to Slack incoming webhooks
// using a Block Kit payload plus a flat fallback text.
type SlackNotifier struct {
	cfg    SlackConfig
	client *http.Client
}

// NewSlackNotifier creates the Slack driver
func NewSlackNotifier(cfg SlackConfig) *SlackNotifier {
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &SlackNotifier{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

func (s *SlackNotifier) Enabled() bool {
	return s.cfg.Enabled
}

// Send posts the alert to the channel's webhook URL
func (s *SlackNotifier) Send(ctx context.Context, alert *models.Alert, channel *models.NotificationChannel) error {
	if channel.SlackWebhookURL == "" {
		return &Error{ChannelType: models.ChannelTypeSlack, Message: "no webhook URL configured"}
	}

	payload := buildSlackPayload(alert)
	if err := s.post(ctx, channel.SlackWebhookURL, payload); err != nil {
		return &Error{ChannelType: models.ChannelTypeSlack, Message: "webhook post failed", Err: err}
	}
	logrus.Infof("Slack notification sent for alert %s", alert.ID)
	return nil
}

// TestConnection sends a minimal test message to the webhook
func (s *SlackNotifier) TestConnection(ctx context.Context, channel *models.NotificationChannel) bool {
	if channel.SlackWebhookURL == "" {
		return false
	}
	payload := map[string]interface{}{
		"text": "Test message from the alert engine",
	}
	if err := s.post(ctx, channel.SlackWebhookURL, payload); err != nil {
		logrus.Errorf("Slack connection test failed: %v", err)
		return false
	}
	return true
}

func (s *SlackNotifier) post(ctx context.Context, url string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post to slack: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("slack webhook status %d", resp.StatusCode)
	}
	return nil
}

func buildSlackPayload(alert *models.Alert) map[string]interface{} {
	mrkdwn := func(text string) map[string]interface{} {
		return map[string]interface{}{"type": "mrkdwn", "text": text}
	}

	blocks := []map[string]interface{}{
		{
			"type": "header",
			"text": map[string]interface{}{
				"type":  "plain_text",
				"text":  fmt.Sprintf("🚨 %s Alert", alert.Severity),
				"emoji": true,
			},
		},
		{
			"type": "section",
			"text": mrkdwn(fmt.Sprintf("*%s*\n%s", alert.Title, alert.Description)),
		},
		{"type": "divider"},
		{
			"type": "section",
			"fields": []map[string]interface{}{
				mrkdwn(fmt.Sprintf("*Alert Rule:*\n%s", alert.RuleName)),
				mrkdwn(fmt.Sprintf("*Severity:*\n%s %s", severityGlyph(alert.Severity), alert.Severity)),
				mrkdwn(fmt.Sprintf("*Status:*\n%s", alert.Status)),
				mrkdwn(fmt.Sprintf("*Service:*\n%s", valueOrNA(alert.Service))),
				mrkdwn(fmt.Sprintf("*Created:*\n%s", alert.CreatedAt.Format("2006-01-02 15:04:05"))),
				mrkdwn(fmt.Sprintf("*Alert ID:*\n%s", alert.ID)),
			},
		},
		{
			"type": "context",
			"elements": []map[string]interface{}{
				mrkdwn("AI Log Monitoring System"),
			},
		},
	}

	return map[string]interface{}{
		"blocks": blocks,
		// Fallback for simple renderers and desktop notifications.
		"text": fmt.Sprintf("[%s] %s - %s", alert.Severity, alert.RuleName, alert.Title),
	}
}

func severityGlyph(severity models.Severity) string {
	switch severity {
	case models.SeverityCritical:
		return "🔴"
	case models.SeverityHigh:
		return "🟠"
	case models.SeverityMedium:
		return "🟡"
	case models.SeverityLow:
		return "🟢"
	default:
		return "🔵"
	}
}

func valueOrNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

var _ Notifier = (*SlackNotifier)(nil)
