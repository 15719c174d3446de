package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/aimonitoring/alert-engine/pkg/models"
)

// WebhookConfig holds the settings for the generic webhook driver
type WebhookConfig struct {
	Enabled        bool
	Timeout        time.Duration
	RetryOnFailure bool
	MaxAttempts    int
	BackoffDelay   time.Duration
}

// WebhookNotifier sends alert notifications to arbitrary HTTP endpoints
// with a configurable method, custom headers, and optional retry with
// exponential backoff.
type WebhookNotifier struct {
	cfg    WebhookConfig
	client *http.Client
}

// NewWebhookNotifier creates the generic webhook driver
func NewWebhookNotifier(cfg WebhookConfig) *WebhookNotifier {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BackoffDelay == 0 {
		cfg.BackoffDelay = 2 * time.Second
	}
	return &WebhookNotifier{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

func (w *WebhookNotifier) Enabled() bool {
	return w.cfg.Enabled
}

// Send delivers the alert payload to the channel's endpoint. When retry
// is enabled, transport failures are retried up to MaxAttempts with
// exponential backoff between attempts. The configured timeout applies
// to each attempt separately, so a timed-out attempt is retryable like
// any other transport failure.
func (w *WebhookNotifier) Send(ctx context.Context, alert *models.Alert, channel *models.NotificationChannel) error {
	if channel.WebhookURL == "" {
		return &Error{ChannelType: models.ChannelTypeWebhook, Message: "no webhook URL configured"}
	}
	method, err := webhookMethod(channel.WebhookMethod)
	if err != nil {
		return &Error{ChannelType: models.ChannelTypeWebhook, Message: "invalid configuration", Err: err}
	}

	payload := buildWebhookPayload(alert)
	headers := parseCustomHeaders(channel.WebhookHeaders)

	attempts := 1
	if w.cfg.RetryOnFailure {
		attempts = w.cfg.MaxAttempts
	}

	var lastErr error
	delay := w.cfg.BackoffDelay
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			logrus.Warnf("Retrying webhook notification for alert %s, attempt %d/%d", alert.ID, attempt, attempts)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return &Error{ChannelType: models.ChannelTypeWebhook, Message: "send cancelled", Err: ctx.Err()}
			}
			delay *= 2
		}
		if lastErr = w.attempt(ctx, method, channel.WebhookURL, headers, payload); lastErr == nil {
			logrus.Infof("Webhook notification sent for alert %s to %s", alert.ID, channel.WebhookURL)
			return nil
		}
	}
	return &Error{ChannelType: models.ChannelTypeWebhook,
		Message: fmt.Sprintf("send failed after %d attempt(s)", attempts), Err: lastErr}
}

// TestConnection delivers a synthetic payload to the endpoint, without
// retry and without touching channel counters.
func (w *WebhookNotifier) TestConnection(ctx context.Context, channel *models.NotificationChannel) bool {
	if channel.WebhookURL == "" {
		return false
	}
	method, err := webhookMethod(channel.WebhookMethod)
	if err != nil {
		return false
	}
	payload := map[string]interface{}{
		"test":      true,
		"message":   "Test notification from the alert engine",
		"timestamp": time.Now().UnixMilli(),
	}
	headers := parseCustomHeaders(channel.WebhookHeaders)
	if err := w.execute(ctx, method, channel.WebhookURL, headers, payload); err != nil {
		logrus.Errorf("Webhook connection test failed: %v", err)
		return false
	}
	return true
}

// attempt runs one delivery bounded by the per-attempt timeout
func (w *WebhookNotifier) attempt(ctx context.Context, method, url string, headers map[string]string, payload interface{}) error {
	attemptCtx, cancel := context.WithTimeout(ctx, w.cfg.Timeout)
	defer cancel()
	return w.execute(attemptCtx, method, url, headers, payload)
}

func (w *WebhookNotifier) execute(ctx context.Context, method, url string, headers map[string]string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook status %d", resp.StatusCode)
	}
	return nil
}

func webhookMethod(method string) (string, error) {
	switch strings.ToUpper(method) {
	case "", "POST":
		return http.MethodPost, nil
	case "PUT":
		return http.MethodPut, nil
	case "PATCH":
		return http.MethodPatch, nil
	default:
		return "", fmt.Errorf("unsupported HTTP method: %s", method)
	}
}

func buildWebhookPayload(alert *models.Alert) map[string]interface{} {
	payload := map[string]interface{}{
		"alert_id":    alert.ID,
		"title":       alert.Title,
		"description": alert.Description,
		"severity":    string(alert.Severity),
		"status":      string(alert.Status),
		"created_at":  alert.CreatedAt.Format(time.RFC3339),
		"alert_rule": map[string]interface{}{
			"id":   alert.RuleID,
			"name": alert.RuleName,
			"type": string(alert.RuleType),
		},
	}
	if alert.Service != "" {
		payload["service"] = alert.Service
	}
	if alert.AnomalyID != "" {
		payload["anomaly"] = map[string]interface{}{
			"detection_id": alert.AnomalyID,
			"log_id":       alert.LogID,
		}
	}
	if alert.Context != "" {
		var parsed map[string]interface{}
		if err := json.Unmarshal([]byte(alert.Context), &parsed); err == nil {
			payload["context"] = parsed
		} else {
			logrus.Warnf("Alert %s context is not valid JSON, embedding as string", alert.ID)
			payload["context"] = alert.Context
		}
	}
	payload["metadata"] = map[string]interface{}{
		"source":    "alert-engine",
		"timestamp": time.Now().UnixMilli(),
	}
	return payload
}

// parseCustomHeaders parses the channel's header configuration. The
// configuration comes from operators, so malformed JSON degrades to
// empty headers instead of failing the send.
func parseCustomHeaders(headersJSON string) map[string]string {
	if headersJSON == "" {
		return nil
	}
	var headers map[string]string
	if err := json.Unmarshal([]byte(headersJSON), &headers); err != nil {
		logrus.Warnf("Failed to parse custom webhook headers, using none: %v", err)
		return nil
	}
	return headers
}

var _ Notifier = (*WebhookNotifier)(nil)
