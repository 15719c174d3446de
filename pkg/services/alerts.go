package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/aimonitoring/alert-engine/pkg/models"
	"github.com/aimonitoring/alert-engine/pkg/store"
)

// AlertService exposes alert lifecycle operations and queries. All
// state transitions go through the store's check-and-set contract; this
// layer adds logging and request validation.
type AlertService struct {
	st         store.Store
	dispatcher *Dispatcher
}

// NewAlertService creates an alert service
func NewAlertService(st store.Store, dispatcher *Dispatcher) *AlertService {
	return &AlertService{st: st, dispatcher: dispatcher}
}

// GetAlert returns an alert by ID
func (s *AlertService) GetAlert(ctx context.Context, id string) (*models.Alert, error) {
	return s.st.FindAlert(ctx, id)
}

// Acknowledge moves an OPEN alert to ACKNOWLEDGED
func (s *AlertService) Acknowledge(ctx context.Context, id, acknowledgedBy string) (*models.Alert, error) {
	alert, err := s.st.TransitionAlertStatus(ctx, id,
		models.AlertStatusOpen, models.AlertStatusAcknowledged, acknowledgedBy, "")
	if err != nil {
		return nil, err
	}
	logrus.Infof("Alert %s acknowledged by %s", id, acknowledgedBy)
	return alert, nil
}

// Resolve moves an alert to RESOLVED, from OPEN or ACKNOWLEDGED
func (s *AlertService) Resolve(ctx context.Context, id, resolvedBy, notes string) (*models.Alert, error) {
	current, err := s.st.FindAlert(ctx, id)
	if err != nil {
		return nil, err
	}
	alert, err := s.st.TransitionAlertStatus(ctx, id,
		current.Status, models.AlertStatusResolved, resolvedBy, notes)
	if err != nil {
		return nil, err
	}
	logrus.Infof("Alert %s resolved by %s", id, resolvedBy)
	return alert, nil
}

// MarkFalsePositive marks an alert as a false positive from any state
func (s *AlertService) MarkFalsePositive(ctx context.Context, id, markedBy string) (*models.Alert, error) {
	current, err := s.st.FindAlert(ctx, id)
	if err != nil {
		return nil, err
	}
	alert, err := s.st.TransitionAlertStatus(ctx, id,
		current.Status, models.AlertStatusFalsePositive, markedBy, "")
	if err != nil {
		return nil, err
	}
	logrus.Infof("Alert %s marked as false positive by %s", id, markedBy)
	return alert, nil
}

// CreateManualAlert creates an alert by hand against an existing rule,
// outside the anomaly pipeline, then fans out notifications.
func (s *AlertService) CreateManualAlert(ctx context.Context, req *models.CreateManualAlertRequest) (*models.Alert, error) {
	if req.Title == "" {
		return nil, fmt.Errorf("alert title is required")
	}
	rule, err := s.st.FindRule(ctx, req.RuleID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	alert := &models.Alert{
		ID:          uuid.New().String(),
		RuleID:      rule.ID,
		RuleName:    rule.Name,
		RuleType:    rule.Type,
		Status:      models.AlertStatusOpen,
		Severity:    rule.Severity,
		Title:       req.Title,
		Description: req.Description,
		Service:     req.Service,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, err := s.st.CreateAlert(ctx, alert); err != nil {
		return nil, fmt.Errorf("create manual alert: %w", err)
	}
	if err := s.st.RecordRuleTriggered(ctx, rule.ID, now); err != nil {
		logrus.Errorf("Failed to record trigger for rule %s: %v", rule.ID, err)
	}
	logrus.Infof("Manual alert created: id=%s rule=%s", alert.ID, rule.Name)

	if _, err := s.dispatcher.Notify(ctx, alert); err != nil {
		logrus.Errorf("Failed to notify for manual alert %s: %v", alert.ID, err)
	}
	return alert, nil
}

// RetryNotifications re-runs the notification fan-out for an alert
// whose sends previously failed.
func (s *AlertService) RetryNotifications(ctx context.Context, id string) error {
	alert, err := s.st.FindAlert(ctx, id)
	if err != nil {
		return err
	}
	if alert.NotificationSent {
		logrus.Warnf("Notifications already sent for alert %s", id)
		return nil
	}
	logrus.Infof("Retrying notifications for alert %s", id)
	if _, err := s.dispatcher.Notify(ctx, alert); err != nil {
		return err
	}
	return nil
}

// ListByStatus returns alerts in a given status, newest first
func (s *AlertService) ListByStatus(ctx context.Context, status models.AlertStatus, limit int) ([]*models.Alert, error) {
	return s.st.ListAlertsByStatus(ctx, status, limit)
}

// ListRecent returns alerts created within the past duration
func (s *AlertService) ListRecent(ctx context.Context, within time.Duration, limit int) ([]*models.Alert, error) {
	return s.st.ListRecentAlerts(ctx, time.Now().Add(-within), limit)
}

// Statistics returns alert counts by status
func (s *AlertService) Statistics(ctx context.Context) (*models.AlertStatistics, error) {
	return s.st.AlertStatistics(ctx)
}
