package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aimonitoring/alert-engine/pkg/models"
)

// Sentinel errors surfaced to the API layer
var (
	ErrRuleNotFound    = errors.New("alert rule not found")
	ErrAlertNotFound   = errors.New("alert not found")
	ErrChannelNotFound = errors.New("notification channel not found")
)

// InvalidTransitionError is returned when an alert status change
// violates the lifecycle state machine.
type InvalidTransitionError struct {
	AlertID string
	From    models.AlertStatus
	To      models.AlertStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid alert transition for %s: %s -> %s", e.AlertID, e.From, e.To)
}

// RuleStore provides read access to alert rules. Rules are owned by the
// external CRUD API; this service never writes them except for trigger
// bookkeeping.
type RuleStore interface {
	FindEnabledRulesByType(ctx context.Context, ruleType models.RuleType) ([]*models.AlertRule, error)
	FindRule(ctx context.Context, id string) (*models.AlertRule, error)
	RecordRuleTriggered(ctx context.Context, id string, at time.Time) error
}

// ChannelStore provides access to notification channels and their
// health counters. Counters only ever increment.
type ChannelStore interface {
	FindEnabledChannelsByRule(ctx context.Context, ruleID string) ([]*models.NotificationChannel, error)
	FindChannel(ctx context.Context, id string) (*models.NotificationChannel, error)
	RecordChannelSuccess(ctx context.Context, id string, at time.Time) error
	RecordChannelFailure(ctx context.Context, id string, at time.Time) error
	ChannelStatistics(ctx context.Context, id string) (*models.ChannelStatistics, error)
}

// AlertStore owns alert persistence and the lifecycle state machine.
type AlertStore interface {
	// CreateAlert persists a new alert. Creation is idempotent per
	// (rule, anomaly) pair: when an alert already exists for the pair,
	// the existing alert is returned and created is false.
	CreateAlert(ctx context.Context, alert *models.Alert) (created bool, err error)

	FindAlert(ctx context.Context, id string) (*models.Alert, error)
	FindAlertByRuleAndAnomaly(ctx context.Context, ruleID, anomalyID string) (*models.Alert, error)

	// TransitionAlertStatus applies a status change with check-and-set
	// semantics on the current status. Returns *InvalidTransitionError
	// when the alert is not in the from state.
	TransitionAlertStatus(ctx context.Context, id string, from, to models.AlertStatus, actor, notes string) (*models.Alert, error)

	CountAlertsByRuleSince(ctx context.Context, ruleID string, since time.Time) (int64, error)
	ListAlertsByStatus(ctx context.Context, status models.AlertStatus, limit int) ([]*models.Alert, error)
	ListRecentAlerts(ctx context.Context, since time.Time, limit int) ([]*models.Alert, error)
	AlertStatistics(ctx context.Context) (*models.AlertStatistics, error)
	MarkNotificationResult(ctx context.Context, alertID string, sent bool, failures int, lastError string) error
}

// AnomalyFeed is the read-only boundary to the anomaly pipeline plus the
// watermark used to avoid reprocessing it.
type AnomalyFeed interface {
	// FetchUnprocessedAnomalies returns anomalies detected at or after
	// since, ordered by detection time ascending, at most limit rows.
	FetchUnprocessedAnomalies(ctx context.Context, since time.Time, limit int) ([]*models.AnomalyDetection, error)

	// FetchCriticalAnomalies returns anomalous records at or after since
	// whose confidence and score both meet the given minimums.
	FetchCriticalAnomalies(ctx context.Context, since time.Time, minConfidence, minScore float64, limit int) ([]*models.AnomalyDetection, error)

	CountAnomaliesSince(ctx context.Context, since time.Time) (int64, error)

	LoadWatermark(ctx context.Context) (time.Time, error)
	SaveWatermark(ctx context.Context, at time.Time) error
}

// Store aggregates all persistence boundaries consumed by the engine
type Store interface {
	RuleStore
	ChannelStore
	AlertStore
	AnomalyFeed
}
