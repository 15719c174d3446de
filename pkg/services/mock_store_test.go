package services

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/aimonitoring/alert-engine/pkg/models"
	"github.com/aimonitoring/alert-engine/pkg/store"
)

// MockStore is a mock implementation of the store.Store interface
type MockStore struct {
	mock.Mock
}

// Ensure MockStore implements store.Store
var _ store.Store = (*MockStore)(nil)

func (m *MockStore) FindEnabledRulesByType(ctx context.Context, ruleType models.RuleType) ([]*models.AlertRule, error) {
	args := m.Called(ctx, ruleType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.AlertRule), args.Error(1)
}

func (m *MockStore) FindRule(ctx context.Context, id string) (*models.AlertRule, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AlertRule), args.Error(1)
}

func (m *MockStore) RecordRuleTriggered(ctx context.Context, id string, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

func (m *MockStore) FindEnabledChannelsByRule(ctx context.Context, ruleID string) ([]*models.NotificationChannel, error) {
	args := m.Called(ctx, ruleID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.NotificationChannel), args.Error(1)
}

func (m *MockStore) FindChannel(ctx context.Context, id string) (*models.NotificationChannel, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.NotificationChannel), args.Error(1)
}

func (m *MockStore) RecordChannelSuccess(ctx context.Context, id string, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

func (m *MockStore) RecordChannelFailure(ctx context.Context, id string, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

func (m *MockStore) ChannelStatistics(ctx context.Context, id string) (*models.ChannelStatistics, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ChannelStatistics), args.Error(1)
}

func (m *MockStore) CreateAlert(ctx context.Context, alert *models.Alert) (bool, error) {
	args := m.Called(ctx, alert)
	return args.Bool(0), args.Error(1)
}

func (m *MockStore) FindAlert(ctx context.Context, id string) (*models.Alert, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Alert), args.Error(1)
}

func (m *MockStore) FindAlertByRuleAndAnomaly(ctx context.Context, ruleID, anomalyID string) (*models.Alert, error) {
	args := m.Called(ctx, ruleID, anomalyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Alert), args.Error(1)
}

func (m *MockStore) TransitionAlertStatus(ctx context.Context, id string, from, to models.AlertStatus, actor, notes string) (*models.Alert, error) {
	args := m.Called(ctx, id, from, to, actor, notes)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Alert), args.Error(1)
}

func (m *MockStore) CountAlertsByRuleSince(ctx context.Context, ruleID string, since time.Time) (int64, error) {
	args := m.Called(ctx, ruleID, since)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStore) ListAlertsByStatus(ctx context.Context, status models.AlertStatus, limit int) ([]*models.Alert, error) {
	args := m.Called(ctx, status, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Alert), args.Error(1)
}

func (m *MockStore) ListRecentAlerts(ctx context.Context, since time.Time, limit int) ([]*models.Alert, error) {
	args := m.Called(ctx, since, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Alert), args.Error(1)
}

func (m *MockStore) AlertStatistics(ctx context.Context) (*models.AlertStatistics, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AlertStatistics), args.Error(1)
}

func (m *MockStore) MarkNotificationResult(ctx context.Context, alertID string, sent bool, failures int, lastError string) error {
	args := m.Called(ctx, alertID, sent, failures, lastError)
	return args.Error(0)
}

func (m *MockStore) FetchUnprocessedAnomalies(ctx context.Context, since time.Time, limit int) ([]*models.AnomalyDetection, error) {
	args := m.Called(ctx, since, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.AnomalyDetection), args.Error(1)
}

func (m *MockStore) FetchCriticalAnomalies(ctx context.Context, since time.Time, minConfidence, minScore float64, limit int) ([]*models.AnomalyDetection, error) {
	args := m.Called(ctx, since, minConfidence, minScore, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.AnomalyDetection), args.Error(1)
}

func (m *MockStore) CountAnomaliesSince(ctx context.Context, since time.Time) (int64, error) {
	args := m.Called(ctx, since)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStore) LoadWatermark(ctx context.Context) (time.Time, error) {
	args := m.Called(ctx)
	return args.Get(0).(time.Time), args.Error(1)
}

func (m *MockStore) SaveWatermark(ctx context.Context, at time.Time) error {
	args := m.Called(ctx, at)
	return args.Error(0)
}
