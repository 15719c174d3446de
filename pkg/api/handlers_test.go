package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/aimonitoring/alert-engine/pkg/models"
	"github.com/aimonitoring/alert-engine/pkg/services"
	"github.com/aimonitoring/alert-engine/pkg/store"
)

// mockStore is a mock implementation of the store.Store interface
type mockStore struct {
	mock.Mock
}

var _ store.Store = (*mockStore)(nil)

func (m *mockStore) FindEnabledRulesByType(ctx context.Context, ruleType models.RuleType) ([]*models.AlertRule, error) {
	args := m.Called(ctx, ruleType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.AlertRule), args.Error(1)
}

func (m *mockStore) FindRule(ctx context.Context, id string) (*models.AlertRule, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AlertRule), args.Error(1)
}

func (m *mockStore) RecordRuleTriggered(ctx context.Context, id string, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

func (m *mockStore) FindEnabledChannelsByRule(ctx context.Context, ruleID string) ([]*models.NotificationChannel, error) {
	args := m.Called(ctx, ruleID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.NotificationChannel), args.Error(1)
}

func (m *mockStore) FindChannel(ctx context.Context, id string) (*models.NotificationChannel, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.NotificationChannel), args.Error(1)
}

func (m *mockStore) RecordChannelSuccess(ctx context.Context, id string, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

func (m *mockStore) RecordChannelFailure(ctx context.Context, id string, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

func (m *mockStore) ChannelStatistics(ctx context.Context, id string) (*models.ChannelStatistics, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ChannelStatistics), args.Error(1)
}

func (m *mockStore) CreateAlert(ctx context.Context, alert *models.Alert) (bool, error) {
	args := m.Called(ctx, alert)
	return args.Bool(0), args.Error(1)
}

func (m *mockStore) FindAlert(ctx context.Context, id string) (*models.Alert, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Alert), args.Error(1)
}

func (m *mockStore) FindAlertByRuleAndAnomaly(ctx context.Context, ruleID, anomalyID string) (*models.Alert, error) {
	args := m.Called(ctx, ruleID, anomalyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Alert), args.Error(1)
}

func (m *mockStore) TransitionAlertStatus(ctx context.Context, id string, from, to models.AlertStatus, actor, notes string) (*models.Alert, error) {
	args := m.Called(ctx, id, from, to, actor, notes)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Alert), args.Error(1)
}

func (m *mockStore) CountAlertsByRuleSince(ctx context.Context, ruleID string, since time.Time) (int64, error) {
	args := m.Called(ctx, ruleID, since)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockStore) ListAlertsByStatus(ctx context.Context, status models.AlertStatus, limit int) ([]*models.Alert, error) {
	args := m.Called(ctx, status, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Alert), args.Error(1)
}

func (m *mockStore) ListRecentAlerts(ctx context.Context, since time.Time, limit int) ([]*models.Alert, error) {
	args := m.Called(ctx, since, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Alert), args.Error(1)
}

func (m *mockStore) AlertStatistics(ctx context.Context) (*models.AlertStatistics, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AlertStatistics), args.Error(1)
}

func (m *mockStore) MarkNotificationResult(ctx context.Context, alertID string, sent bool, failures int, lastError string) error {
	args := m.Called(ctx, alertID, sent, failures, lastError)
	return args.Error(0)
}

func (m *mockStore) FetchUnprocessedAnomalies(ctx context.Context, since time.Time, limit int) ([]*models.AnomalyDetection, error) {
	args := m.Called(ctx, since, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.AnomalyDetection), args.Error(1)
}

func (m *mockStore) FetchCriticalAnomalies(ctx context.Context, since time.Time, minConfidence, minScore float64, limit int) ([]*models.AnomalyDetection, error) {
	args := m.Called(ctx, since, minConfidence, minScore, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.AnomalyDetection), args.Error(1)
}

func (m *mockStore) CountAnomaliesSince(ctx context.Context, since time.Time) (int64, error) {
	args := m.Called(ctx, since)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockStore) LoadWatermark(ctx context.Context) (time.Time, error) {
	args := m.Called(ctx)
	return args.Get(0).(time.Time), args.Error(1)
}

func (m *mockStore) SaveWatermark(ctx context.Context, at time.Time) error {
	args := m.Called(ctx, at)
	return args.Error(0)
}

// setupTestRouter creates a test router backed by the given store
func setupTestRouter(st store.Store) *echo.Echo {
	e := echo.New()

	engine := services.NewRuleEngine(st)
	limiter := services.NewRateLimiter(services.RateLimitConfig{Enabled: true})
	dispatcher := services.NewDispatcher(st, limiter, nil, services.DispatcherConfig{})
	alerts := services.NewAlertService(st, dispatcher)
	monitor := services.NewAnomalyMonitor(st, engine, dispatcher, services.MonitorConfig{Enabled: true})

	handler := NewAPIHandler(st, engine, dispatcher, alerts, limiter, monitor)
	handler.SetupRoutes(e)
	return e
}

func TestGetAlert(t *testing.T) {
	st := new(mockStore)
	router := setupTestRouter(st)

	alert := &models.Alert{
		ID:       "alert-1",
		RuleID:   "rule-1",
		Status:   models.AlertStatusOpen,
		Severity: models.SeverityHigh,
		Title:    "Anomaly Detected: cpu-spike - payment-service",
	}
	st.On("FindAlert", mock.Anything, "alert-1").Return(alert, nil)
	st.On("FindAlert", mock.Anything, "missing").Return(nil, store.ErrAlertNotFound)

	req := httptest.NewRequest(http.MethodGet, "/api/alerts/alert-1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got models.Alert
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "alert-1", got.ID)

	req = httptest.NewRequest(http.MethodGet, "/api/alerts/missing", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAcknowledgeAlert(t *testing.T) {
	st := new(mockStore)
	router := setupTestRouter(st)

	acked := &models.Alert{ID: "alert-1", Status: models.AlertStatusAcknowledged, AcknowledgedBy: "oncall"}
	st.On("TransitionAlertStatus", mock.Anything, "alert-1",
		models.AlertStatusOpen, models.AlertStatusAcknowledged, "oncall", "").Return(acked, nil)

	body, _ := json.Marshal(models.AcknowledgeAlertRequest{AcknowledgedBy: "oncall"})
	req := httptest.NewRequest(http.MethodPost, "/api/alerts/alert-1/acknowledge", bytes.NewBuffer(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got models.Alert
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, models.AlertStatusAcknowledged, got.Status)
	assert.Equal(t, "oncall", got.AcknowledgedBy)
}

func TestAcknowledgeAlertInvalidTransition(t *testing.T) {
	st := new(mockStore)
	router := setupTestRouter(st)

	st.On("TransitionAlertStatus", mock.Anything, "alert-1",
		models.AlertStatusOpen, models.AlertStatusAcknowledged, "oncall", "").
		Return(nil, &store.InvalidTransitionError{
			AlertID: "alert-1",
			From:    models.AlertStatusResolved,
			To:      models.AlertStatusAcknowledged,
		})

	body, _ := json.Marshal(models.AcknowledgeAlertRequest{AcknowledgedBy: "oncall"})
	req := httptest.NewRequest(http.MethodPost, "/api/alerts/alert-1/acknowledge", bytes.NewBuffer(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid alert transition")
}

func TestEvaluateAnomalyDryRun(t *testing.T) {
	st := new(mockStore)
	router := setupTestRouter(st)

	threshold := 0.70
	rule := &models.AlertRule{
		ID:               "rule-1",
		Name:             "cpu-spike",
		Type:             models.RuleTypeAnomalyDetection,
		Severity:         models.SeverityHigh,
		Enabled:          true,
		AnomalyThreshold: &threshold,
	}
	st.On("FindEnabledRulesByType", mock.Anything, models.RuleTypeAnomalyDetection).
		Return([]*models.AlertRule{rule}, nil)

	anomaly := models.AnomalyDetection{LogID: "log-1", IsAnomaly: true, Confidence: 0.9}
	body, _ := json.Marshal(anomaly)
	req := httptest.NewRequest(http.MethodPost, "/api/evaluate", bytes.NewBuffer(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got struct {
		AnomalyID    string              `json:"anomalyId"`
		MatchedRules []*models.AlertRule `json:"matchedRules"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "log-1", got.AnomalyID)
	require.Len(t, got.MatchedRules, 1)
	assert.Equal(t, "rule-1", got.MatchedRules[0].ID)

	// No alerts are created on the dry-run path
	st.AssertNotCalled(t, "CreateAlert", mock.Anything, mock.Anything)
}

func TestCreateManualAlertValidation(t *testing.T) {
	st := new(mockStore)
	router := setupTestRouter(st)

	body, _ := json.Marshal(models.CreateManualAlertRequest{Description: "no title"})
	req := httptest.NewRequest(http.MethodPost, "/api/alerts", bytes.NewBuffer(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetRateLimitConfig(t *testing.T) {
	st := new(mockStore)
	router := setupTestRouter(st)

	req := httptest.NewRequest(http.MethodGet, "/api/ratelimit/config", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, true, got["enabled"])
	assert.Equal(t, float64(10), got["maxAlertsPerRule"])
}

func TestGetAlertStatistics(t *testing.T) {
	st := new(mockStore)
	router := setupTestRouter(st)

	st.On("AlertStatistics", mock.Anything).Return(&models.AlertStatistics{
		Open: 3, Acknowledged: 1, Resolved: 5, Total: 9,
	}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/alerts/statistics", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got models.AlertStatistics
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, int64(3), got.Open)
	assert.Equal(t, int64(9), got.Total)
}

func TestGetAnomalyStatistics(t *testing.T) {
	st := new(mockStore)
	router := setupTestRouter(st)

	st.On("CountAnomaliesSince", mock.Anything, mock.Anything).Return(int64(12), nil)
	st.On("FetchUnprocessedAnomalies", mock.Anything, mock.Anything, mock.Anything).
		Return([]*models.AnomalyDetection{{LogID: "log-1", IsAnomaly: true}}, nil)
	st.On("FetchCriticalAnomalies", mock.Anything, mock.Anything, 0.8, 0.8, mock.Anything).
		Return([]*models.AnomalyDetection{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/monitoring/anomaly-statistics", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got models.AnomalyStatistics
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, int64(12), got.Total)
	assert.Equal(t, int64(1), got.Unprocessed)
	assert.Equal(t, int64(0), got.Critical)
}

func TestGetMonitoringStatus(t *testing.T) {
	st := new(mockStore)
	router := setupTestRouter(st)

	req := httptest.NewRequest(http.MethodGet, "/api/monitoring/status", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got services.MonitorStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.True(t, got.Enabled)
}
