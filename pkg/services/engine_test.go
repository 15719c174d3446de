package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/aimonitoring/alert-engine/pkg/models"
)

func floatPtr(f float64) *float64 {
	return &f
}

func anomalyRule(name string) *models.AlertRule {
	return &models.AlertRule{
		ID:       "rule-" + name,
		Name:     name,
		Type:     models.RuleTypeAnomalyDetection,
		Severity: models.SeverityHigh,
		Enabled:  true,
	}
}

func sampleAnomaly() *models.AnomalyDetection {
	return &models.AnomalyDetection{
		LogID:      "log-123",
		IsAnomaly:  true,
		Confidence: 0.85,
		Service:    "payment-service",
		Level:      "ERROR",
		Message:    "connection pool exhausted",
	}
}

func TestEvaluateNonAnomalyNeverTriggers(t *testing.T) {
	engine := NewRuleEngine(nil)
	rule := anomalyRule("any-anomaly")
	anomaly := sampleAnomaly()
	anomaly.IsAnomaly = false
	anomaly.Confidence = 1.0

	assert.False(t, engine.Evaluate(rule, anomaly))
}

func TestEvaluateConfidenceThreshold(t *testing.T) {
	engine := NewRuleEngine(nil)
	rule := anomalyRule("high-confidence")
	rule.AnomalyThreshold = floatPtr(0.70)

	tests := []struct {
		name       string
		confidence float64
		want       bool
	}{
		{"below threshold", 0.69, false},
		{"equal to threshold", 0.70, true},
		{"above threshold", 0.71, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			anomaly := sampleAnomaly()
			anomaly.Confidence = tt.confidence
			assert.Equal(t, tt.want, engine.Evaluate(rule, anomaly))
		})
	}
}

func TestEvaluateNoThresholdTriggersOnAnyConfidence(t *testing.T) {
	engine := NewRuleEngine(nil)
	rule := anomalyRule("no-threshold")
	anomaly := sampleAnomaly()
	anomaly.Confidence = 0.01

	assert.True(t, engine.Evaluate(rule, anomaly))
}

func TestEvaluateServiceFilter(t *testing.T) {
	engine := NewRuleEngine(nil)
	rule := anomalyRule("payment-only")
	rule.Services = []string{"payment-service", "checkout-service"}

	anomaly := sampleAnomaly()
	assert.True(t, engine.Evaluate(rule, anomaly))

	anomaly.Service = "inventory-service"
	assert.False(t, engine.Evaluate(rule, anomaly))

	// An anomaly without a service never matches a service-scoped rule
	anomaly.Service = ""
	assert.False(t, engine.Evaluate(rule, anomaly))
}

func TestEvaluateLogLevelFilter(t *testing.T) {
	engine := NewRuleEngine(nil)
	rule := anomalyRule("errors-only")
	rule.LogLevels = []string{"ERROR", "FATAL"}

	anomaly := sampleAnomaly()
	assert.True(t, engine.Evaluate(rule, anomaly))

	anomaly.Level = "WARN"
	assert.False(t, engine.Evaluate(rule, anomaly))

	anomaly.Level = ""
	assert.False(t, engine.Evaluate(rule, anomaly))
}

func TestMatchingRulesReturnsOnlyTriggered(t *testing.T) {
	mockStore := new(MockStore)
	engine := NewRuleEngine(mockStore)

	matching := anomalyRule("matches")
	tooStrict := anomalyRule("too-strict")
	tooStrict.AnomalyThreshold = floatPtr(0.95)
	wrongService := anomalyRule("wrong-service")
	wrongService.Services = []string{"auth-service"}

	mockStore.On("FindEnabledRulesByType", mock.Anything, models.RuleTypeAnomalyDetection).
		Return([]*models.AlertRule{matching, tooStrict, wrongService}, nil)

	matched, err := engine.MatchingRules(context.Background(), sampleAnomaly())
	require.NoError(t, err)
	require.Len(t, matched, 1)
	assert.Equal(t, "matches", matched[0].Name)
	mockStore.AssertExpectations(t)
}

func TestEvaluateRuleDisabled(t *testing.T) {
	mockStore := new(MockStore)
	engine := NewRuleEngine(mockStore)

	rule := anomalyRule("disabled")
	rule.Enabled = false
	mockStore.On("FindRule", mock.Anything, rule.ID).Return(rule, nil)

	triggered, err := engine.EvaluateRule(context.Background(), rule.ID, sampleAnomaly())
	require.NoError(t, err)
	assert.False(t, triggered)
}

func TestEvaluateRuleWrongType(t *testing.T) {
	mockStore := new(MockStore)
	engine := NewRuleEngine(mockStore)

	rule := anomalyRule("threshold-rule")
	rule.Type = models.RuleTypeThreshold
	mockStore.On("FindRule", mock.Anything, rule.ID).Return(rule, nil)

	triggered, err := engine.EvaluateRule(context.Background(), rule.ID, sampleAnomaly())
	require.NoError(t, err)
	assert.False(t, triggered)
}

func TestTestRuleReportsEachCheck(t *testing.T) {
	engine := NewRuleEngine(nil)
	rule := anomalyRule("full-trace")
	rule.AnomalyThreshold = floatPtr(0.70)
	rule.Services = []string{"payment-service"}
	rule.LogLevels = []string{"ERROR"}

	result := engine.TestRule(rule, sampleAnomaly())

	assert.True(t, result.Triggered)
	assert.Equal(t, "full-trace", result.RuleName)
	assert.Equal(t, "log-123", result.AnomalyID)
	require.Len(t, result.Checks, 4)
	assert.Contains(t, result.Checks[0], "Anomaly flagged: true")
	assert.Contains(t, result.Checks[1], "0.85 >= 0.70 = true")
	assert.Contains(t, result.Checks[2], "payment-service")
	assert.Contains(t, result.Checks[3], "ERROR")
}

func TestTestRuleFailedCheckStillTraced(t *testing.T) {
	engine := NewRuleEngine(nil)
	rule := anomalyRule("strict")
	rule.AnomalyThreshold = floatPtr(0.95)

	result := engine.TestRule(rule, sampleAnomaly())

	assert.False(t, result.Triggered)
	require.Len(t, result.Checks, 2)
	assert.Contains(t, result.Checks[1], "0.85 >= 0.95 = false")
}
