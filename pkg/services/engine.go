package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/aimonitoring/alert-engine/pkg/models"
	"github.com/aimonitoring/alert-engine/pkg/store"
)

// RuleEngine evaluates alert rules against anomaly records. Evaluation
// is a pure function of (rule, anomaly); the engine has no side effects
// beyond diagnostic logging.
type RuleEngine struct {
	rules store.RuleStore
}

// NewRuleEngine creates a rule engine backed by the given rule store
func NewRuleEngine(rules store.RuleStore) *RuleEngine {
	return &RuleEngine{rules: rules}
}

// Evaluate reports whether a rule should trigger for an anomaly. The
// checks short-circuit on first failure, in order: anomaly flag,
// confidence threshold, service filter, log level filter.
func (e *RuleEngine) Evaluate(rule *models.AlertRule, anomaly *models.AnomalyDetection) bool {
	if !anomaly.IsAnomaly {
		return false
	}

	if rule.AnomalyThreshold != nil {
		// Strict less-than: confidence equal to the threshold passes.
		if anomaly.Confidence < *rule.AnomalyThreshold {
			logrus.Debugf("Anomaly confidence %.2f below threshold %.2f for rule %s",
				anomaly.Confidence, *rule.AnomalyThreshold, rule.Name)
			return false
		}
	}

	if len(rule.Services) > 0 {
		if anomaly.Service == "" || !contains(rule.Services, anomaly.Service) {
			logrus.Debugf("Service %q not in service list for rule %s", anomaly.Service, rule.Name)
			return false
		}
	}

	if len(rule.LogLevels) > 0 {
		if anomaly.Level == "" || !contains(rule.LogLevels, anomaly.Level) {
			logrus.Debugf("Log level %q not in level list for rule %s", anomaly.Level, rule.Name)
			return false
		}
	}

	return true
}

// MatchingRules returns all enabled anomaly detection rules that would
// trigger for the anomaly. Dry-run: no alerts are created.
func (e *RuleEngine) MatchingRules(ctx context.Context, anomaly *models.AnomalyDetection) ([]*models.AlertRule, error) {
	logrus.Debugf("Evaluating rules for anomaly %s", anomaly.LogID)

	rules, err := e.rules.FindEnabledRulesByType(ctx, models.RuleTypeAnomalyDetection)
	if err != nil {
		return nil, fmt.Errorf("load enabled rules: %w", err)
	}

	var matched []*models.AlertRule
	for _, rule := range rules {
		if e.Evaluate(rule, anomaly) {
			matched = append(matched, rule)
		}
	}
	return matched, nil
}

// EvaluateRule evaluates a single rule by ID against an anomaly
func (e *RuleEngine) EvaluateRule(ctx context.Context, ruleID string, anomaly *models.AnomalyDetection) (bool, error) {
	rule, err := e.rules.FindRule(ctx, ruleID)
	if err != nil {
		return false, err
	}
	if !rule.Enabled {
		logrus.Debugf("Rule %s is disabled", rule.Name)
		return false, nil
	}
	if rule.Type != models.RuleTypeAnomalyDetection {
		logrus.Warnf("Rule %s is not an anomaly detection rule", rule.Name)
		return false, nil
	}
	return e.Evaluate(rule, anomaly), nil
}

// TestRule evaluates a rule against sample data and returns a trace of
// each sub-check for rule-authoring diagnostics. Never creates an alert.
func (e *RuleEngine) TestRule(rule *models.AlertRule, anomaly *models.AnomalyDetection) *models.RuleEvaluation {
	result := &models.RuleEvaluation{
		Triggered: e.Evaluate(rule, anomaly),
		RuleName:  rule.Name,
		AnomalyID: anomaly.LogID,
	}

	result.Checks = append(result.Checks,
		fmt.Sprintf("Anomaly flagged: %t", anomaly.IsAnomaly))

	if rule.AnomalyThreshold != nil {
		result.Checks = append(result.Checks,
			fmt.Sprintf("Confidence check: %.2f >= %.2f = %t",
				anomaly.Confidence, *rule.AnomalyThreshold,
				anomaly.Confidence >= *rule.AnomalyThreshold))
	}

	if len(rule.Services) > 0 {
		result.Checks = append(result.Checks,
			fmt.Sprintf("Service check: %s in [%s] = %t",
				anomaly.Service, strings.Join(rule.Services, ", "),
				contains(rule.Services, anomaly.Service)))
	}

	if len(rule.LogLevels) > 0 {
		result.Checks = append(result.Checks,
			fmt.Sprintf("Log level check: %s in [%s] = %t",
				anomaly.Level, strings.Join(rule.LogLevels, ", "),
				contains(rule.LogLevels, anomaly.Level)))
	}

	return result
}

func contains(set []string, value string) bool {
	for _, s := range set {
		if s == value {
			return true
		}
	}
	return false
}
