package models

import (
	"fmt"
	"time"
)

// RuleType classifies what kind of condition an alert rule watches.
type RuleType string

const (
	RuleTypeAnomalyDetection RuleType = "ANOMALY_DETECTION"
	RuleTypeThreshold        RuleType = "THRESHOLD"
	RuleTypePatternMatch     RuleType = "PATTERN_MATCH"
	RuleTypeErrorRate        RuleType = "ERROR_RATE"
	RuleTypeCustom           RuleType = "CUSTOM"
)

// Severity represents the severity level of a rule or alert
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
	SeverityInfo     Severity = "INFO"
)

// AlertRule represents a configured alert rule. Rules are created and
// updated through the external CRUD API; this service only reads them
// and filters on Enabled and Type.
type AlertRule struct {
	ID               string     `json:"id"`
	Name             string     `json:"name"`
	Description      string     `json:"description,omitempty"`
	Type             RuleType   `json:"type"`
	Severity         Severity   `json:"severity"`
	Enabled          bool       `json:"enabled"`
	AnomalyThreshold *float64   `json:"anomalyThreshold,omitempty"` // confidence cutoff in [0,1]
	Services         []string   `json:"services,omitempty"`
	LogLevels        []string   `json:"logLevels,omitempty"`
	CooldownMinutes  int        `json:"cooldownMinutes"`
	NotifyOnRecovery bool       `json:"notifyOnRecovery"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
	LastTriggeredAt  *time.Time `json:"lastTriggeredAt,omitempty"`
	TriggerCount     int64      `json:"triggerCount"`
}

// Validate checks rule configuration invariants
func (r *AlertRule) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("rule name is required")
	}
	if r.Type == RuleTypeAnomalyDetection && r.AnomalyThreshold != nil {
		if *r.AnomalyThreshold < 0 || *r.AnomalyThreshold > 1 {
			return fmt.Errorf("anomaly threshold %.2f out of range [0,1]", *r.AnomalyThreshold)
		}
	}
	return nil
}

// AnomalyDetection is an anomaly record produced by the upstream ML
// pipeline. Immutable once produced; this service never mutates it.
type AnomalyDetection struct {
	LogID      string    `json:"logId"`
	IsAnomaly  bool      `json:"isAnomaly"`
	Confidence float64   `json:"confidence"`
	Score      float64   `json:"anomalyScore"`
	Service    string    `json:"service,omitempty"`
	Level      string    `json:"level,omitempty"`
	Message    string    `json:"message,omitempty"`
	DetectedAt time.Time `json:"detectedAt"`
}

// AnomalyStatistics summarizes recent anomaly feed activity within the
// monitor's lookback window.
type AnomalyStatistics struct {
	Total         int64     `json:"totalAnomalies"`
	Unprocessed   int64     `json:"unprocessedCount"`
	Critical      int64     `json:"criticalCount"`
	TimeWindow    string    `json:"timeWindow"`
	LastCheckTime time.Time `json:"lastCheckTime"`
}

// RuleEvaluation carries the result of a dry-run rule test, with one
// entry in Checks per sub-check performed.
type RuleEvaluation struct {
	Triggered bool     `json:"triggered"`
	RuleName  string   `json:"ruleName"`
	AnomalyID string   `json:"anomalyId"`
	Checks    []string `json:"checks"`
}
