package models

import (
	"time"
)

// AlertStatus represents the lifecycle state of an alert
type AlertStatus string

const (
	AlertStatusOpen          AlertStatus = "OPEN"
	AlertStatusAcknowledged  AlertStatus = "ACKNOWLEDGED"
	AlertStatusResolved      AlertStatus = "RESOLVED"
	AlertStatusFalsePositive AlertStatus = "FALSE_POSITIVE"
)

// Terminal reports whether no further transitions are allowed out of
// the status, other than marking it a false positive.
func (s AlertStatus) Terminal() bool {
	return s == AlertStatusResolved || s == AlertStatusFalsePositive
}

// Alert represents a materialized alert instance created when a rule
// triggers. Severity is copied from the rule at creation time.
type Alert struct {
	ID          string      `json:"id"`
	RuleID      string      `json:"ruleId"`
	RuleName    string      `json:"ruleName"`
	RuleType    RuleType    `json:"ruleType"`
	Status      AlertStatus `json:"status"`
	Severity    Severity    `json:"severity"`
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	Service     string      `json:"service,omitempty"`
	AnomalyID   string      `json:"anomalyId,omitempty"` // lookup-only back-reference
	LogID       string      `json:"logId,omitempty"`
	Context     string      `json:"context,omitempty"` // opaque JSON blob
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`

	AcknowledgedAt  *time.Time `json:"acknowledgedAt,omitempty"`
	AcknowledgedBy  string     `json:"acknowledgedBy,omitempty"`
	ResolvedAt      *time.Time `json:"resolvedAt,omitempty"`
	ResolvedBy      string     `json:"resolvedBy,omitempty"`
	ResolutionNotes string     `json:"resolutionNotes,omitempty"`

	NotificationSent      bool       `json:"notificationSent"`
	NotificationSentAt    *time.Time `json:"notificationSentAt,omitempty"`
	NotificationFailures  int        `json:"notificationFailures"`
	LastNotificationError string     `json:"lastNotificationError,omitempty"`
}

// AcknowledgeAlertRequest is the payload for acknowledging an alert
type AcknowledgeAlertRequest struct {
	AcknowledgedBy string `json:"acknowledgedBy"`
}

// ResolveAlertRequest is the payload for resolving an alert
type ResolveAlertRequest struct {
	ResolvedBy string `json:"resolvedBy"`
	Notes      string `json:"notes,omitempty"`
}

// CreateManualAlertRequest is the payload for creating an alert by hand
// against an existing rule, outside the anomaly pipeline.
type CreateManualAlertRequest struct {
	RuleID      string `json:"ruleId"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Service     string `json:"service,omitempty"`
}

// AlertStatistics holds alert counts grouped by status
type AlertStatistics struct {
	Open          int64 `json:"open"`
	Acknowledged  int64 `json:"acknowledged"`
	Resolved      int64 `json:"resolved"`
	FalsePositive int64 `json:"falsePositive"`
	Total         int64 `json:"total"`
}
