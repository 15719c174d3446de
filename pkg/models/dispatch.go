package models

import (
	"time"
)

// DispatchStatus summarizes the overall outcome of handling a trigger
type DispatchStatus string

const (
	DispatchStatusCreated             DispatchStatus = "created"
	DispatchStatusSuppressed          DispatchStatus = "suppressed"
	DispatchStatusCreatedWithFailures DispatchStatus = "created-with-notification-failures"
)

// ChannelOutcome records the result of one notification send attempt
type ChannelOutcome struct {
	ChannelID   string        `json:"channelId"`
	ChannelType ChannelType   `json:"channelType"`
	Success     bool          `json:"success"`
	Error       string        `json:"error,omitempty"`
	Duration    time.Duration `json:"durationNs"`
}

// DispatchResult is returned by the dispatcher for every handled
// trigger. AlertID is empty when the trigger was suppressed.
type DispatchResult struct {
	Status     DispatchStatus   `json:"status"`
	AlertID    string           `json:"alertId,omitempty"`
	RuleID     string           `json:"ruleId"`
	Suppressed bool             `json:"suppressed"`
	Reason     string           `json:"reason,omitempty"` // populated on suppression
	Outcomes   []ChannelOutcome `json:"outcomes"`
}

// FailureCount returns the number of failed channel sends
func (r *DispatchResult) FailureCount() int {
	n := 0
	for _, o := range r.Outcomes {
		if !o.Success {
			n++
		}
	}
	return n
}
