package store

import (
	"github.com/aimonitoring/alert-engine/pkg/models"
)

// TransitionAllowed reports whether the alert lifecycle state machine
// permits moving from one status to another:
//
//	OPEN -> ACKNOWLEDGED -> RESOLVED
//	OPEN -> RESOLVED                 (acknowledgment may be skipped)
//	any non-terminal-false-positive state -> FALSE_POSITIVE
//
// RESOLVED and FALSE_POSITIVE are terminal apart from the false positive
// marking itself.
func TransitionAllowed(from, to models.AlertStatus) bool {
	if from == to {
		return false
	}
	switch to {
	case models.AlertStatusAcknowledged:
		return from == models.AlertStatusOpen
	case models.AlertStatusResolved:
		return from == models.AlertStatusOpen || from == models.AlertStatusAcknowledged
	case models.AlertStatusFalsePositive:
		return from != models.AlertStatusFalsePositive
	default:
		return false
	}
}
