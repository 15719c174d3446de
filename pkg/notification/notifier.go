package notification

import (
	"context"
	"fmt"

	"github.com/aimonitoring/alert-engine/pkg/models"
)

// Error wraps a failed notification send. One channel's Error never
// fails the overall dispatch; the dispatcher records it on the channel's
// failure counters instead.
type Error struct {
	ChannelType models.ChannelType
	Message     string
	Err         error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s notification failed: %s: %v", e.ChannelType, e.Message, e.Err)
	}
	return fmt.Sprintf("%s notification failed: %s", e.ChannelType, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Notifier is the uniform contract implemented by every channel driver
type Notifier interface {
	// Enabled reports whether the channel type is enabled service-wide
	Enabled() bool
	// Send delivers an alert notification through the given channel
	Send(ctx context.Context, alert *models.Alert, channel *models.NotificationChannel) error
	// TestConnection sends a minimal synthetic payload and reports
	// success. It never mutates channel health counters.
	TestConnection(ctx context.Context, channel *models.NotificationChannel) bool
}

// Registry maps channel types to their drivers
type Registry map[models.ChannelType]Notifier

// For returns the driver for a channel type
func (r Registry) For(t models.ChannelType) (Notifier, bool) {
	n, ok := r[t]
	return n, ok
}
