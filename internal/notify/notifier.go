// Package notify is the user-facing error/success reporting collaborator.
// It is fire-and-forget: callers never consume a return value.
package notify

import (
	"time"

	"github.com/ltavares/feira/internal/bus"
	"go.uber.org/zap"
)

// Notifier publishes toast-style notices on the bus and mirrors them to the log.
type Notifier struct {
	bus    *bus.Bus
	logger *zap.Logger
}

// New creates a notifier.
func New(b *bus.Bus, logger *zap.Logger) *Notifier {
	return &Notifier{bus: b, logger: logger}
}

// Error reports a failure to the user.
func (n *Notifier) Error(message string) {
	if n.logger != nil {
		n.logger.Warn("user-visible error", zap.String("message", message))
	}
	n.publish(bus.KindNotifyError, message)
}

// Success reports a completed action to the user.
func (n *Notifier) Success(message string) {
	if n.logger != nil {
		n.logger.Info("user-visible notice", zap.String("message", message))
	}
	n.publish(bus.KindNotifySuccess, message)
}

func (n *Notifier) publish(kind, message string) {
	if n.bus == nil {
		return
	}
	n.bus.Publish(bus.Event{
		Kind:      kind,
		Timestamp: time.Now(),
		Payload:   bus.Notice{Message: message},
	})
}
