// Package notification provides the outbound notifier implementations. The
// engine treats delivery as fire-and-forget: services invoke the notifier
// after the authoritative state transition commits and never roll back on a
// delivery failure.
package notification

import (
	"context"

	"github.com/rentworks/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// LogNotifier writes each notification to the structured log instead of an
// external channel. It stands in wherever a real delivery provider is not
// configured, keeping the template and variable contract observable.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a notifier that logs outbound notifications
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.Named("notifier")}
}

// Send logs the notification and always succeeds
func (n *LogNotifier) Send(_ context.Context, msg shared.Notification) error {
	fields := make([]zap.Field, 0, len(msg.Variables)+2)
	fields = append(fields,
		zap.String("recipient", msg.Recipient),
		zap.String("template", msg.Template),
	)
	for k, v := range msg.Variables {
		fields = append(fields, zap.String("var_"+k, v))
	}
	n.logger.Info("Notification dispatched", fields...)
	return nil
}
