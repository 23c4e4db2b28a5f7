package notify

import (
	"context"
	"log/slog"
)

// LogSender records notifications to the logger instead of delivering them.
// It is the default sender for deployments without a configured transport.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a log-only sender.
func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger.With("module", "notify_log_sender")}
}

// Send logs the notification and succeeds.
func (s *LogSender) Send(ctx context.Context, channel Channel, recipients []string, subject, message string) error {
	s.logger.InfoContext(ctx, "Notification delivered to log",
		"channel", string(channel),
		"recipients", recipients,
		"subject", subject,
		"message", message)

	return nil
}
