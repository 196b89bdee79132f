package notify

import (
	"context"
	"log/slog"

	"ForumWatcher/internal/ports"
)

// LogNotifier writes alerts to the structured log. Used when no delivery channel is configured.
type LogNotifier struct {
	logger *slog.Logger
}

var _ ports.Notifier = (*LogNotifier)(nil)

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Send(ctx context.Context, message string) error {
	n.logger.InfoContext(ctx, "alert", "message", message)
	return nil
}
