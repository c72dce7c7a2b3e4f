package notify

import (
	"context"
	"log/slog"

	"github.com/ammerola/stockbook/internal/core/ports"
)

// Logger writes notifications to a slog logger. It backs the worker and the
// CLI, which have no rendering layer.
type Logger struct {
	logger *slog.Logger
}

var _ ports.Notifier = (*Logger)(nil)

// NewLogger creates a logging notifier
func NewLogger(logger *slog.Logger) *Logger {
	return &Logger{logger: logger.With(slog.String("component", "notify"))}
}

// Notify implements ports.Notifier.
func (l *Logger) Notify(ctx context.Context, n ports.Notification) {
	level := slog.LevelInfo
	switch n.Kind {
	case ports.NotifyConflict, ports.NotifyTransient:
		level = slog.LevelWarn
	case ports.NotifyFatal:
		level = slog.LevelError
	}

	l.logger.Log(ctx, level, n.Message,
		slog.String("kind", string(n.Kind)),
		slog.String("collection", string(n.Collection)),
		slog.Bool("reload", n.Reload),
		slog.Bool("retry", n.Retry))
}
