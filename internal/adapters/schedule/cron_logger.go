package schedule

import (
	"log/slog"

	"github.com/robfig/cron/v3"
)

// cronLogger routes robfig/cron's internal logging to slog. Info messages
// are scheduler bookkeeping and go to debug.
type cronLogger struct {
	logger *slog.Logger
}

var _ cron.Logger = cronLogger{}

func newCronLogger(logger *slog.Logger) cronLogger {
	return cronLogger{logger: logger.With("component", "cron")}
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append([]any{"error", err}, keysAndValues...)...)
}
