package observability

import (
	"log/slog"
	"os"
)

// NewLogger builds the process-wide JSON logger. Dev gets debug level and
// trace correlation comes from the TraceHandler decorator.
func NewLogger(env string) *slog.Logger {
	level := slog.LevelInfo

	if env == "dev" {
		level = slog.LevelDebug
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})

	return slog.New(NewTraceHandler(handler))
}
