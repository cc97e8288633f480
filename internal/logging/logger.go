package logging

import (
	"io"
	"log/slog"
	"os"
)

// NewLogger returns a JSON slog logger tagged with the service and environment.
// Unknown levels fall back to info.
func NewLogger(service, environment, level string) *slog.Logger {
	return newLogger(os.Stdout, service, environment, level)
}

func newLogger(w io.Writer, service, environment, level string) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)})
	return slog.New(handler).With(
		slog.String("service", service),
		slog.String("environment", environment),
	)
}

// ParseLevel maps debug|info|warn|error onto slog levels.
func ParseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Discard returns a logger that drops everything. Used by tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
