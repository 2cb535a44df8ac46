package logger

import (
	"log/slog"
	"os"
)

// New returns a JSON slog logger tagged with the service name. Level is
// controlled by CHRONICLE_LOG_LEVEL (debug|info|warn|error), defaulting to info.
func New(service string) *slog.Logger {
	level := slog.LevelInfo
	switch os.Getenv("CHRONICLE_LOG_LEVEL") {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	return slog.New(handler).With("service", service)
}
