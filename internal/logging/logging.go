package logging

import (
	"log/slog"
	"os"
	"strings"
)

// Setup configures the default slog logger with a text handler on
// stderr and returns it. Unknown level strings fall back to info.
func Setup(level string) *slog.Logger {
	var l slog.Level
	switch strings.ToLower(level) {
	case "dev", "development", "debug":
		l = slog.LevelDebug
	case "warn", "warning":
		l = slog.LevelWarn
	case "error", "production", "prod":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}

	logger := slog.New(
		slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: l,
		}),
	)
	slog.SetDefault(logger)
	return logger
}
