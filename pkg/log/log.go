// Package log configures the process-wide slog logger used by every
// hookflow binary and exposes helpers to derive per-module loggers.
package log

import (
	"log/slog"
	"os"
	"strings"
)

// Setup installs a text handler on stderr at the given level and makes it
// the default logger. Unknown levels fall back to info.
func Setup(logLevel string) *slog.Logger {
	var level slog.Level

	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))

	slog.SetDefault(logger)

	return logger
}

// WithModule returns a child of the default logger tagged with the module
// name, the convention every hookflow component follows.
func WithModule(module string) *slog.Logger {
	return slog.With("module", module)
}
