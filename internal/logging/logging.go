package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// New creates a console text slog.Logger with provided level string.
func New(level string) *slog.Logger {
	return NewWithFormat(os.Stdout, level, "text")
}

// NewWithFormat builds a logger writing text or json records to w.
func NewWithFormat(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: LevelFromString(level)}

	var handler slog.Handler
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// LevelFromString maps a config value to a slog level; unknown values mean debug.
func LevelFromString(value string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "error":
		return slog.LevelError
	case "warn", "warning":
		return slog.LevelWarn
	case "info":
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}
