// Package logger sets up the process-wide slog logger.
package logger

import (
	"io"
	"log/slog"
	"strings"
)

// Format selects the slog handler.
type Format int

const (
	Text Format = iota
	JSON
)

// ParseLevel maps a level name to a slog level. Unknown names give info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New builds a logger writing to w at the given level.
func New(w io.Writer, format Format, level string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var handler slog.Handler
	if format == JSON {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// Init builds a logger and installs it as the slog default.
func Init(w io.Writer, format Format, level string) *slog.Logger {
	l := New(w, format, level)
	slog.SetDefault(l)
	return l
}
