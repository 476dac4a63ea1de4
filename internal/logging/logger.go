// Package logging builds the slog logger shared by the sync components.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// ParseLevel maps a level name to its slog level. Empty means info.
func ParseLevel(value string) (slog.Level, error) {
	switch Level(strings.ToLower(strings.TrimSpace(value))) {
	case "", LevelInfo:
		return slog.LevelInfo, nil
	case LevelDebug:
		return slog.LevelDebug, nil
	case LevelWarn:
		return slog.LevelWarn, nil
	case LevelError:
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q (expected debug, info, warn or error)", value)
	}
}

// New returns a text logger writing to w. Verbose forces debug regardless of level.
func New(w io.Writer, level string, verbose bool) (*slog.Logger, error) {
	minimum, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	if verbose {
		minimum = slog.LevelDebug
	}

	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: minimum})
	return slog.New(handler), nil
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// MaskSensitive masks sensitive data for logging.
func MaskSensitive(value string) string {
	if value == "" {
		return "<not set>"
	}
	if len(value) <= 4 {
		return "<set>"
	}
	return value[:4] + "..." + strings.Repeat("*", 3)
}
