// Package observability bridges session events into structured logs.
package observability

import (
	"context"
	"io"
	"log/slog"

	"github.com/shreedharv16/accesslint/agentloop"
)

// NewLogger creates a text slog.Logger for the CLI. Verbose mode lowers the
// level to debug.
func NewLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// LogEvents drains a session's event channel into the logger until the
// channel closes. The event kind becomes the log message and Data keys are
// flattened as attributes. Run it in its own goroutine alongside Start.
func LogEvents(logger *slog.Logger, events <-chan agentloop.SessionEvent) {
	for event := range events {
		attrs := make([]slog.Attr, 0, len(event.Data)+1)
		attrs = append(attrs, slog.String("session_id", event.SessionID))
		for k, v := range event.Data {
			attrs = append(attrs, slog.Any(k, v))
		}
		logger.LogAttrs(context.Background(), EventLevel(event.Kind), string(event.Kind), attrs...)
	}
}

// EventLevel maps an event kind to a log level.
func EventLevel(kind agentloop.EventKind) slog.Level {
	switch kind {
	case agentloop.EventError:
		return slog.LevelError
	case agentloop.EventWarning, agentloop.EventIntervention, agentloop.EventToolCallSuperseded:
		return slog.LevelWarn
	case agentloop.EventSessionStart, agentloop.EventSessionEnd, agentloop.EventStatusTransition:
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}
