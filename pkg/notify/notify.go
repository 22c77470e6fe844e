// Package notify forwards escalations to downstream systems (chat,
// dashboards). Sinks plug into the escalation manager as callbacks; sink
// failures are logged and never reach the caller, preserving the
// manager's guarantee that a broken downstream cannot block an
// escalation from being recorded.
package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/warden-ai/warden/pkg/escalation"
)

// Sink delivers one escalation to a downstream system.
type Sink interface {
	Publish(ctx context.Context, e *escalation.Escalation) error
}

// Callback adapts a sink into an escalation callback with a bounded
// delivery deadline.
func Callback(sink Sink, timeout time.Duration) escalation.Callback {
	return func(e *escalation.Escalation) error {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return sink.Publish(ctx, e)
	}
}

// SlogSink writes escalations to a structured logger. It is the fallback
// sink when no transport is configured.
type SlogSink struct {
	logger *slog.Logger
}

// NewSlogSink creates a sink over the given logger (default logger when
// nil).
func NewSlogSink(l *slog.Logger) *SlogSink {
	if l == nil {
		l = slog.Default()
	}
	return &SlogSink{logger: l}
}

// Publish logs the escalation at a level matching its severity.
func (s *SlogSink) Publish(ctx context.Context, e *escalation.Escalation) error {
	level := slog.LevelInfo
	switch e.Severity {
	case escalation.SeverityWarning:
		level = slog.LevelWarn
	case escalation.SeverityUrgent, escalation.SeverityCritical:
		level = slog.LevelError
	}
	s.logger.Log(ctx, level, "escalation",
		"id", e.ID,
		"type", string(e.Type),
		"severity", string(e.Severity),
		"agent", e.SourceAgent,
		"task", e.SourceTask,
		"description", e.Description,
	)
	return nil
}
