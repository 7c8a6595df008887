// Package sink defines the structured event collaborator fed by the
// dispatcher and middleware.
package sink

import (
	"context"
	"log/slog"
	"time"
)

// Event describes one call attempt or middleware decision
type Event struct {
	Time      time.Time     `json:"time"`
	RequestID string        `json:"request_id,omitempty"`
	Service   string        `json:"service"`
	Endpoint  string        `json:"endpoint,omitempty"`
	Attempt   int           `json:"attempt,omitempty"`
	Outcome   string        `json:"outcome"`
	Status    int           `json:"status,omitempty"`
	Latency   time.Duration `json:"latency,omitempty"`
	Err       string        `json:"error,omitempty"`
}

// Sink receives structured events. Implementations must be safe for
// concurrent use and must not block the caller for long: emission happens on
// the request path.
type Sink interface {
	Emit(ctx context.Context, ev Event)
}

// NopSink discards all events
type NopSink struct{}

// Emit implements Sink
func (NopSink) Emit(context.Context, Event) {}

// SlogSink logs events through a slog.Logger
type SlogSink struct {
	logger *slog.Logger
}

// NewSlogSink creates a SlogSink. A nil logger falls back to slog.Default.
func NewSlogSink(logger *slog.Logger) *SlogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogSink{logger: logger}
}

// Emit implements Sink
func (s *SlogSink) Emit(ctx context.Context, ev Event) {
	attrs := []any{
		"service", ev.Service,
		"outcome", ev.Outcome,
	}
	if ev.RequestID != "" {
		attrs = append(attrs, "request_id", ev.RequestID)
	}
	if ev.Endpoint != "" {
		attrs = append(attrs, "endpoint", ev.Endpoint)
	}
	if ev.Attempt > 0 {
		attrs = append(attrs, "attempt", ev.Attempt)
	}
	if ev.Status > 0 {
		attrs = append(attrs, "status", ev.Status)
	}
	if ev.Latency > 0 {
		attrs = append(attrs, "latency", ev.Latency)
	}

	if ev.Err != "" {
		attrs = append(attrs, "error", ev.Err)
		s.logger.WarnContext(ctx, "dispatch attempt", attrs...)
		return
	}
	s.logger.InfoContext(ctx, "dispatch attempt", attrs...)
}

// MultiSink fans events out to several sinks in order
type MultiSink []Sink

// Emit implements Sink
func (m MultiSink) Emit(ctx context.Context, ev Event) {
	for _, s := range m {
		s.Emit(ctx, ev)
	}
}
