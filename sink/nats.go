package sink

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/nats-io/nats.go"
)

// DefaultSubjectPrefix is the root of the event subject hierarchy. Events
// for a peer publish to "<prefix>.dispatch.<service>".
const DefaultSubjectPrefix = "svclink"

// NATSSink publishes events as JSON to per-service NATS subjects so other
// systems can observe dispatch activity without scraping logs.
type NATSSink struct {
	conn   *nats.Conn
	prefix string
	logger *slog.Logger
}

// NewNATSSink wraps an established NATS connection. An empty prefix uses
// DefaultSubjectPrefix. The sink does not own the connection; the caller
// closes it.
func NewNATSSink(conn *nats.Conn, prefix string, logger *slog.Logger) *NATSSink {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &NATSSink{conn: conn, prefix: prefix, logger: logger}
}

// Emit implements Sink. Publish failures are logged and dropped: event
// delivery must never fail the call it describes.
func (s *NATSSink) Emit(_ context.Context, ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		s.logger.Warn("drop dispatch event", "error", err)
		return
	}

	subject := s.prefix + ".dispatch." + subjectToken(ev.Service)
	if err := s.conn.Publish(subject, payload); err != nil {
		s.logger.Warn("drop dispatch event", "subject", subject, "error", err)
	}
}

// subjectToken makes a service name safe for use as a NATS subject token
func subjectToken(service string) string {
	if service == "" {
		return "unknown"
	}
	replacer := strings.NewReplacer(".", "-", " ", "-", "*", "-", ">", "-")
	return replacer.Replace(service)
}
