package sink

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// recordingSink captures events for assertions
type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingSink) Emit(_ context.Context, ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func TestSlogSink_Emit(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	s := NewSlogSink(logger)

	s.Emit(context.Background(), Event{
		Time:      time.Now(),
		RequestID: "req-1",
		Service:   "user-service",
		Endpoint:  "/echo",
		Attempt:   2,
		Outcome:   "retried",
		Status:    503,
		Latency:   10 * time.Millisecond,
		Err:       "HTTP 503",
	})

	out := buf.String()
	assert.Contains(t, out, "user-service")
	assert.Contains(t, out, "req-1")
	assert.Contains(t, out, "retried")
	assert.Contains(t, out, "503")
	assert.Contains(t, out, "WARN")
}

func TestSlogSink_SuccessLogsInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	s := NewSlogSink(logger)

	s.Emit(context.Background(), Event{Service: "user-service", Outcome: "success"})

	assert.Contains(t, buf.String(), "INFO")
}

func TestMultiSink_FansOut(t *testing.T) {
	a := &recordingSink{}
	b := &recordingSink{}
	m := MultiSink{a, b}

	m.Emit(context.Background(), Event{Service: "peer", Outcome: "success"})

	assert.Len(t, a.events, 1)
	assert.Len(t, b.events, 1)
}

func TestNopSink(t *testing.T) {
	assert.NotPanics(t, func() {
		NopSink{}.Emit(context.Background(), Event{Service: "peer"})
	})
}

func TestSubjectToken(t *testing.T) {
	assert.Equal(t, "user-service", subjectToken("user-service"))
	assert.Equal(t, "a-b", subjectToken("a.b"))
	assert.Equal(t, "unknown", subjectToken(""))
}
