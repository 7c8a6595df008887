// Package testutil provides shared helpers for exercising the communication
// layer in tests: deterministic key rings, a recording event sink, and a
// function adapter for the dispatcher's transport.
package testutil

import (
	"context"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/amal-vs-thoughtminds/svclink/envelope"
	"github.com/amal-vs-thoughtminds/svclink/keyring"
	"github.com/amal-vs-thoughtminds/svclink/sink"
)

// RoundTripFunc adapts a function to the dispatcher's transport interface
type RoundTripFunc func(*http.Request) (*http.Response, error)

// Do implements dispatch.Doer
func (f RoundTripFunc) Do(req *http.Request) (*http.Response, error) {
	return f(req)
}

// PairedRings builds key rings for two services that each hold the other's
// key, derived deterministically from the service names.
func PairedRings(t *testing.T, serviceA, serviceB string) (*keyring.Ring, *keyring.Ring) {
	t.Helper()

	keyA := envelope.DeriveKey(serviceA + "-secret")
	keyB := envelope.DeriveKey(serviceB + "-secret")

	ringA, err := keyring.New(serviceA, keyA, map[string]envelope.Key{serviceB: keyB})
	require.NoError(t, err)
	ringB, err := keyring.New(serviceB, keyB, map[string]envelope.Key{serviceA: keyA})
	require.NoError(t, err)
	return ringA, ringB
}

// RecordingSink captures emitted events for assertions
type RecordingSink struct {
	mu     sync.Mutex
	events []sink.Event
}

// Emit implements sink.Sink
func (r *RecordingSink) Emit(_ context.Context, ev sink.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

// Events returns a copy of everything emitted so far
func (r *RecordingSink) Events() []sink.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]sink.Event, len(r.events))
	copy(out, r.events)
	return out
}

// Outcomes returns the outcome of each emitted event in order
func (r *RecordingSink) Outcomes() []string {
	events := r.Events()
	out := make([]string, len(events))
	for i, ev := range events {
		out[i] = ev.Outcome
	}
	return out
}
