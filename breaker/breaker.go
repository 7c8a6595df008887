// Package breaker implements a per-peer circuit breaker gating outbound
// calls.
package breaker

import (
	"sort"
	"sync"
	"time"

	"github.com/amal-vs-thoughtminds/svclink/errors"
)

// State is the circuit state for one peer
type State int

const (
	// StateClosed allows calls; failures are being counted
	StateClosed State = iota
	// StateOpen short-circuits calls until the cooldown elapses
	StateOpen
	// StateHalfOpen permits exactly one trial call to probe recovery
	StateHalfOpen
)

// String returns the string representation of State
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Config holds circuit breaker thresholds
type Config struct {
	FailureThreshold int           // Consecutive failures before opening
	Cooldown         time.Duration // Time in OPEN before a trial is permitted
}

// DefaultConfig returns sensible defaults for inter-service calls
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		Cooldown:         30 * time.Second,
	}
}

// peerState tracks one peer's circuit. All fields are guarded by mu.
type peerState struct {
	mu                  sync.Mutex
	current             State
	consecutiveFailures int
	openedAt            time.Time
	probing             bool // a HALF_OPEN trial is in flight
}

// Breaker tracks circuit state per peer. Peer state is created lazily on
// first use and lives for the process lifetime, reset only by successful
// calls or cooldown expiry.
type Breaker struct {
	cfg Config

	mu    sync.RWMutex
	peers map[string]*peerState

	// now is replaceable in tests for deterministic cooldown behavior
	now func() time.Time
}

// New creates a breaker with the given thresholds, applying defaults for
// zero values.
func New(cfg Config) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = DefaultConfig().FailureThreshold
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultConfig().Cooldown
	}
	return &Breaker{
		cfg:   cfg,
		peers: make(map[string]*peerState),
		now:   time.Now,
	}
}

// state returns the peer's state record, creating it on first use
func (b *Breaker) state(service string) *peerState {
	b.mu.RLock()
	ps, ok := b.peers[service]
	b.mu.RUnlock()
	if ok {
		return ps
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if ps, ok = b.peers[service]; ok {
		return ps
	}
	ps = &peerState{current: StateClosed}
	b.peers[service] = ps
	return ps
}

// Allow reports whether a call to the peer may proceed. While OPEN and
// before the cooldown elapses it fails with CircuitOpenError carrying the
// remaining cooldown. Once the cooldown elapses, exactly one caller is
// admitted as the HALF_OPEN trial; concurrent callers keep receiving
// CircuitOpenError until that trial resolves via RecordSuccess,
// RecordFailure, or RecordCancel.
func (b *Breaker) Allow(service string) error {
	ps := b.state(service)
	ps.mu.Lock()
	defer ps.mu.Unlock()

	switch ps.current {
	case StateClosed:
		return nil

	case StateOpen:
		remaining := b.cfg.Cooldown - b.now().Sub(ps.openedAt)
		if remaining > 0 {
			return &errors.CircuitOpenError{Service: service, RetryAfter: remaining}
		}
		// Cooldown elapsed: this caller becomes the trial
		ps.current = StateHalfOpen
		ps.probing = true
		return nil

	case StateHalfOpen:
		if ps.probing {
			return &errors.CircuitOpenError{Service: service, RetryAfter: 0}
		}
		ps.probing = true
		return nil

	default:
		return nil
	}
}

// RecordSuccess reports a successful call: the circuit closes and the
// failure count resets.
func (b *Breaker) RecordSuccess(service string) {
	ps := b.state(service)
	ps.mu.Lock()
	defer ps.mu.Unlock()

	ps.current = StateClosed
	ps.consecutiveFailures = 0
	ps.openedAt = time.Time{}
	ps.probing = false
}

// RecordFailure reports a failed call. In CLOSED, the failure count
// increments and the circuit opens at the threshold. A failed HALF_OPEN
// trial re-opens the circuit with a fresh cooldown. Failures reported while
// already OPEN (stragglers that were in flight when the circuit opened) do
// not extend the cooldown.
func (b *Breaker) RecordFailure(service string) {
	ps := b.state(service)
	ps.mu.Lock()
	defer ps.mu.Unlock()

	ps.consecutiveFailures++

	switch ps.current {
	case StateClosed:
		if ps.consecutiveFailures >= b.cfg.FailureThreshold {
			ps.current = StateOpen
			ps.openedAt = b.now()
		}
	case StateHalfOpen:
		ps.current = StateOpen
		ps.openedAt = b.now()
		ps.probing = false
	}
}

// RecordCancel reports that a call was cancelled before producing a verdict.
// Cancellation is not evidence about the peer's health: a cancelled HALF_OPEN
// trial returns the circuit to OPEN with its original openedAt, freeing the
// trial slot without restarting the cooldown. In other states it is a no-op.
func (b *Breaker) RecordCancel(service string) {
	ps := b.state(service)
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if ps.current == StateHalfOpen {
		ps.current = StateOpen
		ps.probing = false
	}
}

// PeerStatus is a point-in-time view of one peer's circuit for diagnostics
type PeerStatus struct {
	Service             string        `json:"service"`
	State               string        `json:"state"`
	ConsecutiveFailures int           `json:"consecutive_failures"`
	OpenedAt            time.Time     `json:"opened_at,omitempty"`
	RetryAfter          time.Duration `json:"retry_after,omitempty"`
}

// Status returns the current status for one peer
func (b *Breaker) Status(service string) PeerStatus {
	ps := b.state(service)
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return b.statusLocked(service, ps)
}

// Snapshot returns the status of every tracked peer, ordered by name
func (b *Breaker) Snapshot() []PeerStatus {
	b.mu.RLock()
	names := make([]string, 0, len(b.peers))
	for name := range b.peers {
		names = append(names, name)
	}
	b.mu.RUnlock()

	sort.Strings(names)

	out := make([]PeerStatus, 0, len(names))
	for _, name := range names {
		out = append(out, b.Status(name))
	}
	return out
}

// statusLocked builds a PeerStatus; ps.mu must be held
func (b *Breaker) statusLocked(service string, ps *peerState) PeerStatus {
	st := PeerStatus{
		Service:             service,
		State:               ps.current.String(),
		ConsecutiveFailures: ps.consecutiveFailures,
		OpenedAt:            ps.openedAt,
	}
	if ps.current == StateOpen {
		if remaining := b.cfg.Cooldown - b.now().Sub(ps.openedAt); remaining > 0 {
			st.RetryAfter = remaining
		}
	}
	return st
}
