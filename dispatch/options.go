package dispatch

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/amal-vs-thoughtminds/svclink/breaker"
	"github.com/amal-vs-thoughtminds/svclink/metric"
	"github.com/amal-vs-thoughtminds/svclink/pkg/retry"
	"github.com/amal-vs-thoughtminds/svclink/sink"
)

// Option configures a Client at construction time
type Option func(*Client)

// WithHTTPClient replaces the default pooled HTTP client
func WithHTTPClient(d Doer) Option {
	return func(c *Client) {
		if d != nil {
			c.httpc = d
		}
	}
}

// WithBreaker replaces the default circuit breaker, for sharing one breaker
// across several clients.
func WithBreaker(b *breaker.Breaker) Option {
	return func(c *Client) {
		if b != nil {
			c.brk = b
		}
	}
}

// WithRetryPolicy sets the default retry policy for all calls
func WithRetryPolicy(p retry.Policy) Option {
	return func(c *Client) {
		c.policy = p
	}
}

// WithMetrics attaches Prometheus instrumentation
func WithMetrics(m *metric.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithSink attaches an event sink for per-attempt dispatch events
func WithSink(s sink.Sink) Option {
	return func(c *Client) {
		if s != nil {
			c.events = s
		}
	}
}

// WithLogger sets the client's logger
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// callOptions are the per-call knobs, resolved from CallOption funcs
type callOptions struct {
	method          string
	timeout         time.Duration
	encryptRequest  bool
	encryptResponse bool
	headers         http.Header
	policy          retry.Policy
}

// newCallOptions applies defaults then the caller's options. Calls default to
// POST with both directions encrypted and a 30 second per-attempt timeout.
func newCallOptions(policy retry.Policy, opts []CallOption) callOptions {
	co := callOptions{
		method:          http.MethodPost,
		timeout:         30 * time.Second,
		encryptRequest:  true,
		encryptResponse: true,
		policy:          policy,
	}
	for _, opt := range opts {
		opt(&co)
	}
	return co
}

// CallOption configures a single call
type CallOption func(*callOptions)

// WithMethod sets the HTTP method (default POST)
func WithMethod(method string) CallOption {
	return func(co *callOptions) {
		co.method = method
	}
}

// WithTimeout sets the per-attempt timeout. Zero disables it; the caller's
// context still bounds the whole call.
func WithTimeout(d time.Duration) CallOption {
	return func(co *callOptions) {
		co.timeout = d
	}
}

// WithPlaintext disables encryption in both directions for this call
func WithPlaintext() CallOption {
	return func(co *callOptions) {
		co.encryptRequest = false
		co.encryptResponse = false
	}
}

// WithoutResponseEncryption sends the request encrypted but asks for a
// plaintext response.
func WithoutResponseEncryption() CallOption {
	return func(co *callOptions) {
		co.encryptResponse = false
	}
}

// WithHeader adds a header to the outbound request
func WithHeader(key, value string) CallOption {
	return func(co *callOptions) {
		if co.headers == nil {
			co.headers = make(http.Header)
		}
		co.headers.Add(key, value)
	}
}

// WithPolicy overrides the retry policy for this call
func WithPolicy(p retry.Policy) CallOption {
	return func(co *callOptions) {
		co.policy = p
	}
}
