package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/amal-vs-thoughtminds/svclink/breaker"
	"github.com/amal-vs-thoughtminds/svclink/envelope"
	"github.com/amal-vs-thoughtminds/svclink/errors"
	"github.com/amal-vs-thoughtminds/svclink/keyring"
	"github.com/amal-vs-thoughtminds/svclink/metric"
	"github.com/amal-vs-thoughtminds/svclink/pkg/retry"
	"github.com/amal-vs-thoughtminds/svclink/registry"
	"github.com/amal-vs-thoughtminds/svclink/sink"
	"github.com/amal-vs-thoughtminds/svclink/wire"
)

// Doer executes a single HTTP request. *http.Client satisfies it; tests
// substitute fakes.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client dispatches calls to registered peers with encryption, retry, and
// circuit breaking. Safe for concurrent use; construct once per process and
// share.
type Client struct {
	reg     *registry.Registry
	ring    *keyring.Ring
	brk     *breaker.Breaker
	policy  retry.Policy
	httpc   Doer
	metrics *metric.Metrics
	events  sink.Sink
	logger  *slog.Logger
}

// NewClient creates a dispatcher over the given registry and key ring.
// Collaborators not supplied through options get defaults: a pooled HTTP
// client, a breaker with default thresholds, the default retry policy, and a
// no-op event sink.
func NewClient(reg *registry.Registry, ring *keyring.Ring, opts ...Option) (*Client, error) {
	if reg == nil {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "Client", "NewClient", "registry required")
	}
	if ring == nil {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "Client", "NewClient", "key ring required")
	}

	c := &Client{
		reg:    reg,
		ring:   ring,
		brk:    breaker.New(breaker.DefaultConfig()),
		policy: retry.DefaultPolicy(),
		httpc:  newPooledClient(),
		events: sink.NopSink{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if err := c.policy.Validate(); err != nil {
		return nil, errors.WrapInvalid(err, "Client", "NewClient", "validate retry policy")
	}
	return c, nil
}

// newPooledClient builds the default transport. http.Transport keeps an idle
// connection pool per host, so each peer gets its own pool.
func newPooledClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		},
	}
}

// Breaker returns the client's circuit breaker, for status endpoints.
func (c *Client) Breaker() *breaker.Breaker {
	return c.brk
}

// Result is the outcome of a successful call.
type Result struct {
	Status    int
	Body      []byte
	Header    http.Header
	Attempts  int
	Decrypted bool
	RequestID string
}

// Call dispatches a request to a registered service. The flow is: resolve the
// target, consult the circuit breaker, seal the payload with this service's
// own key, then attempt the request under the retry policy. 5xx responses and
// transport failures are retried; 4xx responses fail immediately and never
// count toward the breaker. Encrypted responses are opened with the key named
// by the response's encryption header.
func (c *Client) Call(ctx context.Context, service, endpoint string, payload []byte, opts ...CallOption) (*Result, error) {
	co := newCallOptions(c.policy, opts)

	desc, err := c.reg.Resolve(service)
	if err != nil {
		return nil, err
	}
	target := joinURL(desc.BaseURL, endpoint)

	if err := c.brk.Allow(service); err != nil {
		c.observe(ctx, sink.Event{
			Service:  service,
			Endpoint: endpoint,
			Outcome:  metric.OutcomeCircuitOpen,
			Err:      err.Error(),
		})
		return nil, err
	}

	requestID := uuid.NewString()
	body, header, err := c.encodeRequest(requestID, payload, co)
	if err != nil {
		// The breaker may have admitted this call as its HALF_OPEN trial;
		// free the slot since no request will be made.
		c.brk.RecordCancel(service)
		return nil, err
	}

	var (
		result   *Result
		attempts int
		lastErr  error
	)

	retryErr := retry.Do(ctx, co.policy, func() error {
		attempts++
		start := time.Now()

		res, attemptErr := c.attempt(ctx, target, body, header, co)
		latency := time.Since(start)

		if attemptErr != nil {
			lastErr = attemptErr
			if res != nil {
				result = res
			}
			return attemptErr
		}

		result = res
		c.observe(ctx, sink.Event{
			RequestID: requestID,
			Service:   service,
			Endpoint:  endpoint,
			Attempt:   attempts,
			Outcome:   metric.OutcomeSuccess,
			Status:    res.Status,
			Latency:   latency,
		})
		c.observeMetric(service, metric.OutcomeSuccess, latency)
		return nil
	}, func(attempt int, attemptErr error) {
		c.observe(ctx, sink.Event{
			RequestID: requestID,
			Service:   service,
			Endpoint:  endpoint,
			Attempt:   attempt,
			Outcome:   metric.OutcomeRetried,
			Status:    statusOf(attemptErr),
			Err:       attemptErr.Error(),
		})
		c.observeMetric(service, metric.OutcomeRetried, 0)
	})

	if retryErr != nil {
		return nil, c.finishFailure(ctx, service, endpoint, requestID, attempts, lastErr, retryErr)
	}

	c.brk.RecordSuccess(service)
	c.setCircuitMetric(service)

	result.Attempts = attempts
	result.RequestID = requestID

	if err := c.decodeResponse(result); err != nil {
		return nil, err
	}
	return result, nil
}

// finishFailure settles breaker accounting for a failed call and builds the
// returned DispatchError. Cancellation frees a trial slot without counting as
// evidence; invalid (4xx-class) failures never count toward the breaker.
func (c *Client) finishFailure(ctx context.Context, service, endpoint, requestID string, attempts int, lastErr, retryErr error) error {
	cause := lastErr
	if cause == nil {
		cause = retryErr
	}

	outcome := metric.OutcomeError
	switch {
	case ctx.Err() != nil:
		outcome = metric.OutcomeCancelled
		c.brk.RecordCancel(service)
	case errors.IsInvalid(cause):
		c.brk.RecordCancel(service)
	default:
		c.brk.RecordFailure(service)
	}
	c.setCircuitMetric(service)

	c.observe(ctx, sink.Event{
		RequestID: requestID,
		Service:   service,
		Endpoint:  endpoint,
		Attempt:   attempts,
		Outcome:   outcome,
		Status:    statusOf(cause),
		Err:       cause.Error(),
	})
	c.observeMetric(service, outcome, 0)

	return &errors.DispatchError{Service: service, Attempts: attempts, LastCause: cause}
}

// encodeRequest builds the request body and headers. With encryption enabled
// the payload is sealed with this service's own key and the envelope header
// names this service, so the receiver knows which peer key opens it.
func (c *Client) encodeRequest(requestID string, payload []byte, co callOptions) ([]byte, http.Header, error) {
	header := make(http.Header)
	header.Set("Content-Type", "application/json")
	header.Set("Accept", "application/json")
	header.Set(wire.HeaderRequestID, requestID)
	for k, vs := range co.headers {
		for _, v := range vs {
			header.Add(k, v)
		}
	}

	body := payload
	if co.encryptRequest && len(payload) > 0 {
		env, err := envelope.New(c.ring.Owner(), c.ring.Own(), payload)
		if err != nil {
			return nil, nil, err
		}
		body, err = json.Marshal(env)
		if err != nil {
			return nil, nil, errors.WrapInvalid(err, "Client", "encodeRequest", "marshal envelope")
		}
		header.Set(wire.HeaderCommunication, wire.ValueEncrypted)
		header.Set(wire.HeaderEncryptionService, c.ring.Owner())
	}
	if co.encryptResponse {
		header.Set(wire.HeaderEncryptResponse, wire.ValueTrue)
	}
	return body, header, nil
}

// attempt performs one HTTP exchange. Transport failures and 5xx responses
// come back retryable; 4xx responses come back wrapped NonRetryable.
func (c *Client) attempt(ctx context.Context, target string, body []byte, header http.Header, co callOptions) (*Result, error) {
	actx := ctx
	if co.timeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, co.timeout)
		defer cancel()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(actx, co.method, target, reader)
	if err != nil {
		return nil, retry.NonRetryable(errors.WrapInvalid(err, "Client", "attempt", "build request"))
	}
	req.Header = header.Clone()

	resp, err := c.httpc.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		if stderrors.Is(err, context.DeadlineExceeded) {
			return nil, errors.WrapTransient(
				fmt.Errorf("%w: %v", errors.ErrConnectionTimeout, err),
				"Client", "attempt", "await response")
		}
		return nil, errors.WrapTransient(
			fmt.Errorf("%w: %v", errors.ErrServiceUnavailable, err),
			"Client", "attempt", "connect to peer")
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.WrapTransient(err, "Client", "attempt", "read response body")
	}

	res := &Result{
		Status: resp.StatusCode,
		Body:   data,
		Header: resp.Header.Clone(),
	}

	if resp.StatusCode >= 400 {
		se := &errors.StatusError{Service: req.URL.Host, Code: resp.StatusCode, Status: resp.Status}
		if !se.Retryable() {
			return res, retry.NonRetryable(se)
		}
		return res, se
	}
	return res, nil
}

// decodeResponse opens an encrypted response body in place. The key is named
// by the response's encryption header (falling back to the envelope's own
// label); a missing key or failed authentication is an error, never a silent
// fall-through to ciphertext.
func (c *Client) decodeResponse(res *Result) error {
	if res.Header.Get(wire.HeaderCommunication) != wire.ValueEncrypted {
		return nil
	}

	var env envelope.Envelope
	if err := json.Unmarshal(res.Body, &env); err != nil {
		return errors.WrapInvalid(
			fmt.Errorf("%w: %v", errors.ErrInvalidPayload, err),
			"Client", "decodeResponse", "unmarshal envelope")
	}

	label := res.Header.Get(wire.HeaderEncryptionService)
	if label == "" {
		label = env.Service
	}
	key, err := c.ring.Key(label)
	if err != nil {
		return err
	}

	plain, err := env.Open(key)
	if err != nil {
		return err
	}
	res.Body = plain
	res.Decrypted = true
	return nil
}

// observe emits one event, stamping the time
func (c *Client) observe(ctx context.Context, ev sink.Event) {
	ev.Time = time.Now()
	c.events.Emit(ctx, ev)
}

func (c *Client) observeMetric(service, outcome string, latency time.Duration) {
	if c.metrics != nil {
		c.metrics.ObserveAttempt(service, outcome, latency)
	}
}

func (c *Client) setCircuitMetric(service string) {
	if c.metrics != nil {
		c.metrics.SetCircuitState(service, c.brk.Status(service).State)
	}
}

// statusOf extracts the HTTP status code from an error chain, or 0
func statusOf(err error) int {
	var se *errors.StatusError
	if stderrors.As(err, &se) {
		return se.Code
	}
	return 0
}

// joinURL joins a base URL and an endpoint path with exactly one slash
func joinURL(base, endpoint string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(endpoint, "/")
}
