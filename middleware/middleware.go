package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/amal-vs-thoughtminds/svclink/envelope"
	"github.com/amal-vs-thoughtminds/svclink/keyring"
	"github.com/amal-vs-thoughtminds/svclink/metric"
	"github.com/amal-vs-thoughtminds/svclink/wire"
)

// Middleware results recorded against the metrics registry
const (
	resultPassthrough = "passthrough"
	resultDecrypted   = "decrypted"
	resultRejected    = "rejected"
	resultEncrypted   = "encrypted_response"
)

type config struct {
	logger  *slog.Logger
	metrics *metric.Metrics
}

// Option configures the middleware
type Option func(*config)

// WithLogger sets the middleware's logger
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics attaches Prometheus instrumentation
func WithMetrics(m *metric.Metrics) Option {
	return func(c *config) {
		c.metrics = m
	}
}

// Encryption returns middleware that transparently handles encrypted
// traffic. Requests marked encrypted are opened with the key of the peer
// named in the encryption header before the handler runs; any failure to do
// so rejects the request with a client error and the handler never executes.
// When the caller asks for an encrypted response, the handler's output is
// buffered and sealed with this service's own key.
func Encryption(ring *keyring.Ring, opts ...Option) func(http.Handler) http.Handler {
	cfg := &config{logger: slog.Default()}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			encrypted := r.Header.Get(wire.HeaderCommunication) == wire.ValueEncrypted
			encryptResponse := r.Header.Get(wire.HeaderEncryptResponse) == wire.ValueTrue

			if encrypted {
				if !decryptRequest(cfg, ring, w, r) {
					return
				}
				cfg.observe(resultDecrypted)
			} else if !encryptResponse {
				cfg.observe(resultPassthrough)
			}

			if !encryptResponse {
				next.ServeHTTP(w, r)
				return
			}

			rec := &responseRecorder{header: make(http.Header)}
			next.ServeHTTP(rec, r)
			writeResponse(cfg, ring, w, rec)
		})
	}
}

// decryptRequest opens the request body in place. It reports false after
// writing a rejection, in which case the handler must not run.
func decryptRequest(cfg *config, ring *keyring.Ring, w http.ResponseWriter, r *http.Request) bool {
	peer := r.Header.Get(wire.HeaderEncryptionService)

	raw, err := io.ReadAll(r.Body)
	if err != nil {
		return reject(cfg, w, r, peer, "unreadable request body")
	}
	_ = r.Body.Close()

	var env envelope.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return reject(cfg, w, r, peer, "malformed encrypted payload")
	}
	if peer == "" {
		peer = env.Service
	}
	if peer == "" {
		return reject(cfg, w, r, peer, "missing encryption service header")
	}

	key, err := ring.Key(peer)
	if err != nil {
		return reject(cfg, w, r, peer, "unknown encryption peer")
	}

	plain, err := env.Open(key)
	if err != nil {
		return reject(cfg, w, r, peer, "request decryption failed")
	}

	r.Body = io.NopCloser(bytes.NewReader(plain))
	r.ContentLength = int64(len(plain))
	return true
}

// reject writes a client-error response and always reports false
func reject(cfg *config, w http.ResponseWriter, r *http.Request, peer, msg string) bool {
	cfg.logger.Warn("reject encrypted request",
		"peer", peer,
		"path", r.URL.Path,
		"reason", msg,
	)
	cfg.observe(resultRejected)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
	return false
}

// writeResponse replays the buffered handler output, sealing successful
// bodies with this service's own key. Error responses pass through in the
// clear: they carry no payload data and the caller needs to read them even
// when decryption state is broken.
func writeResponse(cfg *config, ring *keyring.Ring, w http.ResponseWriter, rec *responseRecorder) {
	status := rec.status
	if status == 0 {
		status = http.StatusOK
	}
	body := rec.buf.Bytes()

	if status < 200 || status >= 300 || len(body) == 0 {
		copyHeader(w.Header(), rec.header)
		w.WriteHeader(status)
		_, _ = w.Write(body)
		return
	}

	env, err := envelope.New(ring.Owner(), ring.Own(), body)
	if err != nil {
		cfg.logger.Error("encrypt response", "error", err)
		http.Error(w, `{"error":"response encryption failed"}`, http.StatusInternalServerError)
		return
	}

	copyHeader(w.Header(), rec.header)
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set(wire.HeaderCommunication, wire.ValueEncrypted)
	w.Header().Set(wire.HeaderEncryptionService, ring.Owner())
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
	cfg.observe(resultEncrypted)
}

func copyHeader(dst, src http.Header) {
	for k, vs := range src {
		for _, v := range vs {
			dst.Add(k, v)
		}
	}
}

func (c *config) observe(result string) {
	if c.metrics != nil {
		c.metrics.ObserveMiddleware(result)
	}
}

// responseRecorder buffers a handler's response so it can be sealed before
// reaching the wire.
type responseRecorder struct {
	header http.Header
	buf    bytes.Buffer
	status int
}

func (r *responseRecorder) Header() http.Header {
	return r.header
}

func (r *responseRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.buf.Write(b)
}
