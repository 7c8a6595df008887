package main

import (
	stderrors "errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/amal-vs-thoughtminds/svclink/breaker"
	"github.com/amal-vs-thoughtminds/svclink/config"
	"github.com/amal-vs-thoughtminds/svclink/dispatch"
	"github.com/amal-vs-thoughtminds/svclink/errors"
	"github.com/amal-vs-thoughtminds/svclink/health"
	"github.com/amal-vs-thoughtminds/svclink/keyring"
	"github.com/amal-vs-thoughtminds/svclink/metric"
	"github.com/amal-vs-thoughtminds/svclink/middleware"
	"github.com/amal-vs-thoughtminds/svclink/registry"
)

// server bundles the handlers' shared dependencies
type server struct {
	cfg     *config.Config
	ring    *keyring.Ring
	reg     *registry.Registry
	brk     *breaker.Breaker
	client  *dispatch.Client
	metrics *metric.Metrics
	logger  *slog.Logger
}

func newServer(
	cfg *config.Config,
	ring *keyring.Ring,
	reg *registry.Registry,
	brk *breaker.Breaker,
	client *dispatch.Client,
	metrics *metric.Metrics,
	logger *slog.Logger,
) *server {
	return &server{
		cfg:     cfg,
		ring:    ring,
		reg:     reg,
		brk:     brk,
		client:  client,
		metrics: metrics,
		logger:  logger,
	}
}

// routes builds the router. Health and metrics stay outside the encryption
// middleware so probes and scrapers reach them without key material.
func (s *server) routes() chi.Router {
	router := chi.NewRouter()
	router.Use(chimw.RealIP)
	router.Use(chimw.Recoverer)

	router.Get("/health", health.Handler(s.cfg.Service.Name, s.reg, s.brk))
	router.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	router.Group(func(r chi.Router) {
		r.Use(middleware.Encryption(s.ring,
			middleware.WithLogger(s.logger),
			middleware.WithMetrics(s.metrics),
		))
		r.Post("/echo", s.handleEcho)
		r.Post("/relay/{service}", s.handleRelay)
	})

	return router
}

// handleEcho returns the request body unchanged. Behind the middleware this
// demonstrates the full decrypt-then-encrypt round trip.
func (s *server) handleEcho(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, `{"error":"unreadable body"}`, http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(body)
}

// handleRelay forwards the request body to a configured peer through the
// dispatcher, demonstrating outbound encryption, retry, and circuit breaking.
// The target endpoint comes from the "endpoint" query parameter.
func (s *server) handleRelay(w http.ResponseWriter, r *http.Request) {
	service := chi.URLParam(r, "service")
	endpoint := r.URL.Query().Get("endpoint")
	if endpoint == "" {
		endpoint = "/echo"
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, `{"error":"unreadable body"}`, http.StatusBadRequest)
		return
	}

	res, err := s.client.Call(r.Context(), service, endpoint, body)
	if err != nil {
		s.writeDispatchError(w, service, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(res.Status)
	_, _ = w.Write(res.Body)
}

// writeDispatchError maps dispatch failures onto gateway-style statuses
func (s *server) writeDispatchError(w http.ResponseWriter, service string, err error) {
	s.logger.Warn("relay failed", "service", service, "error", err)

	status := http.StatusBadGateway
	switch {
	case errors.IsInvalid(err):
		status = http.StatusBadRequest
	case stderrors.Is(err, errors.ErrCircuitOpen):
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":"` + http.StatusText(status) + `"}`))
}
