// Package metric provides Prometheus instrumentation for the communication
// layer.
package metric

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Attempt outcomes used as label values
const (
	OutcomeSuccess     = "success"
	OutcomeError       = "error"
	OutcomeRetried     = "retried"
	OutcomeCircuitOpen = "circuit_open"
	OutcomeCancelled   = "cancelled"
)

// Metrics holds the core instruments for dispatch and middleware activity.
// Each Metrics owns its own prometheus registry so independent instances
// (one per test, one per process) never collide on registration.
type Metrics struct {
	registry *prometheus.Registry

	DispatchAttempts   *prometheus.CounterVec
	DispatchLatency    *prometheus.HistogramVec
	CircuitState       *prometheus.GaugeVec
	MiddlewareRequests *prometheus.CounterVec
}

// New creates a Metrics with core instruments plus Go runtime collectors
// registered.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		DispatchAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "svclink_dispatch_attempts_total",
			Help: "Outbound call attempts by target service and outcome",
		}, []string{"service", "outcome"}),
		DispatchLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "svclink_dispatch_latency_seconds",
			Help:    "Per-attempt latency of outbound calls",
			Buckets: prometheus.DefBuckets,
		}, []string{"service"}),
		CircuitState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "svclink_circuit_state",
			Help: "Circuit breaker state per peer (0=closed, 1=open, 2=half_open)",
		}, []string{"service"}),
		MiddlewareRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "svclink_middleware_requests_total",
			Help: "Inbound requests seen by the encryption middleware by result",
		}, []string{"result"}),
	}

	registry.MustRegister(
		m.DispatchAttempts,
		m.DispatchLatency,
		m.CircuitState,
		m.MiddlewareRequests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Registry returns the underlying Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an http.Handler serving the metrics in Prometheus text
// format, for mounting at /metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveAttempt records one call attempt's outcome and latency
func (m *Metrics) ObserveAttempt(service, outcome string, latency time.Duration) {
	m.DispatchAttempts.WithLabelValues(service, outcome).Inc()
	m.DispatchLatency.WithLabelValues(service).Observe(latency.Seconds())
}

// SetCircuitState records the current breaker state for a peer
func (m *Metrics) SetCircuitState(service, state string) {
	var v float64
	switch state {
	case "open":
		v = 1
	case "half_open":
		v = 2
	}
	m.CircuitState.WithLabelValues(service).Set(v)
}

// ObserveMiddleware records the result of one inbound request
// ("passthrough", "decrypted", "rejected", "encrypted_response")
func (m *Metrics) ObserveMiddleware(result string) {
	m.MiddlewareRequests.WithLabelValues(result).Inc()
}
