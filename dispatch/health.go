package dispatch

import (
	"context"
	"net/http"
	"time"

	"github.com/amal-vs-thoughtminds/svclink/registry"
)

// healthCheckTimeout bounds a single probe
const healthCheckTimeout = 5 * time.Second

// HealthCheck probes a peer's health endpoint and records the verdict in the
// registry. Probes are plain GETs outside the retry and breaker paths: a
// failed probe marks the peer unhealthy instead of tripping the circuit.
// It returns the recorded verdict, or an error if the service is unknown.
func (c *Client) HealthCheck(ctx context.Context, service string) (bool, error) {
	desc, err := c.reg.Resolve(service)
	if err != nil {
		return false, err
	}

	healthy := c.probe(ctx, desc)
	if err := c.reg.MarkHealth(service, healthy, time.Now()); err != nil {
		return healthy, err
	}

	if !healthy {
		c.logger.Warn("peer health check failed", "service", service, "url", desc.BaseURL)
	}
	return healthy, nil
}

// HealthCheckAll probes every registered peer. It stops early if ctx is done.
func (c *Client) HealthCheckAll(ctx context.Context) {
	for _, desc := range c.reg.Snapshot() {
		if ctx.Err() != nil {
			return
		}
		_, _ = c.HealthCheck(ctx, desc.Name)
	}
}

func (c *Client) probe(ctx context.Context, desc registry.Descriptor) bool {
	pctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(pctx, http.MethodGet, joinURL(desc.BaseURL, desc.HealthEndpoint), nil)
	if err != nil {
		return false
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode == http.StatusOK
}
