// Package health exposes the communication layer's view of the world: which
// peers are reachable and the state of each circuit.
package health

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/amal-vs-thoughtminds/svclink/breaker"
	"github.com/amal-vs-thoughtminds/svclink/registry"
)

// Overall status values
const (
	StatusHealthy  = "healthy"
	StatusDegraded = "degraded"
)

// Status is the JSON body served by the health endpoint
type Status struct {
	Service   string                `json:"service"`
	Status    string                `json:"status"`
	Timestamp time.Time             `json:"timestamp"`
	Peers     []registry.Descriptor `json:"peers,omitempty"`
	Circuits  []breaker.PeerStatus  `json:"circuits,omitempty"`
}

// Check builds a point-in-time status. The service is degraded if any peer
// failed its last health check or any circuit is not closed.
func Check(service string, reg *registry.Registry, brk *breaker.Breaker) Status {
	st := Status{
		Service:   service,
		Status:    StatusHealthy,
		Timestamp: time.Now().UTC(),
	}

	if reg != nil {
		st.Peers = reg.Snapshot()
		for _, peer := range st.Peers {
			if !peer.Healthy {
				st.Status = StatusDegraded
			}
		}
	}
	if brk != nil {
		st.Circuits = brk.Snapshot()
		for _, circuit := range st.Circuits {
			if circuit.State != "closed" {
				st.Status = StatusDegraded
			}
		}
	}
	return st
}

// Handler serves the status as JSON. Degraded services still answer 200: the
// endpoint reports this service's view of its peers, not its own liveness.
func Handler(service string, reg *registry.Registry, brk *breaker.Breaker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(Check(service, reg, brk))
	}
}
