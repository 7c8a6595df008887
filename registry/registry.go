// Package registry maps logical service names to network locations and
// health state.
package registry

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/amal-vs-thoughtminds/svclink/errors"
)

// Descriptor describes one registered peer. Descriptors are owned by the
// Registry; Resolve and Snapshot return copies, so callers never mutate
// registry state directly.
type Descriptor struct {
	Name           string    `json:"name"`
	BaseURL        string    `json:"base_url"`
	HealthEndpoint string    `json:"health_endpoint"`
	Healthy        bool      `json:"healthy"`
	LastCheck      time.Time `json:"last_check"`
}

// Validate checks the descriptor before registration
func (d Descriptor) Validate() error {
	if d.Name == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Descriptor", "Validate", "name required")
	}
	if d.BaseURL == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Descriptor", "Validate", "base URL required")
	}
	if _, err := url.Parse(d.BaseURL); err != nil {
		return errors.WrapInvalid(err, "Descriptor", "Validate", "parse base URL")
	}
	return nil
}

// Registry is a process-local service registry. It is an explicitly
// constructed component, not a singleton: tests and multi-tenant processes
// may hold several independent registries.
type Registry struct {
	mu       sync.RWMutex
	services map[string]Descriptor
}

// New creates an empty registry
func New() *Registry {
	return &Registry{services: make(map[string]Descriptor)}
}

// Register inserts or replaces a descriptor by name. Idempotent. New
// registrations default to healthy until a health check says otherwise.
func (r *Registry) Register(desc Descriptor) error {
	if err := desc.Validate(); err != nil {
		return err
	}
	if desc.HealthEndpoint == "" {
		desc.HealthEndpoint = "/health"
	}
	if desc.LastCheck.IsZero() {
		desc.Healthy = true
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.services[desc.Name] = desc
	return nil
}

// Resolve returns the descriptor for the named service. Fails with
// ErrUnknownService if it was never registered.
func (r *Registry) Resolve(name string) (Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	desc, ok := r.services[name]
	if !ok {
		return Descriptor{}, errors.WrapInvalid(
			fmt.Errorf("%w: %s", errors.ErrUnknownService, name),
			"Registry", "Resolve", "look up service")
	}
	return desc, nil
}

// MarkHealth updates a service's health state without touching its URL.
func (r *Registry) MarkHealth(name string, healthy bool, ts time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	desc, ok := r.services[name]
	if !ok {
		return errors.WrapInvalid(
			fmt.Errorf("%w: %s", errors.ErrUnknownService, name),
			"Registry", "MarkHealth", "look up service")
	}
	desc.Healthy = healthy
	desc.LastCheck = ts
	r.services[name] = desc
	return nil
}

// Remove deletes a service from the registry.
func (r *Registry) Remove(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.services[name]; !ok {
		return errors.WrapInvalid(
			fmt.Errorf("%w: %s", errors.ErrUnknownService, name),
			"Registry", "Remove", "look up service")
	}
	delete(r.services, name)
	return nil
}

// Snapshot returns copies of all descriptors ordered by name, for health and
// diagnostics endpoints.
func (r *Registry) Snapshot() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Descriptor, 0, len(r.services))
	for _, desc := range r.services {
		out = append(out, desc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// URL joins a service's base URL with an endpoint path.
func (r *Registry) URL(name, endpoint string) (string, error) {
	desc, err := r.Resolve(name)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(desc.BaseURL, "/") + "/" + strings.TrimLeft(endpoint, "/"), nil
}
