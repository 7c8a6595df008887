// Package keyring holds the per-peer encryption keys for one service.
package keyring

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/amal-vs-thoughtminds/svclink/envelope"
	"github.com/amal-vs-thoughtminds/svclink/errors"
)

// envKeySuffix marks environment variables carrying encryption passphrases,
// e.g. USER_SERVICE_ENCRYPTION_KEY for peer "user-service".
const envKeySuffix = "_ENCRYPTION_KEY"

// Ring maps service names to encryption keys. A ring is immutable once
// built: rotation means constructing a replacement ring and swapping the
// pointer, so keys are never mutated under an in-flight call.
type Ring struct {
	owner string
	own   envelope.Key
	peers map[string]envelope.Key
}

// New builds a ring for the named service with its own key and an optional
// set of peer keys. The peers map is copied.
func New(owner string, own envelope.Key, peers map[string]envelope.Key) (*Ring, error) {
	if owner == "" {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "Ring", "New", "owner name required")
	}

	copied := make(map[string]envelope.Key, len(peers))
	for name, key := range peers {
		copied[name] = key
	}

	return &Ring{owner: owner, own: own, peers: copied}, nil
}

// FromEnv builds a ring from environment variables. The owner's key comes
// from <OWNER>_ENCRYPTION_KEY; every other *_ENCRYPTION_KEY variable becomes
// a peer entry. Service names map to env names by upper-casing and replacing
// dashes with underscores, so "user-service" reads USER_SERVICE_ENCRYPTION_KEY.
// Values are passphrases run through envelope.DeriveKey.
func FromEnv(owner string) (*Ring, error) {
	ownEnv := envName(owner)
	passphrase := os.Getenv(ownEnv)
	if passphrase == "" {
		return nil, errors.WrapFatal(
			fmt.Errorf("%w: %s not set", errors.ErrMissingConfig, ownEnv),
			"Ring", "FromEnv", "load own key")
	}

	peers := make(map[string]envelope.Key)
	for _, kv := range os.Environ() {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasSuffix(name, envKeySuffix) || name == ownEnv || value == "" {
			continue
		}
		peers[serviceName(name)] = envelope.DeriveKey(value)
	}

	return New(owner, envelope.DeriveKey(passphrase), peers)
}

// Owner returns the name of the service this ring belongs to.
func (r *Ring) Owner() string {
	return r.owner
}

// Own returns this service's own key, used to encrypt responses.
func (r *Ring) Own() envelope.Key {
	return r.own
}

// Key returns the key for the named service. Asking for the owner's own name
// returns the own key. Fails with ErrUnknownPeer for services without a key.
func (r *Ring) Key(service string) (envelope.Key, error) {
	if service == r.owner {
		return r.own, nil
	}
	key, ok := r.peers[service]
	if !ok {
		return envelope.Key{}, errors.WrapInvalid(
			fmt.Errorf("%w: %s", errors.ErrUnknownPeer, service),
			"Ring", "Key", "look up peer key")
	}
	return key, nil
}

// Has reports whether a key exists for the named service.
func (r *Ring) Has(service string) bool {
	if service == r.owner {
		return true
	}
	_, ok := r.peers[service]
	return ok
}

// Services returns the sorted names of all peers with keys, excluding the
// owner.
func (r *Ring) Services() []string {
	names := make([]string, 0, len(r.peers))
	for name := range r.peers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// envName converts a service name to its environment variable name
func envName(service string) string {
	return strings.ToUpper(strings.ReplaceAll(service, "-", "_")) + envKeySuffix
}

// serviceName converts an environment variable name back to a service name
func serviceName(env string) string {
	trimmed := strings.TrimSuffix(env, envKeySuffix)
	return strings.ToLower(strings.ReplaceAll(trimmed, "_", "-"))
}
