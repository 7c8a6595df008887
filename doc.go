// Package svclink is a secure communication layer for HTTP microservices.
// It gives each service an encrypted, retried, circuit-broken path to its
// peers without changing the handlers on either side.
//
// # Components
//
// The layer is built from small, explicitly wired components:
//
//   - envelope: AES-256-GCM codec; payloads travel as base64 envelopes
//     labeled with the sealing service's name
//   - keyring: immutable per-peer key material, derived from passphrases
//     in environment variables
//   - registry: logical service names to base URLs and health state
//   - breaker: per-peer circuit breaker (closed, open, half-open)
//   - dispatch: outbound client combining all of the above with
//     exponential-backoff retry
//   - middleware: inbound HTTP wrapper that decrypts requests and encrypts
//     responses, failing closed on anything it cannot open
//
// # Outbound calls
//
//	reg, _ := cfg.BuildRegistry()
//	ring, _ := cfg.BuildKeyRing()
//	client, _ := dispatch.NewClient(reg, ring)
//	res, err := client.Call(ctx, "user-service", "/users/42", payload)
//
// # Inbound traffic
//
//	router.Use(middleware.Encryption(ring))
//
// Handlers behind the middleware always see plaintext. A request that claims
// to be encrypted but cannot be opened is rejected before the handler runs.
//
// # Failure semantics
//
// Transport failures and 5xx responses are retried and count toward the
// peer's circuit breaker. 4xx responses fail immediately and count toward
// neither. Cancelled calls are evidence of nothing and leave breaker state
// untouched.
package svclink
