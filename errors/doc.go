// Package errors provides the error taxonomy for the svclink communication
// layer.
//
// Errors fall into three classes:
//
//   - Transient: connection failures, timeouts, 5xx responses. The dispatcher
//     retries these per its retry policy and counts them toward circuit
//     breaker failure accounting.
//   - Invalid: 4xx responses, decryption failures, unknown peers, malformed
//     payloads. Never retried, never counted toward the circuit breaker.
//   - Fatal: unrecoverable conditions such as missing configuration.
//
// Typed errors carry operational context: CircuitOpenError includes the
// remaining cooldown so callers can schedule a retry, DispatchError wraps the
// final attempt's cause, and StatusError preserves the peer's HTTP status.
//
// Wrapping helpers produce the standard "component.method: action failed"
// format used across the codebase.
package errors
