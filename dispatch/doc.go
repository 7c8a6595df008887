// Package dispatch is the outbound side of the communication layer: it
// resolves peers through the registry, gates calls through the circuit
// breaker, seals payloads with the caller's key, and retries transient
// failures with exponential backoff.
//
// A single Client is shared across goroutines:
//
//	client, err := dispatch.NewClient(reg, ring,
//		dispatch.WithMetrics(metrics),
//		dispatch.WithSink(sink.NewSlogSink(logger)),
//	)
//	res, err := client.Call(ctx, "user-service", "/users/42", payload)
//
// Failure handling follows the error taxonomy: 5xx responses and transport
// failures are retried and count toward the breaker, 4xx responses fail
// immediately and never count, and cancellation counts toward neither side.
package dispatch
