// Package breaker implements the per-peer failure-tracking state machine
// that protects callers from unhealthy services.
//
// Each peer's circuit moves through three states:
//
//	CLOSED ──threshold failures──▶ OPEN ──cooldown──▶ HALF_OPEN
//	   ▲                                                 │
//	   └────────── trial success ────────────────────────┘
//	                    (trial failure returns to OPEN)
//
// While CLOSED, calls proceed and consecutive transport failures are counted;
// at the configured threshold the circuit opens. While OPEN, Allow fails fast
// with CircuitOpenError (carrying the remaining cooldown) and no network
// attempt is made. After the cooldown, exactly one caller wins the HALF_OPEN
// trial slot; everyone else keeps getting CircuitOpenError until the trial
// resolves. A successful trial closes the circuit, a failed one restarts the
// cooldown, and a cancelled one returns to OPEN without extending it.
//
// Only transport-level failures and 5xx responses should be recorded as
// failures; 4xx responses indicate a request defect and are excluded from
// the accounting by the dispatcher.
//
// All transitions are atomic with respect to concurrent callers.
package breaker
