// Package retry implements the bounded retry-with-backoff loop used by the
// dispatcher for outbound calls.
//
// A Policy describes the loop: total attempts, base delay, multiplier, delay
// cap, and optional jitter. Delays grow as min(base*multiplier^(n-1), max);
// jitter adds a random amount in [0, delay) to spread concurrent retries.
//
// Errors wrapped with NonRetryable stop the loop immediately - the dispatcher
// uses this for 4xx-class responses, which indicate a request defect rather
// than a transient condition.
//
// Backoff sleeps are context-aware: cancellation mid-loop aborts without
// waiting out the timer.
package retry
