// Package retry provides exponential backoff retry logic for outbound calls
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"
)

var (
	// Thread-safe random source for jitter
	randMu     sync.Mutex
	randSource = rand.New(rand.NewSource(time.Now().UnixNano()))
)

// NonRetryableError wraps errors that should not be retried
type NonRetryableError struct {
	Err error
}

func (e *NonRetryableError) Error() string {
	return fmt.Sprintf("non-retryable: %v", e.Err)
}

func (e *NonRetryableError) Unwrap() error {
	return e.Err
}

// NonRetryable wraps an error to indicate it should not be retried
func NonRetryable(err error) error {
	if err == nil {
		return nil
	}
	return &NonRetryableError{Err: err}
}

// IsNonRetryable checks if an error is marked as non-retryable
func IsNonRetryable(err error) bool {
	var nre *NonRetryableError
	return errors.As(err, &nre)
}

// Policy configures the retry loop. Immutable; supplied per call or as a
// dispatcher default.
type Policy struct {
	MaxAttempts int           // Total attempts including the first (minimum 1)
	BaseDelay   time.Duration // Delay before the second attempt
	Multiplier  float64       // Backoff multiplier (typically 2.0)
	MaxDelay    time.Duration // Cap on the computed delay
	Jitter      bool          // Randomize each delay in [delay, 2*delay) to avoid thundering herds
}

// DefaultPolicy returns sensible defaults for inter-service calls
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    5 * time.Second,
		Multiplier:  2.0,
		Jitter:      true,
	}
}

// Validate checks the policy for errors, applying defaults for zero values
func (p *Policy) Validate() error {
	if p.BaseDelay < 0 {
		return errors.New("retry: BaseDelay cannot be negative")
	}
	if p.MaxDelay < 0 {
		return errors.New("retry: MaxDelay cannot be negative")
	}
	if p.Multiplier < 0 {
		return errors.New("retry: Multiplier cannot be negative")
	}
	// Prevent overflow with extremely large multipliers
	if p.Multiplier > 1000 {
		p.Multiplier = 1000
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1 // At least try once
	}
	if p.BaseDelay == 0 {
		p.BaseDelay = 100 * time.Millisecond
	}
	if p.MaxDelay == 0 {
		p.MaxDelay = 5 * time.Second
	}
	if p.Multiplier == 0 {
		p.Multiplier = 2.0
	}
	if p.MaxDelay < p.BaseDelay {
		return errors.New("retry: MaxDelay must be >= BaseDelay")
	}
	return nil
}

// Delay returns the backoff delay before the given attempt (1-based).
// Delay(1) is zero; Delay(2) is BaseDelay; subsequent attempts grow by
// Multiplier up to MaxDelay. Jitter is not applied here.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}
	delay := float64(p.BaseDelay)
	for i := 2; i < attempt; i++ {
		delay *= p.Multiplier
		if delay >= float64(p.MaxDelay) {
			return p.MaxDelay
		}
	}
	if delay > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	return time.Duration(delay)
}

// Do executes fn with exponential backoff retry. The notify hook, if not nil,
// is invoked after each failed attempt that will be retried, with the attempt
// number (1-based) and the error; it lets callers emit per-attempt events.
func Do(ctx context.Context, p Policy, fn func() error, notify func(attempt int, err error)) error {
	if err := p.Validate(); err != nil {
		return err
	}

	var lastErr error
	delay := p.BaseDelay

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		// Non-retryable errors fail immediately
		if IsNonRetryable(err) {
			return err
		}

		if ctx.Err() != nil {
			return fmt.Errorf("retry cancelled before attempt %d: %w", attempt, ctx.Err())
		}

		// Don't sleep after the last attempt
		if attempt == p.MaxAttempts {
			break
		}

		if notify != nil {
			notify(attempt, err)
		}

		// Sleep duration with optional jitter in [0, delay)
		sleepDuration := delay
		if p.Jitter {
			randMu.Lock()
			jitter := time.Duration(randSource.Int63n(int64(delay)))
			randMu.Unlock()
			sleepDuration = delay + jitter
		}

		timer := time.NewTimer(sleepDuration)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry cancelled during backoff for attempt %d: %w", attempt+1, ctx.Err())
		case <-timer.C:
		}

		// Next delay with overflow protection
		nextDelay := float64(delay) * p.Multiplier
		if nextDelay > float64(p.MaxDelay) || nextDelay > float64(time.Duration(1<<63-1)) {
			delay = p.MaxDelay
		} else {
			delay = time.Duration(nextDelay)
		}
	}

	return fmt.Errorf("retry failed after %d attempts: %w", p.MaxAttempts, lastErr)
}

// DoWithResult executes fn with retry and returns both result and error
func DoWithResult[T any](ctx context.Context, p Policy, fn func() (T, error), notify func(attempt int, err error)) (T, error) {
	var result T
	err := Do(ctx, p, func() error {
		var innerErr error
		result, innerErr = fn()
		return innerErr
	}, notify)
	return result, err
}
