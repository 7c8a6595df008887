package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDo_SuccessAfterFailures(t *testing.T) {
	ctx := context.Background()
	p := Policy{
		MaxAttempts: 3,
		BaseDelay:   10 * time.Millisecond,
		MaxDelay:    100 * time.Millisecond,
		Multiplier:  2.0,
		Jitter:      false, // Disable for predictable tests
	}

	attempts := 0
	err := Do(ctx, p, func() error {
		attempts++
		if attempts < 3 {
			return errors.New("transient error")
		}
		return nil
	}, nil)

	assert.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestDo_AllAttemptsFail(t *testing.T) {
	ctx := context.Background()
	p := Policy{
		MaxAttempts: 3,
		BaseDelay:   10 * time.Millisecond,
		MaxDelay:    100 * time.Millisecond,
		Multiplier:  2.0,
		Jitter:      false,
	}

	attempts := 0
	err := Do(ctx, p, func() error {
		attempts++
		return errors.New("persistent error")
	}, nil)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed after 3 attempts")
	assert.Equal(t, 3, attempts)
}

func TestDo_NonRetryableStopsImmediately(t *testing.T) {
	ctx := context.Background()
	p := Policy{MaxAttempts: 5, BaseDelay: 10 * time.Millisecond, MaxDelay: 100 * time.Millisecond, Multiplier: 2.0}

	attempts := 0
	base := errors.New("bad request")
	err := Do(ctx, p, func() error {
		attempts++
		return NonRetryable(base)
	}, nil)

	assert.Error(t, err)
	assert.True(t, errors.Is(err, base))
	assert.Equal(t, 1, attempts)
}

func TestDo_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Policy{
		MaxAttempts: 5,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    time.Second,
		Multiplier:  2.0,
		Jitter:      false,
	}

	attempts := 0
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel() // Cancel during backoff
	}()

	err := Do(ctx, p, func() error {
		attempts++
		return errors.New("error")
	}, nil)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "retry cancelled")
	assert.Less(t, attempts, 5)
}

func TestDo_NotifyPerRetriedAttempt(t *testing.T) {
	ctx := context.Background()
	p := Policy{MaxAttempts: 3, BaseDelay: 5 * time.Millisecond, MaxDelay: 50 * time.Millisecond, Multiplier: 2.0, Jitter: false}

	var notified []int
	_ = Do(ctx, p, func() error {
		return errors.New("boom")
	}, func(attempt int, err error) {
		notified = append(notified, attempt)
		assert.Error(t, err)
	})

	// The final attempt is not followed by a retry, so it is not notified.
	assert.Equal(t, []int{1, 2}, notified)
}

func TestDo_BackoffTiming(t *testing.T) {
	ctx := context.Background()
	p := Policy{
		MaxAttempts: 4,
		BaseDelay:   10 * time.Millisecond,
		MaxDelay:    100 * time.Millisecond,
		Multiplier:  2.0,
		Jitter:      false,
	}

	start := time.Now()
	attempts := 0

	_ = Do(ctx, p, func() error {
		attempts++
		return errors.New("error")
	}, nil)

	elapsed := time.Since(start)

	// Delays: 10ms + 20ms + 40ms = 70ms minimum
	assert.GreaterOrEqual(t, elapsed, 70*time.Millisecond)
	assert.Less(t, elapsed, 150*time.Millisecond)
	assert.Equal(t, 4, attempts)
}

func TestDo_MaxDelayCapsBackoff(t *testing.T) {
	ctx := context.Background()
	p := Policy{
		MaxAttempts: 4,
		BaseDelay:   10 * time.Millisecond,
		MaxDelay:    25 * time.Millisecond, // Low cap
		Multiplier:  10.0,                  // High multiplier
		Jitter:      false,
	}

	start := time.Now()
	_ = Do(ctx, p, func() error {
		return errors.New("error")
	}, nil)
	elapsed := time.Since(start)

	// Delays: 10ms + 25ms + 25ms = 60ms with the cap applied
	assert.GreaterOrEqual(t, elapsed, 60*time.Millisecond)
	assert.Less(t, elapsed, 130*time.Millisecond)
}

func TestPolicy_Delay(t *testing.T) {
	p := Policy{MaxAttempts: 5, BaseDelay: 100 * time.Millisecond, MaxDelay: 300 * time.Millisecond, Multiplier: 2.0}

	assert.Equal(t, time.Duration(0), p.Delay(1))
	assert.Equal(t, 100*time.Millisecond, p.Delay(2))
	assert.Equal(t, 200*time.Millisecond, p.Delay(3))
	assert.Equal(t, 300*time.Millisecond, p.Delay(4)) // capped
	assert.Equal(t, 300*time.Millisecond, p.Delay(5))
}

func TestPolicy_ValidateRejectsBadValues(t *testing.T) {
	p := Policy{BaseDelay: -time.Second}
	assert.Error(t, p.Validate())

	p = Policy{BaseDelay: time.Second, MaxDelay: 100 * time.Millisecond, MaxAttempts: 2}
	assert.Error(t, p.Validate())
}

func TestDoWithResult(t *testing.T) {
	ctx := context.Background()
	p := Policy{MaxAttempts: 2, BaseDelay: 5 * time.Millisecond, MaxDelay: 50 * time.Millisecond, Multiplier: 2.0, Jitter: false}

	calls := 0
	result, err := DoWithResult(ctx, p, func() (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("first fails")
		}
		return "ok", nil
	}, nil)

	assert.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 2, calls)
}
