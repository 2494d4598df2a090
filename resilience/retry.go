package resilience

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"
)

// ErrAttemptsExhausted is wrapped into the final error when every
// attempt failed.
var ErrAttemptsExhausted = errors.New("attempts exhausted")

// RetryPolicy controls how Do spaces its attempts.
type RetryPolicy struct {
	// Attempts is the total number of tries, including the first.
	Attempts int

	// InitialBackoff is the delay before the second attempt; each
	// further attempt multiplies it by Factor, capped at MaxBackoff.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Factor         float64

	// Jitter randomizes each backoff by up to this fraction either way.
	Jitter float64

	// RetryIf decides whether an error is worth another attempt. Nil
	// retries everything except context cancellation.
	RetryIf func(error) bool

	// OnRetry is called before each wait, mainly for logging.
	OnRetry func(attempt int, err error, backoff time.Duration)
}

// DefaultRetryPolicy suits short remote calls: three attempts, 100ms
// initial backoff doubling up to 5s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts:       3,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		Factor:         2.0,
		Jitter:         0.1,
	}
}

func (p *RetryPolicy) normalize() {
	if p.Attempts <= 0 {
		p.Attempts = 3
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = 100 * time.Millisecond
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = 5 * time.Second
	}
	if p.Factor <= 0 {
		p.Factor = 2.0
	}
	if p.RetryIf == nil {
		p.RetryIf = func(err error) bool {
			return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
		}
	}
}

// Do runs fn until it succeeds, the policy gives up, or the context is
// done. It returns fn's last error when attempts run out.
func Do[T any](ctx context.Context, policy RetryPolicy, fn func() (T, error)) (T, error) {
	var zero T
	policy.normalize()

	var lastErr error
	for attempt := 1; attempt <= policy.Attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !policy.RetryIf(err) {
			return zero, err
		}
		if attempt == policy.Attempts {
			break
		}

		backoff := policy.backoffFor(attempt)
		if policy.OnRetry != nil {
			policy.OnRetry(attempt, err, backoff)
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
	}

	return zero, lastErr
}

// backoffFor computes the wait after the given (1-based) attempt.
func (p RetryPolicy) backoffFor(attempt int) time.Duration {
	d := float64(p.InitialBackoff) * math.Pow(p.Factor, float64(attempt-1))

	if p.Jitter > 0 {
		span := d * p.Jitter
		d += (rand.Float64()*2 - 1) * span
	}
	if d > float64(p.MaxBackoff) {
		d = float64(p.MaxBackoff)
	}
	if d < 0 {
		d = float64(p.InitialBackoff)
	}
	return time.Duration(d)
}
