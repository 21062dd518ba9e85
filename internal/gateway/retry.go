// ABOUTME: Bounded exponential-backoff retry policy for transient failures
// ABOUTME: Applied by callers on refetch paths; never by the gateway itself

package gateway

import (
	"context"
	"errors"
	"time"

	"github.com/juju/clock"
	"github.com/juju/retry"
)

// Policy retries transient failures with capped exponential backoff.
// Validation and authentication failures are never retried. The zero value
// means no retries at all.
type Policy struct {
	// Attempts is the total number of tries, including the first.
	Attempts int
	// BaseDelay is the delay before the second try; it doubles per attempt.
	BaseDelay time.Duration
	// MaxDelay caps the backoff. Zero means uncapped.
	MaxDelay time.Duration
}

// DefaultPolicy suits background refetches.
var DefaultPolicy = Policy{Attempts: 3, BaseDelay: 250 * time.Millisecond, MaxDelay: 5 * time.Second}

// Retryable reports whether the error is transient: network failure,
// timeout, or server fault.
func Retryable(err error) bool {
	return errors.Is(err, ErrNetworkFailure) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrServerFault)
}

// Do runs fn, retrying per the policy while the error stays retryable.
// Returns fn's last error when attempts are exhausted or ctx is cancelled
// mid-backoff.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	delay := p.BaseDelay
	if delay <= 0 {
		delay = time.Millisecond
	}

	var lastErr error
	err := retry.Call(retry.CallArgs{
		Func: func() error {
			lastErr = fn(ctx)
			return lastErr
		},
		IsFatalError: func(err error) bool { return !Retryable(err) },
		Attempts:     attempts,
		Delay:        delay,
		MaxDelay:     p.MaxDelay,
		BackoffFunc:  retry.DoubleDelay,
		Clock:        clock.WallClock,
		Stop:         ctx.Done(),
	})
	if err == nil {
		return nil
	}
	// Attempts-exceeded and stopped errors are retry bookkeeping; callers
	// want the call's own failure.
	if lastErr != nil {
		return lastErr
	}
	return err
}
