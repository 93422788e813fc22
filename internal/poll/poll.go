// internal/poll/poll.go
package poll

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrTimeout is returned when a condition did not hold before its deadline or attempt budget ran out.
var ErrTimeout = errors.New("poll: condition not met before timeout")

// Condition is evaluated on every tick. An error from a condition does not stop
// polling; the page may be mid-render. The last error is attached to ErrTimeout.
type Condition func(ctx context.Context) (bool, error)

// Until evaluates cond every interval until it returns true, timeout elapses, or ctx ends.
// cond is always evaluated at least once.
func Until(ctx context.Context, clock Clock, interval, timeout time.Duration, cond Condition) error {
	if interval <= 0 {
		interval = time.Second
	}
	deadline := clock.Now().Add(timeout)
	var lastErr error
	for {
		ok, err := cond(ctx)
		if ok {
			return nil
		}
		if err != nil {
			lastErr = err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		remaining := deadline.Sub(clock.Now())
		if remaining <= 0 {
			return timeoutError(lastErr)
		}
		wait := interval
		if remaining < wait {
			wait = remaining
		}
		if err := clock.Sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// Attempts evaluates cond at most n times, sleeping interval between attempts.
// It returns the 1-based attempt that succeeded.
func Attempts(ctx context.Context, clock Clock, n int, interval time.Duration, cond Condition) (int, error) {
	var lastErr error
	for attempt := 1; attempt <= n; attempt++ {
		ok, err := cond(ctx)
		if ok {
			return attempt, nil
		}
		if err != nil {
			lastErr = err
		}
		if attempt == n {
			break
		}
		if err := clock.Sleep(ctx, interval); err != nil {
			return attempt, err
		}
	}
	return n, timeoutError(lastErr)
}

// Settle pauses for d so asynchronous rendering can catch up.
func Settle(ctx context.Context, clock Clock, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	return clock.Sleep(ctx, d)
}

func timeoutError(last error) error {
	if last == nil {
		return ErrTimeout
	}
	return fmt.Errorf("%w (last error: %v)", ErrTimeout, last)
}
