package browser

import (
	"context"
	"errors"
	"time"
)

// ErrWaitTimeout is returned when a predicate never became true within its
// window. Callers that treat timeout as a fallback path check for it with
// errors.Is.
var ErrWaitTimeout = errors.New("wait timed out")

// WaitFor polls predicate at interval until it returns true, returns an
// error, the timeout elapses, or ctx is canceled. This is the single
// asynchronous waiting primitive shared by the option waiter's Go side and
// the quiescence detector: one cancellation path, no leaked tickers.
func WaitFor(ctx context.Context, interval, timeout time.Duration, predicate func() (bool, error)) error {
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	tick := time.NewTicker(interval)
	defer tick.Stop()

	// Check once before the first tick.
	if ok, err := predicate(); err != nil {
		return err
	} else if ok {
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return ErrWaitTimeout
		case <-tick.C:
			ok, err := predicate()
			if err != nil {
				return err
			}
			if ok {
				return nil
			}
		}
	}
}
