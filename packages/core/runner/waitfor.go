package runner

import (
	"context"
	"errors"
	"time"
)

var errPollTimeout = errors.New("condition not met before timeout")

// poll calls check until it returns true, timeout elapses or ctx ends.
// check runs at least once, and once more after the last interval.
func poll(ctx context.Context, timeout, interval time.Duration, check func() bool) error {
	deadline := time.Now().Add(timeout)

	for {
		if check() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		left := time.Until(deadline)
		if left <= 0 {
			return errPollTimeout
		}

		timer := time.NewTimer(min(interval, left))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
