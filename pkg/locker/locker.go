// Package locker provides keyed mutual exclusion for the ledger's critical
// sections. The memory implementation serves a single process; the mongo and
// redis implementations coordinate several instances sharing one store.
package locker

import (
	"context"
	"errors"
	"time"
)

// ErrTimeout is returned when a lock could not be acquired within the wait budget.
var ErrTimeout = errors.New("timed out waiting for lock")

// ReleaseFunc releases a held lock. Calling it more than once is a no-op.
type ReleaseFunc func(ctx context.Context) error

type Locker interface {
	Lock(ctx context.Context, key string) (ReleaseFunc, error)
}

const (
	minPollInterval = 10 * time.Millisecond
	maxPollInterval = 200 * time.Millisecond
)

// waitContext bounds ctx by the configured wait budget. A non-positive wait leaves ctx as is.
func waitContext(ctx context.Context, wait time.Duration) (context.Context, context.CancelFunc) {
	if wait <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, wait)
}

// waitError distinguishes a caller cancellation from an exhausted wait budget.
func waitError(parent context.Context) error {
	if err := parent.Err(); err != nil {
		return err
	}
	return ErrTimeout
}

// poll calls try with a growing back-off until it reports success, fails, or the
// wait budget runs out. It is shared by the store-backed lockers.
func poll(ctx context.Context, wait time.Duration, try func(ctx context.Context) (bool, error)) error {
	waitCtx, cancel := waitContext(ctx, wait)
	defer cancel()

	interval := minPollInterval
	for {
		ok, err := try(waitCtx)
		if err != nil {
			if waitCtx.Err() != nil {
				return waitError(ctx)
			}
			return err
		}
		if ok {
			return nil
		}

		timer := time.NewTimer(interval)
		select {
		case <-waitCtx.Done():
			timer.Stop()
			return waitError(ctx)
		case <-timer.C:
		}

		interval *= 2
		if interval > maxPollInterval {
			interval = maxPollInterval
		}
	}
}
