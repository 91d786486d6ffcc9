package sched

import (
	"context"
	"time"
)

// Clock abstracts the monotonic time source so tests can drive the runloop
// with a simulated clock. Now must never go backwards; time.Time values from
// the wall clock carry Go's monotonic reading, which is what all scheduling
// arithmetic uses.
type Clock interface {
	Now() time.Time
	// Sleep blocks for d or until ctx is done, whichever comes first.
	Sleep(ctx context.Context, d time.Duration) error
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now() }

func (wallClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// WallClock returns the real time source used outside of tests.
func WallClock() Clock { return wallClock{} }
