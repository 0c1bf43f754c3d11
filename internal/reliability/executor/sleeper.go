package executor

import (
	"context"
	"time"
)

// Sleeper is the single seam through which the executor waits out backoff
// delays. Swapping the implementation adapts the executor to different
// schedulers without touching the loop.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// TimerSleeper waits on a timer but wakes early when the context is done,
// returning its error. This is the default and what goroutine-per-call
// servers want.
type TimerSleeper struct{}

func (TimerSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
