// Package clock abstracts wall time and sleeping so that the pre-probe delay
// can be asserted in tests without real waiting.
package clock

import (
	"context"
	"time"
)

type Interface interface {
	Now() time.Time
	// Sleep blocks for d or until ctx is done, whichever comes first.
	Sleep(ctx context.Context, d time.Duration) error
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) Sleep(ctx context.Context, d time.Duration) error {
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

// System returns a clock backed by the time package.
func System() Interface {
	return systemClock{}
}
