package api

import (
	"context"
	"math"
	"time"
)

// Backoff is an exponential back-off with a maximum number of attempts.
type Backoff struct {
	// MaxAttempts is the maximum number of retries. 0 means no retries.
	MaxAttempts int
	// InitialDelay is the delay before the first retry.
	InitialDelay time.Duration
	// MaxDelay caps the delay; 0 means no cap.
	MaxDelay time.Duration
	// Multiplier is the factor by which the delay grows. Defaults to 2.
	Multiplier float64
}

// Next returns the delay before the given retry attempt (starting at 1) and
// false once the attempts are exhausted.
func (b Backoff) Next(attempt int) (time.Duration, bool) {
	if attempt < 1 || attempt > b.MaxAttempts {
		return 0, false
	}

	multiplier := b.Multiplier
	if multiplier == 0 {
		multiplier = 2
	}

	d := time.Duration(float64(b.InitialDelay) * math.Pow(multiplier, float64(attempt-1)))
	if b.MaxDelay > 0 && d > b.MaxDelay {
		d = b.MaxDelay
	}

	return d, true
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err() //nolint: wrapcheck
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err() //nolint: wrapcheck
	case <-timer.C:
		return nil
	}
}
