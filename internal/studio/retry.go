package studio

import (
	"context"
	"log/slog"
	"time"
)

const (
	defaultMaxAttempts = 3
	defaultBaseDelay   = 2 * time.Second
)

// Retry bounds how often a rate-limited call is re-issued. The zero value
// uses the defaults. Sleep exists so tests can observe delays without
// waiting them out.
type Retry struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Sleep       func(ctx context.Context, d time.Duration) error
}

// run executes op until it succeeds, fails with a non-rate-limit error, or
// the attempt budget is spent. The wait before re-issuing a call that failed
// on attempt i (zero-based) is BaseDelay * 2^i, no jitter. The last observed
// error is returned unchanged once the budget is spent.
func (r Retry) run(ctx context.Context, logger *slog.Logger, op func(context.Context) error) error {
	attempts := r.MaxAttempts
	if attempts < 1 {
		attempts = defaultMaxAttempts
	}
	base := r.BaseDelay
	if base <= 0 {
		base = defaultBaseDelay
	}
	sleep := r.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := base << uint(attempt-1)
			logger.Warn("rate limited, backing off", "attempt", attempt+1, "delay", delay.String(), "err", lastErr)
			if err := sleep(ctx, delay); err != nil {
				return err
			}
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if !IsRateLimited(lastErr) {
			return lastErr
		}
	}
	return lastErr
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
