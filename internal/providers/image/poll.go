package image

import (
	"context"
	"time"
)

// PollFunc checks a remote job once. It reports done when v is final.
type PollFunc[T any] func(ctx context.Context, attempt int) (v T, done bool, err error)

// PollUntil waits interval before each check and stops at the first done or
// error. After maxAttempts unfinished checks it returns *PollTimeoutError.
func PollUntil[T any](ctx context.Context, interval time.Duration, maxAttempts int, check PollFunc[T]) (T, error) {
	var zero T
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	timer := time.NewTimer(interval)
	defer timer.Stop()
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-timer.C:
		}
		v, done, err := check(ctx, attempt)
		if err != nil {
			return zero, err
		}
		if done {
			return v, nil
		}
		timer.Reset(interval)
	}
	return zero, &PollTimeoutError{Attempts: maxAttempts, Interval: interval}
}
