// Package poll runs functions periodically until they finish or are cancelled.
package poll

import (
	"context"
	"errors"
	"time"
)

// ErrTimeout is returned by Until when maxDuration elapses before fn reports done.
var ErrTimeout = errors.New("polling timed out")

// Until calls fn immediately and then every interval until fn reports done, returns an
// error, ctx is cancelled, or maxDuration elapses. A maxDuration of zero means no limit.
func Until(ctx context.Context, interval, maxDuration time.Duration, fn func(context.Context) (bool, error)) error {
	if interval <= 0 {
		return errors.New("poll interval must be positive")
	}

	if maxDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, maxDuration, ErrTimeout)
		defer cancel()
	}

	var wait time.Duration
	for {
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return context.Cause(ctx)
		case <-timer.C:
		}
		wait = interval

		done, err := fn(ctx)
		if err != nil {
			// fn failing because our own deadline hit is still a timeout
			if errors.Is(context.Cause(ctx), ErrTimeout) {
				return ErrTimeout
			}
			return err
		}
		if done {
			return nil
		}
	}
}

// Every calls fn immediately and then on every tick of interval until ctx is cancelled.
// Runs of fn never overlap; ticks missed while fn runs are dropped.
func Every(ctx context.Context, interval time.Duration, fn func(context.Context)) {
	if ctx.Err() != nil {
		return
	}
	fn(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}
