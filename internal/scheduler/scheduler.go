// Package scheduler drives the trading cycle on a fixed cadence.
package scheduler

import (
	"context"
	"time"
)

// Every runs fn immediately and then once per interval until ctx is
// cancelled. fn errors are reported through onErr (if non-nil) and do not
// stop the loop; only cancellation does.
func Every(ctx context.Context, interval time.Duration, fn func(context.Context) error, onErr func(error)) error {
	run := func() {
		if err := fn(ctx); err != nil && onErr != nil {
			onErr(err)
		}
	}
	run()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			run()
		}
	}
}
