package util

import (
	"context"
	"time"
)

// RunPeriodically calls fn every interval until ctx is done. A tick that
// arrives while fn is still running is dropped rather than queued.
func RunPeriodically(ctx context.Context, interval time.Duration, fn func(ctx context.Context)) {
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
