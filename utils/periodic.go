package utils

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// RunPeriodic calls fn every interval until ctx is done. The first run
// happens after one interval. A failing run is logged and the loop continues.
func RunPeriodic(ctx context.Context, name string, interval time.Duration, fn func(context.Context) error) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				Logger.Info("periodic job stopped", zap.String("job", name))
				return
			case <-ticker.C:
				if err := fn(ctx); err != nil {
					Logger.Error("periodic job failed", zap.String("job", name), zap.Error(err))
				}
			}
		}
	}()
}
