package storage

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/concierge/pkg/utils"
)

// PruneInterval picks how often idle sessions are swept for a given max age.
func PruneInterval(maxAge time.Duration) time.Duration {
	interval := maxAge / 4
	if interval < time.Minute {
		interval = time.Minute
	}
	if interval > time.Hour {
		interval = time.Hour
	}
	return interval
}

// PruneIdle removes sessions idle for longer than maxAge every interval until ctx is done.
// It blocks; run it in its own goroutine.
func PruneIdle(ctx context.Context, store SessionStore, maxAge, interval time.Duration, logger *zap.Logger) {
	logger = utils.NopIfNil(logger)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			removed, err := store.Prune(ctx, now.Add(-maxAge))
			if err != nil {
				if ctx.Err() == nil {
					logger.Warn("session prune failed", zap.Error(err))
				}
				continue
			}
			if removed > 0 {
				logger.Info("pruned idle sessions", zap.Int64("removed", removed), zap.Duration("max_age", maxAge))
			}
		}
	}
}
