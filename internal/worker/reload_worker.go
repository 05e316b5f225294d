package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-desk/internal/observability"
)

// Trigger schedules a coalesced snapshot reload.
type Trigger interface {
	Trigger()
}

// StartReloadWorker triggers a reload every interval until ctx ends. A
// non-positive interval disables polling. The returned channel closes when
// the worker has stopped.
func StartReloadWorker(ctx context.Context, interval time.Duration, reloads Trigger, logger *zap.Logger) <-chan struct{} {
	done := make(chan struct{})
	logger = observability.OrNop(logger)
	if interval <= 0 || reloads == nil {
		logger.Info("snapshot polling disabled")
		close(done)
		return done
	}

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		logger.Info("snapshot polling started", zap.Duration("interval", interval))
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				reloads.Trigger()
			}
		}
	}()
	return done
}
