package scheduler

import (
	"context"
	"time"

	"github.com/relaydb/relaydb/metrics"
	"go.uber.org/zap"
)

// Schedule runs task every period until stop reaches at least StopASAP,
// submitting each firing through pool so a slow task run never blocks
// the ticking goroutine itself. It returns once stop.IsNow() is
// observed or ctx is cancelled; a StopASAP request lets the
// already-submitted task finish but stops scheduling new runs.
func Schedule(ctx context.Context, pool *Pool, stop *Stoppable, period time.Duration, task Task) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if stop.IsNow() {
				return
			}
			if stop.Stopped() {
				continue
			}

			if err := pool.Submit(ctx, task); err != nil {
				return
			}
		}
	}
}

// WithTaskLogger wraps t so any error it returns is logged with name
// attached, giving Pool's own error log context about which schedule
// produced the failure.
func WithTaskLogger(name string, l *zap.Logger, t Task) Task {
	return func(ctx context.Context) error {
		err := t(ctx)
		if err != nil {
			l.Warn("scheduler: task failed", zap.String("task", name), zap.Error(err))
		}
		return err
	}
}

// WithTaskMetrics wraps t so every run's duration and outcome are recorded
// under name in the relaydb_scheduler_task_* collectors.
func WithTaskMetrics(name string, t Task) Task {
	return func(ctx context.Context) error {
		start := time.Now()
		err := t(ctx)
		metrics.ObserveSchedulerTask(name, time.Since(start), err)
		return err
	}
}
