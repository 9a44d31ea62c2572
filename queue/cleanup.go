package queue

import (
	"context"
	"log/slog"
	"time"

	bifrost "github.com/autumn-order/bifrost-sub000"
)

// StartCleanup begins removing stale entries every interval in a
// background goroutine. A non-positive interval falls back to the
// default cleanup interval. Calling StartCleanup while the loop is
// already running is a no-op.
func (q *Queue) StartCleanup(interval time.Duration) {
	if interval <= 0 {
		interval = bifrost.DefaultConfig().CleanupInterval
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stop != nil {
		return
	}
	q.stop = make(chan struct{})
	q.done = make(chan struct{})
	go q.cleanupLoop(q.stop, q.done, interval)
}

// StopCleanup stops the background cleanup loop and waits for an
// in-flight pass to finish. It is safe to call when the loop is not
// running.
func (q *Queue) StopCleanup() {
	q.mu.Lock()
	stop, done := q.stop, q.done
	q.stop, q.done = nil, nil
	q.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
}

func (q *Queue) cleanupLoop(stop <-chan struct{}, done chan<- struct{}, interval time.Duration) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
			removed, err := q.CleanupStaleJobs(ctx)
			cancel()
			if err != nil {
				q.logger.Error("stale job cleanup failed", slog.String("error", err.Error()))
				continue
			}
			if removed > 0 {
				q.logger.Info("removed stale jobs from queue", slog.Int64("removed", removed))
			}
		}
	}
}
