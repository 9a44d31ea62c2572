// Package worker provides the job execution engine — an Executor that
// invokes registered handlers through middleware, and a Pool of
// dispatchers that poll the queue and run due jobs concurrently under a
// permit ceiling.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	bifrost "github.com/autumn-order/bifrost-sub000"
	"github.com/autumn-order/bifrost-sub000/middleware"
)

// Executor runs a single job through the middleware chain and the
// registered handler, bounded by the job timeout.
type Executor struct {
	registry *Registry
	mw       middleware.Middleware
	timeout  time.Duration
	logger   *slog.Logger
}

// NewExecutor creates an Executor. A non-positive timeout disables the
// per-job deadline.
func NewExecutor(
	registry *Registry,
	timeout time.Duration,
	logger *slog.Logger,
	mws ...middleware.Middleware,
) *Executor {
	return &Executor{
		registry: registry,
		mw:       middleware.Chain(mws...),
		timeout:  timeout,
		logger:   logger,
	}
}

// Execute runs a job through the middleware chain and handler. The
// handler error is returned as-is; a job with no registered handler
// fails without invoking the chain. When the context ends before the
// chain returns, Execute returns the context error immediately and the
// handler is left to unwind on its own with its cancelled context.
func (e *Executor) Execute(ctx context.Context, sj *bifrost.ScheduledJob) error {
	handler, ok := e.registry.Get(sj.Job.Kind())
	if !ok {
		return fmt.Errorf("%w: %s", bifrost.ErrNoHandler, sj.Job.Kind())
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	terminal := func(ctx context.Context) error {
		return handler(ctx, sj.Job)
	}

	// Buffered so an abandoned chain can complete its send and exit.
	done := make(chan error, 1)
	go func() {
		done <- e.mw(ctx, sj, terminal)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		e.logger.Warn("abandoning job, context ended before handler returned",
			slog.String("job", sj.Job.Identity()),
			slog.String("error", ctx.Err().Error()))
		return fmt.Errorf("bifrost/worker: execute %s: %w", sj.Job.Identity(), ctx.Err())
	}
}
