package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	bifrost "github.com/autumn-order/bifrost-sub000"
	"github.com/autumn-order/bifrost-sub000/backoff"
	"github.com/autumn-order/bifrost-sub000/cron"
	"github.com/autumn-order/bifrost-sub000/eve"
	mw "github.com/autumn-order/bifrost-sub000/middleware"
	"github.com/autumn-order/bifrost-sub000/queue"
	"github.com/autumn-order/bifrost-sub000/ratelimit"
	"github.com/autumn-order/bifrost-sub000/track"
	"github.com/autumn-order/bifrost-sub000/worker"
)

// Engine owns the full refresh pipeline: cron passes enqueue jobs, the
// queue dedupes them, and the worker pool executes them against the
// info service. Construct it with New and drive it with Start/Stop.
type Engine struct {
	config bifrost.Config
	logger *slog.Logger

	queue     *queue.Queue
	passes    *eve.Passes
	registry  *worker.Registry
	pool      *worker.Pool
	scheduler *cron.Scheduler
	limiter   *ratelimit.Manager

	// Option state, consumed during New.
	backoff    backoff.Strategy
	rateLimits []ratelimit.Config
	downtime   worker.DowntimeWindow
	middleware []mw.Middleware
}

// Option configures an Engine during New.
type Option func(*Engine)

// WithBackoff sets the delay strategy applied when the queue store
// fails repeatedly. Defaults to backoff.DefaultStrategy.
func WithBackoff(strategy backoff.Strategy) Option {
	return func(e *Engine) {
		if strategy != nil {
			e.backoff = strategy
		}
	}
}

// WithRateLimits installs per-kind concurrency and rate caps. Kinds
// without a config run unconstrained (pool-wide concurrency still
// applies).
func WithRateLimits(configs ...ratelimit.Config) Option {
	return func(e *Engine) {
		e.rateLimits = append(e.rateLimits, configs...)
	}
}

// WithDowntimeWindow overrides the daily window during which dispatch
// pauses. The default is the EVE downtime window; pass a zero window to
// dispatch around the clock.
func WithDowntimeWindow(w worker.DowntimeWindow) Option {
	return func(e *Engine) {
		e.downtime = w
	}
}

// WithMiddleware appends middleware to the execution chain, after the
// built-in recovery and logging layers.
func WithMiddleware(mws ...mw.Middleware) Option {
	return func(e *Engine) {
		e.middleware = append(e.middleware, mws...)
	}
}

// New builds an Engine from its two stores and the info service that
// performs the actual ESI refreshes. The queue store holds pending
// jobs; the tracking store answers staleness queries against the
// entity tables. Both may be the same value when one implementation
// covers both interfaces.
//
// New validates its inputs and registers every cron pass, so the
// returned Engine is ready for Start without further setup.
func New(
	cfg bifrost.Config,
	queueStore queue.Store,
	trackStore track.Store,
	svc eve.InfoService,
	logger *slog.Logger,
	opts ...Option,
) (*Engine, error) {
	if queueStore == nil {
		return nil, bifrost.ErrNoQueueStore
	}
	if trackStore == nil {
		return nil, bifrost.ErrNoTrackStore
	}
	if svc == nil {
		return nil, errors.New("bifrost/engine: info service is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	e := &Engine{
		config:   cfg.Normalized(),
		logger:   logger,
		downtime: eve.Downtime(),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.queue = queue.New(queueStore, queue.WithLogger(logger))

	passes, err := eve.NewPasses(e.queue, trackStore, logger)
	if err != nil {
		return nil, fmt.Errorf("bifrost/engine: build passes: %w", err)
	}
	e.passes = passes

	e.registry = worker.NewRegistry()
	for kind, h := range eve.NewHandlers(svc, logger) {
		e.registry.Register(kind, h)
	}
	if missing := e.registry.Missing(); len(missing) > 0 {
		return nil, fmt.Errorf("bifrost/engine: no handler for job kinds %v", missing)
	}

	chain := append([]mw.Middleware{mw.Recover(logger), mw.Logging(logger)}, e.middleware...)
	executor := worker.NewExecutor(e.registry, e.config.JobTimeout, logger, chain...)

	poolOpts := []worker.PoolOption{worker.WithDowntimeWindow(e.downtime)}
	if e.backoff != nil {
		poolOpts = append(poolOpts, worker.WithBackoff(e.backoff))
	}
	if len(e.rateLimits) > 0 {
		e.limiter = ratelimit.NewManager(e.rateLimits...)
		poolOpts = append(poolOpts, worker.WithRateLimiter(e.limiter))
	}
	e.pool = worker.NewPool(e.queue, executor, e.config, logger, poolOpts...)

	e.scheduler = cron.NewScheduler(logger)
	for _, def := range passes.Definitions() {
		if err := e.scheduler.Register(def); err != nil {
			return nil, fmt.Errorf("bifrost/engine: register pass %s: %w", def.Name, err)
		}
	}

	return e, nil
}

// Start launches the worker pool and then the cron scheduler.
// Dispatchers are draining before the first pass can enqueue work, so
// a restart with a backlog begins executing immediately.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.pool.Start(ctx); err != nil {
		return fmt.Errorf("bifrost/engine: start pool: %w", err)
	}
	if err := e.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("bifrost/engine: start scheduler: %w", err)
	}
	e.logger.Info("engine started",
		slog.String("worker_id", e.pool.WorkerID().String()),
		slog.Int("passes", len(e.passes.Definitions())),
	)
	return nil
}

// Stop halts the cron scheduler, then drains the worker pool. Both
// waits share a single deadline derived from the configured shutdown
// timeout, so Stop cannot block past it even when a pass and a job are
// stuck at the same time. A scheduler stop failure is logged rather
// than returned; the pool's drain result decides the error.
func (e *Engine) Stop(ctx context.Context) error {
	if e.config.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.config.ShutdownTimeout)
		defer cancel()
	}
	if err := e.scheduler.Stop(ctx); err != nil {
		e.logger.Error("cron scheduler stop error", slog.String("error", err.Error()))
	}
	if err := e.pool.Stop(ctx); err != nil {
		return fmt.Errorf("bifrost/engine: stop pool: %w", err)
	}
	e.logger.Info("engine stopped")
	return nil
}

// Queue returns the engine's job queue.
func (e *Engine) Queue() *queue.Queue { return e.queue }

// Pool returns the engine's worker pool.
func (e *Engine) Pool() *worker.Pool { return e.pool }

// Scheduler returns the engine's cron scheduler.
func (e *Engine) Scheduler() *cron.Scheduler { return e.scheduler }

// Registry returns the engine's handler registry.
func (e *Engine) Registry() *worker.Registry { return e.registry }

// RateLimiter returns the per-kind rate limiter, or nil when no limits
// were configured.
func (e *Engine) RateLimiter() *ratelimit.Manager { return e.limiter }

// Tracker returns the tracker behind the named pass ("alliance",
// "corporation", "character", "affiliation"), or nil for passes that do
// not track staleness.
func (e *Engine) Tracker(name string) *track.Tracker { return e.passes.Tracker(name) }
