package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	bifrost "github.com/autumn-order/bifrost-sub000"
	"github.com/autumn-order/bifrost-sub000/backoff"
	"github.com/autumn-order/bifrost-sub000/id"
	"github.com/autumn-order/bifrost-sub000/queue"
)

// RateLimiter controls per-kind dispatch rate and concurrency. The pool
// calls Acquire before running a popped job and Release after the job
// completes; a denied job is pushed back onto the queue for a later
// poll cycle.
type RateLimiter interface {
	// Acquire reports whether a job of the kind may run now.
	Acquire(kind bifrost.Kind) bool
	// Release decrements the active count for the kind.
	Release(kind bifrost.Kind)
}

// Pool runs a set of dispatcher goroutines that poll the queue for due
// jobs and execute them through the Executor. Total concurrency is
// bounded by a fixed pool of permits: a dispatcher must hold a permit
// to pop, the permit travels with the job while it runs, and it returns
// to the pool when the job finishes or its deadline elapses. Blocking
// on permit acquisition is the pool's backpressure — the queue is never
// drained faster than permits free up.
type Pool struct {
	queue    *queue.Queue
	executor *Executor
	config   bifrost.Config
	workerID id.WorkerID
	logger   *slog.Logger
	backoff  backoff.Strategy
	limiter  RateLimiter
	downtime DowntimeWindow

	permits chan struct{}

	mu          sync.Mutex
	running     bool
	dispatchers int
	stopCh      chan struct{}
	wg          sync.WaitGroup

	activeMu   sync.Mutex
	activeRuns map[string]context.CancelFunc
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithBackoff sets the delay strategy applied after consecutive queue
// store errors. Defaults to a constant one-second delay.
func WithBackoff(strategy backoff.Strategy) PoolOption {
	return func(p *Pool) {
		if strategy != nil {
			p.backoff = strategy
		}
	}
}

// WithRateLimiter sets the per-kind rate limiter consulted before each
// job runs.
func WithRateLimiter(limiter RateLimiter) PoolOption {
	return func(p *Pool) { p.limiter = limiter }
}

// WithDowntimeWindow sets a daily UTC window during which dispatchers
// pause instead of popping jobs.
func WithDowntimeWindow(w DowntimeWindow) PoolOption {
	return func(p *Pool) { p.downtime = w }
}

// NewPool creates a worker pool. Zero config fields fall back to the
// defaults.
func NewPool(
	q *queue.Queue,
	executor *Executor,
	cfg bifrost.Config,
	logger *slog.Logger,
	opts ...PoolOption,
) *Pool {
	cfg = cfg.Normalized()
	p := &Pool{
		queue:      q,
		executor:   executor,
		config:     cfg,
		workerID:   id.NewWorkerID(),
		logger:     logger,
		backoff:    backoff.DefaultStrategy(),
		permits:    make(chan struct{}, cfg.MaxConcurrentJobs),
		activeRuns: make(map[string]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// WorkerID returns the pool's unique worker identifier.
func (p *Pool) WorkerID() id.WorkerID { return p.workerID }

// MaxConcurrentJobs returns the pool's permit ceiling.
func (p *Pool) MaxConcurrentJobs() int { return cap(p.permits) }

// AvailablePermits returns how many permits are currently free.
func (p *Pool) AvailablePermits() int { return cap(p.permits) - len(p.permits) }

// ActiveJobCount returns how many permits are currently held.
// AvailablePermits plus ActiveJobCount always equals MaxConcurrentJobs.
func (p *Pool) ActiveJobCount() int { return len(p.permits) }

// IsRunning reports whether the pool has been started and not stopped.
func (p *Pool) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// DispatcherCount returns the number of dispatcher goroutines the pool
// is running, or zero when the pool is stopped.
func (p *Pool) DispatcherCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dispatchers
}

// Start launches the dispatchers and the queue's stale-entry cleanup
// loop, then returns immediately. Starting a running pool is a no-op.
func (p *Pool) Start(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return nil
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.dispatchers = p.config.DispatcherCount()

	p.logger.Info("worker pool starting",
		slog.String("worker_id", p.workerID.String()),
		slog.Int("max_concurrent_jobs", p.config.MaxConcurrentJobs),
		slog.Int("dispatchers", p.dispatchers),
	)

	for range p.dispatchers {
		p.wg.Add(1)
		go p.dispatchLoop(p.stopCh)
	}
	p.queue.StartCleanup(p.config.CleanupInterval)

	return nil
}

// Stop signals the dispatchers to stop, halts queue cleanup, and waits
// for in-flight jobs to finish. The wait is bounded by the configured
// shutdown timeout and by ctx, whichever ends first; when time runs out
// the contexts of active jobs are cancelled and their permits return as
// each execution is abandoned. A handler that ignores its context keeps
// running on its own goroutine but no longer blocks the pool. Stopping
// a stopped pool is a no-op.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	p.dispatchers = 0
	stopCh := p.stopCh
	p.stopCh = nil
	p.mu.Unlock()

	p.logger.Info("worker pool stopping", slog.String("worker_id", p.workerID.String()))

	close(stopCh)
	p.queue.StopCleanup()

	if p.config.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.ShutdownTimeout)
		defer cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("worker pool stopped gracefully")
	case <-ctx.Done():
		p.logger.Warn("worker pool shutdown timed out, cancelling active jobs")
		p.cancelActiveRuns()
		p.wg.Wait()
	}

	return nil
}

// dispatchLoop is run by each dispatcher goroutine.
func (p *Pool) dispatchLoop(stopCh <-chan struct{}) {
	defer p.wg.Done()

	// Consecutive store failures, reset on any successful poll.
	failures := 0

	for {
		// A permit must be held before popping so that a full pool
		// exerts backpressure here rather than buffering claimed jobs.
		select {
		case <-stopCh:
			return
		case p.permits <- struct{}{}:
		}

		if p.downtime.Contains(time.Now().UTC()) {
			<-p.permits
			p.sleep(stopCh, p.config.PollInterval)
			continue
		}

		sj, err := p.queue.Pop(context.Background())
		if err != nil {
			<-p.permits
			failures++
			p.logger.Error("failed to pop job from queue",
				slog.String("error", err.Error()),
				slog.Int("consecutive_failures", failures))
			p.sleep(stopCh, p.backoff.Delay(failures))
			continue
		}
		failures = 0

		if sj == nil {
			<-p.permits
			p.sleep(stopCh, p.config.PollInterval)
			continue
		}

		if p.limiter != nil && !p.limiter.Acquire(sj.Job.Kind()) {
			<-p.permits
			p.deferJob(sj.Job)
			p.sleep(stopCh, p.config.PollInterval)
			continue
		}

		// The job takes the permit with it; the dispatcher keeps
		// polling.
		p.wg.Add(1)
		go p.runJob(sj)
	}
}

// runJob executes one job and returns its permit when done.
func (p *Pool) runJob(sj *bifrost.ScheduledJob) {
	defer p.wg.Done()
	defer func() { <-p.permits }()
	if p.limiter != nil {
		defer p.limiter.Release(sj.Job.Kind())
	}

	runID := id.NewRunID()
	ctx, cancel := context.WithCancel(id.WithRunID(context.Background(), runID))
	defer cancel()

	p.trackRun(runID.String(), cancel)
	defer p.untrackRun(runID.String())

	if err := p.executor.Execute(ctx, sj); err != nil {
		// Already logged by middleware; the job is simply dropped and
		// the tracker re-offers the entity on a later pass.
		p.logger.Debug("job execution failed",
			slog.String("job", sj.Job.Identity()),
			slog.String("run_id", runID.String()),
			slog.String("error", err.Error()))
	}
}

// deferJob pushes a rate-limited job back for a later poll cycle. The
// entry was claimed by Pop, so the re-schedule cannot collide with the
// dedup guard.
func (p *Pool) deferJob(job bifrost.Job) {
	at := time.Now().UTC().Add(p.config.PollInterval)
	if _, err := p.queue.Schedule(context.Background(), job, at); err != nil {
		p.logger.Error("failed to defer rate-limited job",
			slog.String("job", job.Identity()),
			slog.String("error", err.Error()))
	}
}

func (p *Pool) sleep(stopCh <-chan struct{}, d time.Duration) {
	select {
	case <-time.After(d):
	case <-stopCh:
	}
}

func (p *Pool) trackRun(runID string, cancel context.CancelFunc) {
	p.activeMu.Lock()
	p.activeRuns[runID] = cancel
	p.activeMu.Unlock()
}

func (p *Pool) untrackRun(runID string) {
	p.activeMu.Lock()
	delete(p.activeRuns, runID)
	p.activeMu.Unlock()
}

func (p *Pool) cancelActiveRuns() {
	p.activeMu.Lock()
	defer p.activeMu.Unlock()
	for runID, cancel := range p.activeRuns {
		p.logger.Warn("cancelling active job", slog.String("run_id", runID))
		cancel()
	}
}
