package bifrost

import "time"

// jobsPerDispatcher caps how many permits a single dispatcher loop may be
// responsible for. Dispatchers scale up as concurrency grows so one hot
// loop cannot monopolize permit acquisition.
const jobsPerDispatcher = 40

// Config holds configuration for the worker pool. It is immutable after
// pool construction.
type Config struct {
	// MaxConcurrentJobs is the total number of concurrency permits; at most
	// this many jobs execute simultaneously. Size it to roughly 80% of the
	// database connection pool to avoid connection exhaustion.
	MaxConcurrentJobs int

	// PollInterval is how long a dispatcher sleeps when the queue has no
	// ready job.
	PollInterval time.Duration

	// JobTimeout is the deadline applied to each handler invocation. The
	// permit is released when the deadline elapses even if the handler's
	// goroutine straggles past it.
	JobTimeout time.Duration

	// ShutdownTimeout is the maximum time Stop waits for each dispatcher to
	// finish its in-flight work.
	ShutdownTimeout time.Duration

	// CleanupInterval is how often the queue's stale-job cleaner runs.
	CleanupInterval time.Duration
}

// DefaultConfig returns a Config with the stock defaults: 4 concurrent
// jobs, 50ms poll, 60s job timeout, 5s shutdown timeout, 5m cleanup.
func DefaultConfig() Config {
	return Config{
		MaxConcurrentJobs: 4,
		PollInterval:      50 * time.Millisecond,
		JobTimeout:        60 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		CleanupInterval:   5 * time.Minute,
	}
}

// DispatcherCount derives how many dispatcher loops the pool runs: one per
// 40 permits, rounded up, never fewer than one.
func (c Config) DispatcherCount() int {
	n := (c.MaxConcurrentJobs + jobsPerDispatcher - 1) / jobsPerDispatcher
	if n < 1 {
		return 1
	}
	return n
}

// Normalized fills zero fields from DefaultConfig so a partially specified
// Config is still usable. Pool construction applies this.
func (c Config) Normalized() Config {
	def := DefaultConfig()
	if c.MaxConcurrentJobs <= 0 {
		c.MaxConcurrentJobs = def.MaxConcurrentJobs
	}
	if c.PollInterval <= 0 {
		c.PollInterval = def.PollInterval
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = def.JobTimeout
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = def.ShutdownTimeout
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = def.CleanupInterval
	}
	return c
}
