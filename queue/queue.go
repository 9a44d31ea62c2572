package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	bifrost "github.com/autumn-order/bifrost-sub000"
)

// StaleJobTTL is how long an entry may sit in the queue before it is
// treated as abandoned. Entries older than this are deleted by
// CleanupStaleJobs rather than handed to workers; the next cron pass
// re-offers the underlying entity with a fresh due time.
const StaleJobTTL = time.Hour

// cleanupTimeout bounds a single background cleanup pass.
const cleanupTimeout = 30 * time.Second

// Queue is a deduplicating delay queue over a Store. All methods are
// safe for concurrent use.
type Queue struct {
	store  Store
	logger *slog.Logger

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

// Option customises a Queue.
type Option func(*Queue)

// WithLogger sets the logger used by the background cleanup loop.
// Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(q *Queue) {
		if logger != nil {
			q.logger = logger
		}
	}
}

// New creates a Queue backed by the given store.
func New(store Store, opts ...Option) *Queue {
	q := &Queue{
		store:  store,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Push enqueues job to run as soon as a worker picks it up. It returns
// true when the job was newly added and false when an entry with the
// same identity is already queued. A duplicate is not an error.
func (q *Queue) Push(ctx context.Context, job bifrost.Job) (bool, error) {
	return q.Schedule(ctx, job, time.Now().UTC())
}

// Schedule enqueues job to become due at the given time. Like Push it
// returns false, not an error, when the identity is already queued; the
// existing entry keeps its original due time. Jobs whose identity
// cannot round-trip (an affiliation batch with no ids) are rejected
// here rather than stored as entries Pop could never parse.
func (q *Queue) Schedule(ctx context.Context, job bifrost.Job, at time.Time) (bool, error) {
	if err := bifrost.ValidateJob(job); err != nil {
		return false, fmt.Errorf("bifrost/queue: schedule %s: %w", job.Kind(), err)
	}
	added, err := q.store.Add(ctx, job.Identity(), at)
	if err != nil {
		return false, fmt.Errorf("bifrost/queue: schedule %s: %w", job.Kind(), err)
	}
	return added, nil
}

// Pop claims the due entry with the oldest due time and returns it as a
// ScheduledJob. It returns (nil, nil) when nothing is due. A claimed
// entry that no longer parses as a job has already been removed from
// the store; it is reported as an error and not retried.
func (q *Queue) Pop(ctx context.Context) (*bifrost.ScheduledJob, error) {
	entry, err := q.store.PopDue(ctx, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("bifrost/queue: pop: %w", err)
	}
	if entry == nil {
		return nil, nil
	}
	job, err := bifrost.ParseJob(entry.Member)
	if err != nil {
		return nil, fmt.Errorf("bifrost/queue: pop: %w", err)
	}
	return &bifrost.ScheduledJob{Job: job, ScheduledAt: entry.At}, nil
}

// CleanupStaleJobs removes every entry that became due more than
// StaleJobTTL ago and returns the number removed. The cutoff is
// inclusive: an entry exactly StaleJobTTL old is removed.
func (q *Queue) CleanupStaleJobs(ctx context.Context) (int64, error) {
	cutoff := time.Now().UTC().Add(-StaleJobTTL)
	removed, err := q.store.RemoveBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("bifrost/queue: cleanup: %w", err)
	}
	return removed, nil
}

// Len returns the number of queued entries, due or not.
func (q *Queue) Len(ctx context.Context) (int64, error) {
	n, err := q.store.Card(ctx)
	if err != nil {
		return 0, fmt.Errorf("bifrost/queue: len: %w", err)
	}
	return n, nil
}

// JobsOfKind returns every queued job of the given kind ordered by due
// time ascending. It fails if the store holds an entry that does not
// parse as a job.
func (q *Queue) JobsOfKind(ctx context.Context, kind bifrost.Kind) ([]bifrost.ScheduledJob, error) {
	entries, err := q.store.Entries(ctx)
	if err != nil {
		return nil, fmt.Errorf("bifrost/queue: jobs of kind %s: %w", kind, err)
	}
	var jobs []bifrost.ScheduledJob
	for _, entry := range entries {
		job, err := bifrost.ParseJob(entry.Member)
		if err != nil {
			return nil, fmt.Errorf("bifrost/queue: jobs of kind %s: %w", kind, err)
		}
		if job.Kind() != kind {
			continue
		}
		jobs = append(jobs, bifrost.ScheduledJob{Job: job, ScheduledAt: entry.At})
	}
	return jobs, nil
}

// Clear removes every entry from the queue.
func (q *Queue) Clear(ctx context.Context) error {
	if err := q.store.Clear(ctx); err != nil {
		return fmt.Errorf("bifrost/queue: clear: %w", err)
	}
	return nil
}
