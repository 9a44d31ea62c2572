package track

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	bifrost "github.com/autumn-order/bifrost-sub000"
	"github.com/autumn-order/bifrost-sub000/queue"
	"github.com/autumn-order/bifrost-sub000/schedule"
)

// Config describes one refresh-tracked entity type.
type Config struct {
	// Entity names the backing table and columns.
	Entity Entity

	// CacheDuration is how long a refreshed record stays valid.
	CacheDuration time.Duration

	// ScheduleInterval is how often a tracking pass runs. Jobs
	// produced by a pass are spread across this window, and a row
	// stays off limits for two intervals after a job is scheduled
	// for it.
	ScheduleInterval time.Duration

	// BatchSize is how many row ids go into a single job. Zero or one
	// produces one job per row.
	BatchSize int

	// Build turns a batch of row ids into the job that refreshes them.
	Build func(ids []int64) bifrost.Job
}

// Tracker runs refresh passes for a single entity type.
type Tracker struct {
	cfg    Config
	store  Store
	queue  *queue.Queue
	logger *slog.Logger
}

// Option customises a Tracker.
type Option func(*Tracker)

// WithLogger sets the logger used for per-pass summaries. Defaults to
// slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// New creates a Tracker for one entity type.
func New(cfg Config, store Store, q *queue.Queue, opts ...Option) (*Tracker, error) {
	switch {
	case store == nil:
		return nil, errors.New("bifrost/track: store is required")
	case q == nil:
		return nil, errors.New("bifrost/track: queue is required")
	case cfg.Build == nil:
		return nil, errors.New("bifrost/track: job builder is required")
	case cfg.Entity.Table == "" || cfg.Entity.IDColumn == "" ||
		cfg.Entity.UpdatedAtColumn == "" || cfg.Entity.ScheduledAtColumn == "":
		return nil, fmt.Errorf("bifrost/track: incomplete entity descriptor for %q", cfg.Entity.Name)
	case cfg.CacheDuration <= 0 || cfg.ScheduleInterval <= 0:
		return nil, fmt.Errorf("bifrost/track: cache duration and schedule interval must be positive for %q", cfg.Entity.Name)
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 1
	}

	t := &Tracker{
		cfg:    cfg,
		store:  store,
		queue:  q,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// FindEntriesNeedingUpdate returns ids of rows due a refresh, stalest
// first. The result is capped by the batch limit derived from the total
// row count, so one pass never schedules more than its share of the
// cache lifetime.
func (t *Tracker) FindEntriesNeedingUpdate(ctx context.Context) ([]int64, error) {
	total, err := t.store.Count(ctx, t.cfg.Entity)
	if err != nil {
		return nil, fmt.Errorf("bifrost/track: count %s rows: %w", t.cfg.Entity.Name, err)
	}

	limit := schedule.BatchLimit(int(total), t.cfg.CacheDuration, t.cfg.ScheduleInterval)
	if limit == 0 {
		return nil, nil
	}

	now := time.Now().UTC()
	ids, err := t.store.StaleIDs(ctx, t.cfg.Entity, StaleQuery{
		UpdatedBefore:   now.Add(-t.cfg.CacheDuration),
		ScheduledBefore: now.Add(-2 * t.cfg.ScheduleInterval),
		Limit:           limit,
	})
	if err != nil {
		return nil, fmt.Errorf("bifrost/track: find stale %s rows: %w", t.cfg.Entity.Name, err)
	}
	return ids, nil
}

// ScheduleJobs builds jobs for the given row ids, spreads them across
// the schedule interval, and enqueues each one. Rows belonging to jobs
// the queue newly accepted are stamped in a single bulk update;
// duplicates the queue already held are skipped without error. Returns
// the number of jobs newly scheduled.
func (t *Tracker) ScheduleJobs(ctx context.Context, ids []int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	batches := t.batch(ids)
	times := schedule.Spread(len(batches), t.cfg.ScheduleInterval, time.Now().UTC())

	scheduled := 0
	var marks []Mark
	for i, b := range batches {
		added, err := t.queue.Schedule(ctx, b.job, times[i])
		if err != nil {
			return scheduled, err
		}
		if !added {
			continue
		}
		scheduled++
		for _, id := range b.ids {
			marks = append(marks, Mark{ID: id, At: times[i]})
		}
	}

	if err := t.MarkJobsAsScheduled(ctx, marks); err != nil {
		return scheduled, err
	}
	return scheduled, nil
}

// MarkJobsAsScheduled stamps the schedule column for exactly the given
// rows. Empty input is a no-op.
func (t *Tracker) MarkJobsAsScheduled(ctx context.Context, marks []Mark) error {
	if len(marks) == 0 {
		return nil
	}
	if err := t.store.MarkScheduled(ctx, t.cfg.Entity, marks); err != nil {
		return fmt.Errorf("bifrost/track: mark %s rows scheduled: %w", t.cfg.Entity.Name, err)
	}
	return nil
}

// Run executes one tracking pass: find stale rows, schedule jobs for
// them, stamp the rows that were accepted. Returns the number of jobs
// newly scheduled.
func (t *Tracker) Run(ctx context.Context) (int, error) {
	ids, err := t.FindEntriesNeedingUpdate(ctx)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	scheduled, err := t.ScheduleJobs(ctx, ids)
	if err != nil {
		return scheduled, err
	}

	t.logger.Info("tracking pass complete",
		slog.String("entity", t.cfg.Entity.Name),
		slog.Int("stale", len(ids)),
		slog.Int("scheduled", scheduled))
	return scheduled, nil
}

type jobBatch struct {
	job bifrost.Job
	ids []int64
}

// batch chunks ids by the configured batch size and builds one job per
// chunk.
func (t *Tracker) batch(ids []int64) []jobBatch {
	size := t.cfg.BatchSize
	batches := make([]jobBatch, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		chunk := ids[start:end]
		batches = append(batches, jobBatch{job: t.cfg.Build(chunk), ids: chunk})
	}
	return batches
}
