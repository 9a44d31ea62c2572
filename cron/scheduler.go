package cron

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	cronlib "github.com/robfig/cron/v3"
)

// cronParser requires six-field expressions with a leading seconds
// column, and also accepts descriptors like "@every 30s".
var cronParser = cronlib.NewParser(
	cronlib.Second | cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow | cronlib.Descriptor,
)

// ParseSchedule parses a cron expression.
func ParseSchedule(expr string) (cronlib.Schedule, error) {
	return cronParser.Parse(expr)
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithTickInterval sets how often the scheduler checks for due
// entries. Defaults to one second.
func WithTickInterval(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if d > 0 {
			s.tickInterval = d
		}
	}
}

// entry pairs a definition with its parsed schedule and run state.
// All fields past schedule are guarded by the Scheduler mutex.
type entry struct {
	def      Definition
	schedule cronlib.Schedule

	nextRun  time.Time
	lastRun  time.Time
	inFlight bool
}

// EntryStatus describes one registered entry.
type EntryStatus struct {
	Name     string
	Schedule string

	// LastRun is zero until the entry fires for the first time.
	LastRun time.Time
	NextRun time.Time
}

// Scheduler fires registered definitions on a tick loop. Each fire
// runs in its own goroutine so a slow entry never delays the others.
type Scheduler struct {
	logger       *slog.Logger
	tickInterval time.Duration

	mu         sync.Mutex
	entries    []*entry
	running    bool
	stopCh     chan struct{}
	runCtx     context.Context
	cancelRuns context.CancelFunc
	wg         sync.WaitGroup
}

// NewScheduler creates a Scheduler with no entries.
func NewScheduler(logger *slog.Logger, opts ...SchedulerOption) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{
		logger:       logger,
		tickInterval: time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register adds a definition. Registering on a running scheduler is
// allowed; the entry is picked up on the next tick.
func (s *Scheduler) Register(def Definition) error {
	if def.Name == "" {
		return errors.New("bifrost/cron: definition name is required")
	}
	if def.Run == nil {
		return fmt.Errorf("bifrost/cron: definition %s has no run callback", def.Name)
	}
	sched, err := ParseSchedule(def.Schedule)
	if err != nil {
		return fmt.Errorf("bifrost/cron: parse schedule for %s: %w", def.Name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if e.def.Name == def.Name {
			return fmt.Errorf("bifrost/cron: definition %s already registered", def.Name)
		}
	}
	s.entries = append(s.entries, &entry{
		def:      def,
		schedule: sched,
		nextRun:  sched.Next(time.Now().UTC()),
	})
	return nil
}

// Entries reports the registered entries and their run state.
func (s *Scheduler) Entries() []EntryStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]EntryStatus, len(s.entries))
	for i, e := range s.entries {
		out[i] = EntryStatus{
			Name:     e.def.Name,
			Schedule: e.def.Schedule,
			LastRun:  e.lastRun,
			NextRun:  e.nextRun,
		}
	}
	return out
}

// IsRunning reports whether the scheduler has been started and not
// stopped.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Start launches the tick loop and returns immediately. Starting a
// running scheduler is a no-op.
func (s *Scheduler) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.runCtx, s.cancelRuns = context.WithCancel(context.Background())

	// Recompute from now so entries that came due while the scheduler
	// was stopped fire on their next occurrence, not immediately.
	now := time.Now().UTC()
	for _, e := range s.entries {
		e.nextRun = e.schedule.Next(now)
	}

	s.wg.Add(1)
	go s.tickLoop(s.stopCh)

	s.logger.Info("cron scheduler started",
		slog.Int("entries", len(s.entries)),
		slog.Duration("tick_interval", s.tickInterval),
	)
	return nil
}

// Stop halts the tick loop and waits for in-flight runs to return.
// When ctx ends first the run contexts are cancelled and Stop waits
// for the callbacks to honor them. Stopping a stopped scheduler is a
// no-op.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	stopCh := s.stopCh
	s.stopCh = nil
	cancelRuns := s.cancelRuns
	s.cancelRuns = nil
	s.mu.Unlock()

	close(stopCh)
	defer cancelRuns()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("cron scheduler stopped")
	case <-ctx.Done():
		s.logger.Warn("cron scheduler shutdown deadline reached, cancelling runs")
		cancelRuns()
		s.wg.Wait()
	}
	return nil
}

func (s *Scheduler) tickLoop(stopCh <-chan struct{}) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			s.tick(time.Now().UTC())
		}
	}
}

// tick fires every entry that has come due. The next-run time advances
// whether or not the entry fires, so a skipped fire is dropped rather
// than replayed.
func (s *Scheduler) tick(now time.Time) {
	s.mu.Lock()
	var due []*entry
	for _, e := range s.entries {
		if e.nextRun.After(now) {
			continue
		}
		e.nextRun = e.schedule.Next(now)
		if e.inFlight {
			s.logger.Warn("skipping cron fire, previous run still in flight",
				slog.String("entry", e.def.Name))
			continue
		}
		e.inFlight = true
		e.lastRun = now
		due = append(due, e)
	}
	runCtx := s.runCtx
	s.mu.Unlock()

	for _, e := range due {
		s.wg.Add(1)
		go s.fire(runCtx, e)
	}
}

// fire runs one entry and records the outcome.
func (s *Scheduler) fire(ctx context.Context, e *entry) {
	defer s.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic in cron entry",
				slog.String("entry", e.def.Name),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
		}
		s.mu.Lock()
		e.inFlight = false
		s.mu.Unlock()
	}()

	start := time.Now()
	if err := e.def.Run(ctx); err != nil {
		s.logger.Error("cron entry failed",
			slog.String("entry", e.def.Name),
			slog.Duration("elapsed", time.Since(start)),
			slog.String("error", err.Error()),
		)
		return
	}
	s.logger.Debug("cron entry completed",
		slog.String("entry", e.def.Name),
		slog.Duration("elapsed", time.Since(start)),
	)
}
