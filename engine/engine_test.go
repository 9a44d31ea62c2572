package engine_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	bifrost "github.com/autumn-order/bifrost-sub000"
	"github.com/autumn-order/bifrost-sub000/engine"
	"github.com/autumn-order/bifrost-sub000/eve"
	"github.com/autumn-order/bifrost-sub000/middleware"
	"github.com/autumn-order/bifrost-sub000/ratelimit"
	"github.com/autumn-order/bifrost-sub000/store/memory"
	"github.com/autumn-order/bifrost-sub000/worker"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() bifrost.Config {
	return bifrost.Config{
		MaxConcurrentJobs: 2,
		PollInterval:      10 * time.Millisecond,
		JobTimeout:        5 * time.Second,
		ShutdownTimeout:   2 * time.Second,
		CleanupInterval:   time.Minute,
	}
}

// fakeService records the ids each InfoService method was called with.
type fakeService struct {
	mu           sync.Mutex
	factionCalls int
	allianceIDs  []int64
	corpIDs      []int64
	characterIDs []int64
	affiliations [][]int64
}

func (s *fakeService) UpdateFactionInfo(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.factionCalls++
	return nil
}

func (s *fakeService) UpdateAllianceInfo(_ context.Context, allianceID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.allianceIDs = append(s.allianceIDs, allianceID)
	return nil
}

func (s *fakeService) UpdateCorporationInfo(_ context.Context, corporationID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.corpIDs = append(s.corpIDs, corporationID)
	return nil
}

func (s *fakeService) UpdateCharacterInfo(_ context.Context, characterID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.characterIDs = append(s.characterIDs, characterID)
	return nil
}

func (s *fakeService) UpdateAffiliations(_ context.Context, characterIDs []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.affiliations = append(s.affiliations, slices.Clone(characterIDs))
	return nil
}

func (s *fakeService) recordedAlliances() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.allianceIDs)
}

func (s *fakeService) recordedCorporations() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.corpIDs)
}

type engineHarness struct {
	store *memory.Store
	svc   *fakeService
	eng   *engine.Engine
}

// setupEngine builds an engine on a single in-memory store serving as
// both the queue and the tracking store. The downtime window is zeroed
// so tests running during the real EVE downtime still dispatch.
func setupEngine(t *testing.T, opts ...engine.Option) *engineHarness {
	t.Helper()
	st := memory.New()
	svc := &fakeService{}
	opts = append([]engine.Option{engine.WithDowntimeWindow(worker.DowntimeWindow{})}, opts...)
	eng, err := engine.New(testConfig(), st, st, svc, discardLogger(), opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return &engineHarness{store: st, svc: svc, eng: eng}
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestNew_Validation(t *testing.T) {
	st := memory.New()
	svc := &fakeService{}
	logger := discardLogger()

	_, err := engine.New(testConfig(), nil, st, svc, logger)
	if !errors.Is(err, bifrost.ErrNoQueueStore) {
		t.Fatalf("nil queue store: got %v, want ErrNoQueueStore", err)
	}

	_, err = engine.New(testConfig(), st, nil, svc, logger)
	if !errors.Is(err, bifrost.ErrNoTrackStore) {
		t.Fatalf("nil track store: got %v, want ErrNoTrackStore", err)
	}

	_, err = engine.New(testConfig(), st, st, nil, logger)
	if err == nil {
		t.Fatal("nil service: got nil error")
	}
}

func TestNew_WiresPassesAndHandlers(t *testing.T) {
	h := setupEngine(t)

	var names []string
	for _, e := range h.eng.Scheduler().Entries() {
		names = append(names, e.Name)
	}
	slices.Sort(names)
	wantNames := []string{
		"alliance-info",
		"character-affiliations",
		"character-info",
		"corporation-info",
		"faction-info",
	}
	if !slices.Equal(names, wantNames) {
		t.Fatalf("scheduler entries = %v, want %v", names, wantNames)
	}

	kinds := h.eng.Registry().Kinds()
	want := bifrost.Kinds()
	slices.Sort(kinds)
	slices.Sort(want)
	if !slices.Equal(kinds, want) {
		t.Fatalf("registered kinds = %v, want %v", kinds, want)
	}

	for _, name := range []string{"alliance", "corporation", "character", "affiliation"} {
		if h.eng.Tracker(name) == nil {
			t.Fatalf("Tracker(%q) = nil", name)
		}
	}
	if h.eng.Tracker("faction") != nil {
		t.Fatal("Tracker(faction) should be nil; factions refresh without staleness tracking")
	}

	if h.eng.RateLimiter() != nil {
		t.Fatal("RateLimiter should be nil when no limits are configured")
	}
}

func TestEngine_StartStop(t *testing.T) {
	h := setupEngine(t)
	ctx := context.Background()

	// Stop before Start is a no-op.
	if err := h.eng.Stop(ctx); err != nil {
		t.Fatalf("Stop before Start: %v", err)
	}

	if err := h.eng.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !h.eng.Pool().IsRunning() {
		t.Fatal("pool not running after Start")
	}
	if !h.eng.Scheduler().IsRunning() {
		t.Fatal("scheduler not running after Start")
	}

	if err := h.eng.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if h.eng.Pool().IsRunning() {
		t.Fatal("pool still running after Stop")
	}
	if h.eng.Scheduler().IsRunning() {
		t.Fatal("scheduler still running after Stop")
	}

	if err := h.eng.Stop(ctx); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
}

func TestEngine_ProcessesQueuedJob(t *testing.T) {
	h := setupEngine(t)
	ctx := context.Background()

	if _, err := h.eng.Queue().Push(ctx, bifrost.UpdateCorporationInfo{CorporationID: 109299958}); err != nil {
		t.Fatalf("Push: %v", err)
	}

	if err := h.eng.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer h.eng.Stop(ctx)

	waitFor(t, func() bool {
		return slices.Contains(h.svc.recordedCorporations(), 109299958)
	}, "corporation job never reached the service")
}

func TestEngine_TrackerPassFeedsPool(t *testing.T) {
	h := setupEngine(t)
	ctx := context.Background()

	// One alliance last updated beyond the 24h cache window. A single
	// stale row keeps the pass's spread degenerate: the job is due the
	// moment it is scheduled. Extra rows would be staggered minutes
	// into the future and stall the test.
	stale := time.Now().Add(-25 * time.Hour)
	h.store.PutRow(eve.AllianceInfo, 99003214, stale, nil)

	tracker := h.eng.Tracker("alliance")
	scheduled, err := tracker.Run(ctx)
	if err != nil {
		t.Fatalf("tracker run: %v", err)
	}
	if scheduled != 1 {
		t.Fatalf("scheduled = %d, want 1", scheduled)
	}
	if _, ok := h.store.RowScheduledAt(eve.AllianceInfo, 99003214); !ok {
		t.Fatal("row was not stamped as scheduled")
	}

	if err := h.eng.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer h.eng.Stop(ctx)

	waitFor(t, func() bool {
		return slices.Contains(h.svc.recordedAlliances(), 99003214)
	}, "alliance job never reached the service")

	waitFor(t, func() bool {
		n, err := h.eng.Queue().Len(ctx)
		return err == nil && n == 0
	}, "queue never drained")
}

func TestEngine_RateLimiterConfigured(t *testing.T) {
	h := setupEngine(t, engine.WithRateLimits(ratelimit.Config{
		Kind:           bifrost.KindUpdateCharacterInfo,
		MaxConcurrency: 1,
	}))

	rl := h.eng.RateLimiter()
	if rl == nil {
		t.Fatal("RateLimiter() = nil after WithRateLimits")
	}
	if n := rl.ActiveCount(bifrost.KindUpdateCharacterInfo); n != 0 {
		t.Fatalf("idle ActiveCount = %d, want 0", n)
	}
}

func TestEngine_CustomMiddlewareRuns(t *testing.T) {
	var seen atomic.Bool
	tag := func(ctx context.Context, _ *bifrost.ScheduledJob, next middleware.Handler) error {
		seen.Store(true)
		return next(ctx)
	}

	h := setupEngine(t, engine.WithMiddleware(tag))
	ctx := context.Background()

	if _, err := h.eng.Queue().Push(ctx, bifrost.UpdateFactionInfo{}); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if err := h.eng.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer h.eng.Stop(ctx)

	waitFor(t, seen.Load, "custom middleware never ran")
}
