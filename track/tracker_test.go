package track_test

import (
	"context"
	"testing"
	"time"

	bifrost "github.com/autumn-order/bifrost-sub000"
	"github.com/autumn-order/bifrost-sub000/queue"
	"github.com/autumn-order/bifrost-sub000/store/memory"
	"github.com/autumn-order/bifrost-sub000/track"
)

var characterEntity = track.Entity{
	Name:              "character",
	Table:             "characters",
	IDColumn:          "character_id",
	UpdatedAtColumn:   "updated_at",
	ScheduledAtColumn: "job_scheduled_at",
}

func characterConfig() track.Config {
	return track.Config{
		Entity:           characterEntity,
		CacheDuration:    time.Hour,
		ScheduleInterval: 10 * time.Minute,
		Build: func(ids []int64) bifrost.Job {
			return bifrost.UpdateCharacterInfo{CharacterID: ids[0]}
		},
	}
}

func setupTestTracker(t *testing.T, cfg track.Config) (*track.Tracker, *memory.Store, *queue.Queue) {
	t.Helper()
	s := memory.New()
	q := queue.New(s)
	tracker, err := track.New(cfg, s, q)
	if err != nil {
		t.Fatalf("track.New returned error: %v", err)
	}
	return tracker, s, q
}

func TestNew_Validation(t *testing.T) {
	s := memory.New()
	q := queue.New(s)

	tests := []struct {
		name   string
		mutate func(*track.Config)
	}{
		{"missing builder", func(c *track.Config) { c.Build = nil }},
		{"missing table", func(c *track.Config) { c.Entity.Table = "" }},
		{"missing id column", func(c *track.Config) { c.Entity.IDColumn = "" }},
		{"zero cache duration", func(c *track.Config) { c.CacheDuration = 0 }},
		{"zero schedule interval", func(c *track.Config) { c.ScheduleInterval = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := characterConfig()
			tt.mutate(&cfg)
			if _, err := track.New(cfg, s, q); err == nil {
				t.Fatal("expected a configuration error")
			}
		})
	}

	if _, err := track.New(characterConfig(), nil, q); err == nil {
		t.Fatal("expected an error for nil store")
	}
	if _, err := track.New(characterConfig(), s, nil); err == nil {
		t.Fatal("expected an error for nil queue")
	}
}

func TestFindEntriesNeedingUpdate_EmptyTable(t *testing.T) {
	tracker, _, _ := setupTestTracker(t, characterConfig())

	ids, err := tracker.FindEntriesNeedingUpdate(context.Background())
	if err != nil {
		t.Fatalf("FindEntriesNeedingUpdate returned error: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("expected no ids for empty table, got %v", ids)
	}
}

func TestFindEntriesNeedingUpdate_StalestFirst(t *testing.T) {
	tracker, s, _ := setupTestTracker(t, characterConfig())
	now := time.Now().UTC()

	s.PutRow(characterEntity, 1, now.Add(-2*time.Hour), nil)
	s.PutRow(characterEntity, 2, now.Add(-4*time.Hour), nil)
	s.PutRow(characterEntity, 3, now.Add(-time.Minute), nil) // fresh

	ids, err := tracker.FindEntriesNeedingUpdate(context.Background())
	if err != nil {
		t.Fatalf("FindEntriesNeedingUpdate returned error: %v", err)
	}

	want := []int64{2, 1}
	if len(ids) != len(want) {
		t.Fatalf("ids = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("ids = %v, want %v", ids, want)
		}
	}
}

func TestFindEntriesNeedingUpdate_CappedByBatchLimit(t *testing.T) {
	// 600 rows over a one-hour cache refreshed every ten minutes:
	// six passes per lifetime, so one pass takes at most 100 rows.
	tracker, s, _ := setupTestTracker(t, characterConfig())
	now := time.Now().UTC()

	for i := int64(1); i <= 600; i++ {
		s.PutRow(characterEntity, i, now.Add(-2*time.Hour), nil)
	}

	ids, err := tracker.FindEntriesNeedingUpdate(context.Background())
	if err != nil {
		t.Fatalf("FindEntriesNeedingUpdate returned error: %v", err)
	}
	if len(ids) != 100 {
		t.Fatalf("len(ids) = %d, want 100", len(ids))
	}
}

func TestScheduleJobs_EnqueuesAndMarks(t *testing.T) {
	tracker, s, q := setupTestTracker(t, characterConfig())
	ctx := context.Background()
	now := time.Now().UTC()

	for _, id := range []int64{10, 20, 30} {
		s.PutRow(characterEntity, id, now.Add(-2*time.Hour), nil)
	}

	scheduled, err := tracker.ScheduleJobs(ctx, []int64{10, 20, 30})
	if err != nil {
		t.Fatalf("ScheduleJobs returned error: %v", err)
	}
	if scheduled != 3 {
		t.Fatalf("scheduled = %d, want 3", scheduled)
	}

	n, err := q.Len(ctx)
	if err != nil {
		t.Fatalf("Len returned error: %v", err)
	}
	if n != 3 {
		t.Fatalf("queue Len = %d, want 3", n)
	}

	for _, id := range []int64{10, 20, 30} {
		if _, ok := s.RowScheduledAt(characterEntity, id); !ok {
			t.Errorf("row %d was not stamped", id)
		}
	}
}

func TestScheduleJobs_SpreadsAcrossInterval(t *testing.T) {
	tracker, _, q := setupTestTracker(t, characterConfig())
	ctx := context.Background()
	before := time.Now().UTC()

	if _, err := tracker.ScheduleJobs(ctx, []int64{1, 2, 3}); err != nil {
		t.Fatalf("ScheduleJobs returned error: %v", err)
	}

	jobs, err := q.JobsOfKind(ctx, bifrost.KindUpdateCharacterInfo)
	if err != nil {
		t.Fatalf("JobsOfKind returned error: %v", err)
	}
	if len(jobs) != 3 {
		t.Fatalf("expected 3 queued jobs, got %d", len(jobs))
	}

	// Three jobs over a ten-minute window land 200 seconds apart.
	interval := 10 * time.Minute
	for i, sj := range jobs {
		wantOffset := time.Duration(int64(i)*int64(interval/time.Second)/3) * time.Second
		offset := sj.ScheduledAt.Sub(before)
		if offset < wantOffset-time.Second || offset > wantOffset+2*time.Second {
			t.Errorf("job %d offset = %v, want about %v", i, offset, wantOffset)
		}
	}
}

func TestScheduleJobs_DuplicatesNotCountedOrMarked(t *testing.T) {
	tracker, s, q := setupTestTracker(t, characterConfig())
	ctx := context.Background()
	now := time.Now().UTC()

	s.PutRow(characterEntity, 10, now.Add(-2*time.Hour), nil)
	s.PutRow(characterEntity, 20, now.Add(-2*time.Hour), nil)

	// A job for row 10 is already queued from an earlier pass.
	if _, err := q.Push(ctx, bifrost.UpdateCharacterInfo{CharacterID: 10}); err != nil {
		t.Fatalf("Push returned error: %v", err)
	}

	scheduled, err := tracker.ScheduleJobs(ctx, []int64{10, 20})
	if err != nil {
		t.Fatalf("ScheduleJobs returned error: %v", err)
	}
	if scheduled != 1 {
		t.Fatalf("scheduled = %d, want 1", scheduled)
	}

	if _, ok := s.RowScheduledAt(characterEntity, 10); ok {
		t.Error("row 10 belongs to a duplicate and must not be stamped")
	}
	if _, ok := s.RowScheduledAt(characterEntity, 20); !ok {
		t.Error("row 20 was newly scheduled and must be stamped")
	}
}

func TestScheduleJobs_BatchesIDs(t *testing.T) {
	cfg := track.Config{
		Entity:           characterEntity,
		CacheDuration:    time.Hour,
		ScheduleInterval: 10 * time.Minute,
		BatchSize:        2,
		Build: func(ids []int64) bifrost.Job {
			return bifrost.UpdateAffiliations{CharacterIDs: ids}
		},
	}
	tracker, s, q := setupTestTracker(t, cfg)
	ctx := context.Background()
	now := time.Now().UTC()

	ids := []int64{1, 2, 3, 4, 5}
	for _, id := range ids {
		s.PutRow(characterEntity, id, now.Add(-2*time.Hour), nil)
	}

	scheduled, err := tracker.ScheduleJobs(ctx, ids)
	if err != nil {
		t.Fatalf("ScheduleJobs returned error: %v", err)
	}
	// Five ids in batches of two make three jobs.
	if scheduled != 3 {
		t.Fatalf("scheduled = %d, want 3", scheduled)
	}

	jobs, err := q.JobsOfKind(ctx, bifrost.KindUpdateAffiliations)
	if err != nil {
		t.Fatalf("JobsOfKind returned error: %v", err)
	}
	if len(jobs) != 3 {
		t.Fatalf("expected 3 queued jobs, got %d", len(jobs))
	}

	// Every id is stamped even though jobs carry batches.
	for _, id := range ids {
		if _, ok := s.RowScheduledAt(characterEntity, id); !ok {
			t.Errorf("row %d was not stamped", id)
		}
	}
}

func TestScheduleJobs_EmptyInput(t *testing.T) {
	tracker, _, _ := setupTestTracker(t, characterConfig())

	scheduled, err := tracker.ScheduleJobs(context.Background(), nil)
	if err != nil {
		t.Fatalf("ScheduleJobs returned error: %v", err)
	}
	if scheduled != 0 {
		t.Fatalf("scheduled = %d, want 0", scheduled)
	}
}

func TestMarkJobsAsScheduled_EmptyIsNoOp(t *testing.T) {
	tracker, _, _ := setupTestTracker(t, characterConfig())

	if err := tracker.MarkJobsAsScheduled(context.Background(), nil); err != nil {
		t.Fatalf("MarkJobsAsScheduled(nil) returned error: %v", err)
	}
}

func TestRun_FullPass(t *testing.T) {
	tracker, s, q := setupTestTracker(t, characterConfig())
	ctx := context.Background()
	now := time.Now().UTC()

	for _, id := range []int64{1, 2, 3} {
		s.PutRow(characterEntity, id, now.Add(-2*time.Hour), nil)
	}

	scheduled, err := tracker.Run(ctx)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if scheduled != 3 {
		t.Fatalf("scheduled = %d, want 3", scheduled)
	}

	n, err := q.Len(ctx)
	if err != nil {
		t.Fatalf("Len returned error: %v", err)
	}
	if n != 3 {
		t.Fatalf("queue Len = %d, want 3", n)
	}

	// An immediate second pass finds nothing: every stale row now
	// carries a fresh schedule stamp.
	scheduled, err = tracker.Run(ctx)
	if err != nil {
		t.Fatalf("second Run returned error: %v", err)
	}
	if scheduled != 0 {
		t.Fatalf("second Run scheduled = %d, want 0", scheduled)
	}
}
