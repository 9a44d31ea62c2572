package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/autumn-order/bifrost-sub000/queue"
	"github.com/autumn-order/bifrost-sub000/store"
	"github.com/autumn-order/bifrost-sub000/track"
)

// Compile-time interface check: memory is the one backend implementing
// the full composite.
var _ store.Store = (*Store)(nil)

// Store is a fully in-memory implementation of the queue store and the
// tracking store. Safe for concurrent access. Intended for unit testing
// and single-process development; nothing survives a restart.
//
// Due times are truncated to millisecond resolution on insert, matching
// the sorted-set score encoding of store/redis so both stores agree on
// boundary comparisons.
type Store struct {
	mu sync.RWMutex

	entries map[string]time.Time     // queue member -> due time
	tables  map[string]map[int64]row // tracking surface -> row id -> row
}

type row struct {
	updatedAt   time.Time
	scheduledAt *time.Time
}

// tableKey identifies a tracking surface. Two entities can track the
// same table through different column sets (character info vs
// character affiliations), so rows are keyed by table and updated-at
// column, not by table alone.
func tableKey(e track.Entity) string {
	return e.Table + "/" + e.UpdatedAtColumn
}

// New returns a new empty Store.
func New() *Store {
	return &Store{
		entries: make(map[string]time.Time),
		tables:  make(map[string]map[int64]row),
	}
}

// ──────────────────────────────────────────────────
// Queue store
// ──────────────────────────────────────────────────

// Add inserts member with the given due time, or reports false when the
// member is already present. An existing entry keeps its due time.
func (m *Store) Add(_ context.Context, member string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.entries[member]; exists {
		return false, nil
	}
	m.entries[member] = at.UTC().Truncate(time.Millisecond)
	return true, nil
}

// PopDue removes and returns the entry with the oldest due time at or
// before now, or nil when nothing is due. Ties break on member order so
// pops are deterministic.
func (m *Store) PopDue(_ context.Context, now time.Time) (*queue.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var (
		found  bool
		best   string
		bestAt time.Time
	)
	for member, at := range m.entries {
		if at.After(now) {
			continue
		}
		if !found || at.Before(bestAt) || (at.Equal(bestAt) && member < best) {
			found, best, bestAt = true, member, at
		}
	}
	if !found {
		return nil, nil
	}
	delete(m.entries, best)
	return &queue.Entry{Member: best, At: bestAt}, nil
}

// RemoveBefore deletes every entry due at or before cutoff.
func (m *Store) RemoveBefore(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var removed int64
	for member, at := range m.entries {
		if !at.After(cutoff) {
			delete(m.entries, member)
			removed++
		}
	}
	return removed, nil
}

// Card returns the number of queued entries.
func (m *Store) Card(_ context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.entries)), nil
}

// Entries returns every entry ordered by due time ascending, ties by
// member ascending.
func (m *Store) Entries(_ context.Context) ([]queue.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := make([]queue.Entry, 0, len(m.entries))
	for member, at := range m.entries {
		entries = append(entries, queue.Entry{Member: member, At: at})
	}
	sort.Slice(entries, func(i, k int) bool {
		if !entries[i].At.Equal(entries[k].At) {
			return entries[i].At.Before(entries[k].At)
		}
		return entries[i].Member < entries[k].Member
	})
	return entries, nil
}

// Clear removes all queued entries.
func (m *Store) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]time.Time)
	return nil
}

// ──────────────────────────────────────────────────
// Tracking store
// ──────────────────────────────────────────────────

// Count returns the total number of rows for the entity.
func (m *Store) Count(_ context.Context, entity track.Entity) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.tables[tableKey(entity)])), nil
}

// StaleIDs returns ids of rows refreshed strictly before
// q.UpdatedBefore whose schedule stamp is unset or at or before
// q.ScheduledBefore, stalest first, capped at q.Limit.
func (m *Store) StaleIDs(_ context.Context, entity track.Entity, q track.StaleQuery) ([]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if q.Limit <= 0 {
		return nil, nil
	}

	type candidate struct {
		id        int64
		updatedAt time.Time
	}
	var candidates []candidate
	for id, r := range m.tables[tableKey(entity)] {
		if !r.updatedAt.Before(q.UpdatedBefore) {
			continue
		}
		if r.scheduledAt != nil && r.scheduledAt.After(q.ScheduledBefore) {
			continue
		}
		candidates = append(candidates, candidate{id: id, updatedAt: r.updatedAt})
	}

	sort.Slice(candidates, func(i, k int) bool {
		if !candidates[i].updatedAt.Equal(candidates[k].updatedAt) {
			return candidates[i].updatedAt.Before(candidates[k].updatedAt)
		}
		return candidates[i].id < candidates[k].id
	})
	if len(candidates) > q.Limit {
		candidates = candidates[:q.Limit]
	}

	ids := make([]int64, len(candidates))
	for i, c := range candidates {
		ids[i] = c.id
	}
	return ids, nil
}

// MarkScheduled sets the schedule stamp for the given rows. Ids with no
// matching row are ignored.
func (m *Store) MarkScheduled(_ context.Context, entity track.Entity, marks []track.Mark) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	table := m.tables[tableKey(entity)]
	if table == nil {
		return nil
	}
	for _, mark := range marks {
		r, ok := table[mark.ID]
		if !ok {
			continue
		}
		at := mark.At
		r.scheduledAt = &at
		table[mark.ID] = r
	}
	return nil
}

// ──────────────────────────────────────────────────
// Test seeding
// ──────────────────────────────────────────────────

// PutRow inserts or replaces an entity row. It exists so tests can seed
// tracking state without a database; scheduledAt may be nil.
func (m *Store) PutRow(entity track.Entity, id int64, updatedAt time.Time, scheduledAt *time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	table := m.tables[tableKey(entity)]
	if table == nil {
		table = make(map[int64]row)
		m.tables[tableKey(entity)] = table
	}
	r := row{updatedAt: updatedAt}
	if scheduledAt != nil {
		at := *scheduledAt
		r.scheduledAt = &at
	}
	table[id] = r
}

// RowScheduledAt reports the schedule stamp for a row, and whether the
// stamp is set.
func (m *Store) RowScheduledAt(entity track.Entity, id int64) (time.Time, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.tables[tableKey(entity)][id]
	if !ok || r.scheduledAt == nil {
		return time.Time{}, false
	}
	return *r.scheduledAt, true
}
