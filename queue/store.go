package queue

import (
	"context"
	"time"
)

// Entry is a single queued identity and the time it becomes due.
type Entry struct {
	// Member is the canonical job identity string.
	Member string

	// At is the time the entry becomes eligible for Pop.
	At time.Time
}

// Store is the ordered set a Queue persists its entries in. Members are
// unique; each carries a single due time. Implementations must make Add
// and PopDue atomic so that concurrent producers cannot duplicate an
// entry and concurrent consumers cannot claim the same one.
//
// Due times are compared with millisecond resolution, matching the
// Redis sorted-set score encoding used by store/redis.
type Store interface {
	// Add inserts member with the given due time. It returns true when
	// the member was newly inserted and false when an entry with the
	// same member already exists; an existing entry keeps its original
	// due time.
	Add(ctx context.Context, member string, at time.Time) (bool, error)

	// PopDue atomically removes and returns the entry with the oldest
	// due time at or before now. It returns nil when no entry is due.
	PopDue(ctx context.Context, now time.Time) (*Entry, error)

	// RemoveBefore deletes every entry whose due time is at or before
	// cutoff and returns the number removed.
	RemoveBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// Card returns the number of entries currently stored.
	Card(ctx context.Context) (int64, error)

	// Entries returns every entry ordered by due time ascending.
	Entries(ctx context.Context) ([]Entry, error)

	// Clear removes all entries.
	Clear(ctx context.Context) error
}
