package track

import (
	"context"
	"time"
)

// Entity names the table and columns backing one refresh-tracked
// entity type.
type Entity struct {
	// Name is a short label used in logs, e.g. "character".
	Name string

	// Table is the table holding the cached records.
	Table string

	// IDColumn is the numeric primary identifier column.
	IDColumn string

	// UpdatedAtColumn records when the cached data was last refreshed.
	UpdatedAtColumn string

	// ScheduledAtColumn records when a refresh job was last scheduled
	// for the row. It is nullable; a NULL means no job was ever
	// scheduled.
	ScheduledAtColumn string
}

// StaleQuery bounds a Store.StaleIDs call.
type StaleQuery struct {
	// UpdatedBefore selects rows refreshed strictly before this time.
	UpdatedBefore time.Time

	// ScheduledBefore selects rows whose schedule stamp is NULL or at
	// or before this time. The caller passes now minus twice the
	// scheduling interval, which keeps a row off limits while a job
	// scheduled for it in the previous cycle may still be in flight.
	ScheduledBefore time.Time

	// Limit caps the number of ids returned. Zero returns none.
	Limit int
}

// Mark is one (row id, schedule stamp) pair for Store.MarkScheduled.
type Mark struct {
	ID int64
	At time.Time
}

// Store reads and stamps entity rows on behalf of a Tracker.
type Store interface {
	// Count returns the total number of rows for the entity.
	Count(ctx context.Context, entity Entity) (int64, error)

	// StaleIDs returns ids of rows matching q, ordered by the updated
	// column ascending so the stalest rows come first.
	StaleIDs(ctx context.Context, entity Entity, q StaleQuery) ([]int64, error)

	// MarkScheduled sets the schedule stamp for exactly the given rows
	// in a single statement, leaving all other rows untouched. Ids
	// with no matching row are ignored.
	MarkScheduled(ctx context.Context, entity Entity, marks []Mark) error
}
