package bunstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/uptrace/bun"

	"github.com/autumn-order/bifrost-sub000/track"
)

// Compile-time interface check.
var _ track.Store = (*Store)(nil)

// Store is a Bun implementation of the tracking store. The caller owns
// the *bun.DB lifecycle; Store never closes it.
type Store struct {
	db *bun.DB
}

// New creates a Bun-backed tracking store.
func New(db *bun.DB) *Store {
	return &Store{db: db}
}

// DB returns the underlying *bun.DB for advanced usage.
func (s *Store) DB() *bun.DB {
	return s.db
}

// Ping verifies the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Count returns the total number of rows in the entity's table.
func (s *Store) Count(ctx context.Context, entity track.Entity) (int64, error) {
	count, err := s.db.NewSelect().
		Table(entity.Table).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("bifrost/bun: count %s: %w", entity.Table, err)
	}
	return int64(count), nil
}

// StaleIDs selects ids of rows refreshed strictly before
// q.UpdatedBefore whose schedule stamp is NULL or at or before
// q.ScheduledBefore, ordered stalest first and capped at q.Limit.
func (s *Store) StaleIDs(ctx context.Context, entity track.Entity, q track.StaleQuery) ([]int64, error) {
	if q.Limit <= 0 {
		return nil, nil
	}

	var ids []int64
	err := s.db.NewSelect().
		Table(entity.Table).
		Column(entity.IDColumn).
		Where("? < ?", bun.Ident(entity.UpdatedAtColumn), q.UpdatedBefore).
		Where("? IS NULL OR ? <= ?",
			bun.Ident(entity.ScheduledAtColumn),
			bun.Ident(entity.ScheduledAtColumn),
			q.ScheduledBefore).
		OrderExpr("? ASC", bun.Ident(entity.UpdatedAtColumn)).
		Limit(q.Limit).
		Scan(ctx, &ids)
	if err != nil {
		return nil, fmt.Errorf("bifrost/bun: stale ids %s: %w", entity.Table, err)
	}
	return ids, nil
}

// MarkScheduled stamps the schedule column for exactly the given rows
// in one UPDATE, mapping each id to its own timestamp through a CASE
// expression rather than issuing one statement per row.
func (s *Store) MarkScheduled(ctx context.Context, entity track.Entity, marks []track.Mark) error {
	if len(marks) == 0 {
		return nil
	}

	var caseExpr strings.Builder
	args := make([]any, 0, 2*len(marks)+2)
	args = append(args, bun.Ident(entity.ScheduledAtColumn), bun.Ident(entity.IDColumn))

	caseExpr.WriteString("? = CASE ? ")
	ids := make([]int64, 0, len(marks))
	for _, mark := range marks {
		caseExpr.WriteString("WHEN ? THEN ? ")
		args = append(args, mark.ID, mark.At)
		ids = append(ids, mark.ID)
	}
	caseExpr.WriteString("END")

	_, err := s.db.NewUpdate().
		Table(entity.Table).
		Set(caseExpr.String(), args...).
		Where("? IN (?)", bun.Ident(entity.IDColumn), bun.In(ids)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("bifrost/bun: mark scheduled %s: %w", entity.Table, err)
	}
	return nil
}
