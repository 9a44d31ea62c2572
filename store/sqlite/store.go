// Package sqlite implements the aggregate store on a single SQLite
// database file via the pure-Go modernc.org/sqlite driver. It suits
// single-node deployments that want the queue to survive restarts
// without running Redis or Postgres.
//
// The queue lives in a table the store creates itself. Entity tables
// belong to the surrounding application; the store only reads and
// stamps them through the column names in each [track.Entity]. All
// timestamps, on both halves, are stored as epoch-millisecond
// INTEGERs, so due-time and staleness comparisons are plain integer
// comparisons.
//
// Usage:
//
//	s, err := sqlite.New("/var/lib/app/bifrost.db")
//	if err != nil { ... }
//	defer s.Close()
//	q := queue.New(s)
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" database/sql driver

	"github.com/autumn-order/bifrost-sub000/queue"
	"github.com/autumn-order/bifrost-sub000/store"
	"github.com/autumn-order/bifrost-sub000/track"
)

// Compile-time interface check: sqlite implements the full composite.
var _ store.Store = (*Store)(nil)

// The queue table holds one row per pending job identity with its due
// time in epoch milliseconds.
const schema = `
CREATE TABLE IF NOT EXISTS bifrost_queue (
	member TEXT PRIMARY KEY,
	due_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS bifrost_queue_due_at ON bifrost_queue(due_at);
`

// busyTimeout is how long a statement waits on a locked database
// before failing.
const busyTimeout = 5 * time.Second

// Store implements the queue store and the tracking store on one
// SQLite database.
type Store struct {
	db *sql.DB
}

// New opens (creating if needed) the database at path and prepares the
// queue table. Parent directories are created. SQLite tolerates only
// one writer, so the connection pool is pinned to a single connection.
func New(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("bifrost/sqlite: path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("bifrost/sqlite: create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("bifrost/sqlite: open: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db}
	if err := s.init(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewFromDB wraps an already opened database handle. The caller owns
// the handle's lifecycle and connection limits; the queue table is
// still created if missing.
func NewFromDB(db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.init(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) init(ctx context.Context) error {
	pragmas := []string{
		fmt.Sprintf("PRAGMA busy_timeout = %d", busyTimeout.Milliseconds()),
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := s.db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("bifrost/sqlite: %s: %w", p, err)
		}
	}
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("bifrost/sqlite: create queue table: %w", err)
	}
	return nil
}

// DB returns the underlying database handle.
func (s *Store) DB() *sql.DB { return s.db }

// Ping verifies the database file is reachable and writable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// ──────────────────────────────────────────────────
// Queue store
// ──────────────────────────────────────────────────

// Add inserts member with the given due time. The primary key makes
// the duplicate check and the insert one atomic statement; an existing
// member keeps its original due time.
func (s *Store) Add(ctx context.Context, member string, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO bifrost_queue(member, due_at) VALUES(?, ?)
		 ON CONFLICT(member) DO NOTHING`,
		member, at.UnixMilli(),
	)
	if err != nil {
		return false, fmt.Errorf("bifrost/sqlite: add: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("bifrost/sqlite: add rows affected: %w", err)
	}
	return n > 0, nil
}

// PopDue removes and returns the entry with the oldest due time at or
// before now. The subquery and delete run as one statement, so
// concurrent consumers cannot claim the same entry. Ties on due time
// break by member, matching the sorted-set ordering of store/redis.
func (s *Store) PopDue(ctx context.Context, now time.Time) (*queue.Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`DELETE FROM bifrost_queue
		 WHERE member = (
			SELECT member FROM bifrost_queue
			WHERE due_at <= ?
			ORDER BY due_at ASC, member ASC
			LIMIT 1
		 )
		 RETURNING member, due_at`,
		now.UnixMilli(),
	)

	var member string
	var ms int64
	if err := row.Scan(&member, &ms); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("bifrost/sqlite: pop due: %w", err)
	}
	return &queue.Entry{Member: member, At: time.UnixMilli(ms).UTC()}, nil
}

// RemoveBefore deletes every entry due at or before cutoff and returns
// the number removed.
func (s *Store) RemoveBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM bifrost_queue WHERE due_at <= ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("bifrost/sqlite: remove before: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("bifrost/sqlite: remove before rows affected: %w", err)
	}
	return n, nil
}

// Card returns the number of entries currently queued.
func (s *Store) Card(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM bifrost_queue`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("bifrost/sqlite: card: %w", err)
	}
	return n, nil
}

// Entries returns every entry ordered by due time ascending.
func (s *Store) Entries(ctx context.Context) ([]queue.Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT member, due_at FROM bifrost_queue ORDER BY due_at ASC, member ASC`)
	if err != nil {
		return nil, fmt.Errorf("bifrost/sqlite: entries: %w", err)
	}
	defer rows.Close()

	var entries []queue.Entry
	for rows.Next() {
		var member string
		var ms int64
		if err := rows.Scan(&member, &ms); err != nil {
			return nil, fmt.Errorf("bifrost/sqlite: entries scan: %w", err)
		}
		entries = append(entries, queue.Entry{Member: member, At: time.UnixMilli(ms).UTC()})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("bifrost/sqlite: entries: %w", err)
	}
	return entries, nil
}

// Clear removes all entries.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM bifrost_queue`); err != nil {
		return fmt.Errorf("bifrost/sqlite: clear: %w", err)
	}
	return nil
}

// ──────────────────────────────────────────────────
// Tracking store
// ──────────────────────────────────────────────────

// Count returns the total number of rows in the entity's table.
func (s *Store) Count(ctx context.Context, entity track.Entity) (int64, error) {
	q := fmt.Sprintf(`SELECT COUNT(*) FROM %s`, quoteIdent(entity.Table))

	var n int64
	if err := s.db.QueryRowContext(ctx, q).Scan(&n); err != nil {
		return 0, fmt.Errorf("bifrost/sqlite: count %s: %w", entity.Table, err)
	}
	return n, nil
}

// StaleIDs selects ids of rows refreshed strictly before
// q.UpdatedBefore whose schedule stamp is NULL or at or before
// q.ScheduledBefore, ordered stalest first and capped at q.Limit.
// Timestamp columns must hold epoch milliseconds.
func (s *Store) StaleIDs(ctx context.Context, entity track.Entity, q track.StaleQuery) ([]int64, error) {
	if q.Limit <= 0 {
		return nil, nil
	}

	updatedCol := quoteIdent(entity.UpdatedAtColumn)
	scheduledCol := quoteIdent(entity.ScheduledAtColumn)

	stmt := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE %s < ?
		  AND (%s IS NULL OR %s <= ?)
		ORDER BY %s ASC
		LIMIT ?`,
		quoteIdent(entity.IDColumn), quoteIdent(entity.Table),
		updatedCol, scheduledCol, scheduledCol, updatedCol,
	)

	rows, err := s.db.QueryContext(ctx, stmt,
		q.UpdatedBefore.UnixMilli(), q.ScheduledBefore.UnixMilli(), q.Limit)
	if err != nil {
		return nil, fmt.Errorf("bifrost/sqlite: stale ids %s: %w", entity.Table, err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("bifrost/sqlite: stale ids scan: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("bifrost/sqlite: stale ids %s: %w", entity.Table, err)
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

	var b strings.Builder
	args := make([]any, 0, 3*len(marks))
	fmt.Fprintf(&b, "UPDATE %s SET %s = CASE %s ",
		quoteIdent(entity.Table),
		quoteIdent(entity.ScheduledAtColumn),
		quoteIdent(entity.IDColumn),
	)

	for _, mark := range marks {
		b.WriteString("WHEN ? THEN ? ")
		args = append(args, mark.ID, mark.At.UnixMilli())
	}
	fmt.Fprintf(&b, "END WHERE %s IN (%s)",
		quoteIdent(entity.IDColumn),
		placeholders(len(marks)),
	)
	for _, mark := range marks {
		args = append(args, mark.ID)
	}

	if _, err := s.db.ExecContext(ctx, b.String(), args...); err != nil {
		return fmt.Errorf("bifrost/sqlite: mark scheduled %s: %w", entity.Table, err)
	}
	return nil
}

// quoteIdent double-quotes an identifier, escaping embedded quotes, so
// entity-supplied table and column names cannot terminate the literal.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// placeholders returns n comma-joined "?" marks.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
