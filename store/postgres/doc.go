// Package postgres implements the tracking store directly on pgx/v5
// with pgxpool connection pooling.
//
// It issues the same three statements as store/bun — row count,
// stale-row select, bulk schedule-stamp update — but without an ORM,
// for applications that already hold a pgxpool rather than a Bun DB.
// Entity tables belong to the surrounding application; the
// [track.Entity] descriptor names the table and columns, and every
// identifier is sanitized before interpolation.
package postgres
