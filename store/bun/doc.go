// Package bunstore implements the tracking store on the Bun ORM with
// the PostgreSQL dialect.
//
// The store does not own any schema: entity tables belong to the
// surrounding application, and the [track.Entity] descriptor names the
// table and columns to read. Only three statements are ever issued — a
// row count, the stale-row select, and the bulk schedule-stamp update.
//
// Usage:
//
//	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
//	db := bun.NewDB(sqldb, pgdialect.New())
//	s := bunstore.New(db)
package bunstore
