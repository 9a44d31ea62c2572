// Package bifrost provides the background refresh subsystem for cached EVE
// Online entity data: a deduplicating, time-ordered job queue, a
// bounded-concurrency worker pool, batch-sizing and time-staggering
// scheduling, and an entity staleness tracker that feeds jobs into the
// pipeline.
//
// Bifrost is designed as a library, not a service. Import it, configure a
// queue store and a tracker store, and wire the pieces with the engine
// package.
//
// # Quick Start
//
//	eng, err := engine.New(bifrost.DefaultConfig(), queueStore, trackStore, svc, logger)
//	if err != nil { ... }
//	eng.Start(ctx)
//	defer eng.Stop(ctx)
//
// # Architecture
//
// The queue is backed by an ordered key-value store (a Redis sorted set in
// production) whose membership doubles as the dedup index: at most one
// pending entry exists per job identity. Dispatcher goroutines poll the
// queue, acquire a concurrency permit per ready job, and execute it through
// a registered handler under a deadline. A background cleaner purges
// entries that outlive a fixed TTL. The refresh tracker queries relational
// tables for stale rows, spreads the resulting jobs evenly across a time
// window, and bulk-marks the rows as scheduled.
package bifrost
