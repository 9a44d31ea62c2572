// Package engine wires the subsystems into one runnable unit: the job
// queue, the entity tracking passes, the handler registry, the worker
// pool, and the cron scheduler.
//
// The engine package exists to break an import cycle: the root bifrost
// package defines Job and Config (imported by queue, worker, cron, etc.)
// and therefore cannot import those packages back. Engine sits above all
// subsystem packages and below the application layer.
//
// # Building an Engine
//
//	queueStore := redis.New(redisClient)
//	trackStore, err := postgres.New(ctx, dsn)
//	if err != nil { ... }
//
//	eng, err := engine.New(
//	    bifrost.DefaultConfig(),
//	    queueStore,
//	    trackStore,
//	    esiService,
//	    logger,
//	    engine.WithRateLimits(ratelimit.Config{
//	        Kind:           bifrost.KindUpdateCharacterInfo,
//	        MaxConcurrency: 10,
//	    }),
//	)
//
// The queue store and the tracking store are separate parameters so the
// queue can live in Redis while tracking queries run against Postgres;
// passing the same value for both is fine when one store implements both
// interfaces.
//
// # Running
//
//	if err := eng.Start(ctx); err != nil { ... }
//	defer eng.Stop(ctx)
//
// Start launches the worker pool first and the cron scheduler second, so
// dispatchers are already draining when the first pass enqueues work.
// Stop reverses that: the scheduler quiesces before the pool drains, and
// both waits share one shutdown deadline.
//
// # Options
//
//   - [WithBackoff] — set the store-error backoff strategy
//   - [WithRateLimits] — cap concurrent executions per job kind
//   - [WithDowntimeWindow] — override the daily dispatch pause
//   - [WithMiddleware] — append middleware to the execution chain
package engine
