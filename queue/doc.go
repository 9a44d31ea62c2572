// Package queue implements the deduplicating delay queue that feeds the
// worker pool.
//
// Jobs are stored as canonical identity strings scored by the time they
// become due. Pushing a job whose identity is already present is a no-op,
// which is what makes blind rescheduling from cron safe: a pass may offer
// the same entity again and again, but only one queue entry ever exists
// for it.
//
// # Stores
//
// [Queue] is backed by a [Store], an ordered set with atomic insert and
// claim operations. Two implementations ship with this module:
//
//   - store/redis: a Redis sorted set, for production deployments where
//     the queue must survive restarts and be shared between processes.
//   - store/memory: an in-process map, for tests and single-node use.
//
// # Stale entries
//
// An entry that sits in the queue longer than [StaleJobTTL] is considered
// abandoned and is removed by [Queue.CleanupStaleJobs]. Use
// [Queue.StartCleanup] to run that sweep on an interval in the background.
package queue
