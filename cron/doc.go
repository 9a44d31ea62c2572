// Package cron runs recurring tasks inside the worker process.
//
// Definitions are registered in code rather than stored anywhere: the
// set of recurring passes is fixed at build time and every instance
// runs the full set. The [Scheduler] checks for due entries once per
// tick, advances each entry's next-run time from its cron expression,
// and invokes the definition's Run callback in its own goroutine. An
// entry whose previous run is still in flight skips the fire instead
// of overlapping it.
//
// Schedule expressions use six fields with a leading seconds column:
// "0 17,47 * * * *" fires at second zero of minutes 17 and 47 of every
// hour. The @every descriptor form is also accepted.
package cron
