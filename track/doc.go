// Package track decides which cached entity records are due a refresh
// and turns them into queued jobs.
//
// A [Tracker] is generic over any table exposing three columns: a
// numeric id, the time the record was last refreshed, and the time a
// refresh job was last scheduled for it. Each pass selects the stalest
// rows whose refresh is overdue, spreads jobs for them across the
// scheduling interval, enqueues the jobs, and stamps the rows that were
// newly accepted by the queue so the next pass does not offer them
// again.
//
// The row selection and the stamp update are performed through [Store],
// implemented by store/bun and store/postgres for production databases,
// by store/sqlite and store/mongo as part of their composite backends,
// and by store/memory for tests.
package track
