// Package schedule computes refresh batch sizes and evenly staggered
// execution times. Both functions are pure; callers supply the reference
// time.
package schedule

import "time"

// MinBatchLimit is the floor for non-zero batch sizes. Even when spreading
// work across many periods would suggest a smaller batch, a pass refreshes
// at least this many entries so small tables still converge quickly.
const MinBatchLimit = 100

// BatchLimit returns how many stale entries one scheduling pass should
// take on, given the total entry count, how long fetched data stays fresh,
// and how often the pass runs.
//
// The cache lifetime is divided into whole-minute periods of one schedule
// interval each; refreshing count/periods entries per pass keeps upstream
// request volume roughly constant across the lifetime instead of bursting.
// When the interval does not fit into the lifetime even once, every entry
// is eligible in a single pass.
func BatchLimit(entryCount int, cacheDuration, scheduleInterval time.Duration) int {
	if entryCount == 0 {
		return 0
	}

	var periods int64
	if m := int64(scheduleInterval / time.Minute); m > 0 {
		periods = int64(cacheDuration/time.Minute) / m
	}
	if periods <= 0 {
		return entryCount
	}

	limit := int64(entryCount) / periods
	if limit < MinBatchLimit {
		return MinBatchLimit
	}
	return int(limit)
}

// Spread returns n execution times distributed across the window starting
// at from. The i-th time is offset by floor(i*windowSeconds/n) seconds, so
// the sequence preserves input order, is monotonically non-decreasing,
// starts at from, and stays strictly inside the window even when n exceeds
// the window's length in seconds.
func Spread(n int, window time.Duration, from time.Time) []time.Time {
	if n <= 0 {
		return nil
	}

	winSecs := int64(window / time.Second)
	times := make([]time.Time, n)
	for i := range times {
		offset := time.Duration(int64(i)*winSecs/int64(n)) * time.Second
		times[i] = from.Add(offset)
	}
	return times
}
