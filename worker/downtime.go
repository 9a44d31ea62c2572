package worker

import "time"

// DowntimeWindow is a fixed daily UTC window during which dispatchers
// pause instead of popping jobs. Entries stay queued and become
// eligible again the moment the window ends, so work scheduled into the
// window is deferred rather than lost. A zero Length disables the
// window.
type DowntimeWindow struct {
	// Start is the window's offset from midnight UTC.
	Start time.Duration

	// Length is how long the window lasts. Windows may wrap past
	// midnight.
	Length time.Duration
}

// Contains reports whether t falls inside the window.
func (w DowntimeWindow) Contains(t time.Time) bool {
	if w.Length <= 0 {
		return false
	}

	day := 24 * time.Hour
	offset := t.UTC().Sub(t.UTC().Truncate(day))
	end := w.Start + w.Length

	if end <= day {
		return offset >= w.Start && offset < end
	}
	// The window wraps past midnight.
	return offset >= w.Start || offset < end-day
}
