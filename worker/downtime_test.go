package worker

import (
	"testing"
	"time"
)

func TestDowntimeWindow_Contains(t *testing.T) {
	daily := DowntimeWindow{Start: 10*time.Hour + 58*time.Minute, Length: 9 * time.Minute}
	wrapping := DowntimeWindow{Start: 23*time.Hour + 30*time.Minute, Length: time.Hour}

	tests := []struct {
		name   string
		window DowntimeWindow
		at     time.Time
		want   bool
	}{
		{
			name:   "zero window matches nothing",
			window: DowntimeWindow{},
			at:     time.Date(2026, 8, 25, 11, 0, 0, 0, time.UTC),
			want:   false,
		},
		{
			name:   "before window",
			window: daily,
			at:     time.Date(2026, 8, 25, 10, 57, 59, 0, time.UTC),
			want:   false,
		},
		{
			name:   "window start is inclusive",
			window: daily,
			at:     time.Date(2026, 8, 25, 10, 58, 0, 0, time.UTC),
			want:   true,
		},
		{
			name:   "inside window",
			window: daily,
			at:     time.Date(2026, 8, 25, 11, 3, 30, 0, time.UTC),
			want:   true,
		},
		{
			name:   "window end is exclusive",
			window: daily,
			at:     time.Date(2026, 8, 25, 11, 7, 0, 0, time.UTC),
			want:   false,
		},
		{
			name:   "non-UTC time is normalized",
			window: daily,
			at:     time.Date(2026, 8, 25, 13, 0, 0, 0, time.FixedZone("CEST", 2*60*60)),
			want:   true,
		},
		{
			name:   "wrapping window before start",
			window: wrapping,
			at:     time.Date(2026, 8, 25, 23, 29, 0, 0, time.UTC),
			want:   false,
		},
		{
			name:   "wrapping window before midnight",
			window: wrapping,
			at:     time.Date(2026, 8, 25, 23, 45, 0, 0, time.UTC),
			want:   true,
		},
		{
			name:   "wrapping window after midnight",
			window: wrapping,
			at:     time.Date(2026, 8, 26, 0, 15, 0, 0, time.UTC),
			want:   true,
		},
		{
			name:   "wrapping window end is exclusive",
			window: wrapping,
			at:     time.Date(2026, 8, 26, 0, 30, 0, 0, time.UTC),
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.window.Contains(tt.at); got != tt.want {
				t.Errorf("Contains(%s) = %v, want %v", tt.at, got, tt.want)
			}
		})
	}
}
