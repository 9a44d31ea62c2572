package bifrost_test

import (
	"testing"
	"time"

	bifrost "github.com/autumn-order/bifrost-sub000"
)

func TestDefaultConfig(t *testing.T) {
	cfg := bifrost.DefaultConfig()

	if cfg.MaxConcurrentJobs != 4 {
		t.Errorf("MaxConcurrentJobs = %d, want 4", cfg.MaxConcurrentJobs)
	}
	if cfg.PollInterval != 50*time.Millisecond {
		t.Errorf("PollInterval = %v, want 50ms", cfg.PollInterval)
	}
	if cfg.JobTimeout != 60*time.Second {
		t.Errorf("JobTimeout = %v, want 60s", cfg.JobTimeout)
	}
	if cfg.ShutdownTimeout != 5*time.Second {
		t.Errorf("ShutdownTimeout = %v, want 5s", cfg.ShutdownTimeout)
	}
	if cfg.CleanupInterval != 5*time.Minute {
		t.Errorf("CleanupInterval = %v, want 5m", cfg.CleanupInterval)
	}
	if got := cfg.DispatcherCount(); got != 1 {
		t.Errorf("DispatcherCount() = %d, want 1", got)
	}
}

func TestConfig_DispatcherCountScalesWithConcurrency(t *testing.T) {
	tests := []struct {
		maxConcurrent int
		want          int
	}{
		{0, 1},
		{1, 1},
		{39, 1},
		{40, 1},
		{41, 2},
		{80, 2},
		{81, 3},
		{119, 3},
		{120, 3},
		{121, 4},
	}

	for _, tt := range tests {
		cfg := bifrost.Config{MaxConcurrentJobs: tt.maxConcurrent}
		if got := cfg.DispatcherCount(); got != tt.want {
			t.Errorf("DispatcherCount(max=%d) = %d, want %d", tt.maxConcurrent, got, tt.want)
		}
	}
}

func TestConfig_NormalizedFillsZeroFields(t *testing.T) {
	cfg := bifrost.Config{MaxConcurrentJobs: 100}.Normalized()

	if cfg.MaxConcurrentJobs != 100 {
		t.Errorf("MaxConcurrentJobs = %d, want 100 (explicit value kept)", cfg.MaxConcurrentJobs)
	}

	def := bifrost.DefaultConfig()
	if cfg.PollInterval != def.PollInterval {
		t.Errorf("PollInterval = %v, want default %v", cfg.PollInterval, def.PollInterval)
	}
	if cfg.JobTimeout != def.JobTimeout {
		t.Errorf("JobTimeout = %v, want default %v", cfg.JobTimeout, def.JobTimeout)
	}
	if cfg.ShutdownTimeout != def.ShutdownTimeout {
		t.Errorf("ShutdownTimeout = %v, want default %v", cfg.ShutdownTimeout, def.ShutdownTimeout)
	}
	if cfg.CleanupInterval != def.CleanupInterval {
		t.Errorf("CleanupInterval = %v, want default %v", cfg.CleanupInterval, def.CleanupInterval)
	}
}
