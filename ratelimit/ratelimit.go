// Package ratelimit enforces per-kind dispatch rate and concurrency
// limits for the worker pool.
//
// The pool's permit ceiling caps total load, but some job kinds talk to
// endpoints with their own tolerances; a [Manager] lets those kinds be
// throttled individually without shrinking the whole pool. A dispatcher
// asks Acquire before running a job and the job is deferred to a later
// poll cycle when the answer is no, so limits shape dispatch order
// rather than dropping work.
package ratelimit

import (
	"sync"

	"golang.org/x/time/rate"

	bifrost "github.com/autumn-order/bifrost-sub000"
)

// Config defines per-kind behaviour such as rate limiting and
// concurrency.
type Config struct {
	// Kind is the job kind the limits apply to.
	Kind bifrost.Kind

	// MaxConcurrency limits how many jobs of this kind may run
	// simultaneously across the local worker pool. Zero means no
	// kind-specific limit (pool-wide concurrency still applies).
	MaxConcurrency int

	// RateLimit is the maximum sustained jobs per second that may be
	// dispatched for this kind. Zero disables rate limiting.
	RateLimit float64

	// RateBurst is the burst size for the token-bucket rate limiter.
	// Defaults to 1 if RateLimit is set but RateBurst is zero.
	RateBurst int
}

// kindState tracks runtime state for a single job kind.
type kindState struct {
	config  Config
	limiter *rate.Limiter
	active  int
}

// Manager controls per-kind rate limiting and concurrency. It is safe
// for concurrent use.
type Manager struct {
	mu    sync.Mutex
	kinds map[bifrost.Kind]*kindState
}

// NewManager creates a Manager with the given kind configurations.
// Kinds not listed here have no limits.
func NewManager(configs ...Config) *Manager {
	m := &Manager{
		kinds: make(map[bifrost.Kind]*kindState, len(configs)),
	}
	for _, cfg := range configs {
		m.kinds[cfg.Kind] = newKindState(cfg)
	}
	return m
}

func newKindState(cfg Config) *kindState {
	ks := &kindState{config: cfg}
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		ks.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return ks
}

// Acquire checks rate limits and concurrency for the given kind. If the
// job is allowed to proceed it increments the active counter and
// returns true. The caller MUST call Release when the job completes.
func (m *Manager) Acquire(kind bifrost.Kind) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	ks := m.kinds[kind]
	if ks == nil {
		return true
	}
	if ks.limiter != nil && !ks.limiter.Allow() {
		return false
	}
	if ks.config.MaxConcurrency > 0 && ks.active >= ks.config.MaxConcurrency {
		return false
	}

	ks.active++
	return true
}

// Release decrements the active job count for the kind.
func (m *Manager) Release(kind bifrost.Kind) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ks := m.kinds[kind]; ks != nil && ks.active > 0 {
		ks.active--
	}
}

// SetConfig dynamically updates (or creates) a kind configuration.
func (m *Manager) SetConfig(cfg Config) {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing := m.kinds[cfg.Kind]
	ks := newKindState(cfg)

	// Preserve current active count if reconfiguring.
	if existing != nil {
		ks.active = existing.active
	}
	m.kinds[cfg.Kind] = ks
}

// ActiveCount returns the current number of active jobs for a kind.
func (m *Manager) ActiveCount(kind bifrost.Kind) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ks := m.kinds[kind]; ks != nil {
		return ks.active
	}
	return 0
}
