// Package backoff provides delay strategies for dispatcher pauses after
// queue store failures. Strategies are stateless and safe for concurrent
// use; the dispatcher tracks its own consecutive-failure count.
package backoff

import (
	"math"
	"math/rand/v2"
	"time"
)

// Strategy computes how long a dispatcher pauses after a failed store
// operation before polling again.
type Strategy interface {
	// Delay returns the pause before the next poll given the number of
	// consecutive failures so far (1-indexed: 1 means the first failure).
	Delay(failures int) time.Duration
}

// ──────────────────────────────────────────────────
// Constant
// ──────────────────────────────────────────────────

// Constant pauses the same amount regardless of how many polls have failed
// in a row.
type Constant struct {
	Interval time.Duration
}

// NewConstant creates a fixed-pause strategy.
func NewConstant(interval time.Duration) *Constant {
	return &Constant{Interval: interval}
}

// Delay returns the fixed interval.
func (c *Constant) Delay(_ int) time.Duration {
	return c.Interval
}

// ──────────────────────────────────────────────────
// Exponential
// ──────────────────────────────────────────────────

// Exponential doubles the pause with each consecutive failure.
// Delay = min(Initial * 2^(failures-1), Max).
type Exponential struct {
	Initial time.Duration
	Max     time.Duration
}

// NewExponential creates an exponential strategy.
func NewExponential(initial, maxDelay time.Duration) *Exponential {
	return &Exponential{Initial: initial, Max: maxDelay}
}

// Delay returns Initial * 2^(failures-1), capped at Max.
func (e *Exponential) Delay(failures int) time.Duration {
	d := time.Duration(float64(e.Initial) * math.Pow(2, float64(failures-1)))
	if e.Max > 0 && d > e.Max {
		return e.Max
	}
	return d
}

// ──────────────────────────────────────────────────
// ExponentialWithJitter (full jitter)
// ──────────────────────────────────────────────────

// ExponentialWithJitter draws a random pause in [0, exponential cap] so
// that dispatchers which failed together do not all retry together.
type ExponentialWithJitter struct {
	Initial time.Duration
	Max     time.Duration
}

// NewExponentialWithJitter creates an exponential strategy with full jitter.
func NewExponentialWithJitter(initial, maxDelay time.Duration) *ExponentialWithJitter {
	return &ExponentialWithJitter{Initial: initial, Max: maxDelay}
}

// Delay returns a random duration in [0, min(Initial * 2^(failures-1), Max)].
func (e *ExponentialWithJitter) Delay(failures int) time.Duration {
	base := float64(e.Initial) * math.Pow(2, float64(failures-1))
	if e.Max > 0 && base > float64(e.Max) {
		base = float64(e.Max)
	}
	return time.Duration(rand.Float64() * base) //nolint:gosec // jitter intentionally uses non-crypto rand
}

// ──────────────────────────────────────────────────
// Default
// ──────────────────────────────────────────────────

// DefaultStrategy returns the pool's stock behavior: a flat one-second
// pause after any store failure.
func DefaultStrategy() Strategy {
	return NewConstant(1 * time.Second)
}
