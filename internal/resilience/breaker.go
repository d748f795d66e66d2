// Package resilience guards the capture loop against a repeatedly failing
// audio input.
//
// The central type is [Breaker], a three-state breaker (closed, open,
// half-open) sized for a device that faults on open or mid-stream: a few
// consecutive faults open the breaker, reopen attempts are then paced by a
// reset timeout instead of hammering the driver, and a single successful
// probe session closes it again.
package resilience

import (
	"log/slog"
	"sync"
	"time"
)

// State is the operating mode of a [Breaker].
type State int

const (
	// StateClosed forwards all attempts.
	StateClosed State = iota

	// StateOpen rejects attempts until the reset timeout elapses.
	StateOpen

	// StateHalfOpen allows one probe attempt whose outcome decides the
	// next state.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig tunes a [Breaker]. Zero fields take defaults.
type BreakerConfig struct {
	// Name labels the guarded resource in log output.
	Name string

	// MaxFailures is how many consecutive failures open the breaker.
	// Default: 3.
	MaxFailures int

	// ResetTimeout is how long the breaker stays open before allowing a
	// probe. Default: 10s.
	ResetTimeout time.Duration
}

// Breaker tracks consecutive failures of a guarded resource and paces retry
// attempts. Safe for concurrent use.
type Breaker struct {
	name         string
	maxFailures  int
	resetTimeout time.Duration
	now          func() time.Time

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probing  bool
}

// BreakerOption configures a [Breaker] beyond its config.
type BreakerOption func(*Breaker)

// WithBreakerClock overrides the time source. Tests use this to step through
// the reset timeout without sleeping.
func WithBreakerClock(now func() time.Time) BreakerOption {
	return func(b *Breaker) {
		b.now = now
	}
}

// NewBreaker creates a closed [Breaker] from cfg.
func NewBreaker(cfg BreakerConfig, opts ...BreakerOption) *Breaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 3
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 10 * time.Second
	}
	b := &Breaker{
		name:         cfg.Name,
		maxFailures:  cfg.MaxFailures,
		resetTimeout: cfg.ResetTimeout,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Allow reports whether an attempt may proceed. While open it returns false
// until the reset timeout elapses, then admits a single probe and moves to
// half-open. The caller must report the attempt's outcome via [Breaker.Success]
// or [Breaker.Failure].
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.resetTimeout {
			return false
		}
		b.state = StateHalfOpen
		b.probing = true
		slog.Info("breaker half-open, probing", "name", b.name)
		return true
	case StateHalfOpen:
		if b.probing {
			return false
		}
		b.probing = true
		return true
	}
	return false
}

// RetryIn returns how long until the next attempt will be admitted. Zero when
// the breaker is not open.
func (b *Breaker) RetryIn() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != StateOpen {
		return 0
	}
	remaining := b.resetTimeout - b.now().Sub(b.openedAt)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Success records a successful attempt. It closes a half-open breaker and
// clears the failure count.
func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateHalfOpen {
		slog.Info("breaker closed after successful probe", "name", b.name)
	}
	b.state = StateClosed
	b.failures = 0
	b.probing = false
}

// Failure records a failed attempt. A failed probe reopens the breaker
// immediately; in the closed state the breaker opens once the consecutive
// failure count reaches the limit.
func (b *Breaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	b.probing = false

	switch b.state {
	case StateHalfOpen:
		b.state = StateOpen
		b.openedAt = b.now()
		slog.Warn("breaker reopened, probe failed", "name", b.name)
	case StateClosed:
		if b.failures >= b.maxFailures {
			b.state = StateOpen
			b.openedAt = b.now()
			slog.Warn("breaker opened",
				"name", b.name,
				"consecutive_failures", b.failures)
		}
	}
}

// State returns the breaker's current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
