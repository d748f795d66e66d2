package resilience_test

import (
	"testing"
	"time"

	"github.com/wrenvoice/wren/internal/resilience"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func newTestBreaker(maxFailures int, reset time.Duration) (*resilience.Breaker, *fakeClock) {
	clk := &fakeClock{now: time.Unix(0, 0)}
	b := resilience.NewBreaker(resilience.BreakerConfig{
		Name:         "test",
		MaxFailures:  maxFailures,
		ResetTimeout: reset,
	}, resilience.WithBreakerClock(clk.Now))
	return b, clk
}

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	b, _ := newTestBreaker(3, 10*time.Second)

	for i := 0; i < 2; i++ {
		if !b.Allow() {
			t.Fatalf("attempt %d: breaker rejected while closed", i)
		}
		b.Failure()
	}
	if got := b.State(); got != resilience.StateClosed {
		t.Fatalf("state after 2 failures = %v, want closed", got)
	}

	b.Allow()
	b.Failure()
	if got := b.State(); got != resilience.StateOpen {
		t.Fatalf("state after 3 failures = %v, want open", got)
	}
	if b.Allow() {
		t.Fatal("open breaker admitted an attempt before reset timeout")
	}
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	b, _ := newTestBreaker(3, 10*time.Second)

	b.Allow()
	b.Failure()
	b.Allow()
	b.Failure()
	b.Allow()
	b.Success()

	// Two more failures should not open: the count restarted at zero.
	b.Allow()
	b.Failure()
	b.Allow()
	b.Failure()
	if got := b.State(); got != resilience.StateClosed {
		t.Fatalf("state = %v, want closed", got)
	}
}

func TestBreaker_ProbeAfterResetTimeout(t *testing.T) {
	b, clk := newTestBreaker(1, 10*time.Second)

	b.Allow()
	b.Failure()
	if b.Allow() {
		t.Fatal("open breaker admitted an attempt immediately")
	}

	clk.Advance(10 * time.Second)
	if !b.Allow() {
		t.Fatal("breaker did not admit a probe after the reset timeout")
	}
	if got := b.State(); got != resilience.StateHalfOpen {
		t.Fatalf("state during probe = %v, want half-open", got)
	}
	// Only one probe at a time.
	if b.Allow() {
		t.Fatal("breaker admitted a second concurrent probe")
	}

	b.Success()
	if got := b.State(); got != resilience.StateClosed {
		t.Fatalf("state after successful probe = %v, want closed", got)
	}
	if !b.Allow() {
		t.Fatal("closed breaker rejected an attempt")
	}
}

func TestBreaker_FailedProbeReopens(t *testing.T) {
	b, clk := newTestBreaker(1, 10*time.Second)

	b.Allow()
	b.Failure()
	clk.Advance(10 * time.Second)
	if !b.Allow() {
		t.Fatal("breaker did not admit a probe")
	}
	b.Failure()

	if got := b.State(); got != resilience.StateOpen {
		t.Fatalf("state after failed probe = %v, want open", got)
	}
	if b.Allow() {
		t.Fatal("reopened breaker admitted an attempt before a fresh timeout")
	}
	clk.Advance(10 * time.Second)
	if !b.Allow() {
		t.Fatal("breaker did not admit a second probe after retimeout")
	}
}

func TestBreaker_RetryIn(t *testing.T) {
	b, clk := newTestBreaker(1, 10*time.Second)

	if got := b.RetryIn(); got != 0 {
		t.Fatalf("RetryIn while closed = %v, want 0", got)
	}

	b.Allow()
	b.Failure()
	if got := b.RetryIn(); got != 10*time.Second {
		t.Fatalf("RetryIn just after opening = %v, want 10s", got)
	}

	clk.Advance(4 * time.Second)
	if got := b.RetryIn(); got != 6*time.Second {
		t.Fatalf("RetryIn after 4s = %v, want 6s", got)
	}

	clk.Advance(6 * time.Second)
	if got := b.RetryIn(); got != 0 {
		t.Fatalf("RetryIn after full timeout = %v, want 0", got)
	}
}

func TestBreaker_Defaults(t *testing.T) {
	b := resilience.NewBreaker(resilience.BreakerConfig{Name: "defaults"})

	// Three consecutive failures hit the default limit.
	for i := 0; i < 3; i++ {
		b.Allow()
		b.Failure()
	}
	if got := b.State(); got != resilience.StateOpen {
		t.Fatalf("state = %v, want open with default MaxFailures", got)
	}
}

func TestState_String(t *testing.T) {
	cases := []struct {
		state resilience.State
		want  string
	}{
		{resilience.StateClosed, "closed"},
		{resilience.StateOpen, "open"},
		{resilience.StateHalfOpen, "half-open"},
		{resilience.State(42), "unknown"},
	}
	for _, tc := range cases {
		if got := tc.state.String(); got != tc.want {
			t.Errorf("State(%d).String() = %q, want %q", tc.state, got, tc.want)
		}
	}
}
