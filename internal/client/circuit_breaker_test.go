package client

import (
	"errors"
	"testing"
	"time"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestCircuitBreaker(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	cb := NewCircuitBreaker(3, 100*time.Millisecond)
	cb.now = clock.now

	errSink := errors.New("sink unavailable")
	fail := func() error { return errSink }
	ok := func() error { return nil }

	if cb.State() != StateClosed {
		t.Errorf("Expected Closed state, got %v", cb.State())
	}

	// Two failures keep the circuit closed.
	for i := 0; i < 2; i++ {
		if err := cb.Execute(fail); !errors.Is(err, errSink) {
			t.Fatalf("Execute returned %v, want sink error", err)
		}
	}
	if cb.State() != StateClosed {
		t.Errorf("Should remain Closed after 2 failures, got %v", cb.State())
	}

	// A success resets the count.
	_ = cb.Execute(ok)
	_ = cb.Execute(fail)
	_ = cb.Execute(fail)
	if cb.State() != StateClosed {
		t.Errorf("Success should reset the failure count, got %v", cb.State())
	}

	// Third consecutive failure trips the breaker.
	_ = cb.Execute(fail)
	if cb.State() != StateOpen {
		t.Fatalf("Expected Open state after 3 failures, got %v", cb.State())
	}

	called := false
	if err := cb.Execute(func() error { called = true; return nil }); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Execute while open = %v, want ErrCircuitOpen", err)
	}
	if called {
		t.Error("fn must not run while the circuit is open")
	}

	// Case A: probe fails -> open again.
	clock.advance(150 * time.Millisecond)
	_ = cb.Execute(fail)
	if cb.State() != StateOpen {
		t.Errorf("Expected Open state after probe failure, got %v", cb.State())
	}

	// Case B: probe succeeds -> closed.
	clock.advance(150 * time.Millisecond)
	var during State
	_ = cb.Execute(func() error {
		during = cb.State()
		return nil
	})
	if during != StateHalfOpen {
		t.Errorf("Expected HalfOpen during probe, got %v", during)
	}
	if cb.State() != StateClosed {
		t.Errorf("Expected Closed state after probe success, got %v", cb.State())
	}
	if cb.failures != 0 {
		t.Errorf("Failures should be reset")
	}
}

func TestCircuitBreaker_SingleProbe(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	cb := NewCircuitBreaker(1, time.Second)
	cb.now = clock.now

	_ = cb.Execute(func() error { return errors.New("boom") })
	clock.advance(2 * time.Second)

	_ = cb.Execute(func() error {
		// A second caller is rejected while the probe is in flight.
		if err := cb.Execute(func() error { return nil }); !errors.Is(err, ErrCircuitOpen) {
			t.Errorf("concurrent probe = %v, want ErrCircuitOpen", err)
		}
		return nil
	})
	if cb.State() != StateClosed {
		t.Errorf("Expected Closed after successful probe, got %v", cb.State())
	}
}

func TestState_String(t *testing.T) {
	tests := map[State]string{
		StateClosed:   "closed",
		StateOpen:     "open",
		StateHalfOpen: "half-open",
		State(42):     "unknown",
	}
	for s, want := range tests {
		if got := s.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", int(s), got, want)
		}
	}
}
