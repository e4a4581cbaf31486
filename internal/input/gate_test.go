package input

import (
	"sync"
	"testing"
	"time"

	"neonrange/server/internal/logging"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

// 1.- Now returns the configured timestamp for deterministic gate decisions.
func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// 2.- Advance moves the internal clock forward to simulate elapsed time.
func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func newTestGate(clock Clock) *Gate {
	return NewGate(Config{MaxAge: 250 * time.Millisecond, MinInterval: time.Second / 60}, logging.NewTestLogger(), WithClock(clock))
}

func TestGateRejectsNonMonotonicSequence(t *testing.T) {
	gate := newTestGate(&fakeClock{now: time.Unix(0, 0)})

	//1.- Accept the initial frame to seed client state.
	first := gate.Evaluate(Frame{ClientID: "conn-1", SequenceID: 1})
	if !first.Accepted {
		t.Fatalf("first frame unexpectedly rejected: %+v", first)
	}

	//2.- Replay the previous sequence which should be rejected as out-of-order.
	second := gate.Evaluate(Frame{ClientID: "conn-1", SequenceID: 1})
	if second.Accepted || second.Reason != DropReasonSequence {
		t.Fatalf("expected sequence drop, got %+v", second)
	}
	if zero := gate.Evaluate(Frame{ClientID: "conn-1"}); zero.Accepted {
		t.Fatal("sequence zero must be rejected")
	}

	metrics := gate.Metrics()
	if metrics["conn-1"].Sequence != 2 {
		t.Fatalf("sequence drops = %d, want 2", metrics["conn-1"].Sequence)
	}
}

func TestGateRejectsStaleDroppableFrames(t *testing.T) {
	clock := &fakeClock{now: time.Unix(10, 0)}
	gate := newTestGate(clock)
	sentAt := clock.Now().Add(-600 * time.Millisecond)

	//1.- A look captured long ago is shed as stale.
	stale := gate.Evaluate(Frame{ClientID: "pilot", SequenceID: 1, SentAt: sentAt, Droppable: true})
	if stale.Accepted || stale.Reason != DropReasonStale {
		t.Fatalf("expected stale drop, got %+v", stale)
	}
	if stale.Delay != 600*time.Millisecond {
		t.Fatalf("unexpected delay %v", stale.Delay)
	}

	//2.- The same delay on a key transition still passes so held keys cannot stick.
	key := gate.Evaluate(Frame{ClientID: "pilot", SequenceID: 2, SentAt: sentAt})
	if !key.Accepted {
		t.Fatalf("key transition must not be shed, got %+v", key)
	}

	if metrics := gate.Metrics()["pilot"]; metrics.Stale != 1 {
		t.Fatalf("stale drops = %d, want 1", metrics.Stale)
	}
}

func TestGateRateLimitsHighFrequencyLook(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	gate := newTestGate(clock)

	//1.- First frame should pass through without restriction.
	if decision := gate.Evaluate(Frame{ClientID: "conn", SequenceID: 1, Droppable: true}); !decision.Accepted {
		t.Fatalf("initial frame rejected: %+v", decision)
	}

	//2.- Advance less than the 60 Hz interval and verify rate limiting kicks in.
	clock.Advance(5 * time.Millisecond)
	burst := gate.Evaluate(Frame{ClientID: "conn", SequenceID: 2, Droppable: true})
	if burst.Accepted || burst.Reason != DropReasonRateLimited {
		t.Fatalf("expected rate limit drop, got %+v", burst)
	}
	if decision := gate.Evaluate(Frame{ClientID: "conn", SequenceID: 3}); !decision.Accepted {
		t.Fatalf("key frames bypass the rate limit, got %+v", decision)
	}
	clock.Advance(20 * time.Millisecond)
	if decision := gate.Evaluate(Frame{ClientID: "conn", SequenceID: 4, Droppable: true}); !decision.Accepted {
		t.Fatalf("expected acceptance after the interval, got %+v", decision)
	}

	if metrics := gate.Metrics()["conn"]; metrics.RateLimited != 1 {
		t.Fatalf("rate limited drops = %d, want 1", metrics.RateLimited)
	}
	if totals := gate.Totals(); totals.RateLimited != 1 {
		t.Fatalf("unexpected totals %+v", totals)
	}
}

func TestGateForgetClearsClientState(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	gate := newTestGate(clock)

	//1.- Accept an initial frame to populate client state and metrics.
	if decision := gate.Evaluate(Frame{ClientID: "conn", SequenceID: 1}); !decision.Accepted {
		t.Fatalf("initial frame rejected: %+v", decision)
	}
	gate.Evaluate(Frame{ClientID: "conn", SequenceID: 1}) // trigger sequence drop

	//2.- Forget the client and ensure a fresh sequence is permitted again.
	gate.Forget("conn")
	if metrics := gate.Metrics()["conn"]; metrics.Sequence != 0 {
		t.Fatalf("expected metrics reset after forget, got %+v", metrics)
	}
	clock.Advance(time.Second)
	if decision := gate.Evaluate(Frame{ClientID: "conn", SequenceID: 1}); !decision.Accepted {
		t.Fatalf("expected new session acceptance, got %+v", decision)
	}
}

func TestGateAcceptsFireRightAfterLook(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	gate := NewGate(Config{MaxAge: 250 * time.Millisecond, MinInterval: 4 * time.Millisecond}, logging.NewTestLogger(), WithClock(clock))

	look, err := Decode([]byte(`{"seq":1,"command":{"kind":"look","dx":3}}`))
	if err != nil {
		t.Fatalf("decode look: %v", err)
	}
	if decision := gate.Evaluate(look.Frame("conn")); !decision.Accepted {
		t.Fatalf("look rejected: %+v", decision)
	}

	//1.- A click in the same browser frame as a mouse move must still land.
	clock.Advance(time.Millisecond)
	fire, err := Decode([]byte(`{"seq":2,"command":{"kind":"fire"}}`))
	if err != nil {
		t.Fatalf("decode fire: %v", err)
	}
	if decision := gate.Evaluate(fire.Frame("conn")); !decision.Accepted {
		t.Fatalf("fire 1ms after look rejected: %+v", decision)
	}

	//2.- Accepted fire does not restart the look interval either.
	clock.Advance(3 * time.Millisecond)
	next, err := Decode([]byte(`{"seq":3,"command":{"kind":"look","dx":1}}`))
	if err != nil {
		t.Fatalf("decode look: %v", err)
	}
	if decision := gate.Evaluate(next.Frame("conn")); !decision.Accepted {
		t.Fatalf("look after interval rejected: %+v", decision)
	}
	if totals := gate.Totals(); totals.RateLimited != 0 {
		t.Fatalf("unexpected rate limited drops %+v", totals)
	}
}
