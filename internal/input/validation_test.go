package input

import (
	"strings"
	"sync"
	"testing"
	"time"

	"neonrange/server/internal/logging"
)

type validatorClock struct {
	mu  sync.Mutex
	now time.Time
}

// 1.- Now returns the synthetic time used to drive cooldown calculations deterministically.
func (c *validatorClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// 2.- Advance moves the synthetic clock forward so tests can simulate elapsed time.
func (c *validatorClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestValidatorAcceptsWellFormedCommands(t *testing.T) {
	validator := NewValidator(DefaultCommandConstraints, logging.NewTestLogger(), WithValidatorClock(&validatorClock{now: time.UnixMilli(0)}))

	for _, command := range []Command{
		{Kind: KindKeyDown, Code: "KeyW"},
		{Kind: KindLook, DX: 120, DY: -40},
		{Kind: KindFire},
		{Kind: KindReset},
	} {
		if decision := validator.Validate("client-A", command); !decision.Accepted {
			t.Fatalf("expected %s accepted, got %+v", command.Kind, decision)
		}
	}
}

func TestValidatorRejectsMalformedPayloads(t *testing.T) {
	validator := NewValidator(DefaultCommandConstraints, logging.NewTestLogger(), WithValidatorClock(&validatorClock{now: time.UnixMilli(0)}))

	cases := map[ValidationReason]Command{
		ValidationReasonLookRange:   {Kind: KindLook, DX: 5000},
		ValidationReasonCodeMissing: {Kind: KindKeyUp},
		ValidationReasonCodeLength:  {Kind: KindKeyDown, Code: strings.Repeat("K", 40)},
	}
	for reason, command := range cases {
		decision := validator.Validate("client-B", command)
		if decision.Accepted || decision.Reason != reason {
			t.Fatalf("expected %s, got %+v", reason, decision)
		}
	}
	if counters := validator.Metrics()["client-B"]; counters.Violations[ValidationReasonLookRange] != 1 {
		t.Fatalf("unexpected counters %+v", counters)
	}
}

func TestValidatorEscalatesToCooldownAndDisconnect(t *testing.T) {
	clock := &validatorClock{now: time.UnixMilli(0)}
	validator := NewValidator(DefaultCommandConstraints, logging.NewTestLogger(), WithValidatorClock(clock))
	bad := Command{Kind: KindLook, DY: -9999}

	var decision ValidationDecision
	for strike := 1; strike <= 3; strike++ {
		//1.- Burn through the burst limit to trigger a cooldown.
		for i := 0; i < DefaultCommandConstraints.InvalidBurstLimit; i++ {
			decision = validator.Validate("client-C", bad)
		}
		if decision.Cooldown != DefaultCommandConstraints.CooldownDuration {
			t.Fatalf("strike %d: expected cooldown, got %+v", strike, decision)
		}
		//2.- Commands during the cooldown are rejected regardless of content.
		if blocked := validator.Validate("client-C", Command{Kind: KindFire}); blocked.Reason != ValidationReasonCooldownActive {
			t.Fatalf("strike %d: expected cooldown rejection, got %+v", strike, blocked)
		}
		clock.Advance(time.Second)
	}
	if !decision.Disconnect {
		t.Fatalf("expected disconnect after repeated strikes, got %+v", decision)
	}
	if counters := validator.Metrics()["client-C"]; counters.Cooldowns != 3 || counters.Disconnects != 1 {
		t.Fatalf("unexpected counters %+v", counters)
	}

	validator.Forget("client-C")
	if _, ok := validator.Metrics()["client-C"]; ok {
		t.Fatal("expected metrics cleared after forget")
	}
}
