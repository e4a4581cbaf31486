package input

import (
	"math"
	"sync"
	"time"

	"neonrange/server/internal/logging"
)

// ValidationReason identifies why a command was rejected by the validator.
type ValidationReason string

const (
	ValidationReasonNone           ValidationReason = ""
	ValidationReasonLookNotFinite  ValidationReason = "look_not_finite"
	ValidationReasonLookRange      ValidationReason = "look_range"
	ValidationReasonCodeMissing    ValidationReason = "code_missing"
	ValidationReasonCodeLength     ValidationReason = "code_length"
	ValidationReasonCooldownActive ValidationReason = "cooldown_active"
)

// CommandConstraints configures the validator's payload bounds and cooldown policy.
type CommandConstraints struct {
	MaxLookDelta       float64
	MaxCodeLength      int
	InvalidBurstLimit  int
	InvalidBurstWindow time.Duration
	CooldownDuration   time.Duration
	MaxCooldownStrikes int
}

// ValidationDecision summarises the result of a Validate call.
type ValidationDecision struct {
	Accepted   bool
	Reason     ValidationReason
	Warn       bool
	Disconnect bool
	Cooldown   time.Duration
}

// ValidationCounters aggregates per-client violation statistics.
type ValidationCounters struct {
	Violations  map[ValidationReason]uint64 `json:"violations,omitempty"`
	Cooldowns   uint64                      `json:"cooldowns"`
	Disconnects uint64                      `json:"disconnects"`
}

// ValidatorOption customises validator construction.
type ValidatorOption func(*Validator)

// Validator enforces payload bounds and escalates repeated abuse into cooldowns.
type Validator struct {
	mu      sync.Mutex
	cfg     CommandConstraints
	clock   Clock
	logger  *logging.Logger
	clients map[string]*validatorClientState
	metrics map[string]ValidationCounters
}

type validatorClientState struct {
	firstInvalid  time.Time
	invalidCount  int
	cooldownUntil time.Time
	strikes       int
}

// DefaultCommandConstraints provides the tuned baseline for production traffic.
var DefaultCommandConstraints = CommandConstraints{
	MaxLookDelta:       2000,
	MaxCodeLength:      32,
	InvalidBurstLimit:  5,
	InvalidBurstWindow: time.Second,
	CooldownDuration:   500 * time.Millisecond,
	MaxCooldownStrikes: 3,
}

// WithValidatorClock overrides the clock used to determine cooldown windows.
func WithValidatorClock(clock Clock) ValidatorOption {
	return func(v *Validator) {
		if clock != nil {
			v.clock = clock
		}
	}
}

// NewValidator builds a validator with the supplied constraints and logger.
func NewValidator(cfg CommandConstraints, logger *logging.Logger, opts ...ValidatorOption) *Validator {
	//1.- Fill unset knobs from the defaults so partial configs stay usable.
	if cfg.MaxLookDelta <= 0 {
		cfg.MaxLookDelta = DefaultCommandConstraints.MaxLookDelta
	}
	if cfg.MaxCodeLength <= 0 {
		cfg.MaxCodeLength = DefaultCommandConstraints.MaxCodeLength
	}
	if cfg.InvalidBurstLimit <= 0 {
		cfg.InvalidBurstLimit = DefaultCommandConstraints.InvalidBurstLimit
	}
	if cfg.InvalidBurstWindow <= 0 {
		cfg.InvalidBurstWindow = DefaultCommandConstraints.InvalidBurstWindow
	}
	if cfg.CooldownDuration <= 0 {
		cfg.CooldownDuration = DefaultCommandConstraints.CooldownDuration
	}
	if cfg.MaxCooldownStrikes <= 0 {
		cfg.MaxCooldownStrikes = DefaultCommandConstraints.MaxCooldownStrikes
	}
	validator := &Validator{
		cfg:     cfg,
		clock:   systemClock{},
		logger:  logger,
		clients: make(map[string]*validatorClientState),
		metrics: make(map[string]ValidationCounters),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(validator)
		}
	}
	return validator
}

// Validate checks the supplied command and records any violations.
func (v *Validator) Validate(clientID string, command Command) ValidationDecision {
	//1.- Assume acceptance when the validator is absent to reduce call sites.
	if v == nil {
		return ValidationDecision{Accepted: true}
	}
	now := v.clock.Now()

	v.mu.Lock()
	defer v.mu.Unlock()

	state := v.clients[clientID]
	if state == nil {
		state = &validatorClientState{}
		v.clients[clientID] = state
	}

	if !state.cooldownUntil.IsZero() && now.Before(state.cooldownUntil) {
		return ValidationDecision{Accepted: false, Reason: ValidationReasonCooldownActive, Cooldown: state.cooldownUntil.Sub(now)}
	}
	if reason := v.check(command); reason != ValidationReasonNone {
		return v.registerViolationLocked(clientID, state, now, reason)
	}
	//2.- A valid command resets the burst window.
	state.invalidCount = 0
	state.firstInvalid = time.Time{}
	return ValidationDecision{Accepted: true}
}

// Forget clears all state for the specified client.
func (v *Validator) Forget(clientID string) {
	if v == nil || clientID == "" {
		return
	}
	v.mu.Lock()
	delete(v.clients, clientID)
	delete(v.metrics, clientID)
	v.mu.Unlock()
}

// Metrics returns a snapshot of per-client counters for diagnostics.
func (v *Validator) Metrics() map[string]ValidationCounters {
	if v == nil {
		return nil
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.metrics) == 0 {
		return nil
	}
	snapshot := make(map[string]ValidationCounters, len(v.metrics))
	for key, counters := range v.metrics {
		clone := ValidationCounters{Cooldowns: counters.Cooldowns, Disconnects: counters.Disconnects}
		if len(counters.Violations) > 0 {
			clone.Violations = make(map[ValidationReason]uint64, len(counters.Violations))
			for reason, count := range counters.Violations {
				clone.Violations[reason] = count
			}
		}
		snapshot[key] = clone
	}
	return snapshot
}

func (v *Validator) registerViolationLocked(key string, state *validatorClientState, now time.Time, reason ValidationReason) ValidationDecision {
	counters := v.metrics[key]
	if counters.Violations == nil {
		counters.Violations = make(map[ValidationReason]uint64)
	}
	counters.Violations[reason]++

	decision := ValidationDecision{Accepted: false, Reason: reason}

	//1.- Count violations inside the burst window and escalate to a cooldown at the limit.
	if state.invalidCount == 0 || now.Sub(state.firstInvalid) > v.cfg.InvalidBurstWindow {
		state.firstInvalid = now
		state.invalidCount = 1
	} else {
		state.invalidCount++
	}
	decision.Warn = v.cfg.InvalidBurstLimit-state.invalidCount == 1
	if state.invalidCount >= v.cfg.InvalidBurstLimit {
		state.cooldownUntil = now.Add(v.cfg.CooldownDuration)
		state.invalidCount = 0
		state.firstInvalid = time.Time{}
		state.strikes++
		counters.Cooldowns++
		//2.- Repeat offenders are asked to disconnect.
		if state.strikes >= v.cfg.MaxCooldownStrikes {
			decision.Disconnect = true
			counters.Disconnects++
		}
		decision.Cooldown = v.cfg.CooldownDuration
		if v.logger != nil {
			v.logger.Debug("command validator cooldown",
				logging.String("client_id", key),
				logging.String("reason", string(reason)),
				logging.Int64("cooldown_ms", v.cfg.CooldownDuration.Milliseconds()),
			)
		}
	}
	v.metrics[key] = counters
	return decision
}

func (v *Validator) check(command Command) ValidationReason {
	switch command.Kind {
	case KindLook:
		if math.IsNaN(command.DX) || math.IsNaN(command.DY) || math.IsInf(command.DX, 0) || math.IsInf(command.DY, 0) {
			return ValidationReasonLookNotFinite
		}
		if math.Abs(command.DX) > v.cfg.MaxLookDelta || math.Abs(command.DY) > v.cfg.MaxLookDelta {
			return ValidationReasonLookRange
		}
	case KindKeyDown, KindKeyUp:
		if command.Code == "" {
			return ValidationReasonCodeMissing
		}
		if len(command.Code) > v.cfg.MaxCodeLength {
			return ValidationReasonCodeLength
		}
	}
	return ValidationReasonNone
}
