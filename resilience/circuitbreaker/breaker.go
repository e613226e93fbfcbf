package circuitbreaker

import (
	"sync"
	"time"
)

// State represents circuit breaker state.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half-open"
)

// StateChangeListener is notified when a circuit breaker changes state.
type StateChangeListener interface {
	OnStateChange(name string, from State, to State)
}

// Snapshot is a read-only view of a breaker for diagnostics. OpenedAt is the
// zero time unless the breaker is open or half-open.
type Snapshot struct {
	Name                 string
	State                State
	ConsecutiveFailures  int
	ConsecutiveSuccesses int
	OpenedAt             time.Time
}

// Breaker is the state machine guarding a single named resource.
//
// Callers ask for admission with Allow, run their operation, and report the
// outcome with RecordSuccess, RecordFailure, or RecordCancel. All methods are
// safe for concurrent use; each breaker serializes independently.
type Breaker struct {
	name   string
	config Config

	mu                   sync.Mutex
	state                State
	consecutiveFailures  int
	consecutiveSuccesses int
	openedAt             time.Time
	halfOpenInFlight     int

	now           func() time.Time
	onStateChange func(name string, from State, to State)
}

// New creates a closed breaker for the named resource.
func New(name string, config Config) (*Breaker, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &Breaker{
		name:   name,
		config: config,
		state:  StateClosed,
		now:    time.Now,
	}, nil
}

// Name returns the resource name this breaker guards.
func (b *Breaker) Name() string {
	return b.name
}

// OnStateChange registers a callback invoked after every state transition.
// The callback runs outside the breaker lock.
func (b *Breaker) OnStateChange(fn func(name string, from State, to State)) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.onStateChange = fn
}

// Allow reports whether a call may proceed.
//
// While open, the elapsed dwell time is checked here: once Timeout has
// passed, the breaker moves to half-open and admits the caller as the first
// trial. While half-open, admission consumes one of HalfOpenMaxCalls slots;
// callers denied at capacity do not consume a slot.
func (b *Breaker) Allow() bool {
	b.mu.Lock()

	var transition *stateTransition

	allowed := false

	switch b.state {
	case StateClosed:
		allowed = true
	case StateOpen:
		if b.now().Sub(b.openedAt) >= b.config.Timeout {
			transition = b.transitionLocked(StateHalfOpen)
			b.halfOpenInFlight = 1
			allowed = true
		}
	case StateHalfOpen:
		if b.halfOpenInFlight < b.config.HalfOpenMaxCalls {
			b.halfOpenInFlight++
			allowed = true
		}
	}

	b.mu.Unlock()
	b.notify(transition)

	return allowed
}

// RecordSuccess reports a successful call, releasing the trial slot when
// half-open and closing the breaker once SuccessThreshold consecutive
// successes accumulate.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()

	var transition *stateTransition

	b.releaseTrialSlotLocked()

	b.consecutiveSuccesses++
	b.consecutiveFailures = 0

	if b.state == StateHalfOpen && b.consecutiveSuccesses >= b.config.SuccessThreshold {
		transition = b.transitionLocked(StateClosed)
	}

	b.mu.Unlock()
	b.notify(transition)
}

// RecordFailure reports a failed call. From closed it opens the breaker once
// FailureThreshold consecutive failures accumulate; from half-open a single
// failure reopens immediately and restarts the dwell clock.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()

	var transition *stateTransition

	b.releaseTrialSlotLocked()

	b.consecutiveFailures++
	b.consecutiveSuccesses = 0

	switch b.state {
	case StateClosed:
		if b.consecutiveFailures >= b.config.FailureThreshold {
			transition = b.transitionLocked(StateOpen)
		}
	case StateHalfOpen:
		transition = b.transitionLocked(StateOpen)
	case StateOpen:
		// Late report from a call admitted before the trip; stay open.
	}

	b.mu.Unlock()
	b.notify(transition)
}

// RecordCancel reports a call that was cancelled mid-flight. The trial slot
// is released without touching the success or failure counters, so a
// cancelled half-open trial neither heals nor reopens the breaker.
func (b *Breaker) RecordCancel() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.releaseTrialSlotLocked()
}

// Reset forces the breaker to closed with all counters zeroed. Operational
// escape hatch; automatic recovery goes through the half-open cycle instead.
func (b *Breaker) Reset() {
	b.mu.Lock()

	var transition *stateTransition

	if b.state != StateClosed {
		transition = b.transitionLocked(StateClosed)
	}

	b.consecutiveFailures = 0
	b.consecutiveSuccesses = 0
	b.halfOpenInFlight = 0

	b.mu.Unlock()
	b.notify(transition)
}

// State returns the current state without side effects.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.state
}

// Snapshot returns a read-only view of the breaker.
func (b *Breaker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	return Snapshot{
		Name:                 b.name,
		State:                b.state,
		ConsecutiveFailures:  b.consecutiveFailures,
		ConsecutiveSuccesses: b.consecutiveSuccesses,
		OpenedAt:             b.openedAt,
	}
}

type stateTransition struct {
	from State
	to   State
}

// transitionLocked moves the state machine and applies the bookkeeping each
// state requires. Must be called with the lock held; returns the transition
// for notification after the lock is released.
func (b *Breaker) transitionLocked(to State) *stateTransition {
	from := b.state
	b.state = to

	switch to {
	case StateOpen:
		b.openedAt = b.now()
	case StateHalfOpen:
		// Fresh trial window: counters and in-flight slots start over.
		b.consecutiveFailures = 0
		b.consecutiveSuccesses = 0
		b.halfOpenInFlight = 0
	case StateClosed:
		b.consecutiveFailures = 0
		b.consecutiveSuccesses = 0
		b.halfOpenInFlight = 0
		b.openedAt = time.Time{}
	}

	return &stateTransition{from: from, to: to}
}

// releaseTrialSlotLocked frees one half-open slot if the breaker is mid-trial.
func (b *Breaker) releaseTrialSlotLocked() {
	if b.state == StateHalfOpen && b.halfOpenInFlight > 0 {
		b.halfOpenInFlight--
	}
}

func (b *Breaker) notify(transition *stateTransition) {
	if transition == nil {
		return
	}

	b.mu.Lock()
	fn := b.onStateChange
	b.mu.Unlock()

	if fn != nil {
		fn(b.name, transition.from, transition.to)
	}
}
