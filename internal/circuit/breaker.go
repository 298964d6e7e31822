// Package circuit implements the closed/open/half-open circuit breaker
// state machine (C7): a per-endpoint failure gate that fails fast once a
// downstream collaborator looks unhealthy, and probes recovery with a
// bounded number of half-open trial calls.
package circuit

import (
	stderrors "errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by Execute and StreamExecute when the breaker
// is open.
var ErrCircuitOpen = stderrors.New("circuit breaker is open")

// State is one of closed, open, or half-open.
type State int

const (
	StateClosed State = iota
	StateOpen
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

// Settings configures a Breaker.
type Settings struct {
	FailureThreshold         int
	ResetTimeout             time.Duration
	HalfOpenTimeout          time.Duration
	HalfOpenSuccessThreshold int
}

// DefaultSettings returns conservative defaults.
func DefaultSettings() Settings {
	return Settings{
		FailureThreshold:         5,
		ResetTimeout:             30 * time.Second,
		HalfOpenTimeout:          10 * time.Second,
		HalfOpenSuccessThreshold: 1,
	}
}

// TransitionCallback is invoked after every state transition with (from, to).
// Callback panics are recovered so one bad observer cannot corrupt breaker
// state for others.
type TransitionCallback func(from, to State)

// Breaker is a per-endpoint circuit breaker with the closed/open/half-open
// state machine from spec.md §4.7. Safe for concurrent use.
type Breaker struct {
	name     string
	settings Settings

	mu              sync.Mutex
	state           State
	failureCount    int
	successCount    int
	lastStateChange time.Time
	halfOpenDeadline time.Time

	callbacksMu sync.RWMutex
	callbacks   []TransitionCallback
}

// New creates a breaker named name with the given settings.
func New(name string, settings Settings) *Breaker {
	return &Breaker{
		name:            name,
		settings:        settings,
		state:           StateClosed,
		lastStateChange: time.Now(),
	}
}

// Name returns the breaker's name.
func (b *Breaker) Name() string { return b.name }

// OnTransition registers a callback invoked after every state transition.
func (b *Breaker) OnTransition(cb TransitionCallback) {
	b.callbacksMu.Lock()
	defer b.callbacksMu.Unlock()
	b.callbacks = append(b.callbacks, cb)
}

func (b *Breaker) notify(from, to State) {
	b.callbacksMu.RLock()
	cbs := make([]TransitionCallback, len(b.callbacks))
	copy(cbs, b.callbacks)
	b.callbacksMu.RUnlock()

	for _, cb := range cbs {
		invokeSafely(cb, from, to)
	}
}

func invokeSafely(cb TransitionCallback, from, to State) {
	defer func() { _ = recover() }()
	cb(from, to)
}

// transitionLocked moves the breaker to `to` and resets counters as the
// spec prescribes. Must be called with b.mu held.
func (b *Breaker) transitionLocked(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	b.lastStateChange = time.Now()
	switch to {
	case StateClosed:
		b.failureCount = 0
		b.successCount = 0
	case StateHalfOpen:
		b.successCount = 0
		b.halfOpenDeadline = time.Now().Add(b.settings.HalfOpenTimeout)
	case StateOpen:
		b.successCount = 0
	}
	go b.notify(from, to)
}

// currentStateLocked resolves StateOpen -> StateHalfOpen once resetTimeout
// has elapsed, and StateHalfOpen -> StateOpen once halfOpenTimeout elapses
// without enough successes. Must be called with b.mu held.
func (b *Breaker) currentStateLocked() State {
	switch b.state {
	case StateOpen:
		if time.Since(b.lastStateChange) >= b.settings.ResetTimeout {
			b.transitionLocked(StateHalfOpen)
		}
	case StateHalfOpen:
		if time.Now().After(b.halfOpenDeadline) {
			b.transitionLocked(StateOpen)
		}
	}
	return b.state
}

// State returns the current resolved state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.currentStateLocked()
}

// Allow reports whether a call should be let through right now.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.currentStateLocked() != StateOpen
}

// recordSuccessLocked applies a successful-call transition. Must hold b.mu.
func (b *Breaker) recordSuccessLocked() {
	switch b.currentStateLocked() {
	case StateHalfOpen:
		b.successCount++
		if b.successCount >= b.settings.HalfOpenSuccessThreshold {
			b.transitionLocked(StateClosed)
		}
	case StateClosed:
		b.failureCount = 0
	}
}

// recordFailureLocked applies a failed-call transition. Must hold b.mu.
func (b *Breaker) recordFailureLocked() {
	switch b.currentStateLocked() {
	case StateHalfOpen:
		b.transitionLocked(StateOpen)
	case StateClosed:
		b.failureCount++
		if b.failureCount >= b.settings.FailureThreshold {
			b.transitionLocked(StateOpen)
		}
	}
}

// RecordSuccess records a success observed outside of Execute (e.g. from a
// stream subscription).
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.recordSuccessLocked()
}

// RecordFailure records a failure observed outside of Execute.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.recordFailureLocked()
}

// Counts returns the current failure/success counters, for diagnostics.
func (b *Breaker) Counts() (failures, successes int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failureCount, b.successCount
}

// Execute runs fn through the breaker. If the breaker is open, fn is not
// invoked and ErrCircuitOpen is returned instead.
func (b *Breaker) Execute(fn func() error) error {
	b.mu.Lock()
	if b.currentStateLocked() == StateOpen {
		b.mu.Unlock()
		return ErrCircuitOpen
	}
	b.mu.Unlock()

	err := fn()

	b.mu.Lock()
	if err != nil {
		b.recordFailureLocked()
	} else {
		b.recordSuccessLocked()
	}
	b.mu.Unlock()

	return err
}

// ExecuteWithResult is the generic form of Execute: fn's result is returned
// on success, and fallback is invoked instead of fn whenever the breaker is
// open or fn itself fails.
func ExecuteWithResult[T any](b *Breaker, fn func() (T, error), fallback func() (T, error)) (T, error) {
	b.mu.Lock()
	open := b.currentStateLocked() == StateOpen
	b.mu.Unlock()
	if open {
		return fallback()
	}

	result, err := fn()

	b.mu.Lock()
	if err != nil {
		b.recordFailureLocked()
	} else {
		b.recordSuccessLocked()
	}
	b.mu.Unlock()

	if err != nil {
		return fallback()
	}
	return result, nil
}

// StreamExecute wraps a sequence of items delivered by produce, counting
// each delivered value as a success and each error as a failure. The
// breaker's state is consulted only once, at subscription time: if it is
// open, produce is never called and ErrCircuitOpen is returned.
func (b *Breaker) StreamExecute(produce func(yield func(value any, err error) bool)) error {
	b.mu.Lock()
	if b.currentStateLocked() == StateOpen {
		b.mu.Unlock()
		return ErrCircuitOpen
	}
	b.mu.Unlock()

	produce(func(value any, err error) bool {
		b.mu.Lock()
		if err != nil {
			b.recordFailureLocked()
		} else {
			b.recordSuccessLocked()
		}
		b.mu.Unlock()
		return true
	})
	return nil
}
