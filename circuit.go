package soundmod

import (
	"errors"
	"sync"
	"time"
)

// CircuitState represents the state of a circuit breaker
type CircuitState int

const (
	StateClosed   CircuitState = iota // Normal operation
	StateOpen                         // Failing, reject requests
	StateHalfOpen                     // Testing if the tools recovered
)

func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	}
	return "unknown"
}

var (
	// ErrCircuitOpen is returned for batch jobs skipped after too many
	// consecutive failures.
	ErrCircuitOpen = errors.New("circuit breaker is open")
)

// CircuitBreaker stops a batch from starting conversions once maxFailures
// of them have failed in a row. Nothing is retried: a rejected job fails
// with ErrCircuitOpen without running. After resetTimeout one trial job is
// let through; its success closes the circuit again.
type CircuitBreaker struct {
	maxFailures  int
	resetTimeout time.Duration

	mu           sync.Mutex
	state        CircuitState
	failures     int
	lastFailTime time.Time
	probing      bool
}

// NewCircuitBreaker creates a circuit breaker. A non-positive maxFailures
// disables it.
func NewCircuitBreaker(maxFailures int, resetTimeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		maxFailures:  maxFailures,
		resetTimeout: resetTimeout,
		state:        StateClosed,
	}
}

// Call executes fn unless the circuit is open.
func (cb *CircuitBreaker) Call(fn func() error) error {
	if err := cb.beforeRequest(); err != nil {
		return err
	}

	err := fn()

	cb.afterRequest(err)
	return err
}

func (cb *CircuitBreaker) beforeRequest() error {
	if cb.maxFailures <= 0 {
		return nil
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen && timeNow().Sub(cb.lastFailTime) > cb.resetTimeout {
		cb.state = StateHalfOpen
	}

	switch cb.state {
	case StateOpen:
		return ErrCircuitOpen
	case StateHalfOpen:
		if cb.probing {
			return ErrCircuitOpen
		}
		cb.probing = true
	}
	return nil
}

func (cb *CircuitBreaker) afterRequest(err error) {
	if cb.maxFailures <= 0 {
		return
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateHalfOpen {
		cb.probing = false
	}

	if err != nil {
		cb.failures++
		cb.lastFailTime = timeNow()
		if cb.failures >= cb.maxFailures || cb.state == StateHalfOpen {
			cb.state = StateOpen
		}
		return
	}

	cb.failures = 0
	cb.state = StateClosed
}

// State returns the current circuit breaker state
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// timeNow is a variable for testing
var timeNow = time.Now
