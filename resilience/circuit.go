package resilience

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State represents the circuit breaker state.
type State int

const (
	// StateClosed means calls pass through.
	StateClosed State = iota
	// StateOpen means calls fail fast with ErrCircuitOpen.
	StateOpen
	// StateHalfOpen means a limited number of probe calls pass through.
	StateHalfOpen
)

// String returns the string representation of the state.
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

// CircuitBreakerConfig configures the circuit breaker.
type CircuitBreakerConfig struct {
	// MaxFailures is the number of consecutive failures that opens the
	// circuit. Default: 5
	MaxFailures int

	// ResetTimeout is how long the circuit stays open before probing.
	// Default: 30 seconds
	ResetTimeout time.Duration

	// HalfOpenMaxRequests is the number of concurrent probes.
	// Default: 1
	HalfOpenMaxRequests int

	// OnStateChange is called after every transition, outside the lock.
	OnStateChange func(from, to State)

	// IsFailure decides whether an error counts against the upstream.
	// Default: every non-nil error except context cancellation.
	IsFailure func(err error) bool

	// Now is the clock. Default: time.Now
	Now func() time.Time
}

// CircuitBreaker implements the circuit breaker pattern.
type CircuitBreaker struct {
	config CircuitBreakerConfig

	mu          sync.Mutex
	state       State
	failures    int
	lastFailure time.Time
	probes      int
	opened      uint64
}

// NewCircuitBreaker creates a new circuit breaker.
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	if config.MaxFailures <= 0 {
		config.MaxFailures = 5
	}
	if config.ResetTimeout <= 0 {
		config.ResetTimeout = 30 * time.Second
	}
	if config.HalfOpenMaxRequests <= 0 {
		config.HalfOpenMaxRequests = 1
	}
	if config.IsFailure == nil {
		config.IsFailure = func(err error) bool {
			return err != nil && !errors.Is(err, context.Canceled)
		}
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &CircuitBreaker{config: config}
}

type transition struct{ from, to State }

// Execute runs op unless the circuit is open.
func (cb *CircuitBreaker) Execute(ctx context.Context, op func(context.Context) error) error {
	changes, err := cb.before()
	cb.emit(changes)
	if err != nil {
		return err
	}

	err = op(ctx)
	cb.emit(cb.after(err))
	return err
}

// State returns the current circuit state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	changes := cb.advanceLocked(nil)
	s := cb.state
	cb.mu.Unlock()
	cb.emit(changes)
	return s
}

// Reset closes the circuit and forgets failures.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	changes := cb.moveLocked(nil, StateClosed)
	cb.failures = 0
	cb.mu.Unlock()
	cb.emit(changes)
}

func (cb *CircuitBreaker) before() ([]transition, error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	changes := cb.advanceLocked(nil)
	switch cb.state {
	case StateOpen:
		return changes, ErrCircuitOpen
	case StateHalfOpen:
		if cb.probes >= cb.config.HalfOpenMaxRequests {
			return changes, ErrCircuitOpen
		}
		cb.probes++
	}
	return changes, nil
}

func (cb *CircuitBreaker) after(err error) []transition {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	failed := cb.config.IsFailure(err)
	var changes []transition

	switch cb.state {
	case StateClosed:
		if !failed {
			cb.failures = 0
			break
		}
		cb.failures++
		cb.lastFailure = cb.config.Now()
		if cb.failures >= cb.config.MaxFailures {
			changes = cb.moveLocked(changes, StateOpen)
		}
	case StateHalfOpen:
		if cb.probes > 0 {
			cb.probes--
		}
		if failed {
			cb.lastFailure = cb.config.Now()
			changes = cb.moveLocked(changes, StateOpen)
		} else {
			cb.failures = 0
			changes = cb.moveLocked(changes, StateClosed)
		}
	}
	return changes
}

// advanceLocked moves an open circuit to half-open once the reset timeout
// has passed.
func (cb *CircuitBreaker) advanceLocked(changes []transition) []transition {
	if cb.state == StateOpen && cb.config.Now().Sub(cb.lastFailure) >= cb.config.ResetTimeout {
		changes = cb.moveLocked(changes, StateHalfOpen)
	}
	return changes
}

func (cb *CircuitBreaker) moveLocked(changes []transition, to State) []transition {
	if cb.state == to {
		return changes
	}
	from := cb.state
	cb.state = to
	cb.probes = 0
	if to == StateOpen {
		cb.opened++
	}
	return append(changes, transition{from: from, to: to})
}

func (cb *CircuitBreaker) emit(changes []transition) {
	if cb.config.OnStateChange == nil {
		return
	}
	for _, c := range changes {
		cb.config.OnStateChange(c.from, c.to)
	}
}

// Metrics returns current circuit breaker metrics.
func (cb *CircuitBreaker) Metrics() CircuitBreakerMetrics {
	cb.mu.Lock()
	changes := cb.advanceLocked(nil)
	m := CircuitBreakerMetrics{
		State:       cb.state,
		Failures:    cb.failures,
		LastFailure: cb.lastFailure,
		TimesOpened: cb.opened,
	}
	cb.mu.Unlock()
	cb.emit(changes)
	return m
}

// CircuitBreakerMetrics contains circuit breaker statistics.
type CircuitBreakerMetrics struct {
	State       State
	Failures    int
	LastFailure time.Time
	TimesOpened uint64
}
