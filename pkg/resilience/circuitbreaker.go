// Package resilience guards calls to the object store and other remote
// dependencies: a circuit breaker that sheds load while a dependency is
// failing, exponential-backoff retries, and a bounded wait helper.
package resilience

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned without calling the dependency while the
// breaker is shedding load.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State is the breaker phase. The numeric values are exported as the
// circuit_breaker_state gauge.
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

// CircuitBreakerConfig controls when the breaker trips and how it recovers.
//
// After ResetTimeout in the open state the breaker admits up to
// HalfOpenMaxRequests trial calls. It closes once all of them succeed and
// reopens on the first failure.
type CircuitBreakerConfig struct {
	FailureThreshold    int
	ResetTimeout        time.Duration
	HalfOpenMaxRequests int

	// OnStateChange, when set, is called after every transition, outside
	// the breaker's lock.
	OnStateChange func(name string, from, to State)

	// Now overrides time.Now.
	Now func() time.Time
}

func (c *CircuitBreakerConfig) applyDefaults() {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 5
	}
	if c.ResetTimeout <= 0 {
		c.ResetTimeout = 30 * time.Second
	}
	if c.HalfOpenMaxRequests <= 0 {
		c.HalfOpenMaxRequests = 1
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

// CircuitBreaker counts consecutive failures of one dependency.
type CircuitBreaker struct {
	name   string
	cfg    CircuitBreakerConfig
	logger *slog.Logger

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	trials   int
	passed   int
}

// NewCircuitBreaker returns a closed breaker. Zero config fields take
// defaults.
func NewCircuitBreaker(name string, cfg CircuitBreakerConfig) *CircuitBreaker {
	cfg.applyDefaults()
	return &CircuitBreaker{
		name:   name,
		cfg:    cfg,
		logger: slog.Default().With("component", "circuit-breaker", "name", name),
	}
}

// Execute calls fn unless the breaker is shedding load, and records the
// outcome.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if err := cb.admit(); err != nil {
		return err
	}
	err := fn()
	cb.record(err)
	return err
}

// State returns the current phase. An open breaker whose cool-down has
// elapsed still reports open until the next call is admitted.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	from := cb.state
	switch cb.state {
	case StateOpen:
		wait := cb.cfg.ResetTimeout - cb.cfg.Now().Sub(cb.openedAt)
		if wait > 0 {
			cb.mu.Unlock()
			return fmt.Errorf("%w: %s (retry in %v)", ErrCircuitOpen, cb.name, wait.Round(time.Millisecond))
		}
		cb.enter(StateHalfOpen)
		cb.trials = 1
	case StateHalfOpen:
		if cb.trials >= cb.cfg.HalfOpenMaxRequests {
			cb.mu.Unlock()
			return fmt.Errorf("%w: %s (%d trial calls in flight)", ErrCircuitOpen, cb.name, cb.trials)
		}
		cb.trials++
	}
	to := cb.state
	cb.mu.Unlock()
	cb.notify(from, to)
	return nil
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	from := cb.state
	switch {
	case err == nil && cb.state == StateHalfOpen:
		cb.passed++
		if cb.passed >= cb.cfg.HalfOpenMaxRequests {
			cb.enter(StateClosed)
		}
	case err == nil:
		cb.failures = 0
	case cb.state == StateHalfOpen:
		cb.enter(StateOpen)
	default:
		cb.failures++
		if cb.state == StateClosed && cb.failures >= cb.cfg.FailureThreshold {
			cb.enter(StateOpen)
		}
	}
	to := cb.state
	cb.mu.Unlock()
	cb.notify(from, to)
}

// enter switches state and resets the counters of the new phase. Callers
// hold mu.
func (cb *CircuitBreaker) enter(s State) {
	switch s {
	case StateOpen:
		cb.openedAt = cb.cfg.Now()
		cb.logger.Warn("circuit opened", "from", cb.state.String(), "consecutive_failures", cb.failures, "cool_down", cb.cfg.ResetTimeout)
	case StateHalfOpen:
		cb.logger.Info("circuit half-open", "trial_calls", cb.cfg.HalfOpenMaxRequests)
	case StateClosed:
		cb.logger.Info("circuit closed", "trial_calls_passed", cb.passed)
	}
	cb.state = s
	cb.failures = 0
	cb.trials = 0
	cb.passed = 0
}

func (cb *CircuitBreaker) notify(from, to State) {
	if from != to && cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(cb.name, from, to)
	}
}
