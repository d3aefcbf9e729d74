package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/documind/documind/pkg/logging"
)

// CircuitState represents the state of the circuit breaker
type CircuitState int

const (
	// StateClosed - circuit is closed, requests are allowed
	StateClosed CircuitState = iota
	// StateOpen - circuit is open, requests are rejected
	StateOpen
	// StateHalfOpen - circuit is half-open, trial requests are allowed
	StateHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// CircuitBreakerConfig holds configuration for the circuit breaker
type CircuitBreakerConfig struct {
	// Name of the circuit breaker for logging/metrics
	Name string
	// FailureThreshold is the number of consecutive failures in the closed
	// state that opens the circuit
	FailureThreshold int
	// SuccessThreshold is the number of consecutive successes in the
	// half-open state that closes the circuit
	SuccessThreshold int
	// Timeout is the period of the open state, after which the next call
	// transitions the breaker to half-open
	Timeout time.Duration
	// ResetTimeout is the closed-state failure-decay window: if this much
	// time passes after the last failure, the consecutive-failure count is
	// cleared before the next call is processed
	ResetTimeout time.Duration
	// OnStateChange is called whenever the state of the circuit breaker changes
	OnStateChange func(name string, from CircuitState, to CircuitState)
}

// DefaultCircuitBreakerConfig returns a circuit breaker configuration tuned
// for external dependency calls
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:             name,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Timeout:          30 * time.Second,
		ResetTimeout:     60 * time.Second,
	}
}

// CircuitBreakerMetrics is a point-in-time snapshot of a circuit breaker
type CircuitBreakerMetrics struct {
	State                CircuitState `json:"-"`
	StateName            string       `json:"state"`
	ConsecutiveFailures  int          `json:"consecutive_failures"`
	ConsecutiveSuccesses int          `json:"consecutive_successes"`
	Rejections           int64        `json:"rejections"`
	LastFailure          time.Time    `json:"last_failure,omitempty"`
	LastStateChange      time.Time    `json:"last_state_change"`
	TotalRequests        int64        `json:"total_requests"`
	TotalSuccesses       int64        `json:"total_successes"`
	TotalFailures        int64        `json:"total_failures"`
}

// CircuitBreaker is a state machine that stops invoking a failing dependency
// for a cooldown window, probing recovery through a half-open trial state.
// All state transitions are lazy: elapsed time is checked only when the
// breaker is queried or executed, never by a background timer.
type CircuitBreaker struct {
	config CircuitBreakerConfig

	mutex                sync.Mutex
	state                CircuitState
	consecutiveFailures  int
	consecutiveSuccesses int
	rejections           int64
	lastFailure          time.Time
	lastStateChange      time.Time
	totalRequests        int64
	totalSuccesses       int64
	totalFailures        int64

	// now is replaceable in tests to drive the lazy transitions
	// deterministically
	now func() time.Time

	logger *logging.Logger
}

// NewCircuitBreaker creates a new circuit breaker with the given configuration.
// Non-positive thresholds and durations fall back to the defaults.
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	defaults := DefaultCircuitBreakerConfig(config.Name)
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = defaults.FailureThreshold
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = defaults.SuccessThreshold
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if config.ResetTimeout <= 0 {
		config.ResetTimeout = defaults.ResetTimeout
	}

	cb := &CircuitBreaker{
		config: config,
		state:  StateClosed,
		now:    time.Now,
		logger: logging.GetLogger(),
	}
	cb.lastStateChange = cb.now()
	return cb
}

// Execute runs the given operation if the circuit breaker accepts it. When the
// circuit is open the operation is never invoked and the caller receives a
// CircuitBreakerOpenError immediately.
func (cb *CircuitBreaker) Execute(ctx context.Context, op Operation) (interface{}, error) {
	if err := cb.beforeRequest(); err != nil {
		return nil, err
	}

	result, err := runProtected(ctx, op, cb.config.Name)
	cb.afterRequest(err == nil)
	return result, err
}

func (cb *CircuitBreaker) beforeRequest() error {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	now := cb.now()
	cb.advance(now)
	cb.totalRequests++

	if cb.state == StateOpen {
		cb.rejections++
		return &CircuitBreakerOpenError{CircuitName: cb.config.Name}
	}
	return nil
}

func (cb *CircuitBreaker) afterRequest(success bool) {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	now := cb.now()
	if success {
		cb.onSuccess(now)
	} else {
		cb.onFailure(now)
	}
}

func (cb *CircuitBreaker) onSuccess(now time.Time) {
	cb.totalSuccesses++

	switch cb.state {
	case StateClosed:
		cb.consecutiveFailures = 0
		cb.lastFailure = time.Time{}
	case StateHalfOpen:
		cb.consecutiveSuccesses++
		if cb.consecutiveSuccesses >= cb.config.SuccessThreshold {
			cb.setState(StateClosed, now)
		}
	}
}

func (cb *CircuitBreaker) onFailure(now time.Time) {
	cb.totalFailures++
	cb.lastFailure = now

	switch cb.state {
	case StateClosed:
		cb.consecutiveFailures++
		if cb.consecutiveFailures >= cb.config.FailureThreshold {
			cb.setState(StateOpen, now)
		}
	case StateHalfOpen:
		// A single failure during the trial reopens immediately. The
		// failure count is deliberately left untouched here.
		cb.setState(StateOpen, now)
	}
}

// advance applies the lazy, timer-free transitions: open -> half-open once the
// open window has elapsed, and the closed-state failure decay. Must be called
// with the mutex held.
func (cb *CircuitBreaker) advance(now time.Time) {
	switch cb.state {
	case StateOpen:
		if now.Sub(cb.lastStateChange) > cb.config.Timeout {
			cb.setState(StateHalfOpen, now)
		}
	case StateClosed:
		if !cb.lastFailure.IsZero() && now.Sub(cb.lastFailure) > cb.config.ResetTimeout {
			cb.consecutiveFailures = 0
			cb.lastFailure = time.Time{}
		}
	}
}

// setState performs the transition bookkeeping. Counter resets are asymmetric:
// entering open clears only the success count, entering closed clears both.
// Must be called with the mutex held.
func (cb *CircuitBreaker) setState(state CircuitState, now time.Time) {
	if cb.state == state {
		return
	}

	prev := cb.state
	cb.state = state
	cb.lastStateChange = now

	switch state {
	case StateOpen:
		cb.consecutiveSuccesses = 0
	case StateClosed:
		cb.consecutiveFailures = 0
		cb.consecutiveSuccesses = 0
		cb.lastFailure = time.Time{}
	case StateHalfOpen:
		cb.consecutiveSuccesses = 0
	}

	if cb.config.OnStateChange != nil {
		cb.config.OnStateChange(cb.config.Name, prev, state)
	}

	cb.logger.Info("Circuit breaker state changed",
		"name", cb.config.Name,
		"from", prev.String(),
		"to", state.String(),
		"consecutive_failures", cb.consecutiveFailures,
	)
}

// GetState returns the current state. An open breaker whose open window has
// elapsed reports half-open even before a call performs the actual transition.
func (cb *CircuitBreaker) GetState() CircuitState {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	if cb.state == StateOpen && cb.now().Sub(cb.lastStateChange) > cb.config.Timeout {
		return StateHalfOpen
	}
	return cb.state
}

// IsOpen reports whether the circuit is currently open
func (cb *CircuitBreaker) IsOpen() bool {
	return cb.GetState() == StateOpen
}

// IsClosed reports whether the circuit is currently closed
func (cb *CircuitBreaker) IsClosed() bool {
	return cb.GetState() == StateClosed
}

// IsHalfOpen reports whether the circuit is currently half-open
func (cb *CircuitBreaker) IsHalfOpen() bool {
	return cb.GetState() == StateHalfOpen
}

// GetMetrics returns a snapshot of the breaker's counters
func (cb *CircuitBreaker) GetMetrics() CircuitBreakerMetrics {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	state := cb.state
	if state == StateOpen && cb.now().Sub(cb.lastStateChange) > cb.config.Timeout {
		state = StateHalfOpen
	}

	return CircuitBreakerMetrics{
		State:                state,
		StateName:            state.String(),
		ConsecutiveFailures:  cb.consecutiveFailures,
		ConsecutiveSuccesses: cb.consecutiveSuccesses,
		Rejections:           cb.rejections,
		LastFailure:          cb.lastFailure,
		LastStateChange:      cb.lastStateChange,
		TotalRequests:        cb.totalRequests,
		TotalSuccesses:       cb.totalSuccesses,
		TotalFailures:        cb.totalFailures,
	}
}

// Reset forces the breaker closed and zeroes the transient counters. The
// cumulative totals are preserved.
func (cb *CircuitBreaker) Reset() {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	prev := cb.state
	cb.state = StateClosed
	cb.consecutiveFailures = 0
	cb.consecutiveSuccesses = 0
	cb.rejections = 0
	cb.lastFailure = time.Time{}
	cb.lastStateChange = cb.now()

	if prev != StateClosed && cb.config.OnStateChange != nil {
		cb.config.OnStateChange(cb.config.Name, prev, StateClosed)
	}

	cb.logger.Info("Circuit breaker reset", "name", cb.config.Name, "from", prev.String())
}

// Name returns the name of the circuit breaker
func (cb *CircuitBreaker) Name() string {
	return cb.config.Name
}

// Config returns a copy of the breaker's configuration
func (cb *CircuitBreaker) Config() CircuitBreakerConfig {
	return cb.config
}
