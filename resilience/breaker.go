// Package resilience provides failure isolation for direct network
// operations: a circuit breaker that fails fast after a run of
// failures, and a bulkhead that caps concurrent work.
package resilience

import (
	"sync"
	"time"

	"github.com/Njanja2025/SecondBrainApp-sub001/common"
)

// BreakerState is the circuit breaker state.
type BreakerState int

const (
	StateClosed BreakerState = iota
	StateOpen
	StateHalfOpen
)

// String returns a human-readable representation of the state.
func (s BreakerState) String() string {
	switch s {
	case StateClosed:
		return "Closed"
	case StateOpen:
		return "Open"
	case StateHalfOpen:
		return "HalfOpen"
	default:
		return "Unknown"
	}
}

// BreakerMetrics is a point-in-time snapshot of the breaker counters.
type BreakerMetrics struct {
	State               BreakerState
	ConsecutiveFailures int
	Successes           int64
	Rejected            int64
}

// CircuitBreaker fails fast once a run of matching failures crosses
// the threshold, admitting a single probe call after the recovery
// timeout. Errors rejected by the match predicate pass through without
// moving the state machine. All state lives under one mutex so
// concurrent callers observe consistent transitions.
type CircuitBreaker struct {
	name             string
	failureThreshold int
	recoveryTimeout  time.Duration
	matches          func(error) bool

	mu        sync.Mutex
	state     BreakerState
	failures  int
	successes int64
	rejected  int64
	openedAt  time.Time
	probing   bool
}

// NewCircuitBreaker creates a closed breaker. matches decides which
// errors count as failures; nil counts every error.
func NewCircuitBreaker(name string, failureThreshold int, recoveryTimeout time.Duration, matches func(error) bool) *CircuitBreaker {
	if matches == nil {
		matches = func(error) bool { return true }
	}
	return &CircuitBreaker{
		name:             name,
		failureThreshold: failureThreshold,
		recoveryTimeout:  recoveryTimeout,
		matches:          matches,
	}
}

// Execute runs fn under the breaker. An open breaker rejects the call
// with CircuitOpenError before fn runs.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	isProbe, err := cb.admit()
	if err != nil {
		return err
	}

	err = fn()
	cb.record(err, isProbe)
	return err
}

func (cb *CircuitBreaker) admit() (bool, error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if time.Since(cb.openedAt) < cb.recoveryTimeout {
			cb.rejected++
			return false, &common.CircuitOpenError{Name: cb.name, Until: cb.openedAt.Add(cb.recoveryTimeout)}
		}
		common.LogInfo("Circuit %s half-open, admitting probe", cb.name)
		cb.state = StateHalfOpen
		cb.probing = true
		return true, nil

	case StateHalfOpen:
		// One probe at a time.
		if cb.probing {
			cb.rejected++
			return false, &common.CircuitOpenError{Name: cb.name, Until: cb.openedAt.Add(cb.recoveryTimeout)}
		}
		cb.probing = true
		return true, nil

	default:
		return false, nil
	}
}

func (cb *CircuitBreaker) record(err error, isProbe bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if isProbe {
		cb.probing = false
	}

	if err == nil {
		cb.successes++
		cb.failures = 0
		if isProbe && cb.state == StateHalfOpen {
			common.LogInfo("Circuit %s closed after successful probe", cb.name)
			cb.state = StateClosed
		}
		return
	}

	if !cb.matches(err) {
		return
	}

	if isProbe && cb.state == StateHalfOpen {
		common.LogWarn("Circuit %s reopened, probe failed: %v", cb.name, err)
		cb.state = StateOpen
		cb.openedAt = time.Now()
		return
	}

	cb.failures++
	if cb.state == StateClosed && cb.failures >= cb.failureThreshold {
		common.LogWarn("Circuit %s opened after %d consecutive failures", cb.name, cb.failures)
		cb.state = StateOpen
		cb.openedAt = time.Now()
	}
}

// State returns the current breaker state.
func (cb *CircuitBreaker) State() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Metrics returns a snapshot of the breaker counters.
func (cb *CircuitBreaker) Metrics() BreakerMetrics {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return BreakerMetrics{
		State:               cb.state,
		ConsecutiveFailures: cb.failures,
		Successes:           cb.successes,
		Rejected:            cb.rejected,
	}
}
