package ulet

import (
	"sync/atomic"
	"time"
)

// BreakerState is the circuit breaker state.
type BreakerState int64

const (
	StateClosed BreakerState = iota
	StateOpen
	StateHalfOpen
)

// BreakerConfig configures the optional circuit breaker.
type BreakerConfig struct {
	// FailureThreshold opens the circuit after this many consecutive
	// failures. Default 5.
	FailureThreshold int
	// RecoveryTimeout is how long the circuit stays open before probing.
	// Default 60s.
	RecoveryTimeout time.Duration
	// SuccessThreshold closes a half-open circuit after this many
	// consecutive successes. Default 2.
	SuccessThreshold int
}

// CircuitBreaker fails calls fast while an upstream is known-bad. All state
// transitions use atomics; it is safe for concurrent use.
type CircuitBreaker struct {
	config      BreakerConfig
	state       int64
	failures    int64
	successes   int64
	lastFailure int64
}

// NewCircuitBreaker builds a breaker, filling zero config fields with
// defaults.
func NewCircuitBreaker(config BreakerConfig) *CircuitBreaker {
	if config.FailureThreshold == 0 {
		config.FailureThreshold = 5
	}
	if config.RecoveryTimeout == 0 {
		config.RecoveryTimeout = 60 * time.Second
	}
	if config.SuccessThreshold == 0 {
		config.SuccessThreshold = 2
	}
	return &CircuitBreaker{
		config: config,
		state:  int64(StateClosed),
	}
}

// Allow reports whether a call may proceed, transitioning open → half-open
// once the recovery timeout has elapsed.
func (cb *CircuitBreaker) Allow() bool {
	now := time.Now().UnixNano()

	switch BreakerState(atomic.LoadInt64(&cb.state)) {
	case StateClosed:
		return true
	case StateOpen:
		last := atomic.LoadInt64(&cb.lastFailure)
		if now-last >= int64(cb.config.RecoveryTimeout) {
			if atomic.CompareAndSwapInt64(&cb.state, int64(StateOpen), int64(StateHalfOpen)) {
				atomic.StoreInt64(&cb.successes, 0)
				return true
			}
		}
		return false
	case StateHalfOpen:
		return true
	default:
		return false
	}
}

// RecordFailure notes a failed attempt; a half-open circuit reopens
// immediately, a closed one opens at the failure threshold.
func (cb *CircuitBreaker) RecordFailure() {
	atomic.StoreInt64(&cb.lastFailure, time.Now().UnixNano())

	switch BreakerState(atomic.LoadInt64(&cb.state)) {
	case StateHalfOpen:
		atomic.StoreInt64(&cb.state, int64(StateOpen))
		atomic.StoreInt64(&cb.failures, 0)
	case StateClosed:
		if atomic.AddInt64(&cb.failures, 1) >= int64(cb.config.FailureThreshold) {
			atomic.StoreInt64(&cb.state, int64(StateOpen))
			atomic.StoreInt64(&cb.failures, 0)
		}
	}
}

// RecordSuccess notes a successful attempt, closing a half-open circuit
// once enough successes accumulate.
func (cb *CircuitBreaker) RecordSuccess() {
	switch BreakerState(atomic.LoadInt64(&cb.state)) {
	case StateHalfOpen:
		if atomic.AddInt64(&cb.successes, 1) >= int64(cb.config.SuccessThreshold) {
			atomic.StoreInt64(&cb.state, int64(StateClosed))
			atomic.StoreInt64(&cb.failures, 0)
		}
	case StateClosed:
		atomic.StoreInt64(&cb.failures, 0)
	}
}

// State returns the current state.
func (cb *CircuitBreaker) State() BreakerState {
	return BreakerState(atomic.LoadInt64(&cb.state))
}
