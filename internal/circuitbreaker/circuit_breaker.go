// Package circuitbreaker implements the circuit breaker pattern around the
// fullnode client so a flapping node degrades sync runs to no-ops instead of
// being hammered with doomed requests.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/stream-indexer/internal/logging"
)

// State represents the circuit breaker state
type State string

const (
	// StateClosed means the circuit is closed and requests are allowed
	StateClosed State = "closed"
	// StateOpen means the circuit is open and requests are blocked
	StateOpen State = "open"
	// StateHalfOpen means the circuit is testing if the service has recovered
	StateHalfOpen State = "half_open"
)

// ErrCircuitOpen is returned when the circuit breaker is open
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Config configures a circuit breaker
type Config struct {
	Name             string
	MaxFailures      int           // Consecutive failures before opening
	Timeout          time.Duration // Time to wait before attempting half-open
	HalfOpenMaxCalls int           // Successful half-open calls needed to close
}

// DefaultConfig returns a default circuit breaker configuration
func DefaultConfig(name string) *Config {
	return &Config{
		Name:             name,
		MaxFailures:      5,
		Timeout:          30 * time.Second,
		HalfOpenMaxCalls: 3,
	}
}

// CircuitBreaker implements the circuit breaker pattern
type CircuitBreaker struct {
	name             string
	maxFailures      int
	timeout          time.Duration
	halfOpenMaxCalls int

	mu               sync.Mutex
	state            State
	consecutiveFails int
	halfOpenSuccess  int
	lastStateChange  time.Time
}

// NewCircuitBreaker creates a new circuit breaker
func NewCircuitBreaker(config *Config) *CircuitBreaker {
	return &CircuitBreaker{
		name:             config.Name,
		maxFailures:      config.MaxFailures,
		timeout:          config.Timeout,
		halfOpenMaxCalls: config.HalfOpenMaxCalls,
		state:            StateClosed,
		lastStateChange:  time.Now(),
	}
}

// Execute runs fn with circuit breaker protection
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func() error) error {
	if err := cb.beforeRequest(); err != nil {
		return err
	}
	err := fn()
	cb.afterRequest(err)
	return err
}

// State returns the current state
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) beforeRequest() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen {
		if time.Since(cb.lastStateChange) <= cb.timeout {
			return ErrCircuitOpen
		}
		cb.setState(StateHalfOpen)
		logging.WithFields(map[string]interface{}{
			"circuitBreaker": cb.name,
			"state":          StateHalfOpen,
		}).Info("Circuit breaker transitioning to half-open")
	}
	return nil
}

func (cb *CircuitBreaker) afterRequest(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil {
		cb.onFailure()
	} else {
		cb.onSuccess()
	}
}

func (cb *CircuitBreaker) onSuccess() {
	cb.consecutiveFails = 0

	if cb.state == StateHalfOpen {
		cb.halfOpenSuccess++
		if cb.halfOpenSuccess >= cb.halfOpenMaxCalls {
			cb.setState(StateClosed)
			logging.WithFields(map[string]interface{}{
				"circuitBreaker": cb.name,
				"state":          StateClosed,
			}).Info("Circuit breaker closed after successful recovery")
		}
	}
}

func (cb *CircuitBreaker) onFailure() {
	cb.consecutiveFails++

	switch cb.state {
	case StateClosed:
		if cb.consecutiveFails >= cb.maxFailures {
			cb.setState(StateOpen)
			logging.WithFields(map[string]interface{}{
				"circuitBreaker":   cb.name,
				"state":            StateOpen,
				"consecutiveFails": cb.consecutiveFails,
			}).Warn("Circuit breaker opened due to failures")
		}
	case StateHalfOpen:
		// Any failure in half-open state reopens the circuit
		cb.setState(StateOpen)
		logging.WithFields(map[string]interface{}{
			"circuitBreaker": cb.name,
			"state":          StateOpen,
		}).Warn("Circuit breaker reopened after failure in half-open state")
	}
}

func (cb *CircuitBreaker) setState(state State) {
	cb.state = state
	cb.lastStateChange = time.Now()
	cb.halfOpenSuccess = 0
	if state == StateClosed {
		cb.consecutiveFails = 0
	}
}
