package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrCircuitOpen is returned when the circuit breaker is open
	ErrCircuitOpen = errors.New("circuit breaker is open")
	// ErrInvalidState indicates an invalid circuit breaker state
	ErrInvalidState = errors.New("invalid circuit breaker state")
)

// State represents the state of a circuit breaker
type State int

const (
	// StateClosed means the circuit is closed and requests are allowed
	StateClosed State = iota
	// StateOpen means the circuit is open and requests are blocked
	StateOpen
	// StateHalfOpen means the circuit is half-open and testing if the service is back
	StateHalfOpen
)

// String returns a string representation of the state
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

// Config holds circuit breaker configuration
type Config struct {
	// MaxFailures is the maximum number of failures before opening the circuit
	MaxFailures int
	// Timeout is the duration to wait before transitioning from open to half-open
	Timeout time.Duration
	// SuccessThreshold is the number of successful requests needed to close the circuit
	SuccessThreshold int
}

// DefaultConfig returns a default circuit breaker configuration
func DefaultConfig() Config {
	return Config{
		MaxFailures:      5,
		Timeout:          30 * time.Second,
		SuccessThreshold: 3,
	}
}

// CircuitBreaker guards an upstream dependency. Used around the weather
// API so a flapping upstream degrades quotes to the neutral snapshot
// instead of stalling them.
type CircuitBreaker struct {
	mu              sync.Mutex
	state           State
	failureCount    int
	successCount    int
	lastFailureTime time.Time
	config          Config
	logger          *zap.Logger
	name            string
}

// New creates a new circuit breaker
func New(name string, config Config, logger *zap.Logger) *CircuitBreaker {
	return &CircuitBreaker{
		state:  StateClosed,
		config: config,
		logger: logger,
		name:   name,
	}
}

// Execute executes a function with circuit breaker protection
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func() error) error {
	if err := cb.beforeRequest(); err != nil {
		return err
	}

	err := fn()
	cb.afterRequest(err)
	return err
}

func (cb *CircuitBreaker) beforeRequest() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return nil

	case StateOpen:
		if time.Since(cb.lastFailureTime) >= cb.config.Timeout {
			cb.state = StateHalfOpen
			cb.successCount = 0
			cb.logger.Info("Circuit breaker transitioning to half-open",
				zap.String("name", cb.name))
			return nil
		}
		return ErrCircuitOpen

	case StateHalfOpen:
		return nil

	default:
		return ErrInvalidState
	}
}

func (cb *CircuitBreaker) afterRequest(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		if err != nil {
			cb.failureCount++
			cb.lastFailureTime = time.Now()
			if cb.failureCount >= cb.config.MaxFailures {
				cb.state = StateOpen
				cb.logger.Error("Circuit breaker opened",
					zap.String("name", cb.name),
					zap.Int("failure_count", cb.failureCount))
			}
		} else {
			cb.failureCount = 0
		}

	case StateOpen:
		// Nothing to do; beforeRequest gates transitions out of open.

	case StateHalfOpen:
		if err != nil {
			cb.state = StateOpen
			cb.failureCount = cb.config.MaxFailures
			cb.lastFailureTime = time.Now()
			cb.logger.Error("Circuit breaker re-opened after half-open failure",
				zap.String("name", cb.name),
				zap.Error(err))
		} else {
			cb.successCount++
			if cb.successCount >= cb.config.SuccessThreshold {
				cb.state = StateClosed
				cb.failureCount = 0
				cb.successCount = 0
				cb.logger.Info("Circuit breaker closed after successful recovery",
					zap.String("name", cb.name))
			}
		}
	}
}

// GetState returns the current state of the circuit breaker
func (cb *CircuitBreaker) GetState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Reset resets the circuit breaker to closed state
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.state = StateClosed
	cb.failureCount = 0
	cb.successCount = 0
	cb.lastFailureTime = time.Time{}
}
