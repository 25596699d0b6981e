// Package resilience guards calls to external collaborators with a circuit
// breaker. Calls are never retried here.
package resilience

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"voicelink-backend/pkg/logger"
	"voicelink-backend/pkg/metrics"
)

// CircuitBreakerState represents the state of the circuit breaker
type CircuitBreakerState string

const (
	CircuitBreakerClosed   CircuitBreakerState = "closed"
	CircuitBreakerHalfOpen CircuitBreakerState = "half_open"
	CircuitBreakerOpen     CircuitBreakerState = "open"
)

func (s CircuitBreakerState) gaugeValue() float64 {
	switch s {
	case CircuitBreakerHalfOpen:
		return 1
	case CircuitBreakerOpen:
		return 2
	}
	return 0
}

// ErrCircuitOpen is returned without calling the operation while the breaker is open
var ErrCircuitOpen = errors.New("circuit breaker open")

// Config tunes a CircuitBreaker
type Config struct {
	Name             string
	FailureThreshold int           // consecutive failures that open the circuit
	OpenTimeout      time.Duration // time spent open before a trial call
}

// CircuitBreaker fails fast after repeated failures of an external dependency
type CircuitBreaker struct {
	mu                  sync.Mutex
	cfg                 Config
	state               CircuitBreakerState
	consecutiveFailures int
	openedAt            time.Time
	trialInFlight       bool
	metrics             *metrics.Metrics
	now                 func() time.Time
}

// NewCircuitBreaker creates a closed breaker
func NewCircuitBreaker(cfg Config, m *metrics.Metrics) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 3
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 10 * time.Second
	}
	cb := &CircuitBreaker{
		cfg:     cfg,
		state:   CircuitBreakerClosed,
		metrics: m,
		now:     time.Now,
	}
	m.SetCircuitBreakerState(cfg.Name, 0)
	return cb
}

// Execute runs fn once unless the circuit is open. Context cancellation by
// the caller does not count as a dependency failure.
func (cb *CircuitBreaker) Execute(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	if !cb.allow() {
		logger.Warn("Circuit breaker is OPEN - request blocked",
			zap.String("breaker", cb.cfg.Name),
			zap.String("operation", operation))
		return ErrCircuitOpen
	}

	err := fn(ctx)
	if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) && !errors.Is(err, context.DeadlineExceeded) {
		cb.release()
		return err
	}
	cb.record(operation, err)
	return err
}

// State returns the current state
func (cb *CircuitBreaker) State() CircuitBreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitBreakerOpen:
		if cb.now().Sub(cb.openedAt) < cb.cfg.OpenTimeout {
			return false
		}
		cb.setState(CircuitBreakerHalfOpen)
		cb.trialInFlight = true
		return true
	case CircuitBreakerHalfOpen:
		// One trial call at a time
		if cb.trialInFlight {
			return false
		}
		cb.trialInFlight = true
		return true
	}
	return true
}

func (cb *CircuitBreaker) release() {
	cb.mu.Lock()
	cb.trialInFlight = false
	cb.mu.Unlock()
}

func (cb *CircuitBreaker) record(operation string, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.trialInFlight = false
	if err == nil {
		cb.consecutiveFailures = 0
		if cb.state != CircuitBreakerClosed {
			cb.setState(CircuitBreakerClosed)
			logger.Info("Circuit breaker CLOSED - dependency recovered",
				zap.String("breaker", cb.cfg.Name),
				zap.String("operation", operation))
		}
		return
	}

	cb.consecutiveFailures++
	if cb.state == CircuitBreakerHalfOpen || cb.consecutiveFailures >= cb.cfg.FailureThreshold {
		if cb.state != CircuitBreakerOpen {
			logger.Error("Circuit breaker OPEN - too many consecutive failures",
				zap.String("breaker", cb.cfg.Name),
				zap.String("operation", operation),
				zap.Int("consecutive_failures", cb.consecutiveFailures),
				zap.String("error_type", ClassifyError(err)),
				zap.Error(err))
		}
		cb.openedAt = cb.now()
		cb.setState(CircuitBreakerOpen)
	}
}

// setState must be called with mu held
func (cb *CircuitBreaker) setState(state CircuitBreakerState) {
	cb.state = state
	cb.metrics.SetCircuitBreakerState(cb.cfg.Name, state.gaugeValue())
}

// ClassifyError buckets errors into coarse labels for logs and metrics
func ClassifyError(err error) string {
	if err == nil {
		return "none"
	}
	if errors.Is(err, ErrCircuitOpen) {
		return "circuit_breaker"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}

	errMsg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errMsg, "timeout") || strings.Contains(errMsg, "deadline exceeded"):
		return "timeout"
	case strings.Contains(errMsg, "connection refused") || strings.Contains(errMsg, "network unreachable"):
		return "network"
	case strings.Contains(errMsg, "no such host") || strings.Contains(errMsg, "dns"):
		return "dns"
	case strings.Contains(errMsg, "status"):
		return "bad_status"
	default:
		return "unknown"
	}
}
