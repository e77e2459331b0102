package ai

import (
	"context"
	stderrors "errors"
	"fmt"

	"recroai/internal/config"
	"recroai/internal/errors"

	"github.com/sony/gobreaker/v2"
)

// DelegateCircuitBreaker guards one delegate operation. A nil breaker runs
// calls directly.
type DelegateCircuitBreaker struct {
	cb *gobreaker.CircuitBreaker[*Completion]
}

// NewDelegateCircuitBreaker creates a circuit breaker configured for a specific operation type
func NewDelegateCircuitBreaker(operationType string, cfg *config.OperationAIConfig, logger *errors.Logger) *DelegateCircuitBreaker {
	if !cfg.CircuitBreaker.Enabled {
		return nil
	}

	settings := gobreaker.Settings{
		Name:        fmt.Sprintf("delegate-%s", operationType),
		MaxRequests: cfg.CircuitBreaker.MaxRequests,
		Interval:    cfg.CircuitBreaker.Interval,
		Timeout:     cfg.CircuitBreaker.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests == 0 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= cfg.CircuitBreaker.MinRequests &&
				failureRatio >= cfg.CircuitBreaker.FailureThreshold
		},
		// Malformed output means the provider answered, and a cancelled run
		// says nothing about the provider.
		IsSuccessful: func(err error) bool {
			return err == nil ||
				stderrors.Is(err, context.Canceled) ||
				errors.HasCode(err, errors.ErrCodeDelegateMalformedResponse)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Info("Circuit breaker state changed",
				"name", name,
				"operation_type", operationType,
				"from", from.String(),
				"to", to.String(),
				"failure_threshold", cfg.CircuitBreaker.FailureThreshold)
		},
	}

	return &DelegateCircuitBreaker{
		cb: gobreaker.NewCircuitBreaker[*Completion](settings),
	}
}

// Execute executes the provided function with circuit breaker protection
func (cb *DelegateCircuitBreaker) Execute(fn func() (*Completion, error)) (*Completion, error) {
	if cb == nil || cb.cb == nil {
		return fn()
	}
	return cb.cb.Execute(fn)
}

// GetStats returns circuit breaker statistics
func (cb *DelegateCircuitBreaker) GetStats() map[string]any {
	if cb == nil || cb.cb == nil {
		return map[string]any{
			"enabled": false,
		}
	}

	return map[string]any{
		"name":    cb.cb.Name(),
		"state":   cb.cb.State().String(),
		"counts":  cb.cb.Counts(),
		"enabled": true,
	}
}

// IsHealthy returns true if the circuit breaker is in closed state
func (cb *DelegateCircuitBreaker) IsHealthy() bool {
	if cb == nil || cb.cb == nil {
		return true
	}
	return cb.cb.State() == gobreaker.StateClosed
}
