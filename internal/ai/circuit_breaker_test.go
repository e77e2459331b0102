package ai

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"recroai/internal/config"
	"recroai/internal/errors"
	"recroai/internal/types"

	"github.com/sony/gobreaker/v2"
)

func breakerConfig(minRequests uint32, threshold float64) *config.OperationAIConfig {
	return &config.OperationAIConfig{
		Provider: "gemini",
		Model:    "gemini-2.0-flash",
		CircuitBreaker: config.CircuitBreakerConfig{
			Enabled:          true,
			MaxRequests:      1,
			Interval:         time.Minute,
			Timeout:          time.Minute,
			MinRequests:      minRequests,
			FailureThreshold: threshold,
		},
	}
}

func TestIndependentCircuitBreakers(t *testing.T) {
	scoreCB := NewDelegateCircuitBreaker("score", breakerConfig(3, 0.6), errors.Nop())
	filterCB := NewDelegateCircuitBreaker("filter", breakerConfig(5, 0.7), errors.Nop())

	if scoreCB == filterCB {
		t.Fatal("score and filter breakers should be different instances")
	}

	for _, tc := range []struct {
		cb   *DelegateCircuitBreaker
		name string
	}{
		{scoreCB, "delegate-score"},
		{filterCB, "delegate-filter"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			stats := tc.cb.GetStats()
			if stats["name"] != tc.name {
				t.Errorf("Expected circuit breaker name '%s', got '%v'", tc.name, stats["name"])
			}
			if stats["state"] != "closed" {
				t.Errorf("Expected initial state 'closed', got '%v'", stats["state"])
			}
			if !tc.cb.IsHealthy() {
				t.Error("breaker should be healthy initially")
			}
		})
	}
}

func TestCircuitBreakerTrips(t *testing.T) {
	cb := NewDelegateCircuitBreaker("score", breakerConfig(2, 0.5), errors.Nop())
	failing := func() (*Completion, error) { return nil, stderrors.New("503 from upstream") }

	for range 2 {
		if _, err := cb.Execute(failing); err == nil {
			t.Fatal("expected the call error to pass through")
		}
	}

	if cb.IsHealthy() {
		t.Fatal("breaker should be open after repeated failures")
	}

	called := false
	_, err := cb.Execute(func() (*Completion, error) {
		called = true
		return &Completion{}, nil
	})
	if !stderrors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected ErrOpenState, got %v", err)
	}
	if called {
		t.Error("open breaker must not call through")
	}
}

func TestCircuitBreakerIgnoresMalformedResponses(t *testing.T) {
	cb := NewDelegateCircuitBreaker("score", breakerConfig(2, 0.5), errors.Nop())
	malformed := func() (*Completion, error) {
		return nil, errors.NewDelegateError(errors.ErrCodeDelegateMalformedResponse, "no JSON object", nil)
	}

	for range 4 {
		_, _ = cb.Execute(malformed)
	}

	if !cb.IsHealthy() {
		t.Error("malformed output should not open the breaker")
	}
}

func TestCircuitBreakerDisabled(t *testing.T) {
	cfg := breakerConfig(1, 0.1)
	cfg.CircuitBreaker.Enabled = false

	cb := NewDelegateCircuitBreaker("disabled", cfg, nil)
	if cb != nil {
		t.Fatal("Circuit breaker should be nil when disabled")
	}

	out, err := cb.Execute(func() (*Completion, error) { return &Completion{Text: "ok"}, nil })
	if err != nil || out.Text != "ok" {
		t.Fatalf("nil breaker should call through, got %v, %v", out, err)
	}
	if enabled := cb.GetStats()["enabled"]; enabled != false {
		t.Errorf("expected enabled=false, got %v", enabled)
	}
	if !cb.IsHealthy() {
		t.Error("nil breaker is always healthy")
	}
}

// hangingProvider blocks every call until its context is done
type hangingProvider struct{ fakeProvider }

func (h *hangingProvider) Generate(ctx context.Context, _ Request) (*Completion, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestOpenBreakerAfterTimeoutsFailsOneCall(t *testing.T) {
	cfg := testOperationConfig()
	cfg.MaxRetries = intPtr(0)
	cfg.CircuitBreaker = breakerConfig(5, 0.6).CircuitBreaker
	svc := newServiceWithProviders(cfg, cfg, &hangingProvider{}, &fakeProvider{}, errors.Nop())
	category := types.RubricCategory{Name: "skills", Weight: 100}

	for i := range 5 {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		_, err := svc.ScoreCategory(ctx, category, testProfile())
		cancel()
		if !errors.HasCode(err, errors.ErrCodeDelegateTimeout) {
			t.Fatalf("call %d: error = %v, want %s", i+1, err, errors.ErrCodeDelegateTimeout)
		}
	}

	_, err := svc.ScoreCategory(context.Background(), category, testProfile())
	if !errors.HasCode(err, errors.ErrCodeDelegateCircuitOpen) {
		t.Fatalf("error = %v, want %s", err, errors.ErrCodeDelegateCircuitOpen)
	}
	if errors.IsRunFatal(err) {
		t.Error("an open breaker must fail the candidate, not the run")
	}
}
