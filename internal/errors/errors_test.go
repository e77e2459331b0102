package errors

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"testing"
)

func TestAppErrorMessage(t *testing.T) {
	cause := fmt.Errorf("dial tcp: refused")
	tests := []struct {
		name string
		err  *AppError
		want string
	}{
		{"without cause", NewValidationError(ErrCodeValidation, "rubric has no categories", nil), "VALIDATION_ERROR: rubric has no categories"},
		{"with cause", NewDelegateError(ErrCodeDelegateUnavailable, "scorer unreachable", cause), "DELEGATE_UNAVAILABLE: scorer unreachable (caused by: dial tcp: refused)"},
		{"capacity", NewCapacityError("51 candidates requested, limit is 50"), "CAPACITY_EXCEEDED: 51 candidates requested, limit is 50"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHasCodeThroughWrapping(t *testing.T) {
	base := NewDelegateError(ErrCodeDelegateTimeout, "timed out", nil)
	wrapped := fmt.Errorf("scoring skills: %w", base)

	if !HasCode(wrapped, ErrCodeDelegateTimeout) {
		t.Fatalf("expected wrapped error to carry %s", ErrCodeDelegateTimeout)
	}
	if HasCode(wrapped, ErrCodeDelegateUnavailable) {
		t.Fatal("unexpected code match")
	}
	if HasCode(nil, ErrCodeDelegateTimeout) {
		t.Fatal("nil error should not match any code")
	}
	if CodeOf(fmt.Errorf("plain")) != "" {
		t.Fatal("plain errors have no code")
	}
}

func TestIsRunFatal(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{NewDelegateError(ErrCodeDelegateUnavailable, "down", nil), true},
		{NewDelegateError(ErrCodeDelegateTimeout, "slow", nil), false},
		{NewDelegateError(ErrCodeDelegateMalformedResponse, "garbage", nil), false},
		{NewDelegateError(ErrCodeDelegateCircuitOpen, "breaker open", nil), false},
		{fmt.Errorf("wrap: %w", NewDelegateError(ErrCodeDelegateUnavailable, "down", nil)), true},
	}
	for _, tt := range tests {
		if got := IsRunFatal(tt.err); got != tt.want {
			t.Errorf("IsRunFatal(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestLogErrorIncludesContext(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerFromSlog(slog.New(slog.NewJSONHandler(&buf, nil)))

	err := NewDelegateError(ErrCodeDelegateMalformedResponse, "no JSON object", nil).
		WithContext("candidate_id", "c-2")
	logger.LogError(err, "scoring failed", "job_id", "j-1")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log output is not JSON: %v", err)
	}
	if entry["error_code"] != ErrCodeDelegateMalformedResponse {
		t.Errorf("error_code = %v", entry["error_code"])
	}
	if entry["candidate_id"] != "c-2" || entry["job_id"] != "j-1" {
		t.Errorf("missing context attributes: %v", entry)
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	if _, err := New("verbose"); err == nil {
		t.Fatal("expected error for unknown level")
	}
	for _, lvl := range []string{"debug", "info", "warn", "error"} {
		if _, err := New(lvl); err != nil {
			t.Errorf("New(%q) returned %v", lvl, err)
		}
	}
}

func TestNilLoggerIsNoop(t *testing.T) {
	var logger *Logger
	logger.Info("ignored")
	logger.Debug("ignored")
	logger.Warn("ignored")
	logger.LogError(fmt.Errorf("boom"), "ignored")
	if logger.With("k", "v") != nil {
		t.Fatal("With on a nil logger should stay nil")
	}
}
