package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"time"

	"recroai/internal/errors"
	"recroai/internal/types"
)

const defaultHealthCheckTimeout = 5 * time.Second

// getHealthCheckTimeout returns the configured health check timeout
func (s *Server) getHealthCheckTimeout() time.Duration {
	if s.AppConfig != nil && s.AppConfig.Observability.HealthCheck.Timeout > 0 {
		return s.AppConfig.Observability.HealthCheck.Timeout
	}
	return defaultHealthCheckTimeout
}

// healthHandler reports delegate availability and breaker state. A missing
// or unreachable delegate makes the service degraded (503).
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]any{
		"status":  "healthy",
		"service": "recroai",
		"version": s.Version,
	}

	healthy := true
	if s.deps.Delegate != nil {
		ctx, cancel := context.WithTimeout(r.Context(), s.getHealthCheckTimeout())
		defer cancel()

		delegate := s.deps.Delegate.Health(ctx)
		response["delegate"] = delegate
		healthy = s.deps.Delegate.Configured() && allAvailable(delegate)
	}
	if s.deps.Jobs != nil {
		response["jobs"] = len(s.deps.Jobs.List())
	}
	if s.VaultWatcher != nil {
		response["vault_watcher"] = s.VaultWatcher.Status()
	}

	status := http.StatusOK
	if !healthy {
		response["status"] = "degraded"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, response)
}

func allAvailable(health map[string]any) bool {
	for _, entry := range health {
		info, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		if available, ok := info["available"].(bool); ok && !available {
			return false
		}
	}
	return true
}

// statsHandler provides server statistics including rate limiting info
func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]any{
		"service": "recroai",
		"version": s.Version,
		"server": map[string]any{
			"max_request_size_bytes": s.MaxRequestSize,
			"api_keys_configured":    s.apiKeys.len(),
		},
	}

	if s.deps.Scoring != nil {
		response["active_runs"] = len(s.deps.Scoring.ActiveRuns())
	}

	if s.RateLimiter != nil {
		response["rate_limiting"] = s.RateLimiter.GetStats()
	} else {
		response["rate_limiting"] = map[string]any{"enabled": false}
	}

	if s.RateLimit != nil {
		response["rate_limit_config"] = map[string]any{
			"enabled":          s.RateLimit.Enabled,
			"requests_per_min": s.RateLimit.RequestsPerMin,
			"burst_capacity":   s.RateLimit.BurstCapacity,
			"by_ip":            s.RateLimit.ByIP,
			"by_api_key":       s.RateLimit.ByAPIKey,
		}
	}

	writeJSON(w, http.StatusOK, response)
}

// parseJSONRequest parses the JSON request body into v. With optional set,
// an empty body leaves v untouched.
func parseJSONRequest(r *http.Request, v any, optional bool) error {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if stderrors.As(err, &maxBytesErr) {
			return errors.NewValidationError(errors.ErrCodeInvalidRequest,
				fmt.Sprintf("request body too large (limit is %d bytes)", maxBytesErr.Limit), err)
		}
		return errors.NewValidationError(errors.ErrCodeInvalidRequest, "failed to read request body", err)
	}
	if len(body) == 0 && optional {
		return nil
	}

	if mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); mediaType != "application/json" {
		return errors.NewValidationError(errors.ErrCodeInvalidRequest, "content-type must be application/json", nil)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return errors.NewValidationError(errors.ErrCodeInvalidFormat, "failed to parse JSON: "+err.Error(), err)
	}
	return nil
}

// statusFor maps an error code to its HTTP status
func statusFor(code string) int {
	switch code {
	case errors.ErrCodeInvalidRequest, errors.ErrCodeValidation, errors.ErrCodeInvalidFormat:
		return http.StatusBadRequest
	case errors.ErrCodeNotFound, errors.ErrCodeFileNotFound:
		return http.StatusNotFound
	case errors.ErrCodeRunCancelled:
		return http.StatusConflict
	case errors.ErrCodeCapacityExceeded:
		return http.StatusRequestEntityTooLarge
	case errors.ErrCodeDelegateMalformedResponse, errors.ErrCodeDelegateFailed:
		return http.StatusBadGateway
	case errors.ErrCodeDelegateUnavailable, errors.ErrCodeMissingAPIKey, errors.ErrCodeDelegateCircuitOpen:
		return http.StatusServiceUnavailable
	case errors.ErrCodeDelegateTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// writeAppError writes err with the status of its code. Server-side failures
// are logged; client errors are not.
func (s *Server) writeAppError(w http.ResponseWriter, r *http.Request, err error, run *types.RunReport) {
	code := errors.CodeOf(err)
	status := statusFor(code)
	if status >= http.StatusInternalServerError {
		s.Logger.LogError(err, "Request failed", "endpoint", r.URL.Path, "method", r.Method)
	}

	message := err.Error()
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		message = appErr.Message
	}
	title := http.StatusText(status)
	if code == "" {
		code = errors.ErrCodeInternal
	}
	writeJSON(w, status, ErrorResponse{Error: title, Code: code, Message: message, Run: run})
}

// writeErrorResponse writes a standardized error response
func writeErrorResponse(w http.ResponseWriter, error, message string, statusCode int) {
	writeJSON(w, statusCode, ErrorResponse{Error: error, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}
