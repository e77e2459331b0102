package ai

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math"
	"math/big"
	"net"
	"net/http"
	"time"

	appErrors "recroai/internal/errors"

	"github.com/sony/gobreaker/v2"
	"google.golang.org/api/googleapi"
	"google.golang.org/genai"
)

// maxBackoff caps the delay between attempts
const maxBackoff = 30 * time.Second

// StatusError is a non-2xx response from an HTTP provider
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("provider returned HTTP %d: %s", e.StatusCode, e.Body)
}

// backoffDelay is replaced in tests
var backoffDelay = func(attempt int) time.Duration {
	baseDelay := time.Duration(math.Pow(2, float64(attempt-1))) * time.Second
	jitterMax := big.NewInt(int64(float64(baseDelay) * 0.1))
	jitterBig, err := rand.Int(rand.Reader, jitterMax)
	if err != nil {
		return min(baseDelay, maxBackoff)
	}
	return min(baseDelay+time.Duration(jitterBig.Int64()), maxBackoff)
}

// executeWithRetry runs fn with exponential backoff until it succeeds, fails
// with a non-retryable error, or ctx is done
func executeWithRetry[T any](ctx context.Context, maxRetries int, operation string, logger *appErrors.Logger, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			logger.Warn("Retrying delegate call",
				"operation", operation,
				"attempt", attempt,
				"max_retries", maxRetries,
				"error", lastErr.Error())

			select {
			case <-time.After(backoffDelay(attempt)):
			case <-ctx.Done():
				return zero, ctx.Err()
			}
		}

		result, err := fn()
		if err == nil {
			if attempt > 0 {
				logger.Info("Delegate call succeeded after retry",
					"operation", operation,
					"total_attempts", attempt+1)
			}
			return result, nil
		}

		lastErr = err
		if ctx.Err() != nil || !isRetryableError(err) {
			break
		}
	}

	return zero, lastErr
}

// isRetryableError determines if an error should trigger a retry
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if isUnreachable(err) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	if code, ok := apiStatusCode(err); ok {
		switch code {
		case http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		}
	}

	return false
}

// apiStatusCode extracts the HTTP status from provider error types
func apiStatusCode(err error) (int, bool) {
	var googleErr *googleapi.Error
	if errors.As(err, &googleErr) {
		return googleErr.Code, true
	}
	var genaiErr genai.APIError
	if errors.As(err, &genaiErr) {
		return genaiErr.Code, true
	}
	var genaiErrPtr *genai.APIError
	if errors.As(err, &genaiErrPtr) {
		return genaiErrPtr.Code, true
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode, true
	}
	return 0, false
}

// isUnreachable reports connection failures that will not heal within a run
func isUnreachable(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) && !dnsErr.IsTimeout {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial" && !opErr.Timeout()
}

// classifyError maps a failed call onto the delegate error taxonomy.
// DELEGATE_UNAVAILABLE aborts the run; every other code fails one candidate.
// An open breaker is per candidate: it usually trips on timeouts and 5xx
// responses, which are recovered per call.
func classifyError(err error, operation, provider string) error {
	if err == nil {
		return nil
	}

	var appErr *appErrors.AppError
	if errors.As(err, &appErr) {
		return err
	}

	wrap := func(code, message string) error {
		return appErrors.NewDelegateError(code, message, err).
			WithContext("operation", operation).
			WithContext("provider", provider)
	}

	switch {
	case errors.Is(err, context.Canceled):
		return appErrors.NewDelegateError(appErrors.ErrCodeRunCancelled, "delegate call abandoned", err)
	case errors.Is(err, context.DeadlineExceeded):
		return wrap(appErrors.ErrCodeDelegateTimeout, "delegate call timed out")
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return wrap(appErrors.ErrCodeDelegateCircuitOpen, "delegate circuit breaker is open")
	case isUnreachable(err):
		return wrap(appErrors.ErrCodeDelegateUnavailable, "delegate is unreachable")
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return wrap(appErrors.ErrCodeDelegateTimeout, "delegate call timed out")
	}

	if code, ok := apiStatusCode(err); ok && (code == http.StatusUnauthorized || code == http.StatusForbidden) {
		return wrap(appErrors.ErrCodeDelegateUnavailable, "delegate rejected the credentials")
	}

	return wrap(appErrors.ErrCodeDelegateFailed, "delegate call failed")
}
