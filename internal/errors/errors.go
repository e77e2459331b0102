package errors

import (
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeIO         ErrorType = "io"
	ErrorTypeDelegate   ErrorType = "delegate"
	ErrorTypeCapacity   ErrorType = "capacity"
	ErrorTypeStore      ErrorType = "store"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeInternal   ErrorType = "internal"
)

// AppError represents a structured application error
type AppError struct {
	Type    ErrorType      `json:"type"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Cause   error          `json:"cause,omitempty"`
	Context map[string]any `json:"context,omitempty"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func newAppError(typ ErrorType, code, message string, cause error) *AppError {
	return &AppError{
		Type:    typ,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Error constructors for different types
func NewValidationError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeValidation, code, message, cause)
}

func NewIOError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeIO, code, message, cause)
}

func NewDelegateError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeDelegate, code, message, cause)
}

func NewCapacityError(message string) *AppError {
	return newAppError(ErrorTypeCapacity, ErrCodeCapacityExceeded, message, nil)
}

func NewStoreError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeStore, code, message, cause)
}

func NewConfigError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeConfig, code, message, cause)
}

func NewInternalError(code, message string, cause error) *AppError {
	return newAppError(ErrorTypeInternal, code, message, cause)
}

// WithContext adds context to an error
func (e *AppError) WithContext(key string, value any) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// CodeOf returns the code of the first AppError in err's chain, or "".
func CodeOf(err error) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// HasCode reports whether err carries the given AppError code.
func HasCode(err error, code string) bool {
	return err != nil && CodeOf(err) == code
}

// IsRunFatal reports whether err must abort a whole scoring run rather than
// failing a single candidate.
func IsRunFatal(err error) bool {
	return HasCode(err, ErrCodeDelegateUnavailable)
}

// Logger wraps slog with application-specific methods
type Logger struct {
	logger *slog.Logger
}

// NewLogger creates a new structured logger
func NewLogger(level slog.Level) *Logger {
	opts := &slog.HandlerOptions{
		Level: level,
	}

	handler := slog.NewJSONHandler(os.Stdout, opts)
	return &Logger{logger: slog.New(handler)}
}

// NewLoggerFromSlog wraps an existing slog logger, mostly for tests that
// capture output.
func NewLoggerFromSlog(l *slog.Logger) *Logger {
	return &Logger{logger: l}
}

// LogError logs an application error with appropriate level and context.
// Like the other methods it is a no-op on a nil Logger.
func (l *Logger) LogError(err error, message string, args ...any) {
	if l == nil || err == nil {
		return
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		logArgs := []any{
			"error_type", appErr.Type,
			"error_code", appErr.Code,
			"error_message", appErr.Message,
		}
		if appErr.Cause != nil {
			logArgs = append(logArgs, "error_cause", appErr.Cause.Error())
		}
		for key, value := range appErr.Context {
			logArgs = append(logArgs, key, value)
		}
		logArgs = append(logArgs, args...)

		l.logger.Error(message, logArgs...)
		return
	}

	logArgs := append([]any{"error", err.Error()}, args...)
	l.logger.Error(message, logArgs...)
}

func (l *Logger) Info(message string, args ...any) {
	if l == nil {
		return
	}
	l.logger.Info(message, args...)
}

func (l *Logger) Debug(message string, args ...any) {
	if l == nil {
		return
	}
	l.logger.Debug(message, args...)
}

func (l *Logger) Warn(message string, args ...any) {
	if l == nil {
		return
	}
	l.logger.Warn(message, args...)
}

// With returns a logger that always includes the given attributes.
func (l *Logger) With(args ...any) *Logger {
	if l == nil {
		return nil
	}
	return &Logger{logger: l.logger.With(args...)}
}

// New creates a new logger instance
func New(level string) (*Logger, error) {
	var slogLevel slog.Level
	switch level {
	case "debug":
		slogLevel = slog.LevelDebug
	case "info":
		slogLevel = slog.LevelInfo
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		return nil, fmt.Errorf("invalid log level: %s", level)
	}

	return NewLogger(slogLevel), nil
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{logger: slog.New(slog.NewJSONHandler(discard{}, &slog.HandlerOptions{Level: slog.LevelError + 4}))}
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

// Common error codes
const (
	ErrCodeFileNotFound              = "FILE_NOT_FOUND"
	ErrCodeFileNotReadable           = "FILE_NOT_READABLE"
	ErrCodeInvalidFormat             = "INVALID_FORMAT"
	ErrCodeInvalidRequest            = "INVALID_REQUEST"
	ErrCodeValidation                = "VALIDATION_ERROR"
	ErrCodeNotFound                  = "NOT_FOUND"
	ErrCodeCapacityExceeded          = "CAPACITY_EXCEEDED"
	ErrCodeDelegateUnavailable       = "DELEGATE_UNAVAILABLE"
	ErrCodeDelegateTimeout           = "DELEGATE_TIMEOUT"
	ErrCodeDelegateMalformedResponse = "DELEGATE_MALFORMED_RESPONSE"
	ErrCodeDelegateFailed            = "DELEGATE_FAILED"
	ErrCodeDelegateCircuitOpen       = "DELEGATE_CIRCUIT_OPEN"
	ErrCodeMissingAPIKey             = "MISSING_API_KEY"
	ErrCodeRunCancelled              = "RUN_CANCELLED"
	ErrCodeStoreFailed               = "STORE_FAILED"
	ErrCodeInvalidConfig             = "INVALID_CONFIG"
	ErrCodeInternal                  = "INTERNAL_ERROR"
)
