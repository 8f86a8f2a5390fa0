// Package errors defines the structured error type used across paramtrail.
//
// Only configuration, validation and session-subsystem failures are ever
// returned as errors. The capture, codec and compose paths absorb their own
// failure modes into fallback values and never produce a ParamError.
package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeSession    ErrorType = "session"
	ErrorTypeInternal   ErrorType = "internal"
)

// Common error codes.
const (
	ErrCodeConfigInvalid    = "ERR_CONFIG_INVALID"
	ErrCodeDuplicateName    = "ERR_DUPLICATE_NAME"
	ErrCodeAliasCollision   = "ERR_ALIAS_COLLISION"
	ErrCodeMissingSecret    = "ERR_MISSING_SECRET"
	ErrCodeInvalidURL       = "ERR_INVALID_URL"
	ErrCodeUnknownParameter = "ERR_UNKNOWN_PARAMETER"
	ErrCodeUnknownForm      = "ERR_UNKNOWN_FORM"
	ErrCodeInvalidRequest   = "ERR_INVALID_REQUEST"
	ErrCodeSessionClosed    = "ERR_SESSION_CLOSED"
	ErrCodeSessionCapacity  = "ERR_SESSION_CAPACITY"
)

// ParamError is a structured error type with context.
type ParamError struct {
	Type        ErrorType
	Code        string
	Message     string
	Cause       error
	Context     map[string]interface{}
	Parameter   string
	Recoverable bool
}

// Error implements the error interface.
func (e *ParamError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if e.Parameter != "" {
		parts = append(parts, "parameter:"+e.Parameter)
	}

	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *ParamError) Unwrap() error {
	return e.Cause
}

// Is matches on type and code.
func (e *ParamError) Is(target error) bool {
	var t *ParamError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *ParamError) WithContext(key string, value interface{}) *ParamError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithParameter attaches the tracked parameter name the error concerns.
func (e *ParamError) WithParameter(name string) *ParamError {
	e.Parameter = name

	return e
}

// WithCause sets the underlying error.
func (e *ParamError) WithCause(cause error) *ParamError {
	e.Cause = cause

	return e
}

// NewValidationError creates a validation error.
func NewValidationError(code, message string) *ParamError {
	return &ParamError{
		Type:        ErrorTypeValidation,
		Code:        code,
		Message:     message,
		Recoverable: true,
	}
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string) *ParamError {
	return &ParamError{
		Type:        ErrorTypeConfig,
		Code:        code,
		Message:     message,
		Recoverable: false,
	}
}

// NewSessionError creates a session subsystem error. These are the only
// failures the request path propagates to callers.
func NewSessionError(code, message string) *ParamError {
	return &ParamError{
		Type:        ErrorTypeSession,
		Code:        code,
		Message:     message,
		Recoverable: false,
	}
}

// NewInternalError creates an internal error.
func NewInternalError(code, message string, cause error) *ParamError {
	return &ParamError{
		Type:        ErrorTypeInternal,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: false,
	}
}

// IsRecoverable checks if an error is recoverable.
func IsRecoverable(err error) bool {
	var pe *ParamError
	if errors.As(err, &pe) {
		return pe.Recoverable
	}

	return false
}

// IsConfigError checks if an error is configuration-related.
func IsConfigError(err error) bool {
	return hasType(err, ErrorTypeConfig)
}

// IsSessionError checks if an error comes from the session subsystem.
func IsSessionError(err error) bool {
	return hasType(err, ErrorTypeSession)
}

// IsValidationError checks if an error is a validation failure.
func IsValidationError(err error) bool {
	return hasType(err, ErrorTypeValidation)
}

func hasType(err error, t ErrorType) bool {
	var pe *ParamError
	if errors.As(err, &pe) {
		return pe.Type == t
	}

	return false
}

// Logger is the subset of logging.Logger the handler needs.
type Logger interface {
	Error(ctx context.Context, err error, msg string, fields ...interface{})
	Warn(ctx context.Context, err error, msg string, fields ...interface{})
}

// ErrorHandler provides centralized error logging.
type ErrorHandler struct {
	logger Logger
}

// NewErrorHandler creates a new error handler.
func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// Handle logs an error at a level matching its type.
func (h *ErrorHandler) Handle(ctx context.Context, err error) {
	if err == nil || h.logger == nil {
		return
	}

	var pe *ParamError
	if !errors.As(err, &pe) {
		h.logger.Error(ctx, err, "Unhandled error occurred")
		return
	}

	switch pe.Type {
	case ErrorTypeValidation:
		h.logger.Warn(ctx, err, "Validation error occurred",
			"type", pe.Type,
			"code", pe.Code,
			"parameter", pe.Parameter)
	default:
		h.logger.Error(ctx, err, "Error occurred",
			"type", pe.Type,
			"code", pe.Code,
			"parameter", pe.Parameter)
	}
}
