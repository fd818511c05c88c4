// Package errors provides custom error types for the admin API.
// All service-layer errors should use AppError to ensure consistent,
// secure error responses that never leak internal details to clients.
package errors

import (
	"net/http"
	"sort"
	"strings"
)

// AppError represents a structured application error with an error code,
// human-readable message, HTTP status code, and optional internal error.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Internal   error  `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string { return e.Message }

// Unwrap returns the internal error for use with errors.Is/As.
func (e *AppError) Unwrap() error { return e.Internal }

// Is reports whether target is an AppError with the same code, so wrapped
// copies of a sentinel still match it.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Wrap creates a new AppError with the same code/message/status but wraps an internal error.
func Wrap(sentinel *AppError, internal error) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    sentinel.Message,
		StatusCode: sentinel.StatusCode,
		Internal:   internal,
	}
}

// WithMessage creates a new AppError with a custom message.
func WithMessage(sentinel *AppError, message string) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    message,
		StatusCode: sentinel.StatusCode,
		Internal:   sentinel.Internal,
	}
}

// ValidationError collects per-field messages for a rejected create/update
// payload. It matches ErrValidationFailed under errors.Is.
type ValidationError struct {
	Fields map[string]string
}

// NewValidationError returns a ValidationError for the given field map.
func NewValidationError(fields map[string]string) *ValidationError {
	if fields == nil {
		fields = map[string]string{}
	}
	return &ValidationError{Fields: fields}
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Is makes ValidationError match ErrValidationFailed.
func (e *ValidationError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && t.Code == ErrValidationFailed.Code
}

// Authentication & authorization errors.
var (
	ErrUnauthorized       = &AppError{Code: "UNAUTHORIZED", Message: "Authentication required", StatusCode: http.StatusUnauthorized}
	ErrInvalidCredentials = &AppError{Code: "INVALID_CREDENTIALS", Message: "Invalid credentials. Please try again.", StatusCode: http.StatusUnauthorized}
	ErrForbidden          = &AppError{Code: "FORBIDDEN", Message: "Access denied", StatusCode: http.StatusForbidden}
)

// Token errors.
var (
	ErrInvalidToken = &AppError{Code: "INVALID_TOKEN", Message: "Invalid token", StatusCode: http.StatusUnauthorized}
	ErrTokenExpired = &AppError{Code: "TOKEN_EXPIRED", Message: "Token has expired", StatusCode: http.StatusUnauthorized}
	ErrTokenRevoked = &AppError{Code: "TOKEN_REVOKED", Message: "Token has been revoked", StatusCode: http.StatusUnauthorized}
)

// Session errors.
var (
	ErrInvalidSession        = &AppError{Code: "INVALID_SESSION", Message: "Session is invalid or has expired", StatusCode: http.StatusUnauthorized}
	ErrSessionNotFound       = &AppError{Code: "SESSION_NOT_FOUND", Message: "Session not found", StatusCode: http.StatusNotFound}
	ErrSessionCreationFailed = &AppError{Code: "SESSION_CREATION_FAILED", Message: "Error creating session", StatusCode: http.StatusInternalServerError}
)

// General errors.
var (
	ErrInvalidInput     = &AppError{Code: "INVALID_INPUT", Message: "Invalid input", StatusCode: http.StatusBadRequest}
	ErrValidationFailed = &AppError{Code: "VALIDATION_FAILED", Message: "Please correct the errors below.", StatusCode: http.StatusUnprocessableEntity}
	ErrNotFound         = &AppError{Code: "NOT_FOUND", Message: "Resource not found", StatusCode: http.StatusNotFound}
	ErrConflict         = &AppError{Code: "CONFLICT", Message: "A row with the same unique value already exists", StatusCode: http.StatusConflict}
	ErrInternalServer   = &AppError{Code: "INTERNAL_ERROR", Message: "An internal error occurred", StatusCode: http.StatusInternalServerError}
)

// Admin user errors.
var (
	ErrUserNotFound      = &AppError{Code: "USER_NOT_FOUND", Message: "User not found", StatusCode: http.StatusNotFound}
	ErrDuplicateUsername = &AppError{Code: "DUPLICATE_USERNAME", Message: "A user with this username already exists", StatusCode: http.StatusConflict}
	ErrDuplicateEmail    = &AppError{Code: "DUPLICATE_EMAIL", Message: "A user with this email already exists", StatusCode: http.StatusConflict}
)

// Registry and logging errors.
var (
	ErrModelNotRegistered = &AppError{Code: "MODEL_NOT_REGISTERED", Message: "Model is not registered", StatusCode: http.StatusNotFound}
	ErrEventLogging       = &AppError{Code: "EVENT_LOGGING_FAILED", Message: "Failed to record event", StatusCode: http.StatusInternalServerError}
)
