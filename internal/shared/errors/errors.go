// Package errors provides application-level error types and utilities.
// It defines the error taxonomy used across the reconciliation pipeline:
// validation, not found, conflict, transport, rejected-by-provider,
// not-configured, and internal errors.
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorType represents the type of error
type ErrorType string

const (
	ErrorTypeValidation    ErrorType = "validation_error"
	ErrorTypeNotFound      ErrorType = "not_found"
	ErrorTypeConflict      ErrorType = "conflict"
	ErrorTypeUnauthorized  ErrorType = "unauthorized"
	ErrorTypeInternal      ErrorType = "internal_error"
	ErrorTypeBadRequest    ErrorType = "bad_request"
	ErrorTypeTransport     ErrorType = "transport_error"
	ErrorTypeRejected      ErrorType = "rejected_by_provider"
	ErrorTypeNotConfigured ErrorType = "not_configured"
	ErrorTypeUnavailable   ErrorType = "unavailable"
)

// AppError represents an application error with additional context
type AppError struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
	Code    int       `json:"code"`
	Details string    `json:"details,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Type, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func newAppError(t ErrorType, code int, message string, details []string) *AppError {
	detail := ""
	if len(details) > 0 {
		detail = details[0]
	}
	return &AppError{
		Type:    t,
		Message: message,
		Code:    code,
		Details: detail,
	}
}

// NewValidationError creates a new validation error
func NewValidationError(message string, details ...string) *AppError {
	return newAppError(ErrorTypeValidation, http.StatusBadRequest, message, details)
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(message string, details ...string) *AppError {
	return newAppError(ErrorTypeNotFound, http.StatusNotFound, message, details)
}

// NewConflictError creates a new conflict error
func NewConflictError(message string, details ...string) *AppError {
	return newAppError(ErrorTypeConflict, http.StatusConflict, message, details)
}

// NewUnauthorizedError creates a new unauthorized error
func NewUnauthorizedError(message string, details ...string) *AppError {
	return newAppError(ErrorTypeUnauthorized, http.StatusUnauthorized, message, details)
}

// NewInternalError creates a new internal error
func NewInternalError(message string, details ...string) *AppError {
	return newAppError(ErrorTypeInternal, http.StatusInternalServerError, message, details)
}

// NewBadRequestError creates a new bad request error
func NewBadRequestError(message string, details ...string) *AppError {
	return newAppError(ErrorTypeBadRequest, http.StatusBadRequest, message, details)
}

// NewTransportError creates a retryable transport error (network, timeout,
// provider 5xx).
func NewTransportError(message string, details ...string) *AppError {
	return newAppError(ErrorTypeTransport, http.StatusBadGateway, message, details)
}

// NewRejectedError creates an auth-rejection error (provider 401/403).
func NewRejectedError(message string, details ...string) *AppError {
	return newAppError(ErrorTypeRejected, http.StatusForbidden, message, details)
}

// NewNotConfiguredError creates a configuration error (missing credentials,
// empty library sections). These surface at verify/connect time and never
// reach the reconciler.
func NewNotConfiguredError(message string, details ...string) *AppError {
	return newAppError(ErrorTypeNotConfigured, http.StatusPreconditionFailed, message, details)
}

// NewUnavailableError creates a retryable unavailable error (lock timeout).
func NewUnavailableError(message string, details ...string) *AppError {
	return newAppError(ErrorTypeUnavailable, http.StatusServiceUnavailable, message, details)
}

// IsAppError checks if the error is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// GetAppError extracts AppError from error
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}

func isType(err error, t ErrorType) bool {
	appErr := GetAppError(err)
	return appErr != nil && appErr.Type == t
}

// IsConflictError checks if the error is a conflict error
func IsConflictError(err error) bool {
	return isType(err, ErrorTypeConflict)
}

// IsNotFoundError checks if the error is a not found error
func IsNotFoundError(err error) bool {
	return isType(err, ErrorTypeNotFound)
}

// IsValidationError checks if the error is a validation error
func IsValidationError(err error) bool {
	return isType(err, ErrorTypeValidation)
}

// IsTransportError checks if the error is a retryable transport error
func IsTransportError(err error) bool {
	return isType(err, ErrorTypeTransport)
}

// IsRejectedError checks if the error is a provider auth rejection
func IsRejectedError(err error) bool {
	return isType(err, ErrorTypeRejected)
}

// IsNotConfiguredError checks if the error is a configuration error
func IsNotConfiguredError(err error) bool {
	return isType(err, ErrorTypeNotConfigured)
}

// IsUnavailableError checks if the error is a retryable unavailable error
func IsUnavailableError(err error) bool {
	return isType(err, ErrorTypeUnavailable)
}

// IsDuplicateError checks if the error is a database duplicate key error
func IsDuplicateError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	// SQLite unique violation
	if strings.Contains(errStr, "UNIQUE constraint failed") {
		return true
	}
	// MySQL duplicate entry
	if strings.Contains(errStr, "Duplicate entry") || strings.Contains(errStr, "duplicate key") {
		return true
	}
	return false
}
