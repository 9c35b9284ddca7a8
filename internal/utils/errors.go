// Package contextutils provides error handling utilities and standardized error types
// for consistent error management across the word games backend.
package contextutils

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorCode represents a standardized error code for API responses
type ErrorCode string

const (
	// Database error codes

	// ErrorCodeDatabaseConnection indicates a database connection error
	ErrorCodeDatabaseConnection ErrorCode = "DATABASE_CONNECTION_ERROR"
	// ErrorCodeDatabaseQuery indicates a database query error
	ErrorCodeDatabaseQuery ErrorCode = "DATABASE_QUERY_ERROR"
	// ErrorCodeDatabaseTransaction indicates a database transaction error
	ErrorCodeDatabaseTransaction ErrorCode = "DATABASE_TRANSACTION_ERROR"
	// ErrorCodeRecordNotFound indicates that a requested record was not found
	ErrorCodeRecordNotFound ErrorCode = "RECORD_NOT_FOUND"

	// Validation error codes

	// ErrorCodeInvalidInput indicates that the provided input is invalid
	ErrorCodeInvalidInput ErrorCode = "INVALID_INPUT"
	// ErrorCodeMissingRequired indicates that a required field is missing
	ErrorCodeMissingRequired ErrorCode = "MISSING_REQUIRED_FIELD"
	// ErrorCodeValidationFailed indicates that validation has failed
	ErrorCodeValidationFailed ErrorCode = "VALIDATION_FAILED"

	// ErrorCodeUnauthorized indicates that the user is not authorized
	ErrorCodeUnauthorized ErrorCode = "UNAUTHORIZED"

	// Service error codes

	// ErrorCodeServiceUnavailable indicates that a dependency is temporarily unavailable
	ErrorCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	// ErrorCodeInternalError indicates an internal server error
	ErrorCodeInternalError ErrorCode = "INTERNAL_SERVER_ERROR"

	// Game error codes

	// ErrorCodeUnknownGame indicates that the requested game kind does not exist
	ErrorCodeUnknownGame ErrorCode = "UNKNOWN_GAME"
	// ErrorCodeGameNotPlayable indicates that the game kind has no question bank
	ErrorCodeGameNotPlayable ErrorCode = "GAME_NOT_PLAYABLE"
	// ErrorCodePassageNotFound indicates that the requested passage was not found
	ErrorCodePassageNotFound ErrorCode = "PASSAGE_NOT_FOUND"
	// ErrorCodeSegmentationFailed indicates that the word segmenter could not split a text
	ErrorCodeSegmentationFailed ErrorCode = "SEGMENTATION_FAILED"
)

// SeverityLevel represents the severity of an error for logging and monitoring
type SeverityLevel string

const (
	// SeverityInfo indicates informational errors
	SeverityInfo SeverityLevel = "info"
	// SeverityWarn indicates warning-level errors
	SeverityWarn SeverityLevel = "warn"
	// SeverityError indicates error-level issues
	SeverityError SeverityLevel = "error"
	// SeverityFatal indicates fatal errors that require immediate attention
	SeverityFatal SeverityLevel = "fatal"
)

// AppError represents a structured error with code, severity, and context
type AppError struct {
	Code     ErrorCode
	Severity SeverityLevel
	Message  string
	Details  string
	Cause    error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s - %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison for errors.Is
func (e *AppError) Is(target error) bool {
	if appErr, ok := target.(*AppError); ok {
		return e.Code == appErr.Code
	}
	return false
}

func sentinel(code ErrorCode, severity SeverityLevel, message string) *AppError {
	return &AppError{Code: code, Severity: severity, Message: message}
}

// Sentinel errors. Compare with IsError; wrapped copies keep the code.
var (
	ErrDatabaseConnection  = sentinel(ErrorCodeDatabaseConnection, SeverityError, "Database connection failed")
	ErrDatabaseQuery       = sentinel(ErrorCodeDatabaseQuery, SeverityError, "Database query failed")
	ErrDatabaseTransaction = sentinel(ErrorCodeDatabaseTransaction, SeverityError, "Database transaction failed")
	ErrRecordNotFound      = sentinel(ErrorCodeRecordNotFound, SeverityInfo, "Record not found")

	ErrInvalidInput     = sentinel(ErrorCodeInvalidInput, SeverityWarn, "Invalid input")
	ErrMissingRequired  = sentinel(ErrorCodeMissingRequired, SeverityWarn, "Missing required field")
	ErrValidationFailed = sentinel(ErrorCodeValidationFailed, SeverityWarn, "Validation failed")
	ErrUnauthorized     = sentinel(ErrorCodeUnauthorized, SeverityWarn, "Unauthorized")

	ErrServiceUnavailable = sentinel(ErrorCodeServiceUnavailable, SeverityError, "Service unavailable")
	ErrInternalError      = sentinel(ErrorCodeInternalError, SeverityError, "Internal server error")

	ErrUnknownGame        = sentinel(ErrorCodeUnknownGame, SeverityInfo, "Unknown game")
	ErrGameNotPlayable    = sentinel(ErrorCodeGameNotPlayable, SeverityWarn, "Game has no question bank")
	ErrPassageNotFound    = sentinel(ErrorCodePassageNotFound, SeverityInfo, "Passage not found")
	ErrSegmentationFailed = sentinel(ErrorCodeSegmentationFailed, SeverityError, "Word segmentation failed")
)

// NewAppError creates a new AppError with the specified code, severity, message and details
func NewAppError(code ErrorCode, severity SeverityLevel, message, details string) *AppError {
	return &AppError{
		Code:     code,
		Severity: severity,
		Message:  message,
		Details:  details,
	}
}

// NewAppErrorWithCause creates a new AppError with an underlying cause
func NewAppErrorWithCause(code ErrorCode, severity SeverityLevel, message, details string, cause error) *AppError {
	return &AppError{
		Code:     code,
		Severity: severity,
		Message:  message,
		Details:  details,
		Cause:    cause,
	}
}

// wrap builds an AppError around cause, inheriting the code and severity of
// the first AppError in err's chain
func wrap(err, cause error, message string) *AppError {
	out := &AppError{
		Code:     ErrorCodeInternalError,
		Severity: SeverityError,
		Message:  message,
		Details:  err.Error(),
		Cause:    cause,
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		out.Code = appErr.Code
		out.Severity = appErr.Severity
	}
	return out
}

// WrapError wraps an error with additional context, preserving its code
func WrapError(err error, context string) error {
	if err == nil {
		return nil
	}
	return wrap(err, err, context)
}

// WrapErrorf wraps an error with formatted context, preserving its code.
// A %w verb in format keeps the formatted chain as the cause.
func WrapErrorf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	if strings.Contains(format, "%w") {
		wrapped := fmt.Errorf(format, args...)
		return wrap(err, wrapped, wrapped.Error())
	}
	return wrap(err, err, fmt.Sprintf(format, args...))
}

// ErrorWithContextf creates an internal error with a formatted message
func ErrorWithContextf(format string, args ...interface{}) error {
	return &AppError{
		Code:     ErrorCodeInternalError,
		Severity: SeverityError,
		Message:  fmt.Sprintf(format, args...),
	}
}

// IsError checks if an error matches a specific AppError type anywhere in its chain
func IsError(err error, target *AppError) bool {
	return errors.Is(err, target)
}

// GetErrorCode returns the error code from an error if it's an AppError, otherwise returns a default code
func GetErrorCode(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrorCodeInternalError
}

// IsRetryable determines if an error is likely transient
func IsRetryable(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		switch appErr.Code {
		case ErrorCodeServiceUnavailable, ErrorCodeDatabaseConnection:
			return appErr.Severity != SeverityFatal
		}
	}
	return false
}

// ToJSON converts an AppError to a JSON-serializable structure for API responses
func (e *AppError) ToJSON() map[string]interface{} {
	result := map[string]interface{}{
		"code":      string(e.Code),
		"message":   e.Message,
		"severity":  string(e.Severity),
		"error":     e.Message,
		"retryable": IsRetryable(e),
	}

	if e.Details != "" {
		result["details"] = e.Details
	}

	if e.Cause != nil {
		switch e.Severity {
		case SeverityError, SeverityFatal:
			result["cause"] = e.Cause.Error()
		}
	}

	return result
}

// ContextKey represents a context key type for passing values through context
type ContextKey string

// UserIDKey is used to store the authenticated user ID in context
const UserIDKey ContextKey = "userID"

// GetUserIDFromContext extracts the user ID from context, returning 0 if not found
func GetUserIDFromContext(ctx context.Context) int {
	if userID, ok := ctx.Value(UserIDKey).(int); ok {
		return userID
	}
	return 0
}

// WithUserID returns a new context with the user ID set
func WithUserID(ctx context.Context, userID int) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}
