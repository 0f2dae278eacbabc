// Package errors provides structured error handling with typed error codes.
//
// Error codes are organized into categories:
//   - General errors (1-99): Unknown and general errors
//   - Validation errors (100-199): Bad requests, unsupported resolutions, invalid configuration
//   - Data errors (200-299): Malformed rows, missing archive entries, absent data
//   - I/O errors (300-399): Filesystem read and write failures
//   - Source errors (400-499): Data source fetch failures, transient or permanent
//   - Job errors (500-599): Download job lookup and state errors
//   - Gateway errors (600-699): Gateway process control errors
//   - Credential errors (700-799): Credential store failures
//
// Usage:
//
//	// Create a new error
//	err := errors.New(errors.ErrCodeUnsupportedResolution, "unsupported resolution")
//
//	// Create a formatted error
//	err := errors.Newf(errors.ErrCodeMalformedRow, "expected 6 fields, got %d", n)
//
//	// Wrap an existing error
//	err := errors.Wrap(errors.ErrCodeIOFailure, "failed to write archive", originalErr)
//
//	// Check error code
//	if errors.HasCode(err, errors.ErrCodeTransientSource) { ... }
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Error represents a structured error with an error code and message.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// New creates a new Error with the given code and message.
func New(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   nil,
	}
}

// Newf creates a new Error with the given code and formatted message.
func Newf(code ErrorCode, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   nil,
	}
}

// Wrap wraps an existing error with a new Error containing the given code and message.
func Wrap(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Wrapf wraps an existing error with a new Error containing the given code and formatted message.
func Wrapf(code ErrorCode, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Cause)
	}

	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether any error in err's chain matches target.
// This is a convenience wrapper around the standard errors.Is function.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
// This is a convenience wrapper around the standard errors.As function.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// GetCode extracts the ErrorCode from an error if it's an *Error type.
// Returns ErrCodeUnknown if the error is not an *Error type.
func GetCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}

	return ErrCodeUnknown
}

// HasCode checks if an error has a specific ErrorCode.
func HasCode(err error, code ErrorCode) bool {
	return GetCode(err) == code
}

// ValidationError carries every problem found while validating a request.
// Its message is the individual messages joined by a single space.
type ValidationError struct {
	Messages []string
}

// NewValidationError creates a ValidationError from the given messages.
func NewValidationError(messages []string) *ValidationError {
	copied := make([]string, len(messages))
	copy(copied, messages)

	return &ValidationError{
		Messages: copied,
	}
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return strings.Join(e.Messages, " ")
}

// IsValidationError checks if an error is a ValidationError.
// It uses errors.As to check the error chain.
func IsValidationError(err error) bool {
	var validationErr *ValidationError

	return errors.As(err, &validationErr)
}
