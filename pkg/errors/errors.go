// Package errors provides structured error types for extrepo.
//
// Every failure the session lifecycle can surface carries a machine-readable
// [Code] so callers can tell a sandbox storage problem apart from a bad
// configuration or a failed session build without string matching.
//
// # Error Codes
//
// Codes follow a hierarchical naming convention:
//   - INVALID_*: Input validation failures
//   - STORAGE_ERROR: Sandbox directory creation or removal failed
//   - CONFIG_ERROR: Invalid or duplicate configuration (e.g. artifact types)
//   - SESSION_BUILD_ERROR: A step of session assembly failed
//   - REPOSITORY_CREATION_ERROR: Top-level failure surfaced by the factory
//   - DESCRIPTOR_*: Remote descriptor missing or unparsable
//
// # Usage
//
//	err := errors.New(errors.ErrCodeConfig, "duplicate artifact type %q", id)
//	if errors.Is(err, errors.ErrCodeConfig) {
//	    // Handle configuration error
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeStorage, origErr, "create sandbox in %s", root)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Input validation errors
	ErrCodeInvalidInput      Code = "INVALID_INPUT"
	ErrCodeInvalidDescriptor Code = "INVALID_DESCRIPTOR"
	ErrCodeInvalidCoordinate Code = "INVALID_COORDINATE"
	ErrCodeInvalidPath       Code = "INVALID_PATH"

	// Session lifecycle errors
	ErrCodeStorage            Code = "STORAGE_ERROR"
	ErrCodeConfig             Code = "CONFIG_ERROR"
	ErrCodeSessionBuild       Code = "SESSION_BUILD_ERROR"
	ErrCodeRepositoryCreation Code = "REPOSITORY_CREATION_ERROR"

	// Remote descriptor errors
	ErrCodeDescriptorMissing  Code = "DESCRIPTOR_MISSING"
	ErrCodeDescriptorInvalid  Code = "DESCRIPTOR_INVALID"
	ErrCodeDescriptorTooLarge Code = "DESCRIPTOR_TOO_LARGE"

	// Network errors
	ErrCodeNetwork Code = "NETWORK_ERROR"

	// Internal errors
	ErrCodeInternal    Code = "INTERNAL_ERROR"
	ErrCodeUnsupported Code = "UNSUPPORTED"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Storage wraps a sandbox filesystem failure.
func Storage(cause error, format string, args ...any) *Error {
	return Wrap(ErrCodeStorage, cause, format, args...)
}

// Config creates a configuration error. Cause may be nil.
func Config(cause error, format string, args ...any) *Error {
	return Wrap(ErrCodeConfig, cause, format, args...)
}

// SessionBuild wraps the failure of a session assembly step.
func SessionBuild(cause error, format string, args ...any) *Error {
	return Wrap(ErrCodeSessionBuild, cause, format, args...)
}

// coder is implemented by typed errors that carry their own code but are not
// an *Error, such as the repository factory's creation error.
type coder interface {
	Code() Code
}

// Is reports whether err has the given error code.
// The outermost coded error in the chain decides; see [GetCode].
func Is(err error, code Code) bool {
	if err == nil {
		return false
	}
	return GetCode(err) == code
}

// GetCode extracts the error code from an error, if available.
// It returns the code of the first error in the chain that carries one,
// or the empty string if none does.
func GetCode(err error) Code {
	for e := err; e != nil; e = errors.Unwrap(e) {
		switch v := e.(type) {
		case *Error:
			return v.Code
		case coder:
			return v.Code()
		}
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
