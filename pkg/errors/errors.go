// Package errors provides structured error types for the knob value model.
//
// Every failure that the value model surfaces to a caller carries a
// machine-readable [Code]. The taxonomy is deliberately small:
//   - INVALID_ARGUMENT: programming errors (bad dimension, wrong typed
//     accessor, malformed view/dimension spec pairing)
//   - NOT_FOUND: a referenced node, knob or keyframe does not exist
//   - EXPRESSION_INVALID: an expression failed to compile or evaluate
//   - INVALID_FORMAT: a persisted project could not be decoded
//   - UNSUPPORTED: the operation is not available for this knob kind
//   - INTERNAL: unexpected internal failures
//
// Silent fallbacks (an unknown view resolving to the main view, deleting a
// keyframe that does not exist) are not errors and never produce one.
//
// # Usage
//
//	err := errors.New(errors.ErrCodeInvalidArgument, "dimension %d out of range", dim)
//	if errors.Is(err, errors.ErrCodeInvalidArgument) {
//	    // caller bug
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeExpressionInvalid, compileErr, "compile %q", text)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Programming errors
	ErrCodeInvalidArgument Code = "INVALID_ARGUMENT"

	// Resource not found errors
	ErrCodeNotFound     Code = "NOT_FOUND"
	ErrCodeKnobNotFound Code = "KNOB_NOT_FOUND"
	ErrCodeNodeNotFound Code = "NODE_NOT_FOUND"

	// Expression errors
	ErrCodeExpressionInvalid Code = "EXPRESSION_INVALID"
	ErrCodeNoEvaluator       Code = "NO_EVALUATOR"

	// Persistence errors
	ErrCodeInvalidFormat Code = "INVALID_FORMAT"

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

// Invalid is shorthand for New(ErrCodeInvalidArgument, ...).
func Invalid(format string, args ...any) *Error {
	return New(ErrCodeInvalidArgument, format, args...)
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// IsInvalidArgument reports whether err is a programming error.
func IsInvalidArgument(err error) bool {
	return Is(err, ErrCodeInvalidArgument)
}

// IsNotFound reports whether err is any of the not-found codes.
func IsNotFound(err error) bool {
	switch GetCode(err) {
	case ErrCodeNotFound, ErrCodeKnobNotFound, ErrCodeNodeNotFound:
		return true
	}
	return false
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
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
