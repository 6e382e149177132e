// Package errors provides structured error handling with machine-readable codes.
package errors

import stderrors "errors"

// Error is the domain error type with structured metadata.
type Error struct {
	Code    Code              // Machine-readable error code
	Message string            // Internal message (for logs/telemetry)
	Fields  map[string]string // Additional context for diagnostics
	Cause   error             // Wrapped underlying error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// New creates a domain error with a code and message.
func New(code Code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// WithFields creates a domain error with diagnostic fields.
func WithFields(code Code, message string, fields map[string]string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Fields:  fields,
	}
}

// Wrap creates a domain error that wraps an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// CodeOf extracts the code from an error, returning CodeUnknown for
// non-domain errors.
func CodeOf(err error) Code {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}
