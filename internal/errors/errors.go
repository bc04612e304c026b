// Package errors classifies failures of the welfare engine. Every error
// returned across a package boundary is an *Error so the CLI can map it to
// an exit message and tests can assert on the category.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Type identifies the category of error
type Type string

const (
	// TypeDomain indicates an invalid model parameter (negative sd, leisure
	// outside [0,T], degenerate exponents, undersized grids, tax rate >= 1)
	TypeDomain Type = "DOMAIN_ERROR"

	// TypeInput indicates an input validation error at the CLI boundary
	TypeInput Type = "INPUT_ERROR"

	// TypeConfig indicates a configuration error
	TypeConfig Type = "CONFIG_ERROR"

	// TypeCanceled indicates a sweep stopped before completion
	TypeCanceled Type = "CANCELED"

	// TypeInternal indicates an internal error
	TypeInternal Type = "INTERNAL_ERROR"

	// TypeNotSupported indicates an unsupported operation
	TypeNotSupported Type = "NOT_SUPPORTED"
)

// contextParameter is the context key holding the offending parameter name
const contextParameter = "parameter"

// Error is a categorized failure with optional structured context
type Error struct {
	Type    Type           `json:"type"`
	Message string         `json:"message"`
	Cause   error          `json:"-"`
	Context map[string]any `json:"context,omitempty"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// New creates a new error
func New(errType Type, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
	}
}

// Newf creates a new formatted error
func Newf(errType Type, format string, args ...any) *Error {
	return &Error{
		Type:    errType,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an error with context
func Wrap(errType Type, message string, cause error) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		Cause:   cause,
	}
}

// IsType checks if an error, or any error it wraps, is of a specific type
func IsType(err error, t Type) bool {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Type == t
	}
	return false
}

// As is errors.As from the standard library
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// IsDomain reports whether err is a DomainError
func IsDomain(err error) bool {
	return IsType(err, TypeDomain)
}

// Domain creates a DomainError naming the offending parameter.
func Domain(parameter string, format string, args ...any) *Error {
	e := Newf(TypeDomain, "%s: %s", parameter, fmt.Sprintf(format, args...))
	return e.WithContext(contextParameter, parameter)
}

// Parameter returns the parameter named by the first DomainError in err's
// chain, or "" if none names one.
func Parameter(err error) string {
	for err != nil {
		var e *Error
		if !stderrors.As(err, &e) {
			return ""
		}
		if p, ok := e.Context[contextParameter].(string); ok {
			return p
		}
		err = e.Cause
	}
	return ""
}

// Input creates an input error
func Input(message string) *Error {
	return New(TypeInput, message)
}

// Config creates a configuration error
func Config(message string, cause error) *Error {
	return Wrap(TypeConfig, message, cause)
}

// Canceled creates a cancellation error
func Canceled(message string, cause error) *Error {
	return Wrap(TypeCanceled, message, cause)
}

// NotSupported creates a not supported error
func NotSupported(operation string) *Error {
	return Newf(TypeNotSupported, "operation not supported: %s", operation)
}

// Internal creates an internal error
func Internal(message string, cause error) *Error {
	return Wrap(TypeInternal, message, cause)
}
