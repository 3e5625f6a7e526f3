// Package orcherr defines the discriminated error codes returned across the
// storage, repository and workflow layers.
package orcherr

import (
	"errors"
	"fmt"
)

// Code is the machine-readable discriminator every public entry point
// attaches to a failed operation.
type Code string

const (
	Validation          Code = "VALIDATION_ERROR"
	NotFound            Code = "NOT_FOUND"
	Conflict            Code = "CONFLICT"
	HasChildren         Code = "HAS_CHILDREN"
	InvariantViolation  Code = "INVARIANT_VIOLATION"
	CircularDependency  Code = "CIRCULAR_DEPENDENCY"
	DuplicateDependency Code = "DUPLICATE_DEPENDENCY"
	SelfDependency      Code = "SELF_DEPENDENCY"
	Storage             Code = "STORAGE"
)

// Error is the concrete error type carried across repository and workflow
// boundaries. Never leaks a bare error without a Code.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an *Error with the given code and formatted message.
func New(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an *Error around an existing cause.
func Wrap(code Code, cause error, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// As extracts the *Error from err, if any.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	e, ok := As(err)
	return ok && e.Code == code
}
