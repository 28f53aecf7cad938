// Package memory provides the agent's working-memory model: events, actions
// and their serialized records.
package memory

import (
	"errors"
	"fmt"
)

// Predefined errors for malformed input.
var (
	// ErrInvalidInput indicates that the provided input is invalid.
	ErrInvalidInput = errors.New("invalid input")

	// ErrMissingField indicates that a serialized record lacks a required field.
	ErrMissingField = errors.New("missing field")
)

// FieldError wraps errors with operation and field context.
//
// Example:
//
//	err := &FieldError{Op: "ActionFromRecord", Field: "event", Err: ErrMissingField}
//	// Error() returns: "memory: ActionFromRecord: event: missing field"
type FieldError struct {
	// Op is the name of the operation that failed.
	Op string

	// Field is the offending field, if any.
	Field string

	// Err is the underlying error.
	Err error
}

// Error returns a formatted error message.
func (e *FieldError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("memory: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("memory: %s: %s: %v", e.Op, e.Field, e.Err)
}

// Unwrap returns the underlying error.
func (e *FieldError) Unwrap() error {
	return e.Err
}

func newFieldError(op, field string, err error) error {
	return &FieldError{Op: op, Field: field, Err: err}
}
