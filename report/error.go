// Package report carries the structured log sink and the fatal error
// taxonomy of the simulator.
package report

import (
	"errors"
	"fmt"
)

// Kind classifies fatal errors. None of them are retried.
type Kind int

// The error kinds.
const (
	// ModelError is a malformed or inconsistent model.
	ModelError Kind = iota + 1

	// ProtocolError is a message that violates the contract between the
	// planner, the execution units and the common resources.
	ProtocolError

	// InvariantViolation is an internal state that must never be reached.
	InvariantViolation
)

func (k Kind) String() string {
	switch k {
	case ModelError:
		return "model error"
	case ProtocolError:
		return "protocol error"
	case InvariantViolation:
		return "invariant violation"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is a fatal simulation error. Component names the reporter and Key
// identifies the offending entity.
type Error struct {
	Kind      Kind
	Component string
	Key       string
	Msg       string
}

func (e *Error) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("fatal %s: %s: %s", e.Kind, e.Component, e.Msg)
	}

	return fmt.Sprintf("fatal %s: %s [%s]: %s",
		e.Kind, e.Component, e.Key, e.Msg)
}

func newError(kind Kind, component, key, format string, args []any) *Error {
	return &Error{
		Kind:      kind,
		Component: component,
		Key:       key,
		Msg:       fmt.Sprintf(format, args...),
	}
}

// ModelErrorf creates a ModelError.
func ModelErrorf(component, key, format string, args ...any) *Error {
	return newError(ModelError, component, key, format, args)
}

// ProtocolErrorf creates a ProtocolError.
func ProtocolErrorf(component, key, format string, args ...any) *Error {
	return newError(ProtocolError, component, key, format, args)
}

// InvariantErrorf creates an InvariantViolation.
func InvariantErrorf(component, key, format string, args ...any) *Error {
	return newError(InvariantViolation, component, key, format, args)
}

// IsKind tells if err wraps an Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}

	return e.Kind == kind
}

// Errors collects several errors found in one pass, such as model
// validation. Errors is itself an error when non-empty.
type Errors []*Error

func (es Errors) Error() string {
	switch len(es) {
	case 0:
		return "no error"
	case 1:
		return es[0].Error()
	default:
		return fmt.Sprintf("%s (and %d more)", es[0].Error(), len(es)-1)
	}
}

// Unwrap exposes the individual errors to errors.As and errors.Is.
func (es Errors) Unwrap() []error {
	out := make([]error, len(es))
	for i, e := range es {
		out[i] = e
	}

	return out
}

// ErrOrNil returns nil when there is no error.
func (es Errors) ErrOrNil() error {
	if len(es) == 0 {
		return nil
	}

	return es
}
