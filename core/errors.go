package core

import "github.com/pkg/errors"

var ErrForbidden = errors.New("permission denied")

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

// ValidationError is raised before any call to the store: bad input, unknown references, exceeded budgets...
type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		if len(err.Fields) > 0 {
			return err.Fields[0].Field + ": " + err.Fields[0].Error
		}
		return ""
	}
	return err.Err.Error()
}

func (err ValidationError) Unwrap() error { return err.Err }

// ConflictError is returned by the store when a uniqueness constraint is violated.
// Constraint holds the violated constraint name when known.
type ConflictError struct {
	Err        error
	Constraint string
}

func NewConflictError(err error, constraint string) error {
	return &ConflictError{Err: err, Constraint: constraint}
}

func (err ConflictError) Error() string {
	if err.Err == nil {
		return "conflict"
	}
	return err.Err.Error()
}

func (err ConflictError) Unwrap() error { return err.Err }

func IsConflict(err error) bool {
	_, ok := errors.Cause(err).(*ConflictError)
	return ok
}

// TransientError wraps network or service failures of the store.
// Nothing retries them: the user re-invokes the action.
type TransientError struct {
	Err error
}

func NewTransientError(err error) error {
	return &TransientError{Err: err}
}

func (err TransientError) Error() string {
	if err.Err == nil {
		return "service temporarily unavailable"
	}
	return err.Err.Error()
}

func (err TransientError) Unwrap() error { return err.Err }

func IsTransient(err error) bool {
	_, ok := errors.Cause(err).(*TransientError)
	return ok
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
