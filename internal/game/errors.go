package game

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a session, participant, game question or question does not exist.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized is returned when a non-host calls a host-only operation.
	ErrUnauthorized = errors.New("caller is not the host")
	// ErrInvalidState is returned when an operation does not fit the current session or question phase.
	ErrInvalidState = errors.New("invalid state")
	// ErrCapacityExceeded is returned when joining a full session.
	ErrCapacityExceeded = errors.New("session is full")
	// ErrConflict is returned on duplicate answer submission or unique-key collisions.
	ErrConflict = errors.New("conflict")
	// ErrDependency wraps unexpected store or collaborator failures on the critical path.
	ErrDependency = errors.New("dependency failure")
	// ErrInvalidInput is returned for malformed requests.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNoQuestions is returned by Start when the pack has no questions. It also matches ErrInvalidState.
	ErrNoQuestions = fmt.Errorf("%w: pack has no questions", ErrInvalidState)
	// ErrJoinCodeExhausted means no free join code was found within the attempt budget.
	ErrJoinCodeExhausted = errors.New("join code space exhausted")
)

// Error carries the failing operation, the error kind and context for callers.
type Error struct {
	Op     string
	Kind   error
	Detail string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Op + ": " + e.Kind.Error()
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(op string, kind error, format string, args ...any) *Error {
	return &Error{Op: op, Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// storeError classifies a store failure. Not-found and conflict errors keep their kind;
// everything else becomes a dependency failure.
func storeError(op string, err error, format string, args ...any) *Error {
	kind := ErrDependency
	switch {
	case errors.Is(err, ErrNotFound):
		kind = ErrNotFound
	case errors.Is(err, ErrConflict):
		kind = ErrConflict
	case errors.Is(err, ErrCapacityExceeded):
		kind = ErrCapacityExceeded
	case errors.Is(err, ErrInvalidState):
		kind = ErrInvalidState
	}
	return &Error{Op: op, Kind: kind, Detail: fmt.Sprintf(format, args...), Err: err}
}
