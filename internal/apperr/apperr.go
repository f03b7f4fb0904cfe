// Package apperr classifies domain failures so the HTTP layer can map them to
// status codes without knowing which component produced them.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is a failure category.
type Kind string

const (
	KindNotFound         Kind = "not_found"
	KindInvalidState     Kind = "invalid_state"
	KindCapacityExceeded Kind = "capacity_exceeded"
	KindValidation       Kind = "validation"
)

// Sentinels usable with errors.Is.
var (
	ErrNotFound         = &Error{Kind: KindNotFound}
	ErrInvalidState     = &Error{Kind: KindInvalidState}
	ErrCapacityExceeded = &Error{Kind: KindCapacityExceeded}
	ErrValidation       = &Error{Kind: KindValidation}
)

// Error carries a Kind, a caller-facing message and an optional cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	switch {
	case e.Msg != "" && e.Err != nil:
		return e.Msg + ": " + e.Err.Error()
	case e.Msg != "":
		return e.Msg
	case e.Err != nil:
		return e.Err.Error()
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same Kind, so errors.Is(err, ErrNotFound) works
// regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func NotFound(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf(format, args...)}
}

func InvalidState(format string, args ...any) error {
	return &Error{Kind: KindInvalidState, Msg: fmt.Sprintf(format, args...)}
}

func CapacityExceeded(format string, args ...any) error {
	return &Error{Kind: KindCapacityExceeded, Msg: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...any) error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(format, args...)}
}

// KindOf returns the Kind of the first *Error in err's chain, or "" when err is
// not classified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Message returns the caller-facing message of a classified error.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Msg != "" {
			return e.Msg
		}
		return string(e.Kind)
	}
	return ""
}
