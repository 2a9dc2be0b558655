// Package errs defines the error taxonomy shared by the API client and
// the console controllers.
//
// Every failure a user can see falls into one Kind:
//   - validation: rejected locally before any network call
//   - backend:    the backend answered but reported success=false
//   - transport:  network failure or a non-2xx response
//   - state:      the operation is not allowed in the current step
//   - secondary:  a follow-up call failed after the primary one committed
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an Error.
type Kind string

const (
	KindValidation Kind = "validation"
	KindBackend    Kind = "backend"
	KindTransport  Kind = "transport"
	KindState      Kind = "state"
	KindSecondary  Kind = "secondary"
)

// Error is the error type returned by every package in this module.
type Error struct {
	Kind    Kind
	Op      string // e.g. "wizard.upload", "api.POST /query"
	Message string // user-facing text
	Status  int    // HTTP status, transport errors only
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Op == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches another *Error by Kind so callers can write
// errors.Is(err, errs.Validation).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Op == "" || t.Op == e.Op)
}

// Sentinels for errors.Is comparisons.
var (
	Validation = &Error{Kind: KindValidation}
	Backend    = &Error{Kind: KindBackend}
	Transport  = &Error{Kind: KindTransport}
	State      = &Error{Kind: KindState}
	Secondary  = &Error{Kind: KindSecondary}
)

// Validationf builds a local validation error.
func Validationf(op, format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Statef builds an invalid-state error.
func Statef(op, format string, args ...interface{}) *Error {
	return &Error{Kind: KindState, Op: op, Message: fmt.Sprintf(format, args...)}
}

// NewBackend builds an error for a response carrying success=false.
// fallback is used when the backend sent no error text.
func NewBackend(op, message, fallback string) *Error {
	if message == "" {
		message = fallback
	}
	return &Error{Kind: KindBackend, Op: op, Message: message}
}

// NewTransport wraps a network or HTTP-level failure.
func NewTransport(op string, status int, message string, cause error) *Error {
	return &Error{Kind: KindTransport, Op: op, Status: status, Message: message, Cause: cause}
}

// AsSecondary re-labels err as a non-critical follow-up failure.
func AsSecondary(op string, err error) *Error {
	return &Error{Kind: KindSecondary, Op: op, Message: Message(err), Cause: err}
}

// KindOf returns the Kind of err, or "" if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Message returns the user-facing text of err without the Op prefix.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
