// Package apperr defines the error taxonomy shared by the factory data core.
//
// Every error that can reach an API caller is an *Error carrying a stable
// code, a short machine-oriented reason and a human-readable message. The
// Kind decides how the API layer reports it (client error, server error,
// upstream failure).
//
// Errors compare by Code, so package-level values work with errors.Is even
// after a message has been specialised:
//
//	err := apperr.ErrInvalidPage.Withf("page %q is not a number", raw)
//	errors.Is(err, apperr.ErrInvalidPage) // true
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error by who can fix it.
type Kind string

// Error kinds.
const (
	KindValidation Kind = "validation"
	KindNotFound   Kind = "not_found"
	KindTechnical  Kind = "technical"
	KindMirror     Kind = "mirror"
	KindSession    Kind = "session"
	KindAuth       Kind = "auth"
)

// Error is a classified application error.
type Error struct {
	Kind    Kind
	Code    string
	Reason  string
	Message string

	// Err is the underlying cause. It is logged but never serialised.
	Err error
}

// New creates an Error with no cause.
func New(kind Kind, code, reason, message string) *Error {
	return &Error{Kind: kind, Code: code, Reason: reason, Message: message}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// Wrap returns a copy of e with cause attached.
func (e *Error) Wrap(cause error) *Error {
	c := *e
	c.Err = cause
	return &c
}

// Withf returns a copy of e with a formatted message.
func (e *Error) Withf(format string, args ...any) *Error {
	c := *e
	c.Message = fmt.Sprintf(format, args...)
	return &c
}

// As extracts the *Error from err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the kind of err, or KindTechnical for unclassified errors.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindTechnical
}
