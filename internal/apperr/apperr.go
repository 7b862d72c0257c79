// Package apperr classifies failures so transports can map them to a
// status without knowing where they came from.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the category of an application error.
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindValidation
	KindConflict
	KindUnauthorized
	KindForbidden
	KindTransientIO
)

// Error is an error with a Kind and a message safe to show callers.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) error   { return newf(KindNotFound, format, args...) }
func Validation(format string, args ...any) error { return newf(KindValidation, format, args...) }
func Conflict(format string, args ...any) error   { return newf(KindConflict, format, args...) }
func Unauthorized(format string, args ...any) error {
	return newf(KindUnauthorized, format, args...)
}
func Forbidden(format string, args ...any) error { return newf(KindForbidden, format, args...) }

// TransientIO wraps a file or network failure.
func TransientIO(err error, format string, args ...any) error {
	e := newf(KindTransientIO, format, args...)
	e.Err = err
	return e
}

// KindOf returns the Kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Message returns the caller-facing message for err. Internal errors get
// a generic text so driver details never leak.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindInternal && e.Kind != KindTransientIO {
		return e.Message
	}
	return "internal error"
}

// HTTPStatus maps err to a response status.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
