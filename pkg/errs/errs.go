// Package errs defines the error taxonomy shared by the booking core and its collaborators.
package errs

import (
	"fmt"
	"net/http"

	cr "github.com/cockroachdb/errors"
)

// Sentinels. Concrete errors carry slot context in their message and are
// marked with one or more of these so callers can classify them with Is.
var (
	ErrValidation     = cr.New("validation failed")
	ErrInvalidState   = cr.New("invalid state")
	ErrInvalidBooking = cr.New("invalid booking")
	ErrStorage        = cr.New("storage failure")
	ErrNotFound       = cr.New("not found")
)

// New creates an error with a stack trace.
func New(msg string) error {
	return cr.New(msg)
}

// Newf creates a formatted error with a stack trace.
func Newf(format string, args ...interface{}) error {
	return cr.Newf(format, args...)
}

// Wrap annotates err with msg. A nil err stays nil.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return cr.Wrap(err, msg)
}

// Mark tags err with each of marks so errors.Is matches any of them.
func Mark(err error, marks ...error) error {
	for _, m := range marks {
		if err == nil {
			err = m
			continue
		}
		err = cr.Mark(err, m)
	}
	return err
}

// Is reports whether err matches reference, marks included.
func Is(err, reference error) bool {
	return cr.Is(err, reference)
}

// Validation builds an error marked ErrValidation.
func Validation(format string, args ...interface{}) error {
	return Mark(cr.Newf(format, args...), ErrValidation)
}

// InvalidState builds an error marked ErrInvalidState.
func InvalidState(format string, args ...interface{}) error {
	return Mark(cr.Newf(format, args...), ErrInvalidState)
}

// NotFound builds an error marked ErrNotFound.
func NotFound(format string, args ...interface{}) error {
	return Mark(cr.Newf(format, args...), ErrNotFound)
}

// Storage wraps a collaborator I/O failure and marks it ErrStorage.
func Storage(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return Mark(cr.Wrapf(err, format, args...), ErrStorage)
}

// Code returns the stable machine-readable code for err.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case Is(err, ErrValidation):
		return "VALIDATION"
	case Is(err, ErrInvalidBooking):
		return "INVALID_BOOKING"
	case Is(err, ErrInvalidState):
		return "INVALID_STATE"
	case Is(err, ErrNotFound):
		return "NOT_FOUND"
	case Is(err, ErrStorage):
		return "STORAGE"
	default:
		return "INTERNAL"
	}
}

// HTTPStatus maps err onto a response status.
func HTTPStatus(err error) int {
	switch Code(err) {
	case "VALIDATION":
		return http.StatusBadRequest
	case "INVALID_BOOKING", "INVALID_STATE":
		if Is(err, ErrNotFound) {
			return http.StatusNotFound
		}
		return http.StatusConflict
	case "NOT_FOUND":
		return http.StatusNotFound
	case "STORAGE":
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the user-facing message for err without the stack.
func Message(err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("%v", err)
}
