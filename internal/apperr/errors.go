// Package apperr defines the error taxonomy shared by services and handlers.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an application error.
type Kind string

const (
	// KindValidation indicates malformed or missing input.
	KindValidation Kind = "VALIDATION"

	// KindConflict indicates a uniqueness violation.
	KindConflict Kind = "CONFLICT"

	// KindUnauthorized indicates missing or invalid credentials.
	KindUnauthorized Kind = "UNAUTHORIZED"

	// KindForbidden indicates a role mismatch.
	KindForbidden Kind = "FORBIDDEN"

	// KindNotFound indicates a resource was not found on a read.
	KindNotFound Kind = "NOT_FOUND"

	// KindMethodNotAllowed indicates a state machine guard violation.
	KindMethodNotAllowed Kind = "METHOD_NOT_ALLOWED"

	// KindUnavailable indicates an unexpected persistence failure.
	KindUnavailable Kind = "UNAVAILABLE"

	// KindInternal indicates a programming or infrastructure error.
	KindInternal Kind = "INTERNAL"
)

// Error is an application error with a kind and a client-safe message.
type Error struct {
	Err     error
	Kind    Kind
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Validation creates a validation error.
func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// Conflict creates a conflict error.
func Conflict(format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

// Unauthorized creates an unauthorized error.
func Unauthorized(message string) *Error {
	return &Error{Kind: KindUnauthorized, Message: message}
}

// Forbidden creates a forbidden error.
func Forbidden(message string) *Error {
	return &Error{Kind: KindForbidden, Message: message}
}

// NotFound creates a not found error.
func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// MethodNotAllowed creates a state guard error.
func MethodNotAllowed(format string, args ...any) *Error {
	return &Error{Kind: KindMethodNotAllowed, Message: fmt.Sprintf(format, args...)}
}

// Unavailable wraps a persistence failure. The cause is kept for logs only.
func Unavailable(message string, err error) *Error {
	return &Error{Kind: KindUnavailable, Message: message, Err: err}
}

// Internal wraps an unexpected failure.
func Internal(message string, err error) *Error {
	return &Error{Kind: KindInternal, Message: message, Err: err}
}

// KindOf returns the kind of err. Errors that are not *Error are internal.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// Is reports whether err is an application error of the given kind.
func Is(err error, kind Kind) bool {
	if err == nil {
		return false
	}
	return KindOf(err) == kind
}

// Message returns the client-safe message of err.
func Message(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "internal server error"
}

// HTTPStatus maps err to a response status code.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// StatusText is the short error code written to ErrorResponse.Error.
func StatusText(err error) string {
	switch KindOf(err) {
	case KindValidation:
		return "bad_request"
	case KindConflict:
		return "conflict"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindMethodNotAllowed:
		return "method_not_allowed"
	case KindUnavailable:
		return "service_unavailable"
	default:
		return "internal_error"
	}
}
