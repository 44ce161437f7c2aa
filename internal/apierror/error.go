// Package apierror defines the closed set of failures the service reports to
// clients. Every error crossing the transport boundary is an *Error.
package apierror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an Error. The set is closed; StatusCode switches over it
// exhaustively.
type Kind int

const (
	KindValidation Kind = iota + 1
	KindNotFound
	KindUnauthorized
	KindForbidden
	KindGeneric
	KindStore
	KindUnexpected
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindGeneric:
		return "generic"
	case KindStore:
		return "store"
	case KindUnexpected:
		return "unexpected"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is a classified failure. It is built where a precondition fails and
// rendered once by the transport layer.
type Error struct {
	Kind    Kind
	Message string
	Errors  []string

	status int
	cause  error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Cause returns the underlying error of Store and Unexpected failures.
func (e *Error) Cause() error {
	return e.cause
}

// StatusCode returns the HTTP status for the error.
func (e *Error) StatusCode() int {
	switch e.Kind {
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation:
		return http.StatusBadRequest
	case KindForbidden:
		return http.StatusForbidden
	case KindGeneric:
		if e.status < 400 || e.status > 599 {
			return http.StatusBadRequest
		}
		return e.status
	case KindStore, KindUnexpected:
		return http.StatusInternalServerError
	default:
		panic(fmt.Sprintf("apierror: unhandled kind %d", int(e.Kind)))
	}
}

func newError(kind Kind, status int, message string, errs []string, cause error) *Error {
	if errs == nil {
		errs = []string{}
	}
	return &Error{Kind: kind, Message: message, Errors: errs, status: status, cause: cause}
}

// Validation reports malformed input, bad credentials or an invalid token.
func Validation(message string, errs ...string) *Error {
	return newError(KindValidation, 0, message, errs, nil)
}

// NotFound reports a missing resource.
func NotFound(message string, errs ...string) *Error {
	return newError(KindNotFound, 0, message, errs, nil)
}

// Unauthorized reports a missing or invalid identity.
func Unauthorized(message string, errs ...string) *Error {
	return newError(KindUnauthorized, 0, message, errs, nil)
}

// Forbidden reports an identity that is not allowed to act.
func Forbidden(message string, errs ...string) *Error {
	return newError(KindForbidden, 0, message, errs, nil)
}

// Generic reports a client-visible failure with its own status code.
func Generic(status int, message string, errs ...string) *Error {
	return newError(KindGeneric, status, message, errs, nil)
}

// Store wraps a storage failure that happened while doing op.
func Store(op string, err error) *Error {
	return newError(KindStore, 0, fmt.Sprintf("Database error while %s.", op), nil, err)
}

// Unexpected wraps any failure that has no better classification.
func Unexpected(err error) *Error {
	return newError(KindUnexpected, 0, "An unexpected error occurred.", nil, err)
}

// From classifies err. Errors that are not an *Error become Unexpected.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return Unexpected(err)
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Kind == kind
}
