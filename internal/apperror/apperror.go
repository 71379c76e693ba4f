// Package apperror carries business errors with a Kind the transport maps to an HTTP status.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindInternal Kind = iota
	KindBadRequest
	KindUnauthenticated
	KindNotFound
	KindConflict
	KindInvalidArgument
	KindInvalidOperation
	KindRateLimited
)

func (k Kind) String() string {
	switch k {
	case KindBadRequest:
		return "bad_request"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindInvalidArgument:
		return "invalid_argument"
	case KindInvalidOperation:
		return "invalid_operation"
	case KindRateLimited:
		return "rate_limited"
	default:
		return "internal"
	}
}

// Error is returned by the service layer. Msg is safe to show to clients.
type Error struct {
	Kind Kind
	Msg  string
	// Forbidden marks a NotFound that actually hides a permission failure.
	Forbidden bool
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

func BadRequest(msg string) *Error       { return &Error{Kind: KindBadRequest, Msg: msg} }
func Unauthenticated(msg string) *Error  { return &Error{Kind: KindUnauthenticated, Msg: msg} }
func NotFound(msg string) *Error         { return &Error{Kind: KindNotFound, Msg: msg} }
func Conflict(msg string) *Error         { return &Error{Kind: KindConflict, Msg: msg} }
func InvalidArgument(msg string) *Error  { return &Error{Kind: KindInvalidArgument, Msg: msg} }
func InvalidOperation(msg string) *Error { return &Error{Kind: KindInvalidOperation, Msg: msg} }
func RateLimited(msg string) *Error      { return &Error{Kind: KindRateLimited, Msg: msg} }

// Forbidden looks like NotFound to the client so that callers cannot probe for resources.
func Forbidden(msg string) *Error {
	return &Error{Kind: KindNotFound, Msg: msg, Forbidden: true}
}

// Internal wraps an unexpected failure; op names the failing operation for logs.
func Internal(op string, err error) *Error {
	return &Error{Kind: KindInternal, Msg: "internal server error", Err: fmt.Errorf("%s: %w", op, err)}
}

func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func IsForbidden(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Forbidden
}

// Status maps err to an HTTP status code.
func Status(err error) int {
	switch KindOf(err) {
	case KindBadRequest, KindInvalidOperation:
		return http.StatusBadRequest
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindInvalidArgument:
		return http.StatusUnprocessableEntity
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the client-facing text; internal details are never exposed.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindInternal {
		return e.Msg
	}
	return "internal server error"
}
