// Package apperrors defines the error taxonomy surfaced at the request
// boundary. Every handler maps failures through one of these kinds so
// the HTTP layer can translate them to a status code and a JSON body
// without leaking internals.
package apperrors

import (
	"errors"
	"net/http"
)

type Kind int

const (
	KindInternal       Kind = iota
	KindValidation          // missing/malformed required field -> 400
	KindAuthentication      // missing/invalid/expired token -> 401
	KindAuthorization       // visible but forbidden action -> 403
	KindNotFound            // absent, or exists but not visible -> 404
	KindConflict            // duplicate email/username/membership -> 400
)

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

func Validation(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}

func Authentication(msg string) *Error {
	return &Error{Kind: KindAuthentication, Message: msg}
}

func Authorization(msg string) *Error {
	return &Error{Kind: KindAuthorization, Message: msg}
}

// NotFound deliberately serves both "does not exist" and "exists but
// the caller has no membership": the two must be indistinguishable.
func NotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Message: msg}
}

func Conflict(msg string) *Error {
	return &Error{Kind: KindConflict, Message: msg}
}

func Internal(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Message: msg, Err: err}
}

// Status maps an error to its HTTP status code. Conflicts map to 400
// to match the API contract, not 409.
func Status(err error) int {
	var appErr *Error

	if !errors.As(err, &appErr) {
		return http.StatusInternalServerError
	}

	switch appErr.Kind {
	case KindValidation, KindConflict:
		return http.StatusBadRequest
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindAuthorization:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the client-safe message for an error. Internal
// failures collapse to a generic message so wrapped causes never reach
// the response body.
func Message(err error) string {
	var appErr *Error

	if !errors.As(err, &appErr) || appErr.Kind == KindInternal {
		return "Internal server error"
	}

	return appErr.Message
}
