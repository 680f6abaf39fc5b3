// Package apperr defines the error kinds surfaced by moderation and session
// operations.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for propagation and display.
type Kind string

const (
	Unauthenticated Kind = "unauthenticated"
	Forbidden       Kind = "forbidden"
	InvalidInput    Kind = "invalid_input"
	RemoteFailure   Kind = "remote_failure"
	ParseFailure    Kind = "parse_failure"
	NetworkFailure  Kind = "network_failure"
)

// Error is a classified error. Detail carries the text shown to the operator;
// for remote failures it is the response body verbatim.
type Error struct {
	Kind   Kind
	Op     string
	Status int
	Detail string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Detail
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Op == "" {
		return msg
	}
	return fmt.Sprintf("%s: %s", e.Op, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// New returns an Error of the given kind.
func New(kind Kind, op, detail string) *Error {
	return &Error{Kind: kind, Op: op, Detail: detail}
}

// Wrap classifies err under kind.
func Wrap(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Remote builds a RemoteFailure (or Unauthenticated/Forbidden for 401/403)
// from a non-success HTTP response.
func Remote(op string, status int, body string) *Error {
	kind := RemoteFailure
	switch status {
	case http.StatusUnauthorized:
		kind = Unauthenticated
	case http.StatusForbidden:
		kind = Forbidden
	}
	if body == "" {
		body = http.StatusText(status)
	}
	return &Error{Kind: kind, Op: op, Status: status, Detail: body}
}

// KindOf returns the kind of err, or "" if err is not classified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Detail returns the operator-facing message for err.
func Detail(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Detail != "" {
		return e.Detail
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

// HTTPStatus maps err to the status the console API responds with.
func HTTPStatus(err error) int {
	var e *Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError
	}
	switch e.Kind {
	case Unauthenticated:
		return http.StatusUnauthorized
	case Forbidden:
		return http.StatusForbidden
	case InvalidInput:
		return http.StatusBadRequest
	case NetworkFailure:
		return http.StatusGatewayTimeout
	case RemoteFailure:
		if e.Status >= 400 && e.Status < 500 {
			return e.Status
		}
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
