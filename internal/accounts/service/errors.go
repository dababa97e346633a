package service

import (
	"errors"
	"fmt"
)

// Kind classifies every failure leaving the service. Each kind maps to
// exactly one transport status.
type Kind int

const (
	KindServerError Kind = iota
	KindInvalidArgument
	KindNotFound
	KindAlreadyExists
	KindUnauthorized
)

func (k Kind) String() string {
	switch k {
	case KindInvalidArgument:
		return "invalid_argument"
	case KindNotFound:
		return "not_found"
	case KindAlreadyExists:
		return "already_exists"
	case KindUnauthorized:
		return "unauthorized"
	default:
		return "server_error"
	}
}

// Error is the only error type returned by UserService. Message is safe to
// show to a client; Err carries internal detail for logs and is never
// rendered.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	if e.Message == "" {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the kind sentinels below, so errors.Is(err, ErrNotFound) holds
// for any not-found error regardless of its message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t.Message != "" || t.Err != nil {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrInvalidArgument = &Error{Kind: KindInvalidArgument}
	ErrNotFound        = &Error{Kind: KindNotFound}
	ErrAlreadyExists   = &Error{Kind: KindAlreadyExists}
	ErrUnauthorized    = &Error{Kind: KindUnauthorized}
	ErrServer          = &Error{Kind: KindServerError}
)

const (
	msgInvalidCredentials = "Invalid username or password."
	msgInvalidToken       = "Invalid or missing bearer token."
	msgServerError        = "internal server error"
)

// KindOf reports the kind of err. Anything that is not an *Error is a
// server error.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindServerError
}

// MessageOf returns the client-safe message of err. Server errors always
// get the fixed generic message.
func MessageOf(err error) string {
	var se *Error
	switch {
	case !errors.As(err, &se), se.Kind == KindServerError:
		return msgServerError
	case se.Message == "":
		return se.Kind.String()
	default:
		return se.Message
	}
}

func invalidArgument(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidArgument, Message: fmt.Sprintf(format, args...)}
}

func notFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func alreadyExists(field, value string) *Error {
	return &Error{Kind: KindAlreadyExists, Message: fmt.Sprintf("%s '%s' already exists.", fieldLabel(field), value)}
}

func unauthorized(msg string, cause error) *Error {
	return &Error{Kind: KindUnauthorized, Message: msg, Err: cause}
}

func serverError(err error) *Error {
	return &Error{Kind: KindServerError, Message: msgServerError, Err: err}
}

func fieldLabel(field string) string {
	switch field {
	case "username":
		return "Username"
	case "email":
		return "Email"
	default:
		return "Record"
	}
}
