package backend

import (
	"errors"
	"fmt"
)

// Kind classifies every failure the adapter reports.
type Kind uint8

const (
	_ Kind = iota
	// KindAuthentication: no credential, or the API rejected it. Log in again.
	KindAuthentication
	// KindAuthorization: the credential is valid but may not do this.
	KindAuthorization
	// KindValidation: the input was refused before any request was made.
	KindValidation
	// KindTransport: the API could not be reached or failed. Safe to retry.
	KindTransport
	// KindConflict: the API refused the request; Message is its explanation.
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindAuthentication:
		return "authentication"
	case KindAuthorization:
		return "authorization"
	case KindValidation:
		return "validation"
	case KindTransport:
		return "transport"
	case KindConflict:
		return "conflict"
	}
	return "unknown"
}

// Error is the only error type operations of this package return, apart from
// context cancellation wrapped as a transport error.
type Error struct {
	Kind Kind
	// Status is the HTTP status of the response, 0 when none was received.
	Status int
	// Message is safe to show to the user. For conflicts it is the API's
	// own detail text.
	Message string
	// Field names the offending input for validation errors.
	Field string
	Err   error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Status != 0 {
		return fmt.Sprintf("%s error (%d): %s", e.Kind, e.Status, msg)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the kind sentinels below, so errors.Is(err, ErrTransport) works
// regardless of message or status.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Status == 0 && t.Message == "" && t.Err == nil && t.Field == ""
}

// Retryable reports whether repeating the call may succeed.
func (e *Error) Retryable() bool {
	return e.Kind == KindTransport
}

var (
	ErrAuthentication = &Error{Kind: KindAuthentication}
	ErrAuthorization  = &Error{Kind: KindAuthorization}
	ErrValidation     = &Error{Kind: KindValidation}
	ErrTransport      = &Error{Kind: KindTransport}
	ErrConflict       = &Error{Kind: KindConflict}
)

// KindOf returns the kind of err, or 0 when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// MessageOf returns the user-facing message carried by err, if any.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return ""
}

func validationError(field, msg string) *Error {
	return &Error{Kind: KindValidation, Field: field, Message: msg}
}

func notLoggedIn() *Error {
	return &Error{Kind: KindAuthentication, Message: "not logged in"}
}

func denied(action string) *Error {
	return &Error{Kind: KindAuthorization, Message: action + " is not permitted"}
}
