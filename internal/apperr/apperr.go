// Package apperr classifies failures so callers can tell a missing setting from a bad
// form, an unreachable upstream, or an absent record.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the failure category.
type Kind int

const (
	KindUnknown Kind = iota
	KindConfig
	KindValidation
	KindTransport
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindValidation:
		return "validation"
	case KindTransport:
		return "transport"
	case KindNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is checks against a kind.
var (
	ErrConfig     = &Error{Kind: KindConfig}
	ErrValidation = &Error{Kind: KindValidation}
	ErrTransport  = &Error{Kind: KindTransport}
	ErrNotFound   = &Error{Kind: KindNotFound}
)

// Error carries a kind, a user-facing message and an optional cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return e.Message + ": " + e.Err.Error()
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	default:
		return e.Kind.String() + " error"
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, ErrNotFound) works for
// every not-found error regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func newf(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// Config reports a required setting that is absent.
func Config(format string, args ...any) error {
	return newf(KindConfig, nil, format, args...)
}

// Validation reports a missing or malformed input field.
func Validation(format string, args ...any) error {
	return newf(KindValidation, nil, format, args...)
}

// NotFound reports an operation against a record that does not exist.
func NotFound(format string, args ...any) error {
	return newf(KindNotFound, nil, format, args...)
}

// Transport wraps a network, upstream or store failure.
func Transport(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return newf(KindTransport, err, format, args...)
}

// KindOf returns the kind of err, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// HTTPStatus maps an error to the status code handlers respond with.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindTransport:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
