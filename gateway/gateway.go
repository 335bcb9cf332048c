// Package gateway abstracts the language model backend behind a single call:
// rendered prompt in, generated text out. Provider selection, credentials and
// model naming are resolved by the implementation, never by the engine.
package gateway

import (
	"context"
	"errors"
	"fmt"
)

// Gateway is the one capability the engine needs from a language model.
// Implementations must honor ctx deadlines and return a typed *Error on
// failure so callers can tell timeouts apart from refusals.
type Gateway interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// ErrorKind classifies gateway failures.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	// KindTimeout means the caller-supplied deadline was exceeded.
	KindTimeout
	// KindUnavailable means the backend could not be reached or answered
	// with a server-side failure.
	KindUnavailable
	// KindBadResponse means the backend answered but the payload could not
	// be used.
	KindBadResponse
)

func (k ErrorKind) String() string {
	switch k {
	case KindTimeout:
		return "GatewayTimeoutError"
	case KindUnavailable:
		return "GatewayUnavailableError"
	case KindBadResponse:
		return "GatewayBadResponseError"
	default:
		return "GatewayUnknownError"
	}
}

// Error is the typed error returned by gateway implementations.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s (%s): %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a typed gateway error.
func NewError(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// IsTimeout reports whether err is a gateway timeout.
func IsTimeout(err error) bool {
	var ge *Error
	return errors.As(err, &ge) && ge.Kind == KindTimeout
}

// IsUnavailable reports whether err is a gateway availability failure.
func IsUnavailable(err error) bool {
	var ge *Error
	return errors.As(err, &ge) && ge.Kind == KindUnavailable
}
