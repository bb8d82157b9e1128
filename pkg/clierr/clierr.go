package clierr

import (
	"context"
	"errors"

	"github.com/habedi/gymctl/client"
)

// Type categorizes a CLI-facing error for consistent messaging & exit codes.
type Type string

const (
	Validation Type = "validation"
	NotFound   Type = "not_found"
	Session    Type = "session"
	Remote     Type = "remote"
	Network    Type = "network"
	Internal   Type = "internal"
)

// Error is a structured user-facing error.
type Error struct {
	Type    Type
	Message string
	Err     error // optional underlying error
}

func (e *Error) Error() string { return e.Message }
func (e *Error) Unwrap() error { return e.Err }

// New constructs a new CLI Error.
func New(t Type, msg string, err error) *Error { return &Error{Type: t, Message: msg, Err: err} }

// ExitCode maps the error type to a process exit status.
func (e *Error) ExitCode() int {
	switch e.Type {
	case Validation:
		return 2
	case Session:
		return 3
	case Remote, NotFound:
		return 4
	case Network:
		return 5
	default:
		return 1
	}
}

// FromError classifies err by the client error taxonomy. Errors that are
// already *Error are returned unchanged.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var ce *Error
	if errors.As(err, &ce) {
		return ce
	}

	var (
		sessionExpired *client.SessionExpiredError
		rejected       *client.AuthRejectedError
		domain         *client.DomainError
		httpErr        *client.HTTPError
		transport      *client.TransportError
	)
	switch {
	case errors.As(err, &sessionExpired):
		return New(Session, "Your session has expired. Please run 'gymctl login' again.", err)
	case errors.As(err, &rejected):
		return New(Session, "You were signed out: "+rejected.Message, err)
	case errors.As(err, &domain):
		if domain.StatusCode == 404 {
			return New(NotFound, domain.Message, err)
		}
		return New(Remote, domain.Message, err)
	case errors.As(err, &httpErr):
		return New(Remote, "The server could not process the request.", err)
	case errors.Is(err, context.Canceled):
		return New(Internal, "Operation cancelled.", err)
	case errors.As(err, &transport), errors.Is(err, context.DeadlineExceeded):
		return New(Network, "Could not reach the server. Check your connection and the configured server URL.", err)
	}
	return New(Internal, err.Error(), err)
}
