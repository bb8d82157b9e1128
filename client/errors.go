package client

import (
	"fmt"
	"net/http"
)

// TransportError means no response reached the client (network failure,
// timeout, cancelled context).
type TransportError struct {
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// HTTPError captures a non-2xx status whose body is kept verbatim.
type HTTPError struct {
	StatusCode int
	Body       []byte
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("unexpected HTTP status: %d %s. Body: %s", e.StatusCode, http.StatusText(e.StatusCode), string(e.Body))
}

// DomainError is a structured failure reported by the server.
type DomainError struct {
	StatusCode int
	Message    string
}

func (e *DomainError) Error() string { return e.Message }

// AuthRejectedError is a 401 for a reason other than an expired or invalid
// access token. The session has been signed out when it is returned.
type AuthRejectedError struct {
	Message string
}

func (e *AuthRejectedError) Error() string {
	return "authentication rejected: " + e.Message
}

func (e *AuthRejectedError) Unwrap() error {
	return &DomainError{StatusCode: http.StatusUnauthorized, Message: e.Message}
}

// SessionExpiredError means the access token could not be renewed. The
// session has been signed out when it is returned.
type SessionExpiredError struct {
	Err error
}

func (e *SessionExpiredError) Error() string {
	if e.Err == nil {
		return "session expired"
	}
	return fmt.Sprintf("session expired: %v", e.Err)
}

func (e *SessionExpiredError) Unwrap() error { return e.Err }
