package client

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Request    *Request
}

// OK reports whether the status code is in the 2xx range.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// DecodeJSON unmarshals the body into v.
func (r *Response) DecodeJSON(v any) error {
	if len(r.Body) == 0 {
		return fmt.Errorf("empty response body (status %d)", r.StatusCode)
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("failed to parse response body: %w", err)
	}
	return nil
}

// FailureMessage extracts the message field of a structured failure body.
// The second value is false when the body is not a JSON object with a
// non-empty string message.
func (r *Response) FailureMessage() (string, bool) {
	if r == nil || len(r.Body) == 0 {
		return "", false
	}
	var body struct {
		Message *string `json:"message"`
	}
	if err := json.Unmarshal(r.Body, &body); err != nil {
		return "", false
	}
	if body.Message == nil || *body.Message == "" {
		return "", false
	}
	return *body.Message, true
}
