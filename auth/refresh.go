package auth

import (
	"context"
	"fmt"
	"net/http"

	"github.com/habedi/gymctl/client"
)

// RefreshPath is the API path of the refresh exchange.
const RefreshPath = "sessions/refresh-token"

// APIRefresher performs the refresh exchange against the API. Requests go
// through Transport.Send, so they never reach the interceptor chain.
type APIRefresher struct {
	transport Transport
	path      string
}

// NewAPIRefresher creates a refresher posting to RefreshPath.
func NewAPIRefresher(transport Transport) *APIRefresher {
	return &APIRefresher{transport: transport, path: RefreshPath}
}

type refreshResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refresh_token"`
}

// Refresh exchanges refreshToken for a new token pair.
func (r *APIRefresher) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	req := client.NewRequest(http.MethodPost, r.path, map[string]string{"refresh_token": refreshToken})
	resp, err := r.transport.Send(ctx, req)
	if err != nil {
		if msg, ok := resp.FailureMessage(); ok {
			return TokenPair{}, &client.DomainError{StatusCode: resp.StatusCode, Message: msg}
		}
		return TokenPair{}, err
	}

	var body refreshResponse
	if err := resp.DecodeJSON(&body); err != nil {
		return TokenPair{}, fmt.Errorf("failed to decode refresh response: %w", err)
	}
	if body.Token == "" {
		return TokenPair{}, fmt.Errorf("refresh response did not contain an access token")
	}
	return TokenPair{AccessToken: body.Token, RefreshToken: body.RefreshToken}, nil
}
