package auth

import (
	"context"
	"net/http"

	"github.com/habedi/gymctl/client"
	"github.com/rs/zerolog/log"
)

// Failure messages the API sends with a 401 when the access token can be renewed.
const (
	MessageTokenExpired = "token.expired"
	MessageTokenInvalid = "token.invalid"
)

// Interceptor maps failed responses to the client error taxonomy and routes
// expired-token failures into its Coordinator.
type Interceptor struct {
	coord   *Coordinator
	signOut SignOutFunc
}

// NewInterceptor creates an interceptor bound to coord. signOut is invoked
// when the server rejects the credentials for a reason a refresh cannot fix.
func NewInterceptor(coord *Coordinator, signOut SignOutFunc) *Interceptor {
	if signOut == nil {
		signOut = func() {}
	}
	return &Interceptor{coord: coord, signOut: signOut}
}

// Coordinator returns the coordinator the interceptor delegates to.
func (i *Interceptor) Coordinator() *Coordinator { return i.coord }

// Intercept implements client.Interceptor.
func (i *Interceptor) Intercept(ctx context.Context, req *client.Request, resp *client.Response, err error) (*client.Response, error) {
	if err == nil {
		return resp, nil
	}
	if resp == nil {
		return nil, err
	}
	msg, ok := resp.FailureMessage()
	if !ok {
		return resp, err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		if IsRefreshable(msg) {
			if req.Replayed() {
				log.Warn().Str("method", req.Method).Str("url", req.URL).Str("reason", msg).Msg("Replayed request rejected with a renewed token")
				return nil, &client.SessionExpiredError{Err: &client.DomainError{StatusCode: resp.StatusCode, Message: msg}}
			}
			return i.coord.Resolve(ctx, req)
		}
		log.Warn().Str("method", req.Method).Str("url", req.URL).Str("reason", msg).Msg("Authentication rejected, signing out")
		i.signOut()
		return resp, &client.AuthRejectedError{Message: msg}
	}

	return resp, &client.DomainError{StatusCode: resp.StatusCode, Message: msg}
}

// IsRefreshable reports whether a 401 failure message means the access token
// can be renewed with the refresh token.
func IsRefreshable(message string) bool {
	return message == MessageTokenExpired || message == MessageTokenInvalid
}
