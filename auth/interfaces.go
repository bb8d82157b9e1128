package auth

import (
	"context"

	"github.com/habedi/gymctl/client"
)

// TokenStore defines the contract for any component that can store and
// retrieve the access/refresh token pair.
type TokenStore interface {
	Get(ctx context.Context) (TokenPair, error)
	Save(ctx context.Context, pair TokenPair) error
}

// Refresher defines the contract for any component that can exchange a
// refresh token for a new token pair.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (TokenPair, error)
}

// SignOutFunc clears the session upstream. It takes no arguments and
// returns nothing.
type SignOutFunc func()

// Transport is the part of *client.Client the coordinator and session use.
type Transport interface {
	Do(ctx context.Context, req *client.Request) (*client.Response, error)
	Send(ctx context.Context, req *client.Request) (*client.Response, error)
	SetDefaultHeader(key, value string)
	DeleteDefaultHeader(key string)
	DefaultHeader(key string) string
	Use(ic client.Interceptor) int
	Eject(id int) bool
}
