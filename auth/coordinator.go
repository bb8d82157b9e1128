package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/habedi/gymctl/client"
	"github.com/rs/zerolog/log"
)

// DefaultRefreshTimeout bounds a single refresh exchange.
const DefaultRefreshTimeout = 30 * time.Second

// ErrNoRefreshToken is reported when the store holds no refresh token.
var ErrNoRefreshToken = errors.New("no refresh token available")

type outcome struct {
	resp *client.Response
	err  error
}

// pendingRequest is a request waiting on the refresh in flight. done is
// buffered so the refreshing goroutine never blocks on a waiter that left.
type pendingRequest struct {
	ctx  context.Context
	req  *client.Request
	done chan outcome
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithRefreshTimeout sets the upper bound of the refresh exchange. Zero or
// a negative value disables the bound.
func WithRefreshTimeout(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) { c.refreshTimeout = d }
}

// Coordinator makes sure at most one refresh exchange is in flight. Requests
// that fail with an expired token while a refresh is running are queued and
// replayed, in arrival order, once it completes.
type Coordinator struct {
	transport      Transport
	store          TokenStore
	refresher      Refresher
	signOut        SignOutFunc
	refreshTimeout time.Duration

	mu         sync.Mutex
	refreshing bool
	queue      []*pendingRequest
}

// NewCoordinator creates an idle coordinator.
func NewCoordinator(transport Transport, store TokenStore, refresher Refresher, signOut SignOutFunc, opts ...CoordinatorOption) *Coordinator {
	if signOut == nil {
		signOut = func() {}
	}
	c := &Coordinator{
		transport:      transport,
		store:          store,
		refresher:      refresher,
		signOut:        signOut,
		refreshTimeout: DefaultRefreshTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Refreshing reports whether a refresh exchange is in flight.
func (c *Coordinator) Refreshing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refreshing
}

// QueueLen returns the number of requests waiting on the current refresh.
func (c *Coordinator) QueueLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

// Resolve settles a request that failed because its access token expired or
// was invalid. The first such request starts a refresh and every later one
// joins the queue until it settles.
func (c *Coordinator) Resolve(ctx context.Context, req *client.Request) (*client.Response, error) {
	c.mu.Lock()
	if c.refreshing {
		p := &pendingRequest{ctx: ctx, req: req, done: make(chan outcome, 1)}
		c.queue = append(c.queue, p)
		depth := len(c.queue)
		c.mu.Unlock()

		log.Debug().Str("method", req.Method).Str("url", req.URL).Int("queue_depth", depth).Msg("Token refresh in progress, request queued")
		select {
		case o := <-p.done:
			return o.resp, o.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	// The request went out before the last refresh committed a new token.
	if current := c.currentToken(); current != "" && req.SentToken() != "" && req.SentToken() != current {
		c.mu.Unlock()
		log.Debug().Str("method", req.Method).Str("url", req.URL).Msg("Access token already refreshed, replaying request")
		return c.replay(ctx, req, current)
	}

	c.refreshing = true
	c.mu.Unlock()
	return c.refresh(ctx, req)
}

func (c *Coordinator) refresh(ctx context.Context, trigger *client.Request) (*client.Response, error) {
	var pending []*pendingRequest
	drained, signedOut, settled := false, false, 0

	// A panic before the queue was drained leaves the session unusable: sign
	// out (unless the sign-out hook itself panicked) and reject every waiter.
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		abort := &client.SessionExpiredError{Err: fmt.Errorf("token refresh aborted: %v", r)}
		if !drained {
			if !signedOut {
				signedOut = true
				c.signOut()
			}
			pending, settled = c.drain(), 0
		}
		for _, p := range pending[settled:] {
			p.done <- outcome{err: abort}
		}
		panic(r)
	}()

	token, err := c.exchange(ctx)
	if err != nil {
		sessErr := &client.SessionExpiredError{Err: err}
		// Sign out while still refreshing so that a 401 arriving meanwhile
		// queues behind this cycle instead of starting another exchange.
		log.Warn().Err(err).Msg("Token refresh failed, signing out")
		signedOut = true
		c.signOut()
		pending, drained = c.drain(), true
		for _, p := range pending {
			p.done <- outcome{err: sessErr}
			settled++
		}
		log.Debug().Int("queued", len(pending)).Msg("Rejected queued requests")
		return nil, sessErr
	}

	pending, drained = c.drain(), true
	log.Debug().Int("queued", len(pending)).Msg("Replaying queued requests")
	for _, p := range pending {
		var o outcome
		if err := p.ctx.Err(); err != nil {
			o.err = err
		} else {
			o.resp, o.err = c.replay(p.ctx, p.req, token)
		}
		p.done <- o
		settled++
	}
	return c.replay(ctx, trigger, token)
}

// exchange reads the refresh token, performs the refresh and commits the
// new pair. The exchange is detached from the caller's cancellation since
// other requests depend on it.
func (c *Coordinator) exchange(ctx context.Context) (string, error) {
	pair, err := c.store.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to read token store: %w", err)
	}
	if pair.RefreshToken == "" {
		return "", ErrNoRefreshToken
	}

	rctx := context.WithoutCancel(ctx)
	if c.refreshTimeout > 0 {
		var cancel context.CancelFunc
		rctx, cancel = context.WithTimeout(rctx, c.refreshTimeout)
		defer cancel()
	}

	log.Info().Msg("Access token expired or invalid, refreshing...")
	next, err := c.refresher.Refresh(rctx, pair.RefreshToken)
	if err != nil {
		return "", fmt.Errorf("failed to perform token refresh: %w", err)
	}
	if next.AccessToken == "" {
		return "", errors.New("refresh returned an empty access token")
	}
	if next.RefreshToken == "" {
		next.RefreshToken = pair.RefreshToken
	}

	if err := c.store.Save(rctx, next); err != nil {
		return "", fmt.Errorf("failed to save refreshed token: %w", err)
	}
	c.transport.SetDefaultHeader("Authorization", client.BearerPrefix+next.AccessToken)
	log.Info().Msg("Token refreshed and saved successfully.")
	return next.AccessToken, nil
}

// drain empties the queue and returns to idle in one step.
func (c *Coordinator) drain() []*pendingRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	pending := c.queue
	c.queue = nil
	c.refreshing = false
	return pending
}

func (c *Coordinator) replay(ctx context.Context, req *client.Request, token string) (*client.Response, error) {
	log.Debug().Str("method", req.Method).Str("url", req.URL).Msg("Replaying request with refreshed token")
	return c.transport.Do(ctx, req.Replay(token))
}

func (c *Coordinator) currentToken() string {
	return strings.TrimPrefix(c.transport.DefaultHeader("Authorization"), client.BearerPrefix)
}
