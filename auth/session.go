package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/habedi/gymctl/client"
	"github.com/habedi/gymctl/db"
	"github.com/rs/zerolog/log"
)

// API paths used by the session.
const (
	SessionsPath = "sessions"
	UsersPath    = "users"
)

// ErrNotSignedIn is returned by operations that need a signed-in user.
var ErrNotSignedIn = errors.New("not signed in; please run 'gymctl login' first")

// SessionTokenStore is a TokenStore that can also forget its tokens.
type SessionTokenStore interface {
	TokenStore
	Clear(ctx context.Context) error
}

// Session is the signed-in state shared by every command: the current user,
// the stored tokens and the default Authorization header of the transport.
type Session struct {
	transport Transport
	tokens    SessionTokenStore
	users     db.UserRepository

	mu   sync.RWMutex
	user *db.User
}

// NewSession creates a signed-out session. Call Load to restore a stored one.
func NewSession(transport Transport, tokens SessionTokenStore, users db.UserRepository) *Session {
	return &Session{transport: transport, tokens: tokens, users: users}
}

type signInResponse struct {
	User         db.User `json:"user"`
	Token        string  `json:"token"`
	RefreshToken string  `json:"refresh_token"`
}

// Load restores the stored user and token. A partially stored session is
// treated as signed out.
func (s *Session) Load(ctx context.Context) error {
	user, err := s.users.Get(ctx)
	if err != nil {
		return fmt.Errorf("failed to load user: %w", err)
	}
	pair, err := s.tokens.Get(ctx)
	if err != nil {
		return fmt.Errorf("failed to load token: %w", err)
	}
	if user == nil || pair.AccessToken == "" {
		log.Debug().Msg("No stored session found")
		return nil
	}
	s.apply(user, pair.AccessToken)
	log.Debug().Str("user", user.Email).Msg("Session restored")
	return nil
}

// SignIn creates a session with the API and stores the user and tokens.
func (s *Session) SignIn(ctx context.Context, email, password string) error {
	req := client.NewRequest(http.MethodPost, SessionsPath, map[string]string{
		"email":    email,
		"password": password,
	})
	resp, err := s.transport.Do(ctx, req)
	if err != nil {
		return err
	}

	var body signInResponse
	if err := resp.DecodeJSON(&body); err != nil {
		return fmt.Errorf("failed to decode sign-in response: %w", err)
	}
	if body.Token == "" {
		return errors.New("sign-in response did not contain a token")
	}

	if err := s.users.Upsert(ctx, &body.User); err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}
	if err := s.tokens.Save(ctx, TokenPair{AccessToken: body.Token, RefreshToken: body.RefreshToken}); err != nil {
		return err
	}
	s.apply(&body.User, body.Token)
	log.Info().Str("user", body.User.Email).Msg("Signed in")
	return nil
}

// SignUp registers a new account. It does not sign in.
func (s *Session) SignUp(ctx context.Context, name, email, password string) error {
	req := client.NewRequest(http.MethodPost, UsersPath, map[string]string{
		"name":     name,
		"email":    email,
		"password": password,
	})
	if _, err := s.transport.Do(ctx, req); err != nil {
		return err
	}
	log.Info().Str("user", email).Msg("Account created")
	return nil
}

// SignOut forgets the user and the tokens, locally and on the transport.
// The in-memory state is cleared even when storage fails.
func (s *Session) SignOut(ctx context.Context) error {
	s.mu.Lock()
	s.user = nil
	s.mu.Unlock()
	s.transport.DeleteDefaultHeader("Authorization")

	var errs []error
	if err := s.users.Clear(ctx); err != nil {
		errs = append(errs, fmt.Errorf("failed to clear user: %w", err))
	}
	if err := s.tokens.Clear(ctx); err != nil {
		errs = append(errs, err)
	}
	log.Info().Msg("Signed out")
	return errors.Join(errs...)
}

// SignOutHook returns SignOut as a hook for the auth interceptor.
func (s *Session) SignOutHook() SignOutFunc {
	return func() {
		if err := s.SignOut(context.Background()); err != nil {
			log.Error().Err(err).Msg("Failed to clear session during sign-out")
		}
	}
}

// User returns the signed-in user, or the zero User when signed out.
func (s *Session) User() db.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return db.User{}
	}
	return *s.user
}

// IsSignedIn reports whether a user is loaded.
func (s *Session) IsSignedIn() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user != nil
}

// Tokens returns the stored token pair.
func (s *Session) Tokens(ctx context.Context) (TokenPair, error) {
	return s.tokens.Get(ctx)
}

// UpdateUserProfile replaces the signed-in user, in memory and in storage.
func (s *Session) UpdateUserProfile(ctx context.Context, user db.User) error {
	if !s.IsSignedIn() {
		return ErrNotSignedIn
	}
	if err := s.users.Upsert(ctx, &user); err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}
	s.mu.Lock()
	s.user = &user
	s.mu.Unlock()
	return nil
}

func (s *Session) apply(user *db.User, accessToken string) {
	s.transport.SetDefaultHeader("Authorization", client.BearerPrefix+accessToken)
	u := *user
	s.mu.Lock()
	s.user = &u
	s.mu.Unlock()
}
