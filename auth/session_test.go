package auth_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/habedi/gymctl/auth"
	"github.com/habedi/gymctl/client"
	"github.com/habedi/gymctl/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newSessionServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /sessions", func(w http.ResponseWriter, r *http.Request) {
		var in struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		_ = json.NewDecoder(r.Body).Decode(&in)
		if in.Email != "ana@example.com" || in.Password != "secret123" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Invalid e-mail and/or password."})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"user":          map[string]string{"id": "u1", "name": "Ana", "email": in.Email, "avatar": ""},
			"token":         "T1",
			"refresh_token": "R1",
		})
	})
	mux.HandleFunc("POST /users", func(w http.ResponseWriter, r *http.Request) {
		var in map[string]string
		_ = json.NewDecoder(r.Body).Decode(&in)
		if in["email"] == "taken@example.com" {
			writeJSON(w, http.StatusConflict, map[string]string{"message": "This e-mail is already in use."})
			return
		}
		w.WriteHeader(http.StatusCreated)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

type sessionFixture struct {
	client  *client.Client
	gdb     *gorm.DB
	tokens  *auth.RepoTokenStore
	users   db.UserRepository
	session *auth.Session
}

func newSessionFixture(t *testing.T) *sessionFixture {
	t.Helper()
	srv := newSessionServer(t)
	c, err := client.New(client.Options{BaseURL: srv.URL})
	require.NoError(t, err)

	gdb := openMemoryDB(t)
	f := &sessionFixture{
		client: c,
		gdb:    gdb,
		tokens: auth.NewRepoTokenStore(db.NewTokenRepository(gdb)),
		users:  db.NewUserRepository(gdb),
	}
	f.session = auth.NewSession(c, f.tokens, f.users)
	lc := auth.NewLifecycle(c, f.tokens, auth.NewAPIRefresher(c))
	t.Cleanup(lc.Register(f.session.SignOutHook()))
	return f
}

func TestSessionSignInStoresUserAndToken(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	require.False(t, f.session.IsSignedIn())

	require.NoError(t, f.session.SignIn(ctx, "ana@example.com", "secret123"))

	assert.True(t, f.session.IsSignedIn())
	assert.Equal(t, db.User{ID: "u1", Name: "Ana", Email: "ana@example.com"}, f.session.User())
	assert.Equal(t, "Bearer T1", f.client.DefaultHeader("Authorization"))

	pair, err := f.session.Tokens(ctx)
	require.NoError(t, err)
	assert.Equal(t, auth.TokenPair{AccessToken: "T1", RefreshToken: "R1"}, pair)

	// A new process restores the same session.
	c2, err := client.New(client.Options{BaseURL: f.client.BaseURL()})
	require.NoError(t, err)
	restored := auth.NewSession(c2, f.tokens, f.users)
	require.NoError(t, restored.Load(ctx))
	assert.Equal(t, "Ana", restored.User().Name)
	assert.Equal(t, "Bearer T1", c2.DefaultHeader("Authorization"))
}

func TestSessionSignInRejected(t *testing.T) {
	f := newSessionFixture(t)

	err := f.session.SignIn(context.Background(), "ana@example.com", "wrong")
	var de *client.DomainError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "Invalid e-mail and/or password.", de.Message)
	assert.False(t, f.session.IsSignedIn())
}

func TestSessionSignOutClearsEverything(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	require.NoError(t, f.session.SignIn(ctx, "ana@example.com", "secret123"))

	f.session.SignOutHook()()

	assert.False(t, f.session.IsSignedIn())
	assert.Equal(t, db.User{}, f.session.User())
	assert.Empty(t, f.client.DefaultHeader("Authorization"))

	pair, err := f.tokens.Get(ctx)
	require.NoError(t, err)
	assert.True(t, pair.Empty())
	u, err := f.users.Get(ctx)
	require.NoError(t, err)
	assert.Nil(t, u)

	restored := auth.NewSession(f.client, f.tokens, f.users)
	require.NoError(t, restored.Load(ctx))
	assert.False(t, restored.IsSignedIn())
}

func TestSessionUpdateUserProfile(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	assert.ErrorIs(t, f.session.UpdateUserProfile(ctx, db.User{ID: "u1"}), auth.ErrNotSignedIn)

	require.NoError(t, f.session.SignIn(ctx, "ana@example.com", "secret123"))
	updated := f.session.User()
	updated.Name = "Ana Maria"
	updated.Avatar = "u1.png"
	require.NoError(t, f.session.UpdateUserProfile(ctx, updated))

	assert.Equal(t, "Ana Maria", f.session.User().Name)
	stored, err := f.users.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, updated, *stored)
}

func TestSessionSignUp(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	require.NoError(t, f.session.SignUp(ctx, "Bea", "bea@example.com", "secret123"))
	assert.False(t, f.session.IsSignedIn(), "sign-up does not sign in")

	err := f.session.SignUp(ctx, "Bea", "taken@example.com", "secret123")
	var de *client.DomainError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, http.StatusConflict, de.StatusCode)
}
