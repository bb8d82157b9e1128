package auth_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/habedi/gymctl/auth"
	"github.com/habedi/gymctl/client"
	"github.com/habedi/gymctl/db"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// seenRequest is what the fake API recorded about one incoming request.
type seenRequest struct {
	Method string
	Path   string
	Query  string
	Header http.Header
	Body   []byte
}

// apiServer is a fake API that accepts a single valid access token and
// rotates it on refresh.
type apiServer struct {
	srv *httptest.Server

	mu            sync.Mutex
	validToken    string
	nextAccess    string
	nextRefresh   string
	refreshStatus int
	refreshGate   chan struct{}
	seen          []seenRequest

	refreshCalls atomic.Int32
}

func newAPIServer(t *testing.T) *apiServer {
	t.Helper()
	api := &apiServer{nextAccess: "T2", nextRefresh: "R2"}
	api.srv = httptest.NewServer(http.HandlerFunc(api.handle))
	t.Cleanup(api.srv.Close)
	return api
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *apiServer) handle(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	if r.URL.Path == "/sessions/refresh-token" {
		a.refreshCalls.Add(1)
		a.mu.Lock()
		gate, status := a.refreshGate, a.refreshStatus
		a.mu.Unlock()
		if gate != nil {
			<-gate
		}
		if status != 0 {
			writeJSON(w, status, map[string]string{"message": "token.invalid"})
			return
		}
		var in struct {
			RefreshToken string `json:"refresh_token"`
		}
		if err := json.Unmarshal(body, &in); err != nil || in.RefreshToken == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": "refresh_token is required"})
			return
		}
		a.mu.Lock()
		a.validToken = a.nextAccess
		out := map[string]string{"token": a.nextAccess, "refresh_token": a.nextRefresh}
		a.mu.Unlock()
		writeJSON(w, http.StatusOK, out)
		return
	}

	a.mu.Lock()
	a.seen = append(a.seen, seenRequest{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.RawQuery,
		Header: r.Header.Clone(),
		Body:   body,
	})
	valid := a.validToken
	a.mu.Unlock()

	switch r.URL.Path {
	case "/forbidden":
		writeJSON(w, http.StatusForbidden, map[string]string{"message": "forbidden"})
		return
	case "/denied":
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "user.disabled"})
		return
	case "/broken":
		http.Error(w, "upstream exploded", http.StatusInternalServerError)
		return
	case "/always-expired":
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "token.expired"})
		return
	}

	if r.Header.Get("Authorization") != "Bearer "+valid {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "token.expired"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"path": r.URL.Path, "method": r.Method})
}

func (a *apiServer) setValidToken(tok string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.validToken = tok
}

func (a *apiServer) setRefreshStatus(status int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.refreshStatus = status
}

// holdRefresh makes refresh requests block until the returned function runs.
func (a *apiServer) holdRefresh() func() {
	gate := make(chan struct{})
	a.mu.Lock()
	a.refreshGate = gate
	a.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

func (a *apiServer) requests(path string) []seenRequest {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []seenRequest
	for _, s := range a.seen {
		if s.Path == path {
			out = append(out, s)
		}
	}
	return out
}

// memStore is an in-memory TokenStore.
type memStore struct {
	mu      sync.Mutex
	pair    auth.TokenPair
	getErr  error
	saveErr error
	saves   int
}

func (m *memStore) Get(context.Context) (auth.TokenPair, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pair, m.getErr
}

func (m *memStore) Save(_ context.Context, pair auth.TokenPair) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.pair = pair
	m.saves++
	return nil
}

func (m *memStore) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pair = auth.TokenPair{}
	return nil
}

func (m *memStore) current() auth.TokenPair {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pair
}

// fakeRefresher is a Refresher driven by the test.
type fakeRefresher struct {
	calls     atomic.Int32
	gate      chan struct{}
	pair      auth.TokenPair
	err       error
	panicWith any
	waitCtx   bool
}

func (f *fakeRefresher) Refresh(ctx context.Context, _ string) (auth.TokenPair, error) {
	f.calls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	if f.panicWith != nil {
		panic(f.panicWith)
	}
	if f.waitCtx {
		<-ctx.Done()
		return auth.TokenPair{}, ctx.Err()
	}
	return f.pair, f.err
}

// harness wires a real client to the fake API through a registered Lifecycle.
type harness struct {
	api       *apiServer
	client    *client.Client
	store     *memStore
	lifecycle *auth.Lifecycle
	signOuts  atomic.Int32
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{api: newAPIServer(t)}

	c, err := client.New(client.Options{BaseURL: h.api.srv.URL, Timeout: 5 * time.Second})
	require.NoError(t, err)
	c.SetDefaultHeader("Authorization", "Bearer T1")
	h.client = c

	h.store = &memStore{pair: auth.TokenPair{AccessToken: "T1", RefreshToken: "R1"}}
	h.lifecycle = auth.NewLifecycle(c, h.store, auth.NewAPIRefresher(c), auth.WithRefreshTimeout(5*time.Second))
	t.Cleanup(h.lifecycle.Register(func() { h.signOuts.Add(1) }))
	return h
}

func (h *harness) get(path string) (*client.Response, error) {
	return h.client.Do(context.Background(), client.NewRequest(http.MethodGet, path, nil))
}

func requireSessionExpired(t *testing.T, err error) *client.SessionExpiredError {
	t.Helper()
	var se *client.SessionExpiredError
	require.True(t, errors.As(err, &se), "expected SessionExpiredError, got %v", err)
	return se
}

// openMemoryDB opens a migrated in-memory SQLite database. A single
// connection keeps every query on the same in-memory database.
func openMemoryDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.Migrate(gdb))
	return gdb
}
