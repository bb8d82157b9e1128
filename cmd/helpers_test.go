package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// fakeAPI is an in-process gym API. It accepts one access token at a time
// and rotates it on refresh.
type fakeAPI struct {
	srv *httptest.Server

	mu            sync.Mutex
	validToken    string
	refreshStatus int
	userName      string
	groups        []string
	avatar        string
	history       []int

	refreshCalls atomic.Int32
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	api := &fakeAPI{userName: "Ana", groups: []string{"costas", "ombro"}}
	mux := http.NewServeMux()

	mux.HandleFunc("POST /sessions", func(w http.ResponseWriter, r *http.Request) {
		var in map[string]string
		_ = json.NewDecoder(r.Body).Decode(&in)
		if in["email"] != "ana@example.com" || in["password"] != "secret123" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": "E-mail e/ou senha incorreta."})
			return
		}
		api.mu.Lock()
		api.validToken = "T1"
		name := api.userName
		api.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{
			"user":          map[string]string{"id": "u1", "name": name, "email": "ana@example.com"},
			"token":         "T1",
			"refresh_token": "R1",
		})
	})
	mux.HandleFunc("POST /sessions/refresh-token", func(w http.ResponseWriter, r *http.Request) {
		n := api.refreshCalls.Add(1)
		api.mu.Lock()
		defer api.mu.Unlock()
		if api.refreshStatus != 0 {
			writeJSON(w, api.refreshStatus, map[string]string{"message": "token.invalid"})
			return
		}
		api.validToken = fmt.Sprintf("T%d", n+1)
		writeJSON(w, http.StatusOK, map[string]string{"token": api.validToken, "refresh_token": fmt.Sprintf("R%d", n+1)})
	})
	mux.HandleFunc("POST /users", func(w http.ResponseWriter, r *http.Request) {
		var in map[string]string
		_ = json.NewDecoder(r.Body).Decode(&in)
		if in["email"] == "ana@example.com" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Este e-mail já está em uso."})
			return
		}
		w.WriteHeader(http.StatusCreated)
	})

	mux.Handle("GET /groups", api.authed(func(w http.ResponseWriter, r *http.Request) {
		api.mu.Lock()
		defer api.mu.Unlock()
		writeJSON(w, http.StatusOK, api.groups)
	}))
	mux.Handle("GET /exercises/bygroup/{group}", api.authed(func(w http.ResponseWriter, r *http.Request) {
		switch r.PathValue("group") {
		case "costas":
			writeJSON(w, http.StatusOK, []map[string]any{
				{"id": 1, "name": "Puxada frontal", "series": 3, "repetitions": "12", "group": "costas"},
				{"id": 2, "name": "Remada curvada", "series": 3, "repetitions": "12", "group": "costas"},
			})
		case "ombro":
			writeJSON(w, http.StatusOK, []map[string]any{
				{"id": 3, "name": "Elevação lateral", "series": 4, "repetitions": "10", "group": "ombro"},
			})
		default:
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "Grupo não encontrado."})
		}
	}))
	mux.Handle("GET /exercises/{id}", api.authed(func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "1" {
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "Exercício não encontrado."})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"id": 1, "name": "Puxada frontal", "series": 3, "repetitions": "12", "group": "costas",
			"demo": "puxada.gif", "thumb": "puxada.png",
		})
	}))
	mux.Handle("POST /history", api.authed(func(w http.ResponseWriter, r *http.Request) {
		var in struct {
			ExerciseID int `json:"exercise_id"`
		}
		_ = json.NewDecoder(r.Body).Decode(&in)
		api.mu.Lock()
		api.history = append(api.history, in.ExerciseID)
		api.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
	}))
	mux.Handle("GET /history", api.authed(func(w http.ResponseWriter, r *http.Request) {
		api.mu.Lock()
		defer api.mu.Unlock()
		if len(api.history) == 0 {
			writeJSON(w, http.StatusOK, []any{})
			return
		}
		writeJSON(w, http.StatusOK, []map[string]any{{
			"title": "19.10.26",
			"data":  []map[string]any{{"id": 1, "name": "Puxada frontal", "group": "costas", "hour": "08:15"}},
		}})
	}))
	mux.Handle("PUT /users", api.authed(func(w http.ResponseWriter, r *http.Request) {
		var in map[string]string
		_ = json.NewDecoder(r.Body).Decode(&in)
		if in["password"] != "" && in["old_password"] != "secret123" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": "A senha antiga não confere."})
			return
		}
		api.mu.Lock()
		api.userName = in["name"]
		api.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{})
	}))
	mux.Handle("PATCH /users/avatar", api.authed(func(w http.ResponseWriter, r *http.Request) {
		_, header, err := r.FormFile("avatar")
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Avatar is required."})
			return
		}
		api.mu.Lock()
		api.avatar = header.Filename
		api.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]string{"avatar": header.Filename})
	}))

	api.srv = httptest.NewServer(mux)
	t.Cleanup(api.srv.Close)
	return api
}

func (a *fakeAPI) authed(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a.mu.Lock()
		valid := a.validToken
		a.mu.Unlock()
		if valid == "" || r.Header.Get("Authorization") != "Bearer "+valid {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "token.expired"})
			return
		}
		next(w, r)
	})
}

// expireToken makes the server reject the current access token.
func (a *fakeAPI) expireToken() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.validToken = "rotated-elsewhere"
}

func (a *fakeAPI) setGroups(groups ...string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.groups = groups
}

func (a *fakeAPI) setRefreshStatus(status int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.refreshStatus = status
}

// testEnv runs the command tree against a fake API with an isolated
// configuration file and session database.
type testEnv struct {
	t          *testing.T
	api        *fakeAPI
	dir        string
	configPath string
}

type result struct {
	stdout string
	stderr string
	code   int
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("GYMCTL_HOME", dir)
	t.Setenv("GYMCTL_SERVER", "")
	t.Setenv("GYMCTL_DB", "")
	t.Setenv("GYMCTL_CONFIG", "")

	api := newFakeAPI(t)
	configPath := filepath.Join(dir, "config.yaml")
	cfg := fmt.Sprintf("server:\n  url: %s\n  max-retries: 0\n  requests-per-second: 0\nstorage:\n  database: %s\n",
		api.srv.URL, filepath.Join(dir, "session.db"))
	require.NoError(t, os.WriteFile(configPath, []byte(cfg), 0o600))

	return &testEnv{t: t, api: api, dir: dir, configPath: configPath}
}

func (e *testEnv) run(stdin string, args ...string) result {
	e.t.Helper()
	var out, errb bytes.Buffer
	code := run(context.Background(), append([]string{"--config", e.configPath}, args...), strings.NewReader(stdin), &out, &errb)
	return result{stdout: out.String(), stderr: errb.String(), code: code}
}

func (e *testEnv) login() {
	e.t.Helper()
	res := e.run("ana@example.com\nsecret123\n", "login")
	require.Equal(e.t, 0, res.code, res.stderr)
}
