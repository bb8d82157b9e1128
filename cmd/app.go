package cmd

import (
	"context"
	"fmt"

	"github.com/habedi/gymctl/auth"
	"github.com/habedi/gymctl/client"
	"github.com/habedi/gymctl/config"
	"github.com/habedi/gymctl/db"
	"github.com/habedi/gymctl/gym"
	"github.com/habedi/gymctl/pkg/clierr"
	"github.com/rs/zerolog/log"
)

// cliState holds the persistent flags and the lazily built application.
type cliState struct {
	configPath string
	server     string

	app *app
}

// app is everything a command that talks to the API needs.
type app struct {
	cfg       *config.Config
	client    *client.Client
	session   *auth.Session
	lifecycle *auth.Lifecycle
	gym       *gym.API

	unregister func()
}

// resolveConfigPath returns the --config flag or the default location.
func (s *cliState) resolveConfigPath() (string, error) {
	if s.configPath != "" {
		return s.configPath, nil
	}
	return config.DefaultPath()
}

// loadConfig reads the configuration file and applies the environment and
// the --server flag on top of it.
func (s *cliState) loadConfig() (*config.Config, string, error) {
	path, err := s.resolveConfigPath()
	if err != nil {
		return nil, "", err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, path, err
	}
	cfg.ApplyEnv()
	if s.server != "" {
		cfg.Server.URL = s.server
	}
	if err := cfg.Validate(); err != nil {
		return nil, path, clierr.New(clierr.Validation, err.Error(), err)
	}
	return cfg, path, nil
}

// load builds the application on first use: it opens the session database,
// creates the client, restores the stored session and registers the
// token-refresh interceptor.
func (s *cliState) load(ctx context.Context) (*app, error) {
	if s.app != nil {
		return s.app, nil
	}
	cfg, _, err := s.loadConfig()
	if err != nil {
		return nil, err
	}

	if cfg.Storage.Database != "" {
		db.Path = cfg.Storage.Database
	} else {
		db.ConfigurePath()
	}
	if err := db.InitDB(); err != nil {
		return nil, clierr.New(clierr.Internal, "Failed to open the session database.", err)
	}

	c, err := client.New(client.Options{
		BaseURL:           cfg.Server.URL,
		Timeout:           cfg.Server.Timeout,
		UserAgent:         "gymctl/" + version,
		MaxRetries:        cfg.Server.MaxRetries,
		RequestsPerSecond: cfg.Server.RequestsPerSecond,
	})
	if err != nil {
		db.Shutdown()
		return nil, clierr.New(clierr.Validation, err.Error(), err)
	}

	tokens := auth.NewRepoTokenStore(db.NewTokenRepository(db.GetDB()))
	session := auth.NewSession(c, tokens, db.NewUserRepository(db.GetDB()))
	if err := session.Load(ctx); err != nil {
		db.Shutdown()
		return nil, fmt.Errorf("failed to restore session: %w", err)
	}

	lifecycle := auth.NewLifecycle(c, tokens, auth.NewAPIRefresher(c), auth.WithRefreshTimeout(cfg.Auth.RefreshTimeout))
	s.app = &app{
		cfg:        cfg,
		client:     c,
		session:    session,
		lifecycle:  lifecycle,
		gym:        gym.New(c),
		unregister: lifecycle.Register(session.SignOutHook()),
	}
	log.Debug().Str("server", cfg.Server.URL).Str("db", db.Path).Bool("signed_in", session.IsSignedIn()).Msg("Application loaded")
	return s.app, nil
}

// loadSignedIn is load for commands that need a signed-in user.
func (s *cliState) loadSignedIn(ctx context.Context) (*app, error) {
	a, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	if !a.session.IsSignedIn() {
		return nil, clierr.New(clierr.Session, auth.ErrNotSignedIn.Error(), auth.ErrNotSignedIn)
	}
	return a, nil
}

func (s *cliState) close() {
	if s.app == nil {
		return
	}
	s.app.unregister()
	db.Shutdown()
	s.app = nil
}
