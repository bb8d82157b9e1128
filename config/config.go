package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/habedi/gymctl/pkg/validation"
	"gopkg.in/yaml.v3"
)

// Environment variables that override the file.
const (
	EnvServer   = "GYMCTL_SERVER"
	EnvDatabase = "GYMCTL_DB"
	EnvConfig   = "GYMCTL_CONFIG"
)

// Config is the gymctl configuration file.
type Config struct {
	Server struct {
		URL               string        `yaml:"url"`
		Timeout           time.Duration `yaml:"timeout"`
		RequestsPerSecond float64       `yaml:"requests-per-second"`
		MaxRetries        int           `yaml:"max-retries"`
	} `yaml:"server"`
	Auth struct {
		RefreshTimeout time.Duration `yaml:"refresh-timeout"`
	} `yaml:"auth"`
	Storage struct {
		Database string `yaml:"database"`
	} `yaml:"storage"`
	Concurrency int `yaml:"concurrency"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	cfg := &Config{}
	cfg.Server.URL = "http://localhost:3333"
	cfg.Server.Timeout = 15 * time.Second
	cfg.Server.RequestsPerSecond = 10
	cfg.Server.MaxRetries = 2
	cfg.Auth.RefreshTimeout = 30 * time.Second
	cfg.Concurrency = 4
	return cfg
}

// DefaultPath returns ~/.gymctl/config.yaml, or $GYMCTL_CONFIG when set.
func DefaultPath() (string, error) {
	if p := os.Getenv(EnvConfig); p != "" {
		return p, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".gymctl", "config.yaml"), nil
}

// Load reads the configuration at path. A missing file yields the defaults.
// Fields absent from the file keep their default values.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg to path, creating the directory if needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// ApplyEnv overrides fields from the environment.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvServer); v != "" {
		c.Server.URL = v
	}
	if v := os.Getenv(EnvDatabase); v != "" {
		c.Storage.Database = v
	}
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	if err := validation.ValidateServerURL(c.Server.URL); err != nil {
		return err
	}
	if c.Server.Timeout < 0 {
		return fmt.Errorf("server.timeout must not be negative")
	}
	if c.Server.RequestsPerSecond < 0 {
		return fmt.Errorf("server.requests-per-second must not be negative")
	}
	if c.Server.MaxRetries < 0 {
		return fmt.Errorf("server.max-retries must not be negative")
	}
	if c.Auth.RefreshTimeout < 0 {
		return fmt.Errorf("auth.refresh-timeout must not be negative")
	}
	return validation.ValidateConcurrency(c.Concurrency)
}

type setter func(c *Config, value string) error

var setters = map[string]setter{
	"server.url": func(c *Config, v string) error {
		c.Server.URL = v
		return nil
	},
	"server.timeout": func(c *Config, v string) error {
		return parseDuration(v, &c.Server.Timeout)
	},
	"server.requests-per-second": func(c *Config, v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid number %q", v)
		}
		c.Server.RequestsPerSecond = f
		return nil
	},
	"server.max-retries": func(c *Config, v string) error {
		return parseInt(v, &c.Server.MaxRetries)
	},
	"auth.refresh-timeout": func(c *Config, v string) error {
		return parseDuration(v, &c.Auth.RefreshTimeout)
	},
	"storage.database": func(c *Config, v string) error {
		c.Storage.Database = v
		return nil
	},
	"concurrency": func(c *Config, v string) error {
		return parseInt(v, &c.Concurrency)
	},
}

// Keys lists the keys accepted by Set.
func Keys() []string {
	keys := make([]string, 0, len(setters))
	for k := range setters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Set assigns value to the dotted key and validates the result. On error the
// configuration is left unchanged.
func (c *Config) Set(key, value string) error {
	set, ok := setters[key]
	if !ok {
		return fmt.Errorf("unknown config key %q", key)
	}
	next := *c
	if err := set(&next, value); err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if err := next.Validate(); err != nil {
		return err
	}
	*c = next
	return nil
}

func parseDuration(v string, dst *time.Duration) error {
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid duration %q", v)
	}
	*dst = d
	return nil
}

func parseInt(v string, dst *int) error {
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid integer %q", v)
	}
	*dst = n
	return nil
}
