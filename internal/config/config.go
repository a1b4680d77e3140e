// Package config loads application configuration from environment
// variables using koanf, with compiled defaults and fail-fast validation.
package config

import (
	"strings"
	"time"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
)

// envPrefix namespaces the application's environment variables, e.g.
// REPOROVER_SESSION__SECRET maps to session.secret.
const envPrefix = "REPOROVER_"

// minSecretLength is the shortest session signing secret accepted at
// startup. The upstream bearer credential lives inside the signed token,
// so a weak secret exposes more than the session itself.
const minSecretLength = 32

// Config holds all service configuration.
type Config struct {
	// Environment identifier: "development" or "production"
	Environment string `koanf:"environment"`

	AppName    string `koanf:"app_name"`
	ListenAddr string `koanf:"listen_addr"`
	BaseURL    string `koanf:"base_url"`
	LogLevel   string `koanf:"log_level"`

	Session SessionConfig `koanf:"session"`
	GitHub  GitHubConfig  `koanf:"github"`
	Gate    GateConfig    `koanf:"gate"`
	Dirs    DirsConfig    `koanf:"dirs"`
}

// SessionConfig holds the session token parameters.
type SessionConfig struct {
	Secret     string        `koanf:"secret"` // Required; process refuses to start without it
	TTL        time.Duration `koanf:"ttl"`
	CookieName string        `koanf:"cookie_name"`
}

// GitHubConfig holds the upstream identity API parameters.
type GitHubConfig struct {
	APIBaseURL string `koanf:"api_base_url"`
}

// GateConfig holds the route gate configuration.
type GateConfig struct {
	// Exclusions are path prefixes that bypass the gate entirely.
	Exclusions []string `koanf:"exclusions"`
}

// DirsConfig holds the working directories for the archive workflows.
type DirsConfig struct {
	Clones   string `koanf:"clones"`
	Archives string `koanf:"archives"`
	Uploads  string `koanf:"uploads"`
	Static   string `koanf:"static"`
}

func defaults() *Config {
	return &Config{
		Environment: "development",
		AppName:     "RepoRover",
		ListenAddr:  ":8080",
		BaseURL:     "http://localhost:8080",
		LogLevel:    "info",
		Session: SessionConfig{
			TTL:        time.Hour,
			CookieName: "session",
		},
		GitHub: GitHubConfig{
			APIBaseURL: "https://api.github.com",
		},
		Gate: GateConfig{
			Exclusions: []string{
				"/static/",
				"/favicon.ico",
				"/healthz",
				"/metrics",
				"/api/public/",
			},
		},
		Dirs: DirsConfig{
			Clones:   "./data/cloned_repos",
			Archives: "./data/zipped_repos",
			Uploads:  "./data/temp_uploads",
			Static:   "./static",
		},
	}
}

// Load builds the configuration from defaults overlaid with environment
// variables and validates it. A missing or weak session secret is a
// startup failure, never a silent default.
func Load() (*Config, error) {
	k := koanf.New(".")

	cfg := defaults()

	// REPOROVER_LISTEN_ADDR → listen_addr, REPOROVER_SESSION__SECRET →
	// session.secret. A single underscore stays inside a key; a double
	// underscore nests.
	err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
		return strings.ReplaceAll(s, "__", ".")
	}), nil)
	if err != nil {
		return nil, errors.Wrap(err, "load env vars")
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.Session.Secret == "" {
		return errors.New("config: session.secret is required (set REPOROVER_SESSION__SECRET)")
	}
	if len(c.Session.Secret) < minSecretLength {
		return errors.Errorf("config: session.secret must be at least %d bytes", minSecretLength)
	}
	if c.Session.TTL <= 0 {
		return errors.New("config: session.ttl must be positive")
	}
	if c.ListenAddr == "" {
		return errors.New("config: listen_addr is required")
	}
	return nil
}

// Production reports whether the service runs in a production deployment.
// It controls the Secure cookie attribute and the log output format.
func (c *Config) Production() bool {
	return c.Environment == "production"
}
