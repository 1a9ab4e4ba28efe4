package authclient

import (
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/goliatone/go-errors"
)

// OAuthEnv holds provider settings for the redirect login flow.
type OAuthEnv struct {
	Provider    string `env:"PROVIDER" envDefault:"github"`
	ClientID    string `env:"CLIENT_ID"`
	RedirectURI string `env:"REDIRECT_URI" envDefault:"http://127.0.0.1:8572/auth/callback"`
	Scope       string `env:"SCOPE" envDefault:"user:email"`
	AuthURL     string `env:"AUTH_URL" envDefault:"https://github.com/login/oauth/authorize"`
}

// EnvConfig is the environment-driven Config implementation.
type EnvConfig struct {
	BaseURL     string        `env:"BASE_URL" envDefault:"http://localhost:8080/api"`
	HTTPTimeout time.Duration `env:"HTTP_TIMEOUT" envDefault:"10s"`
	StorageDir  string        `env:"STORAGE_DIR"`
	OAuth       OAuthEnv      `envPrefix:"OAUTH_"`
}

var _ Config = (*EnvConfig)(nil)

// NewEnvConfig loads configuration from AUTHCLIENT_* environment variables.
// A missing OAuth client id is not an error here; it surfaces as a
// configuration error only when the OAuth flow is started.
func NewEnvConfig() (*EnvConfig, error) {
	cfg := &EnvConfig{}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: "AUTHCLIENT_"}); err != nil {
		return nil, errors.Wrap(err, errors.CategoryValidation, "failed to parse environment configuration")
	}

	if cfg.StorageDir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return nil, errors.Wrap(err, errors.CategoryOperation, "failed to resolve user config dir")
		}
		cfg.StorageDir = filepath.Join(base, "authclient")
	}

	return cfg, nil
}

func (c *EnvConfig) GetBaseURL() string            { return c.BaseURL }
func (c *EnvConfig) GetHTTPTimeout() time.Duration { return c.HTTPTimeout }
func (c *EnvConfig) GetStorageDir() string         { return c.StorageDir }
func (c *EnvConfig) GetOAuthProvider() string      { return c.OAuth.Provider }
func (c *EnvConfig) GetOAuthClientID() string      { return c.OAuth.ClientID }
func (c *EnvConfig) GetOAuthRedirectURI() string   { return c.OAuth.RedirectURI }
func (c *EnvConfig) GetOAuthScope() string         { return c.OAuth.Scope }
func (c *EnvConfig) GetOAuthAuthURL() string       { return c.OAuth.AuthURL }
