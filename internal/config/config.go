package config

import (
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/custodia-labs/sercha-relay/internal/core/domain"
)

// ProviderEnv holds the OAuth app settings of one provider.
type ProviderEnv struct {
	ClientID     string   `env:"CLIENT_ID"`
	ClientSecret string   `env:"CLIENT_SECRET"`
	RedirectURI  string   `env:"REDIRECT_URI"`
	Scopes       []string `env:"SCOPES" envSeparator:","`
}

// Config is the relay's process configuration.
type Config struct {
	Host    string `env:"HOST" envDefault:"0.0.0.0"`
	Port    int    `env:"PORT" envDefault:"8000"`
	BaseURL string `env:"BASE_URL" envDefault:"http://localhost:8000"`

	// RedisURL selects the Redis store. When empty, DatabaseURL is used.
	RedisURL      string `env:"REDIS_URL"`
	DatabaseURL   string `env:"DATABASE_URL"`
	EncryptionKey string `env:"ENCRYPTION_KEY"`

	CORSAllowedOrigins []string      `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000,http://127.0.0.1:3000"`
	RateLimitRPM       int           `env:"RATE_LIMIT_RPM" envDefault:"120"`
	HTTPTimeout        time.Duration `env:"HTTP_TIMEOUT" envDefault:"10s"`
	StateTTL           time.Duration `env:"STATE_TTL" envDefault:"600s"`
	CredentialTTL      time.Duration `env:"CREDENTIAL_TTL" envDefault:"600s"`
	SweepInterval      time.Duration `env:"SWEEP_INTERVAL" envDefault:"1m"`
	LogLevel           string        `env:"LOG_LEVEL" envDefault:"info"`

	HubSpot  ProviderEnv `envPrefix:"HUBSPOT_"`
	Airtable ProviderEnv `envPrefix:"AIRTABLE_"`
	Notion   ProviderEnv `envPrefix:"NOTION_"`
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values the parser cannot.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: PORT %d out of range", domain.ErrInvalidInput, c.Port)
	}
	if c.RedisURL == "" && c.DatabaseURL == "" {
		return fmt.Errorf("%w: REDIS_URL or DATABASE_URL is required", domain.ErrInvalidInput)
	}
	if c.StateTTL <= 0 || c.CredentialTTL <= 0 {
		return fmt.Errorf("%w: STATE_TTL and CREDENTIAL_TTL must be positive", domain.ErrInvalidInput)
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// SlogLevel parses LOG_LEVEL.
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("%w: LOG_LEVEL %q", domain.ErrInvalidInput, c.LogLevel)
	}
	return level, nil
}

// Providers returns the OAuth app settings keyed by provider. Providers
// without client credentials are included but not configured.
func (c *Config) Providers() map[domain.ProviderType]domain.ProviderConfig {
	raw := map[domain.ProviderType]ProviderEnv{
		domain.ProviderTypeHubSpot:  c.HubSpot,
		domain.ProviderTypeAirtable: c.Airtable,
		domain.ProviderTypeNotion:   c.Notion,
	}

	out := make(map[domain.ProviderType]domain.ProviderConfig, len(raw))
	for pt, p := range raw {
		redirect := p.RedirectURI
		if redirect == "" {
			redirect = strings.TrimSuffix(c.BaseURL, "/") + "/integrations/" + string(pt) + "/oauth2callback"
		}
		out[pt] = domain.ProviderConfig{
			Type:         pt,
			ClientID:     p.ClientID,
			ClientSecret: p.ClientSecret,
			RedirectURI:  redirect,
			Scopes:       splitScopes(p.Scopes),
		}
	}
	return out
}

// splitScopes accepts comma- and space-separated scope lists.
func splitScopes(in []string) []string {
	var out []string
	for _, s := range in {
		out = append(out, strings.Fields(s)...)
	}
	return out
}
