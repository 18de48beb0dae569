package main

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// envPrefix namespaces the environment overrides, e.g.
// ACCOUNTS_AUTH__SIGNING_KEY maps to auth.signing_key.
const envPrefix = "ACCOUNTS_"

// AppConfig is the full server configuration, loaded from an optional YAML
// file with environment variable overrides on top.
type AppConfig struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Auth     AuthConfig     `koanf:"auth"`
	Mail     MailConfig     `koanf:"mail"`
}

type ServerConfig struct {
	Addr    string `koanf:"addr"`
	BaseURL string `koanf:"base_url"`
	Views   string `koanf:"views"`
	Debug   bool   `koanf:"debug"`
}

type DatabaseConfig struct {
	DSN string `koanf:"dsn"`
}

type MailConfig struct {
	// LogOnly routes outbound email to the logger instead of a transport.
	LogOnly bool `koanf:"log_only"`
}

// AuthConfig satisfies the accounts.Config interface.
type AuthConfig struct {
	SigningKey      string   `koanf:"signing_key"`
	TokenExpiration int      `koanf:"token_expiration"`
	Issuer          string   `koanf:"issuer"`
	Audience        []string `koanf:"audience"`
	ContextKey      string   `koanf:"context_key"`
	AuthScheme      string   `koanf:"auth_scheme"`
}

func (c AuthConfig) GetSigningKey() string   { return c.SigningKey }
func (c AuthConfig) GetTokenExpiration() int { return c.TokenExpiration }
func (c AuthConfig) GetIssuer() string       { return c.Issuer }
func (c AuthConfig) GetAudience() []string   { return c.Audience }
func (c AuthConfig) GetContextKey() string   { return c.ContextKey }
func (c AuthConfig) GetAuthScheme() string   { return c.AuthScheme }

// DefaultConfig returns the baseline configuration; file and env values
// layer on top of it.
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Addr:    ":9876",
			BaseURL: "http://localhost:9876",
			Views:   "./views",
		},
		Database: DatabaseConfig{
			DSN: "file:accounts.db?cache=shared",
		},
		Auth: AuthConfig{
			TokenExpiration: 24,
			Issuer:          "accounts",
			ContextKey:      "user",
			AuthScheme:      "Bearer",
		},
		Mail: MailConfig{
			LogOnly: true,
		},
	}
}

// LoadConfig layers defaults, the optional YAML file, and ACCOUNTS_*
// environment variables, in that order.
func LoadConfig(path string) (*AppConfig, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %q: %w", path, err)
		}
	}

	err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(s, envPrefix)
		return strings.ReplaceAll(strings.ToLower(s), "__", ".")
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("load config env: %w", err)
	}

	cfg := DefaultConfig()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.Auth.SigningKey == "" {
		return nil, fmt.Errorf("auth.signing_key is required")
	}

	return cfg, nil
}
