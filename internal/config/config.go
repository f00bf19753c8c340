// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authkeep Contributors

// Package config loads and validates service configuration.
//
// Configuration is an explicit struct - listen addresses, database URL,
// signing secrets, token TTLs - validated once at startup and injected into
// components. Sources are merged in order: defaults, YAML file, command-line
// flags.
package config

import (
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// Config is the root configuration for the service.
type Config struct {
	Server        ServerConfig        `koanf:"server"`
	Observability ObservabilityConfig `koanf:"observability"`
	Database      DatabaseConfig      `koanf:"database"`
	Auth          AuthConfig          `koanf:"auth"`
	Log           LogConfig           `koanf:"log"`
}

// ServerConfig configures the HTTP boundary.
type ServerConfig struct {
	Addr string `koanf:"addr"`
	// CookieSecure marks auth cookies Secure; enable behind TLS.
	CookieSecure bool `koanf:"cookie_secure"`
}

// ObservabilityConfig configures the metrics and health probe server.
type ObservabilityConfig struct {
	Addr string `koanf:"addr"`
}

// DatabaseConfig configures the credential store connection.
type DatabaseConfig struct {
	URL string `koanf:"url"`
}

// AuthConfig configures the token issuer and reset flow.
type AuthConfig struct {
	AccessSecret    string        `koanf:"access_secret"`
	RefreshSecret   string        `koanf:"refresh_secret"`
	AccessTokenTTL  time.Duration `koanf:"access_token_ttl"`
	RefreshTokenTTL time.Duration `koanf:"refresh_token_ttl"`
}

// LogConfig configures structured logging output.
type LogConfig struct {
	Format string `koanf:"format"` // "json" or "text"
}

// Default returns the built-in defaults. Signing secrets have no default;
// they must come from the file or flags.
func Default() Config {
	return Config{
		Server:        ServerConfig{Addr: ":8080"},
		Observability: ObservabilityConfig{Addr: "127.0.0.1:9100"},
		Auth: AuthConfig{
			AccessTokenTTL:  15 * time.Minute,
			RefreshTokenTTL: 7 * 24 * time.Hour,
		},
		Log: LogConfig{Format: "json"},
	}
}

// RegisterFlags declares configuration flags on the given flag set. Flag
// names mirror config keys, so the posflag provider maps them directly.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("server.addr", "", "HTTP listen address")
	fs.Bool("server.cookie_secure", false, "mark auth cookies Secure")
	fs.String("observability.addr", "", "metrics/health listen address")
	fs.String("database.url", "", "PostgreSQL connection URL")
	fs.String("auth.access_secret", "", "access token signing secret")
	fs.String("auth.refresh_secret", "", "refresh token signing secret")
	fs.Duration("auth.access_token_ttl", 0, "access token lifetime")
	fs.Duration("auth.refresh_token_ttl", 0, "refresh token lifetime")
	fs.String("log.format", "", "log output format (json or text)")
}

// Load merges defaults, an optional YAML file, and command-line flags into
// a validated Config. An empty path skips the file source.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").
				With("path", path).
				Wrap(err)
		}
	}

	if flags != nil {
		// Only explicitly set flags participate in the merge; unchanged
		// flag defaults must not shadow Default() or file values.
		provider := posflag.ProviderWithValue(flags, ".", k, func(key, value string) (string, any) {
			if fl := flags.Lookup(key); fl == nil || !fl.Changed {
				return "", nil
			}
			return key, value
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").
				With("source", "flags").
				Wrap(err)
		}
	}

	cfg := Default()
	unmarshalConf := koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
			),
			Result: &cfg,
		},
	}
	if err := k.UnmarshalWithConf("", &cfg, unmarshalConf); err != nil {
		return nil, oops.Code("CONFIG_PARSE_FAILED").Wrap(err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for startup-fatal problems.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return oops.Code("CONFIG_INVALID").Errorf("server.addr is required")
	}
	if c.Database.URL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("database.url is required")
	}
	if c.Auth.AccessSecret == "" {
		return oops.Code("CONFIG_INVALID").Errorf("auth.access_secret is required")
	}
	if c.Auth.RefreshSecret == "" {
		return oops.Code("CONFIG_INVALID").Errorf("auth.refresh_secret is required")
	}
	if c.Auth.AccessSecret == c.Auth.RefreshSecret {
		return oops.Code("CONFIG_INVALID").Errorf("auth.access_secret and auth.refresh_secret must differ")
	}
	if c.Auth.AccessTokenTTL <= 0 {
		return oops.Code("CONFIG_INVALID").Errorf("auth.access_token_ttl must be positive")
	}
	if c.Auth.RefreshTokenTTL <= 0 {
		return oops.Code("CONFIG_INVALID").Errorf("auth.refresh_token_ttl must be positive")
	}
	if c.Auth.RefreshTokenTTL <= c.Auth.AccessTokenTTL {
		return oops.Code("CONFIG_INVALID").Errorf("auth.refresh_token_ttl must exceed auth.access_token_ttl")
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return oops.Code("CONFIG_INVALID").
			With("format", c.Log.Format).
			Errorf("log.format must be json or text")
	}
	return nil
}
