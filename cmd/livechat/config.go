package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/livechat-sdk-go/livechat"
)

const (
	envPrefix     = "LIVECHAT_"
	configPathEnv = "LIVECHAT_CONFIG"
)

// DefaultConfigPaths are searched when no config path is given.
var DefaultConfigPaths = []string{
	"livechat.yaml",
	"livechat.yml",
}

// Config is the CLI configuration.
type Config struct {
	Client  livechat.Config `koanf:"client"`
	API     APIConfig       `koanf:"api"`
	User    UserConfig      `koanf:"user"`
	Log     LogConfig       `koanf:"log"`
	Metrics MetricsConfig   `koanf:"metrics"`
}

// APIConfig points at the REST API.
type APIConfig struct {
	BaseURL         string        `koanf:"base_url"`
	BreakerFailures uint32        `koanf:"breaker_failures"`
	BreakerTimeout  time.Duration `koanf:"breaker_timeout"`
}

// UserConfig is the identity to connect as. When ID is empty the identity
// is read from the client token.
type UserConfig struct {
	ID    string `koanf:"id"`
	Name  string `koanf:"name"`
	Email string `koanf:"email"`
	Role  string `koanf:"role"`
}

// LogConfig configures zerolog.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // json or console
}

// MetricsConfig enables a Prometheus endpoint during chat sessions.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

func defaultConfig() *Config {
	client := livechat.DefaultConfig()
	client.URL = "ws://localhost:3001/ws"
	return &Config{
		Client: client,
		API: APIConfig{
			BaseURL:         "http://localhost:3001/api",
			BreakerFailures: 5,
			BreakerTimeout:  30 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadConfig layers defaults, the YAML file and LIVECHAT_* environment
// variables, in that order, then validates the client section.
func LoadConfig(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	if err := cfg.Client.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(configPathEnv); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// envTransformFunc maps LIVECHAT_SECTION_SOME_KEY to section.some_key.
//
// Examples:
//   - LIVECHAT_CLIENT_URL -> client.url
//   - LIVECHAT_CLIENT_MAX_RECONNECT_ATTEMPTS -> client.max_reconnect_attempts
//   - LIVECHAT_API_BASE_URL -> api.base_url
func envTransformFunc(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, envPrefix))
	if key == "config" {
		return ""
	}
	section, rest, ok := strings.Cut(key, "_")
	if !ok {
		return key
	}
	return section + "." + rest
}

// UserIdentity returns the configured identity, falling back to the token claims.
func (c *Config) UserIdentity() (livechat.User, error) {
	if c.User.ID != "" {
		return livechat.User{ID: c.User.ID, Name: c.User.Name, Email: c.User.Email, Role: c.User.Role}, nil
	}
	if c.Client.Token == "" {
		return livechat.User{}, fmt.Errorf("no user configured: set user.id or client.token")
	}
	return livechat.UserFromToken(c.Client.Token)
}

// newLogger builds the zerolog logger for cfg.
func newLogger(cfg LogConfig, out io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.TimeFieldFormat = time.RFC3339
	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}
