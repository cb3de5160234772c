// Package config loads server configuration from an optional YAML file
// and CASCADE_-prefixed environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Debug     DebugConfig     `koanf:"debug"`
	Metrics   MetricsConfig   `koanf:"metrics"`
	Storage   StorageConfig   `koanf:"storage"`
	Templates TemplatesConfig `koanf:"templates"`
}

type ServerConfig struct {
	Port           int    `koanf:"port"`
	RequestTimeout string `koanf:"request_timeout"`
}

// Timeout parses the configured request timeout.
func (c ServerConfig) Timeout() (time.Duration, error) {
	if c.RequestTimeout == "" {
		return 30 * time.Second, nil
	}
	d, err := time.ParseDuration(c.RequestTimeout)
	if err != nil {
		return 0, fmt.Errorf("invalid request_timeout %q: %w", c.RequestTimeout, err)
	}
	return d, nil
}

type DebugConfig struct {
	// ExposeStack controls whether error responses include the failing
	// step's stack trace. Keep off in production.
	ExposeStack bool `koanf:"expose_stack"`
}

type MetricsConfig struct {
	Enabled bool `koanf:"enabled"`
}

type StorageConfig struct {
	Driver   string         `koanf:"driver"` // memory, sqlite, postgres
	SQLite   SQLiteConfig   `koanf:"sqlite"`
	Postgres PostgresConfig `koanf:"postgres"`
}

type SQLiteConfig struct {
	Path string `koanf:"path"`
}

type PostgresConfig struct {
	DSN string `koanf:"dsn"`
}

type TemplatesConfig struct {
	Dir     string `koanf:"dir"`
	Pattern string `koanf:"pattern"`
}

// Load reads configuration from path (skipped when empty or absent),
// then overlays CASCADE_ environment variables, then fills defaults.
// Env keys map with double underscores as separators, e.g.
// CASCADE_SERVER__PORT=9090.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("load %s: %w", path, err)
			}
		}
	}

	if err := k.Load(env.Provider("CASCADE_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "CASCADE_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	// Default values
	if !k.Exists("server.port") {
		k.Set("server.port", 8080)
	}
	if !k.Exists("server.request_timeout") {
		k.Set("server.request_timeout", "30s")
	}
	if !k.Exists("metrics.enabled") {
		k.Set("metrics.enabled", true)
	}
	if !k.Exists("storage.driver") {
		k.Set("storage.driver", "memory")
	}
	if !k.Exists("templates.pattern") {
		k.Set("templates.pattern", "*.html")
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
