package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds all degrade configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Redis   RedisConfig   `yaml:"redis"`
	Log     LogConfig     `yaml:"log"`
}

type ServerConfig struct {
	Bind      string  `yaml:"bind"`
	Port      int     `yaml:"port"`
	RateLimit float64 `yaml:"rate_limit"` // requests per second per client IP, 0 disables
	Burst     int     `yaml:"burst"`
}

type StorageConfig struct {
	Backend string `yaml:"backend"` // "sqlite" or "redis"
	Path    string `yaml:"path"`    // sqlite database file
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	Prefix   string `yaml:"prefix"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Bind:  "127.0.0.1",
			Port:  37780,
			Burst: 50,
		},
		Storage: StorageConfig{
			Backend: "sqlite",
			Path:    "", // resolved at runtime via store.DefaultDBPath()
		},
		Redis: RedisConfig{
			URL:    "redis://127.0.0.1:6379/0",
			Prefix: "degrade:",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// DefaultPath returns the default config file path: ~/.degrade/config.yaml
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".degrade", "config.yaml"), nil
}

// Load returns the defaults overlaid with the YAML file at path, if it exists,
// and then with environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	cfg.applyEnv(os.Getenv)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv("DEGRADE_DB"); v != "" {
		c.Storage.Path = v
	}
	if v := getenv("DEGRADE_BACKEND"); v != "" {
		c.Storage.Backend = v
	}
	if v := getenv("DEGRADE_REDIS_URL"); v != "" {
		c.Redis.URL = v
	}
	if v := getenv("DEGRADE_REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := getenv("DEGRADE_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

// Validate reports configuration values that cannot work.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case "sqlite", "redis":
	default:
		return fmt.Errorf("storage.backend %q: want sqlite or redis", c.Storage.Backend)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Server.RateLimit < 0 {
		return fmt.Errorf("server.rate_limit must not be negative")
	}
	return nil
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}
