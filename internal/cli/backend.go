package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/lazypower/degrade/internal/config"
	"github.com/lazypower/degrade/internal/counter"
	"github.com/lazypower/degrade/internal/logging"
	"github.com/lazypower/degrade/internal/redisstore"
	"github.com/lazypower/degrade/internal/server"
	"github.com/lazypower/degrade/internal/store"
)

// backend is a host store the CLI can run counters against.
type backend interface {
	server.Store
	Close() error
}

func loadConfig() (config.Config, error) {
	path := configPath
	if path == "" {
		var err error
		path, err = config.DefaultPath()
		if err != nil {
			return config.Config{}, err
		}
	}
	return config.Load(path)
}

func newLogger(cfg config.Config) *slog.Logger {
	return logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
}

// openBackend opens the store selected by cfg.Storage.Backend.
func openBackend(ctx context.Context, cfg config.Config) (backend, string, error) {
	switch cfg.Storage.Backend {
	case "redis":
		s, err := redisstore.Open(ctx, redisstore.Config{
			URL:      cfg.Redis.URL,
			Password: cfg.Redis.Password,
			Prefix:   cfg.Redis.Prefix,
		})
		if err != nil {
			return nil, "", err
		}
		return s, cfg.Redis.URL, nil
	default:
		dbPath := cfg.Storage.Path
		if dbPath == "" {
			var err error
			dbPath, err = store.DefaultDBPath()
			if err != nil {
				return nil, "", fmt.Errorf("resolve db path: %w", err)
			}
		}
		db, err := store.Open(dbPath)
		if err != nil {
			return nil, "", fmt.Errorf("open database: %w", err)
		}
		return db, dbPath, nil
	}
}

// openLocal loads config and opens the configured store with a controller over it.
func openLocal(ctx context.Context) (backend, *counter.Controller, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	be, _, err := openBackend(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return be, counter.New(be, counter.NewType(), counter.WithLogger(newLogger(cfg))), nil
}
