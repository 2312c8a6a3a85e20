package store

import (
	"context"
	"fmt"
	"log/slog"

	tberrors "github.com/lepinkainen/tankobon/internal/errors"
)

// Config selects and locates a backend.
type Config struct {
	Backend string // sqlite, bolt, postgres or none
	Path    string // file path for sqlite and bolt
	DSN     string // connection string for postgres
}

// Validate reports configuration that no backend can be opened from.
func (cfg Config) Validate() error {
	switch cfg.Backend {
	case "sqlite", "", "bolt", "none":
		return nil
	case "postgres":
		if cfg.DSN == "" {
			return tberrors.NewConfigError("cache.dsn", "postgres cache backend requires a DSN")
		}
		return nil
	default:
		return tberrors.NewConfigError("cache.backend", fmt.Sprintf("unknown cache backend %q", cfg.Backend))
	}
}

// OpenBackend opens the configured backend. Invalid configuration is
// returned as a ConfigError.
func OpenBackend(cfg Config) (Backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Backend {
	case "sqlite", "":
		path := cfg.Path
		if path == "" {
			path = "./cache.db"
		}
		return OpenSQLite(path)
	case "bolt":
		path := cfg.Path
		if path == "" {
			path = "./cache.bolt"
		}
		return OpenBolt(path)
	case "postgres":
		return OpenPostgres(cfg.DSN)
	default:
		return nil, nil
	}
}

// Open returns a Cache for cfg. Invalid configuration is a ConfigError. A
// valid backend that cannot be opened does not fail the caller: the Cache
// runs without persistence and every lookup is a miss.
func Open(ctx context.Context, cfg Config, opts ...Option) (*Cache, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	backend, err := OpenBackend(cfg)
	if err != nil {
		slog.WarnContext(ctx, "Cache store unavailable, continuing without cache", "backend", cfg.Backend, "error", err)
		return New(nil, opts...), nil
	}
	if backend == nil {
		slog.InfoContext(ctx, "Cache store disabled")
		return New(nil, opts...), nil
	}
	slog.DebugContext(ctx, "Cache store opened", "backend", backend.Name())
	return New(backend, opts...), nil
}
