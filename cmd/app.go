package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lepinkainen/tankobon/internal/batch"
	"github.com/lepinkainen/tankobon/internal/config"
	"github.com/lepinkainen/tankobon/internal/edition"
	"github.com/lepinkainen/tankobon/internal/observe"
	"github.com/lepinkainen/tankobon/internal/provider"
	"github.com/lepinkainen/tankobon/internal/store"
)

// app is the wired runtime shared by the lookup commands and the server.
type app struct {
	cfg       config.Config
	cache     *store.Cache
	chain     *provider.Chain
	mapper    *edition.Mapper
	optimizer *batch.Optimizer
	metrics   *observe.Setup
}

// newApp is swapped out in tests.
var newApp = buildApp

// buildApp opens the cache, builds the provider chain and the optimizer from
// the loaded configuration. exporter selects the metrics exporter.
func buildApp(ctx context.Context, exporter string) (*app, error) {
	cfg := config.Load()

	mapper, err := loadMapper(cfg.EditionsFile)
	if err != nil {
		return nil, err
	}

	metrics, err := observe.NewSetup(exporter)
	if err != nil {
		return nil, err
	}

	chain, err := provider.NewFromConfig(cfg, provider.WithMetrics(metrics.Metrics))
	if err != nil {
		_ = metrics.Shutdown(ctx)
		return nil, err
	}

	cache, err := store.Open(ctx, store.Config{
		Backend: cfg.Cache.Backend,
		Path:    cfg.Cache.Path,
		DSN:     cfg.Cache.DSN,
	}, store.WithMetrics(metrics.Metrics))
	if err != nil {
		_ = metrics.Shutdown(ctx)
		return nil, err
	}

	optimizer := batch.New(cache, chain,
		batch.WithMapper(mapper),
		batch.WithPrefetch(cfg.PrefetchWindow),
	)

	slog.Debug("Runtime ready",
		"cache", cfg.Cache.Backend,
		"providers", len(chain.Providers()),
		"editions", len(mapper.Names()),
	)

	return &app{
		cfg:       cfg,
		cache:     cache,
		chain:     chain,
		mapper:    mapper,
		optimizer: optimizer,
		metrics:   metrics,
	}, nil
}

// loadMapper builds the built-in edition table plus the optional YAML file.
func loadMapper(path string) (*edition.Mapper, error) {
	if path == "" {
		return edition.NewDefaultMapper()
	}
	extra, err := edition.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load editions file: %w", err)
	}
	slog.Debug("Loaded edition mappings", "file", path, "count", len(extra))
	return edition.NewDefaultMapper(extra...)
}

// Close waits for background work and releases the cache and metrics.
func (a *app) Close() error {
	if a.optimizer != nil {
		a.optimizer.Wait()
	}
	var errs []error
	if a.cache != nil {
		errs = append(errs, a.cache.Close())
	}
	if a.metrics != nil {
		errs = append(errs, a.metrics.Shutdown(context.Background()))
	}
	return errors.Join(errs...)
}
