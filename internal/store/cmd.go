package store

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"

	"github.com/spf13/viper"
)

// statsOutput is where StatsCmd writes its table
var statsOutput io.Writer = os.Stdout

// StatsCmd prints row counts for the configured cache store
type StatsCmd struct{}

func (s *StatsCmd) Run() error {
	cfg := Config{
		Backend: viper.GetString("cache.backend"),
		Path:    viper.GetString("cache.dbfile"),
		DSN:     viper.GetString("cache.dsn"),
	}
	slog.Info("Reading cache statistics", "backend", cfg.Backend, "database", cfg.Path)

	backend, err := OpenBackend(cfg)
	if err != nil {
		return fmt.Errorf("failed to open cache database: %w", err)
	}
	if backend == nil {
		return ErrDisabled
	}
	defer func() { _ = backend.Close() }()

	counts, err := backend.Counts(context.Background())
	if err != nil {
		return fmt.Errorf("failed to read cache statistics: %w", err)
	}

	out := statsOutput
	tables := make([]string, 0, len(counts))
	for table := range counts {
		tables = append(tables, table)
	}
	sort.Strings(tables)
	for _, table := range tables {
		if _, err := fmt.Fprintf(out, "%-14s %d\n", table, counts[table]); err != nil {
			return err
		}
	}
	return nil
}
