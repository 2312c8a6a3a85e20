// Package store persists resolved series and volume metadata.
//
// A Backend does the actual I/O and reports errors. Cache wraps a Backend and
// never surfaces those errors: an unreachable store behaves like an empty one
// on reads and silently drops writes after logging a warning.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/lepinkainen/tankobon/internal/metadata"
	"github.com/lepinkainen/tankobon/internal/observe"
)

// ErrDisabled is returned by a Cache with no backend.
var ErrDisabled = errors.New("cache store disabled")

// Backend is a store that supports point reads, one grouped read per series
// and merge-on-write upserts.
type Backend interface {
	// Name identifies the backend in logs ("sqlite", "bolt", "postgres").
	Name() string

	// LatestSeries returns the freshest row for key, or nil, nil on a miss.
	LatestSeries(ctx context.Context, key string) (*metadata.Series, error)

	// LatestVolumes returns the freshest row for each requested number that
	// exists, in a single round trip. Missing numbers are absent from the map.
	LatestVolumes(ctx context.Context, key string, numbers []int) (map[int]*metadata.Volume, error)

	// UpsertSeries merges s into the freshest existing row and stores the
	// result with a last_updated later than both now and the previous row.
	UpsertSeries(ctx context.Context, s *metadata.Series, now time.Time) error

	// UpsertVolume is the volume counterpart of UpsertSeries.
	UpsertVolume(ctx context.Context, v *metadata.Volume, now time.Time) error

	// Counts returns the number of rows per table.
	Counts(ctx context.Context) (map[string]int64, error)

	Close() error
}

// Stats is a snapshot of Cache activity since it was created.
type Stats struct {
	Hits          int64
	Misses        int64
	Writes        int64
	DroppedWrites int64
	Reads         int64
}

// Cache is the error-absorbing front of a Backend. A nil backend is allowed
// and makes every read a miss.
type Cache struct {
	backend Backend
	metrics observe.Metrics
	now     func() time.Time

	hits, misses, writes, dropped, reads atomic.Int64
}

// Option configures a Cache.
type Option func(*Cache)

// WithMetrics records cache activity to m.
func WithMetrics(m observe.Metrics) Option {
	return func(c *Cache) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithClock overrides the time source used to stamp writes.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// New wraps backend in a Cache.
func New(backend Backend, opts ...Option) *Cache {
	c := &Cache{
		backend: backend,
		metrics: observe.Noop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Enabled reports whether the cache has a backend.
func (c *Cache) Enabled() bool {
	return c != nil && c.backend != nil
}

// GetSeries returns the cached series for name, or nil on a miss or failure.
func (c *Cache) GetSeries(ctx context.Context, name string) *metadata.Series {
	key := metadata.SeriesKey(name)
	if !c.Enabled() || key == "" {
		c.recordRead(ctx, seriesTable, 0, 1)
		return nil
	}

	c.reads.Add(1)
	s, err := c.backend.LatestSeries(ctx, key)
	if err != nil {
		slog.Warn("Cache read failed, treating as miss", "backend", c.backend.Name(), "series", name, "error", err)
		c.recordRead(ctx, seriesTable, 0, 1)
		return nil
	}
	if s == nil {
		slog.Debug("Cache miss", "table", seriesTable, "series", name)
		c.recordRead(ctx, seriesTable, 0, 1)
		return nil
	}
	slog.Debug("Cache hit", "table", seriesTable, "series", name)
	c.recordRead(ctx, seriesTable, 1, 0)
	return s
}

// GetVolumes looks up all requested volume numbers of one series with a
// single backend read. The result has the same length and order as numbers;
// misses are nil.
func (c *Cache) GetVolumes(ctx context.Context, series string, numbers []int) []*metadata.Volume {
	out := make([]*metadata.Volume, len(numbers))
	key := metadata.SeriesKey(series)
	if len(numbers) == 0 {
		return out
	}
	if !c.Enabled() || key == "" {
		c.recordRead(ctx, volumeTable, 0, len(numbers))
		return out
	}

	c.reads.Add(1)
	found, err := c.backend.LatestVolumes(ctx, key, uniquePositive(numbers))
	if err != nil {
		slog.Warn("Cache read failed, treating as miss", "backend", c.backend.Name(), "series", series, "volumes", len(numbers), "error", err)
		c.recordRead(ctx, volumeTable, 0, len(numbers))
		return out
	}

	hits := 0
	for i, n := range numbers {
		if v, ok := found[n]; ok && v != nil {
			out[i] = v.Clone()
			hits++
		}
	}
	slog.Debug("Cache grouped read", "series", series, "requested", len(numbers), "hits", hits)
	c.recordRead(ctx, volumeTable, hits, len(numbers)-hits)
	return out
}

// PutSeries merges s into the store. Failures are logged and dropped.
func (c *Cache) PutSeries(ctx context.Context, s *metadata.Series) {
	if s == nil {
		return
	}
	key := metadata.SeriesKey(s.Key)
	if key == "" {
		key = metadata.SeriesKey(s.CanonicalName)
	}
	if key == "" {
		slog.Warn("Dropping series write without a key")
		return
	}
	row := s.Clone()
	row.Key = key

	err := ErrDisabled
	if c.Enabled() {
		err = c.backend.UpsertSeries(ctx, row, c.now())
	}
	c.recordWrite(ctx, seriesTable, err)
	if err != nil && c.Enabled() {
		slog.Warn("Failed to cache series", "backend", c.backend.Name(), "series", key, "error", err)
	}
}

// PutVolume merges v into the store. Failures are logged and dropped.
func (c *Cache) PutVolume(ctx context.Context, v *metadata.Volume) {
	if v == nil {
		return
	}
	key := metadata.SeriesKey(v.SeriesKey)
	if key == "" {
		key = metadata.SeriesKey(v.SeriesName)
	}
	if key == "" || v.Number <= 0 {
		slog.Warn("Dropping volume write with invalid key", "series", v.SeriesName, "volume", v.Number)
		return
	}
	row := v.Clone()
	row.SeriesKey = key
	row.Edition = ""
	row.CanonicalRange = ""

	err := ErrDisabled
	if c.Enabled() {
		err = c.backend.UpsertVolume(ctx, row, c.now())
	}
	c.recordWrite(ctx, volumeTable, err)
	if err != nil && c.Enabled() {
		slog.Warn("Failed to cache volume", "backend", c.backend.Name(), "series", key, "volume", v.Number, "error", err)
	}
}

// Counts returns per-table row counts.
func (c *Cache) Counts(ctx context.Context) (map[string]int64, error) {
	if !c.Enabled() {
		return nil, ErrDisabled
	}
	counts, err := c.backend.Counts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count %s rows: %w", c.backend.Name(), err)
	}
	return counts, nil
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:          c.hits.Load(),
		Misses:        c.misses.Load(),
		Writes:        c.writes.Load(),
		DroppedWrites: c.dropped.Load(),
		Reads:         c.reads.Load(),
	}
}

// Close closes the backend.
func (c *Cache) Close() error {
	if !c.Enabled() {
		return nil
	}
	return c.backend.Close()
}

func (c *Cache) recordRead(ctx context.Context, table string, hits, misses int) {
	c.hits.Add(int64(hits))
	c.misses.Add(int64(misses))
	c.metrics.RecordCacheRead(ctx, table, hits, misses)
}

func (c *Cache) recordWrite(ctx context.Context, table string, err error) {
	if err != nil {
		c.dropped.Add(1)
	} else {
		c.writes.Add(1)
	}
	c.metrics.RecordCacheWrite(ctx, table, err)
}

// nextStamp returns now, bumped past prev so last_updated strictly increases.
func nextStamp(now, prev time.Time) time.Time {
	now = now.UTC()
	if !now.After(prev) {
		return prev.UTC().Add(time.Nanosecond)
	}
	return now
}

func uniquePositive(numbers []int) []int {
	seen := make(map[int]bool, len(numbers))
	out := make([]int, 0, len(numbers))
	for _, n := range numbers {
		if n <= 0 || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

// mergeSeriesRow prepares the row to persist for an upsert.
func mergeSeriesRow(existing, incoming *metadata.Series, now time.Time) *metadata.Series {
	var prev time.Time
	if existing != nil {
		prev = existing.LastUpdated
	}
	merged := metadata.MergeSeries(existing, incoming)
	merged.Key = incoming.Key
	merged.LastUpdated = nextStamp(now, prev)
	return merged
}

// mergeVolumeRow prepares the row to persist for an upsert.
func mergeVolumeRow(existing, incoming *metadata.Volume, now time.Time) *metadata.Volume {
	var prev time.Time
	if existing != nil {
		prev = existing.LastUpdated
	}
	merged := metadata.MergeVolume(existing, incoming)
	merged.SeriesKey = incoming.SeriesKey
	merged.Number = incoming.Number
	merged.LastUpdated = nextStamp(now, prev)
	merged.Edition = ""
	merged.CanonicalRange = ""
	return merged
}
