package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lepinkainen/tankobon/internal/metadata"
	_ "modernc.org/sqlite"
)

// SQLiteBackend stores the cache tables in a local SQLite database.
type SQLiteBackend struct {
	db   *sql.DB
	mu   sync.RWMutex
	path string
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// OpenSQLite opens (creating if needed) the cache database at dbPath.
func OpenSQLite(dbPath string) (*SQLiteBackend, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	if err := db.Ping(); err != nil {
		closeErr := db.Close()
		return nil, errors.Join(fmt.Errorf("failed to connect to cache database: %w", err), closeErr)
	}

	b := &SQLiteBackend{db: db, path: dbPath}
	for _, schema := range AllCacheSchemas {
		if err := b.createTable(schema); err != nil {
			closeErr := db.Close()
			return nil, errors.Join(err, closeErr)
		}
	}
	return b, nil
}

func (b *SQLiteBackend) createTable(schema string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}
	return nil
}

// Name implements Backend.
func (b *SQLiteBackend) Name() string { return "sqlite" }

// Path returns the database file path.
func (b *SQLiteBackend) Path() string { return b.path }

// LatestSeries implements Backend.
func (b *SQLiteBackend) LatestSeries(ctx context.Context, key string) (*metadata.Series, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return latestSeries(ctx, b.db, key)
}

func latestSeries(ctx context.Context, q queryer, key string) (*metadata.Series, error) {
	var data string
	var lastUpdated int64
	err := q.QueryRowContext(ctx, `
		SELECT data, last_updated
		FROM series_cache
		WHERE series_key = ?
		ORDER BY last_updated DESC
		LIMIT 1
	`, key).Scan(&data, &lastUpdated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query series cache: %w", err)
	}

	var s metadata.Series
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		return nil, fmt.Errorf("failed to decode cached series %q: %w", key, err)
	}
	s.Key = key
	s.LastUpdated = time.Unix(0, lastUpdated).UTC()
	return &s, nil
}

// LatestVolumes implements Backend with one IN query for all numbers.
func (b *SQLiteBackend) LatestVolumes(ctx context.Context, key string, numbers []int) (map[int]*metadata.Volume, error) {
	found := make(map[int]*metadata.Volume, len(numbers))
	if len(numbers) == 0 {
		return found, nil
	}

	args := make([]any, 0, len(numbers)+1)
	args = append(args, key)
	for _, n := range numbers {
		args = append(args, n)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(numbers)), ",")
	query := fmt.Sprintf(`
		SELECT volume_number, data, last_updated
		FROM volume_cache
		WHERE series_key = ? AND volume_number IN (%s)
		ORDER BY volume_number, last_updated DESC
	`, placeholders)

	b.mu.RLock()
	defer b.mu.RUnlock()

	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query volume cache: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var number int
		var data string
		var lastUpdated int64
		if err := rows.Scan(&number, &data, &lastUpdated); err != nil {
			return nil, fmt.Errorf("failed to scan volume row: %w", err)
		}
		if _, seen := found[number]; seen {
			// rows are ordered freshest first per volume
			continue
		}
		v, err := decodeVolume(key, number, data, lastUpdated)
		if err != nil {
			return nil, err
		}
		found[number] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read volume rows: %w", err)
	}
	return found, nil
}

func decodeVolume(key string, number int, data string, lastUpdated int64) (*metadata.Volume, error) {
	var v metadata.Volume
	if err := json.Unmarshal([]byte(data), &v); err != nil {
		return nil, fmt.Errorf("failed to decode cached volume %s #%d: %w", key, number, err)
	}
	v.SeriesKey = key
	v.Number = number
	v.LastUpdated = time.Unix(0, lastUpdated).UTC()
	return &v, nil
}

func latestVolume(ctx context.Context, q queryer, key string, number int) (*metadata.Volume, error) {
	var data string
	var lastUpdated int64
	err := q.QueryRowContext(ctx, `
		SELECT data, last_updated
		FROM volume_cache
		WHERE series_key = ? AND volume_number = ?
		ORDER BY last_updated DESC
		LIMIT 1
	`, key, number).Scan(&data, &lastUpdated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query volume cache: %w", err)
	}
	return decodeVolume(key, number, data, lastUpdated)
}

// UpsertSeries implements Backend. The merge runs inside the write transaction.
func (b *SQLiteBackend) UpsertSeries(ctx context.Context, s *metadata.Series, now time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	existing, err := latestSeries(ctx, tx, s.Key)
	if err != nil {
		return err
	}
	row := mergeSeriesRow(existing, s, now)

	data, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("failed to marshal series: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO series_cache (series_key, canonical_name, total_volumes, data, source, last_updated)
		VALUES (?, ?, ?, ?, ?, ?)
	`, row.Key, row.CanonicalName, row.TotalVolumes, string(data), row.Source, row.LastUpdated.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to insert series: %w", err)
	}
	return tx.Commit()
}

// UpsertVolume implements Backend.
func (b *SQLiteBackend) UpsertVolume(ctx context.Context, v *metadata.Volume, now time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	existing, err := latestVolume(ctx, tx, v.SeriesKey, v.Number)
	if err != nil {
		return err
	}
	row := mergeVolumeRow(existing, v, now)

	data, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("failed to marshal volume: %w", err)
	}

	var isbn any
	if row.ISBN13 != nil {
		isbn = *row.ISBN13
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO volume_cache (series_key, volume_number, title, isbn13, data, source, last_updated)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, row.SeriesKey, row.Number, row.Title, isbn, string(data), row.Source, row.LastUpdated.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to insert volume: %w", err)
	}
	return tx.Commit()
}

// Counts implements Backend.
func (b *SQLiteBackend) Counts(ctx context.Context) (map[string]int64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	tables := make([]string, 0, len(ValidCacheTableNames))
	for name := range ValidCacheTableNames {
		tables = append(tables, name)
	}
	sort.Strings(tables)

	counts := make(map[string]int64, len(tables))
	for _, table := range tables {
		if err := validateTableName(table); err != nil {
			return nil, err
		}
		var n int64
		if err := b.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&n); err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", table, err)
		}
		counts[table] = n
	}
	return counts, nil
}

// Close closes the database connection
func (b *SQLiteBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.db != nil {
		return b.db.Close()
	}
	return nil
}

// validateTableName checks if the table name is in the whitelist
// to prevent SQL injection attacks
func validateTableName(tableName string) error {
	if !ValidCacheTableNames[tableName] {
		return fmt.Errorf("invalid cache table name: %s", tableName)
	}
	return nil
}
