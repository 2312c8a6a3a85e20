package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lepinkainen/tankobon/internal/metadata"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type seriesRow struct {
	ID            uint   `gorm:"primaryKey"`
	SeriesKey     string `gorm:"index:idx_series_cache_key,priority:1;not null"`
	CanonicalName string
	TotalVolumes  int    `gorm:"not null;default:0"`
	Data          string `gorm:"type:text;not null"`
	Source        string
	LastUpdated   int64 `gorm:"index:idx_series_cache_key,priority:2;not null"`
}

func (seriesRow) TableName() string { return seriesTable }

type volumeRow struct {
	ID           uint   `gorm:"primaryKey"`
	SeriesKey    string `gorm:"index:idx_volume_cache_key,priority:1;not null"`
	VolumeNumber int    `gorm:"index:idx_volume_cache_key,priority:2;not null"`
	Title        string
	ISBN13       *string `gorm:"column:isbn13"`
	Data         string  `gorm:"type:text;not null"`
	Source       string
	LastUpdated  int64 `gorm:"index:idx_volume_cache_key,priority:3;not null"`
}

func (volumeRow) TableName() string { return volumeTable }

// PostgresBackend stores the cache tables in a shared PostgreSQL database so
// several workers can reuse each other's results.
type PostgresBackend struct {
	db *gorm.DB
}

// OpenPostgres connects to dsn and migrates the cache tables.
func OpenPostgres(dsn string) (*PostgresBackend, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(&seriesRow{}, &volumeRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate cache tables: %w", err)
	}
	return &PostgresBackend{db: db}, nil
}

// Name implements Backend.
func (b *PostgresBackend) Name() string { return "postgres" }

func (r seriesRow) decode() (*metadata.Series, error) {
	var s metadata.Series
	if err := json.Unmarshal([]byte(r.Data), &s); err != nil {
		return nil, fmt.Errorf("failed to decode cached series %q: %w", r.SeriesKey, err)
	}
	s.Key = r.SeriesKey
	s.LastUpdated = time.Unix(0, r.LastUpdated).UTC()
	return &s, nil
}

func (r volumeRow) decode() (*metadata.Volume, error) {
	var v metadata.Volume
	if err := json.Unmarshal([]byte(r.Data), &v); err != nil {
		return nil, fmt.Errorf("failed to decode cached volume %s #%d: %w", r.SeriesKey, r.VolumeNumber, err)
	}
	v.SeriesKey = r.SeriesKey
	v.Number = r.VolumeNumber
	v.LastUpdated = time.Unix(0, r.LastUpdated).UTC()
	return &v, nil
}

func latestSeriesGorm(db *gorm.DB, key string) (*metadata.Series, error) {
	var rows []seriesRow
	err := db.Where("series_key = ?", key).Order("last_updated DESC").Limit(1).Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query series cache: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0].decode()
}

func latestVolumeGorm(db *gorm.DB, key string, number int) (*metadata.Volume, error) {
	var rows []volumeRow
	err := db.Where("series_key = ? AND volume_number = ?", key, number).
		Order("last_updated DESC").Limit(1).Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query volume cache: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0].decode()
}

// LatestSeries implements Backend.
func (b *PostgresBackend) LatestSeries(ctx context.Context, key string) (*metadata.Series, error) {
	return latestSeriesGorm(b.db.WithContext(ctx), key)
}

// LatestVolumes implements Backend with one IN query.
func (b *PostgresBackend) LatestVolumes(ctx context.Context, key string, numbers []int) (map[int]*metadata.Volume, error) {
	found := make(map[int]*metadata.Volume, len(numbers))
	if len(numbers) == 0 {
		return found, nil
	}

	var rows []volumeRow
	err := b.db.WithContext(ctx).
		Where("series_key = ? AND volume_number IN ?", key, numbers).
		Order("volume_number, last_updated DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query volume cache: %w", err)
	}

	for _, r := range rows {
		if _, seen := found[r.VolumeNumber]; seen {
			continue
		}
		v, err := r.decode()
		if err != nil {
			return nil, err
		}
		found[r.VolumeNumber] = v
	}
	return found, nil
}

// UpsertSeries implements Backend.
func (b *PostgresBackend) UpsertSeries(ctx context.Context, s *metadata.Series, now time.Time) error {
	return b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := latestSeriesGorm(tx, s.Key)
		if err != nil {
			return err
		}
		row := mergeSeriesRow(existing, s, now)
		data, err := json.Marshal(row)
		if err != nil {
			return fmt.Errorf("failed to marshal series: %w", err)
		}
		return tx.Create(&seriesRow{
			SeriesKey:     row.Key,
			CanonicalName: row.CanonicalName,
			TotalVolumes:  row.TotalVolumes,
			Data:          string(data),
			Source:        row.Source,
			LastUpdated:   row.LastUpdated.UnixNano(),
		}).Error
	})
}

// UpsertVolume implements Backend.
func (b *PostgresBackend) UpsertVolume(ctx context.Context, v *metadata.Volume, now time.Time) error {
	return b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := latestVolumeGorm(tx, v.SeriesKey, v.Number)
		if err != nil {
			return err
		}
		row := mergeVolumeRow(existing, v, now)
		data, err := json.Marshal(row)
		if err != nil {
			return fmt.Errorf("failed to marshal volume: %w", err)
		}
		return tx.Create(&volumeRow{
			SeriesKey:    row.SeriesKey,
			VolumeNumber: row.Number,
			Title:        row.Title,
			ISBN13:       row.ISBN13,
			Data:         string(data),
			Source:       row.Source,
			LastUpdated:  row.LastUpdated.UnixNano(),
		}).Error
	})
}

// Counts implements Backend.
func (b *PostgresBackend) Counts(ctx context.Context) (map[string]int64, error) {
	counts := make(map[string]int64, 2)
	var n int64
	if err := b.db.WithContext(ctx).Model(&seriesRow{}).Count(&n).Error; err != nil {
		return nil, fmt.Errorf("failed to count %s: %w", seriesTable, err)
	}
	counts[seriesTable] = n
	if err := b.db.WithContext(ctx).Model(&volumeRow{}).Count(&n).Error; err != nil {
		return nil, fmt.Errorf("failed to count %s: %w", volumeTable, err)
	}
	counts[volumeTable] = n
	return counts, nil
}

// Close closes the underlying connection pool.
func (b *PostgresBackend) Close() error {
	sqlDB, err := b.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
