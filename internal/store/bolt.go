package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/lepinkainen/tankobon/internal/metadata"
	bolt "go.etcd.io/bbolt"
)

// Bucket names
var (
	bucketSeries  = []byte(seriesTable)
	bucketVolumes = []byte(volumeTable)
)

// BoltBackend keeps the cache tables in an embedded bbolt file. It stores one
// row per key; the merged row replaces the previous one on every write.
type BoltBackend struct {
	db   *bolt.DB
	path string
}

// OpenBolt opens (creating if needed) a bbolt cache file.
func OpenBolt(dbPath string) (*BoltBackend, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
	}

	db, err := bolt.Open(dbPath, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketSeries, bucketVolumes} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create buckets: %w", err)
	}

	return &BoltBackend{db: db, path: dbPath}, nil
}

// Name implements Backend.
func (b *BoltBackend) Name() string { return "bolt" }

func volumeKey(seriesKey string, number int) []byte {
	return fmt.Appendf(nil, "%s\x00%08d", seriesKey, number)
}

func getSeries(bucket *bolt.Bucket, key string) (*metadata.Series, error) {
	data := bucket.Get([]byte(key))
	if data == nil {
		return nil, nil
	}
	var s metadata.Series
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to decode cached series %q: %w", key, err)
	}
	return &s, nil
}

func getVolume(bucket *bolt.Bucket, key string, number int) (*metadata.Volume, error) {
	data := bucket.Get(volumeKey(key, number))
	if data == nil {
		return nil, nil
	}
	var v metadata.Volume
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("failed to decode cached volume %s #%d: %w", key, number, err)
	}
	return &v, nil
}

// LatestSeries implements Backend.
func (b *BoltBackend) LatestSeries(_ context.Context, key string) (*metadata.Series, error) {
	var s *metadata.Series
	err := b.db.View(func(tx *bolt.Tx) error {
		var err error
		s, err = getSeries(tx.Bucket(bucketSeries), key)
		return err
	})
	return s, err
}

// LatestVolumes implements Backend inside a single read transaction.
func (b *BoltBackend) LatestVolumes(_ context.Context, key string, numbers []int) (map[int]*metadata.Volume, error) {
	found := make(map[int]*metadata.Volume, len(numbers))
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketVolumes)
		for _, n := range numbers {
			v, err := getVolume(bucket, key, n)
			if err != nil {
				return err
			}
			if v != nil {
				found[n] = v
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// UpsertSeries implements Backend.
func (b *BoltBackend) UpsertSeries(_ context.Context, s *metadata.Series, now time.Time) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketSeries)
		existing, err := getSeries(bucket, s.Key)
		if err != nil {
			return err
		}
		data, err := json.Marshal(mergeSeriesRow(existing, s, now))
		if err != nil {
			return fmt.Errorf("failed to marshal series: %w", err)
		}
		return bucket.Put([]byte(s.Key), data)
	})
}

// UpsertVolume implements Backend.
func (b *BoltBackend) UpsertVolume(_ context.Context, v *metadata.Volume, now time.Time) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketVolumes)
		existing, err := getVolume(bucket, v.SeriesKey, v.Number)
		if err != nil {
			return err
		}
		data, err := json.Marshal(mergeVolumeRow(existing, v, now))
		if err != nil {
			return fmt.Errorf("failed to marshal volume: %w", err)
		}
		return bucket.Put(volumeKey(v.SeriesKey, v.Number), data)
	})
}

// Counts implements Backend.
func (b *BoltBackend) Counts(_ context.Context) (map[string]int64, error) {
	counts := make(map[string]int64, 2)
	err := b.db.View(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketSeries, bucketVolumes} {
			counts[string(name)] = int64(tx.Bucket(name).Stats().KeyN)
		}
		return nil
	})
	return counts, err
}

// Close closes the bolt file.
func (b *BoltBackend) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}
