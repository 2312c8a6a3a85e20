package store

const (
	seriesTable = "series_cache"
	volumeTable = "volume_cache"
)

// SQL schemas for the cache tables. Rows are append-only: every write inserts
// a new row and readers take the one with the highest last_updated
// (Unix nanoseconds, UTC). The full record is kept as JSON in data.

// SeriesCacheSchema defines the schema for series metadata
const SeriesCacheSchema = `
CREATE TABLE IF NOT EXISTS series_cache (
	series_key TEXT NOT NULL,
	canonical_name TEXT,
	total_volumes INTEGER NOT NULL DEFAULT 0,
	data TEXT NOT NULL,
	source TEXT,
	last_updated INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_series_cache_key ON series_cache(series_key, last_updated);
`

// VolumeCacheSchema defines the schema for per-volume metadata
const VolumeCacheSchema = `
CREATE TABLE IF NOT EXISTS volume_cache (
	series_key TEXT NOT NULL,
	volume_number INTEGER NOT NULL,
	title TEXT,
	isbn13 TEXT,
	data TEXT NOT NULL,
	source TEXT,
	last_updated INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_volume_cache_key ON volume_cache(series_key, volume_number, last_updated);
`

// AllCacheSchemas contains all cache table schemas for easy initialization
var AllCacheSchemas = []string{
	SeriesCacheSchema,
	VolumeCacheSchema,
}

// ValidCacheTableNames is the whitelist of allowed cache table names
// Used to prevent SQL injection when interpolating table names
var ValidCacheTableNames = map[string]bool{
	seriesTable: true,
	volumeTable: true,
}
