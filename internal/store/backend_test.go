package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lepinkainen/tankobon/internal/metadata"
	"github.com/lepinkainen/tankobon/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func openTestSQLite(t *testing.T) *SQLiteBackend {
	t.Helper()
	env := testutil.NewTestEnv(t)
	b, err := OpenSQLite(filepath.Join(env.RootDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func openTestBolt(t *testing.T) *BoltBackend {
	t.Helper()
	env := testutil.NewTestEnv(t)
	b, err := OpenBolt(env.Path("nested", "cache.bolt"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

// backendsUnderTest returns every backend reachable from this environment.
func backendsUnderTest(t *testing.T) map[string]func(t *testing.T) Backend {
	t.Helper()
	backends := map[string]func(t *testing.T) Backend{
		"sqlite": func(t *testing.T) Backend { return openTestSQLite(t) },
		"bolt":   func(t *testing.T) Backend { return openTestBolt(t) },
	}
	if dsn := os.Getenv("TANKOBON_TEST_POSTGRES_DSN"); dsn != "" {
		backends["postgres"] = func(t *testing.T) Backend {
			b, err := OpenPostgres(dsn)
			require.NoError(t, err)
			require.NoError(t, b.db.Exec("DELETE FROM series_cache").Error)
			require.NoError(t, b.db.Exec("DELETE FROM volume_cache").Error)
			t.Cleanup(func() { _ = b.Close() })
			return b
		}
	}
	return backends
}

func TestBackend_SeriesRoundTrip(t *testing.T) {
	for name, open := range backendsUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			b := open(t)
			ctx := context.Background()

			got, err := b.LatestSeries(ctx, "attack on titan")
			require.NoError(t, err)
			assert.Nil(t, got, "empty store is a miss")

			require.NoError(t, b.UpsertSeries(ctx, &metadata.Series{
				Key:           "attack on titan",
				CanonicalName: "Attack on Titan",
				Authors:       []string{"Hajime Isayama"},
				TotalVolumes:  34,
				Source:        "deepseek",
			}, testNow))

			got, err = b.LatestSeries(ctx, "attack on titan")
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, "Attack on Titan", got.CanonicalName)
			assert.Equal(t, 34, got.TotalVolumes)
			assert.Equal(t, []string{"Hajime Isayama"}, got.Authors)
			assert.True(t, got.LastUpdated.Equal(testNow))
		})
	}
}

func TestBackend_LastUpdatedStrictlyIncreases(t *testing.T) {
	for name, open := range backendsUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			b := open(t)
			ctx := context.Background()
			v := &metadata.Volume{SeriesKey: "berserk", Number: 1, Title: "The Black Swordsman"}

			require.NoError(t, b.UpsertVolume(ctx, v, testNow))
			first, err := b.LatestVolumes(ctx, "berserk", []int{1})
			require.NoError(t, err)

			// Same wall clock, and a clock that went backwards.
			require.NoError(t, b.UpsertVolume(ctx, v, testNow))
			second, err := b.LatestVolumes(ctx, "berserk", []int{1})
			require.NoError(t, err)
			require.NoError(t, b.UpsertVolume(ctx, v, testNow.Add(-time.Hour)))
			third, err := b.LatestVolumes(ctx, "berserk", []int{1})
			require.NoError(t, err)

			assert.True(t, second[1].LastUpdated.After(first[1].LastUpdated))
			assert.True(t, third[1].LastUpdated.After(second[1].LastUpdated))
		})
	}
}

func TestBackend_MergeOnWriteNeverBlanks(t *testing.T) {
	for name, open := range backendsUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			b := open(t)
			ctx := context.Background()

			require.NoError(t, b.UpsertVolume(ctx, &metadata.Volume{
				SeriesKey:   "one piece",
				Number:      3,
				Title:       "Don't Get Fooled Again",
				Description: "Luffy meets Usopp.",
			}, testNow))
			require.NoError(t, b.UpsertVolume(ctx, &metadata.Volume{
				SeriesKey: "one piece",
				Number:    3,
				Publisher: "VIZ Media",
			}, testNow.Add(time.Minute)))

			got, err := b.LatestVolumes(ctx, "one piece", []int{3})
			require.NoError(t, err)
			require.Contains(t, got, 3)
			assert.Equal(t, "Luffy meets Usopp.", got[3].Description)
			assert.Equal(t, "Don't Get Fooled Again", got[3].Title)
			assert.Equal(t, "VIZ Media", got[3].Publisher)
		})
	}
}

func TestBackend_GroupedVolumeRead(t *testing.T) {
	for name, open := range backendsUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			b := open(t)
			ctx := context.Background()

			for _, n := range []int{1, 3, 10} {
				require.NoError(t, b.UpsertVolume(ctx, &metadata.Volume{SeriesKey: "naruto", Number: n, Title: "t"}, testNow))
			}
			require.NoError(t, b.UpsertVolume(ctx, &metadata.Volume{SeriesKey: "bleach", Number: 2, Title: "t"}, testNow))

			got, err := b.LatestVolumes(ctx, "naruto", []int{1, 2, 3})
			require.NoError(t, err)
			assert.Len(t, got, 2)
			assert.Contains(t, got, 1)
			assert.Contains(t, got, 3)
			assert.NotContains(t, got, 2)
			assert.Equal(t, 3, got[3].Number)
			assert.Equal(t, "naruto", got[3].SeriesKey)

			counts, err := b.Counts(ctx)
			require.NoError(t, err)
			assert.Equal(t, int64(4), counts[volumeTable])
			assert.Equal(t, int64(0), counts[seriesTable])
		})
	}
}

func TestBackend_EditionAnnotationsAreNotStored(t *testing.T) {
	for name, open := range backendsUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			b := open(t)
			ctx := context.Background()
			require.NoError(t, b.UpsertVolume(ctx, &metadata.Volume{
				SeriesKey:      "attack on titan",
				Number:         31,
				Title:          "t",
				Edition:        "Attack on Titan: Colossal Edition",
				CanonicalRange: "31-34",
			}, testNow))

			got, err := b.LatestVolumes(ctx, "attack on titan", []int{31})
			require.NoError(t, err)
			assert.Empty(t, got[31].Edition)
			assert.Empty(t, got[31].CanonicalRange)
		})
	}
}

func TestSQLite_DuplicateRowsPickFreshest(t *testing.T) {
	b := openTestSQLite(t)
	ctx := context.Background()

	// Rows inserted out of order by concurrent writers; the newest wins.
	_, err := b.db.Exec(`INSERT INTO series_cache (series_key, data, last_updated) VALUES (?, ?, ?)`,
		"vinland saga", `{"canonical_name":"Vinland Saga (new)"}`, testNow.Add(time.Hour).UnixNano())
	require.NoError(t, err)
	_, err = b.db.Exec(`INSERT INTO series_cache (series_key, data, last_updated) VALUES (?, ?, ?)`,
		"vinland saga", `{"canonical_name":"Vinland Saga (old)"}`, testNow.UnixNano())
	require.NoError(t, err)

	got, err := b.LatestSeries(ctx, "vinland saga")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Vinland Saga (new)", got.CanonicalName)

	_, err = b.db.Exec(`INSERT INTO volume_cache (series_key, volume_number, data, last_updated) VALUES (?, ?, ?, ?)`,
		"vinland saga", 2, `{"title":"newer"}`, testNow.Add(time.Hour).UnixNano())
	require.NoError(t, err)
	_, err = b.db.Exec(`INSERT INTO volume_cache (series_key, volume_number, data, last_updated) VALUES (?, ?, ?, ?)`,
		"vinland saga", 2, `{"title":"older"}`, testNow.UnixNano())
	require.NoError(t, err)

	vols, err := b.LatestVolumes(ctx, "vinland saga", []int{2})
	require.NoError(t, err)
	assert.Equal(t, "newer", vols[2].Title)
}

func TestSQLite_SurvivesReopen(t *testing.T) {
	env := testutil.NewTestEnv(t)
	path := env.Path("cache.db")
	ctx := context.Background()

	b, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, b.UpsertSeries(ctx, &metadata.Series{Key: "monster", CanonicalName: "Monster"}, testNow))
	require.NoError(t, b.Close())

	b, err = OpenSQLite(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	got, err := b.LatestSeries(ctx, "monster")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Monster", got.CanonicalName)
}

func TestValidateTableName(t *testing.T) {
	assert.NoError(t, validateTableName("volume_cache"))
	assert.Error(t, validateTableName("volume_cache; DROP TABLE series_cache"))
}
