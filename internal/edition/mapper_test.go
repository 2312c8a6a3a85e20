package edition

import (
	"strconv"
	"testing"

	tberrors "github.com/lepinkainen/tankobon/internal/errors"
	"github.com/lepinkainen/tankobon/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func colossal(t *testing.T, total, perBook int) *Mapper {
	t.Helper()
	m, err := NewMapper(Mapping{
		AlternateEditionName: "Series X: Colossal Edition",
		StandardSeriesName:   "Series X",
		VolumesPerBook:       perBook,
		TotalStandardVolumes: total,
	})
	require.NoError(t, err)
	return m
}

func TestColossalMapping_ShortLastBook(t *testing.T) {
	m := colossal(t, 34, 5)

	books, ok := m.BookCount("Series X: Colossal Edition")
	require.True(t, ok)
	assert.Equal(t, 7, books)

	got, ok := m.CanonicalRange("Series X: Colossal Edition", "7")
	require.True(t, ok)
	assert.Equal(t, "31-34", got)

	got, ok = m.CanonicalRange("Series X: Colossal Edition", "1")
	require.True(t, ok)
	assert.Equal(t, "1-5", got)

	_, ok = m.CanonicalRange("Series X: Colossal Edition", "8")
	assert.False(t, ok, "book past the last one is out of range")

	total, ok := m.TotalCanonicalVolumes("Series X: Colossal Edition")
	require.True(t, ok)
	assert.Equal(t, 34, total)
}

func TestColossalMapping_TwelveVolumes(t *testing.T) {
	m := colossal(t, 12, 5)

	books, _ := m.BookCount("Series X: Colossal Edition")
	assert.Equal(t, 3, books)

	for book, want := range map[string]string{"1": "1-5", "2": "6-10", "3": "11-12"} {
		got, ok := m.CanonicalRange("Series X: Colossal Edition", book)
		require.True(t, ok, book)
		assert.Equal(t, want, got, book)
	}
}

func TestColossalMapping_ExactMultiple(t *testing.T) {
	m := colossal(t, 10, 5)
	books, _ := m.BookCount("Series X: Colossal Edition")
	assert.Equal(t, 2, books)
	got, _ := m.CanonicalRange("Series X: Colossal Edition", "2")
	assert.Equal(t, "6-10", got)
}

func TestCanonicalRange_IsPure(t *testing.T) {
	m, err := NewDefaultMapper()
	require.NoError(t, err)

	first, ok := m.CanonicalRange("Attack on Titan: Colossal Edition", "3")
	require.True(t, ok)
	for range 50 {
		again, ok := m.CanonicalRange("Attack on Titan: Colossal Edition", "3")
		require.True(t, ok)
		assert.Equal(t, first, again)
	}
	assert.Equal(t, "11-15", first)
}

func TestMapper_CaseInsensitiveNamesAndBookNormalisation(t *testing.T) {
	m, err := NewDefaultMapper()
	require.NoError(t, err)

	assert.True(t, m.IsAlternateEdition("attack on titan: COLOSSAL edition"))
	got, ok := m.CanonicalRange("Attack on Titan: Colossal Edition", " 07 ")
	require.True(t, ok)
	assert.Equal(t, "31-34", got)

	std, ok := m.StandardSeriesName("ATTACK ON TITAN: COLOSSAL EDITION")
	require.True(t, ok)
	assert.Equal(t, "Attack on Titan", std)
}

func TestMapper_UnknownEdition(t *testing.T) {
	m, err := NewDefaultMapper()
	require.NoError(t, err)

	assert.False(t, m.IsAlternateEdition("One Piece"))
	_, ok := m.StandardSeriesName("One Piece")
	assert.False(t, ok)
	_, ok = m.CanonicalRange("One Piece", "1")
	assert.False(t, ok)
	_, ok = m.TotalCanonicalVolumes("One Piece")
	assert.False(t, ok)

	info := m.Info("One Piece")
	assert.False(t, info.IsAlternateEdition)
	assert.Equal(t, "One Piece", info.StandardSeriesName)
}

func TestMapper_ExplicitTableVerbatim(t *testing.T) {
	m, err := NewMapper(Mapping{
		AlternateEditionName: "Series Y: Prequel",
		StandardSeriesName:   "Series Y",
		MappingRules:         []Rule{{Book: "1", Volumes: "1"}, {Book: "2", Volumes: "2-3"}},
	})
	require.NoError(t, err)

	got, ok := m.CanonicalRange("Series Y: Prequel", "1")
	require.True(t, ok)
	assert.Equal(t, "1", got)

	vols, ok := m.Volumes("Series Y: Prequel", "2")
	require.True(t, ok)
	assert.Equal(t, []int{2, 3}, vols)

	total, _ := m.TotalCanonicalVolumes("Series Y: Prequel")
	assert.Equal(t, 3, total)
}

func TestNewMapper_ConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		mapping Mapping
	}{
		{"per book without total", Mapping{AlternateEditionName: "A", StandardSeriesName: "B", VolumesPerBook: 5}},
		{"negative per book", Mapping{AlternateEditionName: "A", StandardSeriesName: "B", VolumesPerBook: -1, TotalStandardVolumes: 3}},
		{"no table", Mapping{AlternateEditionName: "A", StandardSeriesName: "B"}},
		{"missing standard", Mapping{AlternateEditionName: "A", VolumesPerBook: 5, TotalStandardVolumes: 10}},
		{"missing name", Mapping{StandardSeriesName: "B", VolumesPerBook: 5, TotalStandardVolumes: 10}},
		{"bad range", Mapping{AlternateEditionName: "A", StandardSeriesName: "B", MappingRules: []Rule{{Book: "1", Volumes: "5-2"}}}},
		{"zero volume", Mapping{AlternateEditionName: "A", StandardSeriesName: "B", MappingRules: []Rule{{Book: "1", Volumes: "0"}}}},
		{"duplicate book", Mapping{AlternateEditionName: "A", StandardSeriesName: "B", MappingRules: []Rule{{Book: "1", Volumes: "1"}, {Book: "01", Volumes: "2"}}}},
		{"both kinds", Mapping{AlternateEditionName: "A", StandardSeriesName: "B", VolumesPerBook: 2, TotalStandardVolumes: 4, MappingRules: []Rule{{Book: "1", Volumes: "1"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewMapper(tt.mapping)
			require.Error(t, err)
			assert.True(t, tberrors.IsConfigError(err), "got %v", err)
		})
	}
}

func TestNewMapper_DuplicateNames(t *testing.T) {
	_, err := NewDefaultMapper(Mapping{
		AlternateEditionName: "attack on titan: colossal edition",
		StandardSeriesName:   "Attack on Titan",
		VolumesPerBook:       5,
		TotalStandardVolumes: 34,
	})
	require.Error(t, err)
	assert.True(t, tberrors.IsConfigError(err))
}

func TestParseRange(t *testing.T) {
	r, err := ParseRange("31-34")
	require.NoError(t, err)
	assert.Equal(t, 31, r.Start)
	assert.Equal(t, 34, r.End)
	assert.Equal(t, 4, r.Len())

	r, err = ParseRange("7")
	require.NoError(t, err)
	assert.Equal(t, "7", r.String())
	assert.Equal(t, []int{7}, r.Volumes())

	for _, bad := range []string{"", "x", "3-", "-3", "4-2", "0-1"} {
		_, err := ParseRange(bad)
		assert.Error(t, err, bad)
	}
}

func TestLoadFile(t *testing.T) {
	env := testutil.NewTestEnv(t)
	env.WriteFileString("editions.yaml", `editions:
  - alternate_edition_name: "Vinland Saga: Deluxe"
    standard_series_name: "Vinland Saga"
    volumes_per_book: 2
    total_standard_volumes: 14
  - alternate_edition_name: "Monster: The Perfect Edition"
    standard_series_name: "Monster"
    mapping_rules:
      - book: "1"
        volumes: "1-2"
      - book: "2"
        volumes: "3-4"
`)

	mappings, err := LoadFile(env.Path("editions.yaml"))
	require.NoError(t, err)
	require.Len(t, mappings, 2)

	m, err := NewDefaultMapper(mappings...)
	require.NoError(t, err)

	got, ok := m.CanonicalRange("Vinland Saga: Deluxe", "7")
	require.True(t, ok)
	assert.Equal(t, "13-14", got)

	got, ok = m.CanonicalRange("Monster: The Perfect Edition", "2")
	require.True(t, ok)
	assert.Equal(t, "3-4", got)
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile("/nonexistent/editions.yaml")
	assert.Error(t, err)
}

func TestInfo(t *testing.T) {
	m, err := NewDefaultMapper()
	require.NoError(t, err)

	info := m.Info("Crayon Shinchan Omnibus")
	assert.True(t, info.IsAlternateEdition)
	assert.Equal(t, "Crayon Shinchan", info.StandardSeriesName)
	assert.Equal(t, 5, info.BookCount)
	assert.Equal(t, 50, info.TotalVolumes)
	assert.Equal(t, []string{"1-10", "11-20", "21-30", "31-40", "41-50"}, info.Books)
}

func TestBuiltinSequentialEditions(t *testing.T) {
	m, err := NewDefaultMapper()
	require.NoError(t, err)

	tests := []struct {
		name     string
		standard string
		books    int
	}{
		{"Boruto: Two Blue Vortex", "Boruto: Naruto Next Generation", 2},
		{"Blue Note", "Blue Giant", 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := m.Info(tt.name)
			assert.True(t, info.IsAlternateEdition)
			assert.Equal(t, tt.standard, info.StandardSeriesName)
			assert.Equal(t, tt.books, info.BookCount)

			for book := 1; book <= tt.books; book++ {
				got, ok := m.CanonicalRange(tt.name, strconv.Itoa(book))
				require.True(t, ok)
				assert.Equal(t, strconv.Itoa(book), got)
			}
			_, ok := m.CanonicalRange(tt.name, strconv.Itoa(tt.books+1))
			assert.False(t, ok)
		})
	}
}

func TestSequentialRules(t *testing.T) {
	assert.Equal(t, []Rule{{Book: "1", Volumes: "1"}, {Book: "2", Volumes: "2"}}, sequentialRules(2))
	assert.Empty(t, sequentialRules(0))
}
