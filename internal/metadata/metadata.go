// Package metadata defines the series and volume records shared by the cache
// store, the provider chain and the batch optimizer.
package metadata

import (
	"strings"
	"time"
)

// Series is one row of the series cache.
// Pointer fields distinguish "unknown" from a real value.
type Series struct {
	Key               string    `json:"series_key"`
	CanonicalName     string    `json:"canonical_name"`
	Authors           []string  `json:"authors,omitempty"`
	TotalVolumes      int       `json:"total_volumes"` // 0 means unknown
	Summary           string    `json:"summary,omitempty"`
	Publisher         string    `json:"publisher,omitempty"`
	Status            string    `json:"status,omitempty"`
	Genres            []string  `json:"genres,omitempty"`
	AlternativeTitles []string  `json:"alternative_titles,omitempty"`
	Spinoffs          []string  `json:"spinoffs,omitempty"`
	Adaptations       []string  `json:"adaptations,omitempty"`
	CoverURL          *string   `json:"cover_url,omitempty"`
	LastUpdated       time.Time `json:"last_updated"`
	Source            string    `json:"source,omitempty"`
}

// Volume is one row of the volume cache, keyed by (series key, canonical volume number).
type Volume struct {
	SeriesKey           string    `json:"series_key"`
	SeriesName          string    `json:"series_name,omitempty"`
	Number              int       `json:"volume_number"`
	Title               string    `json:"title,omitempty"`
	Authors             []string  `json:"authors,omitempty"`
	ISBN13              *string   `json:"isbn13,omitempty"`
	Publisher           string    `json:"publisher,omitempty"`
	CopyrightYear       *int      `json:"copyright_year,omitempty"`
	Description         string    `json:"description,omitempty"`
	PhysicalDescription string    `json:"physical_description,omitempty"`
	Genres              []string  `json:"genres,omitempty"`
	MSRP                *float64  `json:"msrp,omitempty"`
	CoverURL            *string   `json:"cover_url,omitempty"`
	LastUpdated         time.Time `json:"last_updated"`
	Source              string    `json:"source,omitempty"`

	// Edition and CanonicalRange annotate answers to alternate-edition
	// lookups. They are never written to the store.
	Edition        string `json:"edition,omitempty"`
	CanonicalRange string `json:"canonical_range,omitempty"`
}

// SeriesKey normalises a series name into its case-insensitive cache key.
func SeriesKey(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// Valid reports whether the series carries anything worth keeping.
func (s *Series) Valid() bool {
	return s != nil && (strings.TrimSpace(s.CanonicalName) != "" || len(s.Authors) > 0)
}

// Valid reports whether the volume has at least a title or an author.
func (v *Volume) Valid() bool {
	return v != nil && (strings.TrimSpace(v.Title) != "" || len(v.Authors) > 0)
}

// Clone returns a deep enough copy that slices can be modified independently.
func (v *Volume) Clone() *Volume {
	if v == nil {
		return nil
	}
	c := *v
	c.Authors = append([]string(nil), v.Authors...)
	c.Genres = append([]string(nil), v.Genres...)
	return &c
}

// Clone returns a copy of the series with independent slices.
func (s *Series) Clone() *Series {
	if s == nil {
		return nil
	}
	c := *s
	c.Authors = append([]string(nil), s.Authors...)
	c.Genres = append([]string(nil), s.Genres...)
	c.AlternativeTitles = append([]string(nil), s.AlternativeTitles...)
	c.Spinoffs = append([]string(nil), s.Spinoffs...)
	c.Adaptations = append([]string(nil), s.Adaptations...)
	return &c
}

// StringPtr returns a pointer to s, or nil for an empty string.
func StringPtr(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
