// Package edition maps book numbers of alternate editions (omnibus,
// "colossal" and similar repackagings) onto canonical volume ranges of the
// standard series.
package edition

import (
	"fmt"
	"strconv"
	"strings"
)

// Mapping is the static description of one alternate edition.
//
// When VolumesPerBook is set, book i covers standard volumes
// [(i-1)*k+1, min(i*k, T)] with T = TotalStandardVolumes. Otherwise
// MappingRules is an explicit table.
type Mapping struct {
	AlternateEditionName string `yaml:"alternate_edition_name"`
	StandardSeriesName   string `yaml:"standard_series_name"`
	VolumesPerBook       int    `yaml:"volumes_per_book,omitempty"`
	TotalStandardVolumes int    `yaml:"total_standard_volumes,omitempty"`
	MappingRules         []Rule `yaml:"mapping_rules,omitempty"`
	Description          string `yaml:"description,omitempty"`
}

// Rule maps one book number to a canonical volume ("7") or an inclusive
// range ("31-34").
type Rule struct {
	Book    string `yaml:"book"`
	Volumes string `yaml:"volumes"`
}

// Range is an inclusive span of canonical volumes.
type Range struct {
	Start int
	End   int
	label string
}

// String returns the range as stored in the mapping table.
func (r Range) String() string {
	if r.label != "" {
		return r.label
	}
	return fmt.Sprintf("%d-%d", r.Start, r.End)
}

// Len is the number of canonical volumes covered.
func (r Range) Len() int {
	return r.End - r.Start + 1
}

// Volumes expands the range into its volume numbers.
func (r Range) Volumes() []int {
	if r.End < r.Start {
		return nil
	}
	out := make([]int, 0, r.Len())
	for v := r.Start; ; v++ {
		out = append(out, v)
		if v == r.End {
			return out
		}
	}
}

// ParseRange parses "n" or "a-b" (1-based, a <= b).
func ParseRange(s string) (Range, error) {
	s = strings.TrimSpace(s)
	start, end, isSpan := strings.Cut(s, "-")
	a, err := strconv.Atoi(strings.TrimSpace(start))
	if err != nil {
		return Range{}, fmt.Errorf("invalid volume range %q", s)
	}
	b := a
	if isSpan {
		b, err = strconv.Atoi(strings.TrimSpace(end))
		if err != nil {
			return Range{}, fmt.Errorf("invalid volume range %q", s)
		}
	}
	if a < 1 || b < a {
		return Range{}, fmt.Errorf("invalid volume range %q", s)
	}
	return Range{Start: a, End: b, label: s}, nil
}

// normalizeBook turns "03" and " 3 " into "3" so explicit tables and callers agree.
func normalizeBook(book string) string {
	book = strings.TrimSpace(book)
	if n, err := strconv.Atoi(book); err == nil {
		return strconv.Itoa(n)
	}
	return book
}

// generateRanges builds the ceil(T/k) ranges of a fixed-size edition.
func generateRanges(perBook, total int) []Range {
	books := (total + perBook - 1) / perBook
	out := make([]Range, 0, books)
	for i := 1; i <= books; i++ {
		out = append(out, Range{Start: (i-1)*perBook + 1, End: min(i*perBook, total)})
	}
	return out
}

// sequentialRules maps books 1..n onto volumes 1..n.
func sequentialRules(n int) []Rule {
	rules := make([]Rule, n)
	for i := range rules {
		v := strconv.Itoa(i + 1)
		rules[i] = Rule{Book: v, Volumes: v}
	}
	return rules
}

// BuiltinMappings returns the alternate editions known without configuration.
func BuiltinMappings() []Mapping {
	return []Mapping{
		{
			AlternateEditionName: "Attack on Titan: Colossal Edition",
			StandardSeriesName:   "Attack on Titan",
			VolumesPerBook:       5,
			TotalStandardVolumes: 34,
			Description:          "Each Colossal Edition contains 5 standard volumes",
		},
		{
			AlternateEditionName: "Attack on Titan: No Regrets",
			StandardSeriesName:   "Attack on Titan: No Regrets",
			MappingRules:         sequentialRules(2),
			Description:          "Prequel series, standalone volumes",
		},
		{
			AlternateEditionName: "Attack on Titan: Before the Fall",
			StandardSeriesName:   "Attack on Titan: Before the Fall",
			MappingRules:         sequentialRules(3),
			Description:          "Prequel series, standalone volumes",
		},
		{
			AlternateEditionName: "Boruto: Two Blue Vortex",
			StandardSeriesName:   "Boruto: Naruto Next Generation",
			MappingRules:         sequentialRules(2),
			Description:          "Continuation of Boruto series",
		},
		{
			AlternateEditionName: "Blue Note",
			StandardSeriesName:   "Blue Giant",
			MappingRules:         sequentialRules(10),
			Description:          "Blue Giant series - 10 manga volumes, omnibus edition exists",
		},
		{
			AlternateEditionName: "Crayon Shinchan Omnibus",
			StandardSeriesName:   "Crayon Shinchan",
			VolumesPerBook:       10,
			TotalStandardVolumes: 50,
			Description:          "Omnibus edition, 10 volumes per book",
		},
	}
}
