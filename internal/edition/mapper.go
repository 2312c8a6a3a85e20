package edition

import (
	"fmt"
	"os"
	"sort"
	"strconv"

	tberrors "github.com/lepinkainen/tankobon/internal/errors"
	"github.com/lepinkainen/tankobon/internal/metadata"
	"gopkg.in/yaml.v3"
)

type edition struct {
	Mapping
	books []Range
	index map[string]int // normalised book number -> position in books
	total int
}

// Mapper answers alternate-edition questions from tables built once at
// construction. It is safe for concurrent use because it is never mutated.
type Mapper struct {
	editions map[string]*edition
}

// Info summarises one series for display.
type Info struct {
	Name               string   `json:"name"`
	IsAlternateEdition bool     `json:"is_alternate_edition"`
	StandardSeriesName string   `json:"standard_series_name"`
	TotalVolumes       int      `json:"total_volumes,omitempty"`
	BookCount          int      `json:"book_count,omitempty"`
	VolumesPerBook     int      `json:"volumes_per_book,omitempty"`
	Description        string   `json:"description,omitempty"`
	Books              []string `json:"books,omitempty"`
}

// NewMapper validates mappings and builds their tables. Any invalid mapping
// is a configuration error.
func NewMapper(mappings ...Mapping) (*Mapper, error) {
	m := &Mapper{editions: make(map[string]*edition, len(mappings))}
	for _, mapping := range mappings {
		ed, err := compile(mapping)
		if err != nil {
			return nil, err
		}
		key := metadata.SeriesKey(mapping.AlternateEditionName)
		if _, dup := m.editions[key]; dup {
			return nil, tberrors.NewConfigError("alternate_edition_name",
				fmt.Sprintf("%q is defined more than once", mapping.AlternateEditionName))
		}
		m.editions[key] = ed
	}
	return m, nil
}

// NewDefaultMapper returns a Mapper with the built-in editions plus extra.
func NewDefaultMapper(extra ...Mapping) (*Mapper, error) {
	return NewMapper(append(BuiltinMappings(), extra...)...)
}

// LoadFile reads additional mappings from a YAML file shaped as
//
//	editions:
//	  - alternate_edition_name: ...
func LoadFile(path string) ([]Mapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read edition mappings: %w", err)
	}
	var doc struct {
		Editions []Mapping `yaml:"editions"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse edition mappings %s: %w", path, err)
	}
	return doc.Editions, nil
}

func compile(m Mapping) (*edition, error) {
	name := m.AlternateEditionName
	switch {
	case metadata.SeriesKey(name) == "":
		return nil, tberrors.NewConfigError("alternate_edition_name", "must not be empty")
	case metadata.SeriesKey(m.StandardSeriesName) == "":
		return nil, tberrors.NewConfigError("standard_series_name", fmt.Sprintf("missing for %q", name))
	case m.VolumesPerBook < 0:
		return nil, tberrors.NewConfigError("volumes_per_book", fmt.Sprintf("must be positive for %q", name))
	}

	ed := &edition{Mapping: m, index: make(map[string]int)}

	if m.VolumesPerBook > 0 {
		if m.TotalStandardVolumes <= 0 {
			return nil, tberrors.NewConfigError("total_standard_volumes",
				fmt.Sprintf("required with volumes_per_book for %q", name))
		}
		if len(m.MappingRules) > 0 {
			return nil, tberrors.NewConfigError("mapping_rules",
				fmt.Sprintf("cannot be combined with volumes_per_book for %q", name))
		}
		ed.books = generateRanges(m.VolumesPerBook, m.TotalStandardVolumes)
		for i := range ed.books {
			ed.index[strconv.Itoa(i+1)] = i
		}
		ed.total = m.TotalStandardVolumes
		return ed, nil
	}

	if len(m.MappingRules) == 0 {
		return nil, tberrors.NewConfigError("mapping_rules",
			fmt.Sprintf("%q needs volumes_per_book or an explicit table", name))
	}
	for _, rule := range m.MappingRules {
		book := normalizeBook(rule.Book)
		if book == "" {
			return nil, tberrors.NewConfigError("mapping_rules", fmt.Sprintf("empty book number in %q", name))
		}
		if _, dup := ed.index[book]; dup {
			return nil, tberrors.NewConfigError("mapping_rules", fmt.Sprintf("book %s listed twice in %q", book, name))
		}
		r, err := ParseRange(rule.Volumes)
		if err != nil {
			return nil, tberrors.NewConfigError("mapping_rules", fmt.Sprintf("%s in %q", err, name))
		}
		ed.index[book] = len(ed.books)
		ed.books = append(ed.books, r)
		ed.total = max(ed.total, r.End)
	}
	if m.TotalStandardVolumes > 0 {
		ed.total = m.TotalStandardVolumes
	}
	return ed, nil
}

func (m *Mapper) lookup(name string) (*edition, bool) {
	if m == nil {
		return nil, false
	}
	ed, ok := m.editions[metadata.SeriesKey(name)]
	return ed, ok
}

// IsAlternateEdition reports whether name is a known alternate edition.
func (m *Mapper) IsAlternateEdition(name string) bool {
	_, ok := m.lookup(name)
	return ok
}

// StandardSeriesName returns the series whose numbering the edition repackages.
func (m *Mapper) StandardSeriesName(name string) (string, bool) {
	ed, ok := m.lookup(name)
	if !ok {
		return "", false
	}
	return ed.StandardSeriesName, true
}

// Range returns the canonical range covered by book.
func (m *Mapper) Range(name, book string) (Range, bool) {
	ed, ok := m.lookup(name)
	if !ok {
		return Range{}, false
	}
	i, ok := ed.index[normalizeBook(book)]
	if !ok {
		return Range{}, false
	}
	return ed.books[i], true
}

// CanonicalRange returns the canonical volumes of book as "start-end", or a
// single number when an explicit table says so. The result is false for
// unknown editions and out-of-range books.
func (m *Mapper) CanonicalRange(name, book string) (string, bool) {
	r, ok := m.Range(name, book)
	if !ok {
		return "", false
	}
	return r.String(), true
}

// Volumes expands the canonical range of book into volume numbers.
func (m *Mapper) Volumes(name, book string) ([]int, bool) {
	r, ok := m.Range(name, book)
	if !ok {
		return nil, false
	}
	return r.Volumes(), true
}

// TotalCanonicalVolumes returns the number of standard volumes the edition spans.
func (m *Mapper) TotalCanonicalVolumes(name string) (int, bool) {
	ed, ok := m.lookup(name)
	if !ok {
		return 0, false
	}
	return ed.total, true
}

// BookCount returns the number of books in the edition.
func (m *Mapper) BookCount(name string) (int, bool) {
	ed, ok := m.lookup(name)
	if !ok {
		return 0, false
	}
	return len(ed.books), true
}

// Names lists the known alternate editions in alphabetical order.
func (m *Mapper) Names() []string {
	if m == nil {
		return nil
	}
	names := make([]string, 0, len(m.editions))
	for _, ed := range m.editions {
		names = append(names, ed.AlternateEditionName)
	}
	sort.Strings(names)
	return names
}

// Info describes name, treating unknown names as standard series.
func (m *Mapper) Info(name string) Info {
	ed, ok := m.lookup(name)
	if !ok {
		return Info{Name: name, StandardSeriesName: name, VolumesPerBook: 1}
	}
	books := make([]string, len(ed.books))
	for i, r := range ed.books {
		books[i] = r.String()
	}
	return Info{
		Name:               ed.AlternateEditionName,
		IsAlternateEdition: true,
		StandardSeriesName: ed.StandardSeriesName,
		TotalVolumes:       ed.total,
		BookCount:          len(ed.books),
		VolumesPerBook:     ed.VolumesPerBook,
		Description:        ed.Description,
		Books:              books,
	}
}
