package provider

import (
	"fmt"
	"strings"
	"time"

	"github.com/lepinkainen/tankobon/internal/metadata"
)

const systemPrompt = "You are a manga and light novel bibliographer. Answer with a single JSON object and nothing else."

func seriesPrompt(name string) string {
	return fmt.Sprintf(`Provide information about the manga series %q as a JSON object with these keys:
- "corrected_series_name": the official English series name
- "authors": array of author names
- "extant_volumes": integer number of volumes published in English so far
- "summary": a short summary of the series
- "genres": array of genres
- "publisher": the English-language publisher
- "status": "ongoing", "completed" or "hiatus"
- "alternative_titles": array of other titles
- "spinoff_series": array of spinoff series names
- "adaptations": array of anime, film or other adaptations

If you cannot find information about this series, return an empty JSON object {}`, name)
}

func volumePrompt(series string, number int) string {
	return fmt.Sprintf(`Provide information about volume %d of the manga series %q (English edition) as a JSON object with these keys:
- "book_title": the full title of this volume
- "authors": array of author names
- "isbn_13": the ISBN-13 of the English edition
- "publisher_name": the English-language publisher
- "copyright_year": integer year of the English copyright
- "physical_description": page count and dimensions
- "description": a short description of this volume
- "genres": array of genres
- "msrp": the US list price as a number

If you cannot find information about this volume, return an empty JSON object {}`, number, series)
}

func suggestionPrompt(name string) string {
	return fmt.Sprintf(`The user typed %q while searching for a manga series. It may be misspelled or abbreviated.
Return a JSON object {"suggestions": [...]} with up to five official English series names the user most likely meant, best match first.
If nothing plausible matches, return an empty JSON object {}`, name)
}

type seriesAnswer struct {
	CorrectedSeriesName string      `json:"corrected_series_name"`
	Authors             flexStrings `json:"authors"`
	ExtantVolumes       flexInt     `json:"extant_volumes"`
	Summary             string      `json:"summary"`
	Genres              flexStrings `json:"genres"`
	Publisher           string      `json:"publisher"`
	Status              string      `json:"status"`
	AlternativeTitles   flexStrings `json:"alternative_titles"`
	SpinoffSeries       flexStrings `json:"spinoff_series"`
	Adaptations         flexStrings `json:"adaptations"`
}

func (a *seriesAnswer) complete() bool {
	return strings.TrimSpace(a.CorrectedSeriesName) != "" || len(a.Authors) > 0
}

func (a seriesAnswer) toSeries(query, source string) *metadata.Series {
	s := &metadata.Series{
		Key:               metadata.SeriesKey(query),
		CanonicalName:     strings.TrimSpace(a.CorrectedSeriesName),
		Authors:           a.Authors,
		TotalVolumes:      int(a.ExtantVolumes),
		Summary:           a.Summary,
		Publisher:         a.Publisher,
		Status:            a.Status,
		Genres:            a.Genres,
		AlternativeTitles: a.AlternativeTitles,
		Spinoffs:          a.SpinoffSeries,
		Adaptations:       a.Adaptations,
		Source:            source,
	}
	metadata.CleanSeries(s)
	return s
}

type volumeAnswer struct {
	BookTitle           string      `json:"book_title"`
	Authors             flexStrings `json:"authors"`
	ISBN13              flexString  `json:"isbn_13"`
	PublisherName       string      `json:"publisher_name"`
	CopyrightYear       flexInt     `json:"copyright_year"`
	PhysicalDescription string      `json:"physical_description"`
	Description         string      `json:"description"`
	Genres              flexStrings `json:"genres"`
	MSRP                flexFloat   `json:"msrp"`
}

func (a *volumeAnswer) complete() bool {
	return strings.TrimSpace(a.BookTitle) != "" || len(a.Authors) > 0
}

func (a volumeAnswer) toVolume(series string, number int, source string) *metadata.Volume {
	v := &metadata.Volume{
		SeriesKey:           metadata.SeriesKey(series),
		SeriesName:          strings.TrimSpace(series),
		Number:              number,
		Title:               a.BookTitle,
		Authors:             a.Authors,
		ISBN13:              metadata.StringPtr(string(a.ISBN13)),
		Publisher:           a.PublisherName,
		PhysicalDescription: a.PhysicalDescription,
		Description:         a.Description,
		Genres:              a.Genres,
		Source:              source,
	}
	if y := int(a.CopyrightYear); y > 0 && y <= time.Now().Year()+1 {
		v.CopyrightYear = &y
	}
	if p := float64(a.MSRP); p > 0 {
		v.MSRP = &p
	}
	metadata.CleanVolume(v)
	return v
}

type suggestionAnswer struct {
	Suggestions flexStrings `json:"suggestions"`
}
