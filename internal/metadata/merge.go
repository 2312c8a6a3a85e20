package metadata

// MergeVolume combines an existing cache row with a newer provider answer.
// Fields already populated on existing are kept; only empty ones are filled
// from incoming. Either argument may be nil.
func MergeVolume(existing, incoming *Volume) *Volume {
	if existing == nil {
		return incoming.Clone()
	}
	merged := existing.Clone()
	if incoming == nil {
		return merged
	}

	if merged.SeriesName == "" {
		merged.SeriesName = incoming.SeriesName
	}
	if merged.Title == "" {
		merged.Title = incoming.Title
	}
	if len(merged.Authors) == 0 && len(incoming.Authors) > 0 {
		merged.Authors = append([]string(nil), incoming.Authors...)
	}
	if merged.ISBN13 == nil || *merged.ISBN13 == "" {
		merged.ISBN13 = incoming.ISBN13
	}
	if merged.Publisher == "" {
		merged.Publisher = incoming.Publisher
	}
	if merged.CopyrightYear == nil {
		merged.CopyrightYear = incoming.CopyrightYear
	}
	if merged.Description == "" {
		merged.Description = incoming.Description
	}
	if merged.PhysicalDescription == "" {
		merged.PhysicalDescription = incoming.PhysicalDescription
	}
	if len(merged.Genres) == 0 && len(incoming.Genres) > 0 {
		merged.Genres = append([]string(nil), incoming.Genres...)
	}
	if merged.MSRP == nil {
		merged.MSRP = incoming.MSRP
	}
	if merged.CoverURL == nil || *merged.CoverURL == "" {
		merged.CoverURL = incoming.CoverURL
	}
	if merged.Source == "" {
		merged.Source = incoming.Source
	}
	return merged
}

// MergeSeries is the series counterpart of MergeVolume.
func MergeSeries(existing, incoming *Series) *Series {
	if existing == nil {
		return incoming.Clone()
	}
	merged := existing.Clone()
	if incoming == nil {
		return merged
	}

	if merged.CanonicalName == "" {
		merged.CanonicalName = incoming.CanonicalName
	}
	if len(merged.Authors) == 0 && len(incoming.Authors) > 0 {
		merged.Authors = append([]string(nil), incoming.Authors...)
	}
	if merged.TotalVolumes == 0 {
		merged.TotalVolumes = incoming.TotalVolumes
	}
	if merged.Summary == "" {
		merged.Summary = incoming.Summary
	}
	if merged.Publisher == "" {
		merged.Publisher = incoming.Publisher
	}
	if merged.Status == "" {
		merged.Status = incoming.Status
	}
	if len(merged.Genres) == 0 && len(incoming.Genres) > 0 {
		merged.Genres = append([]string(nil), incoming.Genres...)
	}
	merged.AlternativeTitles = mergeStringSlices(merged.AlternativeTitles, incoming.AlternativeTitles)
	merged.Spinoffs = mergeStringSlices(merged.Spinoffs, incoming.Spinoffs)
	merged.Adaptations = mergeStringSlices(merged.Adaptations, incoming.Adaptations)
	if merged.CoverURL == nil || *merged.CoverURL == "" {
		merged.CoverURL = incoming.CoverURL
	}
	if merged.Source == "" {
		merged.Source = incoming.Source
	}
	return merged
}

// mergeStringSlices merges two string slices, removing duplicates.
func mergeStringSlices(a, b []string) []string {
	if len(b) == 0 {
		return a
	}
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range a {
		if !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	for _, s := range b {
		if !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	return result
}
