package provider

import (
	"slices"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/lepinkainen/tankobon/internal/metadata"
)

// RankCandidates orders suggested series names by closeness to query.
// Names that contain the query as a fuzzy subsequence come first, ordered by
// match distance; the rest follow by edit distance. Duplicates are dropped.
func RankCandidates(query string, candidates []string) []string {
	cleaned := metadata.CleanList(candidates)
	if len(cleaned) == 0 {
		return nil
	}

	q := strings.ToLower(strings.Join(strings.Fields(query), " "))
	matches := fuzzy.RankFindFold(q, cleaned)
	sort.Stable(matches)

	out := make([]string, 0, len(cleaned))
	seen := make(map[int]bool, len(matches))
	for _, r := range matches {
		out = append(out, r.Target)
		seen[r.OriginalIndex] = true
	}

	var rest []string
	for i, c := range cleaned {
		if !seen[i] {
			rest = append(rest, c)
		}
	}
	slices.SortStableFunc(rest, func(a, b string) int {
		return fuzzy.LevenshteinDistance(q, strings.ToLower(a)) - fuzzy.LevenshteinDistance(q, strings.ToLower(b))
	})
	return append(out, rest...)
}
