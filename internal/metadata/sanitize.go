package metadata

import (
	"html"
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
)

var strictPolicy = bluemonday.StrictPolicy()

// CleanText strips markup from provider text and collapses whitespace.
func CleanText(s string) string {
	if s == "" {
		return ""
	}
	s = html.UnescapeString(strictPolicy.Sanitize(s))
	return strings.Join(strings.Fields(s), " ")
}

// CleanList trims and de-duplicates a list while keeping its order.
func CleanList(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = CleanText(s)
		if s == "" || seen[strings.ToLower(s)] {
			continue
		}
		seen[strings.ToLower(s)] = true
		out = append(out, s)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// NormalizeISBN13 returns the 13-digit ISBN for a hyphenated ISBN-13 or an
// ISBN-10, or "" when the input has a bad length or checksum.
func NormalizeISBN13(raw string) string {
	digits := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) || r == 'X' || r == 'x' {
			return unicode.ToUpper(r)
		}
		return -1
	}, raw)

	switch len(digits) {
	case 13:
		if strings.ContainsRune(digits, 'X') || !validISBN13(digits) {
			return ""
		}
		return digits
	case 10:
		if !validISBN10(digits) {
			return ""
		}
		body := "978" + digits[:9]
		return body + string(rune('0'+isbn13Check(body)))
	default:
		return ""
	}
}

func validISBN13(d string) bool {
	return isbn13Check(d[:12]) == int(d[12]-'0')
}

func isbn13Check(body string) int {
	sum := 0
	for i, r := range body {
		n := int(r - '0')
		if i%2 == 1 {
			n *= 3
		}
		sum += n
	}
	return (10 - sum%10) % 10
}

func validISBN10(d string) bool {
	sum := 0
	for i, r := range d {
		var n int
		switch {
		case r == 'X' && i == 9:
			n = 10
		case r >= '0' && r <= '9':
			n = int(r - '0')
		default:
			return false
		}
		sum += (10 - i) * n
	}
	return sum%11 == 0
}

// CleanVolume normalises provider output in place before it is cached.
func CleanVolume(v *Volume) {
	if v == nil {
		return
	}
	v.Title = CleanText(v.Title)
	v.Authors = CleanList(v.Authors)
	v.Publisher = CleanText(v.Publisher)
	v.Description = CleanText(v.Description)
	v.PhysicalDescription = CleanText(v.PhysicalDescription)
	v.Genres = CleanList(v.Genres)
	if v.ISBN13 != nil {
		v.ISBN13 = StringPtr(NormalizeISBN13(*v.ISBN13))
	}
	if v.MSRP != nil && *v.MSRP <= 0 {
		v.MSRP = nil
	}
	if v.CopyrightYear != nil && *v.CopyrightYear <= 0 {
		v.CopyrightYear = nil
	}
	if v.CoverURL != nil {
		v.CoverURL = StringPtr(*v.CoverURL)
	}
}

// CleanSeries normalises provider output in place before it is cached.
func CleanSeries(s *Series) {
	if s == nil {
		return
	}
	s.CanonicalName = CleanText(s.CanonicalName)
	s.Authors = CleanList(s.Authors)
	s.Summary = CleanText(s.Summary)
	s.Publisher = CleanText(s.Publisher)
	s.Status = strings.ToLower(CleanText(s.Status))
	s.Genres = CleanList(s.Genres)
	s.AlternativeTitles = CleanList(s.AlternativeTitles)
	s.Spinoffs = CleanList(s.Spinoffs)
	s.Adaptations = CleanList(s.Adaptations)
	if s.TotalVolumes < 0 {
		s.TotalVolumes = 0
	}
	if s.CoverURL != nil {
		s.CoverURL = StringPtr(*s.CoverURL)
	}
}
