package edition

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	formatPattern = regexp.MustCompile(`(?i)(\d+)\s*\(in the ([\w\s'-]+?) format`)
	asOfPattern   = regexp.MustCompile(`(?i)^\s*(\d+)\s*\(as of`)
	plainPattern  = regexp.MustCompile(`^\s*(\d+)\s*$`)
)

// VolumeDescription is what could be read out of a free-text volume count
// such as "34", "12 (as of 2023)" or "7 (in the Colossal Edition format ...)".
type VolumeDescription struct {
	Range              string
	TotalVolumes       int
	IsAlternateEdition bool
	Edition            string
}

// ParseVolumeCount extracts a plain volume count from "34" or
// "12 (as of 2023)". It returns false for anything else.
func ParseVolumeCount(desc string) (int, bool) {
	for _, re := range []*regexp.Regexp{plainPattern, asOfPattern} {
		if m := re.FindStringSubmatch(desc); m != nil {
			n, err := strconv.Atoi(m[1])
			if err == nil && n > 0 {
				return n, true
			}
		}
	}
	return 0, false
}

// ParseVolumeDescription interprets a provider's volume-count answer. A
// "(in the X format" phrase is matched against the known editions whose name
// contains X.
func (m *Mapper) ParseVolumeDescription(desc string) VolumeDescription {
	if match := formatPattern.FindStringSubmatch(desc); match != nil {
		format := strings.ToLower(strings.TrimSpace(match[2]))
		for _, name := range m.Names() {
			if !strings.Contains(strings.ToLower(name), format) {
				continue
			}
			out := VolumeDescription{IsAlternateEdition: true, Edition: name}
			out.TotalVolumes, _ = m.BookCount(name)
			out.Range, _ = m.CanonicalRange(name, match[1])
			return out
		}
	}

	if n, ok := ParseVolumeCount(desc); ok {
		return VolumeDescription{Range: "1-" + strconv.Itoa(n), TotalVolumes: n}
	}
	return VolumeDescription{}
}
