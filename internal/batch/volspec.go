package batch

import (
	"fmt"
	"strings"

	"github.com/lepinkainen/tankobon/internal/edition"
)

// MaxSpecVolumes caps how many numbers one volume spec may expand to.
const MaxSpecVolumes = 500

// ParseVolumeSpec expands a comma-separated list of numbers and inclusive
// ranges, "1-3,7" → [1 2 3 7]. Order and duplicates are kept as written.
func ParseVolumeSpec(spec string) ([]int, error) {
	if strings.TrimSpace(spec) == "" {
		return nil, fmt.Errorf("empty volume spec")
	}

	var out []int
	for _, part := range strings.Split(spec, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		r, err := edition.ParseRange(part)
		if err != nil {
			return nil, err
		}
		if r.Len() > MaxSpecVolumes-len(out) {
			return nil, fmt.Errorf("volume spec %q expands to more than %d volumes", spec, MaxSpecVolumes)
		}
		out = append(out, r.Volumes()...)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("empty volume spec")
	}
	return out, nil
}
