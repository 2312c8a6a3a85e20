package provider

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

const mangaDexBaseURL = "https://api.mangadex.org"

// MangaDex answers volume counts from the MangaDex catalog.
type MangaDex struct {
	client
}

var _ VolumeCounter = (*MangaDex)(nil)

// NewMangaDex creates a MangaDex volume counter. No credentials are needed.
func NewMangaDex(opts ...Option) *MangaDex {
	return &MangaDex{client: newClient("", mangaDexBaseURL, nil, opts...)}
}

// Name returns the human-readable name of this counter.
func (m *MangaDex) Name() string { return "MangaDex" }

// Ping calls the MangaDex health endpoint.
func (m *MangaDex) Ping(ctx context.Context) error {
	return m.pingGET(ctx, m.Name(), m.baseURL+"/ping", nil)
}

type mangaDexSearchResponse struct {
	Data []struct {
		ID         string `json:"id"`
		Attributes struct {
			Title      map[string]string   `json:"title"`
			AltTitles  []map[string]string `json:"altTitles"`
			LastVolume string              `json:"lastVolume"`
		} `json:"attributes"`
	} `json:"data"`
}

// VolumeCount searches by title and returns lastVolume of the closest match.
func (m *MangaDex) VolumeCount(ctx context.Context, series string) (int, error) {
	params := url.Values{}
	params.Set("title", series)
	params.Set("limit", "5")
	req, err := newJSONRequest(ctx, http.MethodGet, m.baseURL+"/manga?"+params.Encode(), nil)
	if err != nil {
		return 0, err
	}

	var result mangaDexSearchResponse
	if err := m.doJSON(ctx, m.Name(), req, &result); err != nil {
		return 0, err
	}
	if len(result.Data) == 0 {
		return 0, nil
	}

	best, bestDistance := 0, -1
	for i, manga := range result.Data {
		for _, title := range mangaTitles(manga.Attributes.Title, manga.Attributes.AltTitles) {
			d := fuzzy.LevenshteinDistance(strings.ToLower(series), strings.ToLower(title))
			if bestDistance < 0 || d < bestDistance {
				best, bestDistance = i, d
			}
		}
	}

	last := strings.TrimSpace(result.Data[best].Attributes.LastVolume)
	n, err := strconv.Atoi(last)
	if err != nil || n <= 0 {
		return 0, nil
	}
	return n, nil
}

func mangaTitles(title map[string]string, alt []map[string]string) []string {
	var out []string
	for _, t := range title {
		out = append(out, t)
	}
	for _, m := range alt {
		if t, ok := m["en"]; ok {
			out = append(out, t)
		}
	}
	return out
}
