package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/lepinkainen/tankobon/internal/metadata"
)

const (
	googleBooksBaseURL  = "https://www.googleapis.com/books/v1"
	googleBooksPriority = 2
)

// GoogleBooks searches the Google Books volumes API. It has no notion of a
// series, so Series always reports "not found".
type GoogleBooks struct {
	client
}

var _ Provider = (*GoogleBooks)(nil)

// NewGoogleBooks creates a Google Books provider. The API key is optional.
func NewGoogleBooks(apiKey string, opts ...Option) *GoogleBooks {
	return &GoogleBooks{client: newClient(apiKey, googleBooksBaseURL, nil, opts...)}
}

// Name returns the human-readable name of this provider.
func (g *GoogleBooks) Name() string { return "Google Books" }

// Priority returns the chain position (lower = tried first).
func (g *GoogleBooks) Priority() int { return googleBooksPriority }

// Kind reports that Google Books returns catalog records.
func (g *GoogleBooks) Kind() Kind { return Structured }

// Ping runs a search that should always return results.
func (g *GoogleBooks) Ping(ctx context.Context) error {
	return g.pingGET(ctx, g.Name(), g.searchURL("isbn:0140447938", 1), nil)
}

func (g *GoogleBooks) searchURL(query string, maxResults int) string {
	params := url.Values{}
	params.Set("q", query)
	params.Set("maxResults", strconv.Itoa(maxResults))
	params.Set("printType", "books")
	if g.apiKey != "" {
		params.Set("key", g.apiKey)
	}
	return g.baseURL + "/volumes?" + params.Encode()
}

// googleBooksResponse matches the Google Books API response structure.
type googleBooksResponse struct {
	TotalItems int `json:"totalItems"`
	Items      []struct {
		VolumeInfo struct {
			Title               string   `json:"title"`
			Subtitle            string   `json:"subtitle"`
			Authors             []string `json:"authors"`
			Publisher           string   `json:"publisher"`
			PublishedDate       string   `json:"publishedDate"`
			Description         string   `json:"description"`
			PageCount           int      `json:"pageCount"`
			Categories          []string `json:"categories"`
			IndustryIdentifiers []struct {
				Type       string `json:"type"`
				Identifier string `json:"identifier"`
			} `json:"industryIdentifiers"`
			ImageLinks struct {
				Thumbnail      string `json:"thumbnail"`
				SmallThumbnail string `json:"smallThumbnail"`
			} `json:"imageLinks"`
		} `json:"volumeInfo"`
		SaleInfo struct {
			ListPrice struct {
				Amount       float64 `json:"amount"`
				CurrencyCode string  `json:"currencyCode"`
			} `json:"listPrice"`
		} `json:"saleInfo"`
	} `json:"items"`
}

// Series is not supported by Google Books.
func (g *GoogleBooks) Series(_ context.Context, _ string) (*metadata.Series, error) {
	return nil, nil
}

var numberPattern = regexp.MustCompile(`\d+`)

// titleHasNumber reports whether number appears as a standalone number in title.
func titleHasNumber(title string, number int) bool {
	want := strconv.Itoa(number)
	for _, n := range numberPattern.FindAllString(title, -1) {
		if strings.TrimLeft(n, "0") == want {
			return true
		}
	}
	return false
}

// Volume searches for "<series> vol <n>" and takes the first result whose
// title carries the volume number.
func (g *GoogleBooks) Volume(ctx context.Context, series string, number int) (*metadata.Volume, error) {
	query := fmt.Sprintf(`intitle:"%s" %d`, strings.ReplaceAll(series, `"`, ""), number)
	req, err := newJSONRequest(ctx, http.MethodGet, g.searchURL(query, 10), nil)
	if err != nil {
		return nil, err
	}

	var result googleBooksResponse
	if err := g.doJSON(ctx, g.Name(), req, &result); err != nil {
		return nil, err
	}

	for _, item := range result.Items {
		info := item.VolumeInfo
		if !titleHasNumber(info.Title+" "+info.Subtitle, number) {
			continue
		}

		title := info.Title
		if info.Subtitle != "" {
			title = title + ": " + info.Subtitle
		}
		v := &metadata.Volume{
			SeriesKey:   metadata.SeriesKey(series),
			SeriesName:  strings.TrimSpace(series),
			Number:      number,
			Title:       title,
			Authors:     info.Authors,
			Publisher:   info.Publisher,
			Description: info.Description,
			Genres:      info.Categories,
			Source:      g.Name(),
		}
		for _, id := range info.IndustryIdentifiers {
			if id.Type == "ISBN_13" {
				v.ISBN13 = metadata.StringPtr(id.Identifier)
			}
		}
		if len(info.PublishedDate) >= 4 {
			if year, err := strconv.Atoi(info.PublishedDate[:4]); err == nil {
				v.CopyrightYear = &year
			}
		}
		if info.PageCount > 0 {
			v.PhysicalDescription = fmt.Sprintf("%d pages", info.PageCount)
		}
		if price := item.SaleInfo.ListPrice; price.Amount > 0 && (price.CurrencyCode == "" || price.CurrencyCode == "USD") {
			amount := price.Amount
			v.MSRP = &amount
		}

		// Prefer larger thumbnail
		coverURL := info.ImageLinks.Thumbnail
		if coverURL == "" {
			coverURL = info.ImageLinks.SmallThumbnail
		}
		if coverURL != "" {
			coverURL = strings.Replace(coverURL, "http://", "https://", 1)
			coverURL = strings.Replace(coverURL, "&edge=curl", "", 1)
			v.CoverURL = &coverURL
		}

		metadata.CleanVolume(v)
		return v, nil
	}

	// Not found allows other providers to try
	return nil, nil
}
