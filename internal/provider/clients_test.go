package provider

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tberrors "github.com/lepinkainen/tankobon/internal/errors"
	"github.com/lepinkainen/tankobon/internal/metadata"
)

func chatReply(content string) string {
	body, _ := json.Marshal(map[string]any{
		"choices": []any{map[string]any{"message": map[string]string{"role": "assistant", "content": content}}},
	})
	return string(body)
}

func TestDeepSeek_Series(t *testing.T) {
	var gotAuth string
	var gotBody chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_, _ = io.WriteString(w, chatReply("```json\n"+`{
			"corrected_series_name": "Attack on Titan",
			"authors": "Hajime Isayama",
			"extant_volumes": "34 (as of 2021)",
			"summary": "<b>Humanity</b> fights &amp; survives.",
			"genres": ["Action", "action", "Dark Fantasy"],
			"status": "Completed"
		}`+"\n```"))
	}))
	defer server.Close()

	ds := NewDeepSeek("secret", WithBaseURL(server.URL))
	s, err := ds.Series(context.Background(), "attack on titan")
	require.NoError(t, err)
	require.NotNil(t, s)

	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, "deepseek-chat", gotBody.Model)
	assert.Equal(t, "json_object", gotBody.ResponseFormat["type"])
	assert.Contains(t, gotBody.Messages[1].Content, `"attack on titan"`)

	assert.Equal(t, "Attack on Titan", s.CanonicalName)
	assert.Equal(t, "attack on titan", s.Key)
	assert.Equal(t, []string{"Hajime Isayama"}, s.Authors)
	assert.Equal(t, 34, s.TotalVolumes)
	assert.Equal(t, "Humanity fights & survives.", s.Summary)
	assert.Equal(t, []string{"Action", "Dark Fantasy"}, s.Genres)
	assert.Equal(t, "completed", s.Status)
	assert.Equal(t, "DeepSeek", s.Source)
}

func TestDeepSeek_VolumeEmptyObjectIsNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, chatReply("{}"))
	}))
	defer server.Close()

	v, err := NewDeepSeek("k", WithBaseURL(server.URL)).Volume(context.Background(), "Nothing", 3)
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestDeepSeek_Volume(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, chatReply(`Sure! {"book_title": "Attack on Titan 3", "authors": ["Hajime Isayama"],
			"isbn_13": 9781612620268, "publisher_name": "Kodansha Comics", "copyright_year": 2012,
			"msrp": "$10.99"}`))
	}))
	defer server.Close()

	v, err := NewDeepSeek("k", WithBaseURL(server.URL)).Volume(context.Background(), "Attack on Titan", 3)
	require.NoError(t, err)
	require.NotNil(t, v)

	assert.Equal(t, "Attack on Titan 3", v.Title)
	assert.Equal(t, 3, v.Number)
	require.NotNil(t, v.ISBN13)
	assert.Equal(t, "9781612620268", *v.ISBN13)
	require.NotNil(t, v.CopyrightYear)
	assert.Equal(t, 2012, *v.CopyrightYear)
	require.NotNil(t, v.MSRP)
	assert.InDelta(t, 10.99, *v.MSRP, 0.001)
}

func TestDeepSeek_MalformedAnswer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, chatReply("I could not find that series, sorry."))
	}))
	defer server.Close()

	_, err := NewDeepSeek("k", WithBaseURL(server.URL)).Series(context.Background(), "x")
	require.Error(t, err)
	assert.True(t, tberrors.IsMalformedResponseError(err))
}

func TestDeepSeek_SuggestNames(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, chatReply(`{"suggestions": ["Attack on Titan", "attack on titan", "Attack on Titan: No Regrets"]}`))
	}))
	defer server.Close()

	names, err := NewDeepSeek("k", WithBaseURL(server.URL)).SuggestNames(context.Background(), "atack on titen")
	require.NoError(t, err)
	assert.Equal(t, []string{"Attack on Titan", "Attack on Titan: No Regrets"}, names)
}

func TestDeepSeek_SeriesWithoutNameOrAuthorsIsNotValid(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, chatReply(`{"status": "unknown", "genres": ["Manga"]}`))
	}))
	defer server.Close()

	s, err := NewDeepSeek("k", WithBaseURL(server.URL)).Series(context.Background(), "Yotsuba")
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Empty(t, s.CanonicalName)
	assert.False(t, s.Valid())
}

func TestChain_SeriesFallsPastDeepSeekAnswerWithoutNameOrAuthors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, chatReply(`{"status": "unknown", "genres": ["Manga"]}`))
	}))
	defer server.Close()

	next := &fakeProvider{name: "next", priority: 1, series: func(int) (*metadata.Series, error) {
		return &metadata.Series{Authors: []string{"Kiyohiko Azuma"}}, nil
	}}
	chain := NewChain().
		Add(NewDeepSeek("k", WithBaseURL(server.URL)), testPolicy()).
		Add(next, testPolicy())

	res := chain.ResolveSeries(context.Background(), " Yotsuba ")
	require.True(t, res.Found())
	calls, _ := next.calls()
	assert.Equal(t, 1, calls)
	assert.Equal(t, "next", res.Series.Source)
	assert.Equal(t, "Yotsuba", res.Series.CanonicalName, "query names an answer that has authors only")
}

func TestHTTPStatusClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		header map[string]string
		body   string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "429 with retry hint",
			status: http.StatusTooManyRequests,
			header: map[string]string{"Retry-After": "30"},
			check: func(t *testing.T, err error) {
				assert.True(t, tberrors.IsRateLimitError(err))
				assert.Equal(t, 30*time.Second, tberrors.RetryAfter(err))
			},
		},
		{
			name:   "503",
			status: http.StatusServiceUnavailable,
			body:   "overloaded",
			check: func(t *testing.T, err error) {
				assert.True(t, tberrors.IsServerError(err))
				assert.Contains(t, err.Error(), "overloaded")
			},
		},
		{
			name:   "401",
			status: http.StatusUnauthorized,
			check: func(t *testing.T, err error) {
				assert.False(t, tberrors.IsServerError(err))
				assert.False(t, tberrors.IsRateLimitError(err))
				assert.Contains(t, err.Error(), "401")
			},
		},
		{
			name:   "200 with broken JSON",
			status: http.StatusOK,
			body:   "{not json",
			check: func(t *testing.T, err error) {
				assert.True(t, tberrors.IsMalformedResponseError(err))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				for k, v := range tt.header {
					w.Header().Set(k, v)
				}
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer server.Close()

			_, err := NewDeepSeek("k", WithBaseURL(server.URL)).Volume(context.Background(), "x", 1)
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Duration(0), parseRetryAfter("", now))
	assert.Equal(t, 5*time.Second, parseRetryAfter("5", now))
	assert.Equal(t, time.Duration(0), parseRetryAfter("-3", now))
	assert.Equal(t, 90*time.Second, parseRetryAfter(now.Add(90*time.Second).Format(http.TimeFormat), now))
	assert.Equal(t, time.Duration(0), parseRetryAfter("soon", now))
}

func geminiReply(text string) string {
	body, _ := json.Marshal(map[string]any{
		"candidates": []any{map[string]any{
			"content": map[string]any{"parts": []any{map[string]string{"text": text}}},
		}},
	})
	return string(body)
}

func TestGemini_FallsBackToNextModelOnIncompleteAnswer(t *testing.T) {
	var mu sync.Mutex
	var paths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()
		assert.Equal(t, "gm-key", r.Header.Get("x-goog-api-key"))

		if strings.Contains(r.URL.Path, "flash-lite") {
			_, _ = io.WriteString(w, geminiReply(`{"status": "ongoing", "genres": ["Historical"]}`))
			return
		}
		_, _ = io.WriteString(w, geminiReply(`{"corrected_series_name": "Vinland Saga", "authors": ["Makoto Yukimura"], "extant_volumes": 14}`))
	}))
	defer server.Close()

	g := NewGemini("gm-key", WithBaseURL(server.URL))
	s, err := g.Series(context.Background(), "vinland saga")
	require.NoError(t, err)
	require.NotNil(t, s)

	assert.Equal(t, "Vinland Saga", s.CanonicalName)
	assert.Equal(t, 14, s.TotalVolumes)
	assert.Empty(t, s.Genres, "fields of the skipped answer are not carried over")
	assert.Equal(t, []string{
		"/models/gemini-2.5-flash-lite:generateContent",
		"/models/gemini-2.5-pro:generateContent",
	}, paths)
}

func TestGemini_EmptyObjectFromEveryModelIsNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, geminiReply("{}"))
	}))
	defer server.Close()

	v, err := NewGemini("k", WithBaseURL(server.URL)).Volume(context.Background(), "Unknown", 1)
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestGemini_ErrorsAreReturnedWithoutModelFallback(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := NewGemini("k", WithBaseURL(server.URL)).Volume(context.Background(), "x", 1)
	assert.True(t, tberrors.IsRateLimitError(err))
	assert.Equal(t, 1, calls)
}

func TestGemini_MalformedAnswerIsReturnedWithoutModelFallback(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
		_, _ = io.WriteString(w, geminiReply("I'm sorry, I don't know that series."))
	}))
	defer server.Close()

	_, err := NewGemini("k", WithBaseURL(server.URL)).Series(context.Background(), "x")
	require.Error(t, err)
	assert.True(t, tberrors.IsMalformedResponseError(err))
	assert.Equal(t, 1, calls)
}

func TestGemini_ShortAnswerWithTitleIsAccepted(t *testing.T) {
	var mu sync.Mutex
	var paths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()
		_, _ = io.WriteString(w, geminiReply(`{"book_title":"X"}`))
	}))
	defer server.Close()

	v, err := NewGemini("k", WithBaseURL(server.URL)).Volume(context.Background(), "X", 1)
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, "X", v.Title)
	assert.Equal(t, []string{"/models/gemini-2.5-flash-lite:generateContent"}, paths)
}

func TestAnswerComplete(t *testing.T) {
	assert.False(t, (&seriesAnswer{Genres: flexStrings{"Manga"}}).complete())
	assert.True(t, (&seriesAnswer{CorrectedSeriesName: "Berserk"}).complete())
	assert.True(t, (&seriesAnswer{Authors: flexStrings{"Kentaro Miura"}}).complete())
	assert.False(t, (&volumeAnswer{BookTitle: "  "}).complete())
	assert.True(t, (&volumeAnswer{Authors: flexStrings{"Hajime Isayama"}}).complete())
}

const googleBooksFixture = `{
  "totalItems": 2,
  "items": [
    {"volumeInfo": {"title": "Attack on Titan 12"}},
    {
      "volumeInfo": {
        "title": "Attack on Titan",
        "subtitle": "Volume 3",
        "authors": ["Hajime Isayama"],
        "publisher": "Kodansha Comics",
        "publishedDate": "2012-12-04",
        "description": "<p>The Survey Corps rides out.</p>",
        "pageCount": 192,
        "categories": ["Comics & Graphic Novels"],
        "industryIdentifiers": [
          {"type": "ISBN_10", "identifier": "1612620264"},
          {"type": "ISBN_13", "identifier": "9781612620268"}
        ],
        "imageLinks": {"thumbnail": "http://books.google.com/books/content?id=abc&zoom=1&edge=curl"}
      },
      "saleInfo": {"listPrice": {"amount": 10.99, "currencyCode": "USD"}}
    }
  ]
}`

func TestGoogleBooks_Volume(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/volumes", r.URL.Path)
		gotQuery = r.URL.Query().Get("q")
		assert.Equal(t, "gb-key", r.URL.Query().Get("key"))
		_, _ = io.WriteString(w, googleBooksFixture)
	}))
	defer server.Close()

	v, err := NewGoogleBooks("gb-key", WithBaseURL(server.URL)).Volume(context.Background(), "Attack on Titan", 3)
	require.NoError(t, err)
	require.NotNil(t, v)

	assert.Equal(t, `intitle:"Attack on Titan" 3`, gotQuery)
	assert.Equal(t, "Attack on Titan: Volume 3", v.Title)
	assert.Equal(t, []string{"Hajime Isayama"}, v.Authors)
	require.NotNil(t, v.ISBN13)
	assert.Equal(t, "9781612620268", *v.ISBN13)
	require.NotNil(t, v.CopyrightYear)
	assert.Equal(t, 2012, *v.CopyrightYear)
	assert.Equal(t, "192 pages", v.PhysicalDescription)
	assert.Equal(t, "The Survey Corps rides out.", v.Description)
	require.NotNil(t, v.MSRP)
	assert.InDelta(t, 10.99, *v.MSRP, 0.001)
	require.NotNil(t, v.CoverURL)
	assert.Equal(t, "https://books.google.com/books/content?id=abc&zoom=1", *v.CoverURL)
	assert.Equal(t, "Google Books", v.Source)
}

func TestGoogleBooks_NoMatchingVolumeNumber(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, googleBooksFixture)
	}))
	defer server.Close()

	v, err := NewGoogleBooks("", WithBaseURL(server.URL)).Volume(context.Background(), "Attack on Titan", 7)
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestGoogleBooks_SeriesIsNotSupported(t *testing.T) {
	s, err := NewGoogleBooks("").Series(context.Background(), "Attack on Titan")
	assert.NoError(t, err)
	assert.Nil(t, s)
}

func TestTitleHasNumber(t *testing.T) {
	assert.True(t, titleHasNumber("Berserk Volume 03", 3))
	assert.False(t, titleHasNumber("Berserk Volume 13", 3))
	assert.False(t, titleHasNumber("Berserk", 1))
}

func TestMangaDex_VolumeCount(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/manga", r.URL.Path)
		assert.Equal(t, "Attack on Titan", r.URL.Query().Get("title"))
		_, _ = io.WriteString(w, `{"data": [
			{"id": "a", "attributes": {"title": {"en": "Attack on Titan: Before the Fall"}, "lastVolume": "17"}},
			{"id": "b", "attributes": {"title": {"ja-ro": "Shingeki no Kyojin"},
				"altTitles": [{"en": "Attack on Titan"}], "lastVolume": "34"}}
		]}`)
	}))
	defer server.Close()

	n, err := NewMangaDex(WithBaseURL(server.URL)).VolumeCount(context.Background(), "Attack on Titan")
	require.NoError(t, err)
	assert.Equal(t, 34, n)
}

func TestMangaDex_UnknownCount(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"data": [{"id": "a", "attributes": {"title": {"en": "Ongoing"}, "lastVolume": ""}}]}`)
	}))
	defer server.Close()

	n, err := NewMangaDex(WithBaseURL(server.URL)).VolumeCount(context.Background(), "Ongoing")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestMangaDex_Ping(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ping", r.URL.Path)
		_, _ = io.WriteString(w, "pong")
	}))
	defer server.Close()

	assert.NoError(t, NewMangaDex(WithBaseURL(server.URL)).Ping(context.Background()))
}
