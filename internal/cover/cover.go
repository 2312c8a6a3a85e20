// Package cover downloads volume cover images, rejects placeholders and
// stores resized JPEG copies.
package cover

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"

	"github.com/lepinkainen/tankobon/internal/metadata"
)

const (
	defaultMaxWidth = 600
	// Catalogs serve tiny "no image" placeholders instead of a 404.
	minWidth = 50
)

var (
	// ErrNoCover is returned when the volume has no cover URL.
	ErrNoCover = errors.New("volume has no cover URL")
	// ErrNotImage is returned when the URL does not serve an image.
	ErrNotImage = errors.New("cover URL did not return an image")
	// ErrPlaceholder is returned for images too small to be a real cover.
	ErrPlaceholder = errors.New("cover image is a placeholder")
)

// HTTPDoer is the subset of *http.Client used to download covers.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Fetcher saves covers under a directory.
type Fetcher struct {
	httpClient HTTPDoer
	dir        string
	maxWidth   int
	overwrite  bool
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient sets the client used for downloads.
func WithHTTPClient(c HTTPDoer) Option {
	return func(f *Fetcher) {
		if c != nil {
			f.httpClient = c
		}
	}
}

// WithMaxWidth sets the width covers are shrunk to.
func WithMaxWidth(w int) Option {
	return func(f *Fetcher) {
		if w > 0 {
			f.maxWidth = w
		}
	}
}

// WithOverwrite re-downloads covers that already exist.
func WithOverwrite(overwrite bool) Option {
	return func(f *Fetcher) {
		f.overwrite = overwrite
	}
}

// NewFetcher creates a Fetcher writing into dir.
func NewFetcher(dir string, opts ...Option) *Fetcher {
	f := &Fetcher{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		dir:        dir,
		maxWidth:   defaultMaxWidth,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Result describes a saved cover.
type Result struct {
	Path       string `json:"path"`
	Downloaded bool   `json:"downloaded"`
	Width      int    `json:"width,omitempty"`
	Height     int    `json:"height,omitempty"`
}

var filenameReplacer = strings.NewReplacer(
	": ", " - ",
	"/", "-", "\\", "-", ":", "-", "*", "-",
	"?", "", "\"", "", "<", "", ">", "", "|", "-",
)

// Filename returns the file name used for a volume's cover.
func Filename(series string, number int) string {
	name := filenameReplacer.Replace(strings.Join(strings.Fields(series), " "))
	name = strings.Trim(strings.ReplaceAll(name, "..", "."), ". ")
	if name == "" {
		name = "cover"
	}
	return fmt.Sprintf("%s - v%03d.jpg", name, number)
}

// Fetch downloads the cover of v. An existing file is kept unless the
// Fetcher overwrites.
func (f *Fetcher) Fetch(ctx context.Context, v *metadata.Volume) (*Result, error) {
	if v == nil || v.CoverURL == nil || *v.CoverURL == "" {
		return nil, ErrNoCover
	}

	series := v.SeriesName
	if series == "" {
		series = v.SeriesKey
	}
	path := filepath.Join(f.dir, filepath.Base(Filename(series, v.Number)))
	result := &Result{Path: path}

	if _, err := os.Stat(path); err == nil && !f.overwrite {
		slog.Debug("Cover already exists, skipping download", "path", path)
		return result, nil
	}

	if err := f.download(ctx, *v.CoverURL, path, result); err != nil {
		return nil, err
	}
	result.Downloaded = true
	slog.Info("Downloaded cover", "series", series, "volume", v.Number, "path", path)
	return result, nil
}

func (f *Fetcher) download(ctx context.Context, imageURL, savePath string, result *Result) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return fmt.Errorf("creating cover request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download cover: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d downloading cover from %s", resp.StatusCode, imageURL)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "image/") {
		return fmt.Errorf("%w: content type %q", ErrNotImage, ct)
	}

	img, err := imaging.Decode(resp.Body, imaging.AutoOrientation(true))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotImage, err)
	}

	if img.Bounds().Dx() < minWidth {
		return fmt.Errorf("%w: %dpx wide", ErrPlaceholder, img.Bounds().Dx())
	}
	if img.Bounds().Dx() > f.maxWidth {
		img = imaging.Resize(img, f.maxWidth, 0, imaging.Lanczos)
	}

	if err := os.MkdirAll(filepath.Dir(savePath), 0o755); err != nil {
		return fmt.Errorf("failed to create cover directory: %w", err)
	}
	if err := imaging.Save(img, savePath, imaging.JPEGQuality(85)); err != nil {
		return fmt.Errorf("failed to save cover: %w", err)
	}

	result.Width = img.Bounds().Dx()
	result.Height = img.Bounds().Dy()
	return nil
}
