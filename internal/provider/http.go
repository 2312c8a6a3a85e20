package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	tberrors "github.com/lepinkainen/tankobon/internal/errors"
)

const maxResponseBytes = 4 << 20

// HTTPDoer is the subset of *http.Client used by providers.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// client holds what every HTTP provider shares.
type client struct {
	httpClient HTTPDoer
	baseURL    string
	apiKey     string
	models     []string
}

// Option configures an HTTP provider.
type Option func(*client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c HTTPDoer) Option {
	return func(cl *client) {
		if c != nil {
			cl.httpClient = c
		}
	}
}

// WithBaseURL overrides the API base URL.
func WithBaseURL(u string) Option {
	return func(cl *client) {
		if u != "" {
			cl.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithModels sets the model names to use, in fallback order.
func WithModels(models ...string) Option {
	return func(cl *client) {
		var kept []string
		for _, m := range models {
			if m = strings.TrimSpace(m); m != "" {
				kept = append(kept, m)
			}
		}
		if len(kept) > 0 {
			cl.models = kept
		}
	}
}

func newClient(apiKey, baseURL string, models []string, opts ...Option) client {
	cl := client{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		baseURL:    baseURL,
		apiKey:     apiKey,
		models:     models,
	}
	for _, opt := range opts {
		opt(&cl)
	}
	return cl
}

// doJSON performs req and decodes a 2xx JSON body into target. Failures are
// classified into the typed errors the chain understands.
func (c client) doJSON(ctx context.Context, provider string, req *http.Request, target any) error {
	resp, err := c.httpClient.Do(req.WithContext(ctx))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if isRetryable(err) {
			return tberrors.NewTransientError(fmt.Errorf("%s: %w", provider, err))
		}
		return fmt.Errorf("%s request: %w", provider, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return tberrors.NewTransientError(fmt.Errorf("%s: reading body: %w", provider, err))
	}

	if err := checkStatus(provider, resp, body); err != nil {
		return err
	}

	if err := json.Unmarshal(body, target); err != nil {
		return tberrors.NewMalformedResponseError(provider, string(body), err)
	}
	return nil
}

func checkStatus(provider string, resp *http.Response, body []byte) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return tberrors.NewRateLimitError(provider, parseRetryAfter(resp.Header.Get("Retry-After"), time.Now()))
	case resp.StatusCode >= 500:
		return tberrors.NewServerError(provider, resp.StatusCode, strings.TrimSpace(string(body)))
	default:
		return fmt.Errorf("%s: unexpected status %d: %s", provider, resp.StatusCode,
			tberrors.Truncate(strings.TrimSpace(string(body)), 200))
	}
}

// parseRetryAfter understands both delta-seconds and HTTP-date values.
func parseRetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

func isRetryable(err error) bool {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.Timeout() {
			return true
		}
		// Network errors (connection resets etc.)
		if strings.Contains(urlErr.Error(), "connection") {
			return true
		}
	}
	return errors.Is(err, io.ErrUnexpectedEOF)
}

func newJSONRequest(ctx context.Context, method, endpoint string, payload any) (*http.Request, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// pingGET issues a GET and only checks the status code.
func (c client) pingGET(ctx context.Context, provider, endpoint string, header map[string]string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("creating ping request: %w", err)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s ping failed: %w", provider, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned status %d", provider, resp.StatusCode)
	}
	return nil
}
