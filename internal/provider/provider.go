// Package provider resolves series and volume metadata from external services.
//
// Every service implements Provider. A Chain tries providers in priority
// order and returns the first usable answer; provider failures never reach
// the caller.
package provider

import (
	"context"
	"time"

	"github.com/lepinkainen/tankobon/internal/metadata"
)

// Kind separates free-text (LLM) providers from structured catalog APIs.
type Kind int

const (
	// Generative providers answer a prompt with JSON text.
	Generative Kind = iota
	// Structured providers return catalog records.
	Structured
)

func (k Kind) String() string {
	if k == Generative {
		return "generative"
	}
	return "structured"
}

// Provider is one metadata source.
//
// Series and Volume return nil, nil when the provider has no data. Errors are
// typed (see internal/errors) so the chain can decide whether to retry.
type Provider interface {
	// Name returns the human-readable provider name.
	Name() string
	// Priority orders providers in a chain (lower = tried first).
	Priority() int
	// Kind reports whether the provider is generative or structured.
	Kind() Kind
	// Ping checks connectivity and credentials.
	Ping(ctx context.Context) error
	// Series looks up series-level metadata by name.
	Series(ctx context.Context, name string) (*metadata.Series, error)
	// Volume looks up one canonical volume of a series.
	Volume(ctx context.Context, series string, number int) (*metadata.Volume, error)
}

// VolumeCounter answers only the total number of volumes of a series.
// It returns 0, nil when the count is unknown.
type VolumeCounter interface {
	Name() string
	VolumeCount(ctx context.Context, series string) (int, error)
}

// Suggester proposes corrected series names for a query that resolved to nothing.
type Suggester interface {
	SuggestNames(ctx context.Context, name string) ([]string, error)
}

// Policy is the retry and pacing policy applied to one provider.
type Policy struct {
	// MinInterval is the minimum time between two requests to the provider.
	MinInterval time.Duration
	// MaxRetries bounds retries after the first attempt for rate limits and
	// transient network errors.
	MaxRetries int
	// RateLimitWait is the fixed wait after HTTP 429. A larger Retry-After
	// from the provider wins.
	RateLimitWait time.Duration
	// ServerRetryDelay is the wait before the single retry after a 5xx.
	ServerRetryDelay time.Duration
	// BackoffBase is the first transient-error backoff; it doubles per retry.
	BackoffBase time.Duration
}

// DefaultPolicy returns the policy used when a provider registers without one.
func DefaultPolicy() Policy {
	return Policy{
		MinInterval:      time.Second,
		MaxRetries:       3,
		RateLimitWait:    10 * time.Second,
		ServerRetryDelay: 2 * time.Second,
		BackoffBase:      time.Second,
	}
}

func (p Policy) withDefaults() Policy {
	def := DefaultPolicy()
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	if p.RateLimitWait <= 0 {
		p.RateLimitWait = def.RateLimitWait
	}
	if p.ServerRetryDelay <= 0 {
		p.ServerRetryDelay = def.ServerRetryDelay
	}
	if p.BackoffBase <= 0 {
		p.BackoffBase = def.BackoffBase
	}
	return p
}

// backoff returns the wait before transient retry number attempt (1-based),
// doubling from BackoffBase and capped at ten times the base.
func (p Policy) backoff(attempt int) time.Duration {
	delay := p.BackoffBase * time.Duration(1<<uint(attempt-1))
	if ceiling := 10 * p.BackoffBase; delay > ceiling {
		return ceiling
	}
	return delay
}

// SeriesResult is the outcome of a series lookup: a resolved series, ranked
// name candidates when the name did not resolve, or neither.
type SeriesResult struct {
	Series     *metadata.Series `json:"series,omitempty"`
	Candidates []string         `json:"candidates,omitempty"`
}

// Found reports whether the lookup produced a series.
func (r SeriesResult) Found() bool {
	return r.Series != nil
}
