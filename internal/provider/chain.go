package provider

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	tberrors "github.com/lepinkainen/tankobon/internal/errors"
	"github.com/lepinkainen/tankobon/internal/metadata"
	"github.com/lepinkainen/tankobon/internal/observe"
	"github.com/lepinkainen/tankobon/internal/ratelimit"
)

// member is a registered provider with its own pacing state.
type member struct {
	name    string
	kind    Kind
	policy  Policy
	limiter *ratelimit.Limiter
}

type providerMember struct {
	member
	provider Provider
}

type counterMember struct {
	member
	counter VolumeCounter
}

// Chain tries providers in priority order and returns the first structurally
// valid answer. Every failure is logged and absorbed.
type Chain struct {
	members []*providerMember
	counter *counterMember
	metrics observe.Metrics
	sleep   func(ctx context.Context, d time.Duration) error
	flights singleflight.Group
}

// ChainOption configures a Chain.
type ChainOption func(*Chain)

// WithMetrics records every provider attempt.
func WithMetrics(m observe.Metrics) ChainOption {
	return func(c *Chain) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithSleep replaces the wait used between retries. Tests use it to avoid
// real delays.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) ChainOption {
	return func(c *Chain) {
		if sleep != nil {
			c.sleep = sleep
		}
	}
}

// WithVolumeCounter sets the structured source asked for total_volumes when
// the winning series answer lacks it.
func WithVolumeCounter(vc VolumeCounter, policy Policy) ChainOption {
	return func(c *Chain) {
		if vc == nil {
			return
		}
		c.counter = &counterMember{
			member:  newMember(vc.Name(), Structured, policy),
			counter: vc,
		}
	}
}

// NewChain creates an empty chain. Register providers with Add.
func NewChain(opts ...ChainOption) *Chain {
	c := &Chain{
		metrics: observe.Noop(),
		sleep:   sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func newMember(name string, kind Kind, policy Policy) member {
	policy = policy.withDefaults()
	return member{
		name:    name,
		kind:    kind,
		policy:  policy,
		limiter: ratelimit.Every(name, policy.MinInterval),
	}
}

// Add registers p with its policy. Providers are kept sorted by priority;
// equal priorities keep registration order.
func (c *Chain) Add(p Provider, policy Policy) *Chain {
	c.members = append(c.members, &providerMember{
		member:   newMember(p.Name(), p.Kind(), policy),
		provider: p,
	})
	slices.SortStableFunc(c.members, func(a, b *providerMember) int {
		return a.provider.Priority() - b.provider.Priority()
	})
	return c
}

// Providers returns the registered providers in the order they are tried.
func (c *Chain) Providers() []Provider {
	out := make([]Provider, 0, len(c.members))
	for _, m := range c.members {
		out = append(out, m.provider)
	}
	return out
}

// ResolveVolume returns the first valid answer for one canonical volume, or
// nil when every provider failed or had no data.
func (c *Chain) ResolveVolume(ctx context.Context, series string, number int) *metadata.Volume {
	key := metadata.SeriesKey(series)
	if key == "" || number <= 0 {
		return nil
	}

	for _, m := range c.members {
		v, err := call(ctx, c, &m.member, (*metadata.Volume).Valid, func(ctx context.Context) (*metadata.Volume, error) {
			return m.provider.Volume(ctx, series, number)
		})
		if err != nil {
			logFailure(m.name, err, "series", series, "volume", number)
			if ctx.Err() != nil {
				return nil
			}
			continue
		}
		if !v.Valid() {
			continue
		}

		v.SeriesKey = key
		v.Number = number
		if v.SeriesName == "" {
			v.SeriesName = series
		}
		if v.Source == "" {
			v.Source = m.name
		}
		slog.Debug("Resolved volume", "provider", m.name, "series", series, "volume", number)
		return v
	}
	return nil
}

// ResolveSeries returns the first valid series answer. When no provider knows
// the name, ranked name candidates from the suggesting providers are returned
// instead. Concurrent lookups of the same key share one resolution.
func (c *Chain) ResolveSeries(ctx context.Context, name string) SeriesResult {
	key := metadata.SeriesKey(name)
	if key == "" {
		return SeriesResult{}
	}

	// The flight outlives any one caller; each caller stops waiting on its own ctx.
	flight := c.flights.DoChan(key, func() (any, error) {
		return c.resolveSeries(context.WithoutCancel(ctx), name, key), nil
	})
	var res SeriesResult
	select {
	case <-ctx.Done():
		return SeriesResult{}
	case r := <-flight:
		res = r.Val.(SeriesResult)
	}
	return SeriesResult{
		Series:     res.Series.Clone(),
		Candidates: slices.Clone(res.Candidates),
	}
}

func (c *Chain) resolveSeries(ctx context.Context, name, key string) SeriesResult {
	for _, m := range c.members {
		s, err := call(ctx, c, &m.member, (*metadata.Series).Valid, func(ctx context.Context) (*metadata.Series, error) {
			return m.provider.Series(ctx, name)
		})
		if err != nil {
			logFailure(m.name, err, "series", name)
			if ctx.Err() != nil {
				return SeriesResult{}
			}
			continue
		}
		if !s.Valid() {
			continue
		}

		s.Key = key
		if s.CanonicalName == "" {
			s.CanonicalName = strings.TrimSpace(name)
		}
		if s.Source == "" {
			s.Source = m.name
		}
		if s.TotalVolumes == 0 {
			s.TotalVolumes = c.countVolumes(ctx, s)
		}
		slog.Debug("Resolved series", "provider", m.name, "series", name, "total_volumes", s.TotalVolumes)
		return SeriesResult{Series: s}
	}

	return SeriesResult{Candidates: c.suggest(ctx, name)}
}

func (c *Chain) countVolumes(ctx context.Context, s *metadata.Series) int {
	if c.counter == nil {
		return 0
	}
	lookup := s.CanonicalName
	if lookup == "" {
		lookup = s.Key
	}
	n, err := call(ctx, c, &c.counter.member, func(n int) bool { return n > 0 }, func(ctx context.Context) (int, error) {
		return c.counter.counter.VolumeCount(ctx, lookup)
	})
	if err != nil {
		logFailure(c.counter.name, err, "series", lookup)
		return 0
	}
	return n
}

func (c *Chain) suggest(ctx context.Context, name string) []string {
	for _, m := range c.members {
		sg, ok := m.provider.(Suggester)
		if !ok {
			continue
		}
		names, err := call(ctx, c, &m.member, func(n []string) bool { return len(n) > 0 }, func(ctx context.Context) ([]string, error) {
			return sg.SuggestNames(ctx, name)
		})
		if err != nil {
			logFailure(m.name, err, "series", name)
			if ctx.Err() != nil {
				return nil
			}
			continue
		}
		if ranked := RankCandidates(name, names); len(ranked) > 0 {
			return ranked
		}
	}
	return nil
}

// PingResult is the outcome of pinging one provider.
type PingResult struct {
	Name string
	Err  error
}

// Ping checks every registered provider and the volume counter.
func (c *Chain) Ping(ctx context.Context) []PingResult {
	var results []PingResult
	for _, m := range c.members {
		results = append(results, PingResult{Name: m.name, Err: m.provider.Ping(ctx)})
	}
	if c.counter != nil {
		if p, ok := c.counter.counter.(interface{ Ping(context.Context) error }); ok {
			results = append(results, PingResult{Name: c.counter.name, Err: p.Ping(ctx)})
		}
	}
	return results
}

// call runs fn under m's rate limiter and retry policy.
//
// Rate limits are retried only for generative providers, waiting the fixed
// interval or the provider's hint, whichever is longer. Transient errors back
// off exponentially. Both share the MaxRetries budget. A 5xx gets exactly one
// retry. Anything else, including malformed answers, returns immediately.
func call[T any](ctx context.Context, c *Chain, m *member, found func(T) bool, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	retries := 0
	serverRetried := false

	for {
		if err := m.limiter.Wait(ctx); err != nil {
			return zero, err
		}

		start := time.Now()
		result, err := fn(ctx)
		c.metrics.RecordProviderCall(ctx, m.name, outcomeOf(err, err == nil && found(result)), time.Since(start))
		if err == nil {
			return result, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, ctxErr
		}

		var wait time.Duration
		switch {
		case tberrors.IsRateLimitError(err) && m.kind == Generative && retries < m.policy.MaxRetries:
			retries++
			wait = max(m.policy.RateLimitWait, tberrors.RetryAfter(err))
		case tberrors.IsTransientError(err) && retries < m.policy.MaxRetries:
			retries++
			wait = m.policy.backoff(retries)
		case tberrors.IsServerError(err) && !serverRetried:
			serverRetried = true
			wait = m.policy.ServerRetryDelay
		default:
			return zero, err
		}

		slog.Debug("Retrying provider", "provider", m.name, "wait", wait, "error", err)
		if err := c.sleep(ctx, wait); err != nil {
			return zero, err
		}
	}
}

func outcomeOf(err error, found bool) observe.Outcome {
	switch {
	case err == nil && found:
		return observe.OutcomeHit
	case err == nil:
		return observe.OutcomeNotFound
	case tberrors.IsRateLimitError(err):
		return observe.OutcomeRateLimit
	case tberrors.IsTransientError(err):
		return observe.OutcomeTransient
	case tberrors.IsServerError(err):
		return observe.OutcomeServer
	case tberrors.IsMalformedResponseError(err):
		return observe.OutcomeMalformed
	default:
		return observe.OutcomeError
	}
}

func logFailure(provider string, err error, attrs ...any) {
	attrs = append(attrs, "provider", provider, "error", err)

	var malformed *tberrors.MalformedResponseError
	if errors.As(err, &malformed) {
		attrs = append(attrs, "payload", malformed.Payload)
		slog.Warn("Malformed provider response, falling back", attrs...)
		return
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		slog.Debug("Provider lookup abandoned", attrs...)
		return
	}
	slog.Warn("Provider lookup failed, falling back", attrs...)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
