// Package observe records cache and provider metrics through OpenTelemetry.
package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Outcome classifies a single provider attempt.
type Outcome string

const (
	OutcomeHit       Outcome = "hit"
	OutcomeNotFound  Outcome = "not_found"
	OutcomeRateLimit Outcome = "rate_limited"
	OutcomeTransient Outcome = "transient"
	OutcomeServer    Outcome = "server_error"
	OutcomeMalformed Outcome = "malformed"
	OutcomeError     Outcome = "error"
)

// Metrics records cache and provider activity.
//
// Implementations must be safe for concurrent use and must not panic.
type Metrics interface {
	// RecordCacheRead records one grouped read with its hit and miss counts.
	RecordCacheRead(ctx context.Context, table string, hits, misses int)
	// RecordCacheWrite records a write; err is non-nil when the write was dropped.
	RecordCacheWrite(ctx context.Context, table string, err error)
	// RecordProviderCall records one provider attempt.
	RecordProviderCall(ctx context.Context, provider string, outcome Outcome, duration time.Duration)
}

type metricsImpl struct {
	cacheHits     metric.Int64Counter
	cacheMisses   metric.Int64Counter
	cacheWrites   metric.Int64Counter
	cacheDropped  metric.Int64Counter
	providerCalls metric.Int64Counter
	providerHist  metric.Float64Histogram
}

// New creates a Metrics instance backed by meter.
func New(meter metric.Meter) (Metrics, error) {
	cacheHits, err := meter.Int64Counter(
		"tankobon.cache.hits",
		metric.WithDescription("Cache lookups answered from the store"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, err
	}

	cacheMisses, err := meter.Int64Counter(
		"tankobon.cache.misses",
		metric.WithDescription("Cache lookups not answered from the store"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, err
	}

	cacheWrites, err := meter.Int64Counter(
		"tankobon.cache.writes",
		metric.WithDescription("Rows written to the store"),
		metric.WithUnit("{row}"),
	)
	if err != nil {
		return nil, err
	}

	cacheDropped, err := meter.Int64Counter(
		"tankobon.cache.dropped_writes",
		metric.WithDescription("Writes dropped because the store was unavailable"),
		metric.WithUnit("{row}"),
	)
	if err != nil {
		return nil, err
	}

	providerCalls, err := meter.Int64Counter(
		"tankobon.provider.calls",
		metric.WithDescription("Provider attempts by outcome"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	providerHist, err := meter.Float64Histogram(
		"tankobon.provider.duration_ms",
		metric.WithDescription("Provider attempt duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		cacheHits:     cacheHits,
		cacheMisses:   cacheMisses,
		cacheWrites:   cacheWrites,
		cacheDropped:  cacheDropped,
		providerCalls: providerCalls,
		providerHist:  providerHist,
	}, nil
}

func (m *metricsImpl) RecordCacheRead(ctx context.Context, table string, hits, misses int) {
	opt := metric.WithAttributes(attribute.String("table", table))
	if hits > 0 {
		m.cacheHits.Add(ctx, int64(hits), opt)
	}
	if misses > 0 {
		m.cacheMisses.Add(ctx, int64(misses), opt)
	}
}

func (m *metricsImpl) RecordCacheWrite(ctx context.Context, table string, err error) {
	opt := metric.WithAttributes(attribute.String("table", table))
	if err != nil {
		m.cacheDropped.Add(ctx, 1, opt)
		return
	}
	m.cacheWrites.Add(ctx, 1, opt)
}

func (m *metricsImpl) RecordProviderCall(ctx context.Context, provider string, outcome Outcome, duration time.Duration) {
	opt := metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("outcome", string(outcome)),
	)
	m.providerCalls.Add(ctx, 1, opt)
	m.providerHist.Record(ctx, float64(duration.Milliseconds()), opt)
}

type noopMetrics struct{}

// Noop returns a Metrics that discards everything.
func Noop() Metrics {
	return noopMetrics{}
}

func (noopMetrics) RecordCacheRead(context.Context, string, int, int)                  {}
func (noopMetrics) RecordCacheWrite(context.Context, string, error)                    {}
func (noopMetrics) RecordProviderCall(context.Context, string, Outcome, time.Duration) {}
