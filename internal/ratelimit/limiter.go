// Package ratelimit paces requests to external providers.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

// Limiter enforces a minimum interval between two requests to one provider.
// Every provider owns its own Limiter.
type Limiter struct {
	name     string
	interval time.Duration
	limiter  *rate.Limiter
}

// Every creates a limiter allowing one request per interval. A zero or
// negative interval disables limiting.
func Every(name string, interval time.Duration) *Limiter {
	lim := rate.NewLimiter(rate.Inf, 1)
	if interval > 0 {
		lim = rate.NewLimiter(rate.Every(interval), 1)
	}
	return &Limiter{name: name, interval: max(interval, 0), limiter: lim}
}

// Wait blocks the calling path until the next request may be sent.
func (l *Limiter) Wait(ctx context.Context) error {
	r := l.limiter.Reserve()
	delay := r.Delay()
	if delay <= 0 {
		return nil
	}

	slog.Debug("Waiting for rate limit", "provider", l.name, "delay", delay)
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		r.Cancel()
		return fmt.Errorf("rate limit wait for %s: %w", l.name, ctx.Err())
	}
}

// Allow takes a slot only if one is free right now.
func (l *Limiter) Allow() bool {
	return l.limiter.Allow()
}

// Name returns the provider name the limiter paces.
func (l *Limiter) Name() string {
	return l.name
}

// Interval returns the minimum time between requests.
func (l *Limiter) Interval() time.Duration {
	return l.interval
}
