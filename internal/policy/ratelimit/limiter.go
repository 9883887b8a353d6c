// Package ratelimit paces sequential page visits with a token bucket.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/JakeFAU/sitesnap/internal/metrics"
)

// Config holds pacer configuration.
type Config struct {
	// Interval is the minimum gap between two visits. Zero disables pacing.
	Interval time.Duration
}

// Limiter implements crawler.Pacer.
type Limiter struct {
	limiter *rate.Limiter
}

// New creates a new Limiter.
func New(cfg Config) *Limiter {
	limit := rate.Inf
	if cfg.Interval > 0 {
		limit = rate.Every(cfg.Interval)
	}
	return &Limiter{limiter: rate.NewLimiter(limit, 1)}
}

// Enabled reports whether the limiter ever delays.
func (l *Limiter) Enabled() bool {
	return l.limiter.Limit() != rate.Inf
}

// Wait blocks until the next visit may start, respecting the context.
func (l *Limiter) Wait(ctx context.Context) error {
	start := time.Now()
	if err := l.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("pacer wait: %w", err)
	}
	if d := time.Since(start); d > time.Millisecond {
		metrics.ObservePacingDelay(d)
	}
	return nil
}
