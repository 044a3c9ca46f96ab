// Package ratelimit spaces out requests to the Geoapify API.
//
// Geoapify rejects bursts of job-creation requests, so batch submissions pass
// through a Throttle that enforces a minimum delay between calls. This is a
// courtesy delay only; the library does no other rate limiting.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/time/rate"
)

// DefaultDelay is the spacing used between batch job submissions.
const DefaultDelay = 100 * time.Millisecond

var throttleWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "geoapify_throttle_wait_seconds",
	Help:    "Time spent waiting on the request throttle",
	Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1},
})

// Throttle lets one call through per delay interval.
type Throttle struct {
	limiter *rate.Limiter
	delay   time.Duration
}

// NewThrottle creates a throttle with the given minimum spacing.
// A non-positive delay disables throttling.
func NewThrottle(delay time.Duration) *Throttle {
	if delay <= 0 {
		return &Throttle{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	return &Throttle{
		limiter: rate.NewLimiter(rate.Every(delay), 1),
		delay:   delay,
	}
}

// Delay returns the configured spacing (0 when disabled).
func (t *Throttle) Delay() time.Duration {
	return t.delay
}

// Wait blocks until the next call is allowed or ctx is done.
func (t *Throttle) Wait(ctx context.Context) error {
	start := time.Now()
	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("throttle wait: %w", err)
	}
	throttleWaitSeconds.Observe(time.Since(start).Seconds())
	return nil
}
