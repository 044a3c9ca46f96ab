// Package metrics exposes the Prometheus metrics of the geobatch packages.
// All metrics are defined in their respective packages (batch, client, cache,
// ratelimit) and registered via promauto on the default registry.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Registry is the registerer all geobatch metrics are registered with.
var Registry = prometheus.DefaultRegisterer

// Gatherer collects the metrics served by Handler.
var Gatherer = prometheus.DefaultGatherer

// Metrics Documentation
//
// Batch Metrics (pkg/batch):
//   - geoapify_batch_jobs_submitted_total{api} (Counter): Jobs created
//   - geoapify_batch_items_submitted_total{api} (Counter): Inputs sent in created jobs
//   - geoapify_batch_submit_failures_total{reason} (Counter): Failed job creations (transport, status, protocol)
//   - geoapify_batch_polls_total{status} (Counter): Poll responses by kind (ready, pending, malformed)
//   - geoapify_batch_jobs_in_flight (Gauge): Jobs currently being polled
//   - geoapify_batch_collect_duration_seconds (Histogram): Time to collect a whole batch
//
// Throttle Metrics (pkg/ratelimit):
//   - geoapify_throttle_wait_seconds (Histogram): Time spent waiting between submissions
//
// Cache Metrics (pkg/cache):
//   - geoapify_cache_hits_total (Counter): Cache hits
//   - geoapify_cache_misses_total (Counter): Cache misses
//   - geoapify_cache_stored_bytes_total (Counter): Bytes written to the cache
//   - geoapify_cache_errors_total{operation} (Counter): Cache operation errors
//
// Request Metrics (pkg/client):
//   - geoapify_requests_total{endpoint, status} (Counter): Requests by endpoint and HTTP status
//   - geoapify_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint
//   - geoapify_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network)
//
// Retry Metrics (pkg/client):
//   - geoapify_retries_total{error_class} (Counter): Retry attempts by error class
//   - geoapify_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - geoapify_retry_exhausted_total{error_class} (Counter): Requests that exhausted max retries
//
// Example Prometheus Queries:
//
//   # Share of malformed poll responses
//   sum(rate(geoapify_batch_polls_total{status="malformed"}[5m])) /
//   sum(rate(geoapify_batch_polls_total[5m]))
//
//   # Cache Hit Rate
//   sum(rate(geoapify_cache_hits_total[5m])) /
//   (sum(rate(geoapify_cache_hits_total[5m])) + sum(rate(geoapify_cache_misses_total[5m])))
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(geoapify_request_duration_seconds_bucket[5m]))

// Handler returns an HTTP handler serving the registered metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func Serve(ctx context.Context, addr string, logger zerolog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("Serving metrics")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
