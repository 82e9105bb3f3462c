// Package metrics exposes the Prometheus metrics of the kline fetcher.
// All metrics are defined in their respective packages (client, cache,
// ratelimit, pagination) via promauto and registered on the default registry.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Registry is the default Prometheus registry used by the fetcher.
var Registry = prometheus.DefaultRegisterer

// Handler returns the scrape handler for the default gatherer.
func Handler() http.Handler {
	return promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{})
}

// NewMux returns a mux serving /metrics and /health.
func NewMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	mux.HandleFunc("/health", healthHandler)
	return mux
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

// Serve runs the metrics server on addr until ctx is done.
func Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           NewMux(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("Serving metrics")
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

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - kline_requests_total{endpoint, status} (Counter): Requests by endpoint (primary/fallback) and HTTP status
//   - kline_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint
//   - kline_errors_total{class} (Counter): Failed attempts by error class
//   - kline_pages_fetched_total{source} (Counter): Pages returned from the exchange or the cache
//
// Retry Metrics (pkg/client):
//   - kline_retries_total{error_class} (Counter): Backoff waits by error class
//   - kline_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - kline_retry_exhausted_total{error_class} (Counter): Pages that used up all attempts
//   - kline_endpoint_fallbacks_total{reason} (Counter): Switches to the fallback endpoint
//
// History Metrics (pkg/pagination):
//   - kline_history_pages_total{symbol, interval} (Counter): Pages collected by history walks
//   - kline_history_records{interval} (Histogram): Records per completed walk
//   - kline_history_stops_total{reason} (Counter): Walks by stop reason
//
// Weight Metrics (pkg/ratelimit):
//   - binance_used_weight (Gauge): Last reported X-MBX-USED-WEIGHT-1M
//   - binance_weight_blocks_total (Counter): Waits until the weight window resets
//   - binance_weight_throttles_total (Counter): Short throttle waits
//
// Cache Metrics (pkg/cache):
//   - kline_cache_hits_total{interval} (Counter): Pages served from the cache
//   - kline_cache_misses_total{interval} (Counter): Lookups that went to the exchange
//   - kline_cache_skipped_pages_total{reason} (Counter): Pages not cached (empty, open_candle)
//   - kline_cache_written_bytes_total (Counter): Entry bytes written to Redis
//   - kline_cache_errors_total{operation} (Counter): Cache operation errors
//
// Example Prometheus Queries:
//
//   # Fallback rate
//   rate(kline_endpoint_fallbacks_total[5m])
//
//   # Share of attempts failing with 429
//   sum(rate(kline_errors_total{class="rate_limit"}[5m])) / sum(rate(kline_requests_total[5m]))
//
//   # Weight headroom
//   6000 - binance_used_weight
//
//   # P95 request latency
//   histogram_quantile(0.95, rate(kline_request_duration_seconds_bucket[5m]))
