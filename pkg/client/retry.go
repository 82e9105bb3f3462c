package client

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for retry operations.
var (
	klineRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kline_retries_total",
		Help: "Total number of retry attempts by error class",
	}, []string{"error_class"})

	klineRetryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "kline_retry_backoff_seconds",
		Help:    "Backoff duration for retries by error class",
		Buckets: []float64{0.5, 1, 3, 10, 30, 60},
	}, []string{"error_class"})

	klineRetryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kline_retry_exhausted_total",
		Help: "Total number of page fetches that exhausted their attempts by last error class",
	}, []string{"error_class"})

	klineEndpointFallbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kline_endpoint_fallbacks_total",
		Help: "Total number of switches to the fallback endpoint by reason",
	}, []string{"reason"})
)

// RetryConfig holds the attempt budget and the fixed backoff tiers.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts per page, endpoint
	// switches included.
	MaxAttempts int

	// TimeoutBackoff is the wait after a timed-out or failed connection.
	TimeoutBackoff time.Duration

	// RateLimitBackoff is the wait after a 429.
	RateLimitBackoff time.Duration

	// ServerErrorBackoff is the wait after a 500 or 503.
	ServerErrorBackoff time.Duration
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:        5,
		TimeoutBackoff:     3 * time.Second,
		RateLimitBackoff:   60 * time.Second,
		ServerErrorBackoff: 10 * time.Second,
	}
}

// SleepFunc blocks for d or until ctx is done, whichever comes first.
type SleepFunc func(ctx context.Context, d time.Duration) error

// SleepContext is the real SleepFunc.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrContextCancelled, ctx.Err())
	case <-timer.C:
		return nil
	}
}

func recordBackoff(class ErrorClass, d time.Duration) {
	klineRetriesTotal.WithLabelValues(string(class)).Inc()
	klineRetryBackoffSeconds.WithLabelValues(string(class)).Observe(d.Seconds())
}
