// Package client fetches single kline pages from the Binance spot REST API.
// Each page runs through a bounded retry state machine that reacts to the
// exchange's failure classes: fixed backoff tiers for timeouts (3s), server
// errors (10s) and rate limiting (60s), a one-time lateral switch to the
// fallback endpoint, and immediate aborts for bans and unknown statuses.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/Sternrassler/binance-klines/pkg/cache"
	"github.com/Sternrassler/binance-klines/pkg/kline"
	"github.com/Sternrassler/binance-klines/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for page requests.
var (
	klineRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kline_requests_total",
		Help: "Total kline requests by endpoint and status",
	}, []string{"endpoint", "status"})

	klineRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "kline_request_duration_seconds",
		Help:    "Kline request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5},
	}, []string{"endpoint"})

	klineErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kline_errors_total",
		Help: "Total kline request errors by class",
	}, []string{"class"})

	klinePagesFetchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kline_pages_fetched_total",
		Help: "Total kline pages returned by source",
	}, []string{"source"})
)

// Default endpoints. The fallback serves regions where the primary answers 451.
const (
	DefaultPrimaryEndpoint  = "https://api.binance.com"
	DefaultFallbackEndpoint = "https://api.binance.me"
)

// Client fetches kline pages.
type Client struct {
	httpClient  *http.Client
	rateLimiter *ratelimit.Tracker
	cache       *cache.Manager
	config      Config
	sleep       SleepFunc
	now         func() time.Time
	logger      zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// Endpoints, resolved before the first fetch (see package endpoint).
	PrimaryEndpoint  string
	FallbackEndpoint string

	// UserAgent header sent with every request.
	UserAgent string

	// RequestTimeout bounds a single HTTP attempt.
	RequestTimeout time.Duration

	// Retry budget and backoff tiers.
	Retry RetryConfig

	// Weight budget used to pace requests.
	Limits ratelimit.Limits

	// Redis enables the closed-page cache. Optional.
	Redis *redis.Client

	// CacheTTL is how long closed pages are served from the cache.
	CacheTTL time.Duration

	// Sleep replaces the real backoff wait. Optional; tests use it to
	// observe delays without waiting.
	Sleep SleepFunc
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig() Config {
	return Config{
		PrimaryEndpoint:  DefaultPrimaryEndpoint,
		FallbackEndpoint: DefaultFallbackEndpoint,
		UserAgent:        "binance-klines/0.1.0",
		RequestTimeout:   5 * time.Second,
		Retry:            DefaultRetryConfig(),
		Limits:           ratelimit.DefaultLimits(),
		CacheTTL:         24 * time.Hour,
	}
}

// New creates a new kline client.
func New(cfg Config) (*Client, error) {
	if cfg.PrimaryEndpoint == "" {
		return nil, fmt.Errorf("primary endpoint is required")
	}
	if cfg.FallbackEndpoint == "" {
		cfg.FallbackEndpoint = cfg.PrimaryEndpoint
	}
	if cfg.RequestTimeout <= 0 {
		return nil, fmt.Errorf("request_timeout must be > 0 (got %s)", cfg.RequestTimeout)
	}
	if cfg.Retry.MaxAttempts < 1 {
		return nil, fmt.Errorf("max_attempts must be >= 1 (got %d)", cfg.Retry.MaxAttempts)
	}

	logger := log.With().Str("component", "kline-client").Logger()

	c := &Client{
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
		rateLimiter: ratelimit.NewTracker(cfg.Limits, log.With().Str("component", "kline-ratelimit").Logger()),
		config:      cfg,
		sleep:       cfg.Sleep,
		now:         time.Now,
		logger:      logger,
	}
	if c.sleep == nil {
		c.sleep = SleepContext
	}
	if cfg.Redis != nil {
		c.cache = cache.NewManager(cfg.Redis)
	}

	return c, nil
}

// FetchPage fetches one page of klines. An empty page returns nil, nil.
//
// Transient failures are retried inside the call. The returned error is one
// of ErrInvalidRequest, *interval.InvalidIntervalError, ErrAccessDenied,
// ErrRegionBlocked, ErrUnhandledStatus (as *HTTPError), *kline.DecodeError,
// ErrRetryExhausted or ErrContextCancelled.
func (c *Client) FetchPage(ctx context.Context, req FetchRequest) ([]kline.Record, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	key := cache.PageKey{
		Symbol:   req.Symbol,
		Interval: req.Interval,
		Limit:    req.Limit,
		StartMs:  req.StartMs(),
		EndMs:    req.EndMs(),
	}
	if records, ok := c.fromCache(ctx, key); ok {
		return records, nil
	}

	logger := c.logger.With().
		Str("symbol", req.Symbol).
		Str("interval", req.Interval).
		Logger()

	rs := newRetryState()
	var lastErr error
	var lastClass ErrorClass

	for ; rs.Attempt <= c.config.Retry.MaxAttempts; rs.Attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrContextCancelled, err)
		}

		if wait := c.rateLimiter.Delay(); wait > 0 {
			logger.Debug().Dur("wait", wait).Msg("Pacing request on used weight")
			if err := c.wait(ctx, wait); err != nil {
				return nil, err
			}
		}

		rs.State = StateAttempting
		ep := rs.Endpoint
		body, status, err := c.attempt(ctx, c.baseURL(ep), req, ep)

		var records []kline.Record
		class := ErrorClassNetwork
		switch {
		case err != nil && ctx.Err() != nil:
			return nil, fmt.Errorf("%w: %v", ErrContextCancelled, ctx.Err())
		case err != nil:
			lastErr = err
		default:
			class = classifyStatus(status)
			if class == ErrorClassNone {
				var decodeErr error
				records, decodeErr = kline.Decode(body)
				if decodeErr != nil {
					class = ErrorClassDecode
					lastErr = decodeErr
				}
			} else {
				lastErr = newHTTPError(status, class)
			}
		}
		if class != ErrorClassNone {
			klineErrorsTotal.WithLabelValues(string(class)).Inc()
			lastClass = class
		}

		step := rs.Transition(class, c.config.Retry)

		logger.Debug().
			Int("attempt", rs.Attempt).
			Str("endpoint", ep.String()).
			Int("status", status).
			Str("error_class", string(class)).
			Str("from", step.From.String()).
			Str("state", step.To.String()).
			Msg("Page attempt finished")

		if step.retryable() && rs.Attempt >= c.config.Retry.MaxAttempts {
			break
		}

		switch step.To {
		case StateSucceeded:
			if rs.Attempt > 1 {
				logger.Info().Int("attempt", rs.Attempt).Msg("Page fetch succeeded after retry")
			}
			klinePagesFetchedTotal.WithLabelValues("exchange").Inc()
			c.toCache(ctx, key, body, records)
			if len(records) == 0 {
				return nil, nil
			}
			return records, nil

		case StateAborted:
			logger.Warn().
				Err(lastErr).
				Int("attempt", rs.Attempt).
				Int("status", status).
				Str("error_class", string(class)).
				Msg("Page fetch aborted")
			if class == ErrorClassDecode {
				return nil, lastErr
			}
			return nil, &HTTPError{
				StatusCode: status,
				ErrorClass: class,
				Message:    http.StatusText(status),
				Err:        step.Err,
			}

		case StateEndpointFallback:
			klineEndpointFallbacksTotal.WithLabelValues(string(class)).Inc()
			logger.Warn().
				Int("attempt", rs.Attempt).
				Str("error_class", string(class)).
				Str("fallback", c.config.FallbackEndpoint).
				Msg("Switching to fallback endpoint")

		case StateBackoffWait:
			recordBackoff(class, step.Backoff)
			logger.Warn().
				Err(lastErr).
				Int("attempt", rs.Attempt).
				Str("error_class", string(class)).
				Dur("backoff", step.Backoff).
				Msg("Retrying page after backoff")
			if err := c.wait(ctx, step.Backoff); err != nil {
				logger.Warn().Int("attempt", rs.Attempt).Msg("Context cancelled during retry backoff")
				return nil, err
			}
		}
	}

	klineRetryExhaustedTotal.WithLabelValues(string(lastClass)).Inc()
	logger.Warn().
		Err(lastErr).
		Int("max_attempts", c.config.Retry.MaxAttempts).
		Msg("Retry attempts exhausted")

	return nil, fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, c.config.Retry.MaxAttempts, lastErr)
}

// attempt performs one HTTP round trip and returns the body and status.
// A non-nil error means no HTTP response was received.
func (c *Client) attempt(ctx context.Context, base string, req FetchRequest, ep Endpoint) ([]byte, int, error) {
	label := ep.String()
	start := time.Now()
	defer func() {
		klineRequestDuration.WithLabelValues(label).Observe(time.Since(start).Seconds())
	}()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL(base), nil)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: create request: %v", ErrNetwork, err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if c.config.UserAgent != "" {
		httpReq.Header.Set("User-Agent", c.config.UserAgent)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		klineRequestsTotal.WithLabelValues(label, "network_error").Inc()
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, 0, fmt.Errorf("%w: %v", ErrNetworkTimeout, err)
		}
		return nil, 0, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	klineRequestsTotal.WithLabelValues(label, strconv.Itoa(resp.StatusCode)).Inc()

	if err := c.rateLimiter.UpdateFromHeaders(resp.Header); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to update weight from headers")
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, 0, fmt.Errorf("%w: read body: %v", ErrNetworkTimeout, err)
		}
		return nil, 0, fmt.Errorf("%w: read body: %v", ErrNetwork, err)
	}

	return body, resp.StatusCode, nil
}

// wait sleeps for d; any failure is reported as ErrContextCancelled.
func (c *Client) wait(ctx context.Context, d time.Duration) error {
	err := c.sleep(ctx, d)
	if err == nil || errors.Is(err, ErrContextCancelled) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrContextCancelled, err)
}

func (c *Client) baseURL(ep Endpoint) string {
	if ep == EndpointFallback {
		return c.config.FallbackEndpoint
	}
	return c.config.PrimaryEndpoint
}

func (c *Client) fromCache(ctx context.Context, key cache.PageKey) ([]kline.Record, bool) {
	if c.cache == nil {
		return nil, false
	}

	entry, err := c.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			c.logger.Warn().Err(err).Str("key", key.String()).Msg("Cache get error")
		}
		return nil, false
	}

	records, err := kline.Decode(entry.Body)
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key.String()).Msg("Dropping undecodable cache entry")
		_ = c.cache.Delete(ctx, key)
		return nil, false
	}

	c.logger.Debug().Str("key", key.String()).Int("records", len(records)).Msg("Page served from cache")
	klinePagesFetchedTotal.WithLabelValues("cache").Inc()
	return records, true
}

func (c *Client) toCache(ctx context.Context, key cache.PageKey, body []byte, records []kline.Record) {
	if c.cache == nil {
		return
	}
	if reason := cache.SkipReason(records, c.now()); reason != "" {
		cache.PagesSkipped.WithLabelValues(reason).Inc()
		return
	}
	if err := c.cache.Set(ctx, key, cache.NewPageEntry(body, len(records), c.config.CacheTTL)); err != nil {
		c.logger.Warn().Err(err).Str("key", key.String()).Msg("Failed to cache page")
	}
}

func newHTTPError(status int, class ErrorClass) *HTTPError {
	var sentinel error
	switch class {
	case ErrorClassRateLimit:
		sentinel = ErrRateLimited
	case ErrorClassServer:
		sentinel = ErrServerError
	case ErrorClassAccessDenied:
		sentinel = ErrAccessDenied
	case ErrorClassRegionBlocked:
		sentinel = ErrRegionBlocked
	default:
		sentinel = ErrUnhandledStatus
	}
	return &HTTPError{
		StatusCode: status,
		ErrorClass: class,
		Message:    http.StatusText(status),
		Err:        sentinel,
	}
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// RateLimiter returns the weight tracker.
func (c *Client) RateLimiter() *ratelimit.Tracker {
	return c.rateLimiter
}

// Close releases resources held by the client.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
