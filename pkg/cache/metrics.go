package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Skip reasons for pages that are not written to the cache.
const (
	SkipEmpty      = "empty"
	SkipOpenCandle = "open_candle"
)

var (
	// PageHits counts pages served from Redis, by interval.
	PageHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kline_cache_hits_total",
			Help: "Kline pages served from the cache by interval",
		},
		[]string{"interval"},
	)

	// PageMisses counts lookups that fell through to the exchange.
	PageMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kline_cache_misses_total",
			Help: "Kline page lookups not found in the cache by interval",
		},
		[]string{"interval"},
	)

	// PagesSkipped counts fetched pages that were not cacheable.
	PagesSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kline_cache_skipped_pages_total",
			Help: "Fetched kline pages not written to the cache by reason",
		},
		[]string{"reason"},
	)

	// WrittenBytes counts serialized entry bytes written to Redis.
	WrittenBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kline_cache_written_bytes_total",
			Help: "Bytes of kline page entries written to the cache",
		},
	)

	// CacheErrors tracks cache operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kline_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "delete"
	)
)
