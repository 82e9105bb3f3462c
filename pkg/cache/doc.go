// Package cache stores closed kline pages in Redis.
//
// A page is only cached once every candle in it has closed: closed candles
// never change, so a cached page can be served instead of a network request
// until its TTL runs out. Pages that still contain the live candle are never
// written.
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	manager := cache.NewManager(redisClient)
//
//	key := cache.PageKey{Symbol: "BTCUSDT", Interval: "1h", Limit: 1000, EndMs: end}
//	entry, err := manager.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// fetch from the exchange, then:
//		if cache.SkipReason(records, time.Now()) == "" {
//			_ = manager.Set(ctx, key, cache.NewPageEntry(body, len(records), ttl))
//		}
//	}
//
// # Metrics
//
//   - kline_cache_hits_total{interval} - Pages served from the cache
//   - kline_cache_misses_total{interval} - Lookups that went to the exchange
//   - kline_cache_skipped_pages_total{reason} - Pages not cached (empty, open_candle)
//   - kline_cache_written_bytes_total - Entry bytes written to Redis
//   - kline_cache_errors_total{operation} - Cache operation errors
package cache
