package cache

import (
	"time"

	"github.com/Sternrassler/binance-klines/pkg/kline"
)

// PageEntry is a cached klines response body.
type PageEntry struct {
	// Body is the raw response body as the exchange sent it.
	Body []byte `json:"body"`

	// Records is the number of rows in Body.
	Records int `json:"records"`

	// Expires is when the entry stops being served.
	Expires time.Time `json:"expires"`

	// CachedAt is when we cached this page.
	CachedAt time.Time `json:"cached_at"`
}

// NewPageEntry builds an entry that expires ttl from now.
func NewPageEntry(body []byte, records int, ttl time.Duration) *PageEntry {
	now := time.Now()
	return &PageEntry{
		Body:     body,
		Records:  records,
		Expires:  now.Add(ttl),
		CachedAt: now,
	}
}

// IsExpired returns true if the cache entry has expired.
func (e *PageEntry) IsExpired() bool {
	return time.Now().After(e.Expires)
}

// TTL returns the time until expiration.
// Returns 0 if already expired.
func (e *PageEntry) TTL() time.Duration {
	ttl := time.Until(e.Expires)
	if ttl < 0 {
		return 0
	}
	return ttl
}

// SkipReason returns why a decoded page must not be cached at now, or ""
// when it is immutable: non-empty with its newest candle closed.
func SkipReason(records []kline.Record, now time.Time) string {
	if len(records) == 0 {
		return SkipEmpty
	}
	if !records[len(records)-1].IsClosed(now) {
		return SkipOpenCandle
	}
	return ""
}
