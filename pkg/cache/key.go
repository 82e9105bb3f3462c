package cache

import (
	"strconv"
	"strings"
)

// PageKey identifies one kline page request.
type PageKey struct {
	Symbol   string
	Interval string
	Limit    int

	// StartMs and EndMs are epoch milliseconds; 0 means unset.
	StartMs int64
	EndMs   int64
}

// String generates a deterministic cache key string.
// Format: klines:SYMBOL:interval:limit=N[:start=ms][:end=ms]
//
// Example:
//
//	klines:BTCUSDT:1h:limit=1000:end=1704067200000
func (k PageKey) String() string {
	parts := []string{
		"klines",
		strings.ToUpper(k.Symbol),
		k.Interval,
		"limit=" + strconv.Itoa(k.Limit),
	}
	if k.StartMs > 0 {
		parts = append(parts, "start="+strconv.FormatInt(k.StartMs, 10))
	}
	if k.EndMs > 0 {
		parts = append(parts, "end="+strconv.FormatInt(k.EndMs, 10))
	}
	return strings.Join(parts, ":")
}
