// Package kline holds the typed candlestick model and the codec for the
// Binance /api/v3/klines row layout.
package kline

import (
	"database/sql"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// FieldCount is the number of positional fields in one exchange row:
//
//	[openTime, open, high, low, close, volume, closeTime,
//	 quoteVolume, numTrades, takerBuyBase, takerBuyQuote, ignore]
const FieldCount = 12

// Record is one decoded kline. Numeric fields the exchange sent in a form
// that could not be parsed are kept with Valid=false instead of failing the
// whole page.
type Record struct {
	OpenTime  time.Time
	CloseTime time.Time

	Open   decimal.NullDecimal
	High   decimal.NullDecimal
	Low    decimal.NullDecimal
	Close  decimal.NullDecimal
	Volume decimal.NullDecimal

	QuoteVolume   decimal.NullDecimal
	Trades        sql.NullInt64
	TakerBuyBase  decimal.NullDecimal
	TakerBuyQuote decimal.NullDecimal
}

// OpenTimeMs returns the open time in epoch milliseconds.
func (r Record) OpenTimeMs() int64 {
	return r.OpenTime.UnixMilli()
}

// IsClosed reports whether the candle had already closed at now.
func (r Record) IsClosed(now time.Time) bool {
	return r.CloseTime.Before(now)
}

// Series is an ascending run of records with unique open times.
type Series []Record

// Len returns the number of records.
func (s Series) Len() int { return len(s) }

// Oldest returns the first record. ok is false for an empty series.
func (s Series) Oldest() (Record, bool) {
	if len(s) == 0 {
		return Record{}, false
	}
	return s[0], true
}

// Newest returns the last record. ok is false for an empty series.
func (s Series) Newest() (Record, bool) {
	if len(s) == 0 {
		return Record{}, false
	}
	return s[len(s)-1], true
}

// Merge concatenates pages, sorts by open time and keeps the first
// occurrence of each open time in concatenation order.
func Merge(pages ...[]Record) Series {
	total := 0
	for _, p := range pages {
		total += len(p)
	}

	all := make([]Record, 0, total)
	for _, p := range pages {
		all = append(all, p...)
	}

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].OpenTime.Before(all[j].OpenTime)
	})

	out := make(Series, 0, len(all))
	for _, r := range all {
		if n := len(out); n > 0 && out[n-1].OpenTime.Equal(r.OpenTime) {
			continue
		}
		out = append(out, r)
	}
	return out
}
