package client

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/binance-klines/pkg/interval"
)

const (
	// KlinesPath is the spot klines endpoint path.
	KlinesPath = "/api/v3/klines"

	// MinLimit and MaxLimit bound the page size the exchange accepts.
	MinLimit = 1
	MaxLimit = 1000
)

// FetchRequest describes one page. Start and End are inclusive bounds.
type FetchRequest struct {
	Symbol   string
	Interval string
	Limit    int
	Start    *time.Time
	End      *time.Time
}

// Validate checks the request against the exchange contract.
func (r FetchRequest) Validate() error {
	if strings.TrimSpace(r.Symbol) == "" {
		return fmt.Errorf("%w: symbol is required", ErrInvalidRequest)
	}
	if _, err := interval.Parse(r.Interval); err != nil {
		return err
	}
	if r.Limit < MinLimit || r.Limit > MaxLimit {
		return fmt.Errorf("%w: limit %d outside %d..%d", ErrInvalidRequest, r.Limit, MinLimit, MaxLimit)
	}
	if r.Start != nil && r.End != nil && r.End.Before(*r.Start) {
		return fmt.Errorf("%w: end %s before start %s", ErrInvalidRequest, r.End.UTC(), r.Start.UTC())
	}
	return nil
}

// StartMs returns Start in epoch milliseconds, or 0 when unset.
func (r FetchRequest) StartMs() int64 {
	if r.Start == nil {
		return 0
	}
	return r.Start.UnixMilli()
}

// EndMs returns End in epoch milliseconds, or 0 when unset.
func (r FetchRequest) EndMs() int64 {
	if r.End == nil {
		return 0
	}
	return r.End.UnixMilli()
}

// Query encodes the request as klines query parameters.
func (r FetchRequest) Query() url.Values {
	q := url.Values{}
	q.Set("symbol", r.Symbol)
	q.Set("interval", r.Interval)
	q.Set("limit", strconv.Itoa(r.Limit))
	if r.Start != nil {
		q.Set("startTime", strconv.FormatInt(r.StartMs(), 10))
	}
	if r.End != nil {
		q.Set("endTime", strconv.FormatInt(r.EndMs(), 10))
	}
	return q
}

// URL builds the full request URL against base.
func (r FetchRequest) URL(base string) string {
	return strings.TrimRight(base, "/") + KlinesPath + "?" + r.Query().Encode()
}
