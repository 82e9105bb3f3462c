package pagination

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/binance-klines/pkg/client"
	"github.com/Sternrassler/binance-klines/pkg/interval"
	"github.com/Sternrassler/binance-klines/pkg/kline"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const dayMs = int64(24 * time.Hour / time.Millisecond)

var (
	historyPagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kline_history_pages_total",
		Help: "Total pages collected by history walks",
	}, []string{"symbol", "interval"})

	historyRecords = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "kline_history_records",
		Help:    "Records returned per history walk",
		Buckets: prometheus.ExponentialBuckets(10, 4, 8),
	}, []string{"interval"})

	historyStopsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kline_history_stops_total",
		Help: "History walks by stop reason",
	}, []string{"reason"})
)

// PageFetcher fetches a single kline page. *client.Client implements it.
type PageFetcher interface {
	FetchPage(ctx context.Context, req client.FetchRequest) ([]kline.Record, error)
}

// Config holds walker configuration.
type Config struct {
	// PoliteDelay is the wait between consecutive pages.
	PoliteDelay time.Duration

	// Sleep replaces the real politeness wait. Optional.
	Sleep client.SleepFunc

	// Now replaces the wall clock. Optional.
	Now func() time.Time
}

// DefaultConfig returns the default walker configuration.
func DefaultConfig() Config {
	return Config{
		PoliteDelay: 500 * time.Millisecond,
	}
}

// Walker assembles a history by walking pages backward from now.
type Walker struct {
	fetcher PageFetcher
	config  Config
	logger  zerolog.Logger
}

// NewWalker creates a new walker.
func NewWalker(fetcher PageFetcher, config Config) *Walker {
	if config.PoliteDelay < 0 {
		config.PoliteDelay = 0
	}
	if config.Sleep == nil {
		config.Sleep = client.SleepContext
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	return &Walker{
		fetcher: fetcher,
		config:  config,
		logger:  log.With().Str("component", "kline-pagination").Logger(),
	}
}

// FetchHistory returns the candles of the last days days, ascending and
// unique by open time. The window starts at the interval bucket containing
// now minus days.
//
// Running out of retries or reading a malformed page ends the walk early
// and returns what was collected with a nil error. Access denial, region
// blocking, unhandled statuses and cancellation also end the walk, but the
// error is returned alongside the partial series.
func (w *Walker) FetchHistory(ctx context.Context, symbol, spec string, limit, days int) (kline.Series, error) {
	iv, err := interval.Parse(spec)
	if err != nil {
		return kline.Series{}, err
	}
	if days < 0 {
		return kline.Series{}, fmt.Errorf("%w: days must be >= 0 (got %d)", client.ErrInvalidRequest, days)
	}

	started := time.Now()
	nowMs := w.config.Now().UnixMilli()
	end := nowMs
	start := iv.Align(nowMs - int64(days)*dayMs)

	logger := w.logger.With().
		Str("symbol", symbol).
		Str("interval", spec).
		Logger()

	if iv.IsCalendar() && iv.Magnitude > 1 {
		logger.Warn().Msgf("Calendar interval aligns like 1%c; magnitude %d only affects page contents", iv.Unit, iv.Magnitude)
	}

	logger.Info().
		Int("days", days).
		Int("limit", limit).
		Int("expected_pages", expectedPages(iv, start, end, limit)).
		Time("start", time.UnixMilli(start).UTC()).
		Msg("Starting history walk")

	var (
		pages   [][]kline.Record
		walkErr error
		reason  string
	)

	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			walkErr = fmt.Errorf("%w: %v", client.ErrContextCancelled, err)
			reason = "cancelled"
			break
		}

		startT := time.UnixMilli(start).UTC()
		endT := time.UnixMilli(end).UTC()
		records, err := w.fetcher.FetchPage(ctx, client.FetchRequest{
			Symbol:   symbol,
			Interval: spec,
			Limit:    limit,
			Start:    &startT,
			End:      &endT,
		})
		if err != nil {
			if !client.IsTerminal(err) && (errors.Is(err, client.ErrRetryExhausted) || errors.Is(err, kline.ErrDecode)) {
				logger.Warn().Err(err).Int("page", page).Msg("Page unavailable - returning partial history")
				reason = "page_unavailable"
			} else {
				logger.Error().Err(err).Int("page", page).Int("status", client.StatusCode(err)).Msg("History walk aborted")
				walkErr = err
				reason = "aborted"
			}
			break
		}
		if len(records) == 0 {
			reason = "empty_page"
			break
		}

		pages = append(pages, records)
		historyPagesTotal.WithLabelValues(symbol, spec).Inc()

		oldest := records[0].OpenTimeMs()
		logger.Debug().
			Int("page", page).
			Int("records", len(records)).
			Time("oldest", records[0].OpenTime).
			Msg("Page collected")

		if oldest <= start {
			reason = "window_covered"
			break
		}
		if oldest >= end {
			end--
		} else {
			end = oldest
		}

		if err := w.config.Sleep(ctx, w.config.PoliteDelay); err != nil {
			if !errors.Is(err, client.ErrContextCancelled) {
				err = fmt.Errorf("%w: %v", client.ErrContextCancelled, err)
			}
			walkErr = err
			reason = "cancelled"
			break
		}
	}

	series := kline.Merge(pages...)
	historyStopsTotal.WithLabelValues(reason).Inc()
	historyRecords.WithLabelValues(spec).Observe(float64(series.Len()))

	logger.Info().
		Int("pages", len(pages)).
		Int("records", series.Len()).
		Str("stop", reason).
		Dur("duration", time.Since(started)).
		Msg("History walk complete")

	return series, walkErr
}

// expectedPages estimates how many pages of limit rows cover startMs..endMs.
// Month and year lengths are nominal, so the result is a hint for logs only.
func expectedPages(iv interval.Interval, startMs, endMs int64, limit int) int {
	if limit <= 0 || endMs <= startMs {
		return 0
	}
	bucketMs := iv.Duration().Milliseconds()
	if bucketMs <= 0 {
		return 0
	}
	buckets := (endMs-startMs)/bucketMs + 1
	return int((buckets + int64(limit) - 1) / int64(limit))
}
