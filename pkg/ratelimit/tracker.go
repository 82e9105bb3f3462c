package ratelimit

import (
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for weight tracking.
var (
	binanceUsedWeight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "binance_used_weight",
		Help: "Request weight used in the current one-minute window",
	})

	binanceWeightBlocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "binance_weight_blocks_total",
		Help: "Total number of requests held until the weight window reset",
	})

	binanceWeightThrottlesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "binance_weight_throttles_total",
		Help: "Total number of requests throttled in the weight warning band",
	})
)

// Tracker remembers the latest weight reading for one process.
type Tracker struct {
	mu     sync.Mutex
	state  WeightState
	limits Limits
	logger zerolog.Logger
	now    func() time.Time
}

// NewTracker creates a new weight tracker.
func NewTracker(limits Limits, logger zerolog.Logger) *Tracker {
	return &Tracker{
		limits: limits,
		logger: logger,
		now:    time.Now,
	}
}

// State returns the latest reading.
func (t *Tracker) State() WeightState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// UpdateFromHeaders records the weight header of a response. Responses
// without the header are ignored.
func (t *Tracker) UpdateFromHeaders(headers http.Header) error {
	raw := headers.Get(HeaderUsedWeight)
	if raw == "" {
		return nil
	}

	used, err := parseIntHeader(raw)
	if err != nil {
		return fmt.Errorf("parse %s header: %w", HeaderUsedWeight, err)
	}

	now := t.now()
	state := WeightState{
		UsedWeight:  used,
		WindowStart: now.Truncate(time.Minute),
		LastUpdate:  now,
	}

	t.mu.Lock()
	t.state = state
	t.mu.Unlock()

	binanceUsedWeight.Set(float64(used))

	switch {
	case state.NeedsCriticalBlock(t.limits):
		t.logger.Error().
			Int("used_weight", used).
			Int("limit", t.limits.WeightPerMinute).
			Msg("Binance weight CRITICAL - requests will wait for window reset")
	case state.NeedsThrottling(t.limits):
		t.logger.Warn().
			Int("used_weight", used).
			Int("limit", t.limits.WeightPerMinute).
			Msg("Binance weight WARNING - requests will be throttled")
	default:
		t.logger.Debug().Int("used_weight", used).Msg("Binance weight updated")
	}

	return nil
}

// Delay returns how long the next request should wait. It does not sleep;
// the caller owns the wait so it can be cancelled.
func (t *Tracker) Delay() time.Duration {
	t.mu.Lock()
	state := t.state
	t.mu.Unlock()

	now := t.now()
	if state.IsStale(now) {
		return 0
	}

	if state.NeedsCriticalBlock(t.limits) {
		wait := state.TimeUntilReset(now)
		t.logger.Warn().
			Int("used_weight", state.UsedWeight).
			Dur("wait_duration", wait).
			Msg("Binance weight critical - holding request")
		binanceWeightBlocksTotal.Inc()
		return wait
	}

	if state.NeedsThrottling(t.limits) {
		binanceWeightThrottlesTotal.Inc()
		return t.limits.ThrottleDelay
	}

	return 0
}

func parseIntHeader(val string) (int, error) {
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("negative value %d", n)
	}
	return n, nil
}
