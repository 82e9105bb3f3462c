// Package ratelimit tracks the request weight Binance reports in the
// X-MBX-USED-WEIGHT-1M header and tells the client when to slow down
// before the exchange starts answering 429 or 418.
package ratelimit

import (
	"time"
)

// HeaderUsedWeight is the response header carrying the weight used in the
// current minute.
const HeaderUsedWeight = "X-MBX-USED-WEIGHT-1M"

// Limits describe the weight budget per one-minute window.
type Limits struct {
	// WeightPerMinute is the exchange's request weight limit.
	WeightPerMinute int

	// WarningRatio applies throttling when used/limit reaches this value.
	WarningRatio float64

	// CriticalRatio holds requests until the window resets.
	CriticalRatio float64

	// ThrottleDelay is the pause applied in the warning band.
	ThrottleDelay time.Duration
}

// DefaultLimits returns the spot API weight budget.
func DefaultLimits() Limits {
	return Limits{
		WeightPerMinute: 6000,
		WarningRatio:    0.8,
		CriticalRatio:   0.95,
		ThrottleDelay:   1 * time.Second,
	}
}

// WeightState is the last weight reading.
type WeightState struct {
	// UsedWeight is the value of the last X-MBX-USED-WEIGHT-1M header.
	UsedWeight int `json:"used_weight"`

	// WindowStart is the start of the minute the reading belongs to.
	WindowStart time.Time `json:"window_start"`

	// LastUpdate is when the reading was taken.
	LastUpdate time.Time `json:"last_update"`
}

// ResetAt returns when the weight window rolls over.
func (s WeightState) ResetAt() time.Time {
	return s.WindowStart.Add(time.Minute)
}

// IsStale reports whether the reading belongs to a window that has ended.
func (s WeightState) IsStale(now time.Time) bool {
	return s.LastUpdate.IsZero() || !now.Before(s.ResetAt())
}

// NeedsCriticalBlock returns true if requests should wait for the window reset.
func (s WeightState) NeedsCriticalBlock(l Limits) bool {
	return l.WeightPerMinute > 0 && float64(s.UsedWeight) >= l.CriticalRatio*float64(l.WeightPerMinute)
}

// NeedsThrottling returns true if requests should be slowed down.
func (s WeightState) NeedsThrottling(l Limits) bool {
	return l.WeightPerMinute > 0 &&
		float64(s.UsedWeight) >= l.WarningRatio*float64(l.WeightPerMinute) &&
		!s.NeedsCriticalBlock(l)
}

// TimeUntilReset returns the duration until the weight window resets.
// Returns 0 if the reset time has already passed.
func (s WeightState) TimeUntilReset(now time.Time) time.Duration {
	d := s.ResetAt().Sub(now)
	if d < 0 {
		return 0
	}
	return d
}
