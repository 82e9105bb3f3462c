// Package interval parses Binance kline interval codes and aligns timestamps
// to the start of their containing bucket.
//
// Interval codes are a positive magnitude followed by a case-sensitive unit:
//
//	m  minutes        (fixed-size buckets)
//	h  hours          (fixed-size buckets)
//	d  UTC days
//	w  ISO weeks (Monday 00:00 UTC)
//	M  calendar months
//	y  calendar years
//
// "m" and "M" are different units. Parsing never folds case.
//
// Calendar units (d, w, M, y) ignore the magnitude when aligning: "3d" aligns
// to the UTC day start exactly like "1d".
//
// A magnitude is rejected when the bucket length would not fit in a
// time.Duration.
package interval

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"
)

// Unit is a single interval unit code.
type Unit byte

const (
	Minute Unit = 'm'
	Hour   Unit = 'h'
	Day    Unit = 'd'
	Week   Unit = 'w'
	Month  Unit = 'M'
	Year   Unit = 'y'
)

const (
	msPerMinute = int64(60 * 1000)
	msPerHour   = 60 * msPerMinute
	msPerDay    = 24 * msPerHour
)

// ErrInvalidInterval is wrapped by every InvalidIntervalError.
var ErrInvalidInterval = errors.New("invalid interval")

// InvalidIntervalError reports an interval code that cannot be parsed.
type InvalidIntervalError struct {
	Interval string
	Reason   string
}

// Error implements the error interface.
func (e *InvalidIntervalError) Error() string {
	return fmt.Sprintf("invalid interval %q: %s", e.Interval, e.Reason)
}

// Unwrap allows errors.Is(err, ErrInvalidInterval).
func (e *InvalidIntervalError) Unwrap() error {
	return ErrInvalidInterval
}

// Interval is a parsed interval code.
type Interval struct {
	Magnitude int64
	Unit      Unit
}

// Parse parses an interval code such as "1m", "4h" or "1M".
func Parse(s string) (Interval, error) {
	if len(s) < 2 {
		return Interval{}, &InvalidIntervalError{Interval: s, Reason: "too short"}
	}

	unit := Unit(s[len(s)-1])
	switch unit {
	case Minute, Hour, Day, Week, Month, Year:
	default:
		return Interval{}, &InvalidIntervalError{Interval: s, Reason: fmt.Sprintf("unknown unit %q", string(unit))}
	}

	digits := s[:len(s)-1]
	for i := 0; i < len(digits); i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return Interval{}, &InvalidIntervalError{Interval: s, Reason: "magnitude is not a number"}
		}
	}
	magnitude, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return Interval{}, &InvalidIntervalError{Interval: s, Reason: "magnitude is not a number"}
	}
	if magnitude <= 0 {
		return Interval{}, &InvalidIntervalError{Interval: s, Reason: "magnitude must be positive"}
	}
	if magnitude > math.MaxInt64/int64(unitLength(unit)) {
		return Interval{}, &InvalidIntervalError{Interval: s, Reason: "magnitude too large"}
	}

	return Interval{Magnitude: magnitude, Unit: unit}, nil
}

// String returns the interval code.
func (iv Interval) String() string {
	return strconv.FormatInt(iv.Magnitude, 10) + string(iv.Unit)
}

// IsCalendar reports whether the unit aligns on calendar boundaries.
func (iv Interval) IsCalendar() bool {
	switch iv.Unit {
	case Day, Week, Month, Year:
		return true
	}
	return false
}

// Duration returns the nominal bucket length. Months and years are
// approximated as 30 and 365 days.
func (iv Interval) Duration() time.Duration {
	return time.Duration(iv.Magnitude) * unitLength(iv.Unit)
}

func unitLength(u Unit) time.Duration {
	switch u {
	case Minute:
		return time.Minute
	case Hour:
		return time.Hour
	case Day:
		return 24 * time.Hour
	case Week:
		return 7 * 24 * time.Hour
	case Month:
		return 30 * 24 * time.Hour
	case Year:
		return 365 * 24 * time.Hour
	}
	return time.Millisecond
}

// Align returns the start of the bucket containing ms (milliseconds since
// the Unix epoch, UTC). Negative inputs clamp to the epoch.
func (iv Interval) Align(ms int64) int64 {
	if ms < 0 {
		ms = 0
	}

	switch iv.Unit {
	case Minute:
		size := iv.Magnitude * msPerMinute
		return (ms / size) * size
	case Hour:
		size := iv.Magnitude * msPerHour
		return (ms / size) * size
	}

	t := time.UnixMilli(ms).UTC()
	var aligned time.Time
	switch iv.Unit {
	case Day:
		aligned = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	case Week:
		// time.Weekday starts on Sunday; ISO weeks start on Monday.
		offset := (int(t.Weekday()) + 6) % 7
		aligned = time.Date(t.Year(), t.Month(), t.Day()-offset, 0, 0, 0, 0, time.UTC)
	case Month:
		aligned = time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	case Year:
		aligned = time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	default:
		return ms
	}

	out := aligned.UnixMilli()
	if out < 0 {
		return 0
	}
	return out
}

// AlignTime is Align for time.Time values.
func (iv Interval) AlignTime(t time.Time) time.Time {
	return time.UnixMilli(iv.Align(t.UnixMilli())).UTC()
}

// Align parses spec and aligns ms to the start of its bucket.
func Align(ms int64, spec string) (int64, error) {
	iv, err := Parse(spec)
	if err != nil {
		return 0, err
	}
	return iv.Align(ms), nil
}
