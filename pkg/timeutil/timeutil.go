// Package timeutil formats and parses the ISO-8601 timestamps and durations
// used on the xAPI wire.
package timeutil

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/sosodev/duration"
)

// ══════════════════════════════════════════════════════════════════════════════
// TIMESTAMPS
// ══════════════════════════════════════════════════════════════════════════════

// TimestampLayout is the round-trip layout: fixed nanosecond precision with an
// explicit offset ("Z" for UTC).
const TimestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Now returns the current time in UTC.
func Now() time.Time {
	return time.Now().UTC()
}

// FormatTimestamp renders t in the round-trip layout. The offset of t is kept.
func FormatTimestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}

// ParseTimestamp accepts any RFC 3339 timestamp, with or without fractional
// seconds.
func ParseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// DURATIONS
// ══════════════════════════════════════════════════════════════════════════════

// ErrInvalidDuration is returned for strings that are not ISO-8601 durations.
var ErrInvalidDuration = errors.New("invalid ISO-8601 duration")

// Calendar approximations used when a duration carries years, months or weeks.
const (
	Day   = 24 * time.Hour
	Week  = 7 * Day
	Month = 30 * Day
	Year  = 365 * Day
)

var durationPattern = regexp.MustCompile(
	`^(-)?P(?:(\d+)Y)?(?:(\d+)M)?(?:(\d+)W)?(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+(?:[.,]\d+)?)S)?)?$`,
)

// FormatDuration renders d as an ISO-8601 duration using days, hours,
// minutes and (fractional) seconds, e.g. "P1DT2H16M43S". Zero is "PT0S".
func FormatDuration(d time.Duration) string {
	if d == 0 {
		return "PT0S"
	}

	mag := magnitude(d)
	days := mag / uint64(Day)
	mag %= uint64(Day)
	hours := mag / uint64(time.Hour)
	mag %= uint64(time.Hour)
	minutes := mag / uint64(time.Minute)
	mag %= uint64(time.Minute)

	iso := duration.Duration{
		Days:     float64(days),
		Hours:    float64(hours),
		Minutes:  float64(minutes),
		Seconds:  float64(mag) / float64(time.Second),
		Negative: d < 0,
	}
	return iso.String()
}

// ParseDuration parses an ISO-8601 duration. Years, months and weeks are
// converted with the fixed Year, Month and Week approximations. Only the
// seconds may carry a fraction.
func ParseDuration(s string) (time.Duration, error) {
	if !durationPattern.MatchString(s) || strings.HasSuffix(s, "P") || strings.HasSuffix(s, "T") {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, s)
	}

	iso, err := duration.Parse(strings.Replace(s, ",", ".", 1))
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrInvalidDuration, s, err)
	}

	// -2^63 is representable, 2^63 is not.
	limit := uint64(math.MaxInt64)
	if iso.Negative {
		limit++
	}

	parts := []struct {
		n    float64
		unit time.Duration
	}{
		{iso.Years, Year},
		{iso.Months, Month},
		{iso.Weeks, Week},
		{iso.Days, Day},
		{iso.Hours, time.Hour},
		{iso.Minutes, time.Minute},
	}

	var total uint64
	for _, part := range parts {
		if part.n == 0 {
			continue
		}
		if part.n > float64(limit/uint64(part.unit)) {
			return 0, fmt.Errorf("%w: %q overflows", ErrInvalidDuration, s)
		}
		ns := uint64(part.n) * uint64(part.unit)
		if ns > limit-total {
			return 0, fmt.Errorf("%w: %q overflows", ErrInvalidDuration, s)
		}
		total += ns
	}

	if iso.Seconds != 0 {
		ns := math.Round(iso.Seconds * float64(time.Second))
		if ns >= math.Exp2(63) || uint64(ns) > limit-total {
			return 0, fmt.Errorf("%w: %q overflows", ErrInvalidDuration, s)
		}
		total += uint64(ns)
	}

	switch {
	case !iso.Negative:
		return time.Duration(total), nil
	case total > math.MaxInt64:
		return math.MinInt64, nil
	default:
		return -time.Duration(total), nil
	}
}

// magnitude returns |d| without overflowing on math.MinInt64.
func magnitude(d time.Duration) uint64 {
	if d < 0 {
		return uint64(-(d + 1)) + 1
	}
	return uint64(d)
}
