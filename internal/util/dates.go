package util

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ParseDate parses "2006-01-02" or RFC3339. Date-only values are midnight
// UTC; the second return value reports whether the input was date-only.
func ParseDate(s string) (time.Time, bool, error) {
	s = strings.TrimSpace(s)
	if t, err := time.ParseInLocation(time.DateOnly, s, time.UTC); err == nil {
		return t, true, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("invalid date %q: want YYYY-MM-DD or RFC3339", s)
	}
	return t.UTC(), false, nil
}

// EndOfDay returns the last nanosecond of t's calendar day.
func EndOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, t.Location()).Add(-time.Nanosecond)
}

// maxWindowDays is the longest day count a time.Duration can hold.
const maxWindowDays = float64(math.MaxInt64) / float64(24*time.Hour)

// ParseWindow parses a window length. It accepts Go durations ("36h",
// "90m") and whole or fractional days with a "d" suffix ("20d", "1.5d").
func ParseWindow(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.ParseFloat(days, 64)
		if err != nil || !(n > 0 && n < maxWindowDays) {
			return 0, fmt.Errorf("invalid window %q", s)
		}
		return time.Duration(n * float64(24*time.Hour)), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid window %q", s)
	}
	return d, nil
}
