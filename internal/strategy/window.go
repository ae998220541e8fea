package strategy

import (
	"sort"
	"time"

	"quantbench/internal/domain"
)

// Helpers shared by the built-in strategies. All of them assume history is
// sorted by timestamp, which every provider guarantees.

// Upto returns the prefix of history with timestamps at or before asOf.
func Upto(history []domain.Bar, asOf time.Time) []domain.Bar {
	i := sort.Search(len(history), func(i int) bool {
		return history[i].Timestamp.After(asOf)
	})
	return history[:i]
}

// Window returns the bars in (asOf-length, asOf].
func Window(history []domain.Bar, asOf time.Time, length time.Duration) []domain.Bar {
	upto := Upto(history, asOf)
	cutoff := asOf.Add(-length)
	i := sort.Search(len(upto), func(i int) bool {
		return upto[i].Timestamp.After(cutoff)
	})
	return upto[i:]
}

// Previous returns the timestamp of the last bar strictly before asOf.
func Previous(history []domain.Bar, asOf time.Time) (time.Time, bool) {
	i := sort.Search(len(history), func(i int) bool {
		return !history[i].Timestamp.Before(asOf)
	})
	if i == 0 {
		return time.Time{}, false
	}
	return history[i-1].Timestamp, true
}

// Last returns the bar at asOf, or the latest bar before it.
func Last(history []domain.Bar, asOf time.Time) (domain.Bar, bool) {
	upto := Upto(history, asOf)
	if len(upto) == 0 {
		return domain.Bar{}, false
	}
	return upto[len(upto)-1], true
}

// Closes extracts close prices.
func Closes(bars []domain.Bar) []float64 {
	out := make([]float64, len(bars))
	for i := range bars {
		out[i] = bars[i].Close
	}
	return out
}

// AverageClose returns the arithmetic mean close, or 0 for no bars.
func AverageClose(bars []domain.Bar) float64 {
	if len(bars) == 0 {
		return 0
	}
	var sum float64
	for i := range bars {
		sum += bars[i].Close
	}
	return sum / float64(len(bars))
}

// AverageVolume returns the arithmetic mean volume, or 0 for no bars.
func AverageVolume(bars []domain.Bar) float64 {
	if len(bars) == 0 {
		return 0
	}
	var sum float64
	for i := range bars {
		sum += bars[i].Volume
	}
	return sum / float64(len(bars))
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
