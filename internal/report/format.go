package report

import (
	"fmt"
	"math"
	"strings"

	"quantbench/internal/domain"
)

// FormatInt formats an integer with comma separators.
func FormatInt(n int64) string {
	if n < 0 {
		return "-" + FormatInt(-n)
	}
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	start := len(s) % 3
	if start > 0 {
		b.WriteString(s[:start])
	}
	for i := start; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

// FormatMoney formats a whole-unit valuation with comma separators.
func FormatMoney(v float64) string {
	return FormatInt(int64(math.Floor(v)))
}

// FormatVolume formats a traded volume with B/M/K suffixes.
func FormatVolume(v float64) string {
	switch {
	case v >= 1e9:
		return fmt.Sprintf("%.1fB", v/1e9)
	case v >= 1e6:
		return fmt.Sprintf("%.1fM", v/1e6)
	case v >= 1e3:
		return fmt.Sprintf("%.1fK", v/1e3)
	default:
		return fmt.Sprintf("%.0f", v)
	}
}

// FormatPrice formats a price with two decimals, or "-" for zero.
func FormatPrice(p float64) string {
	if p == 0 || math.IsNaN(p) {
		return "-"
	}
	return fmt.Sprintf("%.2f", p)
}

// FormatGain formats a gain fraction as "+X.X%", or "" if not positive.
// Drops decimal for values >= 100% to keep width compact.
func FormatGain(g float64) string {
	if g <= 0 {
		return ""
	}
	pct := g * 100
	if pct >= 100 {
		return fmt.Sprintf("+%.0f%%", pct)
	}
	return fmt.Sprintf("+%.1f%%", pct)
}

// FormatLoss formats a loss fraction as "-X.X%", or "" if not positive.
// Drops decimal for values >= 100% to keep width compact.
func FormatLoss(l float64) string {
	if l <= 0 {
		return ""
	}
	pct := l * 100
	if pct >= 100 {
		return fmt.Sprintf("-%.0f%%", pct)
	}
	return fmt.Sprintf("-%.1f%%", pct)
}

// FormatChange formats a signed fraction as a gain, a loss or "0.0%".
func FormatChange(d float64) string {
	switch {
	case d > 0:
		return FormatGain(d)
	case d < 0:
		return FormatLoss(-d)
	default:
		return "0.0%"
	}
}

// FormatEstimate renders an estimate compactly, e.g. "buy 0.75".
func FormatEstimate(e domain.Estimate) string {
	return fmt.Sprintf("%s %.2f", e.Signal, e.Confidence)
}
