package builtins

import (
	"math"
	"time"

	"github.com/thrasher-corp/gct-ta/indicators"

	"quantbench/internal/domain"
	"quantbench/internal/strategy"
)

// Compile-time interface check.
var _ strategy.Strategy = (*RSIBollinger)(nil)

// Band touch tolerance, as a fraction of the band.
const bandTolerance = 0.001

// RSIBollinger buys when the close touches the lower Bollinger band while
// RSI is oversold and sells when it touches the upper band while RSI is
// overbought. Both require a volume spike over the band period's average.
type RSIBollinger struct {
	Window          time.Duration
	RSIPeriod       int
	BBPeriod        int
	BBStdDev        float64
	Oversold        float64
	Overbought      float64
	VolumeThreshold float64 // 0 disables the volume filter
}

// NewRSIBollinger returns an RSIBollinger with the usual day-trading
// settings over window.
func NewRSIBollinger(window time.Duration) *RSIBollinger {
	return &RSIBollinger{
		Window:          window,
		RSIPeriod:       14,
		BBPeriod:        20,
		BBStdDev:        2,
		Oversold:        25,
		Overbought:      75,
		VolumeThreshold: 2,
	}
}

// Name returns "rsi-bollinger".
func (s *RSIBollinger) Name() string { return KindRSIBollinger }

func (s *RSIBollinger) Lookback() time.Duration { return s.Window }

func (s *RSIBollinger) Estimate(history []domain.Bar, asOf time.Time) (domain.Estimate, error) {
	w := strategy.Window(history, asOf, s.Window)
	if len(w) <= max(s.RSIPeriod, s.BBPeriod) {
		return domain.Hold(), nil
	}
	closes := strategy.Closes(w)
	last := len(closes) - 1

	rsi := indicators.RSI(closes, s.RSIPeriod)
	upper, _, lower := indicators.BBANDS(closes, s.BBPeriod, s.BBStdDev, s.BBStdDev, indicators.Sma)
	r, up, lo := rsi[last], upper[last], lower[last]
	if math.IsNaN(r) || math.IsNaN(up) || math.IsNaN(lo) {
		return domain.Hold(), nil
	}

	if s.VolumeThreshold > 0 {
		avgVol := strategy.AverageVolume(w[len(w)-s.BBPeriod:])
		if w[last].Volume <= avgVol*s.VolumeThreshold {
			return domain.Hold(), nil
		}
	}

	price := closes[last]
	switch {
	case r < s.Oversold && price <= lo*(1+bandTolerance):
		conf := strategy.Clamp(0.5+(s.Oversold-r)/(2*s.Oversold), 0, 1)
		return domain.Estimate{Signal: domain.SignalTypeBuy, Confidence: conf}, nil
	case r > s.Overbought && price >= up*(1-bandTolerance):
		conf := strategy.Clamp(0.5+(r-s.Overbought)/(2*(100-s.Overbought)), 0, 1)
		return domain.Estimate{Signal: domain.SignalTypeSell, Confidence: conf}, nil
	}
	return domain.Hold(), nil
}
