package builtins

import (
	"time"

	"quantbench/internal/domain"
	"quantbench/internal/strategy"
)

// Compile-time interface checks.
var (
	_ strategy.Strategy = (*MovingAverage)(nil)
	_ strategy.Strategy = (*MovingAverageVolume)(nil)
)

// MovingAverage implements a simple moving average crossover strategy. It
// generates a buy signal when the short-window SMA crosses above the
// long-window SMA, and a sell signal when it crosses below.
type MovingAverage struct {
	short time.Duration
	long  time.Duration
}

// NewMovingAverage creates a new MovingAverage strategy with the specified
// short and long windows.
func NewMovingAverage(short, long time.Duration) *MovingAverage {
	return &MovingAverage{short: short, long: long}
}

// Name returns "moving-average".
func (s *MovingAverage) Name() string { return KindMovingAverage }

func (s *MovingAverage) Lookback() time.Duration { return max(s.short, s.long) + crossStep }

func (s *MovingAverage) Estimate(history []domain.Bar, asOf time.Time) (domain.Estimate, error) {
	m, ok := s.measure(history, asOf)
	if !ok {
		return domain.Hold(), nil
	}
	switch crossing(m.prevShort, m.prevLong, m.short, m.long) {
	case crossUp:
		return domain.Estimate{Signal: domain.SignalTypeBuy, Confidence: 1}, nil
	case crossDown:
		return domain.Estimate{Signal: domain.SignalTypeSell, Confidence: 1}, nil
	}
	return domain.Hold(), nil
}

// maPair holds short/long averages at asOf and at the previous bar.
type maPair struct {
	short, long         float64
	prevShort, prevLong float64
}

func (s *MovingAverage) measure(history []domain.Bar, asOf time.Time) (maPair, bool) {
	prev, _, ok := previousBar(history, asOf)
	if !ok {
		return maPair{}, false
	}
	short := strategy.Window(history, asOf, s.short)
	long := strategy.Window(history, asOf, s.long)
	prevShort := strategy.Window(history, prev, s.short)
	prevLong := strategy.Window(history, prev, s.long)
	if len(short) == 0 || len(long) == 0 || len(prevShort) == 0 || len(prevLong) == 0 {
		return maPair{}, false
	}
	return maPair{
		short:     strategy.AverageClose(short),
		long:      strategy.AverageClose(long),
		prevShort: strategy.AverageClose(prevShort),
		prevLong:  strategy.AverageClose(prevLong),
	}, true
}

// MovingAverageVolume is a MovingAverage crossover that only fires when
// volume agrees: a cross up needs short-window volume above long-window
// volume, a cross down needs it below. Confidence is half the volume ratio.
type MovingAverageVolume struct {
	MovingAverage
}

// NewMovingAverageVolume creates a volume-confirmed crossover strategy.
func NewMovingAverageVolume(short, long time.Duration) *MovingAverageVolume {
	return &MovingAverageVolume{MovingAverage{short: short, long: long}}
}

// Name returns "moving-average-volume".
func (s *MovingAverageVolume) Name() string { return KindMovingAverageVolume }

func (s *MovingAverageVolume) Estimate(history []domain.Bar, asOf time.Time) (domain.Estimate, error) {
	m, ok := s.measure(history, asOf)
	if !ok {
		return domain.Hold(), nil
	}
	c := crossing(m.prevShort, m.prevLong, m.short, m.long)
	if c == noCross {
		return domain.Hold(), nil
	}

	shortVol := strategy.AverageVolume(strategy.Window(history, asOf, s.short))
	longVol := strategy.AverageVolume(strategy.Window(history, asOf, s.long))
	switch {
	case c == crossUp && shortVol > longVol:
		conf := 1.0
		if longVol > 0 {
			conf = strategy.Clamp(shortVol/longVol/2, 0, 1)
		}
		return domain.Estimate{Signal: domain.SignalTypeBuy, Confidence: conf}, nil
	case c == crossDown && shortVol < longVol:
		conf := 1.0
		if shortVol > 0 {
			conf = strategy.Clamp(longVol/shortVol/2, 0, 1)
		}
		return domain.Estimate{Signal: domain.SignalTypeSell, Confidence: conf}, nil
	}
	return domain.Hold(), nil
}
