package builtins

import (
	"math"
	"time"

	"quantbench/internal/domain"
	"quantbench/internal/strategy"
)

// Compile-time interface check.
var _ strategy.Strategy = (*SMATrend)(nil)

// SMATrend buys while the close sits above its simple moving average and
// sells while it sits below. Confidence scales with the relative distance
// from the average.
type SMATrend struct {
	window      time.Duration
	sensitivity float64
}

// NewSMATrend creates an SMATrend over the given window. Sensitivity
// multiplies the relative distance before it is clamped to [0, 1].
func NewSMATrend(window time.Duration, sensitivity float64) *SMATrend {
	return &SMATrend{window: window, sensitivity: sensitivity}
}

// Name returns "sma-trend".
func (s *SMATrend) Name() string { return KindSMATrend }

func (s *SMATrend) Lookback() time.Duration { return s.window }

func (s *SMATrend) Estimate(history []domain.Bar, asOf time.Time) (domain.Estimate, error) {
	w := strategy.Window(history, asOf, s.window)
	if len(w) < 2 {
		return domain.Hold(), nil
	}
	sma := strategy.AverageClose(w)
	last := w[len(w)-1].Close
	conf := strategy.Clamp(math.Abs(last-sma)/sma*s.sensitivity, 0, 1)

	switch {
	case last > sma:
		return domain.Estimate{Signal: domain.SignalTypeBuy, Confidence: conf}, nil
	case last < sma:
		return domain.Estimate{Signal: domain.SignalTypeSell, Confidence: conf}, nil
	}
	return domain.Hold(), nil
}
