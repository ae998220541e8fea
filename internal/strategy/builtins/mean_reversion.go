package builtins

import (
	"time"

	"quantbench/internal/domain"
	"quantbench/internal/strategy"
)

// Compile-time interface checks.
var (
	_ strategy.Strategy = (*MeanReversion)(nil)
	_ strategy.Strategy = (*MeanReversionVolume)(nil)
)

// MeanReversion buys when the close crosses below its window mean and sells
// when it crosses back above.
type MeanReversion struct {
	window time.Duration
}

// NewMeanReversion creates a MeanReversion strategy over the given window.
func NewMeanReversion(window time.Duration) *MeanReversion {
	return &MeanReversion{window: window}
}

// Name returns "mean-reversion".
func (s *MeanReversion) Name() string { return KindMeanReversion }

func (s *MeanReversion) Lookback() time.Duration { return s.window + crossStep }

func (s *MeanReversion) Estimate(history []domain.Bar, asOf time.Time) (domain.Estimate, error) {
	c, _, ok := s.cross(history, asOf)
	if !ok {
		return domain.Hold(), nil
	}
	switch c {
	case crossDown:
		return domain.Estimate{Signal: domain.SignalTypeBuy, Confidence: 1}, nil
	case crossUp:
		return domain.Estimate{Signal: domain.SignalTypeSell, Confidence: 1}, nil
	}
	return domain.Hold(), nil
}

// cross reports how the close moved against the window mean between the
// previous bar and asOf, along with the window ending at asOf.
func (s *MeanReversion) cross(history []domain.Bar, asOf time.Time) (cross, []domain.Bar, bool) {
	prevTS, prevBar, ok := previousBar(history, asOf)
	if !ok {
		return noCross, nil, false
	}
	w := strategy.Window(history, asOf, s.window)
	pw := strategy.Window(history, prevTS, s.window)
	if len(w) == 0 || len(pw) == 0 || !w[len(w)-1].Timestamp.Equal(asOf) {
		return noCross, nil, false
	}
	last := w[len(w)-1].Close
	return crossing(prevBar.Close, strategy.AverageClose(pw), last, strategy.AverageClose(w)), w, true
}

// MeanReversionVolume is a MeanReversion that only acts when the current
// volume exceeds the window's mean volume. Confidence is half the ratio of
// the two.
type MeanReversionVolume struct {
	MeanReversion
}

// NewMeanReversionVolume creates a volume-confirmed mean reversion strategy.
func NewMeanReversionVolume(window time.Duration) *MeanReversionVolume {
	return &MeanReversionVolume{MeanReversion{window: window}}
}

// Name returns "mean-reversion-volume".
func (s *MeanReversionVolume) Name() string { return KindMeanReversionVolume }

func (s *MeanReversionVolume) Estimate(history []domain.Bar, asOf time.Time) (domain.Estimate, error) {
	c, w, ok := s.cross(history, asOf)
	if !ok || c == noCross {
		return domain.Hold(), nil
	}
	vol := w[len(w)-1].Volume
	meanVol := strategy.AverageVolume(w)
	if vol <= meanVol {
		return domain.Hold(), nil
	}
	conf := strategy.Clamp(vol/meanVol/2, 0, 1)
	if c == crossDown {
		return domain.Estimate{Signal: domain.SignalTypeBuy, Confidence: conf}, nil
	}
	return domain.Estimate{Signal: domain.SignalTypeSell, Confidence: conf}, nil
}
