// Package domain defines the core types shared across quantbench: price bars,
// algorithm estimates, simulated holdings and the records a backtest emits.
package domain

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// Market data
// ---------------------------------------------------------------------------

// ErrInvalidBar is returned when a bar violates the OHLCV invariants.
var ErrInvalidBar = errors.New("invalid bar")

// Bar is one OHLCV sample of an asset for a fixed time bucket. Timestamps are
// normalized to UTC by every provider.
type Bar struct {
	Symbol    string
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// Validate checks that prices are finite and strictly positive, volume is
// non-negative and low <= min(open, close) <= max(open, close) <= high.
func (b Bar) Validate() error {
	for _, v := range []float64{b.Open, b.High, b.Low, b.Close, b.Volume} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite value at %s", ErrInvalidBar, b.Timestamp.Format(time.RFC3339))
		}
	}
	if b.Open <= 0 || b.High <= 0 || b.Low <= 0 || b.Close <= 0 {
		return fmt.Errorf("%w: non-positive price at %s", ErrInvalidBar, b.Timestamp.Format(time.RFC3339))
	}
	if b.Volume < 0 {
		return fmt.Errorf("%w: negative volume at %s", ErrInvalidBar, b.Timestamp.Format(time.RFC3339))
	}
	lo, hi := math.Min(b.Open, b.Close), math.Max(b.Open, b.Close)
	if b.Low > lo || hi > b.High {
		return fmt.Errorf("%w: low/high do not bracket open/close at %s", ErrInvalidBar, b.Timestamp.Format(time.RFC3339))
	}
	return nil
}

// ---------------------------------------------------------------------------
// Signals
// ---------------------------------------------------------------------------

// ErrInvalidEstimate is returned when an algorithm produces an estimate with
// an unknown signal or a confidence outside [0, 1].
var ErrInvalidEstimate = errors.New("invalid estimate")

// SignalType is the categorical trading decision of an algorithm.
type SignalType string

const (
	SignalTypeBuy  SignalType = "buy"
	SignalTypeSell SignalType = "sell"
	SignalTypeHold SignalType = "hold"
)

// Estimate is the output of a signal algorithm for one evaluation instant.
type Estimate struct {
	Signal     SignalType
	Confidence float64 // 0 = no conviction, 1 = maximum conviction
}

// Hold returns the neutral estimate used when there is not enough history.
func Hold() Estimate {
	return Estimate{Signal: SignalTypeHold, Confidence: 0}
}

// Validate reports whether the estimate is well formed.
func (e Estimate) Validate() error {
	switch e.Signal {
	case SignalTypeBuy, SignalTypeSell, SignalTypeHold:
	default:
		return fmt.Errorf("%w: unknown signal %q", ErrInvalidEstimate, e.Signal)
	}
	if math.IsNaN(e.Confidence) || e.Confidence < 0 || e.Confidence > 1 {
		return fmt.Errorf("%w: confidence %v outside [0,1]", ErrInvalidEstimate, e.Confidence)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Holdings and results
// ---------------------------------------------------------------------------

// Assets is one algorithm's simulated holdings at a point in time.
type Assets struct {
	Cash       float64
	AssetUnits float64
}

// AlgorithmState is one algorithm's column within a TradeResult.
type AlgorithmState struct {
	Name                string
	Estimate            Estimate
	Assets              Assets  // post-trade holdings
	Valuation           float64 // whole-unit display valuation
	ValuationDifference float64 // (valuation - baseline) / baseline
}

// TradeResult is one row of simulation output at one trading moment. The
// Algorithms slice follows registry order.
type TradeResult struct {
	Date       time.Time
	ClosePrice float64
	Volume     float64
	Initial    bool // synthetic baseline record
	Algorithms []AlgorithmState
}

// AlgorithmSummary condenses one algorithm's run.
type AlgorithmSummary struct {
	Name                string
	FinalAssets         Assets
	FinalValuation      float64
	ValuationDifference float64
	MaxDrawdown         float64 // <= 0, fraction of the running peak
	SharpeRatio         float64
	Buys                int
	Sells               int
	Holds               int
}

// Run is the complete output of one backtest.
type Run struct {
	ID           uuid.UUID
	Symbol       string
	From         time.Time
	To           time.Time
	MarginDays   int
	MaxTradeCash float64
	Seed         Assets
	Algorithms   []string
	Records      []TradeResult
	Summaries    []AlgorithmSummary
	StartedAt    time.Time
	Duration     time.Duration
}

// Best returns the summary with the highest final valuation difference. Ties
// resolve to the earliest algorithm. The second value is false when the run
// has no summaries.
func (r *Run) Best() (AlgorithmSummary, bool) {
	if len(r.Summaries) == 0 {
		return AlgorithmSummary{}, false
	}
	best := r.Summaries[0]
	for _, s := range r.Summaries[1:] {
		if s.ValuationDifference > best.ValuationDifference {
			best = s
		}
	}
	return best, true
}
