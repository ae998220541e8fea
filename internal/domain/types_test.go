package domain

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestTypesExist(t *testing.T) {
	// Verify Bar can be instantiated with zero values.
	bar := Bar{}
	if bar.Symbol != "" {
		t.Error("expected empty Symbol for zero-value Bar")
	}
	if !bar.Timestamp.IsZero() {
		t.Error("expected zero Timestamp for zero-value Bar")
	}
	if bar.Open != 0 || bar.High != 0 || bar.Low != 0 || bar.Close != 0 || bar.Volume != 0 {
		t.Error("expected zero OHLCV values for zero-value Bar")
	}

	// Verify enum constants are defined correctly.
	if SignalTypeBuy != "buy" || SignalTypeSell != "sell" || SignalTypeHold != "hold" {
		t.Error("SignalType constants have unexpected values")
	}

	if h := Hold(); h.Signal != SignalTypeHold || h.Confidence != 0 {
		t.Errorf("Hold() = %+v, want {hold 0}", h)
	}
}

func TestBarValidate(t *testing.T) {
	ts := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		bar  Bar
		ok   bool
	}{
		{"valid", Bar{Timestamp: ts, Open: 100, High: 110, Low: 95, Close: 105, Volume: 10}, true},
		{"flat", Bar{Timestamp: ts, Open: 100, High: 100, Low: 100, Close: 100}, true},
		{"zero close", Bar{Timestamp: ts, Open: 100, High: 110, Low: 95, Close: 0}, false},
		{"negative volume", Bar{Timestamp: ts, Open: 100, High: 110, Low: 95, Close: 105, Volume: -1}, false},
		{"low above open", Bar{Timestamp: ts, Open: 100, High: 110, Low: 101, Close: 105}, false},
		{"high below close", Bar{Timestamp: ts, Open: 100, High: 104, Low: 95, Close: 105}, false},
		{"nan", Bar{Timestamp: ts, Open: math.NaN(), High: 110, Low: 95, Close: 105}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.bar.Validate()
			if tt.ok && err != nil {
				t.Errorf("Validate() = %v, want nil", err)
			}
			if !tt.ok && !errors.Is(err, ErrInvalidBar) {
				t.Errorf("Validate() = %v, want ErrInvalidBar", err)
			}
		})
	}
}

func TestEstimateValidate(t *testing.T) {
	good := []Estimate{
		{Signal: SignalTypeBuy, Confidence: 1},
		{Signal: SignalTypeSell, Confidence: 0},
		{Signal: SignalTypeHold, Confidence: 0.5},
	}
	for _, e := range good {
		if err := e.Validate(); err != nil {
			t.Errorf("Validate(%+v) = %v, want nil", e, err)
		}
	}

	bad := []Estimate{
		{Signal: "short", Confidence: 1},
		{Signal: SignalTypeBuy, Confidence: 1.01},
		{Signal: SignalTypeSell, Confidence: -0.1},
		{Signal: SignalTypeBuy, Confidence: math.NaN()},
	}
	for _, e := range bad {
		if err := e.Validate(); !errors.Is(err, ErrInvalidEstimate) {
			t.Errorf("Validate(%+v) = %v, want ErrInvalidEstimate", e, err)
		}
	}
}

func TestRunBest(t *testing.T) {
	r := &Run{}
	if _, ok := r.Best(); ok {
		t.Error("Best() on empty run returned ok")
	}

	r.Summaries = []AlgorithmSummary{
		{Name: "alpha", ValuationDifference: 0.1},
		{Name: "beta", ValuationDifference: 0.3},
		{Name: "gamma", ValuationDifference: 0.3},
	}
	best, ok := r.Best()
	if !ok {
		t.Fatal("Best() returned false")
	}
	if best.Name != "beta" {
		t.Errorf("Best().Name = %q, want %q", best.Name, "beta")
	}
}
