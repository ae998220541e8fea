package strategy

import (
	"math"
	"testing"
)

func TestMaxDrawdown(t *testing.T) {
	tests := []struct {
		name  string
		curve []float64
		want  float64
	}{
		{"empty", nil, 0},
		{"rising", []float64{100, 110, 120}, 0},
		{"two dips", []float64{100, 120, 90, 130, 117}, -0.25},
		{"straight down", []float64{100, 50}, -0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MaxDrawdown(tt.curve); math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("MaxDrawdown(%v) = %v, want %v", tt.curve, got, tt.want)
			}
		})
	}
}

func TestReturns(t *testing.T) {
	got := Returns([]float64{100, 110, 99})
	if len(got) != 2 {
		t.Fatalf("Returns returned %d values, want 2", len(got))
	}
	if math.Abs(got[0]-0.1) > 1e-12 || math.Abs(got[1]+0.1) > 1e-12 {
		t.Errorf("Returns = %v, want [0.1 -0.1]", got)
	}
	if got := Returns([]float64{0, 10, 20}); len(got) != 1 {
		t.Errorf("Returns from zero start returned %v, want one value", got)
	}
	if got := Returns([]float64{5}); got != nil {
		t.Errorf("Returns(single) = %v, want nil", got)
	}
}

func TestSharpeRatio(t *testing.T) {
	if got := SharpeRatio(nil); got != 0 {
		t.Errorf("SharpeRatio(nil) = %v, want 0", got)
	}
	if got := SharpeRatio([]float64{0.05}); got != 0 {
		t.Errorf("SharpeRatio(single) = %v, want 0", got)
	}
	if got := SharpeRatio([]float64{0, 0, 0}); got != 0 {
		t.Errorf("SharpeRatio(flat) = %v, want 0", got)
	}
	got := SharpeRatio([]float64{0.01, 0.03})
	if want := 0.02 / math.Sqrt(2e-4); math.Abs(got-want) > 1e-9 {
		t.Errorf("SharpeRatio = %v, want %v", got, want)
	}
	// Sample (n-1) standard deviation.
	got = SharpeRatio([]float64{0.01, -0.02, 0.03, 0})
	if want := 0.005 / math.Sqrt(1.3e-3/3); math.Abs(got-want) > 1e-9 {
		t.Errorf("SharpeRatio(mixed) = %v, want %v", got, want)
	}
}
