package strategy

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"quantbench/internal/domain"
)

// summarize builds one summary per algorithm from the run records and the
// unrounded valuation curves produced by simulate.
func summarize(names []string, records []domain.TradeResult, curves [][]float64) []domain.AlgorithmSummary {
	out := make([]domain.AlgorithmSummary, len(names))
	last := records[len(records)-1]
	for i, name := range names {
		s := domain.AlgorithmSummary{
			Name:                name,
			FinalAssets:         last.Algorithms[i].Assets,
			FinalValuation:      last.Algorithms[i].Valuation,
			ValuationDifference: last.Algorithms[i].ValuationDifference,
			MaxDrawdown:         MaxDrawdown(curves[i]),
			SharpeRatio:         SharpeRatio(Returns(curves[i])),
		}
		for _, rec := range records {
			if rec.Initial {
				continue
			}
			switch rec.Algorithms[i].Estimate.Signal {
			case domain.SignalTypeBuy:
				s.Buys++
			case domain.SignalTypeSell:
				s.Sells++
			default:
				s.Holds++
			}
		}
		out[i] = s
	}
	return out
}

// MaxDrawdown returns the largest peak-to-trough decline of curve as a
// non-positive fraction of the running peak.
func MaxDrawdown(curve []float64) float64 {
	var worst, peak float64
	for _, v := range curve {
		if v > peak {
			peak = v
		}
		if peak <= 0 {
			continue
		}
		if dd := (v - peak) / peak; dd < worst {
			worst = dd
		}
	}
	return worst
}

// Returns converts a valuation curve into per-step fractional returns,
// skipping steps that start from a non-positive value.
func Returns(curve []float64) []float64 {
	if len(curve) < 2 {
		return nil
	}
	out := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		if curve[i-1] <= 0 {
			continue
		}
		out = append(out, curve[i]/curve[i-1]-1)
	}
	return out
}

// SharpeRatio returns mean / sample standard deviation of returns with a
// zero risk-free rate. It is not annualized and is 0 when undefined.
func SharpeRatio(returns []float64) float64 {
	if len(returns) <= 1 {
		return 0
	}
	mean, std := stat.MeanStdDev(returns, nil)
	if std == 0 || math.IsNaN(std) {
		return 0
	}
	return mean / std
}
