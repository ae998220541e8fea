// Package ledger holds the asset arithmetic of a simulated portfolio: how an
// estimate moves cash into units and back, and how holdings are valued. It
// performs no I/O and keeps no state of its own.
package ledger

import (
	"github.com/shopspring/decimal"

	"quantbench/internal/domain"
)

// DefaultSeed is the allocation every algorithm starts from. Both sides are
// non-zero so buy and sell signals are actionable from the first moment.
var DefaultSeed = domain.Assets{Cash: 1000, AssetUnits: 1000}

// Valuation returns cash + units * close.
func Valuation(a domain.Assets, bar domain.Bar) float64 {
	return a.Cash + a.AssetUnits*bar.Close
}

// ApplyEstimate returns the holdings after acting on est at bar's close.
//
// A buy spends min(maxTradeCash, cash) * confidence; a sell divests
// min(maxTradeCash, units*close) * confidence. The cap is applied before the
// confidence scaling, so neither side can go negative. No rounding happens
// here. A close <= 0 violates the bar invariant and is not checked.
func ApplyEstimate(a domain.Assets, bar domain.Bar, est domain.Estimate, maxTradeCash float64) domain.Assets {
	switch est.Signal {
	case domain.SignalTypeBuy:
		spendable := min(maxTradeCash, a.Cash) * est.Confidence
		if spendable <= 0 {
			return a
		}
		return domain.Assets{
			Cash:       a.Cash - spendable,
			AssetUnits: a.AssetUnits + spendable/bar.Close,
		}

	case domain.SignalTypeSell:
		holdings := a.AssetUnits * bar.Close
		divestible := min(maxTradeCash, holdings) * est.Confidence
		if divestible <= 0 {
			return a
		}
		sold := divestible / bar.Close
		if divestible >= holdings || sold > a.AssetUnits {
			// units*close/close can land one ulp away from units.
			sold = a.AssetUnits
		}
		return domain.Assets{
			Cash:       a.Cash + divestible,
			AssetUnits: a.AssetUnits - sold,
		}

	default:
		return a
	}
}

// DisplayValuation floors v to a whole currency unit for presentation.
func DisplayValuation(v float64) float64 {
	return decimal.NewFromFloat(v).Floor().InexactFloat64()
}

// ValuationDifference returns (v - baseline) / baseline.
func ValuationDifference(v, baseline float64) float64 {
	return (v - baseline) / baseline
}
