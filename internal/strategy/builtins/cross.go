// Package builtins provides built-in strategy implementations that ship with
// quantbench.
package builtins

import (
	"time"

	"quantbench/internal/domain"
	"quantbench/internal/strategy"
)

// crossStep is the extra history a crossover strategy reads to evaluate its
// windows at the previous bar.
const crossStep = 24 * time.Hour

type cross int

const (
	noCross cross = iota
	crossUp
	crossDown
)

// crossing compares a against b now and at the previous bar. Equality on the
// previous bar counts as "not yet crossed".
func crossing(prevA, prevB, a, b float64) cross {
	switch {
	case a > b && prevA <= prevB:
		return crossUp
	case a < b && prevA >= prevB:
		return crossDown
	}
	return noCross
}

// previousBar returns the last bar strictly before asOf.
func previousBar(history []domain.Bar, asOf time.Time) (time.Time, domain.Bar, bool) {
	ts, ok := strategy.Previous(history, asOf)
	if !ok {
		return time.Time{}, domain.Bar{}, false
	}
	b, _ := strategy.Last(history, ts)
	return ts, b, true
}

// named overrides the Name of a configured strategy.
type named struct {
	strategy.Strategy
	name string
}

func (n named) Name() string { return n.name }
