// Package strategy defines the Strategy interface for signal algorithms,
// provides an ordered Registry for managing the algorithms under test, and
// the Backtester that replays a price series through them.
package strategy

import (
	"time"

	"quantbench/internal/domain"
)

// Strategy is the interface that all signal algorithms must implement.
type Strategy interface {
	// Name returns the unique identifier for this strategy.
	Name() string

	// Lookback returns the longest stretch of history before an evaluation
	// instant that the strategy reads. The Backtester uses it to size the
	// fetch margin.
	Lookback() time.Duration

	// Estimate evaluates the strategy at asOf. history is the full fetched
	// series in ascending order and may extend past asOf; implementations
	// must only read bars at or before asOf, must not mutate history, and
	// return domain.Hold() when their window holds too little data.
	Estimate(history []domain.Bar, asOf time.Time) (domain.Estimate, error)
}

// Registry holds a named collection of strategies and remembers the order in
// which they were registered, so reports have a stable column layout.
type Registry struct {
	strategies map[string]Strategy
	order      []string
}

// NewRegistry creates an empty strategy Registry.
func NewRegistry() *Registry {
	return &Registry{
		strategies: make(map[string]Strategy),
	}
}

// Register adds a strategy to the registry, keyed by its Name(). Registering
// a name twice replaces the strategy but keeps its original position.
func (r *Registry) Register(s Strategy) {
	if _, ok := r.strategies[s.Name()]; !ok {
		r.order = append(r.order, s.Name())
	}
	r.strategies[s.Name()] = s
}

// Get retrieves a strategy by name. The second return value indicates whether
// the strategy was found.
func (r *Registry) Get(name string) (Strategy, bool) {
	s, ok := r.strategies[name]
	return s, ok
}

// List returns the registered strategy names in registration order.
func (r *Registry) List() []string {
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// All returns the registered strategies in registration order.
func (r *Registry) All() []Strategy {
	out := make([]Strategy, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.strategies[name])
	}
	return out
}

// Len returns the number of registered strategies.
func (r *Registry) Len() int { return len(r.order) }

// MaxLookback returns the largest Lookback() across all strategies.
func (r *Registry) MaxLookback() time.Duration {
	var longest time.Duration
	for _, s := range r.strategies {
		if lb := s.Lookback(); lb > longest {
			longest = lb
		}
	}
	return longest
}
