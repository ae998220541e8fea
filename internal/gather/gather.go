package gather

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"quantbench/internal/store"
)

// Gatherer is the interface for all data gathering processes.
type Gatherer interface {
	// Name returns the gatherer identifier.
	Name() string
	// Run performs the gathering. It returns early when ctx is cancelled.
	Run(ctx context.Context) error
}

// DateRange represents an inclusive time range for data fetching.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Chunks splits the range into consecutive, non-overlapping sub-ranges of at
// most step. The last chunk ends exactly at End.
func (r DateRange) Chunks(step time.Duration) []DateRange {
	if r.End.Before(r.Start) {
		return nil
	}
	if step <= 0 {
		return []DateRange{r}
	}
	var out []DateRange
	for s := r.Start; !s.After(r.End); s = s.Add(step) {
		e := s.Add(step - time.Nanosecond)
		if e.After(r.End) {
			e = r.End
		}
		out = append(out, DateRange{Start: s, End: e})
	}
	return out
}

// DefaultChunk is the span fetched per source call when copying bars.
const DefaultChunk = 366 * 24 * time.Hour

var _ Gatherer = (*BarGatherer)(nil)

// BarGatherer copies bars for one symbol from any provider into a bar store,
// one chunk at a time.
type BarGatherer struct {
	source store.BarReader
	dest   store.BarStore
	symbol string
	rng    DateRange
	chunk  time.Duration
	log    *slog.Logger
}

// NewBarGatherer creates a BarGatherer. A zero chunk uses DefaultChunk.
func NewBarGatherer(source store.BarReader, dest store.BarStore, symbol string, rng DateRange, chunk time.Duration, log *slog.Logger) *BarGatherer {
	if chunk <= 0 {
		chunk = DefaultChunk
	}
	if log == nil {
		log = slog.Default()
	}
	return &BarGatherer{
		source: source,
		dest:   dest,
		symbol: symbol,
		rng:    rng,
		chunk:  chunk,
		log:    log.With("gatherer", "bars", "symbol", symbol),
	}
}

// Name returns the gatherer identifier.
func (g *BarGatherer) Name() string { return "bars" }

// Run copies every chunk of the range. Invalid bars are dropped with a
// warning.
func (g *BarGatherer) Run(ctx context.Context) error {
	runStart := time.Now()
	total := 0
	chunks := g.rng.Chunks(g.chunk)
	for i, c := range chunks {
		if err := ctx.Err(); err != nil {
			return err
		}
		bars, err := g.source.ReadBars(ctx, g.symbol, c.Start, c.End)
		if err != nil {
			return fmt.Errorf("reading %s %s..%s: %w", g.symbol,
				c.Start.Format(time.DateOnly), c.End.Format(time.DateOnly), err)
		}

		valid := store.ValidBars(g.log, bars)
		if len(valid) > 0 {
			if err := g.dest.WriteBars(ctx, g.symbol, valid); err != nil {
				return fmt.Errorf("writing %s: %w", g.symbol, err)
			}
		}
		total += len(valid)

		g.log.Info("chunk done",
			"chunk", fmt.Sprintf("%d/%d", i+1, len(chunks)),
			"bars", len(valid),
			"elapsed", time.Since(runStart).Round(time.Millisecond),
		)
	}

	g.log.Info("complete", "bars", total, "elapsed", time.Since(runStart).Round(time.Millisecond))
	return nil
}
