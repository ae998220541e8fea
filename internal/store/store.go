// Package store defines storage interfaces for reading price series and
// persisting backtest runs, along with the file and database backends that
// implement them.
package store

import (
	"context"
	"log/slog"
	"time"

	"quantbench/internal/domain"
)

// BarReader is a price series provider.
type BarReader interface {
	// ReadBars returns bars for symbol within [start, end], in ascending
	// timestamp order with no duplicate timestamps.
	ReadBars(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error)
}

// BarStore persists and retrieves OHLCV bar data.
type BarStore interface {
	BarReader

	// WriteBars persists a batch of bars for symbol, merging with any bars
	// already stored at the same timestamps.
	WriteBars(ctx context.Context, symbol string, bars []domain.Bar) error
}

// SymbolLister is implemented by stores that can enumerate their symbols.
type SymbolLister interface {
	// ListSymbols returns all distinct symbols with stored bars, sorted.
	ListSymbols(ctx context.Context) ([]string, error)
}

// RunStore persists completed backtest runs.
type RunStore interface {
	// SaveRun writes the run's records and summaries.
	SaveRun(ctx context.Context, run *domain.Run) error
}

// ValidBars drops the bars that fail Bar.Validate, logging each at WARN. It
// filters bars in place.
func ValidBars(log *slog.Logger, bars []domain.Bar) []domain.Bar {
	if log == nil {
		log = slog.Default()
	}
	out := bars[:0]
	for _, b := range bars {
		if err := b.Validate(); err != nil {
			log.Warn("skipping invalid bar", "symbol", b.Symbol, "reason", err)
			continue
		}
		out = append(out, b)
	}
	return out
}
