package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"quantbench/internal/domain"
	"quantbench/internal/store"
)

var _ store.RunStore = (*Multi)(nil)

// Multi saves a run to every configured store. A failing store does not stop
// the others; all errors are returned joined.
type Multi struct {
	stores []store.RunStore
	log    *slog.Logger
}

// NewMulti creates a Multi over stores.
func NewMulti(log *slog.Logger, stores ...store.RunStore) *Multi {
	if log == nil {
		log = slog.Default()
	}
	return &Multi{stores: stores, log: log.With("component", "report")}
}

// Len returns the number of stores.
func (m *Multi) Len() int { return len(m.stores) }

// SaveRun writes run to each store in order.
func (m *Multi) SaveRun(ctx context.Context, run *domain.Run) error {
	var errs []error
	for _, s := range m.stores {
		start := time.Now()
		if err := s.SaveRun(ctx, run); err != nil {
			m.log.Error("saving run failed", "store", fmt.Sprintf("%T", s), "run", run.ID, "err", err)
			errs = append(errs, fmt.Errorf("%T: %w", s, err))
			continue
		}
		m.log.Info("run saved", "store", fmt.Sprintf("%T", s), "run", run.ID, "elapsed", time.Since(start).Round(time.Millisecond))
	}
	return errors.Join(errs...)
}
