package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"quantbench/internal/config"
)

// ErrUnsupportedSource is returned when a source kind has no backend in this
// package. Remote sources such as alpaca are built by the gather package.
var ErrUnsupportedSource = errors.New("unsupported source")

// Closers collects Close functions of opened backends.
type Closers []func() error

// Close closes every backend in reverse order and joins the errors.
func (c Closers) Close() error {
	var errs []error
	for i := len(c) - 1; i >= 0; i-- {
		if err := c[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// OpenReader builds the price series provider named by kind.
func OpenReader(ctx context.Context, cfg *config.Config, kind string, log *slog.Logger) (BarReader, func() error, error) {
	noop := func() error { return nil }
	switch kind {
	case config.SourceCSV:
		return NewCSVStore(cfg.Storage.CSVPath, log), noop, nil
	case config.SourceClickHouse:
		ch, err := NewClickHouseStore(ctx, ClickHouseOptions{
			Addr:     cfg.ClickHouse.Addr,
			Database: cfg.ClickHouse.Database,
			User:     cfg.ClickHouse.User,
			Password: cfg.ClickHouse.Password,
			Table:    cfg.ClickHouse.Table,
			Interval: cfg.ClickHouse.Interval,
		})
		if err != nil {
			return nil, nil, err
		}
		return ch, ch.Close, nil
	default:
		bs, closeFn, err := OpenBarStore(cfg, kind)
		if err != nil {
			return nil, nil, err
		}
		return bs, closeFn, nil
	}
}

// OpenBarStore builds a writable bar store: parquet, sqlite or postgres.
func OpenBarStore(cfg *config.Config, kind string) (BarStore, func() error, error) {
	switch kind {
	case config.SourceParquet:
		return NewParquetStore(cfg.Storage.DataDir), func() error { return nil }, nil
	case config.SourceSQLite:
		s, err := NewSQLiteStore(cfg.Storage.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case config.SourcePostgres:
		s, err := NewPostgresStore(cfg.Postgres.DSN())
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnsupportedSource, kind)
	}
}

// OpenRunStores builds the configured report sinks. On error every store
// opened so far is closed.
func OpenRunStores(cfg *config.Config) ([]RunStore, Closers, error) {
	var (
		stores  []RunStore
		closers Closers
	)
	for _, sink := range cfg.Report.Sinks {
		bs, closeFn, err := OpenBarStore(cfg, sink)
		if err != nil {
			_ = closers.Close()
			return nil, nil, fmt.Errorf("opening sink %s: %w", sink, err)
		}
		rs, ok := bs.(RunStore)
		if !ok {
			_ = closeFn()
			_ = closers.Close()
			return nil, nil, fmt.Errorf("%w: %q cannot store runs", ErrUnsupportedSource, sink)
		}
		stores = append(stores, rs)
		closers = append(closers, closeFn)
	}
	return stores, closers, nil
}
