package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"quantbench/internal/domain"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface checks.
var _ BarStore = (*SQLiteStore)(nil)
var _ SymbolLister = (*SQLiteStore)(nil)
var _ RunStore = (*SQLiteStore)(nil)

// migrations are applied in order on open. Every statement is idempotent.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS bars (
		symbol TEXT    NOT NULL,
		ts_ms  INTEGER NOT NULL,
		open   REAL    NOT NULL,
		high   REAL    NOT NULL,
		low    REAL    NOT NULL,
		close  REAL    NOT NULL,
		volume REAL    NOT NULL,
		PRIMARY KEY (symbol, ts_ms)
	)`,
	`CREATE TABLE IF NOT EXISTS runs (
		id             TEXT PRIMARY KEY,
		symbol         TEXT    NOT NULL,
		from_ms        INTEGER NOT NULL,
		to_ms          INTEGER NOT NULL,
		margin_days    INTEGER NOT NULL,
		max_trade_cash REAL    NOT NULL,
		seed_cash      REAL    NOT NULL,
		seed_units     REAL    NOT NULL,
		algorithms     TEXT    NOT NULL,
		started_at_ms  INTEGER NOT NULL,
		duration_ms    INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS run_results (
		run_id               TEXT    NOT NULL REFERENCES runs(id),
		ts_ms                INTEGER NOT NULL,
		initial              INTEGER NOT NULL,
		close_price          REAL    NOT NULL,
		volume               REAL    NOT NULL,
		algorithm            TEXT    NOT NULL,
		signal               TEXT    NOT NULL,
		confidence           REAL    NOT NULL,
		cash                 REAL    NOT NULL,
		asset_units          REAL    NOT NULL,
		valuation            REAL    NOT NULL,
		valuation_difference REAL    NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_run_results_run ON run_results (run_id, algorithm, ts_ms)`,
}

// SQLiteStore implements BarStore and RunStore backed by a SQLite database.
type SQLiteStore struct {
	db  *sql.DB
	log *slog.Logger
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, applies the
// schema and returns a ready-to-use SQLiteStore.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// SQLite serializes writers; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	for i, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite migration %d: %w", i, err)
		}
	}
	return &SQLiteStore{db: db, log: slog.Default().With("component", "sqlite")}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ---------------------------------------------------------------------------
// BarStore implementation
// ---------------------------------------------------------------------------

// WriteBars upserts bars keyed by (symbol, timestamp).
func (s *SQLiteStore) WriteBars(ctx context.Context, symbol string, bars []domain.Bar) error {
	if len(bars) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO bars
		(symbol, ts_ms, open, high, low, close, volume) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	sym := strings.ToUpper(symbol)
	for _, b := range bars {
		if _, err := stmt.ExecContext(ctx, sym, b.Timestamp.UnixMilli(), b.Open, b.High, b.Low, b.Close, b.Volume); err != nil {
			return fmt.Errorf("inserting bar %s@%s: %w", sym, b.Timestamp.Format(time.RFC3339), err)
		}
	}
	return tx.Commit()
}

// ReadBars returns the bars for symbol within [start, end] in ascending order.
func (s *SQLiteStore) ReadBars(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT ts_ms, open, high, low, close, volume FROM bars
		WHERE symbol = ? AND ts_ms BETWEEN ? AND ? ORDER BY ts_ms`,
		strings.ToUpper(symbol), start.UnixMilli(), end.UnixMilli())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bars []domain.Bar
	for rows.Next() {
		var ts int64
		b := domain.Bar{Symbol: strings.ToUpper(symbol)}
		if err := rows.Scan(&ts, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, err
		}
		b.Timestamp = time.UnixMilli(ts).UTC()
		bars = append(bars, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ValidBars(s.log, bars), nil
}

// ListSymbols returns the distinct symbols that have bars.
func (s *SQLiteStore) ListSymbols(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT symbol FROM bars ORDER BY symbol`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var sym string
		if err := rows.Scan(&sym); err != nil {
			return nil, err
		}
		symbols = append(symbols, sym)
	}
	return symbols, rows.Err()
}

// ---------------------------------------------------------------------------
// RunStore implementation
// ---------------------------------------------------------------------------

// SaveRun inserts the run header and one run_results row per record and
// algorithm in a single transaction.
func (s *SQLiteStore) SaveRun(ctx context.Context, run *domain.Run) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	id := run.ID.String()
	if _, err := tx.ExecContext(ctx, `INSERT INTO runs
		(id, symbol, from_ms, to_ms, margin_days, max_trade_cash, seed_cash, seed_units, algorithms, started_at_ms, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, run.Symbol, run.From.UnixMilli(), run.To.UnixMilli(), run.MarginDays, run.MaxTradeCash,
		run.Seed.Cash, run.Seed.AssetUnits, strings.Join(run.Algorithms, ","),
		run.StartedAt.UnixMilli(), run.Duration.Milliseconds()); err != nil {
		return fmt.Errorf("inserting run %s: %w", id, err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO run_results
		(run_id, ts_ms, initial, close_price, volume, algorithm, signal, confidence, cash, asset_units, valuation, valuation_difference)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, rec := range run.Records {
		for _, st := range rec.Algorithms {
			if _, err := stmt.ExecContext(ctx, id, rec.Date.UnixMilli(), rec.Initial, rec.ClosePrice, rec.Volume,
				st.Name, string(st.Estimate.Signal), st.Estimate.Confidence,
				st.Assets.Cash, st.Assets.AssetUnits, st.Valuation, st.ValuationDifference); err != nil {
				return fmt.Errorf("inserting result for run %s: %w", id, err)
			}
		}
	}
	return tx.Commit()
}

// FinalValuations returns the last valuation difference of every algorithm
// in the given run, keyed by algorithm name.
func (s *SQLiteStore) FinalValuations(ctx context.Context, runID string) (map[string]float64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT r.algorithm, r.valuation_difference FROM run_results r
		JOIN (SELECT algorithm, MAX(ts_ms) AS ts_ms FROM run_results WHERE run_id = ? GROUP BY algorithm) last
		ON r.algorithm = last.algorithm AND r.ts_ms = last.ts_ms
		WHERE r.run_id = ? AND r.initial = 0`, runID, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]float64)
	for rows.Next() {
		var name string
		var diff float64
		if err := rows.Scan(&name, &diff); err != nil {
			return nil, err
		}
		out[name] = diff
	}
	return out, rows.Err()
}
