package store

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"quantbench/internal/domain"
)

// Compile-time interface check.
var _ BarReader = (*ClickHouseStore)(nil)

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ClickHouseOptions locates a klines table.
type ClickHouseOptions struct {
	Addr     string
	Database string
	User     string
	Password string
	Table    string // default "klines"
	Interval string // default "1d"
}

// ClickHouseStore reads bars from a klines table with columns
// symbol, interval, open_time_ms, open, high, low, close, volume.
type ClickHouseStore struct {
	conn     driver.Conn
	query    string
	interval string
	log      *slog.Logger
}

// NewClickHouseStore connects to ClickHouse and verifies the connection.
func NewClickHouseStore(ctx context.Context, opts ClickHouseOptions) (*ClickHouseStore, error) {
	query, err := klinesQuery(opts.Database, opts.Table)
	if err != nil {
		return nil, err
	}
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{opts.Addr},
		Auth: clickhouse.Auth{Database: opts.Database, Username: opts.User, Password: opts.Password},
	})
	if err != nil {
		return nil, fmt.Errorf("clickhouse open %s: %w", opts.Addr, err)
	}
	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("clickhouse ping %s: %w", opts.Addr, err)
	}
	interval := opts.Interval
	if interval == "" {
		interval = "1d"
	}
	return &ClickHouseStore{conn: conn, query: query, interval: interval, log: slog.Default().With("component", "clickhouse")}, nil
}

// Close closes the connection.
func (s *ClickHouseStore) Close() error {
	return s.conn.Close()
}

// ReadBars returns the klines for symbol within [start, end].
func (s *ClickHouseStore) ReadBars(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	rows, err := s.conn.Query(ctx, s.query, symbol, s.interval, uint64(start.UnixMilli()), uint64(end.UnixMilli()))
	if err != nil {
		return nil, fmt.Errorf("clickhouse query %s: %w", symbol, err)
	}
	defer rows.Close()

	var bars []domain.Bar
	for rows.Next() {
		var ot uint64
		b := domain.Bar{Symbol: symbol}
		if err := rows.Scan(&ot, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, err
		}
		b.Timestamp = time.UnixMilli(int64(ot)).UTC()
		bars = append(bars, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ValidBars(s.log, bars), nil
}

// klinesQuery builds the range query. Database and table are interpolated,
// so both must be plain identifiers.
func klinesQuery(database, table string) (string, error) {
	if table == "" {
		table = "klines"
	}
	name := table
	if database != "" {
		if !identRe.MatchString(database) {
			return "", fmt.Errorf("clickhouse: invalid database name %q", database)
		}
		name = database + "." + table
	}
	if !identRe.MatchString(table) {
		return "", fmt.Errorf("clickhouse: invalid table name %q", table)
	}
	return strings.Join([]string{
		"SELECT open_time_ms, open, high, low, close, volume",
		"FROM " + name,
		"WHERE symbol = ? AND interval = ? AND open_time_ms BETWEEN ? AND ?",
		"ORDER BY open_time_ms",
	}, "\n"), nil
}
