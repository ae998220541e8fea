package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"quantbench/internal/domain"
)

// Compile-time interface checks.
var _ BarStore = (*PostgresStore)(nil)
var _ SymbolLister = (*PostgresStore)(nil)
var _ RunStore = (*PostgresStore)(nil)

// PriceBar is one OHLCV row in the price_bars table.
type PriceBar struct {
	ID        uint      `gorm:"primaryKey"`
	Symbol    string    `gorm:"size:32;uniqueIndex:uidx_price_bars_symbol_ts;index:idx_price_bars_symbol"`
	Timestamp time.Time `gorm:"uniqueIndex:uidx_price_bars_symbol_ts"`
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	CreatedAt time.Time
}

// ReportCard records how one algorithm performed over one run.
type ReportCard struct {
	ID               uint   `gorm:"primaryKey"`
	RunID            string `gorm:"size:36;index"`
	Symbol           string `gorm:"size:32"`
	AlgorithmVersion string `gorm:"size:128;index"`
	StartDate        time.Time
	EndDate          time.Time
	Performance      float64 // final valuation difference
	FinalValuation   float64
	MaxDrawdown      float64
	SharpeRatio      float64
	Buys             int
	Sells            int
	Holds            int
	CreatedAt        time.Time
}

// TableName pins the table name to report_card.
func (ReportCard) TableName() string { return "report_card" }

// PostgresStore implements BarStore and RunStore on PostgreSQL via gorm.
type PostgresStore struct {
	db  *gorm.DB
	log *slog.Logger
}

// NewPostgresStore connects using dsn and migrates the schema.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	if err := db.AutoMigrate(&PriceBar{}, &ReportCard{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return &PostgresStore{db: db, log: slog.Default().With("component", "postgres")}, nil
}

// Close closes the underlying connection pool.
func (s *PostgresStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// WriteBars upserts bars on (symbol, timestamp).
func (s *PostgresStore) WriteBars(ctx context.Context, symbol string, bars []domain.Bar) error {
	rows := toPriceBars(symbol, bars)
	if len(rows) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "symbol"}, {Name: "timestamp"}},
		DoUpdates: clause.AssignmentColumns([]string{"open", "high", "low", "close", "volume"}),
	}).CreateInBatches(rows, 1000).Error
}

// ReadBars returns the bars for symbol within [start, end] in ascending order.
func (s *PostgresStore) ReadBars(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	var rows []PriceBar
	err := s.db.WithContext(ctx).
		Where("symbol = ? AND timestamp BETWEEN ? AND ?", strings.ToUpper(symbol), start, end).
		Order("timestamp").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return fromPriceBars(s.log, rows), nil
}

// fromPriceBars converts rows to bars, dropping invalid ones.
func fromPriceBars(log *slog.Logger, rows []PriceBar) []domain.Bar {
	bars := make([]domain.Bar, len(rows))
	for i, r := range rows {
		bars[i] = domain.Bar{
			Symbol:    r.Symbol,
			Timestamp: r.Timestamp.UTC(),
			Open:      r.Open,
			High:      r.High,
			Low:       r.Low,
			Close:     r.Close,
			Volume:    r.Volume,
		}
	}
	return ValidBars(log, bars)
}

// ListSymbols returns the distinct symbols in price_bars.
func (s *PostgresStore) ListSymbols(ctx context.Context) ([]string, error) {
	var symbols []string
	err := s.db.WithContext(ctx).Model(&PriceBar{}).Distinct().Order("symbol").Pluck("symbol", &symbols).Error
	return symbols, err
}

// SaveRun writes one report_card row per algorithm.
func (s *PostgresStore) SaveRun(ctx context.Context, run *domain.Run) error {
	cards := reportCards(run)
	if len(cards) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Create(&cards).Error
}

func toPriceBars(symbol string, bars []domain.Bar) []PriceBar {
	sym := strings.ToUpper(symbol)
	rows := make([]PriceBar, len(bars))
	for i, b := range bars {
		rows[i] = PriceBar{
			Symbol:    sym,
			Timestamp: b.Timestamp.UTC(),
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
			Volume:    b.Volume,
		}
	}
	return rows
}

func reportCards(run *domain.Run) []ReportCard {
	cards := make([]ReportCard, len(run.Summaries))
	for i, sum := range run.Summaries {
		cards[i] = ReportCard{
			RunID:            run.ID.String(),
			Symbol:           run.Symbol,
			AlgorithmVersion: sum.Name,
			StartDate:        run.From,
			EndDate:          run.To,
			Performance:      sum.ValuationDifference,
			FinalValuation:   sum.FinalValuation,
			MaxDrawdown:      sum.MaxDrawdown,
			SharpeRatio:      sum.SharpeRatio,
			Buys:             sum.Buys,
			Sells:            sum.Sells,
			Holds:            sum.Holds,
		}
	}
	return cards
}
