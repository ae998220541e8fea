package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"quantbench/internal/util"
)

// ErrInvalidConfig is returned by Validate for any unusable setting.
var ErrInvalidConfig = errors.New("invalid config")

// Data sources a backtest can read bars from.
const (
	SourceCSV        = "csv"
	SourceParquet    = "parquet"
	SourceSQLite     = "sqlite"
	SourcePostgres   = "postgres"
	SourceClickHouse = "clickhouse"
	SourceAlpaca     = "alpaca"
)

var sources = []string{SourceCSV, SourceParquet, SourceSQLite, SourcePostgres, SourceClickHouse, SourceAlpaca}

// Run sinks a completed backtest can be written to.
var sinks = []string{SourceParquet, SourceSQLite, SourcePostgres}

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for quantbench.
type Config struct {
	Storage    Storage          `yaml:"storage"`
	Data       Data             `yaml:"data"`
	Postgres   Postgres         `yaml:"postgres"`
	ClickHouse ClickHouse       `yaml:"clickhouse"`
	Alpaca     Alpaca           `yaml:"alpaca"`
	Logging    Logging          `yaml:"logging"`
	Backtest   Backtest         `yaml:"backtest"`
	Strategies []StrategyConfig `yaml:"strategies"`
	Report     Report           `yaml:"report"`

	// envErr holds the first unusable environment override.
	envErr error
}

// Storage holds paths for data persistence.
type Storage struct {
	DataDir    string `yaml:"data_dir"`
	SQLitePath string `yaml:"sqlite_path"`
	CSVPath    string `yaml:"csv_path"`
}

// Data selects the price series provider.
type Data struct {
	Source string `yaml:"source"`
	Symbol string `yaml:"symbol"`
}

// Postgres holds connection settings for the relational store.
type Postgres struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

// DSN returns the libpq keyword/value connection string.
func (p Postgres) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
		p.Host, p.Port, p.User, p.Password, p.Name, p.SSLMode)
}

// ClickHouse holds connection settings for the kline warehouse.
type ClickHouse struct {
	Addr     string `yaml:"addr"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Table    string `yaml:"table"`
	Interval string `yaml:"interval"`
}

// Alpaca holds credentials and endpoints for the Alpaca market data API.
type Alpaca struct {
	APIKey          string `yaml:"api_key"`
	APISecret       string `yaml:"api_secret"`
	DataURL         string `yaml:"data_url"`
	RateLimitPerMin int    `yaml:"rate_limit_per_min"`
	MaxRetries      int    `yaml:"max_retries"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Backtest holds the run parameters. Dates are "2006-01-02" or RFC3339; a
// date-only To covers the whole day.
type Backtest struct {
	From          string  `yaml:"from"`
	To            string  `yaml:"to"`
	MarginDays    int     `yaml:"margin_days"`
	MaxTradeCash  float64 `yaml:"max_trade_cash"`
	SeedCash      float64 `yaml:"seed_cash"`
	SeedUnits     float64 `yaml:"seed_units"`
	Workers       int     `yaml:"workers"`
	ProgressEvery int     `yaml:"progress_every"`
}

// Range parses From and To.
func (b Backtest) Range() (from, to time.Time, err error) {
	from, _, err = util.ParseDate(b.From)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: backtest.from: %v", ErrInvalidConfig, err)
	}
	to, dateOnly, err := util.ParseDate(b.To)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: backtest.to: %v", ErrInvalidConfig, err)
	}
	if dateOnly {
		to = util.EndOfDay(to)
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: backtest.to %s before from %s", ErrInvalidConfig, b.To, b.From)
	}
	return from, to, nil
}

// StrategyConfig configures one algorithm. Kind picks the implementation and
// Name, when set, is the label it reports under so one kind can run with
// several parameter sets. Windows accept Go durations or a "d" day suffix.
type StrategyConfig struct {
	Name        string  `yaml:"name"`
	Kind        string  `yaml:"kind"`
	Window      string  `yaml:"window"`
	ShortWindow string  `yaml:"short_window"`
	LongWindow  string  `yaml:"long_window"`
	Sensitivity float64 `yaml:"sensitivity"`

	RSIPeriod       int     `yaml:"rsi_period"`
	BBPeriod        int     `yaml:"bb_period"`
	BBStdDev        float64 `yaml:"bb_std"`
	Oversold        float64 `yaml:"rsi_oversold"`
	Overbought      float64 `yaml:"rsi_overbought"`
	VolumeThreshold float64 `yaml:"volume_threshold"`
}

// Label returns Name, or Kind when Name is empty.
func (s StrategyConfig) Label() string {
	if s.Name != "" {
		return s.Name
	}
	return s.Kind
}

// Report controls what happens with a finished run.
type Report struct {
	LastRows        int      `yaml:"last_rows"`
	Sinks           []string `yaml:"sinks"`
	MetricsTextfile string   `yaml:"metrics_textfile"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads the YAML configuration file at the given path, parses it into a
// Config struct, fills defaults, and then applies environment variable
// overrides. Numeric defaults are set before parsing, so an explicit zero in
// the file is kept. A .env file in the working directory is loaded first when
// present; variables already set in the environment win over it.
func Load(path string) (*Config, error) {
	_ = godotenv.Load() // best-effort

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{Backtest: Backtest{
		MaxTradeCash: 100000,
		SeedCash:     1000,
		SeedUnits:    1000,
	}}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	applyDefaults(cfg)
	applyEnvOverrides(cfg)

	return cfg, nil
}

// applyDefaults fills zero values with working settings.
func applyDefaults(cfg *Config) {
	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = "data"
	}
	if cfg.Storage.SQLitePath == "" {
		cfg.Storage.SQLitePath = "data/quantbench.db"
	}
	if cfg.Data.Source == "" {
		cfg.Data.Source = SourceCSV
	}
	if cfg.Postgres.Port == 0 {
		cfg.Postgres.Port = 5432
	}
	if cfg.Postgres.SSLMode == "" {
		cfg.Postgres.SSLMode = "disable"
	}
	if cfg.ClickHouse.Table == "" {
		cfg.ClickHouse.Table = "klines"
	}
	if cfg.ClickHouse.Interval == "" {
		cfg.ClickHouse.Interval = "1d"
	}
	if cfg.Alpaca.MaxRetries == 0 {
		cfg.Alpaca.MaxRetries = 3
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Backtest.Workers == 0 {
		cfg.Backtest.Workers = 1
	}
	if len(cfg.Strategies) == 0 {
		cfg.Strategies = DefaultStrategies()
	}
}

// DefaultStrategies is the algorithm set used when the file lists none.
func DefaultStrategies() []StrategyConfig {
	return []StrategyConfig{
		{Kind: "sma-trend", Window: "20d", Sensitivity: 10},
		{Kind: "moving-average", ShortWindow: "20d", LongWindow: "50d"},
		{Kind: "moving-average-volume", ShortWindow: "20d", LongWindow: "50d"},
		{Kind: "mean-reversion", Window: "20d"},
		{Kind: "mean-reversion-volume", Window: "20d"},
		{Kind: "rsi-bollinger", Window: "60d"},
	}
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}
	if v := os.Getenv("CSV_PATH"); v != "" {
		cfg.Storage.CSVPath = v
	}

	if v := os.Getenv("DB_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("DB_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			cfg.envErr = fmt.Errorf("%w: DB_PORT %q is not a number", ErrInvalidConfig, v)
		} else {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("DB_NAME"); v != "" {
		cfg.Postgres.Name = v
	}
	if v := os.Getenv("DB_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}

	if v := os.Getenv("CLICKHOUSE_ADDR"); v != "" {
		cfg.ClickHouse.Addr = v
	}
	if v := os.Getenv("CLICKHOUSE_USER"); v != "" {
		cfg.ClickHouse.User = v
	}
	if v := os.Getenv("CLICKHOUSE_PASSWORD"); v != "" {
		cfg.ClickHouse.Password = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// Standard Alpaca env vars, the names the SDK itself reads.
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}
}

// ---------------------------------------------------------------------------
// Validation
// ---------------------------------------------------------------------------

// Validate reports the first unusable setting, wrapped in ErrInvalidConfig.
func (c *Config) Validate() error {
	if c.envErr != nil {
		return c.envErr
	}
	if !slices.Contains(sources, c.Data.Source) {
		return fmt.Errorf("%w: data.source %q (want one of %s)", ErrInvalidConfig, c.Data.Source, strings.Join(sources, ", "))
	}
	if c.Data.Symbol == "" {
		return fmt.Errorf("%w: data.symbol is empty", ErrInvalidConfig)
	}
	if c.Data.Source == SourceCSV && c.Storage.CSVPath == "" {
		return fmt.Errorf("%w: storage.csv_path is required for the csv source", ErrInvalidConfig)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("%w: logging.format %q", ErrInvalidConfig, c.Logging.Format)
	}

	if err := c.Backtest.validate(); err != nil {
		return err
	}

	seen := make(map[string]bool, len(c.Strategies))
	for i, s := range c.Strategies {
		if s.Kind == "" {
			return fmt.Errorf("%w: strategies[%d].kind is empty", ErrInvalidConfig, i)
		}
		if seen[s.Label()] {
			return fmt.Errorf("%w: duplicate strategy name %q", ErrInvalidConfig, s.Label())
		}
		seen[s.Label()] = true
		for _, w := range []struct{ field, value string }{
			{"window", s.Window},
			{"short_window", s.ShortWindow},
			{"long_window", s.LongWindow},
		} {
			if w.value == "" {
				continue
			}
			if _, err := util.ParseWindow(w.value); err != nil {
				return fmt.Errorf("%w: strategies[%d].%s: %v", ErrInvalidConfig, i, w.field, err)
			}
		}
	}

	for _, sink := range c.Report.Sinks {
		if !slices.Contains(sinks, sink) {
			return fmt.Errorf("%w: report.sinks entry %q (want one of %s)", ErrInvalidConfig, sink, strings.Join(sinks, ", "))
		}
	}
	if c.Report.LastRows < 0 {
		return fmt.Errorf("%w: report.last_rows %d", ErrInvalidConfig, c.Report.LastRows)
	}
	return nil
}

func (b Backtest) validate() error {
	if _, _, err := b.Range(); err != nil {
		return err
	}
	switch {
	case b.MarginDays < 0:
		return fmt.Errorf("%w: backtest.margin_days %d", ErrInvalidConfig, b.MarginDays)
	case b.MaxTradeCash < 0:
		return fmt.Errorf("%w: backtest.max_trade_cash %v", ErrInvalidConfig, b.MaxTradeCash)
	case b.SeedCash < 0 || b.SeedUnits < 0:
		return fmt.Errorf("%w: negative seed", ErrInvalidConfig)
	case b.Workers < 0:
		return fmt.Errorf("%w: backtest.workers %d", ErrInvalidConfig, b.Workers)
	}
	return nil
}
