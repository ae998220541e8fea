package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"quantbench/internal/config"
	"quantbench/internal/domain"
	"quantbench/internal/store"
)

func baseConfig() *config.Config {
	return &config.Config{
		Data:    config.Data{Source: config.SourceCSV, Symbol: "BTC"},
		Storage: config.Storage{CSVPath: "bars.csv"},
		Logging: config.Logging{Level: "info", Format: "json"},
		Backtest: config.Backtest{
			From: "2023-01-01", To: "2023-03-01",
			MaxTradeCash: 100000, SeedCash: 1000, SeedUnits: 1000, Workers: 1,
		},
		Strategies: config.DefaultStrategies(),
	}
}

func TestApplyFlags(t *testing.T) {
	cfg := baseConfig()
	fs := pflag.NewFlagSet("backtest", pflag.ContinueOnError)
	runFlags(fs)
	fs.Int("last-rows", -1, "")
	if err := fs.Parse([]string{"--from=2023-02-01", "--workers=4", "--max-trade-cash=500", "--last-rows=5"}); err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if err := applyFlags(cfg, fs); err != nil {
		t.Fatalf("applyFlags: %v", err)
	}
	if cfg.Backtest.From != "2023-02-01" || cfg.Backtest.Workers != 4 || cfg.Backtest.MaxTradeCash != 500 || cfg.Report.LastRows != 5 {
		t.Errorf("flags not applied: %+v %+v", cfg.Backtest, cfg.Report)
	}
	// Unset flags keep the config values.
	if cfg.Backtest.To != "2023-03-01" || cfg.Data.Symbol != "BTC" || cfg.Backtest.MarginDays != 0 {
		t.Errorf("unset flags changed config: %+v %+v", cfg.Backtest, cfg.Data)
	}
}

func TestApplyFlagsInvalidDate(t *testing.T) {
	cfg := baseConfig()
	fs := pflag.NewFlagSet("backtest", pflag.ContinueOnError)
	runFlags(fs)
	if err := fs.Parse([]string{"--to=03/01/2023"}); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := applyFlags(cfg, fs); err != nil {
		t.Fatalf("applyFlags: %v", err)
	}
	if err := cfg.Validate(); !errors.Is(err, config.ErrInvalidConfig) {
		t.Errorf("Validate error = %v, want ErrInvalidConfig", err)
	}
}

func TestParamsFromConfig(t *testing.T) {
	cfg := baseConfig()
	cfg.Backtest.MarginDays = 7

	p, err := paramsFromConfig(cfg)
	if err != nil {
		t.Fatalf("paramsFromConfig: %v", err)
	}
	if p.Symbol != "BTC" || p.MarginDays != 7 || p.MaxTradeCash != 100000 {
		t.Errorf("params = %+v", p)
	}
	if !p.From.Equal(time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("From = %v", p.From)
	}
	// A date-only end covers the whole day.
	if p.To.Before(time.Date(2023, 3, 1, 23, 0, 0, 0, time.UTC)) {
		t.Errorf("To = %v, want end of 2023-03-01", p.To)
	}
	if p.Seed.Cash != 1000 || p.Seed.AssetUnits != 1000 {
		t.Errorf("Seed = %+v", p.Seed)
	}
	if err := p.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestBacktestCommand(t *testing.T) {
	dir := t.TempDir()
	var csv strings.Builder
	csv.WriteString("Timestamp,Open,High,Low,Close,Volume\n")
	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 120; i++ {
		c := 100 + 10*float64(i%7) - float64(i%3)
		csv.WriteString(start.AddDate(0, 0, i).Format(time.DateOnly))
		csv.WriteString(",")
		csv.WriteString(strings.Join([]string{ftoa(c), ftoa(c + 2), ftoa(c - 2), ftoa(c), "1000"}, ","))
		csv.WriteString("\n")
	}
	csvPath := filepath.Join(dir, "bars.csv")
	if err := os.WriteFile(csvPath, []byte(csv.String()), 0o644); err != nil {
		t.Fatal(err)
	}
	cfgFile := filepath.Join(dir, "quantbench.yaml")
	yaml := `storage:
  data_dir: ` + filepath.Join(dir, "data") + `
  csv_path: ` + csvPath + `
data:
  source: csv
  symbol: TEST
logging:
  level: error
backtest:
  from: "2023-03-01"
  to: "2023-04-01"
report:
  last_rows: 3
  sinks: [parquet]
`
	if err := os.WriteFile(cfgFile, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	for _, k := range []string{"DATA_DIR", "SQLITE_PATH", "CSV_PATH", "LOG_LEVEL"} {
		t.Setenv(k, "")
	}

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"backtest", "--config", cfgFile, "--workers", "2"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("backtest: %v", err)
	}

	for _, want := range []string{"TEST", "initial", "best:", "rows omitted"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
	runs, err := filepath.Glob(filepath.Join(dir, "data", "runs", "*.parquet"))
	if err != nil || len(runs) != 1 {
		t.Errorf("run files = %v, %v; want one parquet file", runs, err)
	}
}

func TestSymbolsCommand(t *testing.T) {
	dir := t.TempDir()
	ps := store.NewParquetStore(filepath.Join(dir, "data"))
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, sym := range []string{"ETH", "BTC"} {
		b := domain.Bar{Symbol: sym, Timestamp: ts, Open: 10, High: 11, Low: 9, Close: 10, Volume: 1}
		if err := ps.WriteBars(context.Background(), sym, []domain.Bar{b}); err != nil {
			t.Fatalf("WriteBars(%s): %v", sym, err)
		}
	}
	cfgFile := filepath.Join(dir, "quantbench.yaml")
	yaml := "storage:\n  data_dir: " + filepath.Join(dir, "data") + "\nlogging:\n  level: error\n"
	if err := os.WriteFile(cfgFile, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DATA_DIR", "")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"symbols", "--config", cfgFile, "--source", "parquet"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("symbols: %v", err)
	}
	if got := out.String(); got != "BTC\nETH\n" {
		t.Errorf("symbols output = %q, want BTC and ETH", got)
	}
}

func ftoa(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
