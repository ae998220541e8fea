package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"quantbench/internal/config"
	"quantbench/internal/domain"
	"quantbench/internal/metrics"
	"quantbench/internal/report"
	"quantbench/internal/store"
	"quantbench/internal/strategy"
	"quantbench/internal/strategy/builtins"
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Run every configured algorithm over a date range",
	Long: `Fetch bars for [from - margin, to + margin], evaluate every configured
algorithm at each bar inside [from, to], simulate their holdings and print
the record table and per-algorithm summary. The run is also written to every
configured report sink.`,
	Args: cobra.NoArgs,
	RunE: runBacktest,
}

func init() {
	runFlags(backtestCmd.Flags())
	backtestCmd.Flags().Int("last-rows", -1, "print only the last N records (0 prints all)")
}

// runFlags defines the flags that override the backtest section.
func runFlags(f *pflag.FlagSet) {
	f.String("from", "", "first trading day (2006-01-02 or RFC3339)")
	f.String("to", "", "last trading day, inclusive (2006-01-02 or RFC3339)")
	f.Int("margin-days", 0, "days of extra history around the range (0 derives it from the algorithms)")
	f.Float64("max-trade-cash", 0, "cash value cap for one buy or sell")
	f.Int("workers", 0, "algorithms evaluated concurrently")
	f.String("symbol", "", "instrument symbol")
	f.String("source", "", "price source: csv, parquet, sqlite, postgres, clickhouse, alpaca")
}

// applyFlags copies every explicitly set flag over the loaded config.
func applyFlags(cfg *config.Config, f *pflag.FlagSet) error {
	var err error
	set := func(name string, apply func() error) {
		if err == nil && f.Changed(name) {
			err = apply()
		}
	}
	set("from", func() (e error) { cfg.Backtest.From, e = f.GetString("from"); return })
	set("to", func() (e error) { cfg.Backtest.To, e = f.GetString("to"); return })
	set("margin-days", func() (e error) { cfg.Backtest.MarginDays, e = f.GetInt("margin-days"); return })
	set("max-trade-cash", func() (e error) { cfg.Backtest.MaxTradeCash, e = f.GetFloat64("max-trade-cash"); return })
	set("workers", func() (e error) { cfg.Backtest.Workers, e = f.GetInt("workers"); return })
	set("symbol", func() (e error) { cfg.Data.Symbol, e = f.GetString("symbol"); return })
	set("source", func() (e error) { cfg.Data.Source, e = f.GetString("source"); return })
	set("last-rows", func() (e error) { cfg.Report.LastRows, e = f.GetInt("last-rows"); return })
	return err
}

// paramsFromConfig converts a validated config into run parameters.
func paramsFromConfig(cfg *config.Config) (strategy.Params, error) {
	from, to, err := cfg.Backtest.Range()
	if err != nil {
		return strategy.Params{}, err
	}
	return strategy.Params{
		Symbol:        cfg.Data.Symbol,
		From:          from,
		To:            to,
		MarginDays:    cfg.Backtest.MarginDays,
		MaxTradeCash:  cfg.Backtest.MaxTradeCash,
		Seed:          domain.Assets{Cash: cfg.Backtest.SeedCash, AssetUnits: cfg.Backtest.SeedUnits},
		Workers:       cfg.Backtest.Workers,
		ProgressEvery: cfg.Backtest.ProgressEvery,
	}, nil
}

func runBacktest(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	if err := applyFlags(cfg, cmd.Flags()); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	params, err := paramsFromConfig(cfg)
	if err != nil {
		return err
	}
	registry, err := builtins.NewRegistry(cfg.Strategies)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	source, closeSource, err := openSource(ctx, cfg, cfg.Data.Source, logger)
	if err != nil {
		return fmt.Errorf("opening %s source: %w", cfg.Data.Source, err)
	}
	defer closeSource()

	sinks, closeSinks, err := store.OpenRunStores(cfg)
	if err != nil {
		return err
	}
	defer closeSinks.Close()

	logger.Info("starting backtest",
		"symbol", params.Symbol,
		"source", cfg.Data.Source,
		"from", params.From,
		"to", params.To,
		"algorithms", registry.List(),
		"workers", params.Workers,
	)

	run, err := strategy.NewBacktester(source, registry, logger).Run(ctx, params)
	if err != nil {
		return err
	}

	if err := report.NewConsole(cmd.OutOrStdout(), cfg.Report.LastRows).Render(run); err != nil {
		return err
	}
	return finish(ctx, cfg, run, report.NewMulti(logger, sinks...), logger)
}

// finish persists the run and exports metrics. Both are attempted even when
// the other fails.
func finish(ctx context.Context, cfg *config.Config, run *domain.Run, sinks *report.Multi, logger *slog.Logger) error {
	saveErr := sinks.SaveRun(ctx, run)
	if path := cfg.Report.MetricsTextfile; path != "" {
		if err := metrics.WriteTextfile(path); err != nil {
			logger.Error("writing metrics textfile failed", "path", path, "err", err)
			if saveErr == nil {
				return err
			}
		}
	}
	return saveErr
}
