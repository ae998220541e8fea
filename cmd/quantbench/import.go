package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"quantbench/internal/config"
	"quantbench/internal/gather"
	"quantbench/internal/store"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Copy bars from a price source into a local store",
	Long: `Read bars for the backtest range from one source (csv, clickhouse, alpaca,
or another store) and merge them into a parquet, sqlite or postgres store, so
later backtests can read them locally.`,
	Args: cobra.NoArgs,
	RunE: runImport,
}

func init() {
	f := importCmd.Flags()
	f.String("from", "", "first day to copy (2006-01-02 or RFC3339)")
	f.String("to", "", "last day to copy, inclusive")
	f.String("symbol", "", "instrument symbol")
	f.String("source", "", "price source to read (defaults to data.source)")
	f.String("dest", config.SourceParquet, "store to write: parquet, sqlite or postgres")
	f.Duration("chunk", gather.DefaultChunk, "span fetched per source call")
}

func runImport(cmd *cobra.Command, _ []string) error {
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
	from, to, err := cfg.Backtest.Range()
	if err != nil {
		return err
	}
	dest, _ := cmd.Flags().GetString("dest")
	chunk, _ := cmd.Flags().GetDuration("chunk")
	if dest == cfg.Data.Source {
		return fmt.Errorf("%w: import source and destination are both %s", config.ErrInvalidConfig, dest)
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	source, closeSource, err := openSource(ctx, cfg, cfg.Data.Source, logger)
	if err != nil {
		return fmt.Errorf("opening %s source: %w", cfg.Data.Source, err)
	}
	defer closeSource()

	bs, closeDest, err := store.OpenBarStore(cfg, dest)
	if err != nil {
		return fmt.Errorf("opening %s store: %w", dest, err)
	}
	defer closeDest()

	g := gather.NewBarGatherer(source, bs, cfg.Data.Symbol, gather.DateRange{Start: from, End: to}, chunk, logger)
	logger.Info("starting import", "gatherer", g.Name(), "source", cfg.Data.Source, "dest", dest,
		"symbol", cfg.Data.Symbol, "from", from.Format(time.DateOnly), "to", to.Format(time.DateOnly))
	return g.Run(ctx)
}
