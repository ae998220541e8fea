package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"quantbench/internal/config"
	"quantbench/internal/gather"
	"quantbench/internal/store"
	"quantbench/internal/util"
)

const version = "0.1.0"

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "quantbench",
	Short: "Backtest trading signal algorithms against historical price bars",
	Long: `quantbench replays a historical price series through a set of signal
algorithms, simulates each one's holdings independently from the same seed
and reports how every algorithm's valuation evolved.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	defaultPath := "config/quantbench.yaml"
	if p := os.Getenv("QUANTBENCH_CONFIG"); p != "" {
		defaultPath = p
	}
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", defaultPath, "config file (env QUANTBENCH_CONFIG)")

	rootCmd.AddCommand(backtestCmd, importCmd, strategiesCmd, symbolsCmd, versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "quantbench %s\n", version)
	},
}

// loadConfig reads the config file and installs the logger it describes.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)
	return cfg, logger, nil
}

// openSource builds the price series provider for kind. Remote sources live
// in gather, everything else in store.
func openSource(ctx context.Context, cfg *config.Config, kind string, log *slog.Logger) (store.BarReader, func() error, error) {
	if kind == config.SourceAlpaca {
		a := cfg.Alpaca
		return gather.NewAlpacaSource(a.APIKey, a.APISecret, a.DataURL, a.RateLimitPerMin, a.MaxRetries, log),
			func() error { return nil }, nil
	}
	return store.OpenReader(ctx, cfg, kind, log)
}
