package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"quantbench/internal/store"
)

var symbolsCmd = &cobra.Command{
	Use:   "symbols",
	Short: "List the symbols held by a local bar store",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		kind := cfg.Data.Source
		if cmd.Flags().Changed("source") {
			kind, _ = cmd.Flags().GetString("source")
		}

		bs, closeFn, err := store.OpenBarStore(cfg, kind)
		if err != nil {
			return fmt.Errorf("opening %s store: %w", kind, err)
		}
		defer closeFn()
		lister, ok := bs.(store.SymbolLister)
		if !ok {
			return fmt.Errorf("%w: %q cannot list symbols", store.ErrUnsupportedSource, kind)
		}

		symbols, err := lister.ListSymbols(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, s := range symbols {
			fmt.Fprintln(out, s)
		}
		return nil
	},
}

func init() {
	symbolsCmd.Flags().String("source", "", "store to list: parquet, sqlite or postgres (defaults to data.source)")
}
