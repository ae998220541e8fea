package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"quantbench/internal/strategy"
	"quantbench/internal/strategy/builtins"
)

var strategiesCmd = &cobra.Command{
	Use:   "strategies",
	Short: "List the configured algorithms and their lookback",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		reg, err := builtins.NewRegistry(cfg.Strategies)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%-28s %-22s %10s %7s\n", "NAME", "KIND", "LOOKBACK", "MARGIN")
		for i, s := range reg.All() {
			fmt.Fprintf(out, "%-28s %-22s %10s %6dd\n",
				s.Name(), cfg.Strategies[i].Kind, s.Lookback(), strategy.MarginDaysFor(s.Lookback()))
		}
		fmt.Fprintf(out, "\nrequired margin: %dd\n", strategy.MarginDaysFor(reg.MaxLookback()))
		fmt.Fprintf(out, "available kinds: %s\n", strings.Join(builtins.Kinds(), ", "))
		return nil
	},
}
