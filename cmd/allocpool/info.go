package main

import (
	"github.com/spf13/cobra"

	"github.com/kolkov/allocpool/allocpool"
)

func init() {
	rootCmd.AddCommand(newInfoCmd())
}

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show the compiled strategy and active configuration",
		Long: `The info command prints the ABA strategy compiled into the pool, the
configuration read from ALLOCPOOL_OPTIONS and whether the CPU offers a
double-word compare-and-swap.

Example:
  allocpool info
  ALLOCPOOL_OPTIONS="quarantine=1" allocpool info --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := allocpool.GetInfo()
			w := cmd.OutOrStdout()
			if jsonOut {
				return printJSON(w, info)
			}
			printInfo(w, "%s\n", info.Config)
			printInfo(w, "  version:         %s\n", info.Version)
			printInfo(w, "  strategy:        %s\n", info.Strategy)
			printInfo(w, "  double-word CAS: %t\n", info.DoubleWordCAS)
			printInfo(w, "  instances:       %d\n", allocpool.Instances())
			return nil
		},
	}
}
