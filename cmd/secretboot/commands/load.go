package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func NewLoadCommand(rt *Runtime) *cobra.Command {
	var printNames bool

	cmd := &cobra.Command{
		Use:   "load",
		Short: "Load secrets from all configured providers",
		Long: `Run the full provider sequence and export every resolved secret
into the process environment.

Providers run in the order given by SECRETBOOT_PROVIDERS; a provider
later in the list overwrites variables set by an earlier one. With
SECRETBOOT_FAIL_FAST=true the first authentication, transport, or
validation failure aborts the run with exit code 2.

Examples:
  secretboot load
  SECRETBOOT_PROVIDERS=vault,aws secretboot load
  secretboot load --print-names`,
		RunE: func(cmd *cobra.Command, args []string) error {
			o := rt.newOrchestrator()
			summary, err := o.LoadAll(context.Background())
			if err != nil {
				return err
			}

			if printNames {
				for _, outcome := range summary.Outcomes {
					if outcome.Count > 0 {
						fmt.Fprintf(cmd.OutOrStdout(), "%s: %d variable(s)\n", outcome.ID, outcome.Count)
					}
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&printNames, "print-names", false, "Print per-provider variable counts (never values)")
	return cmd
}
