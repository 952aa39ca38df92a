package commands

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func NewHealthCommand(rt *Runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Probe every provider backend",
		Long: `Check connectivity and authentication for every registered
provider, whether or not it appears in the priority list. No secret
values are read during a probe.

The command always exits 0; an unreachable backend is reported in the
table, not as a process failure.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			o := rt.newOrchestrator()
			statuses := o.HealthAll(context.Background())

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintf(w, "PROVIDER\tSTATUS\tDETAIL\n")
			for _, st := range statuses {
				detail := ""
				if st.Err != nil {
					detail = st.Err.Error()
				}
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", st.ID, st.State, detail)
			}
			return w.Flush()
		},
	}
	return cmd
}
