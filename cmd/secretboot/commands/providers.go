package commands

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/systmms/secretboot/internal/providers"
)

func NewProvidersCommand(rt *Runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "providers",
		Short: "List registered providers",
		Long: `Display the registered secret providers in their default priority
order, with the aliases accepted in SECRETBOOT_PROVIDERS and the
environment flag that disables each one.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintf(w, "ID\tALIASES\tENABLE FLAG\n")
			for _, d := range providers.All() {
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", d.ID, strings.Join(d.Aliases, ", "), d.EnableFlag)
			}
			return w.Flush()
		},
	}
	return cmd
}
