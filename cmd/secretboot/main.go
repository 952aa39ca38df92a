package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/systmms/secretboot/cmd/secretboot/commands"
	"github.com/systmms/secretboot/internal/logging"
	"github.com/systmms/secretboot/internal/orchestrator"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	err := run()
	if err == nil {
		return
	}

	var exit *commands.ExitError
	if errors.As(err, &exit) {
		os.Exit(exit.Code)
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	var fatal *orchestrator.FatalError
	if errors.As(err, &fatal) {
		os.Exit(2)
	}
	os.Exit(1)
}

func run() error {
	var (
		noColor bool
		debug   bool
	)

	rt := &commands.Runtime{}

	rootCmd := &cobra.Command{
		Use:   "secretboot",
		Short: "Load secrets from configured providers into the environment",
		Long: `secretboot pulls secrets from Docker file secrets, 1Password,
HashiCorp Vault, AWS Secrets Manager, Azure Key Vault, and GCP Secret
Manager, in configurable priority order, and exports them as environment
variables at container start.

All configuration comes from environment variables; there is no config
file. See 'secretboot providers' for the provider list and enable flags.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			rt.Logger = logging.New(debug, noColor)
		},
	}

	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(
		commands.NewLoadCommand(rt),
		commands.NewExecCommand(rt),
		commands.NewHealthCommand(rt),
		commands.NewProvidersCommand(rt),
	)

	return rootCmd.Execute()
}
