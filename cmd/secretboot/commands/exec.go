package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	osexec "os/exec"

	"github.com/spf13/cobra"
)

func NewExecCommand(rt *Runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exec -- <command> [args...]",
		Short: "Load secrets, then run a command with them in its environment",
		Long: `Load secrets from all configured providers, then run the given
command with the populated environment. The child's exit code becomes
secretboot's exit code.

The command is invoked directly with its argument vector; no shell is
involved. Separate it from secretboot's own arguments with '--'.

Examples:
  secretboot exec -- ./server --port 8080
  secretboot exec -- npm start`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			o := rt.newOrchestrator()
			if _, err := o.LoadAll(context.Background()); err != nil {
				return err
			}

			child := osexec.Command(args[0], args[1:]...)
			child.Env = os.Environ()
			child.Stdin = os.Stdin
			child.Stdout = os.Stdout
			child.Stderr = os.Stderr

			if err := child.Run(); err != nil {
				var exitErr *osexec.ExitError
				if errors.As(err, &exitErr) {
					return &ExitError{Code: exitErr.ExitCode()}
				}
				return fmt.Errorf("running %s: %w", args[0], err)
			}
			return nil
		},
	}
	return cmd
}
