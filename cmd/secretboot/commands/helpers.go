package commands

import (
	"fmt"

	"github.com/systmms/secretboot/internal/config"
	"github.com/systmms/secretboot/internal/logging"
	"github.com/systmms/secretboot/internal/orchestrator"
)

// Runtime carries the state shared by all commands. The logger is set by
// the root command once the persistent flags are parsed.
type Runtime struct {
	Logger *logging.Logger
}

// ExitError requests a specific process exit code without printing
// anything further. Used by exec to propagate the child's exit code.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit code %d", e.Code)
}

// newOrchestrator builds an orchestrator over the current environment.
func (rt *Runtime) newOrchestrator() *orchestrator.Orchestrator {
	return orchestrator.New(config.FromEnv(), rt.Logger)
}
