package commands_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/systmms/secretboot/cmd/secretboot/commands"
	"github.com/systmms/secretboot/internal/logging"
)

func newRuntime(buf *bytes.Buffer) *commands.Runtime {
	return &commands.Runtime{Logger: logging.NewWithWriter(buf, false, true)}
}

func TestProvidersListsRegistry(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	cmd := commands.NewProvidersCommand(newRuntime(&bytes.Buffer{}))
	cmd.SetOut(&out)
	cmd.SetArgs(nil)

	require.NoError(t, cmd.Execute())

	listing := out.String()
	for _, want := range []string{"docker", "1password", "vault", "aws", "azure", "gcp"} {
		assert.Contains(t, listing, want)
	}
	assert.Contains(t, listing, "onepassword, op")
	assert.Contains(t, listing, "DOCKER_SECRETS_ENABLED")
}

func TestLoadGloballyDisabled(t *testing.T) {
	t.Setenv("SECRETBOOT_ENABLED", "false")

	var out bytes.Buffer
	cmd := commands.NewLoadCommand(newRuntime(&bytes.Buffer{}))
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--print-names"})

	require.NoError(t, cmd.Execute())
	assert.Empty(t, out.String())
}

func TestExecRequiresCommand(t *testing.T) {
	t.Parallel()

	cmd := commands.NewExecCommand(newRuntime(&bytes.Buffer{}))
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(nil)

	assert.Error(t, cmd.Execute())
}

func TestExecPropagatesChildExitCode(t *testing.T) {
	t.Setenv("SECRETBOOT_ENABLED", "false")

	cmd := commands.NewExecCommand(newRuntime(&bytes.Buffer{}))
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"sh", "-c", "exit 7"})

	err := cmd.Execute()
	require.Error(t, err)
	var exit *commands.ExitError
	require.True(t, errors.As(err, &exit))
	assert.Equal(t, 7, exit.Code)
}

func TestExecRunsChildSuccessfully(t *testing.T) {
	t.Setenv("SECRETBOOT_ENABLED", "false")

	cmd := commands.NewExecCommand(newRuntime(&bytes.Buffer{}))
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"true"})

	assert.NoError(t, cmd.Execute())
}
