package providers

import (
	"github.com/systmms/secretboot/internal/config"
	sberrors "github.com/systmms/secretboot/internal/errors"
	"github.com/systmms/secretboot/internal/logging"
	"github.com/systmms/secretboot/internal/providers/vault"
	"github.com/systmms/secretboot/pkg/exec"
	"github.com/systmms/secretboot/pkg/provider"
)

// Descriptor describes one registered provider: its canonical id, the
// aliases it answers to, the name of its enable flag, and its adapter
// constructor. Descriptors are built once and read-only thereafter.
type Descriptor struct {
	ID         provider.ID
	Aliases    []string
	EnableFlag string
	New        func(cfg *config.Settings, logger *logging.Logger, executor exec.CommandExecutor) provider.Provider
}

// registry is the static provider table, in default priority order.
var registry = []Descriptor{
	{
		ID:         provider.Docker,
		Aliases:    []string{"docker-secrets", "file"},
		EnableFlag: "DOCKER_SECRETS_ENABLED",
		New: func(cfg *config.Settings, logger *logging.Logger, _ exec.CommandExecutor) provider.Provider {
			return NewDockerProvider(cfg.Docker, logger)
		},
	},
	{
		ID:         provider.OnePassword,
		Aliases:    []string{"onepassword", "op"},
		EnableFlag: "OP_ENABLED",
		New: func(cfg *config.Settings, logger *logging.Logger, executor exec.CommandExecutor) provider.Provider {
			return NewOnePasswordProvider(cfg.OnePassword, logger, executor)
		},
	},
	{
		ID:         provider.Vault,
		Aliases:    []string{"hashicorp-vault"},
		EnableFlag: "VAULT_ENABLED",
		New: func(cfg *config.Settings, logger *logging.Logger, _ exec.CommandExecutor) provider.Provider {
			return vault.NewProvider(cfg.Vault, logger)
		},
	},
	{
		ID:         provider.AWS,
		Aliases:    []string{"aws-secrets-manager", "secretsmanager"},
		EnableFlag: "AWS_SECRETS_ENABLED",
		New: func(cfg *config.Settings, logger *logging.Logger, _ exec.CommandExecutor) provider.Provider {
			return NewAWSProvider(cfg.AWS, logger)
		},
	},
	{
		ID:         provider.Azure,
		Aliases:    []string{"azure-keyvault", "keyvault"},
		EnableFlag: "AZURE_KEYVAULT_ENABLED",
		New: func(cfg *config.Settings, logger *logging.Logger, _ exec.CommandExecutor) provider.Provider {
			return NewAzureProvider(cfg.Azure, logger)
		},
	},
	{
		ID:         provider.GCP,
		Aliases:    []string{"google", "gcp-secret-manager"},
		EnableFlag: "GCP_SECRETS_ENABLED",
		New: func(cfg *config.Settings, logger *logging.Logger, executor exec.CommandExecutor) provider.Provider {
			return NewGCPProvider(cfg.GCP, logger, executor)
		},
	},
}

// aliasIndex maps every canonical id and alias to its registry position.
// Populated once at process start, read-only afterwards.
var aliasIndex = func() map[string]int {
	idx := make(map[string]int, len(registry)*3)
	for i, d := range registry {
		idx[string(d.ID)] = i
		for _, alias := range d.Aliases {
			idx[alias] = i
		}
	}
	return idx
}()

// All returns the registered descriptors in canonical order.
func All() []Descriptor {
	out := make([]Descriptor, len(registry))
	copy(out, registry)
	return out
}

// Resolve validates a configuration-sourced provider name and resolves
// it, through its alias if needed, to a registered descriptor. Validation
// runs before the lookup: an unsafe string never reaches the table.
func Resolve(raw string) (Descriptor, error) {
	name, ok := provider.ValidateName(raw)
	if !ok {
		return Descriptor{}, sberrors.ValidationFailure("", "invalid provider id "+quoteForLog(raw))
	}
	i, found := aliasIndex[name]
	if !found {
		return Descriptor{}, sberrors.ValidationFailure(name, "unknown provider id")
	}
	return registry[i], nil
}

// ParseID is Resolve reduced to the canonical identifier.
func ParseID(raw string) (provider.ID, error) {
	d, err := Resolve(raw)
	if err != nil {
		return "", err
	}
	return d.ID, nil
}

// quoteForLog renders a rejected identifier safely for diagnostics,
// truncated so a hostile value cannot flood the log.
func quoteForLog(raw string) string {
	const max = 32
	if len(raw) > max {
		raw = raw[:max] + "..."
	}
	out := make([]rune, 0, len(raw)+2)
	out = append(out, '"')
	for _, r := range raw {
		if r < 32 || r == 127 {
			out = append(out, '?')
			continue
		}
		out = append(out, r)
	}
	return string(append(out, '"'))
}
