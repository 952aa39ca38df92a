package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/systmms/secretboot/internal/config"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg := config.FromEnv()

	assert.True(t, cfg.Enabled)
	assert.Equal(t, "docker,1password,vault,aws,azure,gcp", cfg.Priority)
	assert.False(t, cfg.FailFast)

	assert.True(t, cfg.Docker.Enabled)
	assert.Equal(t, "/run/secrets", cfg.Docker.Path)
	assert.True(t, cfg.Docker.Uppercase)
	assert.Empty(t, cfg.Docker.Allow)

	assert.Equal(t, "token", cfg.Vault.AuthMethod)
	assert.Equal(t, "/var/run/secrets/kubernetes.io/serviceaccount/token", cfg.Vault.K8sTokenPath)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("SECRETBOOT_ENABLED", "false")
	t.Setenv("SECRETBOOT_PROVIDERS", "vault,docker")
	t.Setenv("SECRETBOOT_FAIL_FAST", "true")
	t.Setenv("DOCKER_SECRETS_PATH", "/etc/secrets")
	t.Setenv("DOCKER_SECRETS_ALLOW", "db-password, api-key")
	t.Setenv("DOCKER_SECRETS_UPPERCASE", "false")
	t.Setenv("VAULT_ADDR", "https://vault.internal:8200")
	t.Setenv("VAULT_AUTH_METHOD", "approle")
	t.Setenv("AWS_SECRET_NAME", "prod/app")
	t.Setenv("AZURE_KEYVAULT_NAME", "app-vault")
	t.Setenv("GCP_SECRET_NAMES", "db-password,api-key")

	cfg := config.FromEnv()

	assert.False(t, cfg.Enabled)
	assert.Equal(t, "vault,docker", cfg.Priority)
	assert.True(t, cfg.FailFast)
	assert.Equal(t, "/etc/secrets", cfg.Docker.Path)
	assert.Equal(t, []string{"db-password", "api-key"}, cfg.Docker.Allow)
	assert.False(t, cfg.Docker.Uppercase)
	assert.Equal(t, "https://vault.internal:8200", cfg.Vault.Address)
	assert.Equal(t, "approle", cfg.Vault.AuthMethod)
	assert.Equal(t, "prod/app", cfg.AWS.SecretName)
	assert.Equal(t, "app-vault", cfg.Azure.VaultName)
	assert.Equal(t, []string{"db-password", "api-key"}, cfg.GCP.SecretNames)
}

func TestFromEnvGCPProjectFallbackOrder(t *testing.T) {
	t.Setenv("GOOGLE_CLOUD_PROJECT", "from-google-env")

	cfg := config.FromEnv()
	assert.Equal(t, "from-google-env", cfg.GCP.ProjectID)

	// The explicit variable wins over the standard Google ones.
	t.Setenv("GCP_PROJECT_ID", "explicit-project")
	cfg = config.FromEnv()
	assert.Equal(t, "explicit-project", cfg.GCP.ProjectID)
}

func TestSplitCSVBehavior(t *testing.T) {
	t.Setenv("OP_ITEMS", " app credentials ,, database ")

	cfg := config.FromEnv()
	assert.Equal(t, []string{"app credentials", "database"}, cfg.OnePassword.Items)
}
