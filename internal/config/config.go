// Package config loads all secretboot settings from the process
// environment. There is no config file: a container-start bootstrap is
// configured entirely through environment variables, so viper is used as
// an env layer with explicit bindings and defaults.
package config

import (
	"strings"

	"github.com/spf13/viper"
)

// DefaultPriorityList is the provider order consulted when
// SECRETBOOT_PROVIDERS is not set.
const DefaultPriorityList = "docker,1password,vault,aws,azure,gcp"

// DefaultDockerSecretsPath is where Docker mounts file-based secrets.
const DefaultDockerSecretsPath = "/run/secrets"

// Settings is the full configuration tree for one bootstrap run.
type Settings struct {
	// Enabled gates the whole load pass. Off means LoadAll is a no-op
	// success, regardless of any other setting.
	Enabled  bool
	// Priority is the raw comma-separated provider list. Elements are
	// validated at dispatch time, not here.
	Priority string
	// FailFast aborts the load sequence on the first provider failure.
	FailFast bool

	Docker      DockerSettings
	OnePassword OnePasswordSettings
	Vault       VaultSettings
	AWS         AWSSettings
	Azure       AzureSettings
	GCP         GCPSettings
}

// DockerSettings configures the file-mounted Docker secrets provider.
type DockerSettings struct {
	Enabled   bool
	Path      string
	Allow     []string // optional allow-list of file names
	Prefix    string
	Uppercase bool // fold names to upper case during normalization
}

// OnePasswordSettings configures the 1Password provider.
type OnePasswordSettings struct {
	Enabled             bool
	ConnectHost         string
	ConnectToken        string
	ServiceAccountToken string
	Vault               string
	Items               []string
	Prefix              string
}

// VaultSettings configures the HashiCorp Vault provider.
type VaultSettings struct {
	Enabled      bool
	Address      string
	SecretPath   string
	AuthMethod   string // token, approle, kubernetes
	Token        string
	RoleID       string
	SecretID     string
	K8sRole      string
	K8sTokenPath string
	Namespace    string
	Prefix       string
}

// AWSSettings configures the AWS Secrets Manager provider.
type AWSSettings struct {
	Enabled      bool
	SecretName   string
	Region       string
	VersionID    string
	VersionStage string
	Prefix       string
}

// AzureSettings configures the Azure Key Vault provider.
type AzureSettings struct {
	Enabled      bool
	VaultName    string
	VaultURL     string
	TenantID     string
	ClientID     string
	ClientSecret string
	SecretNames  []string // empty means list the whole vault
	CertNames    []string
	Prefix       string
}

// GCPSettings configures the GCP Secret Manager provider.
type GCPSettings struct {
	Enabled         bool
	ProjectID       string
	SecretNames     []string
	CredentialsFile string
	Prefix          string
}

// envBindings maps viper keys to the environment variables that feed them.
// Bindings are explicit: the provider surfaces use their conventional
// variable names (VAULT_ADDR, AZURE_TENANT_ID, ...) rather than a single
// uniform prefix.
var envBindings = map[string][]string{
	"enabled":   {"SECRETBOOT_ENABLED"},
	"priority":  {"SECRETBOOT_PROVIDERS"},
	"fail_fast": {"SECRETBOOT_FAIL_FAST"},

	"docker.enabled":   {"DOCKER_SECRETS_ENABLED"},
	"docker.path":      {"DOCKER_SECRETS_PATH"},
	"docker.allow":     {"DOCKER_SECRETS_ALLOW"},
	"docker.prefix":    {"DOCKER_SECRETS_PREFIX"},
	"docker.uppercase": {"DOCKER_SECRETS_UPPERCASE"},

	"onepassword.enabled":               {"OP_ENABLED"},
	"onepassword.connect_host":          {"OP_CONNECT_HOST"},
	"onepassword.connect_token":         {"OP_CONNECT_TOKEN"},
	"onepassword.service_account_token": {"OP_SERVICE_ACCOUNT_TOKEN"},
	"onepassword.vault":                 {"OP_VAULT"},
	"onepassword.items":                 {"OP_ITEMS"},
	"onepassword.prefix":                {"OP_ENV_PREFIX"},

	"vault.enabled":        {"VAULT_ENABLED"},
	"vault.address":        {"VAULT_ADDR"},
	"vault.secret_path":    {"VAULT_SECRET_PATH"},
	"vault.auth_method":    {"VAULT_AUTH_METHOD"},
	"vault.token":          {"VAULT_TOKEN"},
	"vault.role_id":        {"VAULT_ROLE_ID"},
	"vault.secret_id":      {"VAULT_SECRET_ID"},
	"vault.k8s_role":       {"VAULT_K8S_ROLE"},
	"vault.k8s_token_path": {"VAULT_K8S_TOKEN_PATH"},
	"vault.namespace":      {"VAULT_NAMESPACE"},
	"vault.prefix":         {"VAULT_ENV_PREFIX"},

	"aws.enabled":       {"AWS_SECRETS_ENABLED"},
	"aws.secret_name":   {"AWS_SECRET_NAME"},
	"aws.region":        {"AWS_REGION", "AWS_DEFAULT_REGION"},
	"aws.version_id":    {"AWS_SECRET_VERSION_ID"},
	"aws.version_stage": {"AWS_SECRET_VERSION_STAGE"},
	"aws.prefix":        {"AWS_ENV_PREFIX"},

	"azure.enabled":       {"AZURE_KEYVAULT_ENABLED"},
	"azure.vault_name":    {"AZURE_KEYVAULT_NAME"},
	"azure.vault_url":     {"AZURE_KEYVAULT_URL"},
	"azure.tenant_id":     {"AZURE_TENANT_ID"},
	"azure.client_id":     {"AZURE_CLIENT_ID"},
	"azure.client_secret": {"AZURE_CLIENT_SECRET"},
	"azure.secret_names":  {"AZURE_SECRET_NAMES"},
	"azure.cert_names":    {"AZURE_CERT_NAMES"},
	"azure.prefix":        {"AZURE_ENV_PREFIX"},

	"gcp.enabled":          {"GCP_SECRETS_ENABLED"},
	"gcp.project_id":       {"GCP_PROJECT_ID", "GOOGLE_CLOUD_PROJECT", "GCLOUD_PROJECT", "GCP_PROJECT"},
	"gcp.secret_names":     {"GCP_SECRET_NAMES"},
	"gcp.credentials_file": {"GOOGLE_APPLICATION_CREDENTIALS"},
	"gcp.prefix":           {"GCP_ENV_PREFIX"},
}

// FromEnv reads the full settings tree from the environment.
func FromEnv() *Settings {
	v := viper.New()

	v.SetDefault("enabled", true)
	v.SetDefault("priority", DefaultPriorityList)
	v.SetDefault("fail_fast", false)

	v.SetDefault("docker.enabled", true)
	v.SetDefault("docker.path", DefaultDockerSecretsPath)
	v.SetDefault("docker.uppercase", true)
	v.SetDefault("onepassword.enabled", true)
	v.SetDefault("vault.enabled", true)
	v.SetDefault("vault.auth_method", "token")
	v.SetDefault("vault.k8s_token_path", "/var/run/secrets/kubernetes.io/serviceaccount/token")
	v.SetDefault("aws.enabled", true)
	v.SetDefault("azure.enabled", true)
	v.SetDefault("gcp.enabled", true)

	for key, envs := range envBindings {
		// BindEnv(key, env...) consults the variables in order.
		args := append([]string{key}, envs...)
		_ = v.BindEnv(args...)
	}

	return &Settings{
		Enabled:  v.GetBool("enabled"),
		Priority: v.GetString("priority"),
		FailFast: v.GetBool("fail_fast"),
		Docker: DockerSettings{
			Enabled:   v.GetBool("docker.enabled"),
			Path:      v.GetString("docker.path"),
			Allow:     splitCSV(v.GetString("docker.allow")),
			Prefix:    v.GetString("docker.prefix"),
			Uppercase: v.GetBool("docker.uppercase"),
		},
		OnePassword: OnePasswordSettings{
			Enabled:             v.GetBool("onepassword.enabled"),
			ConnectHost:         v.GetString("onepassword.connect_host"),
			ConnectToken:        v.GetString("onepassword.connect_token"),
			ServiceAccountToken: v.GetString("onepassword.service_account_token"),
			Vault:               v.GetString("onepassword.vault"),
			Items:               splitCSV(v.GetString("onepassword.items")),
			Prefix:              v.GetString("onepassword.prefix"),
		},
		Vault: VaultSettings{
			Enabled:      v.GetBool("vault.enabled"),
			Address:      v.GetString("vault.address"),
			SecretPath:   v.GetString("vault.secret_path"),
			AuthMethod:   v.GetString("vault.auth_method"),
			Token:        v.GetString("vault.token"),
			RoleID:       v.GetString("vault.role_id"),
			SecretID:     v.GetString("vault.secret_id"),
			K8sRole:      v.GetString("vault.k8s_role"),
			K8sTokenPath: v.GetString("vault.k8s_token_path"),
			Namespace:    v.GetString("vault.namespace"),
			Prefix:       v.GetString("vault.prefix"),
		},
		AWS: AWSSettings{
			Enabled:      v.GetBool("aws.enabled"),
			SecretName:   v.GetString("aws.secret_name"),
			Region:       v.GetString("aws.region"),
			VersionID:    v.GetString("aws.version_id"),
			VersionStage: v.GetString("aws.version_stage"),
			Prefix:       v.GetString("aws.prefix"),
		},
		Azure: AzureSettings{
			Enabled:      v.GetBool("azure.enabled"),
			VaultName:    v.GetString("azure.vault_name"),
			VaultURL:     v.GetString("azure.vault_url"),
			TenantID:     v.GetString("azure.tenant_id"),
			ClientID:     v.GetString("azure.client_id"),
			ClientSecret: v.GetString("azure.client_secret"),
			SecretNames:  splitCSV(v.GetString("azure.secret_names")),
			CertNames:    splitCSV(v.GetString("azure.cert_names")),
			Prefix:       v.GetString("azure.prefix"),
		},
		GCP: GCPSettings{
			Enabled:         v.GetBool("gcp.enabled"),
			ProjectID:       v.GetString("gcp.project_id"),
			SecretNames:     splitCSV(v.GetString("gcp.secret_names")),
			CredentialsFile: v.GetString("gcp.credentials_file"),
			Prefix:          v.GetString("gcp.prefix"),
		},
	}
}

// splitCSV splits a comma-separated list, trimming whitespace and
// dropping empty elements.
func splitCSV(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
