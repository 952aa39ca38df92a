package providers

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azcertificates"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"

	"github.com/systmms/secretboot/internal/config"
	sberrors "github.com/systmms/secretboot/internal/errors"
	"github.com/systmms/secretboot/internal/logging"
	"github.com/systmms/secretboot/internal/naming"
	"github.com/systmms/secretboot/pkg/provider"
)

// AzureSecretsClientAPI defines the Key Vault secret operations used by
// the adapter. Listing is intentionally excluded: the pager type is
// impractical to mock, so listing goes through the optional
// AzureSecretsListerAPI implemented by the real client.
type AzureSecretsClientAPI interface {
	GetSecret(ctx context.Context, name string, version string, options *azsecrets.GetSecretOptions) (azsecrets.GetSecretResponse, error)
}

// AzureCertificatesClientAPI defines the certificate operations used by
// the distinct certificate entry point.
type AzureCertificatesClientAPI interface {
	GetCertificate(ctx context.Context, name string, version string, options *azcertificates.GetCertificateOptions) (azcertificates.GetCertificateResponse, error)
}

// AzureProvider loads secrets, and optionally certificates, from one
// Azure Key Vault.
type AzureProvider struct {
	cfg      config.AzureSettings
	logger   *logging.Logger
	vaultURL string
	secrets  AzureSecretsClientAPI
	certs    AzureCertificatesClientAPI
}

// AzureProviderOption is a functional option for configuring the provider.
type AzureProviderOption func(*AzureProvider)

// WithAzureSecretsClient sets a custom Key Vault secrets client (for testing)
func WithAzureSecretsClient(client AzureSecretsClientAPI) AzureProviderOption {
	return func(p *AzureProvider) {
		p.secrets = client
	}
}

// WithAzureCertificatesClient sets a custom certificates client (for testing)
func WithAzureCertificatesClient(client AzureCertificatesClientAPI) AzureProviderOption {
	return func(p *AzureProvider) {
		p.certs = client
	}
}

// NewAzureProvider creates an Azure Key Vault provider. Clients are
// created lazily on first use.
func NewAzureProvider(cfg config.AzureSettings, logger *logging.Logger, opts ...AzureProviderOption) *AzureProvider {
	p := &AzureProvider{cfg: cfg, logger: logger, vaultURL: BuildAzureVaultURL(cfg)}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// BuildAzureVaultURL derives the vault URL, expanding a short vault name
// into the standard public-cloud form when no full URL is configured.
func BuildAzureVaultURL(cfg config.AzureSettings) string {
	if cfg.VaultURL != "" {
		return cfg.VaultURL
	}
	if cfg.VaultName != "" {
		return fmt.Sprintf("https://%s.vault.azure.net/", cfg.VaultName)
	}
	return ""
}

// ID returns the provider's canonical identifier.
func (p *AzureProvider) ID() provider.ID {
	return provider.Azure
}

// Load reads the configured secrets, or lists the whole vault when no
// names are configured, then appends any configured certificates.
func (p *AzureProvider) Load(ctx context.Context) ([]provider.Secret, error) {
	if !p.cfg.Enabled {
		return nil, nil
	}
	if p.vaultURL == "" {
		return nil, sberrors.NotConfigured(string(provider.Azure), "neither AZURE_KEYVAULT_NAME nor AZURE_KEYVAULT_URL set")
	}

	if err := p.ensureClients(); err != nil {
		return nil, err
	}

	names := p.cfg.SecretNames
	if len(names) == 0 {
		listed, err := p.listSecretNames(ctx)
		if err != nil {
			return nil, err
		}
		names = listed
	}

	secrets := []provider.Secret{}
	for _, name := range names {
		resp, err := p.secrets.GetSecret(ctx, name, "", nil)
		if err != nil {
			return nil, p.classify("reading secret "+name, err)
		}
		if resp.Value == nil {
			continue
		}
		secrets = append(secrets, provider.Secret{
			Label: name,
			Name:  naming.Normalize(p.cfg.Prefix, name),
			Value: *resp.Value,
		})
	}

	if len(p.cfg.CertNames) > 0 {
		certs, err := p.LoadCertificates(ctx)
		if err != nil {
			return nil, err
		}
		secrets = append(secrets, certs...)
	}

	p.logger.Debug("azure: %d value(s) from vault", len(secrets))
	return secrets, nil
}

// LoadCertificates is the certificate entry point, distinct from secret
// loading: each configured certificate's DER bytes are exported base64
// encoded under <NAME>_CERT.
func (p *AzureProvider) LoadCertificates(ctx context.Context) ([]provider.Secret, error) {
	if err := p.ensureClients(); err != nil {
		return nil, err
	}

	var out []provider.Secret
	for _, name := range p.cfg.CertNames {
		resp, err := p.certs.GetCertificate(ctx, name, "", nil)
		if err != nil {
			return nil, p.classify("reading certificate "+name, err)
		}
		if len(resp.CER) == 0 {
			continue
		}
		out = append(out, provider.Secret{
			Label: name,
			Name:  naming.Normalize(p.cfg.Prefix, name) + "_CERT",
			Value: base64.StdEncoding.EncodeToString(resp.CER),
		})
	}
	return out, nil
}

// HealthCheck probes the vault with a read of the first configured
// secret name, or a listing when none is configured. Values are
// discarded without being exported.
func (p *AzureProvider) HealthCheck(ctx context.Context) error {
	if !p.cfg.Enabled {
		return nil
	}
	if p.vaultURL == "" {
		return nil // not configured is vacuously healthy
	}
	if err := p.ensureClients(); err != nil {
		return err
	}

	if len(p.cfg.SecretNames) > 0 {
		if _, err := p.secrets.GetSecret(ctx, p.cfg.SecretNames[0], "", nil); err != nil {
			return p.classify("health probe", err)
		}
		return nil
	}
	if _, err := p.listSecretNames(ctx); err != nil {
		return err
	}
	return nil
}

// ensureClients builds the SDK clients unless they were injected.
func (p *AzureProvider) ensureClients() error {
	if p.secrets != nil && (p.certs != nil || len(p.cfg.CertNames) == 0) {
		return nil
	}

	cred, err := p.credential()
	if err != nil {
		return sberrors.AuthFailure(string(provider.Azure), "building Azure credential failed", err)
	}

	if p.secrets == nil {
		client, err := azsecrets.NewClient(p.vaultURL, cred, nil)
		if err != nil {
			return sberrors.TransportFailure(string(provider.Azure), "creating Key Vault client failed", err)
		}
		p.secrets = client
	}
	if p.certs == nil && len(p.cfg.CertNames) > 0 {
		client, err := azcertificates.NewClient(p.vaultURL, cred, nil)
		if err != nil {
			return sberrors.TransportFailure(string(provider.Azure), "creating certificates client failed", err)
		}
		p.certs = client
	}
	return nil
}

// credential picks service-principal auth when the tenant id, client id,
// and client secret are all present; a partial triple falls back to the
// ambient credential chain (CLI session, managed identity, workload
// identity).
func (p *AzureProvider) credential() (azcore.TokenCredential, error) {
	if p.cfg.TenantID != "" && p.cfg.ClientID != "" && p.cfg.ClientSecret != "" {
		return azidentity.NewClientSecretCredential(p.cfg.TenantID, p.cfg.ClientID, p.cfg.ClientSecret, nil)
	}
	return azidentity.NewDefaultAzureCredential(nil)
}

// listSecretNames enumerates the vault. Only the real client can list;
// an injected mock without listing support requires explicit names.
func (p *AzureProvider) listSecretNames(ctx context.Context) ([]string, error) {
	client, ok := p.secrets.(*azsecrets.Client)
	if !ok {
		return nil, sberrors.NotConfigured(string(provider.Azure), "AZURE_SECRET_NAMES not set and listing unavailable")
	}

	var names []string
	pager := client.NewListSecretPropertiesPager(nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, p.classify("listing secrets", err)
		}
		for _, item := range page.Value {
			if item.ID == nil {
				continue
			}
			names = append(names, item.ID.Name())
		}
	}
	return names, nil
}

// classify maps Azure SDK errors onto the failure taxonomy.
func (p *AzureProvider) classify(operation string, err error) error {
	errStr := err.Error()
	switch {
	case containsAny(errStr, "401", "403", "AADSTS", "invalid_client", "unauthorized_client", "Forbidden"):
		return sberrors.AuthFailure(string(provider.Azure), operation+" denied by Azure", err)
	case strings.Contains(errStr, "SecretNotFound") || strings.Contains(errStr, "404"):
		return sberrors.TransportFailure(string(provider.Azure), operation+": not found", err)
	default:
		return sberrors.TransportFailure(string(provider.Azure), operation+" failed", err)
	}
}
