// Package vault loads secrets from a HashiCorp Vault KV store, with
// token, AppRole, and Kubernetes authentication.
package vault

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/systmms/secretboot/internal/config"
	sberrors "github.com/systmms/secretboot/internal/errors"
	"github.com/systmms/secretboot/internal/logging"
	"github.com/systmms/secretboot/internal/naming"
	"github.com/systmms/secretboot/pkg/provider"
)

// Provider implements the provider contract for HashiCorp Vault.
type Provider struct {
	cfg    config.VaultSettings
	logger *logging.Logger
	client Client
}

// Option is a functional option for configuring the provider.
type Option func(*Provider)

// WithClient sets a custom Vault client (for testing)
func WithClient(client Client) Option {
	return func(p *Provider) {
		p.client = client
	}
}

// NewProvider creates a Vault provider. The API client is created lazily
// so an unconfigured provider never dials out.
func NewProvider(cfg config.VaultSettings, logger *logging.Logger, opts ...Option) *Provider {
	p := &Provider{cfg: cfg, logger: logger}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ID returns the provider's canonical identifier.
func (p *Provider) ID() provider.ID {
	return provider.Vault
}

// Load authenticates, reads the configured path, and exports one
// variable per key. KV v2 payloads are unwrapped; flat KV v1 data is
// used as-is.
func (p *Provider) Load(ctx context.Context) ([]provider.Secret, error) {
	if !p.cfg.Enabled {
		return nil, nil
	}
	if p.cfg.Address == "" || p.cfg.SecretPath == "" {
		return nil, sberrors.NotConfigured(string(provider.Vault), "VAULT_ADDR or VAULT_SECRET_PATH not set")
	}

	if err := p.ensureClient(); err != nil {
		return nil, err
	}
	if err := p.authenticate(ctx); err != nil {
		return nil, err
	}

	data, err := p.readSecret(ctx, p.cfg.SecretPath)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, sberrors.TransportFailure(string(provider.Vault),
			"no secret at path "+p.cfg.SecretPath, nil)
	}

	secrets := make([]provider.Secret, 0, len(data))
	for key, val := range data {
		secrets = append(secrets, provider.Secret{
			Label: key,
			Name:  naming.Normalize(p.cfg.Prefix, key),
			Value: stringify(val),
		})
	}

	// The path itself can reveal deployment topology; redact it.
	p.logger.Debug("vault: %d key(s) from %s", len(secrets), logging.Secret(p.cfg.SecretPath))
	return secrets, nil
}

// HealthCheck verifies the configured auth method end to end. The secret
// path itself is not read.
func (p *Provider) HealthCheck(ctx context.Context) error {
	if !p.cfg.Enabled {
		return nil
	}
	if p.cfg.Address == "" || p.cfg.SecretPath == "" {
		return nil // not configured is vacuously healthy
	}
	if err := p.ensureClient(); err != nil {
		return err
	}
	return p.authenticate(ctx)
}

func (p *Provider) ensureClient() error {
	if p.client != nil {
		return nil
	}
	client, err := newAPIClient(p.cfg)
	if err != nil {
		return sberrors.TransportFailure(string(provider.Vault), "creating client failed", err)
	}
	p.client = client
	return nil
}

// authenticate runs the configured auth method. An unknown method is a
// configuration mistake, not an absent configuration, and always aborts.
func (p *Provider) authenticate(ctx context.Context) error {
	switch p.cfg.AuthMethod {
	case "token":
		return p.authToken(ctx)
	case "approle":
		return p.authAppRole(ctx)
	case "kubernetes", "k8s":
		return p.authKubernetes(ctx)
	default:
		return sberrors.ValidationFailure(string(provider.Vault),
			"unsupported auth method "+strconv.Quote(p.cfg.AuthMethod)+", want token, approle, or kubernetes")
	}
}

func (p *Provider) authToken(ctx context.Context) error {
	if p.cfg.Token == "" {
		return sberrors.NotConfigured(string(provider.Vault), "VAULT_TOKEN not set")
	}
	p.client.SetToken(p.cfg.Token)
	if err := p.client.TokenLookupSelf(ctx); err != nil {
		return p.classify("token validation", err)
	}
	return nil
}

func (p *Provider) authAppRole(ctx context.Context) error {
	if p.cfg.RoleID == "" || p.cfg.SecretID == "" {
		return sberrors.NotConfigured(string(provider.Vault), "VAULT_ROLE_ID or VAULT_SECRET_ID not set")
	}
	_, err := p.client.Login(ctx, "auth/approle/login", map[string]interface{}{
		"role_id":   p.cfg.RoleID,
		"secret_id": p.cfg.SecretID,
	})
	if err != nil {
		return p.classify("approle login", err)
	}
	return nil
}

func (p *Provider) authKubernetes(ctx context.Context) error {
	if p.cfg.K8sRole == "" {
		return sberrors.NotConfigured(string(provider.Vault), "VAULT_K8S_ROLE not set")
	}
	jwt, err := os.ReadFile(p.cfg.K8sTokenPath)
	if err != nil {
		return sberrors.AuthFailure(string(provider.Vault),
			"reading service account token from "+p.cfg.K8sTokenPath+" failed", err)
	}
	_, err = p.client.Login(ctx, "auth/kubernetes/login", map[string]interface{}{
		"role": p.cfg.K8sRole,
		"jwt":  strings.TrimSpace(string(jwt)),
	})
	if err != nil {
		return p.classify("kubernetes login", err)
	}
	return nil
}

// readSecret reads the path as given, then retries with the KV v2 data
// segment inserted after the mount when the plain path is empty. The
// returned map is the flat key space regardless of engine version.
func (p *Provider) readSecret(ctx context.Context, path string) (map[string]interface{}, error) {
	data, err := p.client.Read(ctx, path)
	if err != nil {
		return nil, p.classify("reading "+path, err)
	}
	if data == nil && !strings.Contains(path, "/data/") {
		if mount, rest, ok := strings.Cut(path, "/"); ok {
			data, err = p.client.Read(ctx, mount+"/data/"+rest)
			if err != nil {
				return nil, p.classify("reading "+path, err)
			}
		}
	}
	return unwrapKVv2(data), nil
}

// unwrapKVv2 peels the data/metadata envelope that the KV v2 engine puts
// around payloads. Anything else passes through untouched.
func unwrapKVv2(data map[string]interface{}) map[string]interface{} {
	if data == nil {
		return nil
	}
	inner, hasData := data["data"].(map[string]interface{})
	_, hasMeta := data["metadata"]
	if hasData && hasMeta {
		return inner
	}
	return data
}

func (p *Provider) classify(operation string, err error) error {
	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "permission denied"),
		strings.Contains(errStr, "invalid token"),
		strings.Contains(errStr, "403"),
		strings.Contains(errStr, "invalid role or secret id"):
		return sberrors.AuthFailure(string(provider.Vault), operation+" denied by vault", err)
	default:
		return sberrors.TransportFailure(string(provider.Vault), operation+" failed", err)
	}
}

func stringify(val interface{}) string {
	switch v := val.(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprintf("%g", v)
	case bool:
		return strconv.FormatBool(v)
	case nil:
		return ""
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(data)
	}
}
