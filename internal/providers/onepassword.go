package providers

import (
	"context"
	"encoding/json"
	"errors"
	osexec "os/exec"
	"strings"

	"github.com/1Password/connect-sdk-go/connect"
	"github.com/1Password/connect-sdk-go/onepassword"

	"github.com/systmms/secretboot/internal/config"
	sberrors "github.com/systmms/secretboot/internal/errors"
	"github.com/systmms/secretboot/internal/logging"
	"github.com/systmms/secretboot/internal/naming"
	"github.com/systmms/secretboot/pkg/exec"
	"github.com/systmms/secretboot/pkg/provider"
)

// OnePasswordConnectAPI is the slice of the Connect client used by the
// adapter. connect.Client satisfies it.
type OnePasswordConnectAPI interface {
	GetVaultByTitle(title string) (*onepassword.Vault, error)
	GetItemByTitle(title string, vaultUUID string) (*onepassword.Item, error)
}

// OnePasswordProvider loads item fields from 1Password, through a Connect
// server when one is configured and through the op CLI otherwise.
type OnePasswordProvider struct {
	cfg      config.OnePasswordSettings
	logger   *logging.Logger
	executor exec.CommandExecutor
	client   OnePasswordConnectAPI
}

// OnePasswordProviderOption is a functional option for configuring the provider.
type OnePasswordProviderOption func(*OnePasswordProvider)

// WithConnectClient sets a custom Connect client (for testing)
func WithConnectClient(client OnePasswordConnectAPI) OnePasswordProviderOption {
	return func(p *OnePasswordProvider) {
		p.client = client
	}
}

// NewOnePasswordProvider creates a 1Password provider.
func NewOnePasswordProvider(cfg config.OnePasswordSettings, logger *logging.Logger, executor exec.CommandExecutor, opts ...OnePasswordProviderOption) *OnePasswordProvider {
	if executor == nil {
		executor = exec.DefaultExecutor()
	}
	p := &OnePasswordProvider{cfg: cfg, logger: logger, executor: executor}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ID returns the provider's canonical identifier.
func (p *OnePasswordProvider) ID() provider.ID {
	return provider.OnePassword
}

// Load fetches every configured item and exports its non-empty fields.
// The Connect path is tried first when a server is configured; any
// Connect failure falls back to the op CLI session.
func (p *OnePasswordProvider) Load(ctx context.Context) ([]provider.Secret, error) {
	if !p.cfg.Enabled {
		return nil, nil
	}
	if p.cfg.Vault == "" || len(p.cfg.Items) == 0 {
		return nil, sberrors.NotConfigured(string(provider.OnePassword), "OP_VAULT or OP_ITEMS not set")
	}

	if p.useConnect() {
		secrets, err := p.loadViaConnect()
		if err == nil {
			return secrets, nil
		}
		// The rendered error excludes the response body, so this is safe
		// to log.
		p.logger.Warn("1password: Connect path failed (%v), falling back to op CLI", err)
	}
	return p.loadViaCLI(ctx)
}

// HealthCheck verifies the session: a vault lookup over Connect, or an
// op whoami probe over the CLI.
func (p *OnePasswordProvider) HealthCheck(ctx context.Context) error {
	if !p.cfg.Enabled {
		return nil
	}
	if p.cfg.Vault == "" || len(p.cfg.Items) == 0 {
		return nil // not configured is vacuously healthy
	}

	if p.useConnect() {
		err := p.healthViaConnect()
		if err == nil {
			return nil
		}
		p.logger.Warn("1password: Connect probe failed (%v), probing op CLI", err)
	}

	_, stderr, err := p.executor.Execute(ctx, "op", "whoami", "--format", "json")
	if err != nil {
		return p.classifyCLI("whoami probe", stderr, err)
	}
	return nil
}

func (p *OnePasswordProvider) healthViaConnect() error {
	if err := p.ensureConnect(); err != nil {
		return err
	}
	if _, err := p.client.GetVaultByTitle(p.cfg.Vault); err != nil {
		return p.classifyConnect("vault lookup", err)
	}
	return nil
}

// useConnect reports whether a Connect server is configured. The CLI path
// also covers service-account tokens, which the op binary reads from its
// own environment variable.
func (p *OnePasswordProvider) useConnect() bool {
	return p.client != nil || (p.cfg.ConnectHost != "" && p.cfg.ConnectToken != "")
}

func (p *OnePasswordProvider) ensureConnect() error {
	if p.client != nil {
		return nil
	}
	p.client = connect.NewClient(p.cfg.ConnectHost, p.cfg.ConnectToken)
	return nil
}

func (p *OnePasswordProvider) loadViaConnect() ([]provider.Secret, error) {
	if err := p.ensureConnect(); err != nil {
		return nil, err
	}

	vault, err := p.client.GetVaultByTitle(p.cfg.Vault)
	if err != nil {
		return nil, p.classifyConnect("resolving vault "+p.cfg.Vault, err)
	}

	secrets := []provider.Secret{}
	for _, title := range p.cfg.Items {
		item, err := p.client.GetItemByTitle(title, vault.ID)
		if err != nil {
			return nil, p.classifyConnect("reading item "+title, err)
		}
		secrets = append(secrets, p.exportFields(title, item.Fields)...)
	}

	p.logger.Debug("1password: %d field(s) via Connect", len(secrets))
	return secrets, nil
}

// loadViaCLI shells out to the op binary, one item per invocation, with a
// fixed argument vector. Raw item JSON contains secret values and is
// never logged.
func (p *OnePasswordProvider) loadViaCLI(ctx context.Context) ([]provider.Secret, error) {
	secrets := []provider.Secret{}
	for _, title := range p.cfg.Items {
		stdout, stderr, err := p.executor.Execute(ctx, "op",
			"item", "get", title, "--vault", p.cfg.Vault, "--format", "json")
		if err != nil {
			return nil, p.classifyCLI("reading item "+title, stderr, err)
		}

		var item struct {
			Fields []*onepassword.ItemField `json:"fields"`
		}
		if err := json.Unmarshal(stdout, &item); err != nil {
			return nil, sberrors.TransportFailure(string(provider.OnePassword),
				"unparseable op output for item "+title, err)
		}
		secrets = append(secrets, p.exportFields(title, item.Fields)...)
	}

	p.logger.Debug("1password: %d field(s) via op CLI", len(secrets))
	return secrets, nil
}

// exportFields turns an item's fields into secrets, skipping empty labels
// and values. Later items overwrite earlier ones on label collision.
func (p *OnePasswordProvider) exportFields(itemTitle string, fields []*onepassword.ItemField) []provider.Secret {
	var out []provider.Secret
	for _, field := range fields {
		if field == nil || field.Label == "" || field.Value == "" {
			continue
		}
		out = append(out, provider.Secret{
			Label: itemTitle + "/" + field.Label,
			Name:  naming.Normalize(p.cfg.Prefix, field.Label),
			Value: field.Value,
		})
	}
	return out
}

func (p *OnePasswordProvider) classifyConnect(operation string, err error) error {
	errStr := err.Error()
	switch {
	case containsAny(errStr, "401", "403", "Invalid bearer token", "unauthorized"):
		return sberrors.AuthFailure(string(provider.OnePassword), operation+" denied by Connect", err)
	default:
		return sberrors.TransportFailure(string(provider.OnePassword), operation+" failed", err)
	}
}

// classifyCLI maps op CLI failures. A missing binary is a dependency
// problem, not an authentication one.
func (p *OnePasswordProvider) classifyCLI(operation string, stderr []byte, err error) error {
	if errors.Is(err, osexec.ErrNotFound) {
		return sberrors.DependencyMissing(string(provider.OnePassword), "op CLI not installed", err)
	}
	msg := strings.ToLower(string(stderr))
	if containsAny(msg, "not signed in", "authorization", "invalid token", "401") {
		return sberrors.AuthFailure(string(provider.OnePassword), operation+" rejected by op", err)
	}
	return sberrors.TransportFailure(string(provider.OnePassword), operation+" failed", err)
}
