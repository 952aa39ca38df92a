package vault

import (
	"context"
	"fmt"

	vaultapi "github.com/hashicorp/vault/api"

	"github.com/systmms/secretboot/internal/config"
)

// Client is the slice of the Vault API used by the provider. It exists
// so tests can drive the auth state machine without a server.
type Client interface {
	SetToken(token string)
	TokenLookupSelf(ctx context.Context) error
	Login(ctx context.Context, path string, payload map[string]interface{}) (string, error)
	Read(ctx context.Context, path string) (map[string]interface{}, error)
}

// apiClient wraps the official Vault API client.
type apiClient struct {
	client *vaultapi.Client
}

func newAPIClient(cfg config.VaultSettings) (*apiClient, error) {
	apiCfg := vaultapi.DefaultConfig()
	apiCfg.Address = cfg.Address
	client, err := vaultapi.NewClient(apiCfg)
	if err != nil {
		return nil, fmt.Errorf("creating vault client: %w", err)
	}
	if cfg.Namespace != "" {
		client.SetNamespace(cfg.Namespace)
	}
	return &apiClient{client: client}, nil
}

func (c *apiClient) SetToken(token string) {
	c.client.SetToken(token)
}

func (c *apiClient) TokenLookupSelf(ctx context.Context) error {
	_, err := c.client.Auth().Token().LookupSelfWithContext(ctx)
	return err
}

// Login posts the payload to an auth backend and installs the returned
// client token for subsequent reads.
func (c *apiClient) Login(ctx context.Context, path string, payload map[string]interface{}) (string, error) {
	secret, err := c.client.Logical().WriteWithContext(ctx, path, payload)
	if err != nil {
		return "", err
	}
	if secret == nil || secret.Auth == nil || secret.Auth.ClientToken == "" {
		return "", fmt.Errorf("no token in login response from %s", path)
	}
	c.client.SetToken(secret.Auth.ClientToken)
	return secret.Auth.ClientToken, nil
}

// Read returns the raw data map at path, or nil when the path does not
// exist.
func (c *apiClient) Read(ctx context.Context, path string) (map[string]interface{}, error) {
	secret, err := c.client.Logical().ReadWithContext(ctx, path)
	if err != nil {
		return nil, err
	}
	if secret == nil {
		return nil, nil
	}
	return secret.Data, nil
}
