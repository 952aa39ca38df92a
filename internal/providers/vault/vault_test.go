package vault_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/systmms/secretboot/internal/config"
	sberrors "github.com/systmms/secretboot/internal/errors"
	"github.com/systmms/secretboot/internal/logging"
	"github.com/systmms/secretboot/internal/providers/vault"
	"github.com/systmms/secretboot/pkg/provider"
)

type mockClient struct {
	token     string
	lookupErr error

	loginPath    string
	loginPayload map[string]interface{}
	loginErr     error

	reads   map[string]map[string]interface{}
	readErr error
}

func (m *mockClient) SetToken(token string) { m.token = token }

func (m *mockClient) TokenLookupSelf(_ context.Context) error { return m.lookupErr }

func (m *mockClient) Login(_ context.Context, path string, payload map[string]interface{}) (string, error) {
	m.loginPath = path
	m.loginPayload = payload
	if m.loginErr != nil {
		return "", m.loginErr
	}
	m.token = "login-token"
	return m.token, nil
}

func (m *mockClient) Read(_ context.Context, path string) (map[string]interface{}, error) {
	if m.readErr != nil {
		return nil, m.readErr
	}
	return m.reads[path], nil
}

func testLogger() *logging.Logger {
	return logging.NewWithWriter(os.Stderr, false, true)
}

func tokenSettings() config.VaultSettings {
	return config.VaultSettings{
		Enabled:    true,
		Address:    "http://127.0.0.1:8200",
		SecretPath: "secret/myapp",
		AuthMethod: "token",
		Token:      "s.abc123",
	}
}

func newProvider(cfg config.VaultSettings, client *mockClient) *vault.Provider {
	return vault.NewProvider(cfg, testLogger(), vault.WithClient(client))
}

func TestLoadTokenAuthKVv2(t *testing.T) {
	t.Parallel()

	client := &mockClient{reads: map[string]map[string]interface{}{
		"secret/data/myapp": {
			"data":     map[string]interface{}{"db_password": "pw1", "port": float64(5432)},
			"metadata": map[string]interface{}{"version": float64(3)},
		},
	}}
	p := newProvider(tokenSettings(), client)

	secrets, err := p.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, secrets, 2)
	assert.Equal(t, "s.abc123", client.token)

	byName := map[string]string{}
	for _, s := range secrets {
		byName[s.Name] = s.Value
	}
	assert.Equal(t, "pw1", byName["DB_PASSWORD"])
	assert.Equal(t, "5432", byName["PORT"])
}

func TestLoadKVv1Flat(t *testing.T) {
	t.Parallel()

	client := &mockClient{reads: map[string]map[string]interface{}{
		"secret/myapp": {"api_key": "k1"},
	}}
	p := newProvider(tokenSettings(), client)

	secrets, err := p.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, secrets, 1)
	assert.Equal(t, "API_KEY", secrets[0].Name)
	assert.Equal(t, "k1", secrets[0].Value)
}

func TestLoadInvalidTokenIsAuthFailure(t *testing.T) {
	t.Parallel()

	client := &mockClient{lookupErr: errors.New("permission denied")}
	p := newProvider(tokenSettings(), client)

	_, err := p.Load(context.Background())
	require.Error(t, err)
	assert.Equal(t, sberrors.CategoryAuth, sberrors.ClassifyError(err))
}

func TestLoadMissingTokenIsNotConfigured(t *testing.T) {
	t.Parallel()

	cfg := tokenSettings()
	cfg.Token = ""
	p := newProvider(cfg, &mockClient{})

	_, err := p.Load(context.Background())
	require.Error(t, err)
	assert.True(t, sberrors.IsNotConfigured(err))
}

func TestLoadAppRole(t *testing.T) {
	t.Parallel()

	client := &mockClient{reads: map[string]map[string]interface{}{
		"secret/myapp": {"token": "v"},
	}}
	cfg := tokenSettings()
	cfg.AuthMethod = "approle"
	cfg.Token = ""
	cfg.RoleID = "role-1"
	cfg.SecretID = "secret-1"
	p := newProvider(cfg, client)

	_, err := p.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "auth/approle/login", client.loginPath)
	assert.Equal(t, "role-1", client.loginPayload["role_id"])
	assert.Equal(t, "secret-1", client.loginPayload["secret_id"])
}

func TestLoadKubernetes(t *testing.T) {
	t.Parallel()

	tokenFile := filepath.Join(t.TempDir(), "token")
	require.NoError(t, os.WriteFile(tokenFile, []byte("sa-jwt\n"), 0o600))

	client := &mockClient{reads: map[string]map[string]interface{}{
		"secret/myapp": {"token": "v"},
	}}
	cfg := tokenSettings()
	cfg.AuthMethod = "kubernetes"
	cfg.Token = ""
	cfg.K8sRole = "myapp"
	cfg.K8sTokenPath = tokenFile
	p := newProvider(cfg, client)

	_, err := p.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "auth/kubernetes/login", client.loginPath)
	assert.Equal(t, "myapp", client.loginPayload["role"])
	assert.Equal(t, "sa-jwt", client.loginPayload["jwt"])
}

func TestLoadUnknownAuthMethodAborts(t *testing.T) {
	t.Parallel()

	cfg := tokenSettings()
	cfg.AuthMethod = "ldap"
	p := newProvider(cfg, &mockClient{})

	_, err := p.Load(context.Background())
	require.Error(t, err)
	assert.Equal(t, sberrors.CategoryValidation, sberrors.ClassifyError(err))
}

func TestLoadNotConfigured(t *testing.T) {
	t.Parallel()

	p := newProvider(config.VaultSettings{Enabled: true, AuthMethod: "token"}, &mockClient{})
	_, err := p.Load(context.Background())
	require.Error(t, err)
	assert.True(t, sberrors.IsNotConfigured(err))
}

func TestLoadDisabled(t *testing.T) {
	t.Parallel()

	cfg := tokenSettings()
	cfg.Enabled = false
	p := newProvider(cfg, &mockClient{readErr: errors.New("should not be called")})

	secrets, err := p.Load(context.Background())
	assert.NoError(t, err)
	assert.Nil(t, secrets)
}

func TestHealthCheck(t *testing.T) {
	t.Parallel()

	p := newProvider(tokenSettings(), &mockClient{})
	assert.NoError(t, p.HealthCheck(context.Background()))

	p = newProvider(tokenSettings(), &mockClient{lookupErr: errors.New("permission denied")})
	err := p.HealthCheck(context.Background())
	require.Error(t, err)
	assert.Equal(t, sberrors.CategoryAuth, sberrors.ClassifyError(err))

	// Unconfigured is vacuously healthy.
	p = newProvider(config.VaultSettings{Enabled: true, AuthMethod: "token"}, &mockClient{})
	assert.NoError(t, p.HealthCheck(context.Background()))
}

// The secret path names deployment internals; debug output renders it
// redacted.
func TestLoadDebugLogRedactsSecretPath(t *testing.T) {
	t.Parallel()

	client := &mockClient{reads: map[string]map[string]interface{}{
		"secret/myapp": {"api_key": "k1"},
	}}
	var buf bytes.Buffer
	p := vault.NewProvider(tokenSettings(), logging.NewWithWriter(&buf, true, true), vault.WithClient(client))

	_, err := p.Load(context.Background())
	require.NoError(t, err)
	assert.NotContains(t, buf.String(), "secret/myapp")
	assert.Contains(t, buf.String(), "[REDACTED]")
}

func TestProviderID(t *testing.T) {
	t.Parallel()

	p := newProvider(tokenSettings(), &mockClient{})
	assert.Equal(t, provider.Vault, p.ID())
}
