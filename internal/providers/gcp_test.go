package providers_test

import (
	"context"
	"errors"
	"testing"

	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/systmms/secretboot/internal/config"
	sberrors "github.com/systmms/secretboot/internal/errors"
	"github.com/systmms/secretboot/internal/providers"
	"github.com/systmms/secretboot/pkg/exec"
)

type mockGCPSecrets struct {
	values   map[string]string
	versions []*secretmanagerpb.SecretVersion
	err      error

	accessed     []string
	listedParent string
}

func (m *mockGCPSecrets) AccessSecretVersion(_ context.Context, req *secretmanagerpb.AccessSecretVersionRequest, _ ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error) {
	m.accessed = append(m.accessed, req.Name)
	if m.err != nil {
		return nil, m.err
	}
	val, ok := m.values[req.Name]
	if !ok {
		return nil, errors.New("rpc error: code = NotFound")
	}
	return &secretmanagerpb.AccessSecretVersionResponse{
		Name:    req.Name,
		Payload: &secretmanagerpb.SecretPayload{Data: []byte(val)},
	}, nil
}

func (m *mockGCPSecrets) GetSecret(_ context.Context, req *secretmanagerpb.GetSecretRequest, _ ...gax.CallOption) (*secretmanagerpb.Secret, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &secretmanagerpb.Secret{Name: req.Name}, nil
}

func (m *mockGCPSecrets) ListSecretVersions(_ context.Context, req *secretmanagerpb.ListSecretVersionsRequest) ([]*secretmanagerpb.SecretVersion, error) {
	m.listedParent = req.Parent
	if m.err != nil {
		return nil, m.err
	}
	return m.versions, nil
}

func noGcloud() exec.CommandExecutor {
	return exec.ExecutorFunc(func(_ context.Context, _ string, _ ...string) ([]byte, []byte, error) {
		return nil, nil, errors.New("executable file not found in $PATH")
	})
}

func newGCPProvider(cfg config.GCPSettings, client *mockGCPSecrets, executor exec.CommandExecutor) *providers.GCPProvider {
	if executor == nil {
		executor = noGcloud()
	}
	return providers.NewGCPProvider(cfg, testLogger(), executor, providers.WithGCPSecretsClient(client))
}

func TestGCPLoadNamedSecrets(t *testing.T) {
	t.Parallel()

	client := &mockGCPSecrets{values: map[string]string{
		"projects/my-proj/secrets/db-password/versions/latest": "pw1\n",
		"projects/my-proj/secrets/api-key/versions/latest":     "k1",
	}}
	p := newGCPProvider(config.GCPSettings{
		Enabled:     true,
		ProjectID:   "my-proj",
		SecretNames: []string{"db-password", "api-key"},
	}, client, nil)

	secrets, err := p.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, secrets, 2)
	assert.Equal(t, "DB_PASSWORD", secrets[0].Name)
	assert.Equal(t, "pw1", secrets[0].Value) // trailing newline trimmed
	assert.Equal(t, "API_KEY", secrets[1].Name)
}

func TestGCPProjectIDFromGcloud(t *testing.T) {
	t.Parallel()

	client := &mockGCPSecrets{values: map[string]string{
		"projects/cli-proj/secrets/token/versions/latest": "v",
	}}
	gcloud := exec.ExecutorFunc(func(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
		assert.Equal(t, "gcloud", name)
		assert.Equal(t, []string{"config", "get-value", "project"}, args)
		return []byte("cli-proj\n"), nil, nil
	})
	p := newGCPProvider(config.GCPSettings{
		Enabled:     true,
		SecretNames: []string{"token"},
	}, client, gcloud)

	secrets, err := p.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, secrets, 1)
	assert.Equal(t, "projects/cli-proj/secrets/token/versions/latest", client.accessed[0])
}

func TestGCPProjectIDUnsetInGcloud(t *testing.T) {
	t.Parallel()

	gcloud := exec.ExecutorFunc(func(_ context.Context, _ string, _ ...string) ([]byte, []byte, error) {
		return []byte("(unset)\n"), nil, nil
	})
	p := newGCPProvider(config.GCPSettings{
		Enabled:     true,
		SecretNames: []string{"token"},
	}, &mockGCPSecrets{}, gcloud)

	_, err := p.Load(context.Background())
	require.Error(t, err)
	assert.True(t, sberrors.IsNotConfigured(err))
}

func TestGCPLoadNoSecretNames(t *testing.T) {
	t.Parallel()

	p := newGCPProvider(config.GCPSettings{Enabled: true, ProjectID: "x"}, &mockGCPSecrets{}, nil)
	_, err := p.Load(context.Background())
	require.Error(t, err)
	assert.True(t, sberrors.IsNotConfigured(err))
}

func TestGCPLoadDisabled(t *testing.T) {
	t.Parallel()

	p := newGCPProvider(config.GCPSettings{Enabled: false, ProjectID: "x", SecretNames: []string{"a"}},
		&mockGCPSecrets{err: errors.New("should not be called")}, nil)
	secrets, err := p.Load(context.Background())
	assert.NoError(t, err)
	assert.Nil(t, secrets)
}

func TestGCPErrorClassification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want sberrors.Category
	}{
		{"denied", errors.New("rpc error: code = PermissionDenied desc = ..."), sberrors.CategoryAuth},
		{"unauthenticated", errors.New("rpc error: code = Unauthenticated"), sberrors.CategoryAuth},
		{"no_creds", errors.New("could not find default credentials"), sberrors.CategoryNotConfigured},
		{"unavailable", errors.New("rpc error: code = Unavailable desc = connection refused"), sberrors.CategoryTransport},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			client := &mockGCPSecrets{err: tt.err}
			p := newGCPProvider(config.GCPSettings{
				Enabled:     true,
				ProjectID:   "x",
				SecretNames: []string{"a"},
			}, client, nil)
			_, err := p.Load(context.Background())
			require.Error(t, err)
			assert.Equal(t, tt.want, sberrors.ClassifyError(err))
		})
	}
}

func TestGCPListVersions(t *testing.T) {
	t.Parallel()

	client := &mockGCPSecrets{versions: []*secretmanagerpb.SecretVersion{
		{Name: "projects/my-proj/secrets/db-password/versions/2", State: secretmanagerpb.SecretVersion_ENABLED},
		{Name: "projects/my-proj/secrets/db-password/versions/1", State: secretmanagerpb.SecretVersion_DESTROYED},
	}}
	p := newGCPProvider(config.GCPSettings{
		Enabled:     true,
		ProjectID:   "my-proj",
		SecretNames: []string{"db-password"},
	}, client, nil)

	versions, err := p.ListVersions(context.Background(), "db-password")
	require.NoError(t, err)
	assert.Equal(t, "projects/my-proj/secrets/db-password", client.listedParent)
	require.Len(t, versions, 2)
	assert.Equal(t, "projects/my-proj/secrets/db-password/versions/2", versions[0].Name)
	assert.Equal(t, "ENABLED", versions[0].State)
	assert.Equal(t, "DESTROYED", versions[1].State)
}

func TestGCPListVersionsDeniedIsAuthFailure(t *testing.T) {
	t.Parallel()

	client := &mockGCPSecrets{err: errors.New("rpc error: code = PermissionDenied")}
	p := newGCPProvider(config.GCPSettings{Enabled: true, ProjectID: "x"}, client, nil)

	_, err := p.ListVersions(context.Background(), "db-password")
	require.Error(t, err)
	assert.Equal(t, sberrors.CategoryAuth, sberrors.ClassifyError(err))
}

func TestGCPHealthCheck(t *testing.T) {
	t.Parallel()

	client := &mockGCPSecrets{values: map[string]string{}}
	p := newGCPProvider(config.GCPSettings{Enabled: true, ProjectID: "x", SecretNames: []string{"a"}}, client, nil)
	assert.NoError(t, p.HealthCheck(context.Background()))

	p = newGCPProvider(config.GCPSettings{Enabled: true, ProjectID: "x", SecretNames: []string{"a"}},
		&mockGCPSecrets{err: errors.New("PermissionDenied")}, nil)
	require.Error(t, p.HealthCheck(context.Background()))

	// No configured names means nothing to probe.
	p = newGCPProvider(config.GCPSettings{Enabled: true, ProjectID: "x"}, &mockGCPSecrets{}, nil)
	assert.NoError(t, p.HealthCheck(context.Background()))
}
