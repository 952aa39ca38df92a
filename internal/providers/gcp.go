package providers

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"

	"cloud.google.com/go/compute/metadata"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/systmms/secretboot/internal/config"
	sberrors "github.com/systmms/secretboot/internal/errors"
	"github.com/systmms/secretboot/internal/logging"
	"github.com/systmms/secretboot/internal/naming"
	"github.com/systmms/secretboot/pkg/exec"
	"github.com/systmms/secretboot/pkg/provider"
)

// GCPSecretsClientAPI defines the Secret Manager operations used by the
// adapter. Version listing returns a plain slice rather than the
// generated iterator, which cannot be constructed outside the SDK; the
// iterator is drained inside apiSecretsClient so mocks stay plain.
type GCPSecretsClientAPI interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error)
	GetSecret(ctx context.Context, req *secretmanagerpb.GetSecretRequest, opts ...gax.CallOption) (*secretmanagerpb.Secret, error)
	ListSecretVersions(ctx context.Context, req *secretmanagerpb.ListSecretVersionsRequest) ([]*secretmanagerpb.SecretVersion, error)
}

// apiSecretsClient adapts the generated client to GCPSecretsClientAPI.
type apiSecretsClient struct {
	*secretmanager.Client
}

func (c *apiSecretsClient) ListSecretVersions(ctx context.Context, req *secretmanagerpb.ListSecretVersionsRequest) ([]*secretmanagerpb.SecretVersion, error) {
	it := c.Client.ListSecretVersions(ctx, req)
	var versions []*secretmanagerpb.SecretVersion
	for {
		v, err := it.Next()
		if err == iterator.Done {
			return versions, nil
		}
		if err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
}

// SecretVersion describes one version of a managed secret. It carries
// metadata only, never the payload.
type SecretVersion struct {
	Name    string
	State   string
	Created time.Time
}

// GCPProvider loads named secrets from Google Cloud Secret Manager.
type GCPProvider struct {
	cfg      config.GCPSettings
	logger   *logging.Logger
	executor exec.CommandExecutor
	client   GCPSecretsClientAPI

	projectID string
}

// GCPProviderOption is a functional option for configuring the provider.
type GCPProviderOption func(*GCPProvider)

// WithGCPSecretsClient sets a custom Secret Manager client (for testing)
func WithGCPSecretsClient(client GCPSecretsClientAPI) GCPProviderOption {
	return func(p *GCPProvider) {
		p.client = client
	}
}

// NewGCPProvider creates a GCP Secret Manager provider. The executor is
// used only for the gcloud project lookup; the secret reads themselves go
// through the native API.
func NewGCPProvider(cfg config.GCPSettings, logger *logging.Logger, executor exec.CommandExecutor, opts ...GCPProviderOption) *GCPProvider {
	if executor == nil {
		executor = exec.DefaultExecutor()
	}
	p := &GCPProvider{cfg: cfg, logger: logger, executor: executor}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ID returns the provider's canonical identifier.
func (p *GCPProvider) ID() provider.ID {
	return provider.GCP
}

// Load reads the latest version of each configured secret.
func (p *GCPProvider) Load(ctx context.Context) ([]provider.Secret, error) {
	if !p.cfg.Enabled {
		return nil, nil
	}
	if len(p.cfg.SecretNames) == 0 {
		return nil, sberrors.NotConfigured(string(provider.GCP), "GCP_SECRET_NAMES not set")
	}

	projectID, err := p.resolveProjectID(ctx)
	if err != nil {
		return nil, err
	}

	if err := p.ensureClient(ctx); err != nil {
		return nil, err
	}

	secrets := []provider.Secret{}
	for _, name := range p.cfg.SecretNames {
		resp, err := p.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
			Name: fmt.Sprintf("projects/%s/secrets/%s/versions/latest", projectID, name),
		})
		if err != nil {
			return nil, p.classify("accessing secret "+name, err)
		}
		if resp.GetPayload() == nil {
			continue
		}
		secrets = append(secrets, provider.Secret{
			Label: name,
			Name:  naming.Normalize(p.cfg.Prefix, name),
			Value: strings.TrimSpace(string(resp.GetPayload().GetData())),
		})
	}

	p.logger.Debug("gcp: %d secret(s) from project %s", len(secrets), projectID)
	return secrets, nil
}

// ListVersions enumerates the versions of one secret, in the order the
// API returns them. Version payloads are never read.
func (p *GCPProvider) ListVersions(ctx context.Context, name string) ([]SecretVersion, error) {
	if !p.cfg.Enabled {
		return nil, nil
	}

	projectID, err := p.resolveProjectID(ctx)
	if err != nil {
		return nil, err
	}
	if err := p.ensureClient(ctx); err != nil {
		return nil, err
	}

	raw, err := p.client.ListSecretVersions(ctx, &secretmanagerpb.ListSecretVersionsRequest{
		Parent: fmt.Sprintf("projects/%s/secrets/%s", projectID, name),
	})
	if err != nil {
		return nil, p.classify("listing versions of "+name, err)
	}

	versions := make([]SecretVersion, 0, len(raw))
	for _, v := range raw {
		sv := SecretVersion{Name: v.GetName(), State: v.GetState().String()}
		if t := v.GetCreateTime(); t != nil {
			sv.Created = t.AsTime()
		}
		versions = append(versions, sv)
	}
	return versions, nil
}

// HealthCheck reads the metadata of the first configured secret. Secret
// payloads are never accessed during a probe.
func (p *GCPProvider) HealthCheck(ctx context.Context) error {
	if !p.cfg.Enabled {
		return nil
	}
	if len(p.cfg.SecretNames) == 0 {
		return nil // not configured is vacuously healthy
	}

	projectID, err := p.resolveProjectID(ctx)
	if err != nil {
		return err
	}
	if err := p.ensureClient(ctx); err != nil {
		return err
	}

	_, err = p.client.GetSecret(ctx, &secretmanagerpb.GetSecretRequest{
		Name: fmt.Sprintf("projects/%s/secrets/%s", projectID, p.cfg.SecretNames[0]),
	})
	if err != nil {
		return p.classify("health probe", err)
	}
	return nil
}

// resolveProjectID finds a project id, in order: explicit configuration,
// the local gcloud configuration, the GCE metadata server.
func (p *GCPProvider) resolveProjectID(ctx context.Context) (string, error) {
	if p.projectID != "" {
		return p.projectID, nil
	}
	if p.cfg.ProjectID != "" {
		p.projectID = p.cfg.ProjectID
		return p.projectID, nil
	}

	stdout, _, err := p.executor.Execute(ctx, "gcloud", "config", "get-value", "project")
	if err == nil {
		if id := strings.TrimSpace(string(stdout)); id != "" && id != "(unset)" {
			p.projectID = id
			return p.projectID, nil
		}
	}

	if metadata.OnGCE() {
		id, err := metadata.ProjectIDWithContext(ctx)
		if err == nil && id != "" {
			p.projectID = id
			return p.projectID, nil
		}
	}

	return "", sberrors.NotConfigured(string(provider.GCP), "no GCP project id via GCP_PROJECT_ID, gcloud, or metadata")
}

// ensureClient builds the SDK client unless one was injected. An explicit
// credentials file must exist on disk; a typoed path would otherwise
// surface as an opaque auth error much later.
func (p *GCPProvider) ensureClient(ctx context.Context) error {
	if p.client != nil {
		return nil
	}

	var opts []option.ClientOption
	if p.cfg.CredentialsFile != "" {
		if _, err := os.Stat(p.cfg.CredentialsFile); err != nil {
			return sberrors.ValidationFailure(string(provider.GCP),
				"credentials file "+p.cfg.CredentialsFile+" not readable")
		}
		opts = append(opts, option.WithCredentialsFile(p.cfg.CredentialsFile))
	}

	client, err := secretmanager.NewClient(ctx, opts...)
	if err != nil {
		if strings.Contains(err.Error(), "could not find default credentials") {
			return sberrors.NotConfigured(string(provider.GCP), "no usable GCP credentials")
		}
		return sberrors.TransportFailure(string(provider.GCP), "creating Secret Manager client failed", err)
	}
	p.client = &apiSecretsClient{Client: client}
	return nil
}

// classify maps Secret Manager errors onto the failure taxonomy.
func (p *GCPProvider) classify(operation string, err error) error {
	errStr := err.Error()
	switch {
	case containsAny(errStr, "PermissionDenied", "Unauthenticated", "invalid_grant", "oauth2"):
		return sberrors.AuthFailure(string(provider.GCP), operation+" denied by GCP", err)
	case strings.Contains(errStr, "could not find default credentials"):
		return sberrors.NotConfigured(string(provider.GCP), "no usable GCP credentials")
	default:
		return sberrors.TransportFailure(string(provider.GCP), operation+" failed", err)
	}
}
