package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/systmms/secretboot/internal/config"
	sberrors "github.com/systmms/secretboot/internal/errors"
	"github.com/systmms/secretboot/internal/logging"
	"github.com/systmms/secretboot/internal/naming"
	"github.com/systmms/secretboot/pkg/provider"
)

// FallbackAWSRegion is used when neither explicit configuration nor the
// SDK default chain yields a region.
const FallbackAWSRegion = "us-east-1"

// SecretsManagerClientAPI defines the Secrets Manager operations used by
// the adapter. This allows for mocking in tests.
type SecretsManagerClientAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// STSClientAPI defines the STS operations used by the health check.
type STSClientAPI interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// AWSProvider loads one named secret from AWS Secrets Manager, expanding
// JSON-object payloads into one environment variable per key.
type AWSProvider struct {
	cfg    config.AWSSettings
	logger *logging.Logger
	client SecretsManagerClientAPI
	stsAPI STSClientAPI
}

// AWSProviderOption is a functional option for configuring the provider.
type AWSProviderOption func(*AWSProvider)

// WithSecretsManagerClient sets a custom Secrets Manager client (for testing)
func WithSecretsManagerClient(client SecretsManagerClientAPI) AWSProviderOption {
	return func(p *AWSProvider) {
		p.client = client
	}
}

// WithSTSClient sets a custom STS client (for testing)
func WithSTSClient(client STSClientAPI) AWSProviderOption {
	return func(p *AWSProvider) {
		p.stsAPI = client
	}
}

// NewAWSProvider creates an AWS Secrets Manager provider. SDK clients are
// created lazily on first use so that a disabled or unconfigured provider
// never touches the credential chain.
func NewAWSProvider(cfg config.AWSSettings, logger *logging.Logger, opts ...AWSProviderOption) *AWSProvider {
	p := &AWSProvider{cfg: cfg, logger: logger}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ID returns the provider's canonical identifier.
func (p *AWSProvider) ID() provider.ID {
	return provider.AWS
}

// Load fetches the configured secret and expands its payload.
func (p *AWSProvider) Load(ctx context.Context) ([]provider.Secret, error) {
	if !p.cfg.Enabled {
		return nil, nil
	}
	if p.cfg.SecretName == "" {
		return nil, sberrors.NotConfigured(string(provider.AWS), "AWS_SECRET_NAME not set")
	}

	if err := p.ensureClients(ctx); err != nil {
		return nil, err
	}

	input := &secretsmanager.GetSecretValueInput{
		SecretId: awssdk.String(p.cfg.SecretName),
	}
	if p.cfg.VersionID != "" {
		input.VersionId = awssdk.String(p.cfg.VersionID)
	} else if p.cfg.VersionStage != "" {
		input.VersionStage = awssdk.String(p.cfg.VersionStage)
	}

	result, err := p.client.GetSecretValue(ctx, input)
	if err != nil {
		return nil, p.classify("fetching secret "+p.cfg.SecretName, err)
	}

	// Payload shapes: a plain string, decoded binary, or a JSON object
	// that expands into one variable per key.
	var raw string
	switch {
	case result.SecretString != nil:
		raw = *result.SecretString
	case result.SecretBinary != nil:
		// The SDK base64-decodes SecretBinary on the way in.
		raw = string(result.SecretBinary)
	default:
		return nil, sberrors.TransportFailure(string(provider.AWS), "secret "+p.cfg.SecretName+" has no value", nil)
	}

	secrets := p.expand(raw)
	p.logger.Debug("aws: secret %s expanded to %d variable(s)", p.cfg.SecretName, len(secrets))
	return secrets, nil
}

// HealthCheck verifies the credential chain with an STS identity probe.
func (p *AWSProvider) HealthCheck(ctx context.Context) error {
	if !p.cfg.Enabled {
		return nil
	}
	if err := p.ensureClients(ctx); err != nil {
		return err
	}
	if _, err := p.stsAPI.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{}); err != nil {
		return sberrors.AuthFailure(string(provider.AWS), "caller identity probe failed", err)
	}
	return nil
}

// ensureClients builds the SDK clients unless they were injected.
func (p *AWSProvider) ensureClients(ctx context.Context) error {
	if p.client != nil && p.stsAPI != nil {
		return nil
	}

	var configOpts []func(*awsconfig.LoadOptions) error
	if p.cfg.Region != "" {
		configOpts = append(configOpts, awsconfig.WithRegion(p.cfg.Region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, configOpts...)
	if err != nil {
		return sberrors.NotConfigured(string(provider.AWS), "AWS SDK configuration unavailable")
	}
	// Region precedence: explicit setting, SDK default chain, fallback.
	if awsCfg.Region == "" {
		awsCfg.Region = FallbackAWSRegion
	}

	if p.client == nil {
		p.client = secretsmanager.NewFromConfig(awsCfg)
	}
	if p.stsAPI == nil {
		p.stsAPI = sts.NewFromConfig(awsCfg)
	}
	return nil
}

// expand turns a raw payload into secrets. A JSON object becomes one
// variable per key; everything else becomes a single variable named after
// the secret.
func (p *AWSProvider) expand(raw string) []provider.Secret {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "{") {
		var obj map[string]interface{}
		if err := json.Unmarshal([]byte(trimmed), &obj); err == nil {
			secrets := make([]provider.Secret, 0, len(obj))
			for key, val := range obj {
				secrets = append(secrets, provider.Secret{
					Label: key,
					Name:  naming.Normalize(p.cfg.Prefix, key),
					Value: stringifyJSONValue(val),
				})
			}
			return secrets
		}
	}

	return []provider.Secret{{
		Label: p.cfg.SecretName,
		Name:  naming.Normalize(p.cfg.Prefix, p.cfg.SecretName),
		Value: trimmed,
	}}
}

// classify maps AWS SDK errors onto the failure taxonomy. Auth-specific
// error codes distinguish an authentication failure from a provider that
// simply has no usable credentials.
func (p *AWSProvider) classify(operation string, err error) error {
	errStr := err.Error()
	switch {
	case containsAny(errStr,
		"AccessDenied", "UnauthorizedOperation", "UnrecognizedClientException",
		"InvalidClientTokenId", "ExpiredToken", "InvalidSignatureException", "SignatureDoesNotMatch"):
		return sberrors.AuthFailure(string(provider.AWS), operation+" denied by AWS", err)
	case containsAny(errStr, "no EC2 IMDS role found", "failed to retrieve credentials", "NoCredentialProviders", "static credentials are empty"):
		return sberrors.NotConfigured(string(provider.AWS), "no usable AWS credentials")
	default:
		return sberrors.TransportFailure(string(provider.AWS), operation+" failed", err)
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func stringifyJSONValue(val interface{}) string {
	switch v := val.(type) {
	case string:
		return v
	case float64:
		// JSON numbers arrive as float64; keep integers clean.
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprintf("%g", v)
	case bool:
		return fmt.Sprintf("%t", v)
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
