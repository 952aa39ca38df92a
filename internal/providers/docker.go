package providers

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/systmms/secretboot/internal/config"
	sberrors "github.com/systmms/secretboot/internal/errors"
	"github.com/systmms/secretboot/internal/logging"
	"github.com/systmms/secretboot/internal/naming"
	"github.com/systmms/secretboot/pkg/provider"
)

// DockerProvider reads file-mounted Docker secrets from a directory,
// one regular file per secret. The filename becomes the environment
// variable name after normalization; the trimmed file content becomes
// the value.
type DockerProvider struct {
	cfg    config.DockerSettings
	logger *logging.Logger
}

// NewDockerProvider creates a Docker file secrets provider.
func NewDockerProvider(cfg config.DockerSettings, logger *logging.Logger) *DockerProvider {
	return &DockerProvider{cfg: cfg, logger: logger}
}

// ID returns the provider's canonical identifier.
func (p *DockerProvider) ID() provider.ID {
	return provider.Docker
}

// Load reads every eligible secret file under the configured directory.
// Dotfiles, zero-byte files, and non-regular entries are skipped; an
// allow-list, when configured, restricts loading to the named files.
func (p *DockerProvider) Load(ctx context.Context) ([]provider.Secret, error) {
	if !p.cfg.Enabled {
		return nil, nil
	}

	entries, err := os.ReadDir(p.cfg.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, sberrors.NotConfigured(string(provider.Docker), "secrets directory "+p.cfg.Path+" does not exist")
		}
		return nil, sberrors.TransportFailure(string(provider.Docker), "cannot read secrets directory "+p.cfg.Path, err)
	}

	// Non-nil even when empty: a nil slice is reserved for the disabled
	// case above.
	secrets := []provider.Secret{}
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, sberrors.TransportFailure(string(provider.Docker), "load canceled", err)
		}

		name := entry.Name()
		if strings.HasPrefix(name, ".") || !entry.Type().IsRegular() {
			continue
		}
		if !p.allowed(name) {
			continue
		}

		data, err := os.ReadFile(filepath.Join(p.cfg.Path, name))
		if err != nil {
			p.logger.Warn("docker: skipping unreadable secret file %s", name)
			continue
		}
		if len(data) == 0 {
			continue
		}

		secrets = append(secrets, provider.Secret{
			Label: name,
			Name:  p.envName(name),
			Value: strings.TrimSpace(string(data)),
		})
	}

	p.logger.Debug("docker: %d secret file(s) in %s", len(secrets), p.cfg.Path)
	return secrets, nil
}

// HealthCheck verifies the secrets directory is readable.
func (p *DockerProvider) HealthCheck(_ context.Context) error {
	if !p.cfg.Enabled {
		return nil
	}
	info, err := os.Stat(p.cfg.Path)
	if err != nil {
		if os.IsNotExist(err) {
			// No mount is a valid deployment, not a failure.
			return nil
		}
		return sberrors.TransportFailure(string(provider.Docker), "cannot stat secrets directory "+p.cfg.Path, err)
	}
	if !info.IsDir() {
		return sberrors.TransportFailure(string(provider.Docker), p.cfg.Path+" is not a directory", nil)
	}
	return nil
}

func (p *DockerProvider) allowed(name string) bool {
	if len(p.cfg.Allow) == 0 {
		return true
	}
	for _, want := range p.cfg.Allow {
		if name == want {
			return true
		}
	}
	return false
}

func (p *DockerProvider) envName(filename string) string {
	if p.cfg.Uppercase {
		return naming.Normalize(p.cfg.Prefix, filename)
	}
	return naming.Sanitize(p.cfg.Prefix, filename)
}
