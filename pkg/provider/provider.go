// Package provider defines the contract shared by all secret provider
// adapters in secretboot.
//
// Every adapter implements the same two-operation contract: Load fetches
// secrets from its backend, HealthCheck probes connectivity without ever
// touching secret values. Adapters never write to the process environment
// themselves; the orchestrator is the only environment writer.
//
// # Security Considerations
//
// Adapters must:
//   - Never log secret values or raw backend response bodies
//   - Convert internal failures into categorized errors (internal/errors)
//     instead of terminating the process
//   - Support context cancellation on blocking calls
package provider

import (
	"context"
	"regexp"
	"strings"
)

// ID identifies a provider. Values are produced only by ParseID or the
// canonical constants in the registry; raw configuration strings are
// never used for lookup or dispatch.
type ID string

// Canonical provider identifiers.
const (
	Docker      ID = "docker"
	OnePassword ID = "1password"
	Vault       ID = "vault"
	AWS         ID = "aws"
	Azure       ID = "azure"
	GCP         ID = "gcp"
)

// idPattern is the strict shape every provider identifier must match
// after trimming. Anything else, uppercase and shell metacharacters
// included, is rejected before any registry lookup happens.
var idPattern = regexp.MustCompile(`^[a-z0-9-]+$`)

// ValidateName trims surrounding whitespace and checks the result against
// the strict identifier pattern. It returns the trimmed name. The check
// runs before any lookup or dispatch: configuration-sourced strings are
// data, never executable identifiers.
func ValidateName(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", false
	}
	return trimmed, idPattern.MatchString(trimmed)
}

// Secret is one resolved secret: the backend's label for it, the derived
// environment variable name, and the value. Secrets live in process
// memory only for the duration of the load call that produced them and
// are never serialized, cached, or logged.
type Secret struct {
	Label string
	Name  string
	Value string
}

// Provider is the uniform adapter contract.
type Provider interface {
	// ID returns the provider's canonical identifier.
	ID() ID

	// Load fetches secrets from the backend. A disabled provider returns
	// (nil, nil): a no-op success. An enabled provider that finds nothing
	// to load returns an empty, non-nil slice. Missing required settings
	// yield a not-configured error; auth and transport problems yield
	// their respective categories (see internal/errors).
	Load(ctx context.Context) ([]Secret, error)

	// HealthCheck probes the backend. It returns nil when the provider is
	// healthy or disabled, and never returns secret material.
	HealthCheck(ctx context.Context) error
}

// Health is the tri-state result of a provider health probe.
type Health int

const (
	HealthDisabled Health = iota
	HealthHealthy
	HealthUnhealthy
)

// String returns the display label for a health state.
func (h Health) String() string {
	switch h {
	case HealthDisabled:
		return "disabled"
	case HealthHealthy:
		return "healthy"
	case HealthUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}
