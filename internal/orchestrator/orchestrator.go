// Package orchestrator drives the provider load sequence. It is the only
// place that writes to the process environment and the only place that
// decides whether a provider failure aborts the run.
package orchestrator

import (
	"context"
	"os"
	"strings"

	"github.com/systmms/secretboot/internal/config"
	sberrors "github.com/systmms/secretboot/internal/errors"
	"github.com/systmms/secretboot/internal/logging"
	"github.com/systmms/secretboot/internal/providers"
	"github.com/systmms/secretboot/pkg/exec"
	"github.com/systmms/secretboot/pkg/provider"
)

// FatalError wraps a provider failure that aborted a fail-fast run. The
// command layer maps it to exit code 2.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string {
	return "aborted: " + e.Err.Error()
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// Outcome records what happened to one provider during a load pass.
type Outcome struct {
	ID      provider.ID
	Count   int   // variables exported
	Skipped bool  // not configured or disabled
	Err     error // non-fatal failure, nil on success or skip
}

// Summary aggregates one load pass.
type Summary struct {
	Outcomes []Outcome
	Total    int
}

// HealthStatus is one provider's health probe result.
type HealthStatus struct {
	ID    provider.ID
	State provider.Health
	Err   error
}

// Orchestrator loads secrets from the configured providers in priority
// order and exports them into the process environment.
type Orchestrator struct {
	cfg      *config.Settings
	logger   *logging.Logger
	executor exec.CommandExecutor
	setenv   func(key, value string) error
	build    func(d providers.Descriptor) provider.Provider

	// exported collects the values written so far, so a later provider's
	// error text can be scrubbed before it reaches the log.
	exported []string
}

// Option is a functional option for configuring the orchestrator.
type Option func(*Orchestrator)

// WithSetenv replaces the environment writer (for testing)
func WithSetenv(fn func(key, value string) error) Option {
	return func(o *Orchestrator) {
		o.setenv = fn
	}
}

// WithProviderFactory replaces the adapter constructor (for testing)
func WithProviderFactory(fn func(d providers.Descriptor) provider.Provider) Option {
	return func(o *Orchestrator) {
		o.build = fn
	}
}

// WithExecutor sets the command executor handed to CLI-backed adapters.
func WithExecutor(executor exec.CommandExecutor) Option {
	return func(o *Orchestrator) {
		o.executor = executor
	}
}

// New creates an orchestrator over the given settings.
func New(cfg *config.Settings, logger *logging.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:      cfg,
		logger:   logger,
		executor: exec.DefaultExecutor(),
		setenv:   os.Setenv,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.build == nil {
		o.build = func(d providers.Descriptor) provider.Provider {
			return d.New(o.cfg, o.logger, o.executor)
		}
	}
	return o
}

// LoadAll runs the full load sequence. Every id in the priority list is
// visited; a provider that exports a variable already set by an earlier
// one overwrites it. The returned error is non-nil only for a fail-fast
// abort, and is always a *FatalError.
func (o *Orchestrator) LoadAll(ctx context.Context) (*Summary, error) {
	summary := &Summary{}
	if !o.cfg.Enabled {
		o.logger.Debug("secret loading disabled, nothing to do")
		return summary, nil
	}

	for _, raw := range strings.Split(o.cfg.Priority, ",") {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		desc, err := providers.Resolve(raw)
		if err != nil {
			o.logger.Error("%s", o.redactErr(err))
			if o.cfg.FailFast {
				return summary, &FatalError{Err: err}
			}
			summary.Outcomes = append(summary.Outcomes, Outcome{Err: err})
			continue
		}

		outcome := o.loadOne(ctx, desc)
		summary.Outcomes = append(summary.Outcomes, outcome)
		summary.Total += outcome.Count

		if outcome.Err != nil && o.cfg.FailFast && sberrors.IsFatalCandidate(outcome.Err) {
			return summary, &FatalError{Err: outcome.Err}
		}
	}

	o.logger.Info("loaded %d secret(s) from %d provider(s)", summary.Total, summary.loadedProviders())
	return summary, nil
}

// loadOne runs a single provider and exports its secrets. All failure
// handling policy lives here; the adapters only classify.
func (o *Orchestrator) loadOne(ctx context.Context, desc providers.Descriptor) Outcome {
	outcome := Outcome{ID: desc.ID}

	secrets, err := o.build(desc).Load(ctx)
	if err != nil {
		switch sberrors.ClassifyError(err) {
		case sberrors.CategoryNotConfigured:
			o.logger.Debug("%s: not configured, skipping", desc.ID)
			outcome.Skipped = true
		case sberrors.CategoryDependencyMissing:
			o.logger.Warn("%s skipped: %s", desc.ID, o.redactErr(err))
			outcome.Err = err
		case sberrors.CategoryValidation:
			o.logger.Error("%s", o.redactErr(err))
			outcome.Err = err
		default:
			o.logger.Warn("%s failed: %s", desc.ID, o.redactErr(err))
			outcome.Err = err
		}
		return outcome
	}
	// Adapters reserve the nil slice for the disabled case; an enabled
	// provider with nothing to load returns an empty one.
	if secrets == nil {
		o.logger.Debug("%s: disabled, skipping", desc.ID)
		outcome.Skipped = true
		return outcome
	}

	for _, secret := range secrets {
		if err := o.setenv(secret.Name, secret.Value); err != nil {
			o.logger.Warn("%s: exporting %s failed: %v", desc.ID, secret.Name, err)
			continue
		}
		o.exported = append(o.exported, secret.Value)
		outcome.Count++
	}
	o.logger.Info("%s: exported %d variable(s)", desc.ID, outcome.Count)
	return outcome
}

// redactErr renders err with any already-exported value scrubbed. A
// backend error can echo request parameters that embed a value loaded by
// an earlier provider.
func (o *Orchestrator) redactErr(err error) string {
	return logging.Redact(err.Error(), o.exported)
}

// HealthAll probes every registered provider, regardless of the priority
// list. A probe failure is reported in the status, never as an error:
// health reporting itself always succeeds.
func (o *Orchestrator) HealthAll(ctx context.Context) []HealthStatus {
	statuses := make([]HealthStatus, 0, len(providers.All()))
	for _, desc := range providers.All() {
		status := HealthStatus{ID: desc.ID}
		if !o.providerEnabled(desc.ID) {
			status.State = provider.HealthDisabled
		} else if err := o.build(desc).HealthCheck(ctx); err != nil {
			status.State = provider.HealthUnhealthy
			status.Err = err
		} else {
			status.State = provider.HealthHealthy
		}
		statuses = append(statuses, status)
	}
	return statuses
}

func (o *Orchestrator) providerEnabled(id provider.ID) bool {
	switch id {
	case provider.Docker:
		return o.cfg.Docker.Enabled
	case provider.OnePassword:
		return o.cfg.OnePassword.Enabled
	case provider.Vault:
		return o.cfg.Vault.Enabled
	case provider.AWS:
		return o.cfg.AWS.Enabled
	case provider.Azure:
		return o.cfg.Azure.Enabled
	case provider.GCP:
		return o.cfg.GCP.Enabled
	}
	return false
}

func (s *Summary) loadedProviders() int {
	n := 0
	for _, outcome := range s.Outcomes {
		if outcome.Count > 0 {
			n++
		}
	}
	return n
}
