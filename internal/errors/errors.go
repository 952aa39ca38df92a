// Package errors defines the failure taxonomy shared by all secret
// providers and the orchestrator.
//
// Every adapter converts its internal failures into a *ProviderError
// carrying one of the categories below. The orchestrator is the single
// point that decides whether a given category is fatal; adapters never
// terminate the process themselves.
package errors

import (
	"errors"
	"fmt"
)

// Category classifies a provider failure.
type Category int

const (
	// CategoryUnknown is the zero value for errors that carry no category.
	CategoryUnknown Category = iota

	// CategoryNotConfigured means the provider is disabled or a required
	// setting is absent. Silent no-op, never logged as an error.
	CategoryNotConfigured

	// CategoryDependencyMissing means a required CLI or tool is absent.
	// Logged as a warning, then skipped.
	CategoryDependencyMissing

	// CategoryAuth means authentication with the backend failed.
	// Warning, or abort under fail-fast.
	CategoryAuth

	// CategoryTransport means the backend was unreachable or returned a
	// malformed response. Warning, or abort under fail-fast.
	CategoryTransport

	// CategoryValidation means a malformed or unsafe provider identifier
	// or setting was rejected before any dispatch. Always logged as an
	// error, abort under fail-fast.
	CategoryValidation
)

// String returns the log label for a category.
func (c Category) String() string {
	switch c {
	case CategoryNotConfigured:
		return "not configured"
	case CategoryDependencyMissing:
		return "dependency missing"
	case CategoryAuth:
		return "authentication failure"
	case CategoryTransport:
		return "transport failure"
	case CategoryValidation:
		return "validation failure"
	default:
		return "unknown failure"
	}
}

// ProviderError is a categorized provider failure.
//
// Error() renders only the provider id, category label, and message. The
// wrapped error stays reachable through Unwrap for errors.Is/As but is
// deliberately excluded from the rendered string: backend SDK errors can
// embed raw response bodies, and those must never reach a log stream.
type ProviderError struct {
	Provider string
	Category Category
	Message  string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Provider == "" {
		return fmt.Sprintf("%s: %s", e.Category, e.Message)
	}
	return fmt.Sprintf("provider %s: %s: %s", e.Provider, e.Category, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NotConfigured reports a disabled provider or an absent required setting.
func NotConfigured(provider, message string) error {
	return &ProviderError{Provider: provider, Category: CategoryNotConfigured, Message: message}
}

// DependencyMissing reports an absent CLI or tool.
func DependencyMissing(provider, message string, err error) error {
	return &ProviderError{Provider: provider, Category: CategoryDependencyMissing, Message: message, Err: err}
}

// AuthFailure reports a failed authentication or an auth/config error.
func AuthFailure(provider, message string, err error) error {
	return &ProviderError{Provider: provider, Category: CategoryAuth, Message: message, Err: err}
}

// TransportFailure reports an unreachable backend or malformed response.
func TransportFailure(provider, message string, err error) error {
	return &ProviderError{Provider: provider, Category: CategoryTransport, Message: message, Err: err}
}

// ValidationFailure reports a malformed or unsafe identifier or setting.
func ValidationFailure(provider, message string) error {
	return &ProviderError{Provider: provider, Category: CategoryValidation, Message: message}
}

// ClassifyError returns the category carried by err, or CategoryUnknown.
func ClassifyError(err error) Category {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Category
	}
	return CategoryUnknown
}

// IsNotConfigured reports whether err is a not-configured condition.
func IsNotConfigured(err error) bool {
	return ClassifyError(err) == CategoryNotConfigured
}

// IsFatalCandidate reports whether err belongs to a category that aborts
// the load sequence when fail-fast is enabled.
func IsFatalCandidate(err error) bool {
	switch ClassifyError(err) {
	case CategoryAuth, CategoryTransport, CategoryValidation:
		return true
	}
	return false
}
