package errors_test

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	sberrors "github.com/systmms/secretboot/internal/errors"
)

func TestCategoryLabels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		category sberrors.Category
		want     string
	}{
		{sberrors.CategoryNotConfigured, "not configured"},
		{sberrors.CategoryDependencyMissing, "dependency missing"},
		{sberrors.CategoryAuth, "authentication failure"},
		{sberrors.CategoryTransport, "transport failure"},
		{sberrors.CategoryValidation, "validation failure"},
		{sberrors.CategoryUnknown, "unknown failure"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.category.String())
	}
}

func TestClassifyError(t *testing.T) {
	t.Parallel()

	err := sberrors.AuthFailure("vault", "token self-lookup failed", nil)
	assert.Equal(t, sberrors.CategoryAuth, sberrors.ClassifyError(err))

	wrapped := stderrors.Join(stderrors.New("outer"), err)
	assert.Equal(t, sberrors.CategoryAuth, sberrors.ClassifyError(wrapped))

	assert.Equal(t, sberrors.CategoryUnknown, sberrors.ClassifyError(stderrors.New("plain")))
	assert.Equal(t, sberrors.CategoryUnknown, sberrors.ClassifyError(nil))
}

func TestIsNotConfigured(t *testing.T) {
	t.Parallel()

	assert.True(t, sberrors.IsNotConfigured(sberrors.NotConfigured("aws", "AWS_SECRET_NAME not set")))
	assert.False(t, sberrors.IsNotConfigured(sberrors.TransportFailure("aws", "request failed", nil)))
}

func TestIsFatalCandidate(t *testing.T) {
	t.Parallel()

	assert.True(t, sberrors.IsFatalCandidate(sberrors.AuthFailure("azure", "bad client secret", nil)))
	assert.True(t, sberrors.IsFatalCandidate(sberrors.TransportFailure("gcp", "unreachable", nil)))
	assert.True(t, sberrors.IsFatalCandidate(sberrors.ValidationFailure("", "invalid provider id")))
	assert.False(t, sberrors.IsFatalCandidate(sberrors.NotConfigured("docker", "directory missing")))
	assert.False(t, sberrors.IsFatalCandidate(sberrors.DependencyMissing("1password", "op CLI not found", nil)))
}

// The rendered error string must never include the wrapped error: backend
// responses can carry secret material.
func TestErrorStringExcludesWrappedError(t *testing.T) {
	t.Parallel()

	inner := stderrors.New(`{"password":"MARKER_VALUE_1234"}`)
	err := sberrors.TransportFailure("vault", "unexpected response status", inner)

	assert.NotContains(t, err.Error(), "MARKER_VALUE_1234")
	assert.Contains(t, err.Error(), "provider vault")
	assert.Contains(t, err.Error(), "transport failure")

	// The inner error is still reachable for errors.Is.
	assert.True(t, stderrors.Is(err, inner))
}
