package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilderDefaults(t *testing.T) {
	t.Parallel()

	err := Newf("boom").Build()
	assert.Equal(t, ComponentUnknown, err.Component)
	assert.Equal(t, CategoryGeneric, err.Category)
	assert.False(t, err.Retryable())
}

func TestBuilderFields(t *testing.T) {
	t.Parallel()

	err := Newf("fetch failed").
		Component("storage").
		Category(CategoryStorage).
		Context("locator", "CAR-1/171234.wav").
		Build()

	assert.Equal(t, "storage", err.Component)
	assert.Equal(t, "storage", err.GetCategory())
	assert.Equal(t, "CAR-1/171234.wav", err.GetContext()["locator"])
	assert.True(t, err.Retryable(), "storage errors are transient")
}

func TestRetryableClassification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		category  ErrorCategory
		retryable bool
	}{
		{"timeout is transient", CategoryTimeout, true},
		{"queue is transient", CategoryQueue, true},
		{"network is transient", CategoryNetwork, true},
		{"validation is permanent", CategoryValidation, false},
		{"conflict is permanent", CategoryConflict, false},
		{"database is permanent", CategoryDatabase, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := Newf("x").Category(tt.category).Build()
			assert.Equal(t, tt.retryable, IsRetryable(err))
		})
	}
}

func TestRetryableOverride(t *testing.T) {
	t.Parallel()

	// A database write can be declared transient when the store is known to
	// recover, and a network failure permanent when the endpoint is invalid.
	transientDB := Newf("deadlock").Category(CategoryDatabase).Retryable(true).Build()
	assert.True(t, IsRetryable(transientDB))

	permanentNet := Newf("no such host").Category(CategoryNetwork).Retryable(false).Build()
	assert.False(t, IsRetryable(permanentNet))
}

func TestCategoryHelpersUnwrapChain(t *testing.T) {
	t.Parallel()

	inner := Newf("already closed").Category(CategoryConflict).Build()
	wrapped := fmt.Errorf("acknowledge alert: %w", inner)

	assert.True(t, IsConflict(wrapped))
	assert.False(t, IsNotFound(wrapped))
	assert.False(t, IsRetryable(wrapped))
}

func TestIsMatchesCategory(t *testing.T) {
	t.Parallel()

	a := Newf("a").Category(CategoryNotFound).Build()
	b := Newf("b").Category(CategoryNotFound).Build()
	require.True(t, Is(a, b), "enhanced errors match on category")
}

func TestPlainErrorIsPermanent(t *testing.T) {
	t.Parallel()
	assert.False(t, IsRetryable(fmt.Errorf("plain")))
}
