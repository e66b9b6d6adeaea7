package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Deven-0012/Cloud-281/internal/errors"
)

func TestLocalPutFetchRoundTrip(t *testing.T) {
	t.Parallel()

	store := NewLocalStore(t.TempDir())
	ctx := context.Background()

	data := []byte("RIFF....WAVE")
	require.NoError(t, store.Put(ctx, "CAR-9/2026/capture.wav", data))

	got, err := store.Fetch(ctx, "CAR-9/2026/capture.wav")
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestLocalFetchMissingIsNotFound(t *testing.T) {
	t.Parallel()

	store := NewLocalStore(t.TempDir())
	_, err := store.Fetch(context.Background(), "CAR-9/nope.wav")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
	assert.False(t, errors.IsRetryable(err))
}

func TestLocalRejectsTraversal(t *testing.T) {
	t.Parallel()

	store := NewLocalStore(t.TempDir())
	err := store.Put(context.Background(), "../../etc/passwd", []byte("x"))
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}
