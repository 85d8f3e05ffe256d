package badger

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/poiesic/larder/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenBackend_InMemory(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	require.NotNil(t, backend)
	defer backend.Close()

	assert.False(t, backend.IsClosed())
}

func TestOpenBackend_FileSystem(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "db")
	backend, err := OpenBackend(dir, false)
	require.NoError(t, err)
	defer backend.Close()

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestOpenBackend_PathIsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))

	_, err := OpenBackend(path, false)
	assert.Error(t, err)
}

func TestBackendClose(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)

	require.NoError(t, backend.Close())
	assert.True(t, backend.IsClosed())

	// Closing twice is harmless
	assert.NoError(t, backend.Close())
}

func TestWithTx_Closed(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	require.NoError(t, backend.Close())

	err = backend.WithTransaction(context.Background(), func(ctx context.Context) error {
		return nil
	})
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
}

func TestWithTransaction(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	defer backend.Close()

	ctx := context.Background()

	t.Run("successful transaction", func(t *testing.T) {
		err := backend.WithTransaction(ctx, func(ctx context.Context) error {
			return nil
		})
		require.NoError(t, err)
	})

	t.Run("failed transaction", func(t *testing.T) {
		err := backend.WithTransaction(ctx, func(ctx context.Context) error {
			return assert.AnError
		})
		assert.Equal(t, assert.AnError, err)
	})
}

func TestDotProduct(t *testing.T) {
	tests := []struct {
		name     string
		a        []float32
		b        []float32
		expected float32
	}{
		{"identical vectors", []float32{1, 0, 0}, []float32{1, 0, 0}, 1},
		{"orthogonal vectors", []float32{1, 0, 0}, []float32{0, 1, 0}, 0},
		{"opposite vectors", []float32{1, 0, 0}, []float32{-1, 0, 0}, -1},
		{"general case", []float32{0.6, 0.8}, []float32{0.8, 0.6}, 0.96},
		{"different lengths use min", []float32{1, 2, 3}, []float32{1, 2}, 5},
		{"empty vectors", []float32{}, []float32{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, dotProduct(tt.a, tt.b), 0.0001)
		})
	}
}
