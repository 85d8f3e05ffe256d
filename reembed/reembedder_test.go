package reembed

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/poiesic/larder/ai/mock"
	"github.com/poiesic/larder/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(batchSize, interval int) *Config {
	return &Config{
		BatchSize:      batchSize,
		ReportInterval: interval,
		Policy:         testPolicy(),
	}
}

func TestNewReembedder_Validation(t *testing.T) {
	repo := setupTestDB(t)
	embedder := mock.NewMockEmbedder()

	_, err := NewReembedder(nil, embedder, nil, nil)
	assert.ErrorIs(t, err, ErrRepositoryRequired)

	_, err = NewReembedder(repo, nil, nil, nil)
	assert.ErrorIs(t, err, ErrEmbedderRequired)

	_, err = NewReembedder(repo, embedder, &Config{BatchSize: 1}, nil)
	assert.ErrorIs(t, err, retry.ErrInvalidMaxAttempts)

	r, err := NewReembedder(repo, embedder, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultBatchSize, r.iterator.batchSize)
}

func TestReembedder_Run(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	addRecipes(t, repo, 10)

	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = unnormalized

	var buf bytes.Buffer
	reembedder, err := NewReembedder(repo, embedder, testConfig(3, 3), &buf)
	require.NoError(t, err)

	written, err := reembedder.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, written)
	assert.Equal(t, 4, embedder.CallCount(), "3+3+3+1")

	updated, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, updated, 10)
	for _, r := range updated {
		require.NotEmpty(t, r.Vector, "recipe %s should have embedding", r.Recipe.Key)
		assert.InDelta(t, 1.0, magnitude(r.Vector), 0.01, "vector should be normalized")
	}

	output := buf.String()
	assert.Contains(t, output, "Starting reembedding of 10 recipes")
	assert.Contains(t, output, "10/10")
	assert.Contains(t, output, "Reembedding complete. Processed 10 recipes")
}

func TestReembedder_EmptyIndex(t *testing.T) {
	var buf bytes.Buffer
	reembedder, err := NewReembedder(setupTestDB(t), mock.NewMockEmbedder(), DefaultConfig(), &buf)
	require.NoError(t, err)

	written, err := reembedder.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, written)
	assert.Contains(t, buf.String(), "0 recipes")
}

func TestReembedder_ContextCancellation(t *testing.T) {
	repo := setupTestDB(t)
	addRecipes(t, repo, 10)
	ctx, cancel := context.WithCancel(context.Background())

	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		if embedder.CallCount() == 2 {
			cancel()
		}
		return unnormalized(ctx, texts)
	}

	reembedder, err := NewReembedder(repo, embedder, testConfig(3, 3), nil)
	require.NoError(t, err)

	_, err = reembedder.Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, embedder.CallCount())
}

func TestReembedder_EmbeddingError(t *testing.T) {
	repo := setupTestDB(t)
	addRecipes(t, repo, 4)

	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		if embedder.CallCount() > 1 {
			return nil, errors.New("status 500: persistent error")
		}
		return unnormalized(ctx, texts)
	}

	reembedder, err := NewReembedder(repo, embedder, testConfig(2, 2), nil)
	require.NoError(t, err)

	written, err := reembedder.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "persistent error")
	assert.Equal(t, 2, written, "first batch was written before the failure")
	assert.Equal(t, 4, embedder.CallCount(), "one success then three attempts")
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.Greater(t, config.BatchSize, 0)
	assert.Greater(t, config.ReportInterval, 0)
	assert.Equal(t, retry.DefaultPolicy().MaxAttempts, config.Policy.MaxAttempts)
}
