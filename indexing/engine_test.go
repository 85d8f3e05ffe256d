package indexing

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/poiesic/larder/ai/mock"
	"github.com/poiesic/larder/core"
	"github.com/poiesic/larder/retry"
	"github.com/poiesic/larder/storage"
	"github.com/poiesic/larder/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubRepo overrides selected RecipeRepository calls on top of a real one.
type stubRepo struct {
	storage.RecipeRepository

	mu          sync.Mutex
	ensureErr   error
	ensureCalls int
	bulkFunc    func(ctx context.Context, recipes ...*core.IndexedRecipe) (int, error)
	insertFunc  func(ctx context.Context, recipe *core.IndexedRecipe) error
	bulkCalls   int
	insertCalls int
}

func (s *stubRepo) EnsureCollection(ctx context.Context) error {
	s.mu.Lock()
	s.ensureCalls++
	err := s.ensureErr
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.RecipeRepository.EnsureCollection(ctx)
}

func (s *stubRepo) BulkUpsert(ctx context.Context, recipes ...*core.IndexedRecipe) (int, error) {
	s.mu.Lock()
	s.bulkCalls++
	fn := s.bulkFunc
	s.mu.Unlock()
	if fn != nil {
		return fn(ctx, recipes...)
	}
	return s.RecipeRepository.BulkUpsert(ctx, recipes...)
}

func (s *stubRepo) Insert(ctx context.Context, recipe *core.IndexedRecipe) error {
	s.mu.Lock()
	s.insertCalls++
	fn := s.insertFunc
	s.mu.Unlock()
	if fn != nil {
		return fn(ctx, recipe)
	}
	return s.RecipeRepository.Insert(ctx, recipe)
}

func newStubRepo(t *testing.T) *stubRepo {
	t.Helper()
	recipes, _, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })
	return &stubRepo{RecipeRepository: recipes}
}

func newTestEngine(t *testing.T, repo storage.RecipeRepository, opts ...Option) *Engine {
	t.Helper()
	opts = append([]Option{WithRetryPolicy(retry.Once(0))}, opts...)
	engine, err := NewEngine(repo, opts...)
	require.NoError(t, err)
	return engine
}

func recipes(keys ...string) []*core.Recipe {
	out := make([]*core.Recipe, len(keys))
	for i, key := range keys {
		out[i] = &core.Recipe{Key: key, Title: "Recipe " + key, Description: "tasty " + key}
	}
	return out
}

func TestNewEngine_RequiresRepository(t *testing.T) {
	_, err := NewEngine(nil)
	assert.ErrorIs(t, err, ErrRepositoryRequired)
}

func TestNewEngine_RejectsEmptyPolicy(t *testing.T) {
	repo := newStubRepo(t)
	_, err := NewEngine(repo, WithRetryPolicy(retry.Policy{}))
	assert.Error(t, err)
}

func TestUpsertBatch_WritesAllRecords(t *testing.T) {
	ctx := context.Background()
	repo := newStubRepo(t)
	engine := newTestEngine(t, repo)

	report, err := engine.UpsertBatch(ctx, recipes("a", "b", "c"))
	require.NoError(t, err)

	assert.Equal(t, 3, report.Attempted)
	assert.Equal(t, 3, report.Succeeded)
	assert.True(t, report.Complete())
	assert.Empty(t, report.Skipped)
	assert.Empty(t, report.Failed)
	assert.Equal(t, 1, repo.bulkCalls)
	assert.Equal(t, 0, repo.insertCalls)

	stored, err := repo.GetByKey(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, core.RecipeID("b"), stored.Id)
	assert.Equal(t, 0, engine.Guard().InFlight())
}

func TestUpsertBatch_EmptyBatch(t *testing.T) {
	repo := newStubRepo(t)
	engine := newTestEngine(t, repo)

	report, err := engine.UpsertBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.True(t, report.Complete())
	assert.Equal(t, 0, repo.bulkCalls)
}

func TestUpsertBatch_ReingestUpdatesExistingRecord(t *testing.T) {
	ctx := context.Background()
	repo := newStubRepo(t)
	engine := newTestEngine(t, repo)

	_, err := engine.UpsertBatch(ctx, recipes("a"))
	require.NoError(t, err)
	first, err := repo.GetByKey(ctx, "a")
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	updated := recipes("a")
	updated[0].Title = "Better Recipe"
	report, err := engine.UpsertBatch(ctx, updated)
	require.NoError(t, err)
	assert.True(t, report.Complete())

	all, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, first.Id, all[0].Id)
	assert.Equal(t, "Better Recipe", all[0].Recipe.Title)
	assert.Equal(t, first.InsertedAt, all[0].InsertedAt)
	assert.True(t, all[0].UpdatedAt.After(first.UpdatedAt))
}

func TestUpsertBatch_CreatesCollectionOnFirstUse(t *testing.T) {
	backend, err := badger.OpenBackend("", true)
	require.NoError(t, err)
	defer backend.Close()

	engine := newTestEngine(t, badger.NewRecipeRepository(backend))
	report, err := engine.UpsertBatch(context.Background(), recipes("a"))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Succeeded)
}

func TestUpsertBatch_SetupFailureIsFatal(t *testing.T) {
	repo := newStubRepo(t)
	repo.ensureErr = errors.New("disk full")
	engine := newTestEngine(t, repo)

	report, err := engine.UpsertBatch(context.Background(), recipes("a"))
	assert.ErrorIs(t, err, ErrCollectionSetup)
	assert.Equal(t, 0, report.Attempted)
	assert.Equal(t, 0, repo.bulkCalls)

	// A later call retries setup.
	repo.ensureErr = nil
	report, err = engine.UpsertBatch(context.Background(), recipes("a"))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Succeeded)
}

func TestUpsertBatchWithPolicy_OverridesEnginePolicy(t *testing.T) {
	repo := newStubRepo(t)
	repo.ensureErr = errors.New("status 503: service unavailable")
	engine := newTestEngine(t, repo)

	policy := retry.Policy{MaxAttempts: 3, MinDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, Multiplier: 2}
	_, err := engine.UpsertBatchWithPolicy(context.Background(), policy, recipes("a"))
	assert.ErrorIs(t, err, ErrCollectionSetup)
	assert.Equal(t, 3, repo.ensureCalls)

	// The engine's own single-attempt policy still applies to UpsertBatch.
	_, err = engine.UpsertBatch(context.Background(), recipes("a"))
	assert.ErrorIs(t, err, ErrCollectionSetup)
	assert.Equal(t, 4, repo.ensureCalls)

	// A policy without attempts falls back to the engine's.
	_, err = engine.UpsertBatchWithPolicy(context.Background(), retry.Policy{}, recipes("a"))
	assert.ErrorIs(t, err, ErrCollectionSetup)
	assert.Equal(t, 5, repo.ensureCalls)
}

func TestUpsertBatch_ReportsDuplicateKeysInBatch(t *testing.T) {
	repo := newStubRepo(t)
	engine := newTestEngine(t, repo)

	batch := append(recipes("a", "b"), recipes("a")...)
	report, err := engine.UpsertBatch(context.Background(), batch)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Attempted)
	assert.Equal(t, 2, report.Succeeded)
	assert.Equal(t, []string{"a"}, report.Duplicates)
	assert.Empty(t, report.Skipped)
}

func TestUpsertBatch_SkipsKeysInFlight(t *testing.T) {
	ctx := context.Background()
	repo := newStubRepo(t)
	engine := newTestEngine(t, repo)

	require.True(t, engine.Guard().TryAcquire("a"))
	report, err := engine.UpsertBatch(ctx, recipes("a", "b"))
	require.NoError(t, err)

	assert.Equal(t, 1, report.Attempted)
	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, []string{"a"}, report.Skipped)

	_, err = repo.GetByKey(ctx, "a")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// The caller's hold is untouched.
	assert.Equal(t, 1, engine.Guard().InFlight())
}

func TestUpsertBatch_InvalidRecipeFails(t *testing.T) {
	repo := newStubRepo(t)
	engine := newTestEngine(t, repo)

	batch := recipes("a")
	batch = append(batch, &core.Recipe{Key: "untitled"}, nil)
	report, err := engine.UpsertBatch(context.Background(), batch)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Attempted)
	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, []string{"untitled"}, report.Failed)
	assert.False(t, report.Complete())
}

func TestUpsertBatch_BulkFailureFallsBackToSingleWrites(t *testing.T) {
	ctx := context.Background()
	repo := newStubRepo(t)
	repo.bulkFunc = func(ctx context.Context, recipes ...*core.IndexedRecipe) (int, error) {
		return 0, errors.New("bulk write rejected")
	}
	engine := newTestEngine(t, repo)

	// Pre-existing record takes the update path.
	_, err := repo.RecipeRepository.BulkUpsert(ctx, core.NewIndexedRecipe(recipes("c")[0], nil))
	require.NoError(t, err)

	report, err := engine.UpsertBatch(ctx, recipes("a", "b", "c"))
	require.NoError(t, err)

	assert.Equal(t, 3, report.Attempted)
	assert.Equal(t, 3, report.Succeeded)
	assert.True(t, report.Complete())
	assert.Equal(t, 2, repo.insertCalls)

	all, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestUpsertBatch_ShortBulkCountFallsBack(t *testing.T) {
	repo := newStubRepo(t)
	repo.bulkFunc = func(ctx context.Context, recipes ...*core.IndexedRecipe) (int, error) {
		return len(recipes) - 1, nil
	}
	engine := newTestEngine(t, repo)

	report, err := engine.UpsertBatch(context.Background(), recipes("a", "b"))
	require.NoError(t, err)
	assert.Equal(t, 2, report.Succeeded)
	assert.Equal(t, 2, repo.insertCalls)
}

func TestUpsertBatch_SingleWriteFailureDoesNotAbortSiblings(t *testing.T) {
	ctx := context.Background()
	repo := newStubRepo(t)
	repo.bulkFunc = func(ctx context.Context, recipes ...*core.IndexedRecipe) (int, error) {
		return 2, errors.New("third record rejected")
	}
	repo.insertFunc = func(ctx context.Context, recipe *core.IndexedRecipe) error {
		if recipe.Recipe.Key == "b" {
			return errors.New("write conflict")
		}
		return repo.RecipeRepository.Insert(ctx, recipe)
	}
	engine := newTestEngine(t, repo)

	report, err := engine.UpsertBatch(ctx, recipes("a", "b", "c"))
	require.NoError(t, err)

	assert.Equal(t, 3, report.Attempted)
	assert.Equal(t, 2, report.Succeeded)
	assert.Equal(t, []string{"b"}, report.Failed)
	assert.False(t, report.Complete())

	_, err = repo.GetByKey(ctx, "c")
	assert.NoError(t, err)
}

func TestUpsertBatch_EmbedsNormalizedVectors(t *testing.T) {
	ctx := context.Background()
	repo := newStubRepo(t)
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		out := make([][]float32, len(texts))
		for i := range texts {
			out[i] = []float32{3, 4}
		}
		return out, nil
	}
	engine := newTestEngine(t, repo, WithEmbedder(embedder))

	_, err := engine.UpsertBatch(ctx, recipes("a"))
	require.NoError(t, err)

	stored, err := repo.GetByKey(ctx, "a")
	require.NoError(t, err)
	require.Len(t, stored.Vector, 2)
	assert.InDelta(t, 0.6, stored.Vector[0], 1e-6)
	assert.InDelta(t, 0.8, stored.Vector[1], 1e-6)
	assert.Equal(t, 1, embedder.CallCount())
}

func TestUpsertBatch_EmbeddingFailureWritesWithoutVectors(t *testing.T) {
	ctx := context.Background()
	repo := newStubRepo(t)
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return nil, errors.New("invalid request: input too long")
	}
	engine := newTestEngine(t, repo, WithEmbedder(embedder))

	report, err := engine.UpsertBatch(ctx, recipes("a", "b"))
	require.NoError(t, err)
	assert.True(t, report.Complete())

	stored, err := repo.GetByKey(ctx, "a")
	require.NoError(t, err)
	assert.Empty(t, stored.Vector)
}

func TestUpsertBatch_EmbeddingCountMismatchWritesWithoutVectors(t *testing.T) {
	ctx := context.Background()
	repo := newStubRepo(t)
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return [][]float32{{1, 0}}, nil
	}
	engine := newTestEngine(t, repo, WithEmbedder(embedder))

	report, err := engine.UpsertBatch(ctx, recipes("a", "b"))
	require.NoError(t, err)
	assert.Equal(t, 2, report.Succeeded)

	stored, err := repo.GetByKey(ctx, "b")
	require.NoError(t, err)
	assert.Empty(t, stored.Vector)
}

func TestUpsertBatch_ConcurrentBatchesWriteSharedKeyOnce(t *testing.T) {
	ctx := context.Background()
	repo := newStubRepo(t)
	entered := make(chan struct{})
	release := make(chan struct{})
	var blocked atomic.Bool
	repo.bulkFunc = func(ctx context.Context, recipes ...*core.IndexedRecipe) (int, error) {
		if blocked.CompareAndSwap(false, true) {
			close(entered)
			<-release
		}
		return repo.RecipeRepository.BulkUpsert(ctx, recipes...)
	}
	engine := newTestEngine(t, repo)

	firstDone := make(chan Report, 1)
	go func() {
		report, err := engine.UpsertBatch(ctx, recipes("k", "x"))
		assert.NoError(t, err)
		firstDone <- report
	}()

	<-entered
	second, err := engine.UpsertBatch(ctx, recipes("k", "y"))
	require.NoError(t, err)
	close(release)
	first := <-firstDone

	assert.Equal(t, 2, first.Succeeded)
	assert.Empty(t, first.Skipped)
	assert.Equal(t, 1, second.Attempted)
	assert.Equal(t, []string{"k"}, second.Skipped)
	assert.Equal(t, 0, engine.Guard().InFlight())

	all, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
