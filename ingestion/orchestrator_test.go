package ingestion

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/poiesic/larder/ai/mock"
	"github.com/poiesic/larder/core"
	"github.com/poiesic/larder/indexing"
	"github.com/poiesic/larder/jobs"
	"github.com/poiesic/larder/media"
	"github.com/poiesic/larder/retry"
	"github.com/poiesic/larder/storage"
	"github.com/poiesic/larder/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	orchestrator *Orchestrator
	provider     *mock.MockProvider
	acquirer     *fakeAcquirer
	recipes      storage.RecipeRepository
	tracker      *jobs.Tracker
	engine       *indexing.Engine
}

type failingCollection struct {
	storage.RecipeRepository
}

func (failingCollection) EnsureCollection(ctx context.Context) error {
	return errors.New("index service unreachable")
}

// flakyCollection fails collection setup a fixed number of times.
type flakyCollection struct {
	storage.RecipeRepository

	mu       sync.Mutex
	failures int
	calls    int
}

func (f *flakyCollection) EnsureCollection(ctx context.Context) error {
	f.mu.Lock()
	f.calls++
	fail := f.calls <= f.failures
	f.mu.Unlock()
	if fail {
		return errors.New("status 503: service unavailable")
	}
	return f.RecipeRepository.EnsureCollection(ctx)
}

// panickingBulk panics on every bulk write.
type panickingBulk struct {
	storage.RecipeRepository
}

func (panickingBulk) BulkUpsert(ctx context.Context, recipes ...*core.IndexedRecipe) (int, error) {
	panic("bulk writer exploded")
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	recipes, jobRepo, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })
	return newHarnessWithRepo(t, recipes, jobRepo, opts...)
}

func newHarnessWithRepo(t *testing.T, recipes storage.RecipeRepository, jobRepo storage.JobRepository, opts ...Option) *harness {
	t.Helper()
	tracker, err := jobs.NewTracker(jobRepo, jobs.WithLogger(quietLogger()))
	require.NoError(t, err)
	engine, err := indexing.NewEngine(recipes,
		indexing.WithRetryPolicy(retry.Once(0)),
		indexing.WithLogger(quietLogger()))
	require.NoError(t, err)

	h := &harness{
		provider: mock.NewMockProvider(),
		acquirer: &fakeAcquirer{dir: t.TempDir()},
		recipes:  recipes,
		tracker:  tracker,
		engine:   engine,
	}
	opts = append([]Option{
		WithPolicies(fastPolicies()),
		WithAudioExtractor(&fakeAudio{}),
		WithImageGeneration(false),
		WithPalette(false),
		WithLogger(quietLogger()),
	}, opts...)
	h.orchestrator, err = NewOrchestrator(tracker, engine, h.acquirer, h.provider, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { h.orchestrator.Close() })
	return h
}

func (h *harness) run(t *testing.T, items ...core.WorkItem) *core.JobState {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	jobID, err := h.orchestrator.Submit(ctx, items...)
	require.NoError(t, err)
	job, err := h.orchestrator.Wait(ctx, jobID)
	require.NoError(t, err)
	return job
}

func TestNewOrchestrator_RequiresCollaborators(t *testing.T) {
	h := newHarness(t)
	provider := mock.NewMockProvider()

	_, err := NewOrchestrator(nil, h.engine, h.acquirer, provider)
	assert.ErrorIs(t, err, ErrTrackerRequired)
	_, err = NewOrchestrator(h.tracker, nil, h.acquirer, provider)
	assert.ErrorIs(t, err, ErrEngineRequired)
	_, err = NewOrchestrator(h.tracker, h.engine, nil, provider)
	assert.ErrorIs(t, err, ErrAcquirerRequired)
	_, err = NewOrchestrator(h.tracker, h.engine, h.acquirer, nil)
	assert.ErrorIs(t, err, ErrAIProviderRequired)
	_, err = NewOrchestrator(h.tracker, h.engine, h.acquirer, provider, WithAbortPolicy(AbortPolicy{Threshold: 2}))
	assert.Error(t, err)
}

func TestSubmit_RejectsEmptyBatch(t *testing.T) {
	h := newHarness(t)
	_, err := h.orchestrator.Submit(context.Background())
	assert.ErrorIs(t, err, core.ErrEmptyBatch)
}

func TestSubmit_AllItemsSucceed(t *testing.T) {
	h := newHarness(t)

	job := h.run(t, core.URLItems("a", "b")...)

	assert.Equal(t, core.JobCompleted, job.Status)
	assert.Equal(t, &core.JobResult{Indexed: 2, Total: 2, Success: 2, Failed: 0}, job.Result)
	assert.Equal(t, 100.0, job.Progress.Percentage)
	assert.Equal(t, core.StageDone, job.Progress.Stage)
	assert.Equal(t, "completed with 2 recipes", job.Detail)
	for _, item := range job.Progress.Items {
		assert.Equal(t, core.ItemSuccess, item.Status)
		assert.Equal(t, core.StageDone, item.Stage)
	}

	stored, err := h.recipes.GetByKey(context.Background(), "b")
	require.NoError(t, err)
	assert.Equal(t, "Recipe b", stored.Recipe.Title)
}

func TestSubmit_PartialFailureScenario(t *testing.T) {
	h := newHarness(t)
	h.provider.GetMockTranscriber().TranscribeFunc = func(ctx context.Context, audioPath, language string) (string, error) {
		if strings.HasSuffix(audioPath, "b.mp3") {
			return "", timeoutErr("b")
		}
		return "transcript", nil
	}

	job := h.run(t, core.URLItems("a", "b", "c")...)

	assert.Equal(t, core.JobCompleted, job.Status)
	require.NotNil(t, job.Result)
	assert.Equal(t, core.JobResult{Indexed: 2, Total: 3, Success: 2, Failed: 1}, *job.Result)

	items := job.Progress.Items
	assert.Equal(t, core.ItemSuccess, items[0].Status)
	assert.Equal(t, core.ItemFailed, items[1].Status)
	assert.Equal(t, core.StageError, items[1].Stage)
	assert.NotEmpty(t, items[1].Error)
	assert.Equal(t, core.ItemSuccess, items[2].Status)

	// One call each for a and c, three attempts for b.
	assert.Equal(t, 5, h.provider.GetMockTranscriber().CallCount())
	assert.Contains(t, job.Detail, "item 2 (b)")
	assert.Contains(t, job.Detail, items[1].Error)
}

func TestSubmit_ProgressIsMonotonic(t *testing.T) {
	h := newHarness(t)
	h.provider.GetMockTranscriber().TranscribeFunc = func(ctx context.Context, audioPath, language string) (string, error) {
		time.Sleep(2 * time.Millisecond)
		return "transcript", nil
	}

	ctx := context.Background()
	jobID, err := h.orchestrator.Submit(ctx, core.URLItems("a", "b", "c", "d")...)
	require.NoError(t, err)

	var snapshots []*core.JobState
	for {
		job, err := h.orchestrator.Status(ctx, jobID)
		require.NoError(t, err)
		snapshots = append(snapshots, job)
		if job.Status.IsTerminal() {
			break
		}
		time.Sleep(time.Millisecond)
	}

	for i := 1; i < len(snapshots); i++ {
		prev, cur := snapshots[i-1].Progress, snapshots[i].Progress
		assert.Equal(t, 4, cur.Total)
		assert.GreaterOrEqual(t, cur.Percentage, prev.Percentage)
		assert.GreaterOrEqual(t, cur.Success+cur.Failed, prev.Success+prev.Failed)
		assert.LessOrEqual(t, cur.Success+cur.Failed, cur.Total)
		for j := range cur.Items {
			assert.True(t, prev.Items[j].Stage.CanAdvanceTo(cur.Items[j].Stage),
				"item %d regressed %s -> %s", j, prev.Items[j].Stage, cur.Items[j].Stage)
		}
	}
	final := snapshots[len(snapshots)-1]
	assert.Equal(t, final.Progress.Total, final.Progress.Success+final.Progress.Failed)
}

func TestSubmit_ReingestUpdatesInsteadOfDuplicating(t *testing.T) {
	h := newHarness(t)

	h.run(t, core.URLItems("a")...)
	h.run(t, core.URLItems("a")...)

	all, err := h.recipes.List(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, core.RecipeID("a"), all[0].Id)
}

func TestSubmit_ConcurrentJobsShareKey(t *testing.T) {
	h := newHarness(t, WithMaxConcurrentJobs(2))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var ids []string
	for range 2 {
		id, err := h.orchestrator.Submit(ctx, core.URLItems("shared", "other")...)
		require.NoError(t, err)
		ids = append(ids, id)
	}

	var wg sync.WaitGroup
	results := make([]*core.JobState, len(ids))
	for i, id := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			job, err := h.orchestrator.Wait(ctx, id)
			assert.NoError(t, err)
			results[i] = job
		}()
	}
	wg.Wait()

	for _, job := range results {
		require.NotNil(t, job)
		assert.Equal(t, core.JobCompleted, job.Status)
		assert.Equal(t, 2, job.Result.Indexed)
	}

	all, err := h.recipes.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Equal(t, 0, h.engine.Guard().InFlight())
}

func TestSubmit_IndexSetupFailureFailsJob(t *testing.T) {
	recipes, jobRepo, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })
	h := newHarnessWithRepo(t, failingCollection{recipes}, jobRepo)

	job := h.run(t, core.URLItems("a")...)

	assert.Equal(t, core.JobFailed, job.Status)
	assert.Contains(t, job.Detail, "index service unreachable")
	assert.Equal(t, 100.0, job.Progress.Percentage)
}

func TestSubmit_NothingProducedFailsJob(t *testing.T) {
	h := newHarness(t)
	h.acquirer.fn = func(item core.WorkItem) (*media.Acquisition, error) {
		return nil, errInvalidLink
	}

	job := h.run(t, core.URLItems("a", "b")...)

	assert.Equal(t, core.JobFailed, job.Status)
	assert.Equal(t, core.JobResult{Indexed: 0, Total: 2, Success: 0, Failed: 2}, *job.Result)
	assert.Contains(t, job.Detail, "item 1 (a)")
	assert.Contains(t, job.Detail, "item 2 (b)")
}

func TestSubmit_HighErrorRateContinuesByDefault(t *testing.T) {
	h := newHarness(t)
	h.acquirer.fn = func(item core.WorkItem) (*media.Acquisition, error) {
		if item.Key == "d" {
			return &media.Acquisition{Key: item.Key, Caption: "Late bloomer"}, nil
		}
		return nil, errInvalidLink
	}

	job := h.run(t, core.URLItems("a", "b", "c", "d")...)

	assert.Equal(t, 4, h.acquirer.callCount())
	assert.Equal(t, core.JobCompleted, job.Status)
	assert.Equal(t, core.JobResult{Indexed: 1, Total: 4, Success: 1, Failed: 3}, *job.Result)
}

func TestSubmit_AbortPolicySkipsRemainingItems(t *testing.T) {
	h := newHarness(t, WithAbortPolicy(AbortPolicy{Enabled: true, Threshold: 0.5, MinSamples: 2}))
	h.acquirer.fn = func(item core.WorkItem) (*media.Acquisition, error) {
		return nil, errInvalidLink
	}

	job := h.run(t, core.URLItems("a", "b", "c", "d")...)

	assert.Equal(t, 2, h.acquirer.callCount())
	assert.Equal(t, core.JobFailed, job.Status)
	assert.Equal(t, 4, job.Result.Failed)
	assert.Equal(t, ErrBatchAborted.Error(), job.Progress.Items[3].Error)
}

func TestSubmit_AfterCloseFails(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.orchestrator.Close())

	_, err := h.orchestrator.Submit(context.Background(), core.URLItems("a")...)
	assert.ErrorIs(t, err, ErrOrchestratorClosed)
}

func TestJobsAndStatus(t *testing.T) {
	h := newHarness(t)
	first := h.run(t, core.URLItems("a")...)
	second := h.run(t, core.FolderItems("missing")...)

	list, err := h.orchestrator.Jobs(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, first.JobID, list[0].JobID)
	assert.Equal(t, second.JobID, list[1].JobID)

	_, err = h.orchestrator.Status(context.Background(), "unknown")
	assert.ErrorIs(t, err, jobs.ErrJobNotFound)
}

func TestSubmit_DuplicateKeysRunOnce(t *testing.T) {
	h := newHarness(t)

	job := h.run(t, core.URLItems("k", "k")...)

	assert.Equal(t, core.JobCompleted, job.Status)
	assert.Equal(t, core.JobResult{Indexed: 1, Total: 1, Success: 1, Failed: 0}, *job.Result)
	assert.Equal(t, "completed with 1 recipes", job.Detail)
	assert.Len(t, job.Progress.Items, 1)
	assert.Equal(t, 1, h.acquirer.callCount())

	all, err := h.recipes.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestSubmit_NilAcquisitionFailsItem(t *testing.T) {
	h := newHarness(t)
	h.acquirer.fn = func(item core.WorkItem) (*media.Acquisition, error) {
		if item.Key == "a" {
			return nil, nil
		}
		return &media.Acquisition{Key: item.Key, Caption: "Recipe " + item.Key}, nil
	}

	job := h.run(t, core.URLItems("a", "b")...)

	assert.Equal(t, core.JobCompleted, job.Status)
	assert.Equal(t, core.JobResult{Indexed: 1, Total: 2, Success: 1, Failed: 1}, *job.Result)
	assert.Equal(t, core.ItemFailed, job.Progress.Items[0].Status)
	assert.Equal(t, core.ItemSuccess, job.Progress.Items[1].Status)
	// Not retried.
	assert.Equal(t, 2, h.acquirer.callCount())
}

func TestSubmit_NilRecipeFailsItem(t *testing.T) {
	h := newHarness(t)
	h.provider.GetMockExtractor().ExtractRecipeFunc = func(ctx context.Context, transcript, caption string) (*core.Recipe, error) {
		if caption == "Recipe a" {
			return nil, nil
		}
		return &core.Recipe{Title: caption}, nil
	}

	job := h.run(t, core.URLItems("a", "b")...)

	assert.Equal(t, core.JobCompleted, job.Status)
	assert.Equal(t, core.JobResult{Indexed: 1, Total: 2, Success: 1, Failed: 1}, *job.Result)
	assert.Equal(t, core.ItemFailed, job.Progress.Items[0].Status)
	assert.Equal(t, core.StageError, job.Progress.Items[0].Stage)
	assert.Equal(t, core.ItemSuccess, job.Progress.Items[1].Status)
	assert.Contains(t, job.Detail, "item 1 (a)")
}

func TestSubmit_PanickingItemFailsOnlyThatItem(t *testing.T) {
	h := newHarness(t)
	h.provider.GetMockExtractor().ExtractRecipeFunc = func(ctx context.Context, transcript, caption string) (*core.Recipe, error) {
		if caption == "Recipe b" {
			panic("extractor exploded")
		}
		return &core.Recipe{Title: caption}, nil
	}

	job := h.run(t, core.URLItems("a", "b", "c")...)

	assert.Equal(t, core.JobCompleted, job.Status)
	assert.Equal(t, core.JobResult{Indexed: 2, Total: 3, Success: 2, Failed: 1}, *job.Result)
	assert.Equal(t, core.ItemFailed, job.Progress.Items[1].Status)
	assert.Equal(t, core.ItemSuccess, job.Progress.Items[2].Status)

	_, err := h.recipes.GetByKey(context.Background(), "c")
	assert.NoError(t, err)
}

func TestSubmit_PanicDuringIndexingFailsJob(t *testing.T) {
	recipes, jobRepo, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })
	h := newHarnessWithRepo(t, panickingBulk{recipes}, jobRepo)

	job := h.run(t, core.URLItems("a")...)

	assert.Equal(t, core.JobFailed, job.Status)
	assert.Contains(t, job.Detail, "internal error")
	assert.Equal(t, 0, h.engine.Guard().InFlight())
}

func TestSubmit_UsesIndexingPolicy(t *testing.T) {
	recipes, jobRepo, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })
	flaky := &flakyCollection{RecipeRepository: recipes, failures: 2}
	h := newHarnessWithRepo(t, flaky, jobRepo)

	job := h.run(t, core.URLItems("a")...)

	// The engine alone would give up after one attempt.
	assert.Equal(t, core.JobCompleted, job.Status)
	assert.Equal(t, 3, flaky.calls)
}
