package storage

import (
	"context"

	"github.com/poiesic/larder/core"
)

// Repository provides common storage operations shared across all repositories.
// Implementations must be thread-safe and support concurrent access.
type Repository interface {
	// WithTransaction executes a function within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	// The context passed to fn may contain transaction state.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	// Close closes the storage backend and releases resources.
	Close() error
}

// RecipeRepository is the search index for recipes.
type RecipeRepository interface {
	Repository

	// EnsureCollection creates the recipe collection if it does not exist.
	// Safe to call repeatedly.
	EnsureCollection(ctx context.Context) error

	// Exists reports whether a recipe with the given ID is indexed.
	Exists(ctx context.Context, id core.ID) (bool, error)

	// Insert stores a new recipe.
	// Returns ErrDuplicateKey if the ID is already present.
	Insert(ctx context.Context, recipe *core.IndexedRecipe) error

	// Update replaces an existing recipe, preserving InsertedAt.
	// Returns ErrNotFound if the recipe doesn't exist.
	Update(ctx context.Context, recipe *core.IndexedRecipe) error

	// BulkUpsert inserts or updates all recipes atomically.
	// Returns the number of recipes written; on error nothing is written.
	BulkUpsert(ctx context.Context, recipes ...*core.IndexedRecipe) (int, error)

	// Delete removes the recipes with the given keys.
	// Missing keys are ignored. Returns the number of recipes removed.
	Delete(ctx context.Context, keys ...string) (int, error)

	// Get retrieves a recipe by ID.
	// Returns ErrNotFound if the recipe doesn't exist.
	Get(ctx context.Context, id core.ID) (*core.IndexedRecipe, error)

	// GetByKey retrieves a recipe by its source key.
	// Returns ErrNotFound if the recipe doesn't exist.
	GetByKey(ctx context.Context, key string) (*core.IndexedRecipe, error)

	// List returns every indexed recipe ordered by key.
	List(ctx context.Context) ([]*core.IndexedRecipe, error)

	// FindSimilar finds recipes similar to the given vector.
	// Returns recipes with similarity >= minSimilarity, up to limit results.
	// Results are ordered by similarity score (highest first).
	FindSimilar(ctx context.Context, vector []float32, minSimilarity float32, limit int) ([]*core.SearchResult, error)
}

// JobRepository persists job state.
type JobRepository interface {
	// SaveJob stores the job, replacing any previous state.
	SaveJob(ctx context.Context, job *core.JobState) error

	// LoadJob retrieves a job by ID.
	// Returns nil, nil if no job exists.
	LoadJob(ctx context.Context, jobID string) (*core.JobState, error)

	// ListJobs returns all stored jobs, oldest first.
	ListJobs(ctx context.Context) ([]*core.JobState, error)

	// DeleteJob removes a job. Missing jobs are ignored.
	DeleteJob(ctx context.Context, jobID string) error
}
