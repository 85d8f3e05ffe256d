package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/poiesic/larder/core"
	"github.com/poiesic/larder/storage"
)

// RecipeRepository implements storage.RecipeRepository for BadgerDB.
type RecipeRepository struct {
	backend *Backend
	logger  *slog.Logger
}

var _ storage.RecipeRepository = (*RecipeRepository)(nil)

type collectionMeta struct {
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// NewRecipeRepository creates a new RecipeRepository.
func NewRecipeRepository(backend *Backend) *RecipeRepository {
	return &RecipeRepository{
		backend: backend,
		logger:  backend.logger.With("repository", "recipes"),
	}
}

// Close is a no-op; the backend owns the database handle.
func (r *RecipeRepository) Close() error {
	return nil
}

// WithTransaction delegates to the backend.
func (r *RecipeRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// EnsureCollection creates the recipe collection marker if absent.
func (r *RecipeRepository) EnsureCollection(ctx context.Context) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		_, err := tx.Get([]byte(recipeCollectionKey))
		if err == nil {
			return nil
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		meta, err := json.Marshal(collectionMeta{Name: "recipes", CreatedAt: time.Now().UTC()})
		if err != nil {
			return err
		}
		if err := tx.Set([]byte(recipeCollectionKey), meta); err != nil {
			return err
		}
		r.logger.Info("created recipe collection")
		return tx.Commit()
	}, true)
}

// Exists reports whether a recipe with the given ID is indexed.
func (r *RecipeRepository) Exists(ctx context.Context, id core.ID) (bool, error) {
	var found bool
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		_, err := tx.Get(makeRecipeKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	}, false)
	return found, err
}

// Insert stores a new recipe.
func (r *RecipeRepository) Insert(ctx context.Context, recipe *core.IndexedRecipe) error {
	if err := prepareRecipe(recipe); err != nil {
		return err
	}
	return r.backend.WithTx(func(tx *badger.Txn) error {
		if err := requireCollection(tx); err != nil {
			return err
		}
		old, err := r.readRecipe(tx, makeRecipeKey(recipe.Id))
		if err != nil {
			return err
		}
		if old != nil {
			return fmt.Errorf("%w: %s", storage.ErrDuplicateKey, recipe.Recipe.Key)
		}

		recipe.InsertedAt = time.Now().UTC()
		recipe.UpdatedAt = recipe.InsertedAt
		if err := r.writeRecipe(tx, recipe); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// Update replaces an existing recipe.
func (r *RecipeRepository) Update(ctx context.Context, recipe *core.IndexedRecipe) error {
	if err := prepareRecipe(recipe); err != nil {
		return err
	}
	return r.backend.WithTx(func(tx *badger.Txn) error {
		if err := requireCollection(tx); err != nil {
			return err
		}
		old, err := r.readRecipe(tx, makeRecipeKey(recipe.Id))
		if err != nil {
			return err
		}
		if old == nil {
			return fmt.Errorf("%w: %s", storage.ErrNotFound, recipe.Recipe.Key)
		}

		recipe.InsertedAt = old.InsertedAt
		recipe.UpdatedAt = time.Now().UTC()
		if err := r.writeRecipe(tx, recipe); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// BulkUpsert writes all recipes in a single transaction.
func (r *RecipeRepository) BulkUpsert(ctx context.Context, recipes ...*core.IndexedRecipe) (int, error) {
	if len(recipes) == 0 {
		return 0, nil
	}
	for _, recipe := range recipes {
		if err := prepareRecipe(recipe); err != nil {
			return 0, err
		}
	}

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		if err := requireCollection(tx); err != nil {
			return err
		}
		now := time.Now().UTC()
		for _, recipe := range recipes {
			if err := ctx.Err(); err != nil {
				return err
			}
			old, err := r.readRecipe(tx, makeRecipeKey(recipe.Id))
			if err != nil {
				return err
			}
			recipe.InsertedAt = now
			if old != nil {
				recipe.InsertedAt = old.InsertedAt
			}
			recipe.UpdatedAt = now
			if err := r.writeRecipe(tx, recipe); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return 0, err
	}
	return len(recipes), nil
}

// Delete removes the recipes with the given keys.
func (r *RecipeRepository) Delete(ctx context.Context, keys ...string) (int, error) {
	deleted := 0
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, key := range keys {
			id := core.RecipeID(key)
			old, err := r.readRecipe(tx, makeRecipeKey(id))
			if err != nil {
				return err
			}
			if old == nil {
				continue
			}
			if err := tx.Delete(makeRecipeKey(id)); err != nil {
				return err
			}
			if err := tx.Delete(makeRecipeSourceKey(key)); err != nil {
				return err
			}
			deleted++
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

// Get retrieves a recipe by ID.
func (r *RecipeRepository) Get(ctx context.Context, id core.ID) (*core.IndexedRecipe, error) {
	var recipe *core.IndexedRecipe
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		recipe, err = r.readRecipe(tx, makeRecipeKey(id))
		return err
	}, false)
	if err != nil {
		return nil, err
	}
	if recipe == nil {
		return nil, storage.ErrNotFound
	}
	return recipe, nil
}

// GetByKey retrieves a recipe by its source key.
func (r *RecipeRepository) GetByKey(ctx context.Context, key string) (*core.IndexedRecipe, error) {
	var recipe *core.IndexedRecipe
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeRecipeSourceKey(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		var id core.ID
		err = item.Value(func(val []byte) error {
			var unmarshalErr error
			id, unmarshalErr = storage.UnmarshalID(val)
			return unmarshalErr
		})
		if err != nil {
			return err
		}
		recipe, err = r.readRecipe(tx, makeRecipeKey(id))
		return err
	}, false)
	if err != nil {
		return nil, err
	}
	if recipe == nil {
		return nil, storage.ErrNotFound
	}
	return recipe, nil
}

// List returns every indexed recipe ordered by key.
func (r *RecipeRepository) List(ctx context.Context) ([]*core.IndexedRecipe, error) {
	var recipes []*core.IndexedRecipe
	err := r.scan(ctx, func(recipe *core.IndexedRecipe) {
		recipes = append(recipes, recipe)
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(recipes, func(a, b *core.IndexedRecipe) int {
		return strings.Compare(a.Recipe.Key, b.Recipe.Key)
	})
	return recipes, nil
}

// FindSimilar finds recipes similar to the given vector.
// Vectors are expected to be normalized, so the dot product is the cosine similarity.
func (r *RecipeRepository) FindSimilar(ctx context.Context, vector []float32, minSimilarity float32, limit int) ([]*core.SearchResult, error) {
	var results []*core.SearchResult
	err := r.scan(ctx, func(recipe *core.IndexedRecipe) {
		// Skip recipes without embeddings
		if len(recipe.Vector) == 0 {
			return
		}
		similarity := dotProduct(vector, recipe.Vector)
		if similarity >= minSimilarity {
			results = append(results, &core.SearchResult{
				Recipe: recipe,
				Score:  similarity,
			})
		}
	})
	if err != nil {
		return nil, err
	}

	// Sort by similarity descending
	slices.SortFunc(results, func(a, b *core.SearchResult) int {
		if a.Score > b.Score {
			return -1
		}
		if a.Score < b.Score {
			return 1
		}
		return 0
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (r *RecipeRepository) scan(ctx context.Context, fn func(*core.IndexedRecipe)) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(recipePrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var recipe *core.IndexedRecipe
			err := iter.Item().Value(func(val []byte) error {
				var err error
				recipe, err = storage.UnmarshalIndexedRecipe(val)
				return err
			})
			if err != nil {
				return err
			}
			if recipe != nil && recipe.Recipe != nil {
				fn(recipe)
			}
		}
		return nil
	}, false)
}

func (r *RecipeRepository) readRecipe(tx *badger.Txn, key []byte) (*core.IndexedRecipe, error) {
	item, err := tx.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var recipe *core.IndexedRecipe
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		recipe, unmarshalErr = storage.UnmarshalIndexedRecipe(val)
		return unmarshalErr
	})
	return recipe, err
}

func (r *RecipeRepository) writeRecipe(tx *badger.Txn, recipe *core.IndexedRecipe) error {
	value, err := storage.MarshalIndexedRecipe(recipe)
	if err != nil {
		return err
	}
	if err := tx.Set(makeRecipeKey(recipe.Id), value); err != nil {
		return err
	}
	return tx.Set(makeRecipeSourceKey(recipe.Recipe.Key), storage.MarshalID(recipe.Id))
}

func requireCollection(tx *badger.Txn) error {
	_, err := tx.Get([]byte(recipeCollectionKey))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return storage.ErrCollectionMissing
	}
	return err
}

// prepareRecipe validates the recipe and fills in its deterministic ID.
func prepareRecipe(recipe *core.IndexedRecipe) error {
	if recipe == nil || recipe.Recipe == nil {
		return fmt.Errorf("%w: recipe is nil", storage.ErrInvalidRecord)
	}
	if err := core.ValidateRecipe(recipe.Recipe); err != nil {
		return fmt.Errorf("%w: %w", storage.ErrInvalidRecord, err)
	}
	id := core.RecipeID(recipe.Recipe.Key)
	if recipe.Id != 0 && recipe.Id != id {
		return fmt.Errorf("%w: id %d does not match key %q", storage.ErrInvalidRecord, recipe.Id, recipe.Recipe.Key)
	}
	recipe.Id = id
	return nil
}
