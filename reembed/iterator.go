// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package reembed

import (
	"context"

	"github.com/poiesic/larder/core"
	"github.com/poiesic/larder/storage"
)

const (
	// DefaultBatchSize is the default number of recipes handed out per batch
	DefaultBatchSize = 50
)

// RecipeIterator walks every indexed recipe in batches.
type RecipeIterator struct {
	repo      storage.RecipeRepository
	batchSize int
}

// NewRecipeIterator creates a new recipe iterator.
// batchSize: number of recipes per batch; values <= 0 use DefaultBatchSize
func NewRecipeIterator(repo storage.RecipeRepository, batchSize int) *RecipeIterator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	return &RecipeIterator{
		repo:      repo,
		batchSize: batchSize,
	}
}

// ForEach calls fn for each batch of recipes in key order.
// Iteration stops on the first error from fn or when ctx is done.
func (it *RecipeIterator) ForEach(ctx context.Context, fn func([]*core.IndexedRecipe) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	recipes, err := it.repo.List(ctx)
	if err != nil {
		return err
	}

	for i := 0; i < len(recipes); i += it.batchSize {
		end := min(i+it.batchSize, len(recipes))
		if err := fn(recipes[i:end]); err != nil {
			return err
		}

		// Check context after each batch
		if err := ctx.Err(); err != nil {
			return err
		}
	}

	return nil
}
