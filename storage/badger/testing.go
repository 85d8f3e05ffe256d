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

package badger

import (
	"context"

	"github.com/poiesic/larder/storage"
)

// NewMemoryRepositories creates in-memory recipe and job repositories for testing.
// The recipe collection is created up front.
// Returns recipeRepo, jobRepo, backend, and error. Caller must close the backend.
func NewMemoryRepositories() (storage.RecipeRepository, storage.JobRepository, *Backend, error) {
	backend, err := OpenBackend("", true)
	if err != nil {
		return nil, nil, nil, err
	}

	recipes := NewRecipeRepository(backend)
	if err := recipes.EnsureCollection(context.Background()); err != nil {
		backend.Close()
		return nil, nil, nil, err
	}

	return recipes, NewJobRepository(backend), backend, nil
}
