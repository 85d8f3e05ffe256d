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
	"fmt"
	"io"
	"time"

	"github.com/poiesic/larder/ai"
	"github.com/poiesic/larder/core"
	"github.com/poiesic/larder/retry"
	"github.com/poiesic/larder/storage"
)

// Config holds configuration for the reembedding operation.
type Config struct {
	// BatchSize is the number of recipes embedded per call
	BatchSize int

	// ReportInterval is how often to report progress (number of recipes)
	ReportInterval int

	// Policy governs retries of each embedding call
	Policy retry.Policy
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      DefaultBatchSize,
		ReportInterval: DefaultBatchSize,
		Policy:         retry.DefaultPolicy(),
	}
}

// Reembedder recomputes the vectors of every indexed recipe.
type Reembedder struct {
	repo      storage.RecipeRepository
	config    *Config
	progress  io.Writer
	processor *BatchProcessor
	iterator  *RecipeIterator
}

// NewReembedder creates a new reembedder.
// progress: where to write progress output (typically os.Stderr); nil discards it
func NewReembedder(repo storage.RecipeRepository, embedder ai.Embedder, config *Config, progress io.Writer) (*Reembedder, error) {
	if repo == nil {
		return nil, ErrRepositoryRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.Policy.MaxAttempts < 1 {
		return nil, retry.ErrInvalidMaxAttempts
	}
	if progress == nil {
		progress = io.Discard
	}

	return &Reembedder{
		repo:      repo,
		config:    config,
		progress:  progress,
		processor: NewBatchProcessor(repo, embedder, config.Policy),
		iterator:  NewRecipeIterator(repo, config.BatchSize),
	}, nil
}

// Run reembeds every indexed recipe and returns how many were written.
// It stops at the first batch that cannot be embedded or written.
func (r *Reembedder) Run(ctx context.Context) (int, error) {
	all, err := r.repo.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list recipes: %w", err)
	}

	total := len(all)
	if total == 0 {
		fmt.Fprintf(r.progress, "No recipes found in index (0 recipes)\n")
		return 0, nil
	}

	fmt.Fprintf(r.progress, "Starting reembedding of %d recipes (batch size: %d)\n",
		total, r.iterator.batchSize)

	tracker := NewProgressTracker(r.progress, total, r.config.ReportInterval)
	tracker.Start()

	processed := 0
	err = r.iterator.ForEach(ctx, func(recipes []*core.IndexedRecipe) error {
		written, err := r.processor.Process(ctx, recipes)
		if err != nil {
			return fmt.Errorf("failed to process batch: %w", err)
		}
		processed += written
		tracker.Update(processed)
		return nil
	})
	if err != nil {
		return processed, err
	}

	tracker.Finish()

	elapsed := tracker.Elapsed()
	fmt.Fprintf(r.progress, "Reembedding complete. Processed %d recipes in %v (%.1f recipes/sec)\n",
		processed, elapsed.Round(time.Millisecond), float64(processed)/elapsed.Seconds())

	return processed, nil
}
