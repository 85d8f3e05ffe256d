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

package indexing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/poiesic/larder/ai"
	"github.com/poiesic/larder/core"
	"github.com/poiesic/larder/retry"
	"github.com/poiesic/larder/storage"
)

const (
	opSetup = "index_setup"
	opEmbed = "embed"
)

// Report describes the outcome of one UpsertBatch call.
type Report struct {
	// Attempted is the number of records the engine tried to write.
	Attempted int

	// Succeeded is the number of records written.
	Succeeded int

	// Skipped lists keys not attempted because another writer held them.
	Skipped []string

	// Duplicates lists keys dropped because they repeated an earlier record
	// in the same batch.
	Duplicates []string

	// Failed lists keys that could not be written.
	Failed []string
}

// Complete reports whether every attempted record was written.
func (r Report) Complete() bool {
	return r.Attempted == r.Succeeded
}

// Engine writes recipes into a storage.RecipeRepository.
type Engine struct {
	repo     storage.RecipeRepository
	embedder ai.Embedder
	guard    *KeyGuard
	policy   retry.Policy

	setupMu sync.Mutex
	ready   bool

	logger *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine) error

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) error {
		if logger == nil {
			logger = slog.Default()
		}
		e.logger = logger
		return nil
	}
}

// WithEmbedder enables vector embeddings for written recipes.
func WithEmbedder(embedder ai.Embedder) Option {
	return func(e *Engine) error {
		e.embedder = embedder
		return nil
	}
}

// WithRetryPolicy sets the policy used for collection setup and embedding.
func WithRetryPolicy(policy retry.Policy) Option {
	return func(e *Engine) error {
		if policy.MaxAttempts < 1 {
			return fmt.Errorf("retry policy needs at least one attempt, got %d", policy.MaxAttempts)
		}
		e.policy = policy
		return nil
	}
}

// WithKeyGuard shares a guard between engines writing the same index.
func WithKeyGuard(guard *KeyGuard) Option {
	return func(e *Engine) error {
		if guard != nil {
			e.guard = guard
		}
		return nil
	}
}

// NewEngine creates an indexing engine over repo.
func NewEngine(repo storage.RecipeRepository, opts ...Option) (*Engine, error) {
	if repo == nil {
		return nil, ErrRepositoryRequired
	}
	e := &Engine{
		repo:   repo,
		guard:  NewKeyGuard(),
		policy: retry.DefaultPolicy(),
		logger: slog.Default().With("component", "indexing"),
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Guard returns the engine's in-flight key guard.
func (e *Engine) Guard() *KeyGuard {
	return e.guard
}

// EnsureCollection creates the index collection on first use.
// A failed attempt is retried on the next call.
func (e *Engine) EnsureCollection(ctx context.Context) error {
	return e.ensureCollection(ctx, e.policy)
}

func (e *Engine) ensureCollection(ctx context.Context, policy retry.Policy) error {
	e.setupMu.Lock()
	defer e.setupMu.Unlock()
	if e.ready {
		return nil
	}
	err := retry.DoErr(ctx, policy, opSetup, e.repo.EnsureCollection)
	if err != nil {
		e.logger.Error("error creating index collection", "err", err)
		return fmt.Errorf("%w: %w", ErrCollectionSetup, err)
	}
	e.ready = true
	return nil
}

// UpsertBatch writes recipes into the index.
// The returned error is non-nil only when the collection cannot be set up;
// per-record failures are reported in Report.Failed.
func (e *Engine) UpsertBatch(ctx context.Context, recipes []*core.Recipe) (Report, error) {
	return e.UpsertBatchWithPolicy(ctx, e.policy, recipes)
}

// UpsertBatchWithPolicy is UpsertBatch with policy governing collection
// setup and embedding. A policy without attempts falls back to the engine's.
func (e *Engine) UpsertBatchWithPolicy(ctx context.Context, policy retry.Policy, recipes []*core.Recipe) (Report, error) {
	var report Report
	if len(recipes) == 0 {
		return report, nil
	}
	if policy.MaxAttempts < 1 {
		policy = e.policy
	}
	if err := e.ensureCollection(ctx, policy); err != nil {
		return report, err
	}

	records, held := e.prepare(recipes, &report)
	defer e.guard.Release(held...)
	if len(records) == 0 {
		return report, nil
	}

	e.embed(ctx, policy, records)
	report.Succeeded += e.write(ctx, records, &report)

	e.logger.Info("indexed batch",
		"attempted", report.Attempted,
		"succeeded", report.Succeeded,
		"skipped", len(report.Skipped),
		"duplicates", len(report.Duplicates),
		"failed", len(report.Failed))
	return report, nil
}

// prepare validates recipes, drops duplicates and claims their keys.
// It returns the records to write and the keys it now holds.
func (e *Engine) prepare(recipes []*core.Recipe, report *Report) ([]*core.IndexedRecipe, []string) {
	records := make([]*core.IndexedRecipe, 0, len(recipes))
	held := make([]string, 0, len(recipes))
	seen := make(map[string]struct{}, len(recipes))

	for _, recipe := range recipes {
		if recipe == nil {
			continue
		}
		if err := core.ValidateRecipe(recipe); err != nil {
			e.logger.Warn("rejecting invalid recipe", "key", recipe.Key, "err", err)
			report.Attempted++
			report.Failed = append(report.Failed, recipe.Key)
			continue
		}
		if _, dup := seen[recipe.Key]; dup {
			report.Duplicates = append(report.Duplicates, recipe.Key)
			continue
		}
		seen[recipe.Key] = struct{}{}

		if !e.guard.TryAcquire(recipe.Key) {
			e.logger.Info("key already being indexed, skipping", "key", recipe.Key)
			report.Skipped = append(report.Skipped, recipe.Key)
			continue
		}
		held = append(held, recipe.Key)
		records = append(records, core.NewIndexedRecipe(recipe.Clone(), nil))
	}
	report.Attempted += len(records)
	return records, held
}

// embed attaches normalized vectors to records.
// On failure the records are written without vectors.
func (e *Engine) embed(ctx context.Context, policy retry.Policy, records []*core.IndexedRecipe) {
	if e.embedder == nil {
		return
	}
	texts := make([]string, len(records))
	for i, record := range records {
		texts[i] = record.Recipe.SearchText()
	}

	vectors, err := retry.Do(ctx, policy, opEmbed, func(ctx context.Context) ([][]float32, error) {
		return e.embedder.EmbedTexts(ctx, texts)
	})
	if err != nil {
		e.logger.Warn("error generating embeddings, indexing without vectors", "records", len(records), "err", err)
		return
	}
	if len(vectors) != len(records) {
		e.logger.Warn("embedding result mismatch, indexing without vectors",
			"expected", len(records), "received", len(vectors))
		return
	}
	for i := range records {
		records[i].Vector = NormalizeVector(vectors[i])
	}
}

// write tries one bulk upsert and falls back to single writes.
// It returns the number of records written.
func (e *Engine) write(ctx context.Context, records []*core.IndexedRecipe, report *Report) int {
	count, err := e.repo.BulkUpsert(ctx, records...)
	if err == nil && count == len(records) {
		return count
	}
	if err != nil {
		e.logger.Warn("bulk upsert failed, writing records individually", "records", len(records), "err", err)
	} else {
		e.logger.Warn("bulk upsert wrote fewer records than requested, writing records individually",
			"expected", len(records), "written", count)
	}

	written := 0
	for _, record := range records {
		if err := e.writeOne(ctx, record); err != nil {
			e.logger.Error("error indexing recipe", "key", record.Recipe.Key, "err", err)
			report.Failed = append(report.Failed, record.Recipe.Key)
			continue
		}
		written++
	}
	return written
}

// writeOne inserts record, or updates it when it already exists.
func (e *Engine) writeOne(ctx context.Context, record *core.IndexedRecipe) error {
	exists, err := e.repo.Exists(ctx, record.Id)
	if err != nil {
		return err
	}
	if exists {
		return e.repo.Update(ctx, record)
	}
	err = e.repo.Insert(ctx, record)
	if errors.Is(err, storage.ErrDuplicateKey) {
		return e.repo.Update(ctx, record)
	}
	return err
}
