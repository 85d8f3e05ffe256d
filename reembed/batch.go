package reembed

import (
	"context"
	"fmt"

	"github.com/poiesic/larder/ai"
	"github.com/poiesic/larder/core"
	"github.com/poiesic/larder/indexing"
	"github.com/poiesic/larder/retry"
	"github.com/poiesic/larder/storage"
)

const opReembed = "reembed"

// BatchProcessor embeds batches of recipes and writes them back.
type BatchProcessor struct {
	repo     storage.RecipeRepository
	embedder ai.Embedder
	policy   retry.Policy
}

// NewBatchProcessor creates a new batch processor.
// policy governs the embedding call; the write is attempted once.
func NewBatchProcessor(repo storage.RecipeRepository, embedder ai.Embedder, policy retry.Policy) *BatchProcessor {
	return &BatchProcessor{
		repo:     repo,
		embedder: embedder,
		policy:   policy,
	}
}

// Process embeds the search text of each recipe and upserts the batch.
// Vectors are normalized to unit length. Returns the number of recipes written.
func (bp *BatchProcessor) Process(ctx context.Context, recipes []*core.IndexedRecipe) (int, error) {
	batch := make([]*core.IndexedRecipe, 0, len(recipes))
	for _, r := range recipes {
		if r != nil && r.Recipe != nil {
			batch = append(batch, r)
		}
	}
	if len(batch) == 0 {
		return 0, nil
	}

	texts := make([]string, len(batch))
	for i, r := range batch {
		texts[i] = r.Recipe.SearchText()
	}

	embeddings, err := retry.Do(ctx, bp.policy, opReembed, func(ctx context.Context) ([][]float32, error) {
		return bp.embedder.EmbedTexts(ctx, texts)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to generate embeddings: %w", err)
	}
	if len(embeddings) != len(batch) {
		return 0, fmt.Errorf("embedding count mismatch: expected %d, got %d", len(batch), len(embeddings))
	}

	updated := make([]*core.IndexedRecipe, len(batch))
	for i, r := range batch {
		c := *r
		c.Vector = indexing.NormalizeVector(embeddings[i])
		updated[i] = &c
	}

	written, err := bp.repo.BulkUpsert(ctx, updated...)
	if err != nil {
		return 0, fmt.Errorf("failed to update recipes: %w", err)
	}
	return written, nil
}
