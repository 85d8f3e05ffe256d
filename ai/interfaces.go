package ai

import (
	"context"

	"github.com/poiesic/larder/core"
)

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// The returned slice contains embeddings in the same order as the input texts.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Transcriber turns an audio file into text.
type Transcriber interface {
	// Transcribe returns the transcript of the audio at audioPath.
	// language is an ISO-639-1 hint and may be empty.
	Transcribe(ctx context.Context, audioPath, language string) (string, error)
}

// RecipeExtractor builds a structured recipe from free text.
type RecipeExtractor interface {
	// ExtractRecipe reads a transcript and a caption and returns the recipe
	// they describe. Either input may be empty, but not both.
	// The returned recipe has no Key; callers assign it.
	ExtractRecipe(ctx context.Context, transcript, caption string) (*core.Recipe, error)
}

// ImageGenerator synthesizes pictures of a recipe.
type ImageGenerator interface {
	// GenerateImages writes images for recipe into dir and returns their paths.
	GenerateImages(ctx context.Context, recipe *core.Recipe, dir string) ([]string, error)
}

// AIProvider aggregates the AI services used by larder.
// Implementations must be thread-safe.
type AIProvider interface {
	Embedder() Embedder
	RecipeExtractor() RecipeExtractor
	Transcriber() Transcriber
	ImageGenerator() ImageGenerator

	// Close releases resources held by the provider and its services.
	Close() error
}
