package mock

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/poiesic/larder/core"
)

// MockRecipeExtractor is a test double for ai.RecipeExtractor.
type MockRecipeExtractor struct {
	// ExtractRecipeFunc is called by ExtractRecipe if set.
	// If nil, the first line of the caption (or transcript) becomes the title.
	ExtractRecipeFunc func(ctx context.Context, transcript, caption string) (*core.Recipe, error)

	mu        sync.Mutex
	callCount int
}

func NewMockRecipeExtractor() *MockRecipeExtractor {
	return &MockRecipeExtractor{}
}

func (m *MockRecipeExtractor) ExtractRecipe(ctx context.Context, transcript, caption string) (*core.Recipe, error) {
	m.mu.Lock()
	m.callCount++
	m.mu.Unlock()

	if m.ExtractRecipeFunc != nil {
		return m.ExtractRecipeFunc(ctx, transcript, caption)
	}

	source := strings.TrimSpace(caption)
	if source == "" {
		source = strings.TrimSpace(transcript)
	}
	if source == "" {
		return nil, errors.New("invalid request: nothing to extract")
	}

	title, _, _ := strings.Cut(source, "\n")
	recipe := &core.Recipe{
		Title:      strings.TrimSpace(title),
		Transcript: transcript,
		Caption:    caption,
		Language:   "en",
	}
	for _, word := range strings.Fields(strings.ToLower(source)) {
		if len(recipe.Ingredients) >= 3 {
			break
		}
		recipe.Ingredients = append(recipe.Ingredients, core.Ingredient{Name: strings.Trim(word, ".,!?")})
	}
	return recipe, nil
}

func (m *MockRecipeExtractor) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

func (m *MockRecipeExtractor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount = 0
	m.ExtractRecipeFunc = nil
}
