package search

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"sort"
	"strings"

	"github.com/poiesic/larder/ai"
	"github.com/poiesic/larder/core"
	"github.com/poiesic/larder/indexing"
	"github.com/poiesic/larder/storage"
)

// DefaultMinSimilarity is the cosine similarity floor for semantic hits.
const DefaultMinSimilarity float32 = 0.60

// Searcher provides hybrid semantic and ingredient search over recipes.
type Searcher struct {
	recipeRepository storage.RecipeRepository
	embedder         ai.Embedder
	minSimilarity    float32
	logger           *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithMinSimilarity sets the similarity floor for semantic hits.
// Default is DefaultMinSimilarity.
func WithMinSimilarity(minSimilarity float32) Option {
	return func(s *Searcher) error {
		s.minSimilarity = minSimilarity
		return nil
	}
}

// NewSearcher creates a new searcher.
func NewSearcher(
	recipeRepository storage.RecipeRepository,
	provider ai.AIProvider,
	opts ...Option,
) (*Searcher, error) {
	if recipeRepository == nil {
		return nil, ErrRecipeRepositoryRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	s := &Searcher{
		recipeRepository: recipeRepository,
		embedder:         provider.Embedder(),
		minSimilarity:    DefaultMinSimilarity,
		logger:           slog.Default().With("component", "search"),
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// FindSimilar searches for recipes matching the query.
// Returns up to maxHits results, ranked by relevance score.
func (s *Searcher) FindSimilar(ctx context.Context, query string, maxHits int) ([]*core.SearchResult, error) {
	return s.FindSimilarWithMonitor(ctx, query, maxHits, nil)
}

// FindSimilarWithMonitor searches for recipes matching the query with monitoring.
// The monitor receives callbacks at each stage of the search process.
// Returns up to maxHits results, ranked by relevance score.
func (s *Searcher) FindSimilarWithMonitor(ctx context.Context, query string, maxHits int, monitor SearchMonitor) ([]*core.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	if monitor == nil {
		monitor = &noopMonitor{}
	}

	monitor.Start(query)

	// 1. Semantic search against the recipe embeddings
	embedding, err := s.embedder.EmbedText(ctx, query)
	if err != nil {
		s.logger.Error("error generating embedding for query", "query", query, "err", err)
		return nil, err
	}

	matches, err := s.recipeRepository.FindSimilar(ctx, indexing.NormalizeVector(embedding), s.minSimilarity, maxHits)
	if err != nil {
		s.logger.Error("error querying for similar recipes", "err", err)
		return nil, err
	}

	candidates := make(map[core.ID]*core.IndexedRecipe)
	semanticScores := make(map[core.ID]float32, len(matches))
	semanticIds := make([]core.ID, 0, len(matches))
	for _, match := range matches {
		candidates[match.Recipe.Id] = match.Recipe
		semanticScores[match.Recipe.Id] = match.Score
		semanticIds = append(semanticIds, match.Recipe.Id)
	}
	monitor.AfterSemanticSearch(semanticIds)

	// 2. Ingredient and tag matching
	terms := tokenizeAndFilter(query)
	ingredientSet := make(map[core.ID]bool)
	if len(terms) > 0 {
		all, err := s.recipeRepository.List(ctx)
		if err != nil {
			s.logger.Error("error listing recipes", "err", err)
			return nil, err
		}
		for _, recipe := range all {
			if matchesIngredients(recipe.Recipe, terms) {
				ingredientSet[recipe.Id] = true
				if _, ok := candidates[recipe.Id]; !ok {
					candidates[recipe.Id] = recipe
				}
			}
		}
	}
	monitor.AfterIngredientSearch(maps.Keys(ingredientSet))

	if len(candidates) == 0 {
		return []*core.SearchResult{}, nil
	}

	// 3. Combine and score, in key order so equal scores rank stably
	recipes := slices.Collect(maps.Values(candidates))
	slices.SortFunc(recipes, func(a, b *core.IndexedRecipe) int {
		return strings.Compare(a.Recipe.Key, b.Recipe.Key)
	})
	monitor.AfterRecordRetrieval(recipes)

	results := make([]*core.SearchResult, 0, len(recipes))
	for _, recipe := range recipes {
		similarity, inSemantic := semanticScores[recipe.Id]
		inIngredients := ingredientSet[recipe.Id]

		var score float32
		if inSemantic && inIngredients {
			// In both: boost by 1.5x, weighted by similarity score
			score = 1.5 * similarity
			monitor.SemanticAndIngredientHit(recipe)
		} else if inIngredients {
			score = 1.2
			monitor.IngredientHit(recipe)
		} else {
			score = similarity
			monitor.SemanticHit(recipe)
		}

		// Apply verbatim match boost
		if containsAllQueryWords(recipe.Recipe.SearchText(), query) {
			score += 0.3
		}

		results = append(results, &core.SearchResult{
			Recipe: recipe,
			Score:  score,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if maxHits > 0 && len(results) > maxHits {
		results = results[:maxHits]
	}
	monitor.Finish(results)

	return results, nil
}
