package search

import (
	"iter"

	"github.com/poiesic/larder/core"
)

// SearchMonitor provides hooks to observe the search process.
// Implement this interface to track intermediate steps and results during search.
type SearchMonitor interface {
	Start(query string)
	AfterSemanticSearch(ids []core.ID)
	AfterIngredientSearch(ids iter.Seq[core.ID])
	AfterRecordRetrieval(recipes []*core.IndexedRecipe)
	SemanticAndIngredientHit(recipe *core.IndexedRecipe)
	SemanticHit(recipe *core.IndexedRecipe)
	IngredientHit(recipe *core.IndexedRecipe)
	Finish(results []*core.SearchResult)
}

// noopMonitor is a no-op implementation of SearchMonitor
type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string)                                 {}
func (n *noopMonitor) AfterSemanticSearch(_ []core.ID)                {}
func (n *noopMonitor) AfterIngredientSearch(_ iter.Seq[core.ID])      {}
func (n *noopMonitor) AfterRecordRetrieval(_ []*core.IndexedRecipe)   {}
func (n *noopMonitor) SemanticAndIngredientHit(_ *core.IndexedRecipe) {}
func (n *noopMonitor) SemanticHit(_ *core.IndexedRecipe)              {}
func (n *noopMonitor) IngredientHit(_ *core.IndexedRecipe)            {}
func (n *noopMonitor) Finish(_ []*core.SearchResult)                  {}
