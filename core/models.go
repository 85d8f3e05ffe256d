package core

import (
	"encoding/binary"
	"slices"
	"strings"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for domain entities.
// Recipe IDs are content-based so the same key always maps to the same ID.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// RecipeID returns the index ID for a recipe key.
func RecipeID(key string) ID {
	return IDFromContent("(recipe," + key + ")")
}

// SourceKind tells an acquirer how to interpret a work item key.
type SourceKind int

const (
	// SourceURL is a social-video or web URL.
	SourceURL SourceKind = iota + 1
	// SourceFolder is a folder key under the media library root.
	SourceFolder
)

func (k SourceKind) String() string {
	switch k {
	case SourceURL:
		return "url"
	case SourceFolder:
		return "folder"
	default:
		return "unknown"
	}
}

// WorkItem is one reference submitted for ingestion. Its identity is Key.
type WorkItem struct {
	Key  string     `json:"key"`
	Kind SourceKind `json:"kind"`
}

// URLItems builds URL work items.
func URLItems(urls ...string) []WorkItem {
	items := make([]WorkItem, len(urls))
	for i, u := range urls {
		items[i] = WorkItem{Key: u, Kind: SourceURL}
	}
	return items
}

// FolderItems builds folder work items.
func FolderItems(keys ...string) []WorkItem {
	items := make([]WorkItem, len(keys))
	for i, k := range keys {
		items[i] = WorkItem{Key: k, Kind: SourceFolder}
	}
	return items
}

// Ingredient is a single line of a recipe's ingredient list.
type Ingredient struct {
	Name     string `json:"name"`
	Quantity string `json:"qt"`
	Unit     string `json:"um"`
}

// Recipe is the structured record produced for one work item.
// Recipes are treated as immutable once produced; enrichment returns copies.
type Recipe struct {
	Key             string       `json:"shortcode"`
	Title           string       `json:"title"`
	Category        []string     `json:"category,omitempty"`
	PreparationTime int          `json:"preparation_time,omitempty"` // minutes
	CookingTime     int          `json:"cooking_time,omitempty"`     // minutes
	Ingredients     []Ingredient `json:"ingredients,omitempty"`
	Steps           []string     `json:"recipe_step,omitempty"`
	Description     string       `json:"description,omitempty"`
	Diet            string       `json:"diet,omitempty"`
	Technique       string       `json:"technique,omitempty"`
	Language        string       `json:"language,omitempty"`
	ChefAdvice      string       `json:"chef_advise,omitempty"`
	Tags            []string     `json:"tags,omitempty"`
	NutritionalInfo []string     `json:"nutritional_info,omitempty"`
	CuisineType     string       `json:"cuisine_type,omitempty"`
	Transcript      string       `json:"audio,omitempty"`
	Caption         string       `json:"caption,omitempty"`
	Images          []string     `json:"images,omitempty"`
	ImageURL        string       `json:"image_url,omitempty"`
	PaletteHex      []string     `json:"palette_hex,omitempty"`
	SourceURL       string       `json:"source_url,omitempty"`
}

// Clone returns a deep copy of the recipe.
func (r *Recipe) Clone() *Recipe {
	if r == nil {
		return nil
	}
	c := *r
	c.Category = slices.Clone(r.Category)
	c.Ingredients = slices.Clone(r.Ingredients)
	c.Steps = slices.Clone(r.Steps)
	c.Tags = slices.Clone(r.Tags)
	c.NutritionalInfo = slices.Clone(r.NutritionalInfo)
	c.Images = slices.Clone(r.Images)
	c.PaletteHex = slices.Clone(r.PaletteHex)
	return &c
}

// WithImages returns a copy of the recipe carrying the given images.
func (r *Recipe) WithImages(images []string) *Recipe {
	c := r.Clone()
	c.Images = slices.Clone(images)
	return c
}

// WithPalette returns a copy of the recipe carrying the given palette.
func (r *Recipe) WithPalette(hex []string) *Recipe {
	c := r.Clone()
	c.PaletteHex = slices.Clone(hex)
	return c
}

// SearchText is the text embedded for semantic search.
func (r *Recipe) SearchText() string {
	var b strings.Builder
	b.WriteString(r.Title)
	if r.Description != "" {
		b.WriteString(". ")
		b.WriteString(r.Description)
	}
	if len(r.Ingredients) > 0 {
		b.WriteString(". Ingredients: ")
		for i, ing := range r.Ingredients {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(ing.Name)
		}
	}
	if r.CuisineType != "" {
		b.WriteString(". Cuisine: ")
		b.WriteString(r.CuisineType)
	}
	if len(r.Tags) > 0 {
		b.WriteString(". Tags: ")
		b.WriteString(strings.Join(r.Tags, ", "))
	}
	return b.String()
}

// IndexedRecipe is a recipe as stored in the search index.
type IndexedRecipe struct {
	Id         ID        `json:"id"`
	Recipe     *Recipe   `json:"recipe"`
	Vector     []float32 `json:"vector,omitempty"` // Embedding vector for semantic search
	InsertedAt time.Time `json:"inserted_at"`      // When the recipe was first indexed
	UpdatedAt  time.Time `json:"updated_at"`       // When the recipe was last written
}

// NewIndexedRecipe wraps a recipe with its deterministic ID.
func NewIndexedRecipe(recipe *Recipe, vector []float32) *IndexedRecipe {
	return &IndexedRecipe{
		Id:     RecipeID(recipe.Key),
		Recipe: recipe,
		Vector: vector,
	}
}

type SearchResult struct {
	Recipe *IndexedRecipe
	Score  float32
}
