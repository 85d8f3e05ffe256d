package core

import (
	"fmt"
	"strings"
)

func ValidateRecipe(recipe *Recipe) error {
	if recipe == nil {
		return fmt.Errorf("%w: recipe is nil", ErrInvalidRecipe)
	}

	if strings.TrimSpace(recipe.Key) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidRecipe, ErrEmptyKey)
	}

	if strings.TrimSpace(recipe.Title) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidRecipe, ErrEmptyTitle)
	}

	return nil
}

func ValidateWorkItem(item WorkItem) error {
	if strings.TrimSpace(item.Key) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidWorkItem, ErrEmptyKey)
	}

	if err := ValidateSourceKind(item.Kind); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidWorkItem, err)
	}

	return nil
}

// ValidateBatch checks every item of a submitted batch.
func ValidateBatch(items []WorkItem) error {
	if len(items) == 0 {
		return ErrEmptyBatch
	}
	for i, item := range items {
		if err := ValidateWorkItem(item); err != nil {
			return fmt.Errorf("item %d: %w", i, err)
		}
	}
	return nil
}

// UniqueItems drops items whose key repeats an earlier item, keeping the
// first occurrence. It returns the kept items and the dropped keys.
func UniqueItems(items []WorkItem) ([]WorkItem, []string) {
	seen := make(map[string]struct{}, len(items))
	unique := make([]WorkItem, 0, len(items))
	var dropped []string
	for _, item := range items {
		if _, dup := seen[item.Key]; dup {
			dropped = append(dropped, item.Key)
			continue
		}
		seen[item.Key] = struct{}{}
		unique = append(unique, item)
	}
	return unique, dropped
}

func ValidateSourceKind(kind SourceKind) error {
	if kind != SourceURL && kind != SourceFolder {
		return fmt.Errorf("%w: value %d", ErrInvalidSourceKind, kind)
	}
	return nil
}
