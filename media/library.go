package media

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
	"github.com/poiesic/larder/core"
)

const originalDir = "media_original"

// Library is the on-disk media store: one folder per key holding the
// original media and a metadata_<key>.json file describing the recipe.
type Library struct {
	root string
}

func NewLibrary(root string) *Library {
	return &Library{root: root}
}

// Root returns the library root directory.
func (l *Library) Root() string {
	return l.root
}

// Dir returns the media folder for key.
func (l *Library) Dir(key string) string {
	return filepath.Join(l.root, SanitizeFilename(key), originalDir)
}

// MetadataPath returns the metadata file for key.
func (l *Library) MetadataPath(key string) string {
	safe := SanitizeFilename(key)
	return filepath.Join(l.root, safe, originalDir, "metadata_"+safe+".json")
}

// LoadMetadata reads the recipe stored for key.
func (l *Library) LoadMetadata(key string) (*core.Recipe, error) {
	data, err := os.ReadFile(l.MetadataPath(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrMetadataNotFound, key)
		}
		return nil, err
	}
	var recipe core.Recipe
	if err := json.Unmarshal(data, &recipe); err != nil {
		return nil, fmt.Errorf("metadata %s: %w", key, err)
	}
	if recipe.Key == "" {
		recipe.Key = key
	}
	return &recipe, nil
}

// SaveMetadata writes the recipe next to its media. The file is replaced atomically.
func (l *Library) SaveMetadata(recipe *core.Recipe) error {
	if err := core.ValidateRecipe(recipe); err != nil {
		return err
	}
	path := l.MetadataPath(recipe.Key)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(recipe, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Keys lists the folders in the library, sorted by name.
func (l *Library) Keys() ([]string, error) {
	entries, err := os.ReadDir(l.root)
	if err != nil {
		return nil, err
	}
	var keys []string
	for _, e := range entries {
		if e.IsDir() {
			keys = append(keys, e.Name())
		}
	}
	return keys, nil
}
