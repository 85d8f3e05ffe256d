package media

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/poiesic/larder/core"
)

// FolderAcquirer reads an existing library folder and its stored recipe.
type FolderAcquirer struct {
	library *Library
}

var _ Acquirer = (*FolderAcquirer)(nil)

func NewFolderAcquirer(library *Library) *FolderAcquirer {
	return &FolderAcquirer{library: library}
}

// Acquire returns the folder's media and recipe. A folder without metadata
// is an invalid request; a folder without media is fine.
func (a *FolderAcquirer) Acquire(ctx context.Context, item core.WorkItem) (*Acquisition, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if item.Key != SanitizeFilename(item.Key) {
		return nil, fmt.Errorf("invalid request: %w: %q", ErrInvalidKey, item.Key)
	}

	recipe, err := a.library.LoadMetadata(item.Key)
	if err != nil {
		if errors.Is(err, ErrMetadataNotFound) {
			return nil, fmt.Errorf("invalid request: %w", err)
		}
		return nil, err
	}
	recipe.Key = item.Key

	paths, err := listMedia(a.library.Dir(item.Key))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	return &Acquisition{
		Key:        item.Key,
		MediaPaths: paths,
		Caption:    recipe.Caption,
		SourceURL:  recipe.SourceURL,
		Recipe:     recipe,
	}, nil
}
