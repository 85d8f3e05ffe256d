package reembed

import "errors"

var (
	// ErrRepositoryRequired is returned when no recipe repository is provided.
	ErrRepositoryRequired = errors.New("recipe repository required")

	// ErrEmbedderRequired is returned when no embedder is provided.
	ErrEmbedderRequired = errors.New("embedder required")
)
