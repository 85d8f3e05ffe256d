package indexing

import "errors"

var (
	// ErrRepositoryRequired is returned when no recipe repository is provided.
	ErrRepositoryRequired = errors.New("recipe repository required")

	// ErrCollectionSetup is returned when the index collection cannot be created.
	ErrCollectionSetup = errors.New("index collection setup failed")
)
