package ingestion

import "errors"

var (
	// ErrTrackerRequired is returned when a job tracker is not provided.
	ErrTrackerRequired = errors.New("job tracker required")

	// ErrEngineRequired is returned when an indexing engine is not provided.
	ErrEngineRequired = errors.New("indexing engine required")

	// ErrAcquirerRequired is returned when a media acquirer is not provided.
	ErrAcquirerRequired = errors.New("media acquirer required")

	// ErrAIProviderRequired is returned when an AI provider is not provided.
	ErrAIProviderRequired = errors.New("AI provider required")

	// ErrOrchestratorClosed is returned when submitting to a closed orchestrator.
	ErrOrchestratorClosed = errors.New("orchestrator is closed")

	// ErrBatchAborted marks items skipped after the abort policy fired.
	ErrBatchAborted = errors.New("batch aborted: error rate above threshold")

	// ErrNoAcquisition is returned when an acquirer reports success without media.
	ErrNoAcquisition = errors.New("acquirer returned no media")

	// ErrNoRecipe is returned when an extractor reports success without a recipe.
	ErrNoRecipe = errors.New("extractor returned no recipe")
)
