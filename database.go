// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package larder

import (
	"context"
	"io"
	"log/slog"

	"github.com/poiesic/larder/ai"
	"github.com/poiesic/larder/ai/openai"
	"github.com/poiesic/larder/indexing"
	"github.com/poiesic/larder/ingestion"
	"github.com/poiesic/larder/jobs"
	"github.com/poiesic/larder/media"
	"github.com/poiesic/larder/reembed"
	"github.com/poiesic/larder/search"
	"github.com/poiesic/larder/storage"
	"github.com/poiesic/larder/storage/badger"
)

type Database struct {
	backend     *badger.Backend
	recipeRepo  storage.RecipeRepository
	jobRepo     storage.JobRepository
	tracker     *jobs.Tracker
	engine      *indexing.Engine
	provider    ai.AIProvider
	library     *media.Library
	mediaConfig media.Config
	language    string
	logger      *slog.Logger
}

// DatabaseOption configures a Database.
type DatabaseOption func(*databaseOptions)

type databaseOptions struct {
	aiConfig    *ai.Config
	provider    ai.AIProvider
	mediaConfig media.Config
	logger      *slog.Logger
}

// WithAIConfig configures the OpenAI-compatible provider.
func WithAIConfig(config *ai.Config) DatabaseOption {
	return func(o *databaseOptions) {
		if config != nil {
			o.aiConfig = config
		}
	}
}

// WithAIProvider uses provider instead of building one from the AI config.
// The database takes ownership and closes it.
func WithAIProvider(provider ai.AIProvider) DatabaseOption {
	return func(o *databaseOptions) {
		o.provider = provider
	}
}

// WithMediaConfig sets the media library root and tool paths.
func WithMediaConfig(config media.Config) DatabaseOption {
	return func(o *databaseOptions) {
		o.mediaConfig = config
	}
}

// WithLogger sets the logger handed to every component.
func WithLogger(logger *slog.Logger) DatabaseOption {
	return func(o *databaseOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// NewDatabase opens the index at filePath. Jobs left running by a previous
// process are marked failed before it returns.
func NewDatabase(filePath string, opts ...DatabaseOption) (*Database, error) {
	// Apply options
	options := &databaseOptions{
		aiConfig:    ai.DefaultConfig(), // Default if not provided
		mediaConfig: media.DefaultConfig(),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}
	if err := options.mediaConfig.Validate(); err != nil {
		return nil, err
	}

	// Open backend
	backend, err := badger.OpenBackend(filePath, false)
	if err != nil {
		return nil, err
	}
	recipeRepo := badger.NewRecipeRepository(backend)
	jobRepo := badger.NewJobRepository(backend)

	tracker, err := jobs.NewTracker(jobRepo, jobs.WithLogger(options.logger.With("component", "jobs")))
	if err != nil {
		backend.Close()
		return nil, err
	}
	recovered, err := tracker.Recover(context.Background())
	if err != nil {
		backend.Close()
		return nil, err
	}
	if recovered > 0 {
		options.logger.Warn("marked interrupted jobs as failed", "count", recovered)
	}

	provider := options.provider
	if provider == nil {
		// Create AI provider with configured settings
		provider, err = openai.NewProvider(options.aiConfig)
		if err != nil {
			backend.Close()
			return nil, err
		}
	}

	engine, err := indexing.NewEngine(recipeRepo,
		indexing.WithEmbedder(provider.Embedder()),
		indexing.WithLogger(options.logger.With("component", "indexing")))
	if err != nil {
		provider.Close()
		backend.Close()
		return nil, err
	}

	return &Database{
		backend:     backend,
		recipeRepo:  recipeRepo,
		jobRepo:     jobRepo,
		tracker:     tracker,
		engine:      engine,
		provider:    provider,
		library:     media.NewLibrary(options.mediaConfig.LibraryRoot),
		mediaConfig: options.mediaConfig,
		language:    options.aiConfig.Language,
		logger:      options.logger,
	}, nil
}

func (db *Database) Close() error {
	// Close AI provider first
	if err := db.provider.Close(); err != nil {
		db.logger.Error("error closing AI provider", "err", err)
	}

	if err := db.recipeRepo.Close(); err != nil {
		db.logger.Error("error closing recipe repository", "err", err)
		return err
	}

	// Close backend
	if err := db.backend.Close(); err != nil {
		db.logger.Error("error closing backend storage", "err", err)
		return err
	}
	return nil
}

func (db *Database) RecipeRepository() storage.RecipeRepository {
	return db.recipeRepo
}

func (db *Database) JobRepository() storage.JobRepository {
	return db.jobRepo
}

func (db *Database) Tracker() *jobs.Tracker {
	return db.tracker
}

func (db *Database) Library() *media.Library {
	return db.library
}

// NewOrchestrator builds an orchestrator over the shared tracker and
// indexing engine, acquiring URLs with yt-dlp and folders from the library.
// opts are applied after the database defaults.
func (db *Database) NewOrchestrator(opts ...ingestion.Option) (*ingestion.Orchestrator, error) {
	runner := media.ExecRunner{}
	acquirer := media.NewRouter(
		media.NewURLAcquirer(db.library, runner, db.mediaConfig.YTDLPPath),
		media.NewFolderAcquirer(db.library),
	)
	defaults := []ingestion.Option{
		ingestion.WithAudioExtractor(media.NewFFmpegExtractor(runner, db.mediaConfig.FFmpegPath, db.mediaConfig.FFprobePath)),
		ingestion.WithLibrary(db.library),
		ingestion.WithLanguage(db.language),
		ingestion.WithLogger(db.logger.With("component", "ingestion")),
	}
	return ingestion.NewOrchestrator(db.tracker, db.engine, acquirer, db.provider, append(defaults, opts...)...)
}

func (db *Database) NewSearcher(opts ...search.Option) (*search.Searcher, error) {
	return search.NewSearcher(db.recipeRepo, db.provider, opts...)
}

// NewReembedder recomputes every recipe vector with the current embedder.
func (db *Database) NewReembedder(config *reembed.Config, progress io.Writer) (*reembed.Reembedder, error) {
	return reembed.NewReembedder(db.recipeRepo, db.provider.Embedder(), config, progress)
}

// DeleteRecipes removes recipes from the index. Missing keys are ignored.
func (db *Database) DeleteRecipes(ctx context.Context, keys ...string) (int, error) {
	if err := db.engine.EnsureCollection(ctx); err != nil {
		return 0, err
	}
	return db.recipeRepo.Delete(ctx, keys...)
}
