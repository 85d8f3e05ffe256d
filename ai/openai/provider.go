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

package openai

import (
	"log/slog"
	"net/http"

	"github.com/poiesic/larder/ai"
)

// Provider implements ai.AIProvider using OpenAI-compatible services.
// All services share one rate limiter; each has its own circuit breaker.
type Provider struct {
	config      *ai.Config
	embedder    *Embedder
	extractor   *RecipeExtractor
	transcriber *Transcriber
	images      *ImageGenerator
	logger      *slog.Logger
}

// NewProvider creates a new AI provider with OpenAI-compatible services.
// The config is validated and normalized before use.
func NewProvider(config *ai.Config) (ai.AIProvider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	logger := slog.Default().With("component", "openai-provider")
	limiter := newLimiter(config.RequestsPerSecond)
	client := &http.Client{}

	embedder, err := newEmbedder(config, newGuard("embeddings", limiter, logger))
	if err != nil {
		return nil, err
	}

	extractor, err := newRecipeExtractor(config, newGuard("extractor", limiter, logger))
	if err != nil {
		return nil, err
	}

	return &Provider{
		config:      config,
		embedder:    embedder,
		extractor:   extractor,
		transcriber: newTranscriber(config, client, newGuard("transcription", limiter, logger)),
		images:      newImageGenerator(config, client, newGuard("images", limiter, logger)),
		logger:      logger,
	}, nil
}

func (p *Provider) Embedder() ai.Embedder {
	return p.embedder
}

func (p *Provider) RecipeExtractor() ai.RecipeExtractor {
	return p.extractor
}

func (p *Provider) Transcriber() ai.Transcriber {
	return p.transcriber
}

func (p *Provider) ImageGenerator() ai.ImageGenerator {
	return p.images
}

// Close releases resources held by the provider.
func (p *Provider) Close() error {
	p.logger.Debug("closing OpenAI provider")
	return nil
}
