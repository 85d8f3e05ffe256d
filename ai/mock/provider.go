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

package mock

import "github.com/poiesic/larder/ai"

// MockProvider is a test double for ai.AIProvider.
type MockProvider struct {
	embedder    *MockEmbedder
	extractor   *MockRecipeExtractor
	transcriber *MockTranscriber
	images      *MockImageGenerator
}

var _ ai.AIProvider = (*MockProvider)(nil)

// NewMockProvider creates a provider with default mock services.
func NewMockProvider() *MockProvider {
	return NewMockProviderWithServices(nil, nil, nil, nil)
}

// NewMockProviderWithServices creates a provider from the given mocks.
// Nil arguments are replaced by default mocks.
func NewMockProviderWithServices(embedder *MockEmbedder, extractor *MockRecipeExtractor, transcriber *MockTranscriber, images *MockImageGenerator) *MockProvider {
	if embedder == nil {
		embedder = NewMockEmbedder()
	}
	if extractor == nil {
		extractor = NewMockRecipeExtractor()
	}
	if transcriber == nil {
		transcriber = NewMockTranscriber()
	}
	if images == nil {
		images = NewMockImageGenerator()
	}
	return &MockProvider{
		embedder:    embedder,
		extractor:   extractor,
		transcriber: transcriber,
		images:      images,
	}
}

func (p *MockProvider) Embedder() ai.Embedder {
	return p.embedder
}

func (p *MockProvider) RecipeExtractor() ai.RecipeExtractor {
	return p.extractor
}

func (p *MockProvider) Transcriber() ai.Transcriber {
	return p.transcriber
}

func (p *MockProvider) ImageGenerator() ai.ImageGenerator {
	return p.images
}

func (p *MockProvider) Close() error {
	return nil
}

func (p *MockProvider) GetMockEmbedder() *MockEmbedder {
	return p.embedder
}

func (p *MockProvider) GetMockExtractor() *MockRecipeExtractor {
	return p.extractor
}

func (p *MockProvider) GetMockTranscriber() *MockTranscriber {
	return p.transcriber
}

func (p *MockProvider) GetMockImageGenerator() *MockImageGenerator {
	return p.images
}
