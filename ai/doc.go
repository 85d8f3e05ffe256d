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

// Package ai provides abstractions for the AI services larder talks to.
//
// The ingestion pipeline depends only on the interfaces in this package:
//
//   - Transcriber: speech to text for downloaded videos
//   - RecipeExtractor: structured recipe from a transcript and caption
//   - ImageGenerator: pictures for recipes that arrive without any
//   - Embedder: vectors for semantic search
//   - AIProvider: aggregates the above for convenient initialization
//
// # Implementation Packages
//
//   - ai/openai: OpenAI-compatible implementation. Embeddings and chat go
//     through langchaingo; transcription and images use the REST endpoints
//     directly. Every call is paced by a shared rate limiter and guarded by a
//     per-service circuit breaker.
//   - ai/mock: test doubles with overridable Func fields and call counters.
//
// Public constructors return interfaces; mock constructors return concrete
// types so tests can inject behavior and assert on call counts.
//
// # Usage Example
//
//	config := ai.NewConfig(ai.WithHost("http://localhost:11434"), ai.WithLanguage("it"))
//	provider, err := openai.NewProvider(config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	text, err := provider.Transcriber().Transcribe(ctx, "/tmp/audio.mp3", "it")
//	recipe, err := provider.RecipeExtractor().ExtractRecipe(ctx, text, caption)
package ai
