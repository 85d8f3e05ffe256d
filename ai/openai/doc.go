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

// Package openai provides AI service implementations using OpenAI-compatible APIs.
//
// Embeddings and recipe extraction go through langchaingo. Transcription and
// image generation call the /audio/transcriptions and /images/generations
// endpoints directly. Non-2xx responses become *APIError values carrying the
// HTTP status and any Retry-After hint, which the failure package uses to
// classify them.
//
// Every call waits on a shared rate limiter and runs behind a per-service
// circuit breaker. An open breaker rejects calls with a 503 APIError.
//
// # Usage
//
//	config := ai.NewConfig(ai.WithHost("http://localhost:11434"))
//	provider, err := openai.NewProvider(config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	recipe, err := provider.RecipeExtractor().ExtractRecipe(ctx, transcript, caption)
package openai
