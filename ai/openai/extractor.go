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
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/poiesic/larder/ai"
	"github.com/poiesic/larder/core"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// maxParseAttempts bounds re-asking the model after malformed JSON.
const maxParseAttempts = 3

// RecipeExtractor implements ai.RecipeExtractor using OpenAI-compatible chat APIs.
type RecipeExtractor struct {
	client   llms.Model
	language string
	guard    *guard
	logger   *slog.Logger
}

// minutes accepts 25, "25" or "25 min".
type minutes int

func (m *minutes) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		*m = 0
		return nil
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return err
	}
	*m = minutes(n)
	return nil
}

// looseString accepts a JSON string or a bare number.
type looseString string

func (l *looseString) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		*l = ""
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*l = looseString(s)
		return nil
	}
	*l = looseString(raw)
	return nil
}

type ingredientPayload struct {
	Name     string      `json:"name"`
	Quantity looseString `json:"qt"`
	Unit     string      `json:"um"`
}

// recipePayload matches the JSON the model is asked to produce.
type recipePayload struct {
	Title           string              `json:"title"`
	Category        []string            `json:"category"`
	PreparationTime minutes             `json:"preparation_time"`
	CookingTime     minutes             `json:"cooking_time"`
	Ingredients     []ingredientPayload `json:"ingredients"`
	Steps           []string            `json:"recipe_step"`
	Description     string              `json:"description"`
	Diet            string              `json:"diet"`
	Technique       string              `json:"technique"`
	Language        string              `json:"language"`
	ChefAdvice      string              `json:"chef_advise"`
	Tags            []string            `json:"tags"`
	NutritionalInfo []string            `json:"nutritional_info"`
	CuisineType     string              `json:"cuisine_type"`
}

func newRecipeExtractor(config *ai.Config, g *guard) (*RecipeExtractor, error) {
	client, err := openai.New(
		openai.WithBaseURL(config.ExtractorHost),
		openai.WithToken(token(config)),
		openai.WithModel(config.ExtractorModel),
	)
	if err != nil {
		return nil, err
	}

	return &RecipeExtractor{
		client:   client,
		language: config.Language,
		guard:    g,
		logger:   slog.Default().With("component", "openai-extractor"),
	}, nil
}

// NewRecipeExtractor creates a new recipe extractor using the provided configuration.
func NewRecipeExtractor(config *ai.Config) (ai.RecipeExtractor, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	logger := slog.Default().With("component", "openai-extractor")
	return newRecipeExtractor(config, newGuard("extractor", newLimiter(config.RequestsPerSecond), logger))
}

// ExtractRecipe asks the model for a structured recipe. Malformed JSON is
// retried up to maxParseAttempts times; transport errors are returned at once
// so the caller's retry policy can classify them.
func (e *RecipeExtractor) ExtractRecipe(ctx context.Context, transcript, caption string) (*core.Recipe, error) {
	transcript = cleanText(transcript)
	caption = cleanText(caption)
	if transcript == "" && caption == "" {
		return nil, ErrNoSourceText
	}

	content := []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(buildSystemPrompt(e.language))},
		},
		{
			Role:  llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextPart(buildUserMessage(transcript, caption))},
		},
	}

	var lastErr error
	for attempt := 1; attempt <= maxParseAttempts; attempt++ {
		response, err := guarded(ctx, e.guard, func() (*llms.ContentResponse, error) {
			return e.client.GenerateContent(ctx, content, llms.WithTemperature(0.0), llms.WithJSONMode())
		})
		if err != nil {
			e.logger.Error("failed to generate content", "attempt", attempt, "err", err)
			return nil, err
		}
		if len(response.Choices) < 1 {
			lastErr = ErrEmptyResponse
			continue
		}

		recipe, err := parseRecipe(response.Choices[0].Content)
		if err != nil {
			lastErr = err
			e.logger.Warn("error parsing extractor response", "attempt", attempt, "err", err)
			continue
		}

		if recipe.Language == "" {
			recipe.Language = e.language
		}
		recipe.Transcript = transcript
		recipe.Caption = caption
		e.logger.Debug("extracted recipe", "title", recipe.Title, "ingredients", len(recipe.Ingredients))
		return recipe, nil
	}

	e.logger.Error("failed to parse extractor response after retries", "err", lastErr)
	return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, lastErr)
}

// parseRecipe decodes a model response into a recipe.
func parseRecipe(text string) (*core.Recipe, error) {
	var payload recipePayload
	if err := json.Unmarshal([]byte(repairJSON(stripCodeFence(text))), &payload); err != nil {
		return nil, err
	}
	if strings.TrimSpace(payload.Title) == "" {
		return nil, ErrMissingTitle
	}

	recipe := &core.Recipe{
		Title:           strings.TrimSpace(payload.Title),
		Category:        payload.Category,
		PreparationTime: int(payload.PreparationTime),
		CookingTime:     int(payload.CookingTime),
		Steps:           payload.Steps,
		Description:     payload.Description,
		Diet:            payload.Diet,
		Technique:       payload.Technique,
		Language:        strings.ToLower(payload.Language),
		ChefAdvice:      payload.ChefAdvice,
		Tags:            payload.Tags,
		NutritionalInfo: payload.NutritionalInfo,
		CuisineType:     payload.CuisineType,
	}
	for _, ing := range payload.Ingredients {
		if strings.TrimSpace(ing.Name) == "" {
			continue
		}
		recipe.Ingredients = append(recipe.Ingredients, core.Ingredient{
			Name:     strings.TrimSpace(ing.Name),
			Quantity: string(ing.Quantity),
			Unit:     ing.Unit,
		})
	}
	return recipe, nil
}
