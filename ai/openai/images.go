package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
	"github.com/poiesic/larder/ai"
	"github.com/poiesic/larder/core"
)

// ImageGenerator implements ai.ImageGenerator against the /images/generations endpoint.
type ImageGenerator struct {
	client  *http.Client
	baseURL string
	model   string
	apiKey  string
	count   int
	guard   *guard
	logger  *slog.Logger
}

type imageRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	N              int    `json:"n"`
	Size           string `json:"size"`
	ResponseFormat string `json:"response_format"`
}

type imageResponse struct {
	Data []struct {
		B64JSON string `json:"b64_json"`
	} `json:"data"`
}

func newImageGenerator(config *ai.Config, client *http.Client, g *guard) *ImageGenerator {
	return &ImageGenerator{
		client:  client,
		baseURL: config.MediaHost,
		model:   config.ImageModel,
		apiKey:  token(config),
		count:   config.ImagesPerRecipe,
		guard:   g,
		logger:  slog.Default().With("component", "openai-images"),
	}
}

// NewImageGenerator creates an image generator using the provided configuration.
func NewImageGenerator(config *ai.Config) (ai.ImageGenerator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	logger := slog.Default().With("component", "openai-images")
	return newImageGenerator(config, http.DefaultClient, newGuard("images", newLimiter(config.RequestsPerSecond), logger)), nil
}

// GenerateImages requests one image at a time and writes each as a PNG in dir.
// Images written before a failure are returned along with the error.
func (g *ImageGenerator) GenerateImages(ctx context.Context, recipe *core.Recipe, dir string) ([]string, error) {
	if recipe == nil {
		return nil, fmt.Errorf("invalid request: %w", core.ErrInvalidRecipe)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(recipe.Ingredients))
	for _, ing := range recipe.Ingredients {
		names = append(names, ing.Name)
	}
	payload, err := json.Marshal(imageRequest{
		Model:          g.model,
		Prompt:         buildImagePrompt(recipe.Title, recipe.Description, names),
		N:              1,
		Size:           "1024x1024",
		ResponseFormat: "b64_json",
	})
	if err != nil {
		return nil, err
	}

	paths := make([]string, 0, g.count)
	for i := range g.count {
		data, err := guarded(ctx, g.guard, func() ([]byte, error) {
			return g.request(ctx, payload)
		})
		if err != nil {
			g.logger.Error("image generation failed", "title", recipe.Title, "err", err)
			return paths, err
		}

		path := filepath.Join(dir, fmt.Sprintf("generated_%02d.png", i+1))
		if err := os.WriteFile(path, data, 0644); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	g.logger.Debug("generated images", "title", recipe.Title, "count", len(paths))
	return paths, nil
}

func (g *ImageGenerator) request(ctx context.Context, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/images/generations", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newAPIError(resp)
	}

	var out imageResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	if len(out.Data) == 0 || out.Data[0].B64JSON == "" {
		return nil, ErrNoImageData
	}
	return base64.StdEncoding.DecodeString(out.Data[0].B64JSON)
}
