package ai

import (
	"errors"
	"strings"
)

// Config holds the settings for AI services.
type Config struct {
	// EmbeddingHost is the base URL for the embedding service API.
	// Example: "http://localhost:11434/v1" for local OpenAI-compatible server
	EmbeddingHost string

	// ExtractorHost is the base URL for the chat model that extracts recipes.
	ExtractorHost string

	// MediaHost is the base URL for transcription and image generation.
	MediaHost string

	// EmbeddingModel is the model identifier to use for text embeddings.
	// Example: "embeddinggemma", "text-embedding-3-small"
	EmbeddingModel string

	// ExtractorModel is the chat model used for recipe extraction.
	ExtractorModel string

	// TranscriptionModel is the speech-to-text model.
	TranscriptionModel string

	// ImageModel is the image generation model.
	ImageModel string

	// APIKey is sent as a bearer token. Local servers usually ignore it.
	APIKey string

	// Language is the language recipes are written in (ISO-639-1).
	Language string

	// RequestsPerSecond paces calls to every service. Zero disables pacing.
	RequestsPerSecond float64

	// ImagesPerRecipe is how many images to generate for a recipe without pictures.
	ImagesPerRecipe int
}

// ConfigOption configures a Config.
type ConfigOption func(*Config)

func WithEmbeddingHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
	}
}

func WithExtractorHost(host string) ConfigOption {
	return func(c *Config) {
		c.ExtractorHost = host
	}
}

func WithMediaHost(host string) ConfigOption {
	return func(c *Config) {
		c.MediaHost = host
	}
}

// WithHost points every service at the same server.
func WithHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
		c.ExtractorHost = host
		c.MediaHost = host
	}
}

func WithEmbeddingModel(model string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingModel = model
	}
}

func WithExtractorModel(model string) ConfigOption {
	return func(c *Config) {
		c.ExtractorModel = model
	}
}

func WithTranscriptionModel(model string) ConfigOption {
	return func(c *Config) {
		c.TranscriptionModel = model
	}
}

func WithImageModel(model string) ConfigOption {
	return func(c *Config) {
		c.ImageModel = model
	}
}

func WithAPIKey(key string) ConfigOption {
	return func(c *Config) {
		c.APIKey = key
	}
}

func WithLanguage(language string) ConfigOption {
	return func(c *Config) {
		c.Language = language
	}
}

func WithRequestsPerSecond(rps float64) ConfigOption {
	return func(c *Config) {
		c.RequestsPerSecond = rps
	}
}

func WithImagesPerRecipe(n int) ConfigOption {
	return func(c *Config) {
		c.ImagesPerRecipe = n
	}
}

// DefaultConfig returns a configuration for a local OpenAI-compatible server.
func DefaultConfig() *Config {
	defaultHost := "http://localhost:11434/v1"
	return &Config{
		EmbeddingHost:      defaultHost,
		ExtractorHost:      defaultHost,
		MediaHost:          defaultHost,
		EmbeddingModel:     "embeddinggemma",
		ExtractorModel:     "qwen2.5:7b",
		TranscriptionModel: "whisper-1",
		ImageModel:         "dall-e-3",
		Language:           "en",
		RequestsPerSecond:  2,
		ImagesPerRecipe:    1,
	}
}

func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Normalize makes sure every host ends with /v1.
func (c *Config) Normalize() {
	c.EmbeddingHost = normalizeHost(c.EmbeddingHost)
	c.ExtractorHost = normalizeHost(c.ExtractorHost)
	c.MediaHost = normalizeHost(c.MediaHost)
	c.Language = strings.ToLower(strings.TrimSpace(c.Language))
}

func normalizeHost(host string) string {
	if host == "" || strings.HasSuffix(host, "/v1") {
		return host
	}
	return strings.TrimSuffix(host, "/") + "/v1"
}

func (c *Config) Validate() error {
	c.Normalize()

	if c.EmbeddingHost == "" {
		return errors.New("ai config: EmbeddingHost is required")
	}
	if c.ExtractorHost == "" {
		return errors.New("ai config: ExtractorHost is required")
	}
	if c.MediaHost == "" {
		return errors.New("ai config: MediaHost is required")
	}
	if c.EmbeddingModel == "" {
		return errors.New("ai config: EmbeddingModel is required")
	}
	if c.ExtractorModel == "" {
		return errors.New("ai config: ExtractorModel is required")
	}
	if c.TranscriptionModel == "" {
		return errors.New("ai config: TranscriptionModel is required")
	}
	if c.ImageModel == "" {
		return errors.New("ai config: ImageModel is required")
	}
	if c.Language == "" {
		return errors.New("ai config: Language is required")
	}
	if c.RequestsPerSecond < 0 {
		return errors.New("ai config: RequestsPerSecond must not be negative")
	}
	if c.ImagesPerRecipe < 1 || c.ImagesPerRecipe > 4 {
		return errors.New("ai config: ImagesPerRecipe must be between 1 and 4")
	}
	return nil
}
