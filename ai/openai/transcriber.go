package openai

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"github.com/poiesic/larder/ai"
)

// Transcriber implements ai.Transcriber against the /audio/transcriptions endpoint.
type Transcriber struct {
	client  *http.Client
	baseURL string
	model   string
	apiKey  string
	guard   *guard
	logger  *slog.Logger
}

func newTranscriber(config *ai.Config, client *http.Client, g *guard) *Transcriber {
	return &Transcriber{
		client:  client,
		baseURL: config.MediaHost,
		model:   config.TranscriptionModel,
		apiKey:  token(config),
		guard:   g,
		logger:  slog.Default().With("component", "openai-transcriber"),
	}
}

// NewTranscriber creates a transcriber using the provided configuration.
func NewTranscriber(config *ai.Config) (ai.Transcriber, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	logger := slog.Default().With("component", "openai-transcriber")
	return newTranscriber(config, http.DefaultClient, newGuard("transcription", newLimiter(config.RequestsPerSecond), logger)), nil
}

// Transcribe uploads the audio file and returns the recognized text.
func (t *Transcriber) Transcribe(ctx context.Context, audioPath, language string) (string, error) {
	body, contentType, err := transcriptionForm(audioPath, t.model, language)
	if err != nil {
		return "", err
	}

	t.logger.Debug("transcribing audio", "path", audioPath, "bytes", body.Len())
	text, err := guarded(ctx, t.guard, func() (string, error) {
		return t.post(ctx, bytes.NewReader(body.Bytes()), contentType)
	})
	if err != nil {
		t.logger.Error("transcription failed", "path", audioPath, "err", err)
		return "", err
	}
	return text, nil
}

func (t *Transcriber) post(ctx context.Context, body io.Reader, contentType string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/audio/transcriptions", body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+t.apiKey)

	resp, err := t.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", newAPIError(resp)
	}

	var out struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return strings.TrimSpace(out.Text), nil
}

func transcriptionForm(audioPath, model, language string) (*bytes.Buffer, string, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	part, err := w.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", err
	}
	if err := w.WriteField("model", model); err != nil {
		return nil, "", err
	}
	if language != "" {
		if err := w.WriteField("language", language); err != nil {
			return nil, "", err
		}
	}
	if err := w.WriteField("response_format", "json"); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return body, w.FormDataContentType(), nil
}
