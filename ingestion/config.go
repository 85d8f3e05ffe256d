package ingestion

import (
	"fmt"
	"time"

	"github.com/poiesic/larder/retry"
)

// Operation names used for classification and logging.
const (
	OpDownload      = "download"
	OpExtractAudio  = "extract_audio"
	OpTranscription = "transcription"
	OpExtraction    = "recipe_extraction"
	OpImages        = "image_generation"
	OpIndexing      = "indexing"
)

// Timeouts bounds each external call made while processing an item.
type Timeouts struct {
	Download      time.Duration
	ExtractAudio  time.Duration
	Transcription time.Duration
	Extraction    time.Duration
	Images        time.Duration
	Indexing      time.Duration
}

// DefaultTimeouts returns the stock per-operation timeouts.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Download:      300 * time.Second,
		ExtractAudio:  120 * time.Second,
		Transcription: 180 * time.Second,
		Extraction:    120 * time.Second,
		Images:        90 * time.Second,
		Indexing:      60 * time.Second,
	}
}

func (t Timeouts) validate() error {
	for name, timeout := range map[string]time.Duration{
		OpDownload:      t.Download,
		OpExtractAudio:  t.ExtractAudio,
		OpTranscription: t.Transcription,
		OpExtraction:    t.Extraction,
		OpImages:        t.Images,
		OpIndexing:      t.Indexing,
	} {
		if timeout <= 0 {
			return fmt.Errorf("%s timeout must be positive, got %s", name, timeout)
		}
	}
	return nil
}

// Policies holds the retry policy for each stage.
type Policies struct {
	Download      retry.Policy
	ExtractAudio  retry.Policy
	Transcription retry.Policy
	Extraction    retry.Policy
	Images        retry.Policy
	Indexing      retry.Policy
}

// DefaultPolicies builds the stage policies around the given timeouts.
// Local transforms and image generation run once; remote calls get the
// default three attempts.
func DefaultPolicies(t Timeouts) Policies {
	transcription := retry.DefaultPolicy().WithTimeout(t.Transcription)
	transcription.Progressive = true
	return Policies{
		Download:      retry.DefaultPolicy().WithTimeout(t.Download),
		ExtractAudio:  retry.Once(t.ExtractAudio),
		Transcription: transcription,
		Extraction:    retry.DefaultPolicy().WithTimeout(t.Extraction),
		Images:        retry.Once(t.Images),
		Indexing:      retry.DefaultPolicy().WithTimeout(t.Indexing),
	}
}

func (p Policies) validate() error {
	for name, policy := range map[string]retry.Policy{
		OpDownload:      p.Download,
		OpExtractAudio:  p.ExtractAudio,
		OpTranscription: p.Transcription,
		OpExtraction:    p.Extraction,
		OpImages:        p.Images,
		OpIndexing:      p.Indexing,
	} {
		if policy.MaxAttempts < 1 {
			return fmt.Errorf("%s policy: %w", name, retry.ErrInvalidMaxAttempts)
		}
	}
	return nil
}
