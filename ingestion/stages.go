package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/poiesic/larder/ai"
	"github.com/poiesic/larder/core"
	"github.com/poiesic/larder/failure"
	"github.com/poiesic/larder/media"
	"github.com/poiesic/larder/retry"
)

// Local progress reached when each stage finishes.
const (
	PercentDownload     = 25.0
	PercentExtractAudio = 50.0
	PercentSTT          = 85.0
	PercentParseRecipe  = 100.0
)

// Checkpoint reports progress inside one item's pipeline.
type Checkpoint struct {
	Stage        core.Stage
	LocalPercent float64
	Message      string
}

// ProgressFunc receives checkpoints. Errors and panics are logged and dropped.
type ProgressFunc func(Checkpoint) error

// stageRunner drives one work item through the stage pipeline.
type stageRunner struct {
	acquirer    media.Acquirer
	audio       media.AudioExtractor
	transcriber ai.Transcriber
	extractor   ai.RecipeExtractor
	images      ai.ImageGenerator
	library     *media.Library
	policies    Policies
	language    string
	palette     bool
	logger      *slog.Logger
}

// run returns the finished recipe, or a *failure.ClassifiedError naming the
// operation that gave up.
func (r *stageRunner) run(ctx context.Context, item core.WorkItem, progress ProgressFunc) (*core.Recipe, error) {
	logger := r.logger.With("key", item.Key)

	r.emit(progress, Checkpoint{Stage: core.StageDownload, Message: "downloading"})
	acq, err := retry.Do(ctx, r.policies.Download, OpDownload, func(ctx context.Context) (*media.Acquisition, error) {
		return r.acquirer.Acquire(ctx, item)
	})
	if err != nil {
		return nil, err
	}
	if acq == nil {
		return nil, failure.New(failure.KindInvalidRequest, OpDownload, ErrNoAcquisition, nil)
	}
	r.emit(progress, Checkpoint{
		Stage:        core.StageDownload,
		LocalPercent: PercentDownload,
		Message:      fmt.Sprintf("acquired %d media files", len(acq.MediaPaths)),
	})

	var recipe *core.Recipe
	if acq.Recipe != nil {
		r.emit(progress, Checkpoint{Stage: core.StageExtractAudio, LocalPercent: PercentExtractAudio, Message: "skipped: stored recipe"})
		r.emit(progress, Checkpoint{Stage: core.StageSTT, LocalPercent: PercentSTT, Message: "skipped: stored recipe"})
		recipe = acq.Recipe.Clone()
	} else {
		transcript, err := r.transcribe(ctx, logger, acq, progress)
		if err != nil {
			return nil, err
		}

		r.emit(progress, Checkpoint{Stage: core.StageParseRecipe, LocalPercent: PercentSTT, Message: "extracting recipe"})
		extracted, err := retry.Do(ctx, r.policies.Extraction, OpExtraction, func(ctx context.Context) (*core.Recipe, error) {
			return r.extractor.ExtractRecipe(ctx, transcript, acq.Caption)
		})
		if err != nil {
			return nil, err
		}
		if extracted == nil {
			return nil, failure.New(failure.KindInvalidRequest, OpExtraction, ErrNoRecipe, nil)
		}
		recipe = extracted.Clone()
		if recipe.Transcript == "" {
			recipe.Transcript = transcript
		}
		if recipe.Caption == "" {
			recipe.Caption = acq.Caption
		}
	}

	recipe.Key = acq.Key
	if recipe.SourceURL == "" {
		recipe.SourceURL = acq.SourceURL
	}
	if recipe.Language == "" {
		recipe.Language = r.language
	}
	if err := core.ValidateRecipe(recipe); err != nil {
		return nil, failure.New(failure.KindInvalidRequest, OpExtraction, err, nil)
	}

	recipe = r.enrich(ctx, logger, recipe, acq)
	r.emit(progress, Checkpoint{Stage: core.StageParseRecipe, LocalPercent: PercentParseRecipe, Message: recipe.Title})
	return recipe, nil
}

// transcribe runs extract_audio and stt. Missing or unreadable audio is not
// fatal: the item continues on its caption alone.
func (r *stageRunner) transcribe(ctx context.Context, logger *slog.Logger, acq *media.Acquisition, progress ProgressFunc) (string, error) {
	video, ok := media.FirstVideo(acq.MediaPaths)
	if !ok || r.audio == nil {
		r.emit(progress, Checkpoint{Stage: core.StageExtractAudio, LocalPercent: PercentExtractAudio, Message: "no video, using caption only"})
		r.emit(progress, Checkpoint{Stage: core.StageSTT, LocalPercent: PercentSTT, Message: "skipped: no audio"})
		return "", nil
	}

	r.emit(progress, Checkpoint{Stage: core.StageExtractAudio, LocalPercent: PercentDownload, Message: "extracting audio"})
	audioPath, err := retry.Do(ctx, r.policies.ExtractAudio, OpExtractAudio, func(ctx context.Context) (string, error) {
		return r.audio.ExtractAudio(ctx, video)
	})
	if err != nil {
		message := "audio extraction failed, using caption only"
		if errors.Is(err, media.ErrNoAudioStream) {
			message = "no audio stream, using caption only"
		} else {
			logger.Warn("error extracting audio", "video", video, "err", err)
		}
		r.emit(progress, Checkpoint{Stage: core.StageExtractAudio, LocalPercent: PercentExtractAudio, Message: message})
		r.emit(progress, Checkpoint{Stage: core.StageSTT, LocalPercent: PercentSTT, Message: "skipped: no audio"})
		return "", nil
	}
	r.emit(progress, Checkpoint{Stage: core.StageExtractAudio, LocalPercent: PercentExtractAudio, Message: "audio extracted"})

	r.emit(progress, Checkpoint{Stage: core.StageSTT, LocalPercent: PercentExtractAudio, Message: "transcribing"})
	policy := r.policies.Transcription
	if info, statErr := os.Stat(audioPath); statErr == nil {
		policy = policy.WithTimeout(retry.ScaleForFileSize(policy.Timeout, info.Size()))
	}
	transcript, err := retry.Do(ctx, policy, OpTranscription, func(ctx context.Context) (string, error) {
		return r.transcriber.Transcribe(ctx, audioPath, r.language)
	})
	if err != nil {
		return "", err
	}
	r.emit(progress, Checkpoint{Stage: core.StageSTT, LocalPercent: PercentSTT, Message: "transcribed"})
	return transcript, nil
}

// enrich adds images and a palette and saves the metadata. Nothing here
// fails the item; each step logs and moves on.
func (r *stageRunner) enrich(ctx context.Context, logger *slog.Logger, recipe *core.Recipe, acq *media.Acquisition) *core.Recipe {
	dir := r.mediaDir(acq)

	if len(recipe.Images) == 0 {
		images := media.Images(acq.MediaPaths)
		if len(images) == 0 && r.images != nil && dir != "" {
			generated, err := retry.Do(ctx, r.policies.Images, OpImages, func(ctx context.Context) ([]string, error) {
				return r.images.GenerateImages(ctx, recipe, dir)
			})
			if err != nil {
				logger.Warn("error generating images, continuing without", "err", err)
			}
			images = generated
		}
		if len(images) > 0 {
			recipe = recipe.WithImages(images)
		}
	}

	if r.palette && len(recipe.Images) > 0 && len(recipe.PaletteHex) == 0 {
		first := recipe.Images[0]
		if !filepath.IsAbs(first) && dir != "" {
			first = filepath.Join(dir, first)
		}
		hex, err := media.Palette(first, media.DefaultPaletteSize)
		if err != nil {
			logger.Warn("error extracting palette", "image", first, "err", err)
		} else {
			recipe = recipe.WithPalette(hex)
		}
	}

	if r.library != nil {
		if err := r.library.SaveMetadata(recipe); err != nil {
			logger.Warn("error saving recipe metadata", "err", err)
		}
	}
	return recipe
}

func (r *stageRunner) mediaDir(acq *media.Acquisition) string {
	if r.library != nil {
		return r.library.Dir(acq.Key)
	}
	if len(acq.MediaPaths) > 0 {
		return filepath.Dir(acq.MediaPaths[0])
	}
	return ""
}

// emit delivers a checkpoint, containing any error or panic from the callback.
func (r *stageRunner) emit(progress ProgressFunc, cp Checkpoint) {
	if progress == nil {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("progress callback panicked", "stage", cp.Stage, "panic", rec)
		}
	}()
	if err := progress(cp); err != nil {
		r.logger.Warn("progress callback failed", "stage", cp.Stage, "err", err)
	}
}
