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

package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/larder/ai"
	"github.com/poiesic/larder/core"
	"github.com/poiesic/larder/failure"
	"github.com/poiesic/larder/indexing"
	"github.com/poiesic/larder/jobs"
	"github.com/poiesic/larder/media"
)

// DefaultMaxConcurrentJobs is the default number of jobs run at once.
const DefaultMaxConcurrentJobs = 4

const (
	opAbort   = "abort"
	opProcess = "process"
)

// AbortPolicy decides what happens when a batch's error rate gets high.
// When disabled the orchestrator only logs a warning.
type AbortPolicy struct {
	Enabled bool
	// Threshold is the errors/(errors+successes) ratio that triggers the policy.
	Threshold float64
	// MinSamples is the number of finished items needed before checking.
	MinSamples int
}

// DefaultAbortPolicy warns at an 80% error rate and never stops the batch.
func DefaultAbortPolicy() AbortPolicy {
	return AbortPolicy{Enabled: false, Threshold: 0.8, MinSamples: 3}
}

// Orchestrator runs submitted batches through the stage pipeline and
// writes the results to the index.
type Orchestrator struct {
	tracker *jobs.Tracker
	engine  *indexing.Engine
	runner  *stageRunner
	pool    *ants.Pool

	timeouts Timeouts
	policies Policies
	abort    AbortPolicy
	language string
	images   bool
	palette  bool
	audio    media.AudioExtractor
	library  *media.Library

	mu      sync.Mutex
	running map[string]chan struct{}
	closed  bool
	wg      sync.WaitGroup

	logger *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator) error

// WithMaxConcurrentJobs bounds the number of jobs processed at once.
// Default is DefaultMaxConcurrentJobs.
func WithMaxConcurrentJobs(size int) Option {
	return func(o *Orchestrator) error {
		if size < 1 {
			size = 1
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		if o.pool != nil {
			o.pool.Release()
		}
		o.pool = pool
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) error {
		if logger == nil {
			logger = slog.Default()
		}
		o.logger = logger
		return nil
	}
}

// WithTimeouts replaces the per-operation timeouts and rebuilds the stage
// policies from them. Every timeout must be positive.
func WithTimeouts(timeouts Timeouts) Option {
	return func(o *Orchestrator) error {
		if err := timeouts.validate(); err != nil {
			return err
		}
		o.timeouts = timeouts
		o.policies = DefaultPolicies(timeouts)
		return nil
	}
}

// WithPolicies replaces the stage retry policies.
func WithPolicies(policies Policies) Option {
	return func(o *Orchestrator) error {
		if err := policies.validate(); err != nil {
			return err
		}
		o.policies = policies
		return nil
	}
}

// WithAbortPolicy sets the high error rate policy.
func WithAbortPolicy(policy AbortPolicy) Option {
	return func(o *Orchestrator) error {
		if policy.Threshold <= 0 || policy.Threshold > 1 {
			return fmt.Errorf("abort threshold must be in (0, 1], got %v", policy.Threshold)
		}
		o.abort = policy
		return nil
	}
}

// WithLanguage sets the transcription language hint and recipe default.
func WithLanguage(language string) Option {
	return func(o *Orchestrator) error {
		o.language = strings.ToLower(strings.TrimSpace(language))
		return nil
	}
}

// WithAudioExtractor enables the extract_audio stage.
// Without one every item is processed from its caption.
func WithAudioExtractor(audio media.AudioExtractor) Option {
	return func(o *Orchestrator) error {
		o.audio = audio
		return nil
	}
}

// WithLibrary stores generated images and recipe metadata in library.
func WithLibrary(library *media.Library) Option {
	return func(o *Orchestrator) error {
		o.library = library
		return nil
	}
}

// WithImageGeneration toggles image generation for recipes without images.
// Default is enabled.
func WithImageGeneration(enabled bool) Option {
	return func(o *Orchestrator) error {
		o.images = enabled
		return nil
	}
}

// WithPalette toggles palette extraction. Default is enabled.
func WithPalette(enabled bool) Option {
	return func(o *Orchestrator) error {
		o.palette = enabled
		return nil
	}
}

// NewOrchestrator creates an orchestrator. The tracker and engine may be
// shared with other orchestrators in the process.
func NewOrchestrator(
	tracker *jobs.Tracker,
	engine *indexing.Engine,
	acquirer media.Acquirer,
	provider ai.AIProvider,
	opts ...Option,
) (*Orchestrator, error) {
	if tracker == nil {
		return nil, ErrTrackerRequired
	}
	if engine == nil {
		return nil, ErrEngineRequired
	}
	if acquirer == nil {
		return nil, ErrAcquirerRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	pool, err := ants.NewPool(DefaultMaxConcurrentJobs)
	if err != nil {
		return nil, err
	}

	timeouts := DefaultTimeouts()
	o := &Orchestrator{
		tracker:  tracker,
		engine:   engine,
		pool:     pool,
		timeouts: timeouts,
		policies: DefaultPolicies(timeouts),
		abort:    DefaultAbortPolicy(),
		language: "en",
		images:   true,
		palette:  true,
		running:  make(map[string]chan struct{}),
		logger:   slog.Default().With("component", "ingestion"),
	}

	for _, opt := range opts {
		if optErr := opt(o); optErr != nil {
			o.pool.Release()
			return nil, optErr
		}
	}

	// Build the runner after options so it sees the final configuration.
	o.runner = &stageRunner{
		acquirer:    acquirer,
		audio:       o.audio,
		transcriber: provider.Transcriber(),
		extractor:   provider.RecipeExtractor(),
		library:     o.library,
		policies:    o.policies,
		language:    o.language,
		palette:     o.palette,
		logger:      o.logger,
	}
	if o.images {
		o.runner.images = provider.ImageGenerator()
	}
	return o, nil
}

// Submit registers a job for items and starts it in the background.
// Items repeating an earlier key are dropped. It returns the job ID without
// waiting for a worker.
func (o *Orchestrator) Submit(ctx context.Context, items ...core.WorkItem) (string, error) {
	if err := core.ValidateBatch(items); err != nil {
		return "", err
	}
	items, dropped := core.UniqueItems(items)

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return "", ErrOrchestratorClosed
	}

	jobID := uuid.NewString()
	if _, err := o.tracker.Create(ctx, jobID, items); err != nil {
		return "", err
	}
	done := make(chan struct{})
	o.running[jobID] = done
	o.wg.Add(1)

	batch := items
	go func() {
		err := o.pool.Submit(func() {
			o.runJob(jobID, batch)
		})
		if err != nil {
			o.logger.Error("error scheduling job", "jobID", jobID, "err", err)
			if _, failErr := o.tracker.Fail(context.Background(), jobID, "could not be scheduled: "+err.Error()); failErr != nil {
				o.logger.Error("error failing job", "jobID", jobID, "err", failErr)
			}
			o.finish(jobID)
		}
	}()

	if len(dropped) > 0 {
		o.logger.Warn("dropped duplicate items", "jobID", jobID, "keys", dropped)
	}
	o.logger.Info("submitted job", "jobID", jobID, "items", len(items))
	return jobID, nil
}

// Status returns a snapshot of the job.
func (o *Orchestrator) Status(ctx context.Context, jobID string) (*core.JobState, error) {
	return o.tracker.Get(ctx, jobID)
}

// Wait blocks until the job is finished or ctx is done, then returns its state.
func (o *Orchestrator) Wait(ctx context.Context, jobID string) (*core.JobState, error) {
	o.mu.Lock()
	done, ok := o.running[jobID]
	o.mu.Unlock()

	if ok {
		select {
		case <-done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return o.tracker.Get(ctx, jobID)
}

// Jobs lists every known job, oldest first.
func (o *Orchestrator) Jobs(ctx context.Context) ([]*core.JobState, error) {
	return o.tracker.List(ctx)
}

// Close stops accepting jobs and waits for running ones to finish.
func (o *Orchestrator) Close() error {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()

	o.wg.Wait()
	o.pool.Release()
	return nil
}

func (o *Orchestrator) finish(jobID string) {
	o.mu.Lock()
	if done, ok := o.running[jobID]; ok {
		close(done)
		delete(o.running, jobID)
	}
	o.mu.Unlock()
	o.wg.Done()
}

// runJob walks the batch in order and indexes whatever it produced.
// Jobs are not cancelled mid-run, so it uses a background context.
// The job is failed if runJob exits without a terminal status.
func (o *Orchestrator) runJob(jobID string, items []core.WorkItem) {
	defer o.finish(jobID)

	ctx := context.Background()
	logger := o.logger.With("jobID", jobID)
	terminal := false
	defer func() {
		rec := recover()
		if rec != nil {
			logger.Error("job panicked", "panic", rec)
		}
		if terminal {
			return
		}
		detail := "internal error"
		if rec != nil {
			detail = fmt.Sprintf("internal error: %v", rec)
		}
		if _, err := o.tracker.Fail(ctx, jobID, detail); err != nil && !errors.Is(err, jobs.ErrJobFinalized) {
			logger.Error("error failing job", "err", err)
		}
	}()

	batch := NewBatchErrors(logger)
	aborted := false

	for i, item := range items {
		if aborted {
			batch.AddError(ErrBatchAborted, item.Key, opAbort, SeverityLow)
			o.updateItem(ctx, logger, jobID, i, jobs.ItemUpdate{Stage: core.StageError, Error: ErrBatchAborted.Error()})
			continue
		}

		recipe, err := o.processItem(ctx, logger, jobID, i, item)
		if err != nil {
			ce := batch.AddError(err, item.Key, "", "")
			o.updateItem(ctx, logger, jobID, i, jobs.ItemUpdate{Stage: core.StageError, Error: ce.UserMessage})
		} else {
			batch.AddSuccess(item.Key, recipe)
			o.updateItem(ctx, logger, jobID, i, jobs.ItemUpdate{Status: core.ItemSuccess})
		}

		if o.shouldAbort(batch) {
			summary := batch.Summary()
			logger.Warn("high error rate in batch",
				"errors", summary.Errors,
				"successes", summary.Successes,
				"threshold", o.abort.Threshold,
				"enforced", o.abort.Enabled)
			aborted = o.abort.Enabled
		}
	}

	if err := o.tracker.SetStage(ctx, jobID, core.StageIndexing); err != nil {
		logger.Warn("error updating job stage", "err", err)
	}

	var report indexing.Report
	if recipes := batch.Recipes(); len(recipes) > 0 {
		indexCtx, cancel := context.WithTimeout(ctx, o.timeouts.Indexing)
		var err error
		report, err = o.engine.UpsertBatchWithPolicy(indexCtx, o.policies.Indexing, recipes)
		cancel()
		if err != nil {
			logger.Error("index setup failed", "err", err)
			if _, failErr := o.tracker.Fail(ctx, jobID, err.Error()); failErr != nil {
				logger.Error("error failing job", "err", failErr)
			} else {
				terminal = true
			}
			return
		}
	}

	summary := batch.Summary()
	result := core.JobResult{
		Indexed: report.Succeeded + len(report.Skipped),
		Total:   len(items),
		Success: summary.Successes,
		Failed:  summary.Errors,
	}
	final, err := o.tracker.Finalize(ctx, jobID, result, buildDetail(items, summary, report))
	if err != nil {
		logger.Error("error finalizing job", "err", err)
		return
	}
	terminal = true
	logger.Info("job finished",
		"status", final.Status,
		"indexed", result.Indexed,
		"success", result.Success,
		"failed", result.Failed)
}

// processItem runs one item's pipeline. A panic fails the item, not the job.
func (o *Orchestrator) processItem(ctx context.Context, logger *slog.Logger, jobID string, index int, item core.WorkItem) (recipe *core.Recipe, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("item panicked", "key", item.Key, "panic", rec)
			recipe = nil
			err = failure.New(failure.KindUnknown, opProcess, fmt.Errorf("panic: %v", rec), nil)
		}
	}()
	return o.runner.run(ctx, item, func(cp Checkpoint) error {
		return o.tracker.UpdateItem(ctx, jobID, index, jobs.ItemUpdate{
			Stage:        cp.Stage,
			LocalPercent: cp.LocalPercent,
		})
	})
}

func (o *Orchestrator) updateItem(ctx context.Context, logger *slog.Logger, jobID string, index int, update jobs.ItemUpdate) {
	if err := o.tracker.UpdateItem(ctx, jobID, index, update); err != nil {
		logger.Warn("error updating item", "index", index, "err", err)
	}
}

func (o *Orchestrator) shouldAbort(batch *BatchErrors) bool {
	summary := batch.Summary()
	if summary.Total < o.abort.MinSamples {
		return false
	}
	return batch.ShouldAbort(o.abort.Threshold)
}

// buildDetail lists each failed item with its user-facing message.
func buildDetail(items []core.WorkItem, summary BatchSummary, report indexing.Report) string {
	indexOf := make(map[string]int, len(items))
	for i, item := range items {
		if _, ok := indexOf[item.Key]; !ok {
			indexOf[item.Key] = i + 1
		}
	}

	var failures []string
	for _, detail := range summary.ErrorDetails {
		failures = append(failures, fmt.Sprintf("item %d (%s): %s", indexOf[detail.Key], detail.Key, detail.UserMessage))
	}
	for _, key := range report.Failed {
		failures = append(failures, fmt.Sprintf("item %d (%s): could not be written to the index", indexOf[key], key))
	}

	indexed := report.Succeeded + len(report.Skipped)
	switch {
	case indexed > 0 && len(failures) > 0:
		return fmt.Sprintf("completed with %d recipes; errors: %s", indexed, strings.Join(failures, "; "))
	case indexed > 0:
		return fmt.Sprintf("completed with %d recipes", indexed)
	case len(failures) > 0:
		return strings.Join(failures, "; ")
	default:
		return "no recipes indexed"
	}
}
