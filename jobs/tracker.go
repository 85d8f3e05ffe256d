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

package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/poiesic/larder/core"
	"github.com/poiesic/larder/storage"
)

// DetailInterrupted is the detail recorded on jobs found running at startup.
const DetailInterrupted = "interrupted"

// ItemUpdate describes a change to one item's progress.
// Zero fields leave the current value unchanged.
type ItemUpdate struct {
	Status       core.ItemStatus
	Stage        core.Stage
	LocalPercent float64
	Error        string
}

// entry holds one live job. Its lock serializes writes to that job only.
type entry struct {
	mu  sync.Mutex
	job *core.JobState
}

// Tracker owns the state of every job in the process.
type Tracker struct {
	mu     sync.Mutex // guards live
	live   map[string]*entry
	repo   storage.JobRepository
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Tracker.
type Option func(*Tracker) error

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) error {
		if logger == nil {
			logger = slog.Default()
		}
		t.logger = logger
		return nil
	}
}

// NewTracker creates a tracker that writes through to repo.
// A nil repo keeps jobs in memory only.
func NewTracker(repo storage.JobRepository, opts ...Option) (*Tracker, error) {
	if repo == nil {
		repo = NewMemoryRepository()
	}
	t := &Tracker{
		live:   make(map[string]*entry),
		repo:   repo,
		now:    func() time.Time { return time.Now().UTC() },
		logger: slog.Default().With("component", "jobs"),
	}
	for _, opt := range opts {
		if err := opt(t); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Create registers a new running job with every item queued.
func (t *Tracker) Create(ctx context.Context, jobID string, items []core.WorkItem) (*core.JobState, error) {
	if jobID == "" {
		return nil, ErrInvalidJobID
	}

	t.mu.Lock()
	if _, ok := t.live[jobID]; ok {
		t.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrJobExists, jobID)
	}
	e := &entry{}
	e.mu.Lock()
	t.live[jobID] = e
	t.mu.Unlock()
	defer e.mu.Unlock()

	existing, err := t.repo.LoadJob(ctx, jobID)
	if err != nil {
		t.drop(jobID, e)
		return nil, err
	}
	if existing != nil {
		t.drop(jobID, e)
		return nil, fmt.Errorf("%w: %s", ErrJobExists, jobID)
	}

	job := core.NewJobState(jobID, items)
	job.CreatedAt = t.now()
	job.UpdatedAt = job.CreatedAt
	if err := t.repo.SaveJob(ctx, job); err != nil {
		t.drop(jobID, e)
		return nil, err
	}
	e.job = job
	t.logger.Debug("created job", "jobID", jobID, "items", len(items))
	return job.Clone(), nil
}

// UpdateItem applies update to the item at index.
func (t *Tracker) UpdateItem(ctx context.Context, jobID string, index int, update ItemUpdate) error {
	return t.mutate(ctx, jobID, func(job *core.JobState) error {
		if index < 0 || index >= len(job.Progress.Items) {
			return fmt.Errorf("%w: %d", ErrInvalidIndex, index)
		}
		item := &job.Progress.Items[index]
		if item.Status.IsTerminal() {
			return fmt.Errorf("%w: item %d is %s", ErrItemFinalized, index, item.Status)
		}

		next := resolveUpdate(*item, update)
		if !next.Stage.Valid() {
			return fmt.Errorf("%w: %q", ErrInvalidStage, next.Stage)
		}
		if !item.Stage.CanAdvanceTo(next.Stage) {
			return fmt.Errorf("%w: %s -> %s", ErrStageRegression, item.Stage, next.Stage)
		}

		*item = next
		switch item.Status {
		case core.ItemSuccess:
			job.Progress.Success++
		case core.ItemFailed:
			job.Progress.Failed++
		}
		if !item.Stage.IsTerminal() {
			job.Progress.Stage = item.Stage
		}
		raisePercentage(job)
		return nil
	})
}

// SetStage records the job-level stage, such as indexing.
func (t *Tracker) SetStage(ctx context.Context, jobID string, stage core.Stage) error {
	if !stage.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStage, stage)
	}
	return t.mutate(ctx, jobID, func(job *core.JobState) error {
		job.Progress.Stage = stage
		return nil
	})
}

// Finalize freezes the job with its result.
// The job is completed when at least one record was indexed and failed otherwise.
func (t *Tracker) Finalize(ctx context.Context, jobID string, result core.JobResult, detail string) (*core.JobState, error) {
	var final *core.JobState
	err := t.mutate(ctx, jobID, func(job *core.JobState) error {
		closeOpenItems(job, "not processed")
		job.Status = core.JobFailed
		if result.Indexed > 0 {
			job.Status = core.JobCompleted
		}
		job.Result = &result
		job.Detail = detail
		job.Progress.Percentage = 100
		job.Progress.Stage = core.StageDone
		final = job
		return nil
	})
	if err != nil {
		return nil, err
	}
	return final.Clone(), nil
}

// Fail freezes the job as failed, as when batch setup cannot proceed.
func (t *Tracker) Fail(ctx context.Context, jobID string, detail string) (*core.JobState, error) {
	var final *core.JobState
	err := t.mutate(ctx, jobID, func(job *core.JobState) error {
		failJob(job, detail)
		final = job
		return nil
	})
	if err != nil {
		return nil, err
	}
	return final.Clone(), nil
}

// Get returns a copy of the job's current state.
func (t *Tracker) Get(ctx context.Context, jobID string) (*core.JobState, error) {
	t.mu.Lock()
	e, ok := t.live[jobID]
	t.mu.Unlock()
	if ok {
		e.mu.Lock()
		var clone *core.JobState
		if e.job != nil {
			clone = e.job.Clone()
		}
		e.mu.Unlock()
		if clone != nil {
			return clone, nil
		}
	}

	job, err := t.repo.LoadJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	return job, nil
}

// List returns every stored job, oldest first.
func (t *Tracker) List(ctx context.Context) ([]*core.JobState, error) {
	return t.repo.ListJobs(ctx)
}

// Recover fails every stored job left running by a previous process.
// It returns the number of jobs marked as interrupted.
func (t *Tracker) Recover(ctx context.Context) (int, error) {
	stored, err := t.repo.ListJobs(ctx)
	if err != nil {
		return 0, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	recovered := 0
	for _, job := range stored {
		if job.Status.IsTerminal() {
			continue
		}
		if _, ok := t.live[job.JobID]; ok {
			continue
		}
		failJob(job, DetailInterrupted)
		job.UpdatedAt = t.now()
		if err := t.repo.SaveJob(ctx, job); err != nil {
			return recovered, err
		}
		t.logger.Warn("marked interrupted job as failed", "jobID", job.JobID)
		recovered++
	}
	return recovered, nil
}

// mutate applies fn to a copy of a live job and writes it through while
// holding only that job's lock. Terminal jobs leave the live set once saved.
func (t *Tracker) mutate(ctx context.Context, jobID string, fn func(job *core.JobState) error) error {
	e, err := t.acquire(ctx, jobID)
	if err != nil {
		return err
	}
	defer e.mu.Unlock()

	if e.job.Status.IsTerminal() {
		return fmt.Errorf("%w: %s", ErrJobFinalized, jobID)
	}

	work := e.job.Clone()
	if err := fn(work); err != nil {
		return err
	}
	work.UpdatedAt = t.now()
	if err := t.repo.SaveJob(ctx, work); err != nil {
		t.logger.Error("error saving job", "jobID", jobID, "err", err)
		return err
	}

	e.job = work
	if work.Status.IsTerminal() {
		t.drop(jobID, e)
	}
	return nil
}

// acquire returns the job's entry with its lock held. Jobs that are not live
// are loaded from the repository; finished ones are rejected.
func (t *Tracker) acquire(ctx context.Context, jobID string) (*entry, error) {
	for {
		t.mu.Lock()
		e, ok := t.live[jobID]
		if !ok {
			e = &entry{}
			e.mu.Lock()
			t.live[jobID] = e
		}
		t.mu.Unlock()

		if ok {
			e.mu.Lock()
			if e.job != nil {
				return e, nil
			}
			// Abandoned by a failed create or load.
			e.mu.Unlock()
			continue
		}

		stored, err := t.repo.LoadJob(ctx, jobID)
		switch {
		case err != nil:
		case stored == nil:
			err = fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
		case stored.Status.IsTerminal():
			err = fmt.Errorf("%w: %s", ErrJobFinalized, jobID)
		}
		if err != nil {
			t.drop(jobID, e)
			e.mu.Unlock()
			return nil, err
		}
		e.job = stored
		return e, nil
	}
}

// drop removes e from the live set unless it was already replaced.
func (t *Tracker) drop(jobID string, e *entry) {
	t.mu.Lock()
	if t.live[jobID] == e {
		delete(t.live, jobID)
	}
	t.mu.Unlock()
}

// resolveUpdate fills in the implied half of an update: a terminal status
// implies a terminal stage and the reverse.
func resolveUpdate(item core.ItemProgress, update ItemUpdate) core.ItemProgress {
	next := item
	if update.Stage != "" {
		next.Stage = update.Stage
	}
	if update.Status != "" {
		next.Status = update.Status
	}

	switch {
	case next.Stage == core.StageError:
		next.Status = core.ItemFailed
	case next.Status == core.ItemFailed:
		next.Stage = core.StageError
	case next.Stage == core.StageDone, next.Status == core.ItemSuccess:
		next.Stage = core.StageDone
		next.Status = core.ItemSuccess
	case next.Status == core.ItemQueued && next.Stage != core.StageQueued:
		next.Status = core.ItemRunning
	}

	if update.LocalPercent > next.LocalPercent {
		next.LocalPercent = min(update.LocalPercent, 100)
	}
	if next.Status == core.ItemSuccess {
		next.LocalPercent = 100
	}
	if update.Error != "" {
		next.Error = update.Error
	}
	return next
}

// raisePercentage recomputes the job percentage without letting it drop.
func raisePercentage(job *core.JobState) {
	total := job.Progress.Total
	if total == 0 {
		return
	}
	var weight float64
	for _, item := range job.Progress.Items {
		switch {
		case item.Status.IsTerminal():
			weight++
		case item.Status == core.ItemRunning:
			weight += item.LocalPercent / 100
		}
	}
	pct := min(weight/float64(total)*100, 100)
	if pct > job.Progress.Percentage {
		job.Progress.Percentage = pct
	}
}

// closeOpenItems fails every item that never reached a terminal status.
func closeOpenItems(job *core.JobState, reason string) {
	for i := range job.Progress.Items {
		item := &job.Progress.Items[i]
		if item.Status.IsTerminal() {
			continue
		}
		item.Status = core.ItemFailed
		item.Stage = core.StageError
		if item.Error == "" {
			item.Error = reason
		}
		job.Progress.Failed++
	}
}

func failJob(job *core.JobState, detail string) {
	closeOpenItems(job, detail)
	job.Status = core.JobFailed
	job.Detail = detail
	job.Result = &core.JobResult{
		Total:   job.Progress.Total,
		Success: job.Progress.Success,
		Failed:  job.Progress.Failed,
	}
	job.Progress.Percentage = 100
	job.Progress.Stage = core.StageError
}
