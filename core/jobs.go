package core

import (
	"slices"
	"time"
)

// ItemStatus is the lifecycle status of one work item inside a job.
type ItemStatus string

const (
	ItemQueued  ItemStatus = "queued"
	ItemRunning ItemStatus = "running"
	ItemSuccess ItemStatus = "success"
	ItemFailed  ItemStatus = "failed"
)

// IsTerminal reports whether no further updates are allowed.
func (s ItemStatus) IsTerminal() bool {
	return s == ItemSuccess || s == ItemFailed
}

// Stage is a step of the per-item pipeline.
type Stage string

const (
	StageQueued       Stage = "queued"
	StageDownload     Stage = "download"
	StageExtractAudio Stage = "extract_audio"
	StageSTT          Stage = "stt"
	StageParseRecipe  Stage = "parse_recipe"
	StageIndexing     Stage = "indexing"
	StageDone         Stage = "done"
	StageError        Stage = "error"
)

var stageOrder = map[Stage]int{
	StageQueued:       0,
	StageDownload:     1,
	StageExtractAudio: 2,
	StageSTT:          3,
	StageParseRecipe:  4,
	StageIndexing:     5,
	StageDone:         6,
	StageError:        7,
}

// Order returns the position of the stage in the pipeline, or -1 if unknown.
func (s Stage) Order() int {
	if o, ok := stageOrder[s]; ok {
		return o
	}
	return -1
}

// Valid reports whether s is a known stage.
func (s Stage) Valid() bool {
	return s.Order() >= 0
}

// IsTerminal reports whether the stage ends an item's pipeline.
func (s Stage) IsTerminal() bool {
	return s == StageDone || s == StageError
}

// CanAdvanceTo reports whether moving from s to next keeps the stage order.
// A stage may repeat, move forward, or jump to error from any non-terminal stage.
func (s Stage) CanAdvanceTo(next Stage) bool {
	if !next.Valid() {
		return false
	}
	if s.IsTerminal() {
		return s == next
	}
	if next == StageError {
		return true
	}
	return next.Order() >= s.Order()
}

// JobStatus is the lifecycle status of a job.
type JobStatus string

const (
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// IsTerminal reports whether the job is frozen.
func (s JobStatus) IsTerminal() bool {
	return s == JobCompleted || s == JobFailed
}

// ItemProgress tracks one work item inside a job.
type ItemProgress struct {
	Index        int        `json:"index"`
	Key          string     `json:"key"`
	Status       ItemStatus `json:"status"`
	Stage        Stage      `json:"stage"`
	LocalPercent float64    `json:"local_percent"`
	Error        string     `json:"error,omitempty"`
}

// JobProgress aggregates item progress for a job.
type JobProgress struct {
	Total      int            `json:"total"`
	Success    int            `json:"success"`
	Failed     int            `json:"failed"`
	Percentage float64        `json:"percentage"`
	Stage      Stage          `json:"stage"`
	Items      []ItemProgress `json:"items"`
}

// JobResult summarizes a finished job.
type JobResult struct {
	Indexed int `json:"indexed"`
	Total   int `json:"total"`
	Success int `json:"success"`
	Failed  int `json:"failed"`
}

// JobState is the observable state of one submitted batch.
type JobState struct {
	JobID     string      `json:"job_id"`
	Status    JobStatus   `json:"status"`
	Progress  JobProgress `json:"progress"`
	Result    *JobResult  `json:"result,omitempty"`
	Detail    string      `json:"detail,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// NewJobState creates a running job with every item queued.
func NewJobState(jobID string, items []WorkItem) *JobState {
	progress := make([]ItemProgress, len(items))
	for i, item := range items {
		progress[i] = ItemProgress{
			Index:  i,
			Key:    item.Key,
			Status: ItemQueued,
			Stage:  StageQueued,
		}
	}
	now := time.Now().UTC()
	return &JobState{
		JobID:  jobID,
		Status: JobRunning,
		Progress: JobProgress{
			Total: len(items),
			Stage: StageQueued,
			Items: progress,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone returns a deep copy of the job state.
func (j *JobState) Clone() *JobState {
	if j == nil {
		return nil
	}
	c := *j
	c.Progress.Items = slices.Clone(j.Progress.Items)
	if j.Result != nil {
		r := *j.Result
		c.Result = &r
	}
	return &c
}
