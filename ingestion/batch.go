package ingestion

import (
	"context"
	"log/slog"
	"sync"

	"github.com/poiesic/larder/core"
	"github.com/poiesic/larder/failure"
)

// Severity grades an item failure for logging.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

func (s Severity) level() slog.Level {
	switch s {
	case SeverityLow:
		return slog.LevelInfo
	case SeverityMedium:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}

// SeverityFor grades a failure kind. Credential and quota problems will
// fail every remaining item, so they are critical.
func SeverityFor(kind failure.Kind) Severity {
	switch kind {
	case failure.KindInvalidCredential, failure.KindQuotaExceeded:
		return SeverityCritical
	case failure.KindUnknown:
		return SeverityHigh
	case failure.KindInvalidRequest:
		return SeverityLow
	default:
		return SeverityMedium
	}
}

// ErrorDetail is one recorded item failure.
type ErrorDetail struct {
	Key         string       `json:"key"`
	Operation   string       `json:"operation"`
	Kind        failure.Kind `json:"kind"`
	Message     string       `json:"message"`
	UserMessage string       `json:"user_message"`
	Severity    Severity     `json:"severity"`
}

// BatchSummary is a snapshot of a batch run.
type BatchSummary struct {
	Total        int           `json:"total"`
	Successes    int           `json:"successes"`
	Errors       int           `json:"errors"`
	SuccessRate  float64       `json:"success_rate"`
	FailedKeys   []string      `json:"failed_keys"`
	ErrorDetails []ErrorDetail `json:"error_details"`
}

type batchSuccess struct {
	key    string
	recipe *core.Recipe
}

// BatchErrors accumulates per-item outcomes without stopping the batch.
// It is safe for concurrent use.
type BatchErrors struct {
	mu        sync.Mutex
	successes []batchSuccess
	errors    []ErrorDetail
	logger    *slog.Logger
}

// NewBatchErrors creates an empty accumulator.
func NewBatchErrors(logger *slog.Logger) *BatchErrors {
	if logger == nil {
		logger = slog.Default()
	}
	return &BatchErrors{logger: logger}
}

// AddSuccess records a produced recipe.
func (b *BatchErrors) AddSuccess(key string, recipe *core.Recipe) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.successes = append(b.successes, batchSuccess{key: key, recipe: recipe})
}

// AddError classifies and records an item failure, logging it immediately.
func (b *BatchErrors) AddError(err error, key, operation string, severity Severity) *failure.ClassifiedError {
	classified := failure.Classify(err, operation, map[string]any{"key": key})
	if severity == "" {
		severity = SeverityFor(classified.Kind)
	}
	detail := ErrorDetail{
		Key:         key,
		Operation:   classified.Operation,
		Kind:        classified.Kind,
		Message:     classified.Message,
		UserMessage: classified.UserMessage,
		Severity:    severity,
	}

	b.mu.Lock()
	b.errors = append(b.errors, detail)
	b.mu.Unlock()

	b.logger.Log(context.Background(), severity.level(), "item failed",
		"key", key,
		"operation", detail.Operation,
		"kind", detail.Kind,
		"severity", severity,
		"attempts", classified.Attempts,
		"err", detail.Message)
	return classified
}

// Recipes returns the produced recipes in the order they were added.
func (b *BatchErrors) Recipes() []*core.Recipe {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*core.Recipe, len(b.successes))
	for i, s := range b.successes {
		out[i] = s.recipe
	}
	return out
}

// Summary computes the current batch statistics.
func (b *BatchErrors) Summary() BatchSummary {
	b.mu.Lock()
	defer b.mu.Unlock()

	summary := BatchSummary{
		Total:        len(b.successes) + len(b.errors),
		Successes:    len(b.successes),
		Errors:       len(b.errors),
		FailedKeys:   make([]string, len(b.errors)),
		ErrorDetails: make([]ErrorDetail, len(b.errors)),
	}
	copy(summary.ErrorDetails, b.errors)
	for i, e := range b.errors {
		summary.FailedKeys[i] = e.Key
	}
	if summary.Total > 0 {
		summary.SuccessRate = float64(summary.Successes) / float64(summary.Total)
	}
	return summary
}

// ShouldAbort reports whether the error rate has reached threshold.
// It only signals; the caller decides whether to stop.
func (b *BatchErrors) ShouldAbort(threshold float64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	total := len(b.successes) + len(b.errors)
	if total == 0 {
		return false
	}
	return float64(len(b.errors))/float64(total) >= threshold
}
