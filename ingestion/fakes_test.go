package ingestion

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/poiesic/larder/core"
	"github.com/poiesic/larder/media"
	"github.com/poiesic/larder/retry"
	"github.com/stretchr/testify/require"
)

// fakeAcquirer returns one video per item, captioned with the item key.
type fakeAcquirer struct {
	mu    sync.Mutex
	dir   string
	calls []string
	fn    func(item core.WorkItem) (*media.Acquisition, error)
}

func (f *fakeAcquirer) Acquire(ctx context.Context, item core.WorkItem) (*media.Acquisition, error) {
	f.mu.Lock()
	f.calls = append(f.calls, item.Key)
	f.mu.Unlock()
	if f.fn != nil {
		return f.fn(item)
	}
	return &media.Acquisition{
		Key:        item.Key,
		MediaPaths: []string{filepath.Join(f.dir, item.Key, item.Key+".mp4")},
		Caption:    "Recipe " + item.Key,
		SourceURL:  "https://example.com/" + item.Key,
	}, nil
}

func (f *fakeAcquirer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// fakeAudio pretends every video has an audio track.
type fakeAudio struct {
	err error
}

func (f *fakeAudio) ExtractAudio(ctx context.Context, videoPath string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return videoPath[:len(videoPath)-len(filepath.Ext(videoPath))] + ".mp3", nil
}

// fastPolicies keeps retry waits in the millisecond range.
func fastPolicies() Policies {
	p := retry.Policy{MaxAttempts: 3, MinDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, Multiplier: 2}
	return Policies{
		Download:      p,
		ExtractAudio:  retry.Once(0),
		Transcription: p,
		Extraction:    p,
		Images:        retry.Once(0),
		Indexing:      p,
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// timeoutErr looks like a collaborator deadline.
func timeoutErr(key string) error {
	return fmt.Errorf("transcribe %s: %w", key, context.DeadlineExceeded)
}

var colorBlue = color.RGBA{B: 255, A: 255}

var errInvalidLink = errors.New("invalid request: link is private")

// checkpointRecorder collects checkpoints.
type checkpointRecorder struct {
	mu  sync.Mutex
	cps []Checkpoint
}

func (r *checkpointRecorder) record(cp Checkpoint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cps = append(r.cps, cp)
	return nil
}

func (r *checkpointRecorder) all() []Checkpoint {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Checkpoint(nil), r.cps...)
}

func requireMonotonic(t *testing.T, cps []Checkpoint) {
	t.Helper()
	for i := 1; i < len(cps); i++ {
		require.True(t, cps[i-1].Stage.CanAdvanceTo(cps[i].Stage), "stage %s -> %s", cps[i-1].Stage, cps[i].Stage)
		require.GreaterOrEqual(t, cps[i].LocalPercent, cps[i-1].LocalPercent)
	}
}
