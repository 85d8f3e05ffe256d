package mock

import (
	"context"
	"path/filepath"
	"sync"
)

// MockTranscriber is a test double for ai.Transcriber.
type MockTranscriber struct {
	// TranscribeFunc is called by Transcribe if set.
	// If nil, returns a transcript naming the audio file.
	TranscribeFunc func(ctx context.Context, audioPath, language string) (string, error)

	mu        sync.Mutex
	callCount int
}

func NewMockTranscriber() *MockTranscriber {
	return &MockTranscriber{}
}

func (m *MockTranscriber) Transcribe(ctx context.Context, audioPath, language string) (string, error) {
	m.mu.Lock()
	m.callCount++
	m.mu.Unlock()

	if m.TranscribeFunc != nil {
		return m.TranscribeFunc(ctx, audioPath, language)
	}
	return "transcript of " + filepath.Base(audioPath), nil
}

func (m *MockTranscriber) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

func (m *MockTranscriber) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount = 0
	m.TranscribeFunc = nil
}
