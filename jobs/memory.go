package jobs

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/poiesic/larder/core"
	"github.com/poiesic/larder/storage"
)

// MemoryRepository is a storage.JobRepository kept in process memory.
type MemoryRepository struct {
	mu   sync.RWMutex
	jobs map[string]*core.JobState
}

var _ storage.JobRepository = (*MemoryRepository)(nil)

// NewMemoryRepository creates an empty in-memory job store.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{jobs: make(map[string]*core.JobState)}
}

// SaveJob stores a copy of job.
func (m *MemoryRepository) SaveJob(ctx context.Context, job *core.JobState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.JobID] = job.Clone()
	return nil
}

// LoadJob returns a copy of the stored job, or nil if absent.
func (m *MemoryRepository) LoadJob(ctx context.Context, jobID string) (*core.JobState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.jobs[jobID].Clone(), nil
}

// ListJobs returns copies of all jobs ordered by creation time.
func (m *MemoryRepository) ListJobs(ctx context.Context) ([]*core.JobState, error) {
	m.mu.RLock()
	jobs := make([]*core.JobState, 0, len(m.jobs))
	for _, job := range m.jobs {
		jobs = append(jobs, job.Clone())
	}
	m.mu.RUnlock()

	slices.SortStableFunc(jobs, func(a, b *core.JobState) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.JobID, b.JobID)
	})
	return jobs, nil
}

// DeleteJob removes a job.
func (m *MemoryRepository) DeleteJob(ctx context.Context, jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.jobs, jobID)
	return nil
}
