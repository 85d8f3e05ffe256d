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

package badger

import (
	"context"
	"errors"
	"slices"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/larder/core"
	"github.com/poiesic/larder/storage"
)

// JobRepository implements storage.JobRepository for BadgerDB.
type JobRepository struct {
	backend *Backend
}

var _ storage.JobRepository = (*JobRepository)(nil)

// NewJobRepository creates a new JobRepository.
func NewJobRepository(backend *Backend) *JobRepository {
	return &JobRepository{
		backend: backend,
	}
}

// SaveJob persists the job state, replacing any previous version.
func (r *JobRepository) SaveJob(ctx context.Context, job *core.JobState) error {
	value, err := storage.MarshalJobState(job)
	if err != nil {
		return err
	}
	return r.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Set(makeJobKey(job.JobID), value); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// LoadJob retrieves a job by ID.
// Returns nil, nil if no job exists.
func (r *JobRepository) LoadJob(ctx context.Context, jobID string) (*core.JobState, error) {
	var job *core.JobState
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeJobKey(jobID))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}

		return item.Value(func(val []byte) error {
			var unmarshalErr error
			job, unmarshalErr = storage.UnmarshalJobState(val)
			return unmarshalErr
		})
	}, false)

	return job, err
}

// ListJobs returns every stored job ordered by creation time.
func (r *JobRepository) ListJobs(ctx context.Context) ([]*core.JobState, error) {
	var jobs []*core.JobState
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(jobPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			err := iter.Item().Value(func(val []byte) error {
				job, err := storage.UnmarshalJobState(val)
				if err != nil {
					return err
				}
				jobs = append(jobs, job)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	slices.SortStableFunc(jobs, func(a, b *core.JobState) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return jobs, nil
}

// DeleteJob removes a job. Missing jobs are ignored.
func (r *JobRepository) DeleteJob(ctx context.Context, jobID string) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Delete(makeJobKey(jobID)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}
