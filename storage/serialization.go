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


package storage

import (
	"encoding/binary"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/poiesic/larder/core"
)

// MarshalID serializes an ID to 8 big-endian bytes.
func MarshalID(id core.ID) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(id))
	return buf
}

// UnmarshalID deserializes an ID from bytes.
func UnmarshalID(data []byte) (core.ID, error) {
	if len(data) != 8 {
		return 0, fmt.Errorf("%w: id must be 8 bytes, got %d", ErrSerializationFailed, len(data))
	}
	return core.ID(binary.BigEndian.Uint64(data)), nil
}

// MarshalIndexedRecipe serializes an IndexedRecipe to bytes.
func MarshalIndexedRecipe(recipe *core.IndexedRecipe) ([]byte, error) {
	data, err := json.Marshal(recipe)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return data, nil
}

// UnmarshalIndexedRecipe deserializes an IndexedRecipe from bytes.
func UnmarshalIndexedRecipe(data []byte) (*core.IndexedRecipe, error) {
	var recipe core.IndexedRecipe
	if err := json.Unmarshal(data, &recipe); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &recipe, nil
}

// MarshalJobState serializes a JobState to bytes.
func MarshalJobState(job *core.JobState) ([]byte, error) {
	data, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return data, nil
}

// UnmarshalJobState deserializes a JobState from bytes.
func UnmarshalJobState(data []byte) (*core.JobState, error) {
	var job core.JobState
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &job, nil
}
