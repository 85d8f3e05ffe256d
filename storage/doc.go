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


// Package storage provides the storage abstraction layer for larder.
//
// This package defines repository interfaces that decouple the recipe index
// and the job store from business logic. The ingestion orchestrator, the
// indexing engine and the job tracker only see these interfaces, so BadgerDB
// and in-memory implementations are interchangeable.
//
// # Architecture
//
//   - Repository: operations shared by every repository (transactions, Close)
//   - RecipeRepository: the recipe index (insert, update, bulk upsert, delete,
//     similarity search)
//   - JobRepository: persisted job state keyed by job ID
//
// Values are encoded as JSON with goccy/go-json (see serialization.go).
//
// # Usage
//
//	backend, err := badger.OpenBackend("/path/to/db", false)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer backend.Close()
//	recipes := badger.NewRecipeRepository(backend)
//	jobs := badger.NewJobRepository(backend)
//
// Use in tests with in-memory storage:
//
//	recipes, jobs, backend, err := badger.NewMemoryRepositories()
//
// # Thread Safety
//
// All repository implementations must be thread-safe and support
// concurrent access from multiple goroutines.
//
// # Context Support
//
// All repository methods accept context.Context for cancellation
// and timeout support. Pass context.Background() for operations
// without specific timeout requirements.
package storage
