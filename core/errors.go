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


package core

import "errors"

var (
	// ErrInvalidRecipe indicates a Recipe failed validation.
	ErrInvalidRecipe = errors.New("invalid recipe")

	// ErrInvalidWorkItem indicates a WorkItem failed validation.
	ErrInvalidWorkItem = errors.New("invalid work item")

	// ErrEmptyKey indicates the Key field is empty.
	ErrEmptyKey = errors.New("key cannot be empty")

	// ErrEmptyTitle indicates the recipe Title field is empty.
	ErrEmptyTitle = errors.New("title cannot be empty")

	// ErrInvalidSourceKind indicates an invalid SourceKind value.
	ErrInvalidSourceKind = errors.New("invalid source kind")

	// ErrEmptyBatch indicates a job was submitted without items.
	ErrEmptyBatch = errors.New("batch cannot be empty")
)
