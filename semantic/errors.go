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

package semantic

import "errors"

var (
	// ErrEmbedderRequired is returned when a scorer is created without an embedder.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrInvalidMaxAttempts is returned when the retry budget is <= 0.
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")

	// ErrDimensionMismatch is returned when two embeddings differ in width.
	ErrDimensionMismatch = errors.New("embedding dimensions differ")

	// ErrEmptyEmbedding is returned when the embedder yields no vector.
	ErrEmptyEmbedding = errors.New("embedder returned an empty vector")
)
