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

package cache

import "errors"

var (
	// ErrNilSigner is returned when a cache is created without a signer.
	ErrNilSigner = errors.New("signer cannot be nil")

	// ErrNilIndex is returned when a cache is created without an index.
	ErrNilIndex = errors.New("index cannot be nil")

	// ErrCapacityExceeded signals that a document cannot be admitted even
	// after evicting everything older in its shard. Callers may retry with
	// smaller input or after raising the bound.
	ErrCapacityExceeded = errors.New("cache capacity exceeded")
)
