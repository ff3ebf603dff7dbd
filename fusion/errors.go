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

package fusion

import "errors"

var (
	// ErrRecordsRequired is returned when a fuser is created without a record source.
	ErrRecordsRequired = errors.New("record lookup required")

	// ErrQueryRequired is returned when a request has no query record.
	ErrQueryRequired = errors.New("query record required")

	// ErrInvalidThreshold is returned for a threshold outside [0, 1].
	ErrInvalidThreshold = errors.New("threshold must be within [0, 1]")

	// ErrInvalidTopK is returned for a negative TopK.
	ErrInvalidTopK = errors.New("top-k must not be negative")
)
