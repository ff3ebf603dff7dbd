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

import "errors"

var (
	// ErrNotFound indicates that the requested record was not found.
	ErrNotFound = errors.New("record not found")

	// ErrStorageClosed indicates that the storage backend is closed.
	ErrStorageClosed = errors.New("storage is closed")

	// ErrInvalidQuery indicates invalid query parameters.
	ErrInvalidQuery = errors.New("invalid query parameters")

	// ErrSerializationFailed indicates a serialization/deserialization failure.
	ErrSerializationFailed = errors.New("serialization failed")

	// ErrTruncatedData indicates that data was truncated during reading.
	ErrTruncatedData = errors.New("truncated data")

	// ErrParamsMismatch indicates stored documents were signed under
	// different index parameters than the running configuration.
	ErrParamsMismatch = errors.New("index parameters mismatch")

	// ErrSnapshotMismatch indicates a snapshot was written under different
	// index parameters.
	ErrSnapshotMismatch = errors.New("snapshot parameters mismatch")

	// ErrSnapshotVersion indicates an unknown snapshot format version.
	ErrSnapshotVersion = errors.New("unsupported snapshot version")

	// ErrSnapshotCorrupt indicates a snapshot failed an integrity check.
	ErrSnapshotCorrupt = errors.New("snapshot corrupt")
)
