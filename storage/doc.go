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

// Package storage is the persistence collaborator of the engine.
//
// It defines repository interfaces that decouple durable storage from the
// in-memory cache and index, and a versioned snapshot stream used to export
// and re-import an index across restarts.
//
// # Constructor Return Type Pattern
//
// Public constructors in backend packages return the interfaces declared
// here so callers never couple to BadgerDB specifics:
//
//	repo, err := badger.NewDocumentRepository(backend)  // storage.DocumentRepository
//
// # Architecture
//
//   - DocumentRepository: document records with the index parameters they were signed under
//   - ReportRepository: match reports kept as submission history
//   - WriteSnapshot / ReadSnapshot: self-describing export of records and band keys
//
// # Snapshots
//
// A snapshot carries the index parameters (shingle width, signature length,
// band count, seed). ReadSnapshot rejects a stream whose parameters differ
// from the running configuration, whose version is unknown, or whose band
// keys do not match the signatures they were derived from.
//
//	f, _ := os.Create("index.snap")
//	err := storage.WriteSnapshot(f, cfg.Params(), records, index)
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
