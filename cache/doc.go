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

// Package cache is the content-addressed document store backing the index.
//
// Documents are keyed by the BLAKE2b hash of their normalized text, so
// identical content is stored, signed and indexed exactly once. Entries
// expire a fixed TTL after insertion; expiry is enforced lazily on access and
// optionally by a periodic sweep. Every eviction also removes the document
// from the LSH index so no query can return a dead candidate.
//
// The cache is split into shards by content hash. All index mutations for a
// hash happen while its shard lock is held, which keeps the cache and the
// index consistent without a global lock.
package cache
