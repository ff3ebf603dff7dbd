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

// Package lsh buckets MinHash signatures by banding so that documents with a
// high estimated Jaccard similarity collide in at least one bucket.
//
// A signature of length P is split into b contiguous bands of r = P/b rows.
// Each band is hashed to a band key and the document identity is filed under
// (band, key). A query unions the buckets its own band keys address; the
// result is a candidate set that still needs re-scoring.
//
// The index holds identities only. Buckets are spread over independently
// locked shards so unrelated inserts and removals never serialize on a
// single lock, and queries take read locks only.
//
// Usage:
//
//	idx, err := lsh.New(core.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	_ = idx.Insert(rec.Hash, rec.Signature)
//	candidates := idx.Query(querySig, queryHash)
package lsh
