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

// Package semantic scores query and candidate documents by the cosine
// similarity of their embeddings.
//
// The embedding collaborator is any ai.Embedder. Vectors are normalized to
// unit length and memoized by content hash in a bounded ristretto cache, so
// a candidate that shows up in many reports is embedded once. Transient
// embedding failures are retried with exponential backoff; a persistent
// failure surfaces as an error, which the fuser records as "semantic
// unavailable" for that candidate.
package semantic
