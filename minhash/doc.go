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


// Package minhash derives fixed-length MinHash signatures from shingle sets.
//
// Each signature position uses an independent universal hash permutation
// h(x) = (a*x + b) mod (2^61 - 1) applied to a 64-bit xxhash of the shingle.
// The permutation coefficients come from a seeded generator and are fixed
// for the lifetime of a Signer, so signatures are reproducible across runs
// as long as the seed and length are unchanged.
//
// The fraction of positions at which two signatures agree is an unbiased
// estimator of the Jaccard similarity of the underlying sets.
//
// # Empty sets
//
// An empty shingle set yields the sentinel signature: every slot holds
// core.EmptySlot, a value no permutation can produce. EstimateJaccard refuses
// to compare sentinels and returns ErrIncomparable.
//
// # Thread Safety
//
// Signer is immutable after construction. Sign may be called concurrently.
package minhash
