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

// Package fusion turns an LSH candidate set into a ranked match report.
//
// Each candidate is re-scored against the query signature to get an
// estimated Jaccard similarity. When a SemanticScorer is configured its value
// is blended in:
//
//	combined = wJ*jaccard + wS*semantic
//
// A missing semantic value is an explicit state, never a zero: the combined
// score falls back to jaccard alone and the match is marked as having no
// semantic evidence. The flagging threshold is supplied per request.
package fusion
