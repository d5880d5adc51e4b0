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


// Package search answers natural-language queries with ranked,
// conversation-level results.
//
// The Searcher embeds the query, over-fetches raw vector matches, discards
// matches below a hard score threshold, deduplicates chunk-level hits down
// to one entry per conversation (keeping the maximum chunk score), applies
// cluster and topic filters, and ranks by score with deterministic
// tie-breaking. Each surviving result carries the conversation's current
// metadata, its 3D coordinate when positioned, and a snippet from the
// best-matching indexed text.
package search
