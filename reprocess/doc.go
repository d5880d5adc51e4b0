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


// Package reprocess recomputes the spatial layout and clustering for the
// whole conversation corpus.
//
// The Orchestrator is single-flight: a second Run while one is in progress
// fails immediately with core.ErrAlreadyInProgress rather than queueing.
// Each run loads every conversation embedding, reduces to 3D, clusters,
// derives cluster names, and publishes the complete replacement result set
// in one storage transaction. A failed run leaves every conversation's
// coordinates and cluster fields exactly as they were.
package reprocess
