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


package badger

import "github.com/poiesic/cortex/storage"

// MemoryStores bundles in-memory store instances for testing.
type MemoryStores struct {
	Conversations storage.ConversationRepository
	Vectors       storage.VectorStore
	Cache         storage.EmbeddingCache
	Backend       *Backend
}

// Close releases the stores and the backing database.
func (m *MemoryStores) Close() error {
	m.Vectors.Close()
	m.Conversations.Close()
	return m.Backend.Close()
}

// NewMemoryStores creates in-memory stores for testing. Caller must Close
// the returned bundle when done.
func NewMemoryStores() (*MemoryStores, error) {
	backend, err := OpenBackend("", true)
	if err != nil {
		return nil, err
	}

	vectors, err := NewVectorStore(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	return &MemoryStores{
		Conversations: NewConversationRepository(backend),
		Vectors:       vectors,
		Cache:         NewEmbeddingCache(backend),
		Backend:       backend,
	}, nil
}
