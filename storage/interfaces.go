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

import (
	"context"

	"github.com/poiesic/cortex/core"
)

// Repository provides common storage operations shared across all repositories.
// Implementations must be thread-safe and support concurrent access.
type Repository interface {
	// WithTransaction executes a function within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	// Close closes the storage backend and releases resources.
	Close() error
}

// ConversationRepository provides operations for managing conversation records.
type ConversationRepository interface {
	Repository

	// AddConversation stores a new conversation record.
	// Sets CreatedAt/UpdatedAt timestamps if not already set.
	// Returns ErrDuplicateKey if a record with the same id exists.
	AddConversation(ctx context.Context, conversation *core.Conversation) error

	// UpdateConversations updates existing conversation records in a single
	// transaction: either every record is written or none is. Updates the
	// UpdatedAt timestamp automatically.
	// Returns ErrNotFound if any record doesn't exist.
	UpdateConversations(ctx context.Context, conversations ...*core.Conversation) error

	// DeleteConversation removes a conversation record by id.
	// Returns ErrNotFound if the record doesn't exist.
	DeleteConversation(ctx context.Context, id string) error

	// GetConversation retrieves a single conversation by id.
	// Returns ErrNotFound if the record doesn't exist.
	GetConversation(ctx context.Context, id string) (*core.Conversation, error)

	// GetConversations retrieves multiple conversations by their ids.
	// Returns only the records that exist (no error for missing records).
	GetConversations(ctx context.Context, ids ...string) ([]*core.Conversation, error)

	// GetAllConversations retrieves every conversation record, ordered by id.
	GetAllConversations(ctx context.Context) ([]*core.Conversation, error)

	// CountConversations returns the number of stored conversations.
	CountConversations(ctx context.Context) (int, error)
}

// Filter restricts a vector search to entries matching a predicate. Filters
// are applied before truncation to k, so a filtered search still returns up
// to k matching entries even when higher-scoring entries fall outside the
// filter.
type Filter func(entry *core.VectorEntry) bool

// VectorStore is the durable mapping from document id to (vector, attributes)
// with similarity search over the full set. It is the single source of truth
// for embedding vectors; conversation records never hold vectors redundantly.
type VectorStore interface {
	// Upsert inserts or replaces an entry. The store's vector dimension is
	// established by the first insert; later vectors of a different length
	// fail with core.ErrDimensionMismatch. Replacing an existing id keeps
	// its insertion sequence, so upsert is idempotent.
	Upsert(ctx context.Context, entry *core.VectorEntry) error

	// Delete removes an entry by document id. Deleting an absent id is a
	// no-op, not an error.
	Delete(ctx context.Context, id string) error

	// DeleteConversationEntries removes every entry indexed for the given
	// conversation. A conversation with no entries is a no-op.
	DeleteConversationEntries(ctx context.Context, conversationId string) error

	// GetEntry retrieves a single entry by document id.
	// Returns ErrNotFound if the entry doesn't exist.
	GetEntry(ctx context.Context, id string) (*core.VectorEntry, error)

	// GetConversationEntries retrieves all entries indexed for a conversation,
	// ordered by insertion sequence.
	GetConversationEntries(ctx context.Context, conversationId string) ([]*core.VectorEntry, error)

	// Search returns at most k entries ordered by descending cosine
	// similarity against the query vector. Ties are broken by insertion
	// sequence for determinism. A non-nil filter is applied before
	// truncation to k.
	Search(ctx context.Context, queryVector []float32, k int, filter Filter) ([]*core.VectorMatch, error)

	// Dimension returns the vector length established by the first insert,
	// or 0 if the store is empty and no dimension is established yet.
	Dimension(ctx context.Context) (int, error)

	// Count returns the number of stored entries.
	Count(ctx context.Context) (int, error)

	// Close releases resources held by the store.
	Close() error
}

// EmbeddingCache maps conversation id to a previously generated embedding so
// unchanged content is never re-embedded. An entry exists iff the
// conversation's embedding has been successfully generated at least once.
type EmbeddingCache interface {
	// GetEmbedding returns the cached vector for a conversation if the
	// stored content hash matches. Returns ErrNotFound on a miss or when
	// the content changed since the embedding was cached.
	GetEmbedding(ctx context.Context, conversationId string, contentHash core.ContentHash) ([]float32, error)

	// PutEmbedding stores a vector for a conversation, replacing any
	// previous entry.
	PutEmbedding(ctx context.Context, conversationId string, contentHash core.ContentHash, vector []float32) error

	// DeleteEmbedding removes the cache entry for a conversation.
	// Deleting an absent entry is a no-op.
	DeleteEmbedding(ctx context.Context, conversationId string) error
}
