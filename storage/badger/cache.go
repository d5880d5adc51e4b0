package badger

import (
	"context"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/cortex/core"
	"github.com/poiesic/cortex/storage"
)

// EmbeddingCache implements storage.EmbeddingCache for BadgerDB. Cache
// entries are keyed by conversation id and validated against the content
// hash on read, so stale vectors for edited conversations read as misses.
type EmbeddingCache struct {
	backend *Backend
}

var _ storage.EmbeddingCache = (*EmbeddingCache)(nil)

// NewEmbeddingCache creates a new EmbeddingCache sharing the given backend.
func NewEmbeddingCache(backend *Backend) storage.EmbeddingCache {
	return &EmbeddingCache{backend: backend}
}

// GetEmbedding returns the cached vector for a conversation when the stored
// content hash matches, storage.ErrNotFound otherwise.
func (c *EmbeddingCache) GetEmbedding(ctx context.Context, conversationId string, contentHash core.ContentHash) ([]float32, error) {
	var vector []float32
	err := c.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeEmbeddingCacheKey(conversationId))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return storage.ErrNotFound
			}
			return err
		}

		var cached *core.CachedEmbedding
		if err := item.Value(func(val []byte) error {
			var unmarshalErr error
			cached, unmarshalErr = storage.UnmarshalCachedEmbedding(val)
			return unmarshalErr
		}); err != nil {
			return err
		}

		if cached.ContentHash != contentHash {
			return storage.ErrNotFound
		}
		vector = cached.Vector
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return vector, nil
}

// PutEmbedding stores a vector for a conversation, replacing any previous
// entry.
func (c *EmbeddingCache) PutEmbedding(ctx context.Context, conversationId string, contentHash core.ContentHash, vector []float32) error {
	return c.backend.WithTx(func(tx *badger.Txn) error {
		cached := &core.CachedEmbedding{
			ContentHash: contentHash,
			Vector:      vector,
		}
		if err := tx.Set(makeEmbeddingCacheKey(conversationId), storage.MarshalCachedEmbedding(cached)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// DeleteEmbedding removes the cache entry for a conversation. Absent
// entries are a no-op.
func (c *EmbeddingCache) DeleteEmbedding(ctx context.Context, conversationId string) error {
	return c.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Delete(makeEmbeddingCacheKey(conversationId)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}
