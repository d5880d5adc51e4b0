package badger

import (
	"context"
	"testing"

	"github.com/poiesic/cortex/core"
	"github.com/poiesic/cortex/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddingCacheHitAndMiss(t *testing.T) {
	stores, err := NewMemoryStores()
	require.NoError(t, err)
	defer stores.Close()

	ctx := context.Background()
	hash := core.HashContent("Title: Test\n\nSome content")
	vector := []float32{0.1, 0.2, 0.3}

	_, err = stores.Cache.GetEmbedding(ctx, "conv-1", hash)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, stores.Cache.PutEmbedding(ctx, "conv-1", hash, vector))

	got, err := stores.Cache.GetEmbedding(ctx, "conv-1", hash)
	require.NoError(t, err)
	assert.Equal(t, vector, got)
}

func TestEmbeddingCacheContentChangeInvalidates(t *testing.T) {
	stores, err := NewMemoryStores()
	require.NoError(t, err)
	defer stores.Close()

	ctx := context.Background()
	oldHash := core.HashContent("old content")
	require.NoError(t, stores.Cache.PutEmbedding(ctx, "conv-1", oldHash, []float32{1, 2}))

	// Edited content hashes differently, so the stale vector is a miss.
	newHash := core.HashContent("new content")
	_, err = stores.Cache.GetEmbedding(ctx, "conv-1", newHash)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// The old hash still hits until the entry is replaced.
	got, err := stores.Cache.GetEmbedding(ctx, "conv-1", oldHash)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2}, got)

	require.NoError(t, stores.Cache.PutEmbedding(ctx, "conv-1", newHash, []float32{3, 4}))
	got, err = stores.Cache.GetEmbedding(ctx, "conv-1", newHash)
	require.NoError(t, err)
	assert.Equal(t, []float32{3, 4}, got)
}

func TestEmbeddingCacheDelete(t *testing.T) {
	stores, err := NewMemoryStores()
	require.NoError(t, err)
	defer stores.Close()

	ctx := context.Background()
	hash := core.HashContent("content")
	require.NoError(t, stores.Cache.PutEmbedding(ctx, "conv-1", hash, []float32{1}))

	require.NoError(t, stores.Cache.DeleteEmbedding(ctx, "conv-1"))
	_, err = stores.Cache.GetEmbedding(ctx, "conv-1", hash)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// Deleting again is a no-op.
	require.NoError(t, stores.Cache.DeleteEmbedding(ctx, "conv-1"))
}
