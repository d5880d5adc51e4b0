package badger

import (
	"context"
	"testing"
	"time"

	"github.com/poiesic/cortex/core"
	"github.com/poiesic/cortex/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConversation(id, title string) *core.Conversation {
	return &core.Conversation{
		Id:           id,
		Title:        title,
		Summary:      "A summary of " + title,
		Topics:       []string{"testing", "storage"},
		ClusterId:    core.ClusterUnassigned,
		MessageCount: 4,
		CreatedAt:    time.Now().UTC().Add(-time.Hour),
	}
}

func TestConversationRepositoryBasics(t *testing.T) {
	stores, err := NewMemoryStores()
	require.NoError(t, err)
	defer stores.Close()

	ctx := context.Background()

	conv := testConversation("conv-1", "First conversation")
	require.NoError(t, stores.Conversations.AddConversation(ctx, conv))
	assert.False(t, conv.UpdatedAt.IsZero())

	got, err := stores.Conversations.GetConversation(ctx, "conv-1")
	require.NoError(t, err)
	assert.Equal(t, "First conversation", got.Title)
	assert.Equal(t, []string{"testing", "storage"}, got.Topics)
	assert.Equal(t, core.ClusterUnassigned, got.ClusterId)
	assert.False(t, got.HasCluster())

	// Adding the same id again is a duplicate.
	err = stores.Conversations.AddConversation(ctx, testConversation("conv-1", "Other"))
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestConversationRepositoryUpdate(t *testing.T) {
	stores, err := NewMemoryStores()
	require.NoError(t, err)
	defer stores.Close()

	ctx := context.Background()

	conv := testConversation("conv-1", "Original title")
	require.NoError(t, stores.Conversations.AddConversation(ctx, conv))

	conv.ClusterId = 2
	conv.ClusterName = "Testing & Storage"
	conv.Positioned = true
	conv.Position = core.Position{X: 1.5, Y: -2.5, Z: 0.5, Magnitude: 3.0}
	require.NoError(t, stores.Conversations.UpdateConversations(ctx, conv))

	got, err := stores.Conversations.GetConversation(ctx, "conv-1")
	require.NoError(t, err)
	assert.Equal(t, 2, got.ClusterId)
	assert.True(t, got.HasCluster())
	assert.True(t, got.Positioned)
	assert.Equal(t, core.Position{X: 1.5, Y: -2.5, Z: 0.5, Magnitude: 3.0}, got.Position)

	// Updating an absent record fails.
	err = stores.Conversations.UpdateConversations(ctx, testConversation("missing", "Nope"))
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestConversationRepositoryUpdateBatchIsAtomic(t *testing.T) {
	stores, err := NewMemoryStores()
	require.NoError(t, err)
	defer stores.Close()

	ctx := context.Background()

	conv := testConversation("conv-1", "Original title")
	require.NoError(t, stores.Conversations.AddConversation(ctx, conv))

	// A batch containing a missing record must leave the existing record
	// untouched.
	conv.Title = "Mutated title"
	missing := testConversation("missing", "Nope")
	err = stores.Conversations.UpdateConversations(ctx, conv, missing)
	require.ErrorIs(t, err, storage.ErrNotFound)

	got, err := stores.Conversations.GetConversation(ctx, "conv-1")
	require.NoError(t, err)
	assert.Equal(t, "Original title", got.Title)
}

func TestConversationRepositoryDelete(t *testing.T) {
	stores, err := NewMemoryStores()
	require.NoError(t, err)
	defer stores.Close()

	ctx := context.Background()

	require.NoError(t, stores.Conversations.AddConversation(ctx, testConversation("conv-1", "First")))
	require.NoError(t, stores.Conversations.DeleteConversation(ctx, "conv-1"))

	_, err = stores.Conversations.GetConversation(ctx, "conv-1")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	err = stores.Conversations.DeleteConversation(ctx, "conv-1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestConversationRepositoryGetAllAndCount(t *testing.T) {
	stores, err := NewMemoryStores()
	require.NoError(t, err)
	defer stores.Close()

	ctx := context.Background()

	all, err := stores.Conversations.GetAllConversations(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	for _, id := range []string{"b", "a", "c"} {
		require.NoError(t, stores.Conversations.AddConversation(ctx, testConversation(id, "Conversation "+id)))
	}

	all, err = stores.Conversations.GetAllConversations(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	// Key order is id order.
	assert.Equal(t, "a", all[0].Id)
	assert.Equal(t, "b", all[1].Id)
	assert.Equal(t, "c", all[2].Id)

	count, err := stores.Conversations.CountConversations(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	some, err := stores.Conversations.GetConversations(ctx, "a", "missing", "c")
	require.NoError(t, err)
	require.Len(t, some, 2)
	assert.Equal(t, "a", some[0].Id)
	assert.Equal(t, "c", some[1].Id)
}
