package reprocess

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/poiesic/cortex/cluster"
	"github.com/poiesic/cortex/core"
	"github.com/poiesic/cortex/projection"
	"github.com/poiesic/cortex/storage"
	"github.com/poiesic/cortex/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubReducer struct {
	fn func(ctx context.Context, vectors [][]float32) ([]core.Position, error)
}

func (s *stubReducer) Reduce(ctx context.Context, vectors [][]float32) ([]core.Position, error) {
	return s.fn(ctx, vectors)
}

type stubClusterer struct {
	fn func(ctx context.Context, points []core.Position, k int) ([]int, error)
}

func (s *stubClusterer) Cluster(ctx context.Context, points []core.Position, k int) ([]int, error) {
	return s.fn(ctx, points, k)
}

// failingUpdateRepo passes reads through and fails every write batch.
type failingUpdateRepo struct {
	storage.ConversationRepository
}

func (r *failingUpdateRepo) UpdateConversations(ctx context.Context, conversations ...*core.Conversation) error {
	return errors.New("simulated write failure")
}

func newTestPipeline(t *testing.T) (*badger.MemoryStores, Reducer, Clusterer) {
	t.Helper()
	stores, err := badger.NewMemoryStores()
	require.NoError(t, err)
	t.Cleanup(func() { stores.Close() })

	reducer, err := projection.New(projection.WithSeed(42), projection.WithIterations(50))
	require.NoError(t, err)
	clusterer, err := cluster.New(cluster.WithSeed(42))
	require.NoError(t, err)
	return stores, reducer, clusterer
}

func addEmbedded(t *testing.T, stores *badger.MemoryStores, id string, topics []string, vector []float32) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, stores.Conversations.AddConversation(ctx, &core.Conversation{
		Id:           id,
		Title:        "Conversation " + id,
		Topics:       topics,
		ClusterId:    core.ClusterUnassigned,
		MessageCount: 2,
		CreatedAt:    time.Now().UTC(),
	}))
	require.NoError(t, stores.Vectors.Upsert(ctx, &core.VectorEntry{
		Id:             id,
		ConversationId: id,
		Title:          "Conversation " + id,
		Document:       "document " + id,
		Vector:         vector,
	}))
}

func TestNewValidation(t *testing.T) {
	stores, reducer, clusterer := newTestPipeline(t)

	_, err := New(nil, stores.Vectors, reducer, clusterer)
	assert.ErrorIs(t, err, ErrConversationRepositoryRequired)

	_, err = New(stores.Conversations, nil, reducer, clusterer)
	assert.ErrorIs(t, err, ErrVectorStoreRequired)

	_, err = New(stores.Conversations, stores.Vectors, nil, clusterer)
	assert.ErrorIs(t, err, ErrReducerRequired)

	_, err = New(stores.Conversations, stores.Vectors, reducer, nil)
	assert.ErrorIs(t, err, ErrClustererRequired)

	_, err = New(stores.Conversations, stores.Vectors, reducer, clusterer, WithClusterCount(0))
	assert.Error(t, err)
}

func TestRunInsufficientData(t *testing.T) {
	stores, reducer, clusterer := newTestPipeline(t)

	orchestrator, err := New(stores.Conversations, stores.Vectors, reducer, clusterer)
	require.NoError(t, err)

	ctx := context.Background()

	_, err = orchestrator.Run(ctx)
	assert.ErrorIs(t, err, core.ErrInsufficientData)
	assert.Equal(t, StateIdle, orchestrator.Status().State)
	assert.Equal(t, StateFailed, orchestrator.Status().LastOutcome)

	// One conversation is still not enough, and its record must stay
	// untouched.
	addEmbedded(t, stores, "only", []string{"solo"}, []float32{1, 0, 0})
	_, err = orchestrator.Run(ctx)
	assert.ErrorIs(t, err, core.ErrInsufficientData)

	conv, err := stores.Conversations.GetConversation(ctx, "only")
	require.NoError(t, err)
	assert.False(t, conv.Positioned)
	assert.Equal(t, core.ClusterUnassigned, conv.ClusterId)
}

func TestRunHappyPath(t *testing.T) {
	stores, reducer, clusterer := newTestPipeline(t)

	// Two natural groups with shared topics.
	addEmbedded(t, stores, "py-1", []string{"python", "asyncio"}, []float32{1, 0, 0, 0})
	addEmbedded(t, stores, "py-2", []string{"python", "testing"}, []float32{0.95, 0.05, 0, 0})
	addEmbedded(t, stores, "py-3", []string{"python"}, []float32{0.9, 0.1, 0, 0})
	addEmbedded(t, stores, "rs-1", []string{"rust", "wasm"}, []float32{0, 0, 1, 0})
	addEmbedded(t, stores, "rs-2", []string{"rust"}, []float32{0, 0, 0.95, 0.05})

	orchestrator, err := New(stores.Conversations, stores.Vectors, reducer, clusterer,
		WithClusterCount(2))
	require.NoError(t, err)

	ctx := context.Background()
	result, err := orchestrator.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 5, result.ConversationsUpdated)
	assert.Equal(t, StateIdle, orchestrator.Status().State)
	assert.Equal(t, StateSuccess, orchestrator.Status().LastOutcome)

	total := 0
	for _, stat := range result.ClusterStats {
		total += stat.Count
		assert.NotEmpty(t, stat.Name)
	}
	assert.Equal(t, 5, total)

	all, err := stores.Conversations.GetAllConversations(ctx)
	require.NoError(t, err)
	for _, conv := range all {
		assert.True(t, conv.Positioned, "conversation %s", conv.Id)
		assert.GreaterOrEqual(t, conv.ClusterId, 0)
		assert.Less(t, conv.ClusterId, 2)
		assert.NotEmpty(t, conv.ClusterName)
	}

	// The two groups land in different clusters.
	py, err := stores.Conversations.GetConversation(ctx, "py-1")
	require.NoError(t, err)
	rs, err := stores.Conversations.GetConversation(ctx, "rs-1")
	require.NoError(t, err)
	assert.NotEqual(t, py.ClusterId, rs.ClusterId)
}

func TestRunClampsClusterCount(t *testing.T) {
	stores, reducer, clusterer := newTestPipeline(t)

	addEmbedded(t, stores, "a", []string{"one"}, []float32{1, 0, 0})
	addEmbedded(t, stores, "b", []string{"two"}, []float32{0, 1, 0})
	addEmbedded(t, stores, "c", []string{"three"}, []float32{0, 0, 1})

	// Configured K of 5 exceeds the corpus; the run clamps to 3 instead
	// of failing.
	orchestrator, err := New(stores.Conversations, stores.Vectors, reducer, clusterer,
		WithClusterCount(5))
	require.NoError(t, err)

	result, err := orchestrator.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, result.ConversationsUpdated)

	all, err := stores.Conversations.GetAllConversations(context.Background())
	require.NoError(t, err)
	for _, conv := range all {
		assert.Less(t, conv.ClusterId, 3)
	}
}

func TestRunAtomicityOnPublishFailure(t *testing.T) {
	stores, reducer, clusterer := newTestPipeline(t)

	addEmbedded(t, stores, "a", []string{"one"}, []float32{1, 0, 0})
	addEmbedded(t, stores, "b", []string{"two"}, []float32{0, 1, 0})

	failing := &failingUpdateRepo{ConversationRepository: stores.Conversations}
	orchestrator, err := New(failing, stores.Vectors, reducer, clusterer)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = orchestrator.Run(ctx)
	require.Error(t, err)
	assert.Equal(t, StateFailed, orchestrator.Status().LastOutcome)
	assert.Error(t, orchestrator.Status().LastError)

	// No conversation's fields changed from their pre-run values.
	all, err := stores.Conversations.GetAllConversations(ctx)
	require.NoError(t, err)
	for _, conv := range all {
		assert.False(t, conv.Positioned)
		assert.Equal(t, core.ClusterUnassigned, conv.ClusterId)
		assert.Empty(t, conv.ClusterName)
		assert.Equal(t, core.Position{}, conv.Position)
	}
}

func TestRunSingleFlight(t *testing.T) {
	stores, _, clusterer := newTestPipeline(t)

	addEmbedded(t, stores, "a", []string{"one"}, []float32{1, 0, 0})
	addEmbedded(t, stores, "b", []string{"two"}, []float32{0, 1, 0})

	started := make(chan struct{})
	release := make(chan struct{})
	var startedOnce sync.Once
	blocking := &stubReducer{fn: func(ctx context.Context, vectors [][]float32) ([]core.Position, error) {
		startedOnce.Do(func() { close(started) })
		<-release
		positions := make([]core.Position, len(vectors))
		for i := range positions {
			positions[i] = core.Position{X: float64(i)}
		}
		return positions, nil
	}}

	orchestrator, err := New(stores.Conversations, stores.Vectors, blocking, clusterer)
	require.NoError(t, err)

	ctx := context.Background()
	done := make(chan error, 1)
	go func() {
		_, err := orchestrator.Run(ctx)
		done <- err
	}()

	<-started
	assert.Equal(t, StateRunning, orchestrator.Status().State)

	// A second run while the first is in flight is rejected immediately.
	_, err = orchestrator.Run(ctx)
	assert.ErrorIs(t, err, core.ErrAlreadyInProgress)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, StateIdle, orchestrator.Status().State)
	assert.Equal(t, StateSuccess, orchestrator.Status().LastOutcome)

	// With the first run finished, a new run is accepted again.
	_, err = orchestrator.Run(ctx)
	require.NoError(t, err)
}

func TestRunClustererFailurePublishesNothing(t *testing.T) {
	stores, reducer, _ := newTestPipeline(t)

	addEmbedded(t, stores, "a", []string{"one"}, []float32{1, 0, 0})
	addEmbedded(t, stores, "b", []string{"two"}, []float32{0, 1, 0})

	clusterErr := errors.New("clusterer exploded")
	failing := &stubClusterer{fn: func(ctx context.Context, points []core.Position, k int) ([]int, error) {
		return nil, clusterErr
	}}

	orchestrator, err := New(stores.Conversations, stores.Vectors, reducer, failing)
	require.NoError(t, err)

	_, err = orchestrator.Run(context.Background())
	assert.ErrorIs(t, err, clusterErr)

	all, err := stores.Conversations.GetAllConversations(context.Background())
	require.NoError(t, err)
	for _, conv := range all {
		assert.False(t, conv.Positioned)
	}
}

func TestRunReducerFailureLeavesStateUntouched(t *testing.T) {
	stores, _, clusterer := newTestPipeline(t)

	addEmbedded(t, stores, "a", []string{"one"}, []float32{1, 0, 0})
	addEmbedded(t, stores, "b", []string{"two"}, []float32{0, 1, 0})

	reduceErr := errors.New("reducer exploded")
	failing := &stubReducer{fn: func(ctx context.Context, vectors [][]float32) ([]core.Position, error) {
		return nil, reduceErr
	}}

	orchestrator, err := New(stores.Conversations, stores.Vectors, failing, clusterer)
	require.NoError(t, err)

	_, err = orchestrator.Run(context.Background())
	assert.ErrorIs(t, err, reduceErr)

	all, err := stores.Conversations.GetAllConversations(context.Background())
	require.NoError(t, err)
	for _, conv := range all {
		assert.False(t, conv.Positioned)
		assert.Equal(t, core.ClusterUnassigned, conv.ClusterId)
	}
}
