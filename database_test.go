package cortex

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/cortex/ai/mock"
	"github.com/poiesic/cortex/core"
	"github.com/poiesic/cortex/ingestion"
	"github.com/poiesic/cortex/reprocess"
	"github.com/poiesic/cortex/search"
	"github.com/poiesic/cortex/storage"
)

// keywordEmbedder maps each known topic word to its own axis so test
// corpora have clean, well-separated similarity structure.
func keywordEmbedder() *mock.MockEmbedder {
	embed := func(text string) []float32 {
		keywords := []string{"python", "docker", "sql", "react", "ml"}
		v := make([]float32, len(keywords)+1)
		lower := strings.ToLower(text)
		hit := false
		for i, kw := range keywords {
			if strings.Contains(lower, kw) {
				v[i] = 1
				hit = true
			}
		}
		if !hit {
			v[len(keywords)] = 1
		}
		return v
	}

	embedder := mock.NewMockEmbedderWithDimension(6)
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return embed(text), nil
	}
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		vectors := make([][]float32, len(texts))
		for i, text := range texts {
			vectors[i] = embed(text)
		}
		return vectors, nil
	}
	return embedder
}

func newTestDatabase(t *testing.T, opts ...DatabaseOption) (*Database, *mock.MockEmbedder) {
	t.Helper()

	embedder := keywordEmbedder()
	provider := mock.NewMockProviderWithServices(embedder, mock.NewMockSummarizer())
	opts = append([]DatabaseOption{WithInMemory(), WithAIProvider(provider)}, opts...)

	db, err := NewDatabase("", opts...)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, embedder
}

func TestNewDatabase(t *testing.T) {
	t.Run("create new database", func(t *testing.T) {
		tmpDir := filepath.Join(t.TempDir(), "test_db")
		db, err := NewDatabase(tmpDir, WithAIProvider(mock.NewMockProvider()))
		require.NoError(t, err)
		require.NotNil(t, db)
		defer db.Close()

		// Verify components are initialized
		assert.NotNil(t, db.ConversationRepository())
		assert.NotNil(t, db.VectorStore())
		assert.NotNil(t, db.EmbeddingCache())
		assert.NotNil(t, db.Provider())
		assert.NotNil(t, db.backend)
		assert.NotNil(t, db.logger)
	})

	t.Run("error with invalid path", func(t *testing.T) {
		// Try to create a database at a file path instead of directory
		tmpFile := filepath.Join(t.TempDir(), "not_a_dir")
		err := os.WriteFile(tmpFile, []byte("test"), 0644)
		require.NoError(t, err)

		db, err := NewDatabase(tmpFile, WithAIProvider(mock.NewMockProvider()))
		assert.Error(t, err)
		assert.Nil(t, db)
	})
}

func TestDatabase_Close(t *testing.T) {
	db, err := NewDatabase("", WithInMemory(), WithAIProvider(mock.NewMockProvider()))
	require.NoError(t, err)
	require.NotNil(t, db)

	err = db.Close()
	assert.NoError(t, err)
}

func TestDatabase_FactoryMethods(t *testing.T) {
	db, _ := newTestDatabase(t)

	t.Run("can create ingestion pipeline", func(t *testing.T) {
		pipeline, err := db.NewIngestionPipeline()
		require.NoError(t, err)
		require.NotNil(t, pipeline)
		pipeline.Release()
	})

	t.Run("can create searcher", func(t *testing.T) {
		searcher, err := db.NewSearcher()
		require.NoError(t, err)
		require.NotNil(t, searcher)
	})
}

func TestIngestEmbedding(t *testing.T) {
	db, embedder := newTestDatabase(t)
	ctx := context.Background()

	err := db.IngestEmbedding(ctx, "", "some text")
	assert.ErrorIs(t, err, core.ErrEmptyInput)

	err = db.IngestEmbedding(ctx, "conv-1", "   ")
	assert.ErrorIs(t, err, core.ErrEmptyInput)

	require.NoError(t, db.IngestEmbedding(ctx, "conv-1", "All about python generators."))

	entry, err := db.VectorStore().GetEntry(ctx, "conv-1")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "conv-1", entry.ConversationId)
	assert.Equal(t, "All about python generators.", entry.Document)

	// Same text again hits the embedding cache.
	calls := embedder.CallCount()
	require.NoError(t, db.IngestEmbedding(ctx, "conv-1", "All about python generators."))
	assert.Equal(t, calls, embedder.CallCount())
}

func ingestTopicCorpus(t *testing.T, db *Database) {
	t.Helper()

	pipeline, err := db.NewIngestionPipeline()
	require.NoError(t, err)
	defer pipeline.Release()

	corpus := []*ingestion.NormalizedConversation{
		{Id: "c-python", Title: "Python asyncio deep dive", Summary: "python concurrency", Topics: []string{"python"}, Messages: []string{"How does python asyncio schedule tasks?"}},
		{Id: "c-docker", Title: "Docker networking", Summary: "docker networks", Topics: []string{"docker"}, Messages: []string{"Why can't my docker containers talk to each other?"}},
		{Id: "c-sql", Title: "SQL window functions", Summary: "sql analytics", Topics: []string{"sql"}, Messages: []string{"Explain sql window functions with examples."}},
		{Id: "c-react", Title: "React hooks", Summary: "react state", Topics: []string{"react"}, Messages: []string{"When does a react effect re-run?"}},
		{Id: "c-ml", Title: "ML feature engineering", Summary: "ml pipelines", Topics: []string{"ml"}, Messages: []string{"What ml features work for churn prediction?"}},
	}
	for _, nc := range corpus {
		_, err := pipeline.Ingest(context.Background(), nc)
		require.NoError(t, err)
	}
}

func TestDatabase_ReprocessAndVisualize(t *testing.T) {
	db, _ := newTestDatabase(t, WithClusterCount(3))
	ctx := context.Background()

	ingestTopicCorpus(t, db)

	result, err := db.Reprocess(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, result.ConversationsUpdated)
	require.Len(t, result.ClusterStats, 3)

	total := 0
	for _, stat := range result.ClusterStats {
		assert.NotEmpty(t, stat.Name)
		assert.Greater(t, stat.Count, 0)
		total += stat.Count
	}
	assert.Equal(t, 5, total)

	viz, err := db.VisualizationData(ctx)
	require.NoError(t, err)
	require.Len(t, viz.Nodes, 5)
	require.Len(t, viz.Clusters, 3)
	for _, node := range viz.Nodes {
		assert.True(t, node.Positioned)
		assert.True(t, node.ClusterId >= 0)
		assert.NotEmpty(t, node.ClusterName)
	}
}

func TestDatabase_ReprocessInsufficientData(t *testing.T) {
	db, _ := newTestDatabase(t)

	_, err := db.Reprocess(context.Background())
	assert.ErrorIs(t, err, core.ErrInsufficientData)

	// The orchestrator is idle again and reports the failed outcome.
	status := db.ReprocessStatus()
	assert.Equal(t, reprocess.StateIdle, status.State)
	assert.Equal(t, reprocess.StateFailed, status.LastOutcome)
	assert.ErrorIs(t, status.LastError, core.ErrInsufficientData)
}

func TestDatabase_SearchAndDelete(t *testing.T) {
	db, _ := newTestDatabase(t)
	ctx := context.Background()

	ingestTopicCorpus(t, db)

	results, err := db.Search(ctx, "python async programming", 5, nil)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "c-python", results[0].Conversation.Id)
	assert.GreaterOrEqual(t, results[0].Score, float32(0.3))
	assert.LessOrEqual(t, len(results), 5)

	// Topic filter narrows results to matching conversations.
	filtered, err := db.Search(ctx, "python async programming", 5, &search.Filters{Topics: []string{"docker"}})
	require.NoError(t, err)
	for _, r := range filtered {
		assert.Contains(t, r.Conversation.Topics, "docker")
	}

	require.NoError(t, db.DeleteConversation(ctx, "c-python"))

	results, err = db.Search(ctx, "python async programming", 5, nil)
	require.NoError(t, err)
	for _, r := range results {
		assert.NotEqual(t, "c-python", r.Conversation.Id)
	}

	err = db.DeleteConversation(ctx, "c-python")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
