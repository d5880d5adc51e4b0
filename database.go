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


package cortex

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/poiesic/cortex/ai"
	"github.com/poiesic/cortex/ai/openai"
	"github.com/poiesic/cortex/cluster"
	"github.com/poiesic/cortex/core"
	"github.com/poiesic/cortex/ingestion"
	"github.com/poiesic/cortex/projection"
	"github.com/poiesic/cortex/reprocess"
	"github.com/poiesic/cortex/search"
	"github.com/poiesic/cortex/storage"
	"github.com/poiesic/cortex/storage/badger"
)

// Database aggregates storage, the AI provider, and the processing
// components behind one handle.
type Database struct {
	backend       *badger.Backend
	conversations storage.ConversationRepository
	vectors       storage.VectorStore
	cache         storage.EmbeddingCache
	provider      ai.Provider
	orchestrator  *reprocess.Orchestrator
	logger        *slog.Logger
}

// DatabaseOption configures a Database.
type DatabaseOption func(*databaseOptions)

type databaseOptions struct {
	aiConfig     *ai.Config
	provider     ai.Provider
	inMemory     bool
	clusterCount int
}

// WithAIConfig sets the AI provider configuration.
func WithAIConfig(config *ai.Config) DatabaseOption {
	return func(o *databaseOptions) {
		o.aiConfig = config
	}
}

// WithAIProvider injects a pre-built provider instead of constructing the
// OpenAI-compatible one. The Database takes ownership and closes it.
func WithAIProvider(provider ai.Provider) DatabaseOption {
	return func(o *databaseOptions) {
		o.provider = provider
	}
}

// WithInMemory opens the backing store in memory. The file path passed to
// NewDatabase is ignored.
func WithInMemory() DatabaseOption {
	return func(o *databaseOptions) {
		o.inMemory = true
	}
}

// WithClusterCount sets the target cluster count for reprocessing runs.
func WithClusterCount(k int) DatabaseOption {
	return func(o *databaseOptions) {
		o.clusterCount = k
	}
}

func NewDatabase(filePath string, opts ...DatabaseOption) (*Database, error) {
	// Apply options
	options := &databaseOptions{
		aiConfig: ai.DefaultConfig(), // Default if not provided
	}
	for _, opt := range opts {
		opt(options)
	}
	// Open backend
	backend, err := badger.OpenBackend(filePath, options.inMemory)
	if err != nil {
		return nil, err
	}

	// Create conversation repository
	conversations := badger.NewConversationRepository(backend)

	// Create vector store
	vectors, err := badger.NewVectorStore(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	// Create embedding cache
	cache := badger.NewEmbeddingCache(backend)

	// Create AI provider with configured settings
	provider := options.provider
	if provider == nil {
		provider, err = openai.NewProvider(options.aiConfig)
		if err != nil {
			vectors.Close()
			backend.Close()
			return nil, err
		}
	}

	// Create the projection and clustering components with their defaults
	reducer, err := projection.New()
	if err != nil {
		provider.Close()
		vectors.Close()
		backend.Close()
		return nil, err
	}
	clusterer, err := cluster.New()
	if err != nil {
		provider.Close()
		vectors.Close()
		backend.Close()
		return nil, err
	}

	var orchestratorOpts []reprocess.Option
	if options.clusterCount > 0 {
		orchestratorOpts = append(orchestratorOpts, reprocess.WithClusterCount(options.clusterCount))
	}
	orchestrator, err := reprocess.New(conversations, vectors, reducer, clusterer, orchestratorOpts...)
	if err != nil {
		provider.Close()
		vectors.Close()
		backend.Close()
		return nil, err
	}

	return &Database{
		backend:       backend,
		conversations: conversations,
		vectors:       vectors,
		cache:         cache,
		provider:      provider,
		orchestrator:  orchestrator,
		logger:        slog.Default(),
	}, nil
}

func (db *Database) Close() error {
	// Close AI provider first
	if err := db.provider.Close(); err != nil {
		db.logger.Error("error closing AI provider", "err", err)
	}

	// Close repositories. The vector store releases its id sequence.
	if err := db.vectors.Close(); err != nil {
		db.logger.Error("error closing vector store", "err", err)
		return err
	}
	if err := db.conversations.Close(); err != nil {
		db.logger.Error("error closing conversation repository", "err", err)
		return err
	}

	// Close backend
	if err := db.backend.Close(); err != nil {
		db.logger.Error("error closing backend storage", "err", err)
		return err
	}
	return nil
}

func (db *Database) ConversationRepository() storage.ConversationRepository {
	return db.conversations
}

func (db *Database) VectorStore() storage.VectorStore {
	return db.vectors
}

func (db *Database) EmbeddingCache() storage.EmbeddingCache {
	return db.cache
}

func (db *Database) Provider() ai.Provider {
	return db.provider
}

func (db *Database) NewIngestionPipeline(opts ...ingestion.Option) (*ingestion.Pipeline, error) {
	return ingestion.NewPipeline(db.conversations, db.vectors, db.cache, db.provider, opts...)
}

func (db *Database) NewSearcher(opts ...search.Option) (*search.Searcher, error) {
	return search.NewSearcher(db.conversations, db.vectors, db.provider.Embedder(), opts...)
}

// IngestEmbedding embeds text and upserts it into the vector store under
// the given conversation id, recording the vector in the embedding cache.
// The conversation record itself is untouched; use an ingestion.Pipeline
// for full conversation ingestion.
func (db *Database) IngestEmbedding(ctx context.Context, conversationId, text string) error {
	if conversationId == "" {
		return fmt.Errorf("ingest embedding: conversation id: %w", core.ErrEmptyInput)
	}
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("ingest embedding %s: %w", conversationId, core.ErrEmptyInput)
	}

	hash := core.HashContent(text)
	vector, err := db.cache.GetEmbedding(ctx, conversationId, hash)
	if err != nil {
		// Only a missing or stale cache entry falls through to the provider.
		if !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("ingest embedding %s: %w", conversationId, err)
		}
		vector, err = db.provider.Embedder().EmbedText(ctx, text)
		if err != nil {
			return fmt.Errorf("ingest embedding %s: %w", conversationId, err)
		}
		if err := db.cache.PutEmbedding(ctx, conversationId, hash, vector); err != nil {
			return fmt.Errorf("ingest embedding %s: %w", conversationId, err)
		}
	}

	title := ""
	if conv, err := db.conversations.GetConversation(ctx, conversationId); err == nil {
		title = conv.Title
	}

	return db.vectors.Upsert(ctx, &core.VectorEntry{
		Id:             conversationId,
		ConversationId: conversationId,
		Title:          title,
		Document:       text,
		Vector:         vector,
	})
}

// Search runs a hybrid search over the indexed conversations.
func (db *Database) Search(ctx context.Context, query string, limit int, filters *search.Filters) ([]*core.SearchResult, error) {
	searcher, err := db.NewSearcher()
	if err != nil {
		return nil, err
	}
	return searcher.Search(ctx, query, limit, filters)
}

// Reprocess recomputes the 3D layout and cluster assignment for the whole
// corpus. At most one run is in flight at a time; a concurrent call fails
// with core.ErrAlreadyInProgress.
func (db *Database) Reprocess(ctx context.Context) (*reprocess.Result, error) {
	return db.orchestrator.Run(ctx)
}

// ReprocessStatus reports the state of the reprocessing orchestrator.
func (db *Database) ReprocessStatus() reprocess.Status {
	return db.orchestrator.Status()
}

// Reprocessor exposes the orchestrator, e.g. for
// ingestion.WithReprocessor.
func (db *Database) Reprocessor() *reprocess.Orchestrator {
	return db.orchestrator
}

// VisualizationData returns a read-only snapshot of the currently
// published layout: one node per conversation plus per-cluster statistics.
func (db *Database) VisualizationData(ctx context.Context) (*core.VisualizationData, error) {
	conversations, err := db.conversations.GetAllConversations(ctx)
	if err != nil {
		return nil, err
	}

	nodes := make([]core.VisualizationNode, 0, len(conversations))
	for _, conv := range conversations {
		nodes = append(nodes, core.VisualizationNode{
			Id:           conv.Id,
			Title:        conv.Title,
			Summary:      conv.Summary,
			Topics:       conv.Topics,
			ClusterId:    conv.ClusterId,
			ClusterName:  conv.ClusterName,
			MessageCount: conv.MessageCount,
			Positioned:   conv.Positioned,
			Position:     conv.Position,
			CreatedAt:    conv.CreatedAt,
		})
	}

	return &core.VisualizationData{
		Nodes:    nodes,
		Clusters: cluster.Statistics(conversations),
	}, nil
}

// DeleteConversation removes a conversation together with its vector
// entries and cached embedding.
func (db *Database) DeleteConversation(ctx context.Context, id string) error {
	if err := db.conversations.DeleteConversation(ctx, id); err != nil {
		return err
	}
	if err := db.vectors.DeleteConversationEntries(ctx, id); err != nil {
		return err
	}
	return db.cache.DeleteEmbedding(ctx, id)
}
