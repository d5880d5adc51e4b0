package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/cortex/ai"
	"github.com/poiesic/cortex/core"
	"github.com/poiesic/cortex/reprocess"
	"github.com/poiesic/cortex/storage"
)

const (
	defaultMaxAttempts = 3
	defaultRetryDelay  = 1 * time.Second
)

// NormalizedConversation is a parsed conversation from an export file,
// reduced to the fields ingestion needs. Summary and Topics may be empty;
// the pipeline fills them via the AI provider.
type NormalizedConversation struct {
	Id        string // optional; generated when empty
	Title     string
	Summary   string
	Topics    []string
	Messages  []string
	CreatedAt time.Time // optional; defaults to now
}

// Reprocessor triggers a full layout/clustering recomputation. Satisfied
// by reprocess.Orchestrator.
type Reprocessor interface {
	Run(ctx context.Context) (*reprocess.Result, error)
}

// BatchResult reports the outcome of a batch ingestion.
type BatchResult struct {
	Ingested int
	Failed   int
	Errors   []error
}

// Pipeline orchestrates conversation ingestion: summarization, embedding
// (with cache reuse), and storage writes.
type Pipeline struct {
	conversations storage.ConversationRepository
	vectors       storage.VectorStore
	cache         storage.EmbeddingCache
	embedder      ai.Embedder
	summarizer    ai.Summarizer
	reprocessor   Reprocessor
	pool          *ants.Pool
	maxAttempts   int
	retryDelay    time.Duration
	logger        *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the worker pool size for batch ingestion.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		if p.pool != nil {
			p.pool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		p.pool = pool
		return nil
	}
}

// WithReprocessor enables automatic reprocessing after successful batch
// ingestion. A reprocessing failure is logged, not returned; the ingested
// data is already durable.
func WithReprocessor(r Reprocessor) Option {
	return func(p *Pipeline) error {
		p.reprocessor = r
		return nil
	}
}

// WithRetry sets the retry policy for embedding and summarization calls.
// Defaults are 3 attempts with a 1s base delay.
func WithRetry(maxAttempts int, baseDelay time.Duration) Option {
	return func(p *Pipeline) error {
		if maxAttempts <= 0 {
			return ErrInvalidMaxAttempts
		}
		p.maxAttempts = maxAttempts
		p.retryDelay = baseDelay
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(
	conversations storage.ConversationRepository,
	vectors storage.VectorStore,
	cache storage.EmbeddingCache,
	provider ai.Provider,
	opts ...Option,
) (*Pipeline, error) {
	if conversations == nil {
		return nil, ErrConversationRepositoryRequired
	}
	if vectors == nil {
		return nil, ErrVectorStoreRequired
	}
	if cache == nil {
		return nil, ErrEmbeddingCacheRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		conversations: conversations,
		vectors:       vectors,
		cache:         cache,
		embedder:      provider.Embedder(),
		summarizer:    provider.Summarizer(),
		pool:          pool,
		maxAttempts:   defaultMaxAttempts,
		retryDelay:    defaultRetryDelay,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			p.Release()
			return nil, err
		}
	}
	return p, nil
}

// Release frees the worker pool.
func (p *Pipeline) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}

// Ingest processes one conversation end to end and returns the stored
// record. Re-ingesting an existing id updates the record in place;
// unchanged content reuses the cached embedding instead of calling the
// provider.
func (p *Pipeline) Ingest(ctx context.Context, nc *NormalizedConversation) (*core.Conversation, error) {
	if strings.TrimSpace(nc.Title) == "" {
		return nil, fmt.Errorf("ingest: %w", core.ErrEmptyTitle)
	}
	if len(nc.Messages) == 0 {
		return nil, fmt.Errorf("ingest: %w", core.ErrNoMessages)
	}

	id := nc.Id
	if id == "" {
		id = uuid.NewString()
	}

	summary, topics := nc.Summary, nc.Topics
	if summary == "" || len(topics) == 0 {
		generated, err := p.summarize(ctx, nc)
		if err != nil {
			return nil, fmt.Errorf("ingest %s: summarize: %w", id, err)
		}
		if summary == "" {
			summary = generated.Summary
		}
		if len(topics) == 0 {
			topics = generated.Topics
		}
	}

	createdAt := nc.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	conv := &core.Conversation{
		Id:           id,
		Title:        nc.Title,
		Summary:      summary,
		Topics:       topics,
		ClusterId:    core.ClusterUnassigned,
		MessageCount: len(nc.Messages),
		CreatedAt:    createdAt,
	}
	if err := core.ValidateConversation(conv); err != nil {
		return nil, fmt.Errorf("ingest %s: %w", id, err)
	}

	document := BuildDocument(conv.Title, conv.Summary, conv.Topics, nc.Messages)
	vector, err := p.embedDocument(ctx, id, document)
	if err != nil {
		return nil, fmt.Errorf("ingest %s: embed: %w", id, err)
	}

	if err := p.storeConversation(ctx, conv); err != nil {
		return nil, fmt.Errorf("ingest %s: store: %w", id, err)
	}
	if err := p.indexConversation(ctx, conv, document, vector, nc.Messages); err != nil {
		return nil, fmt.Errorf("ingest %s: index: %w", id, err)
	}

	p.logger.Debug("conversation ingested",
		"id", id,
		"messages", conv.MessageCount,
		"topics", len(conv.Topics))
	return conv, nil
}

// IngestBatch processes conversations concurrently over the worker pool.
// Individual failures don't abort the batch. When a reprocessor is
// configured and at least one conversation landed, a reprocessing run is
// triggered afterward; its failure is logged but doesn't fail the batch.
func (p *Pipeline) IngestBatch(ctx context.Context, batch []*NormalizedConversation) (*BatchResult, error) {
	result := &BatchResult{}
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, nc := range batch {
		nc := nc
		wg.Add(1)
		if err := p.pool.Submit(func() {
			defer wg.Done()
			_, err := p.Ingest(ctx, nc)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failed++
				result.Errors = append(result.Errors, err)
				p.logger.Error("batch ingestion item failed", "title", nc.Title, "err", err)
				return
			}
			result.Ingested++
		}); err != nil {
			wg.Done()
			mu.Lock()
			result.Failed++
			result.Errors = append(result.Errors, err)
			mu.Unlock()
		}
	}
	wg.Wait()

	if p.reprocessor != nil && result.Ingested > 0 {
		if _, err := p.reprocessor.Run(ctx); err != nil {
			p.logger.Warn("auto-reprocessing after batch failed", "err", err)
		}
	}
	return result, nil
}

// Delete removes a conversation together with its vector entries and
// cached embedding.
func (p *Pipeline) Delete(ctx context.Context, id string) error {
	if err := p.conversations.DeleteConversation(ctx, id); err != nil {
		return err
	}
	if err := p.vectors.DeleteConversationEntries(ctx, id); err != nil {
		return err
	}
	return p.cache.DeleteEmbedding(ctx, id)
}

// summarize generates a summary and topics for a conversation, retrying
// transient provider failures.
func (p *Pipeline) summarize(ctx context.Context, nc *NormalizedConversation) (*ai.Summary, error) {
	text := nc.Title + "\n\n" + strings.Join(nc.Messages, "\n")
	var summary *ai.Summary
	err := RetryWithBackoff(ctx, func() error {
		var err error
		summary, err = p.summarizer.Summarize(ctx, text)
		return err
	}, p.maxAttempts, p.retryDelay)
	return summary, err
}

// embedDocument returns the embedding for a document, reusing the cached
// vector when the content hash matches. Only storage.ErrNotFound counts as
// a cache miss; any other cache error propagates.
func (p *Pipeline) embedDocument(ctx context.Context, id, document string) ([]float32, error) {
	hash := core.HashContent(document)
	vector, err := p.cache.GetEmbedding(ctx, id, hash)
	if err == nil {
		p.logger.Debug("embedding cache hit", "id", id)
		return vector, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("embedding cache: %w", err)
	}

	err = RetryWithBackoff(ctx, func() error {
		var err error
		vector, err = p.embedder.EmbedText(ctx, document)
		return err
	}, p.maxAttempts, p.retryDelay)
	if err != nil {
		return nil, err
	}

	if err := p.cache.PutEmbedding(ctx, id, hash, vector); err != nil {
		return nil, err
	}
	return vector, nil
}

// storeConversation adds a new record or updates an existing one in
// place. Updates keep the previous cluster and position fields; they stay
// valid until the next reprocessing run replaces them.
func (p *Pipeline) storeConversation(ctx context.Context, conv *core.Conversation) error {
	existing, err := p.conversations.GetConversation(ctx, conv.Id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return p.conversations.AddConversation(ctx, conv)
		}
		return err
	}

	conv.CreatedAt = existing.CreatedAt
	conv.ClusterId = existing.ClusterId
	conv.ClusterName = existing.ClusterName
	conv.Positioned = existing.Positioned
	conv.Position = existing.Position
	return p.conversations.UpdateConversations(ctx, conv)
}

// indexConversation writes the primary document entry and, for long
// conversations, per-chunk entries grouped under the conversation id.
// Stale chunk entries from a previous ingest are removed first.
func (p *Pipeline) indexConversation(ctx context.Context, conv *core.Conversation, document string, vector []float32, messages []string) error {
	existing, err := p.vectors.GetConversationEntries(ctx, conv.Id)
	if err != nil {
		return err
	}
	for _, entry := range existing {
		if entry.Id != conv.Id {
			if err := p.vectors.Delete(ctx, entry.Id); err != nil {
				return err
			}
		}
	}

	if err := p.vectors.Upsert(ctx, &core.VectorEntry{
		Id:             conv.Id,
		ConversationId: conv.Id,
		Title:          conv.Title,
		Document:       document,
		Vector:         vector,
	}); err != nil {
		return err
	}

	chunks := chunkMessages(messages)
	if len(chunks) == 0 {
		return nil
	}

	var chunkVectors [][]float32
	if err := RetryWithBackoff(ctx, func() error {
		var err error
		chunkVectors, err = p.embedder.EmbedTexts(ctx, chunks)
		return err
	}, p.maxAttempts, p.retryDelay); err != nil {
		return err
	}

	for i, chunk := range chunks {
		if err := p.vectors.Upsert(ctx, &core.VectorEntry{
			Id:             fmt.Sprintf("%s#%d", conv.Id, i),
			ConversationId: conv.Id,
			Title:          conv.Title,
			Document:       chunk,
			Vector:         chunkVectors[i],
		}); err != nil {
			return err
		}
	}
	return nil
}
