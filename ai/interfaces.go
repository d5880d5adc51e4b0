package ai

import "context"

// Embedder generates fixed-length vector embeddings from text for semantic
// similarity search. Implementations must be thread-safe for concurrent use.
//
// Embedding is deterministic: identical input text produces an identical
// vector, which is what makes the embedding cache sound.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	// Returns core.ErrEmptyInput (wrapped) if the text is empty after
	// normalization and core.ErrProviderUnavailable (wrapped) when the
	// backend cannot be reached.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a
	// batch. The returned slice contains embeddings in the same order as the
	// input texts. Fails as EmbedText does if any input is empty or the
	// backend is unreachable.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the length of the vectors this embedder produces.
	Dimension() int
}

// Summary is the result of summarizing a conversation.
type Summary struct {
	// Summary is a short human-readable description, 2-3 sentences.
	Summary string

	// Topics are 3-5 short topic tags in reading order.
	Topics []string
}

// Summarizer derives a summary and topic tags from conversation text.
// Implementations must be thread-safe for concurrent use.
type Summarizer interface {
	// Summarize analyzes conversation text and returns a short summary plus
	// topic tags. Returns core.ErrProviderUnavailable (wrapped) when the
	// backend cannot be reached.
	Summarize(ctx context.Context, text string) (*Summary, error)
}

// Provider aggregates AI services for convenient initialization and lifecycle
// management. A provider creates and manages Embedder and Summarizer
// instances, ensuring they share configuration and resources appropriately.
type Provider interface {
	// Embedder returns the text embedding service.
	// The returned Embedder is safe for concurrent use.
	Embedder() Embedder

	// Summarizer returns the conversation summarization service.
	// The returned Summarizer is safe for concurrent use.
	Summarizer() Summarizer

	// Close releases resources held by the provider and its services.
	// After Close is called, the provider and its services should not be used.
	Close() error
}
