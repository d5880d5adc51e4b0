package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/poiesic/cortex/ai"
	"github.com/poiesic/cortex/core"
	"github.com/poiesic/cortex/storage"
)

const (
	defaultScoreThreshold  = 0.3
	defaultOverFetchFactor = 3
	snippetLength          = 200
)

// Filters restricts search results by conversation attributes. Filters are
// applied after chunk deduplication and before truncation to the limit.
type Filters struct {
	// ClusterId keeps only conversations assigned to this cluster.
	ClusterId *int
	// Topics keeps conversations sharing at least one of these topics.
	Topics []string
}

// Searcher answers queries with ranked, deduplicated conversation results.
type Searcher struct {
	conversations   storage.ConversationRepository
	vectors         storage.VectorStore
	embedder        ai.Embedder
	scoreThreshold  float32
	overFetchFactor int
	logger          *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithScoreThreshold sets the hard similarity cutoff for raw matches.
// Default is 0.3.
func WithScoreThreshold(threshold float32) Option {
	return func(s *Searcher) error {
		s.scoreThreshold = threshold
		return nil
	}
}

// WithOverFetchFactor sets how many raw matches to request per requested
// result, so deduplication and filtering losses don't starve the result
// list. Default is 3.
func WithOverFetchFactor(factor int) Option {
	return func(s *Searcher) error {
		if factor < 1 {
			return errors.New("over-fetch factor must be at least 1")
		}
		s.overFetchFactor = factor
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// NewSearcher creates a new searcher.
func NewSearcher(
	conversations storage.ConversationRepository,
	vectors storage.VectorStore,
	embedder ai.Embedder,
	opts ...Option,
) (*Searcher, error) {
	if conversations == nil {
		return nil, ErrConversationRepositoryRequired
	}
	if vectors == nil {
		return nil, ErrVectorStoreRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	s := &Searcher{
		conversations:   conversations,
		vectors:         vectors,
		embedder:        embedder,
		scoreThreshold:  defaultScoreThreshold,
		overFetchFactor: defaultOverFetchFactor,
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Search returns up to limit conversations ranked by relevance to the
// query. The result list holds at most one entry per conversation, is
// stable for identical queries against an unchanged index, and is empty
// (not an error) when nothing clears the score threshold.
func (s *Searcher) Search(ctx context.Context, query string, limit int, filters *Filters) ([]*core.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("search: %w", core.ErrEmptyInput)
	}
	if limit < 1 {
		return nil, ErrInvalidLimit
	}

	embedding, err := s.embedder.EmbedText(ctx, query)
	if err != nil {
		s.logger.Error("error generating embedding for query", "query", query, "err", err)
		return nil, err
	}

	matches, err := s.vectors.Search(ctx, embedding, limit*s.overFetchFactor, nil)
	if err != nil {
		s.logger.Error("error querying vector store", "err", err)
		return nil, err
	}

	candidates := s.deduplicate(matches)
	if len(candidates) == 0 {
		return []*core.SearchResult{}, nil
	}

	ids := make([]string, 0, len(candidates))
	for id := range candidates {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	conversations, err := s.conversations.GetConversations(ctx, ids...)
	if err != nil {
		s.logger.Error("error retrieving conversations", "count", len(ids), "err", err)
		return nil, err
	}

	results := make([]*core.SearchResult, 0, len(conversations))
	for _, conv := range conversations {
		if !matchesFilters(conv, filters) {
			continue
		}
		hit := candidates[conv.Id]
		results = append(results, &core.SearchResult{
			Conversation: conv,
			Score:        hit.score,
			Snippet:      makeSnippet(hit.document),
		})
	}

	sortResults(results)
	if len(results) > limit {
		results = results[:limit]
	}

	s.logger.Debug("search complete",
		"query", query,
		"raw_matches", len(matches),
		"results", len(results))
	return results, nil
}

// candidate is a conversation-level aggregate of chunk matches.
type candidate struct {
	score    float32
	document string // text of the best-scoring chunk
}

// deduplicate collapses chunk-level matches to one candidate per
// conversation, keeping the maximum chunk score. Matches below the score
// threshold are discarded first.
func (s *Searcher) deduplicate(matches []*core.VectorMatch) map[string]candidate {
	candidates := make(map[string]candidate)
	for _, match := range matches {
		if match.Score < s.scoreThreshold {
			continue
		}
		existing, ok := candidates[match.Entry.ConversationId]
		if !ok || match.Score > existing.score {
			candidates[match.Entry.ConversationId] = candidate{
				score:    match.Score,
				document: match.Entry.Document,
			}
		}
	}
	return candidates
}

// matchesFilters reports whether a conversation passes the cluster and
// topic filters. A nil filter set passes everything.
func matchesFilters(conv *core.Conversation, filters *Filters) bool {
	if filters == nil {
		return true
	}
	if filters.ClusterId != nil && conv.ClusterId != *filters.ClusterId {
		return false
	}
	if len(filters.Topics) > 0 {
		have := make(map[string]bool, len(conv.Topics))
		for _, topic := range conv.Topics {
			have[strings.ToLower(topic)] = true
		}
		found := false
		for _, topic := range filters.Topics {
			if have[strings.ToLower(topic)] {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// sortResults orders by score descending; ties go to the most recently
// created conversation, then the lexicographically smallest id, so repeated
// queries against an unchanged index rank identically.
func sortResults(results []*core.SearchResult) {
	sort.Slice(results, func(a, b int) bool {
		ra, rb := results[a], results[b]
		if ra.Score != rb.Score {
			return ra.Score > rb.Score
		}
		if !ra.Conversation.CreatedAt.Equal(rb.Conversation.CreatedAt) {
			return ra.Conversation.CreatedAt.After(rb.Conversation.CreatedAt)
		}
		return ra.Conversation.Id < rb.Conversation.Id
	})
}

// makeSnippet trims the best-matching text to a short preview.
func makeSnippet(document string) string {
	document = strings.TrimSpace(document)
	runes := []rune(document)
	if len(runes) <= snippetLength {
		return document
	}
	return string(runes[:snippetLength]) + "..."
}
