package mock

import (
	"context"
	"strings"
	"sync/atomic"

	"github.com/poiesic/cortex/ai"
)

// MockSummarizer is a test double for ai.Summarizer.
// It allows custom behavior injection via function fields.
type MockSummarizer struct {
	// SummarizeFunc is called by Summarize if set.
	// If nil, uses default word-based behavior.
	SummarizeFunc func(ctx context.Context, text string) (*ai.Summary, error)

	callCount atomic.Int64 // batch ingestion calls mocks from pool goroutines
}

// NewMockSummarizer creates a mock summarizer with default behavior.
// Note: Returns concrete type to allow test assertions.
func NewMockSummarizer() *MockSummarizer {
	return &MockSummarizer{}
}

// Summarize produces a trivial summary and topic tags from the text.
// Default behavior: the summary is the first sentence-ish prefix and the
// topics are the first few distinct long words.
func (m *MockSummarizer) Summarize(ctx context.Context, text string) (*ai.Summary, error) {
	m.callCount.Add(1)

	if m.SummarizeFunc != nil {
		return m.SummarizeFunc(ctx, text)
	}

	summary := text
	if len(summary) > 120 {
		summary = summary[:120]
	}

	seen := make(map[string]bool)
	topics := make([]string, 0, 3)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,!?;:\"'()[]{}")
		if len(word) < 5 || seen[word] {
			continue
		}
		seen[word] = true
		topics = append(topics, word)
		if len(topics) == 3 {
			break
		}
	}

	return &ai.Summary{
		Summary: strings.TrimSpace(summary),
		Topics:  topics,
	}, nil
}

// CallCount returns the number of times Summarize was called.
func (m *MockSummarizer) CallCount() int {
	return int(m.callCount.Load())
}

// Reset clears the call count and custom functions.
func (m *MockSummarizer) Reset() {
	m.callCount.Store(0)
	m.SummarizeFunc = nil
}
