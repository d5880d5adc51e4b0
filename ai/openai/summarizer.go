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


package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/poiesic/cortex/ai"
	"github.com/poiesic/cortex/core"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// Summarizer implements ai.Summarizer using OpenAI-compatible chat APIs.
type Summarizer struct {
	client llms.Model
	logger *slog.Logger
}

// summaryResponse matches the JSON structure expected from the LLM.
type summaryResponse struct {
	Summary string   `json:"summary"`
	Topics  []string `json:"topics"`
}

// newSummarizer is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newSummarizer(config *ai.Config) (*Summarizer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	// Use "none" as token for local OpenAI-compatible services that don't require authentication
	client, err := openai.New(
		openai.WithBaseURL(config.SummarizerHost),
		openai.WithToken("none"),
		openai.WithModel(config.SummarizerModel),
	)
	if err != nil {
		return nil, err
	}

	return &Summarizer{
		client: client,
		logger: slog.Default().With("component", "openai-summarizer"),
	}, nil
}

// NewSummarizer creates a new summarizer using the provided configuration.
//
// Returns ai.Summarizer interface to enforce abstraction.
func NewSummarizer(config *ai.Config) (ai.Summarizer, error) {
	return newSummarizer(config)
}

// Summarize generates a short summary and topic tags for conversation text.
func (s *Summarizer) Summarize(ctx context.Context, text string) (*ai.Summary, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("summarize: %w", core.ErrEmptyInput)
	}

	content := []llms.MessageContent{
		{
			Role: llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{
				llms.TextPart(summarizePrompt),
			},
		},
		{
			Role: llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{
				llms.TextPart(truncateForPrompt(text, maxPromptChars)),
			},
		},
	}

	// Try up to 3 times in case of malformed JSON
	var result summaryResponse
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		response, err := s.client.GenerateContent(ctx, content, llms.WithTemperature(0.3), llms.WithJSONMode())
		if err != nil {
			s.logger.Error("failed to generate summary", "attempt", attempt+1, "err", err)
			return nil, fmt.Errorf("%w: %w", core.ErrProviderUnavailable, err)
		}

		if len(response.Choices) < 1 {
			s.logger.Debug("no choices returned from model")
			return nil, fmt.Errorf("%w: summarizer returned no choices", core.ErrProviderUnavailable)
		}

		// Strip markdown code fences if present
		responseText := strings.TrimSpace(response.Choices[0].Content)
		responseText = strings.TrimPrefix(responseText, "```json")
		responseText = strings.TrimPrefix(responseText, "```")
		responseText = strings.TrimSuffix(responseText, "```")
		responseText = strings.TrimSpace(responseText)

		// Try to repair common JSON issues
		responseText = repairJSON(responseText)

		if err := json.Unmarshal([]byte(responseText), &result); err != nil {
			lastErr = err
			s.logger.Warn("error parsing summarizer response",
				"attempt", attempt+1,
				"response", responseText,
				"err", err)
			continue
		}

		lastErr = nil
		break
	}

	if lastErr != nil {
		return nil, fmt.Errorf("summarizer returned malformed JSON: %w", lastErr)
	}

	return &ai.Summary{
		Summary: strings.TrimSpace(result.Summary),
		Topics:  cleanTopics(result.Topics),
	}, nil
}

// cleanTopics lowercases, trims, and deduplicates topic tags while preserving
// their order.
func cleanTopics(topics []string) []string {
	seen := make(map[string]bool, len(topics))
	cleaned := make([]string, 0, len(topics))
	for _, topic := range topics {
		topic = strings.ToLower(strings.TrimSpace(topic))
		if topic == "" || seen[topic] {
			continue
		}
		seen[topic] = true
		cleaned = append(cleaned, topic)
	}
	return cleaned
}
