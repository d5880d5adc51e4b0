package openai

import "strings"

// maxPromptChars bounds how much conversation text is sent to the summarizer.
const maxPromptChars = 8000

const summarizePrompt = `You are a helpful assistant that analyzes AI chat conversations.
Your task is to:
1. Generate a concise 2-3 sentence summary of the conversation
2. Extract 3-5 main topics or themes discussed

Return your response as JSON with this exact structure:
{
  "summary": "2-3 sentence summary here",
  "topics": ["topic1", "topic2", "topic3"]
}

Keep topics short (1-3 words each) and specific.
Return ONLY valid JSON, no other text.`

// truncateForPrompt cuts text to at most limit characters on a rune boundary.
func truncateForPrompt(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return strings.TrimSpace(string(runes[:limit])) + "..."
}
