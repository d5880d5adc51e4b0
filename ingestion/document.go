package ingestion

import (
	"strings"
	"unicode/utf8"
)

const (
	// maxMessageChars caps how much raw message content goes into the
	// embedding document; titles, topics, and summaries always fit.
	maxMessageChars = 2000

	// chunkChars is the target size of the extra per-chunk index entries
	// created for long conversations.
	chunkChars = 2000
)

// BuildDocument assembles the text representation of a conversation that
// gets embedded and indexed. Sections are joined with blank lines; absent
// sections are omitted entirely.
func BuildDocument(title, summary string, topics []string, messages []string) string {
	var parts []string

	if title != "" {
		parts = append(parts, "Title: "+title)
	}
	if len(topics) > 0 {
		parts = append(parts, "Topics: "+strings.Join(topics, ", "))
	}
	if summary != "" {
		parts = append(parts, "Summary: "+summary)
	}

	if len(messages) > 0 {
		var content []string
		length := 0
		for _, msg := range messages {
			if length+len(msg) > maxMessageChars {
				remaining := maxMessageChars - length
				if remaining > 100 {
					content = append(content, truncateRuneSafe(msg, remaining)+"...")
				}
				break
			}
			content = append(content, msg)
			length += len(msg)
		}
		if len(content) > 0 {
			parts = append(parts, "Content: "+strings.Join(content, " "))
		}
	}

	return strings.Join(parts, "\n\n")
}

// truncateRuneSafe cuts s to at most n bytes without splitting a UTF-8
// sequence, backing up to the previous rune boundary when the cut lands
// mid-rune.
func truncateRuneSafe(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := s[:n]
	for len(cut) > 0 {
		r, size := utf8.DecodeLastRuneInString(cut)
		if r == utf8.RuneError && size == 1 {
			cut = cut[:len(cut)-1]
			continue
		}
		break
	}
	return cut
}

// chunkMessages splits the full message text into roughly chunkChars-sized
// pieces on message boundaries. A conversation that fits in a single chunk
// yields none; the primary document entry already covers it.
func chunkMessages(messages []string) []string {
	total := 0
	for _, msg := range messages {
		total += len(msg)
	}
	if total <= chunkChars {
		return nil
	}

	var chunks []string
	var current []string
	length := 0
	for _, msg := range messages {
		if length > 0 && length+len(msg) > chunkChars {
			chunks = append(chunks, strings.Join(current, " "))
			current = current[:0]
			length = 0
		}
		current = append(current, msg)
		length += len(msg)
	}
	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, " "))
	}
	return chunks
}
