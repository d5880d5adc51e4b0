package ingestion

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestBuildDocument(t *testing.T) {
	t.Run("all sections", func(t *testing.T) {
		doc := BuildDocument(
			"Python asyncio deep dive",
			"A walkthrough of the asyncio event loop.",
			[]string{"python", "asyncio"},
			[]string{"How does the event loop work?", "It schedules coroutines."},
		)

		assert.Equal(t,
			"Title: Python asyncio deep dive\n\n"+
				"Topics: python, asyncio\n\n"+
				"Summary: A walkthrough of the asyncio event loop.\n\n"+
				"Content: How does the event loop work? It schedules coroutines.",
			doc)
	})

	t.Run("absent sections are omitted", func(t *testing.T) {
		doc := BuildDocument("Just a title", "", nil, []string{"hello"})
		assert.Equal(t, "Title: Just a title\n\nContent: hello", doc)

		doc = BuildDocument("", "", nil, nil)
		assert.Empty(t, doc)
	})

	t.Run("message content is capped", func(t *testing.T) {
		long := strings.Repeat("a", 3000)
		doc := BuildDocument("Long", "", nil, []string{long})

		assert.Contains(t, doc, "...")
		assert.Less(t, len(doc), 2200)
	})

	t.Run("truncation lands on a rune boundary", func(t *testing.T) {
		// 1000 three-byte runes: the 2000-byte cap falls mid-rune.
		long := strings.Repeat("世", 1000)
		doc := BuildDocument("Long", "", nil, []string{long})

		assert.True(t, utf8.ValidString(doc))
		assert.Contains(t, doc, "世...")
		assert.NotContains(t, doc, string(utf8.RuneError))
	})

	t.Run("tiny remainder is dropped instead of truncated", func(t *testing.T) {
		first := strings.Repeat("a", 1950)
		doc := BuildDocument("Long", "", nil, []string{first, strings.Repeat("b", 500)})

		// Only 50 chars of budget remain for the second message, so it is
		// dropped rather than reduced to a useless fragment.
		assert.NotContains(t, doc, "b")
		assert.NotContains(t, doc, "...")
	})

	t.Run("deterministic", func(t *testing.T) {
		messages := []string{"one", "two", "three"}
		a := BuildDocument("T", "S", []string{"x"}, messages)
		b := BuildDocument("T", "S", []string{"x"}, messages)
		assert.Equal(t, a, b)
	})
}

func TestTruncateRuneSafe(t *testing.T) {
	assert.Equal(t, "ab", truncateRuneSafe("ab", 5))
	assert.Equal(t, "a", truncateRuneSafe("aé", 2))
	assert.Equal(t, "aé", truncateRuneSafe("aé", 3))
	assert.Equal(t, "", truncateRuneSafe("世", 2))
}

func TestChunkMessages(t *testing.T) {
	t.Run("short conversation yields no chunks", func(t *testing.T) {
		assert.Nil(t, chunkMessages([]string{"short", "messages"}))
	})

	t.Run("long conversation splits on message boundaries", func(t *testing.T) {
		msg := strings.Repeat("x", 1500)
		chunks := chunkMessages([]string{msg, msg, msg})

		assert.Len(t, chunks, 3)
		for _, chunk := range chunks {
			assert.Equal(t, msg, chunk)
		}
	})

	t.Run("oversized single message stays whole", func(t *testing.T) {
		msg := strings.Repeat("x", 5000)
		chunks := chunkMessages([]string{msg})

		assert.Len(t, chunks, 1)
		assert.Equal(t, msg, chunks[0])
	})

	t.Run("small messages are packed together", func(t *testing.T) {
		msg := strings.Repeat("x", 600)
		chunks := chunkMessages([]string{msg, msg, msg, msg, msg})

		// 3000 chars total, packed three-to-a-chunk.
		assert.Len(t, chunks, 2)
		assert.Equal(t, strings.Join([]string{msg, msg, msg}, " "), chunks[0])
		assert.Equal(t, strings.Join([]string{msg, msg}, " "), chunks[1])
	})
}
