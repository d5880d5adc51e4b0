package badger

import (
	"fmt"
)

// Key prefixes for different data types
const (
	conversationPrefix   = "convrec"
	vectorEntryPrefix    = "vecrec"
	vectorConvPrefix     = "vecconv"
	vectorEntrySeq       = "vecseq"
	vectorDimensionKey   = "vecdim"
	embeddingCachePrefix = "embcache"
)

// Keys embed user-supplied ids, which may contain the ':' separator.
// Composite keys therefore use a NUL byte between id components; NUL never
// appears in valid UTF-8 identifiers.
const keySep = "\x00"

// makeConversationKey generates a key for a conversation record by id.
func makeConversationKey(id string) []byte {
	return []byte(fmt.Sprintf("%s:%s", conversationPrefix, id))
}

// makeVectorEntryKey generates a key for a vector entry by id.
func makeVectorEntryKey(id string) []byte {
	return []byte(fmt.Sprintf("%s:%s", vectorEntryPrefix, id))
}

// makeVectorConvKey generates a composite key for the conversation index.
// Format: prefix:conversationId NUL entryId
func makeVectorConvKey(conversationId, entryId string) []byte {
	return []byte(vectorConvPrefix + ":" + conversationId + keySep + entryId)
}

// makePartialVectorConvKey generates a partial key for scanning all entries
// of a conversation.
func makePartialVectorConvKey(conversationId string) []byte {
	return []byte(vectorConvPrefix + ":" + conversationId + keySep)
}

// makeEmbeddingCacheKey generates a key for a cached embedding by
// conversation id.
func makeEmbeddingCacheKey(conversationId string) []byte {
	return []byte(fmt.Sprintf("%s:%s", embeddingCachePrefix, conversationId))
}
