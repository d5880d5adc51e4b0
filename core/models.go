package core

import (
	"encoding/binary"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ContentHash is a 64-bit digest of embedded text. It is stored next to a
// cached embedding so the cache can detect that a conversation's content
// changed since the embedding was generated.
type ContentHash uint64

// HashContent computes a deterministic ContentHash from text using BLAKE2b.
// Identical content always produces an identical hash.
func HashContent(text string) ContentHash {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ContentHash(binary.LittleEndian.Uint64(sum))
}

// Position is a 3D coordinate produced by a reprocessing pass.
// Points are rendered as arrows from the origin to the position, so Magnitude
// is the coordinate's distance from (0,0,0).
type Position struct {
	X         float64
	Y         float64
	Z         float64
	Magnitude float64
}

// Conversation is a unit of retrievable content. The embedding vector itself
// lives in the vector store; the conversation record holds only derived and
// descriptive attributes.
//
// Positioned and ClusterId are eventually consistent with the embedding: they
// lag until the next reprocessing pass. Positioned=false with a zero Position
// means "not yet positioned", which is distinct from being positioned at the
// origin.
type Conversation struct {
	Id           string
	Title        string
	Summary      string
	Topics       []string
	ClusterId    int // ClusterUnassigned until a reprocessing pass runs
	ClusterName  string
	MessageCount int
	Positioned   bool
	Position     Position
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ClusterUnassigned is the ClusterId of a conversation no reprocessing pass
// has touched yet.
const ClusterUnassigned = -1

// HasCluster reports whether a reprocessing pass has assigned this
// conversation to a cluster.
func (c *Conversation) HasCluster() bool {
	return c.ClusterId != ClusterUnassigned
}

// VectorEntry is an index record owned by the vector store: a document id, an
// embedding vector, and the attribute bag search needs to map matches back to
// conversations. A conversation may be indexed as several entries (one per
// chunk); ConversationId is the grouping key for result deduplication.
type VectorEntry struct {
	Id             string
	ConversationId string
	Title          string
	Document       string // text indexed by this entry, used for snippets
	Vector         []float32
	Seq            uint64 // insertion sequence, tie-break for equal scores
}

// VectorMatch is a single similarity hit from the vector store.
type VectorMatch struct {
	Entry *VectorEntry
	Score float32 // cosine similarity in [-1, 1]
}

// SearchResult is a ranked, per-conversation search hit. It is constructed
// per query and never persisted.
type SearchResult struct {
	Conversation *Conversation
	Score        float32
	Snippet      string // drawn from the best-matching indexed chunk
}

// ClusterStat describes one cluster of the currently published layout.
type ClusterStat struct {
	ClusterId  int
	Name       string
	Count      int
	Percentage float64 // of the corpus, in percent
}

// VisualizationNode is a read-only projection of a conversation for the 3D
// front-end. Position fields are meaningful only when Positioned is true.
type VisualizationNode struct {
	Id           string
	Title        string
	Summary      string
	Topics       []string
	ClusterId    int
	ClusterName  string
	MessageCount int
	Positioned   bool
	Position     Position
	CreatedAt    time.Time
}

// VisualizationData is a snapshot of the currently published layout.
type VisualizationData struct {
	Nodes    []VisualizationNode
	Clusters []ClusterStat
}
