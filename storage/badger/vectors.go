package badger

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"slices"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/cortex/core"
	"github.com/poiesic/cortex/storage"
)

// VectorStore implements storage.VectorStore for BadgerDB. Vectors live in
// the same database as conversation records so ingestion can write both in
// one transaction.
//
// Search is a linear scan over all entries. Collections here are thousands
// of conversations at most, where a scan with early cosine arithmetic beats
// the bookkeeping cost of an approximate index.
type VectorStore struct {
	backend *Backend
	seq     *badger.Sequence
}

var _ storage.VectorStore = (*VectorStore)(nil)

// NewVectorStore creates a new VectorStore sharing the given backend.
func NewVectorStore(backend *Backend) (storage.VectorStore, error) {
	seq, err := backend.GetSequence(vectorEntrySeq)
	if err != nil {
		return nil, err
	}
	return &VectorStore{
		backend: backend,
		seq:     seq,
	}, nil
}

// Close releases the insertion sequence.
func (s *VectorStore) Close() error {
	return s.seq.Release()
}

// Upsert inserts or replaces a vector entry. The first insert establishes
// the store's dimension; later vectors must match it. Replacing an existing
// id keeps its insertion sequence so repeated ingestion of the same document
// cannot disturb tie-break ordering.
func (s *VectorStore) Upsert(ctx context.Context, entry *core.VectorEntry) error {
	if entry.Id == "" || len(entry.Vector) == 0 {
		return storage.ErrInvalidQuery
	}

	return s.backend.WithTx(func(tx *badger.Txn) error {
		dim, err := readDimension(tx)
		if err != nil {
			return err
		}
		if dim == 0 {
			if err := writeDimension(tx, len(entry.Vector)); err != nil {
				return err
			}
		} else if len(entry.Vector) != dim {
			return fmt.Errorf("upsert %s: got %d dimensions, store has %d: %w",
				entry.Id, len(entry.Vector), dim, core.ErrDimensionMismatch)
		}

		key := makeVectorEntryKey(entry.Id)
		old, err := readVectorEntry(tx, key)
		if err != nil {
			return err
		}

		if old != nil {
			entry.Seq = old.Seq
			// Conversation id changes require index cleanup.
			if old.ConversationId != entry.ConversationId {
				if err := tx.Delete(makeVectorConvKey(old.ConversationId, old.Id)); err != nil {
					return err
				}
			}
		} else {
			next, err := s.seq.Next()
			if err != nil {
				return err
			}
			entry.Seq = next
		}

		if err := tx.Set(key, storage.MarshalVectorEntry(entry)); err != nil {
			return err
		}
		if err := tx.Set(makeVectorConvKey(entry.ConversationId, entry.Id), []byte(entry.Id)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// Delete removes an entry by id. Absent ids are a no-op.
func (s *VectorStore) Delete(ctx context.Context, id string) error {
	return s.backend.WithTx(func(tx *badger.Txn) error {
		key := makeVectorEntryKey(id)
		entry, err := readVectorEntry(tx, key)
		if err != nil {
			return err
		}
		if entry == nil {
			return nil
		}
		if err := tx.Delete(makeVectorConvKey(entry.ConversationId, entry.Id)); err != nil {
			return err
		}
		if err := tx.Delete(key); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// DeleteConversationEntries removes all entries indexed for a conversation.
func (s *VectorStore) DeleteConversationEntries(ctx context.Context, conversationId string) error {
	return s.backend.WithTx(func(tx *badger.Txn) error {
		ids, err := conversationEntryIds(tx, conversationId)
		if err != nil {
			return err
		}
		for _, id := range ids {
			if err := tx.Delete(makeVectorEntryKey(id)); err != nil {
				return err
			}
			if err := tx.Delete(makeVectorConvKey(conversationId, id)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// GetEntry retrieves a single entry by id.
func (s *VectorStore) GetEntry(ctx context.Context, id string) (*core.VectorEntry, error) {
	var result *core.VectorEntry
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readVectorEntry(tx, makeVectorEntryKey(id))
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	return result, err
}

// GetConversationEntries retrieves all entries for a conversation, ordered
// by insertion sequence.
func (s *VectorStore) GetConversationEntries(ctx context.Context, conversationId string) ([]*core.VectorEntry, error) {
	var results []*core.VectorEntry
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		ids, err := conversationEntryIds(tx, conversationId)
		if err != nil {
			return err
		}
		for _, id := range ids {
			entry, err := readVectorEntry(tx, makeVectorEntryKey(id))
			if err != nil {
				return err
			}
			if entry != nil {
				results = append(results, entry)
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	slices.SortFunc(results, func(a, b *core.VectorEntry) int {
		switch {
		case a.Seq < b.Seq:
			return -1
		case a.Seq > b.Seq:
			return 1
		default:
			return 0
		}
	})
	return results, nil
}

// Search scans all entries and returns at most k ordered by descending
// cosine similarity. A non-nil filter is applied before truncation, so a
// filtered search still fills k from matching entries. Score ties are
// broken by insertion sequence.
func (s *VectorStore) Search(ctx context.Context, queryVector []float32, k int, filter storage.Filter) ([]*core.VectorMatch, error) {
	if k <= 0 || len(queryVector) == 0 {
		return nil, storage.ErrInvalidQuery
	}

	var matches []*core.VectorMatch
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		dim, err := readDimension(tx)
		if err != nil {
			return err
		}
		if dim == 0 {
			return nil
		}
		if len(queryVector) != dim {
			return fmt.Errorf("search: got %d dimensions, store has %d: %w",
				len(queryVector), dim, core.ErrDimensionMismatch)
		}

		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(vectorEntryPrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var entry *core.VectorEntry
			err := iter.Item().Value(func(val []byte) error {
				var err error
				entry, err = storage.UnmarshalVectorEntry(val)
				return err
			})
			if err != nil {
				return err
			}
			if entry == nil {
				continue
			}
			if filter != nil && !filter(entry) {
				continue
			}

			matches = append(matches, &core.VectorMatch{
				Entry: entry,
				Score: cosineSimilarity(queryVector, entry.Vector),
			})
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	slices.SortFunc(matches, func(a, b *core.VectorMatch) int {
		if a.Score > b.Score {
			return -1
		}
		if a.Score < b.Score {
			return 1
		}
		switch {
		case a.Entry.Seq < b.Entry.Seq:
			return -1
		case a.Entry.Seq > b.Entry.Seq:
			return 1
		default:
			return 0
		}
	})

	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

// Dimension returns the established vector dimension, or 0 for an empty
// store.
func (s *VectorStore) Dimension(ctx context.Context) (int, error) {
	dim := 0
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		dim, err = readDimension(tx)
		return err
	}, false)
	return dim, err
}

// Count returns the number of stored entries.
func (s *VectorStore) Count(ctx context.Context) (int, error) {
	count := 0
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(vectorEntryPrefix + ":")
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return nil
	}, false)
	return count, err
}

// Helper functions

// readVectorEntry reads an entry from the transaction.
// Returns nil without error when the key doesn't exist.
func readVectorEntry(tx *badger.Txn, key []byte) (*core.VectorEntry, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var entry *core.VectorEntry
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		entry, unmarshalErr = storage.UnmarshalVectorEntry(val)
		return unmarshalErr
	})
	return entry, err
}

// conversationEntryIds scans the conversation index for entry ids.
func conversationEntryIds(tx *badger.Txn, conversationId string) ([]string, error) {
	var ids []string
	prefix := makePartialVectorConvKey(conversationId)
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	iter := tx.NewIterator(opts)
	defer iter.Close()

	for iter.Rewind(); iter.Valid(); iter.Next() {
		var id string
		if err := iter.Item().Value(func(val []byte) error {
			id = string(val)
			return nil
		}); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// readDimension reads the persisted vector dimension, 0 when unset.
func readDimension(tx *badger.Txn) (int, error) {
	item, err := tx.Get([]byte(vectorDimensionKey))
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return 0, nil
		}
		return 0, err
	}
	dim := 0
	err = item.Value(func(val []byte) error {
		if len(val) != 8 {
			return storage.ErrSerializationFailed
		}
		dim = int(binary.BigEndian.Uint64(val))
		return nil
	})
	return dim, err
}

// writeDimension persists the vector dimension.
func writeDimension(tx *badger.Txn, dim int) error {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(dim))
	return tx.Set([]byte(vectorDimensionKey), buf)
}

// cosineSimilarity computes the cosine of the angle between two vectors.
// Returns 0 when either vector has zero magnitude.
func cosineSimilarity(a, b []float32) float32 {
	minLen := len(a)
	if len(b) < minLen {
		minLen = len(b)
	}

	var dot, normA, normB float64
	for i := 0; i < minLen; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
