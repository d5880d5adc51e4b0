package badger

import (
	"context"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/cortex/core"
	"github.com/poiesic/cortex/storage"
)

// ConversationRepository implements storage.ConversationRepository for BadgerDB.
type ConversationRepository struct {
	backend *Backend
}

var _ storage.ConversationRepository = (*ConversationRepository)(nil)

// NewConversationRepository creates a new ConversationRepository.
func NewConversationRepository(backend *Backend) storage.ConversationRepository {
	return &ConversationRepository{backend: backend}
}

// Close implements storage.Repository. The repository holds no resources of
// its own; the shared backend is closed separately.
func (r *ConversationRepository) Close() error {
	return nil
}

// WithTransaction delegates to the backend.
func (r *ConversationRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// AddConversation stores a new conversation record.
func (r *ConversationRepository) AddConversation(ctx context.Context, conversation *core.Conversation) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeConversationKey(conversation.Id)

		existing, err := readConversation(tx, key)
		if err != nil {
			return err
		}
		if existing != nil {
			return storage.ErrDuplicateKey
		}

		now := time.Now().UTC()
		if conversation.CreatedAt.IsZero() {
			conversation.CreatedAt = now
		}
		conversation.UpdatedAt = now

		if err := tx.Set(key, storage.MarshalConversation(conversation)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// UpdateConversations updates existing conversation records. All records are
// written in a single transaction; an error on any record aborts the whole
// batch.
func (r *ConversationRepository) UpdateConversations(ctx context.Context, conversations ...*core.Conversation) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		now := time.Now().UTC()
		for _, conversation := range conversations {
			key := makeConversationKey(conversation.Id)

			old, err := readConversation(tx, key)
			if err != nil {
				return err
			}
			if old == nil {
				return storage.ErrNotFound
			}

			conversation.UpdatedAt = now
			if err := tx.Set(key, storage.MarshalConversation(conversation)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// DeleteConversation removes a conversation record by id.
func (r *ConversationRepository) DeleteConversation(ctx context.Context, id string) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeConversationKey(id)

		record, err := readConversation(tx, key)
		if err != nil {
			return err
		}
		if record == nil {
			return storage.ErrNotFound
		}

		if err := tx.Delete(key); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// GetConversation retrieves a single conversation by id.
func (r *ConversationRepository) GetConversation(ctx context.Context, id string) (*core.Conversation, error) {
	var result *core.Conversation
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readConversation(tx, makeConversationKey(id))
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

// GetConversations retrieves multiple conversations by their ids.
// Missing records are skipped.
func (r *ConversationRepository) GetConversations(ctx context.Context, ids ...string) ([]*core.Conversation, error) {
	var result []*core.Conversation
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			record, err := readConversation(tx, makeConversationKey(id))
			if err != nil {
				return err
			}
			if record != nil {
				result = append(result, record)
			}
		}
		return nil
	}, false)
	return result, err
}

// GetAllConversations retrieves every conversation record. Records come back
// ordered by id, which is the key order of the underlying store.
func (r *ConversationRepository) GetAllConversations(ctx context.Context) ([]*core.Conversation, error) {
	var results []*core.Conversation
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(conversationPrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var record *core.Conversation
			err := iter.Item().Value(func(val []byte) error {
				var err error
				record, err = storage.UnmarshalConversation(val)
				return err
			})
			if err != nil {
				return err
			}
			if record != nil {
				results = append(results, record)
			}
		}
		return nil
	}, false)
	return results, err
}

// CountConversations returns the number of stored conversations.
func (r *ConversationRepository) CountConversations(ctx context.Context) (int, error) {
	count := 0
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(conversationPrefix + ":")
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

// readConversation reads a conversation record from the transaction.
// Returns nil without error when the key doesn't exist.
func readConversation(tx *badger.Txn, key []byte) (*core.Conversation, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var record *core.Conversation
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		record, unmarshalErr = storage.UnmarshalConversation(val)
		return unmarshalErr
	})
	return record, err
}
