//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"chat-presence/auth"
	"chat-presence/domain"
	chaterrors "chat-presence/errors"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

const (
	messagePrefix      = "msg:"
	messageIDPrefix    = "msgid:"
	messageSequenceKey = "seq:msg"
	sequenceBandwidth  = 100
)

type IMessageRepository interface {
	Append(message domain.Message) (domain.Message, error)
	AppendFromActive(message domain.Message) (domain.Message, error)
	List() ([]domain.Message, error)
	Update(id, actor string, fields domain.MessageFields) (domain.Message, error)
	Delete(id, actor string) error
}

type MessageRepository struct {
	db       *badger.DB
	sequence *badger.Sequence
	appendMu sync.Mutex
	log      *slog.Logger
}

func NewMessageRepository(db *badger.DB, log *slog.Logger) (*MessageRepository, error) {
	sequence, err := db.GetSequence([]byte(messageSequenceKey), sequenceBandwidth)
	if err != nil {
		return nil, fmt.Errorf("message sequence failed: %w", err)
	}
	return &MessageRepository{db: db, sequence: sequence, log: log}, nil
}

// Append persists a message under "msg:{position}" where position comes from
// a badger sequence zero padded to 19 digits, so a prefix scan returns the
// log in insertion order. An index "msgid:{id}" points back to that key.
// Appends are serialized so a listing never observes a later position
// without the earlier ones.
func (m *MessageRepository) Append(message domain.Message) (domain.Message, error) {
	return m.append(message, false)
}

// AppendFromActive appends only while the sender is an active participant.
// The sender's registry key is read in the write transaction, so an eviction
// committed concurrently makes the append replay and fail with ErrSenderNotActive.
func (m *MessageRepository) AppendFromActive(message domain.Message) (domain.Message, error) {
	return m.append(message, true)
}

func (m *MessageRepository) append(message domain.Message, requireActive bool) (domain.Message, error) {
	m.appendMu.Lock()
	defer m.appendMu.Unlock()

	position, err := m.sequence.Next()
	if err != nil {
		return domain.Message{}, fmt.Errorf("message position failed: %w", err)
	}
	message.ID = uuid.NewString()
	message.Position = position

	bytes, err := marshalDocument(fromMessage(message))
	if err != nil {
		return domain.Message{}, err
	}
	key := messageKey(position)
	err = updateWithRetry(m.db, func(txn *badger.Txn) error {
		if requireActive {
			_, err := txn.Get(participantNameKey(message.From))
			if errors.Is(err, badger.ErrKeyNotFound) {
				return chaterrors.ErrSenderNotActive
			}
			if err != nil {
				return err
			}
		}
		if err := txn.Set(key, bytes); err != nil {
			return err
		}
		return txn.Set(messageIDKey(message.ID), key)
	})
	if err != nil {
		return domain.Message{}, err
	}
	return message, nil
}

// List returns the whole log in insertion order.
func (m *MessageRepository) List() ([]domain.Message, error) {
	return ReadMessages(m.db)
}

// ReadMessages scans the log without a repository. It only reads, so it
// works on a database opened read-only.
func ReadMessages(db *badger.DB) ([]domain.Message, error) {
	messages := make([]domain.Message, 0)
	err := db.View(func(txn *badger.Txn) error {
		prefix := []byte(messagePrefix)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				message, err := toMessage(val)
				if err != nil {
					return err
				}
				messages = append(messages, message)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// Update replaces the mutable fields of a message owned by actor.
// A missing message and a message owned by someone else are reported the same way.
func (m *MessageRepository) Update(id, actor string, fields domain.MessageFields) (domain.Message, error) {
	var updated domain.Message
	err := updateWithRetry(m.db, func(txn *badger.Txn) error {
		key, message, err := getOwnedMessage(txn, id, actor)
		if err != nil {
			return err
		}
		updated = message.Apply(fields)
		bytes, err := marshalDocument(fromMessage(updated))
		if err != nil {
			return err
		}
		return txn.Set(key, bytes)
	})
	if err != nil {
		return domain.Message{}, err
	}
	return updated, nil
}

// Delete removes a message owned by actor, with the same checks as Update.
func (m *MessageRepository) Delete(id, actor string) error {
	return updateWithRetry(m.db, func(txn *badger.Txn) error {
		key, _, err := getOwnedMessage(txn, id, actor)
		if err != nil {
			return err
		}
		if err := txn.Delete(key); err != nil {
			return err
		}
		return txn.Delete(messageIDKey(id))
	})
}

// Close hands back the unused part of the sequence lease.
func (m *MessageRepository) Close() error {
	return m.sequence.Release()
}

// getOwnedMessage reads the message inside txn so the ownership check and
// the following write commit together.
func getOwnedMessage(txn *badger.Txn, id, actor string) ([]byte, domain.Message, error) {
	indexItem, err := txn.Get(messageIDKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, domain.Message{}, chaterrors.ErrMessageNotFound
	}
	if err != nil {
		return nil, domain.Message{}, err
	}
	key, err := indexItem.ValueCopy(nil)
	if err != nil {
		return nil, domain.Message{}, err
	}

	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, domain.Message{}, chaterrors.ErrMessageNotFound
	}
	if err != nil {
		return nil, domain.Message{}, err
	}
	var message domain.Message
	err = item.Value(func(val []byte) error {
		message, err = toMessage(val)
		return err
	})
	if err != nil {
		return nil, domain.Message{}, err
	}

	if !auth.CanMutate(message, actor) {
		return nil, domain.Message{}, chaterrors.ErrMessageNotFound
	}
	return key, message, nil
}

func messageKey(position uint64) []byte {
	return []byte(fmt.Sprintf("%s%019d", messagePrefix, position))
}

func messageIDKey(id string) []byte {
	return []byte(fmt.Sprintf("%s%s", messageIDPrefix, id))
}
