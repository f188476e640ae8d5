//go:generate go run go.uber.org/mock/mockgen -source=participant.go -destination=../mocks/mock_participant_repository.go -package=mocks
package repositories

import (
	"chat-presence/domain"
	chaterrors "chat-presence/errors"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

const (
	participantNamePrefix = "participant:name:"
	participantIDPrefix   = "participant:id:"
)

type IParticipantRepository interface {
	Join(name string) (domain.Participant, error)
	Heartbeat(name string) error
	Get(name string) (domain.Participant, error)
	List() ([]domain.Participant, error)
	Remove(id string) error
	RemoveIfStale(id string, staleBefore time.Time) (bool, error)
}

// ParticipantRepository keeps active participants in BadgerDB.
// Each participant is stored under "participant:name:{name}" so the name key
// itself carries the uniqueness constraint, plus an id index
// "participant:id:{id}" -> name used by removals.
type ParticipantRepository struct {
	db    *badger.DB
	clock domain.Clock
	log   *slog.Logger
}

func NewParticipantRepository(db *badger.DB, clock domain.Clock, log *slog.Logger) *ParticipantRepository {
	return &ParticipantRepository{db: db, clock: clock, log: log}
}

// Join inserts the participant only if no active participant holds the name.
// The lookup and the insert share one transaction: when two joins race on the
// same name, badger rejects the second commit and the retry reports the name as taken.
func (r *ParticipantRepository) Join(name string) (domain.Participant, error) {
	var participant domain.Participant
	err := updateWithRetry(r.db, func(txn *badger.Txn) error {
		_, err := txn.Get(participantNameKey(name))
		switch {
		case err == nil:
			return chaterrors.ErrNameTaken
		case !errors.Is(err, badger.ErrKeyNotFound):
			return err
		}

		participant = domain.Participant{
			ID:       uuid.NewString(),
			Name:     name,
			LastSeen: r.clock.Now(),
		}
		if err := putParticipant(txn, participant); err != nil {
			return err
		}
		return txn.Set(participantIDKey(participant.ID), []byte(name))
	})
	if err != nil {
		return domain.Participant{}, err
	}
	return participant, nil
}

// Heartbeat refreshes LastSeen. A participant removed concurrently by the
// sweeper makes one of the two transactions conflict, so the heartbeat either
// lands before the removal or reports the participant as gone.
// Concurrent heartbeats of one participant only conflict with each other,
// so the transaction is replayed until it commits.
func (r *ParticipantRepository) Heartbeat(name string) error {
	return updateUntilCommitted(r.db, func(txn *badger.Txn) error {
		participant, err := getParticipant(txn, name)
		if err != nil {
			return err
		}
		participant.LastSeen = r.clock.Now()
		return putParticipant(txn, participant)
	})
}

func (r *ParticipantRepository) Get(name string) (domain.Participant, error) {
	var participant domain.Participant
	err := r.db.View(func(txn *badger.Txn) error {
		var err error
		participant, err = getParticipant(txn, name)
		return err
	})
	return participant, err
}

// List returns a consistent snapshot of the active participants, in name order.
func (r *ParticipantRepository) List() ([]domain.Participant, error) {
	participants := make([]domain.Participant, 0)
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := []byte(participantNamePrefix)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				participant, err := toParticipant(val)
				if err != nil {
					return err
				}
				participants = append(participants, participant)
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
	return participants, nil
}

// Remove deletes the participant with the given id. Removing an absent id is a no-op.
func (r *ParticipantRepository) Remove(id string) error {
	return updateWithRetry(r.db, func(txn *badger.Txn) error {
		name, err := participantNameByID(txn, id)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		participant, err := getParticipant(txn, name)
		if err != nil && !errors.Is(err, chaterrors.ErrParticipantNotFound) {
			return err
		}
		if err != nil || participant.ID != id {
			// Dangling index entry: the name is free or now belongs to someone else.
			return txn.Delete(participantIDKey(id))
		}
		return deleteParticipant(txn, id, name)
	})
}

// RemoveIfStale removes the participant only if its LastSeen is not after staleBefore.
// It returns false when the participant is already gone or a heartbeat refreshed it.
func (r *ParticipantRepository) RemoveIfStale(id string, staleBefore time.Time) (bool, error) {
	var removed bool
	err := updateUntilCommitted(r.db, func(txn *badger.Txn) error {
		removed = false
		name, err := participantNameByID(txn, id)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		participant, err := getParticipant(txn, name)
		if err != nil && !errors.Is(err, chaterrors.ErrParticipantNotFound) {
			return err
		}
		if err != nil || participant.ID != id {
			return txn.Delete(participantIDKey(id))
		}
		if participant.LastSeen.After(staleBefore) {
			return nil
		}

		if err := deleteParticipant(txn, id, name); err != nil {
			return err
		}
		removed = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if removed {
		r.log.Debug("Participant removed", "id", id)
	}
	return removed, nil
}

func getParticipant(txn *badger.Txn, name string) (domain.Participant, error) {
	item, err := txn.Get(participantNameKey(name))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.Participant{}, chaterrors.ErrParticipantNotFound
	}
	if err != nil {
		return domain.Participant{}, err
	}

	var participant domain.Participant
	err = item.Value(func(val []byte) error {
		participant, err = toParticipant(val)
		return err
	})
	return participant, err
}

func putParticipant(txn *badger.Txn, participant domain.Participant) error {
	bytes, err := marshalDocument(fromParticipant(participant))
	if err != nil {
		return err
	}
	return txn.Set(participantNameKey(participant.Name), bytes)
}

func participantNameByID(txn *badger.Txn, id string) (string, error) {
	item, err := txn.Get(participantIDKey(id))
	if err != nil {
		return "", err
	}
	val, err := item.ValueCopy(nil)
	if err != nil {
		return "", err
	}
	return string(val), nil
}

func deleteParticipant(txn *badger.Txn, id, name string) error {
	if err := txn.Delete(participantNameKey(name)); err != nil {
		return err
	}
	return txn.Delete(participantIDKey(id))
}

func participantNameKey(name string) []byte {
	return []byte(fmt.Sprintf("%s%s", participantNamePrefix, name))
}

func participantIDKey(id string) []byte {
	return []byte(fmt.Sprintf("%s%s", participantIDPrefix, id))
}
