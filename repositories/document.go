package repositories

import (
	"chat-presence/domain"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/dgraph-io/badger/v4"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Records are stored as protobuf Struct documents, mirroring the
// "participants" and "messages" collections of the room.

const (
	maxConflictRetries = 5
	maxConflictBackoff = 5 * time.Millisecond
)

// updateWithRetry runs fn in a read-write transaction. Badger aborts the
// later of two transactions touching the same keys with ErrConflict; the
// transaction is then replayed against the new state.
func updateWithRetry(db *badger.DB, fn func(txn *badger.Txn) error) error {
	var err error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		err = db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return err
}

// updateUntilCommitted replays fn until it commits or fails for another
// reason than a conflict. Every conflict means a competing transaction
// committed, so writers of the same key keep making progress. A short jittered
// pause spreads the replays out.
func updateUntilCommitted(db *badger.DB, fn func(txn *badger.Txn) error) error {
	for attempt := 1; ; attempt++ {
		err := db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		ceiling := min(time.Duration(attempt)*100*time.Microsecond, maxConflictBackoff)
		time.Sleep(rand.N(ceiling) + 1)
	}
}

func marshalDocument(fields map[string]any) ([]byte, error) {
	doc, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("document build failed: %w", err)
	}
	return proto.Marshal(doc)
}

func unmarshalDocument(data []byte) (map[string]*structpb.Value, error) {
	var doc structpb.Struct
	if err := proto.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("document decode failed: %w", err)
	}
	return doc.GetFields(), nil
}

func fromParticipant(p domain.Participant) map[string]any {
	return map[string]any{
		"id":       p.ID,
		"name":     p.Name,
		"lastSeen": p.LastSeen.Format(time.RFC3339Nano),
	}
}

func toParticipant(data []byte) (domain.Participant, error) {
	fields, err := unmarshalDocument(data)
	if err != nil {
		return domain.Participant{}, err
	}
	lastSeen, err := time.Parse(time.RFC3339Nano, fields["lastSeen"].GetStringValue())
	if err != nil {
		return domain.Participant{}, err
	}
	return domain.Participant{
		ID:       fields["id"].GetStringValue(),
		Name:     fields["name"].GetStringValue(),
		LastSeen: lastSeen.UTC(),
	}, nil
}

func fromMessage(m domain.Message) map[string]any {
	return map[string]any{
		"id":       m.ID,
		"from":     m.From,
		"to":       m.To,
		"text":     m.Text,
		"type":     string(m.Type),
		"time":     m.Time,
		"at":       m.At.Format(time.RFC3339Nano),
		"position": strconv.FormatUint(m.Position, 10),
	}
}

func toMessage(data []byte) (domain.Message, error) {
	fields, err := unmarshalDocument(data)
	if err != nil {
		return domain.Message{}, err
	}
	at, err := time.Parse(time.RFC3339Nano, fields["at"].GetStringValue())
	if err != nil {
		return domain.Message{}, err
	}
	position, err := strconv.ParseUint(fields["position"].GetStringValue(), 10, 64)
	if err != nil {
		return domain.Message{}, err
	}
	return domain.Message{
		ID:       fields["id"].GetStringValue(),
		From:     fields["from"].GetStringValue(),
		To:       fields["to"].GetStringValue(),
		Text:     fields["text"].GetStringValue(),
		Type:     domain.MessageType(fields["type"].GetStringValue()),
		Time:     fields["time"].GetStringValue(),
		At:       at.UTC(),
		Position: position,
	}, nil
}
