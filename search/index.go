//go:generate go run go.uber.org/mock/mockgen -source=index.go -destination=../mocks/mock_message_index.go -package=mocks
package search

import (
	"chat-presence/domain"
	"context"
	"fmt"
	"log/slog"

	"github.com/blugelabs/bluge"
)

const (
	idField   = "_id"
	textField = "text"
	fromField = "from"

	DefaultLimit = 10
)

// IMessageIndex is a full-text index over user-authored messages.
// The message store stays the source of truth: the index only hands back ids.
type IMessageIndex interface {
	Index(message domain.Message) error
	Remove(id string) error
	Search(ctx context.Context, query string, limit int) ([]string, error)
}

type MessageIndex struct {
	writer *bluge.Writer
	log    *slog.Logger
}

func NewMessageIndex(writer *bluge.Writer, log *slog.Logger) *MessageIndex {
	return &MessageIndex{writer: writer, log: log}
}

// Index adds or replaces the document of a message.
func (i *MessageIndex) Index(message domain.Message) error {
	doc := newDocument(message)
	return i.writer.Update(doc.ID(), doc)
}

// Rebuild indexes every user message in one batch. Status notices are skipped.
func (i *MessageIndex) Rebuild(messages []domain.Message) (int, error) {
	batch := bluge.NewBatch()
	count := 0
	for _, message := range messages {
		if message.Type == domain.MessageTypeStatus {
			continue
		}
		doc := newDocument(message)
		batch.Update(doc.ID(), doc)
		count++
	}
	if err := i.writer.Batch(batch); err != nil {
		return 0, fmt.Errorf("index rebuild failed: %w", err)
	}
	i.log.Info("Search index rebuilt", "messages", count)
	return count, nil
}

func newDocument(message domain.Message) *bluge.Document {
	return bluge.NewDocument(message.ID).
		AddField(bluge.NewTextField(textField, message.Text)).
		AddField(bluge.NewKeywordField(fromField, message.From).StoreValue())
}

func (i *MessageIndex) Remove(id string) error {
	return i.writer.Delete(bluge.Identifier(id))
}

// Search returns the ids of the best matching messages, most relevant first.
func (i *MessageIndex) Search(ctx context.Context, query string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	reader, err := i.writer.Reader()
	if err != nil {
		return nil, fmt.Errorf("index reader failed: %w", err)
	}
	defer func() {
		_ = reader.Close()
	}()

	request := bluge.NewTopNSearch(limit, bluge.NewMatchQuery(query).SetField(textField))
	matches, err := reader.Search(ctx, request)
	if err != nil {
		return nil, fmt.Errorf("index search failed: %w", err)
	}

	var ids []string
	match, err := matches.Next()
	for err == nil && match != nil {
		err = match.VisitStoredFields(func(field string, value []byte) bool {
			if field == idField {
				ids = append(ids, string(value))
			}
			return true
		})
		if err != nil {
			break
		}
		match, err = matches.Next()
	}
	if err != nil {
		return nil, fmt.Errorf("index iteration failed: %w", err)
	}
	i.log.Debug("Index searched", "query", query, "hits", len(ids))
	return ids, nil
}
