//go:generate go run go.uber.org/mock/mockgen -source=chat_service.go -destination=../mocks/mock_chat_service.go -package=mocks
package services

import (
	"chat-presence/auth"
	"chat-presence/domain"
	chaterrors "chat-presence/errors"
	"chat-presence/repositories"
	"chat-presence/search"
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/abadojack/whatlanggo"
	"github.com/samber/lo"
)

type IChatService interface {
	ListParticipants(ctx context.Context) ([]domain.Participant, error)
	Join(ctx context.Context, name string) (domain.Participant, error)
	Heartbeat(ctx context.Context, caller string) error
	ListMessages(ctx context.Context) ([]domain.Message, error)
	PostMessage(ctx context.Context, caller string, fields domain.MessageFields) (domain.Message, error)
	EditMessage(ctx context.Context, id, caller string, fields domain.MessageFields) (domain.Message, error)
	DeleteMessage(ctx context.Context, id, caller string) error
	SearchMessages(ctx context.Context, caller, query string, limit int) ([]domain.Message, error)
}

// Censor masks forbidden words and reports which ones were found.
type Censor interface {
	Censor(text string) (string, []string)
}

type ChatService struct {
	log          *slog.Logger
	participants repositories.IParticipantRepository
	messages     repositories.IMessageRepository
	index        search.IMessageIndex
	censor       Censor
	clock        domain.Clock
}

func NewChatService(
	log *slog.Logger,
	participants repositories.IParticipantRepository,
	messages repositories.IMessageRepository,
	index search.IMessageIndex,
	censor Censor,
	clock domain.Clock,
) *ChatService {
	return &ChatService{
		log:          log,
		participants: participants,
		messages:     messages,
		index:        index,
		censor:       censor,
		clock:        clock,
	}
}

func (s *ChatService) ListParticipants(ctx context.Context) ([]domain.Participant, error) {
	participants, err := s.participants.List()
	if err != nil {
		return nil, s.storeError(ctx, "list participants", err)
	}
	return participants, nil
}

// Join registers the participant then announces it. The announcement is
// best effort: once the participant is registered the join has succeeded.
func (s *ChatService) Join(ctx context.Context, name string) (domain.Participant, error) {
	name, err := auth.ValidateJoin(name)
	if err != nil {
		return domain.Participant{}, err
	}

	participant, err := s.participants.Join(name)
	if err != nil {
		return domain.Participant{}, s.storeError(ctx, "join", err)
	}
	s.log.InfoContext(ctx, "Participant joined", "name", name)

	notice := domain.NewStatusMessage(name, domain.JoinedText, s.clock.Now())
	if _, err := s.messages.Append(notice); err != nil {
		s.log.WarnContext(ctx, "Participant joined without arrival notice", "name", name, "error", err)
	}
	return participant, nil
}

func (s *ChatService) Heartbeat(ctx context.Context, caller string) error {
	if err := s.participants.Heartbeat(caller); err != nil {
		return s.storeError(ctx, "heartbeat", err)
	}
	return nil
}

func (s *ChatService) ListMessages(ctx context.Context) ([]domain.Message, error) {
	messages, err := s.messages.List()
	if err != nil {
		return nil, s.storeError(ctx, "list messages", err)
	}
	return messages, nil
}

// PostMessage appends a message from caller, who must be an active participant.
// The sender check and the append commit together.
func (s *ChatService) PostMessage(ctx context.Context, caller string, fields domain.MessageFields) (domain.Message, error) {
	fields, err := auth.ValidateMessage(fields)
	if err != nil {
		return domain.Message{}, err
	}

	fields.Text = s.moderate(ctx, caller, fields.Text)
	message, err := s.messages.AppendFromActive(domain.NewMessage(caller, fields, s.clock.Now()))
	if err != nil {
		return domain.Message{}, s.storeError(ctx, "post message", err)
	}
	s.indexMessage(ctx, message)
	return message, nil
}

// EditMessage changes a message owned by caller. Absent and foreign messages
// fail the same way.
func (s *ChatService) EditMessage(ctx context.Context, id, caller string, fields domain.MessageFields) (domain.Message, error) {
	fields, err := auth.ValidateMessage(fields)
	if err != nil {
		return domain.Message{}, err
	}

	fields.Text = s.moderate(ctx, caller, fields.Text)
	message, err := s.messages.Update(id, caller, fields)
	if err != nil {
		return domain.Message{}, s.storeError(ctx, "edit message", err)
	}
	s.indexMessage(ctx, message)
	return message, nil
}

func (s *ChatService) DeleteMessage(ctx context.Context, id, caller string) error {
	if err := s.messages.Delete(id, caller); err != nil {
		return s.storeError(ctx, "delete message", err)
	}
	if err := s.index.Remove(id); err != nil {
		s.log.WarnContext(ctx, "Deleted message still indexed", "id", id, "error", err)
	}
	return nil
}

// SearchMessages runs a full-text search over user messages and keeps the
// hits caller is allowed to see, most relevant first.
func (s *ChatService) SearchMessages(ctx context.Context, caller, query string, limit int) ([]domain.Message, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, chaterrors.ErrEmptyQuery
	}

	ids, err := s.index.Search(ctx, query, limit)
	if err != nil {
		return nil, s.storeError(ctx, "search messages", err)
	}
	messages, err := s.messages.List()
	if err != nil {
		return nil, s.storeError(ctx, "search messages", err)
	}

	byID := lo.KeyBy(messages, func(m domain.Message) string { return m.ID })
	return lo.FilterMap(ids, func(id string, _ int) (domain.Message, bool) {
		message, ok := byID[id]
		return message, ok && message.VisibleTo(caller)
	}), nil
}

func (s *ChatService) moderate(ctx context.Context, caller, text string) string {
	censored, words := s.censor.Censor(text)
	if len(words) > 0 {
		lang := whatlanggo.Detect(text).Lang.Iso6391()
		s.log.WarnContext(ctx, "Message censored", "from", caller, "words", words, "lang", lang)
	}
	return censored
}

func (s *ChatService) indexMessage(ctx context.Context, message domain.Message) {
	if err := s.index.Index(message); err != nil {
		s.log.WarnContext(ctx, "Message not indexed", "id", message.ID, "error", err)
	}
}

// storeError lets domain outcomes through and hides anything else behind ErrInternal.
func (s *ChatService) storeError(ctx context.Context, operation string, err error) error {
	switch {
	case errors.Is(err, chaterrors.ErrValidation),
		errors.Is(err, chaterrors.ErrConflict),
		errors.Is(err, chaterrors.ErrNotFound),
		errors.Is(err, chaterrors.ErrNotFoundOrForbidden):
		return err
	}
	s.log.ErrorContext(ctx, "Store operation failed", "operation", operation, "error", err)
	return chaterrors.ErrInternal
}
