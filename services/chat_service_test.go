package services

import (
	"chat-presence/domain"
	"chat-presence/errors"
	"chat-presence/mocks"
	"chat-presence/moderation"
	"chat-presence/repositories"
	"chat-presence/runtime/workers"
	"chat-presence/search"
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var start = time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)

type fixture struct {
	service      *ChatService
	clock        *domain.ManualClock
	participants *repositories.ParticipantRepository
	messages     *repositories.MessageRepository
}

func setup(t *testing.T) fixture {
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	require.NoError(t, err)
	messages, err := repositories.NewMessageRepository(db, slog.Default())
	require.NoError(t, err)
	writer, err := bluge.OpenWriter(bluge.InMemoryOnlyConfig())
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = writer.Close()
		_ = messages.Close()
		_ = db.Close()
	})

	moderator, err := moderation.NewModerator([]string{"badword"}, '*')
	require.NoError(t, err)
	clock := domain.NewManualClock(start)
	participants := repositories.NewParticipantRepository(db, clock, slog.Default())
	index := search.NewMessageIndex(writer, slog.Default())
	return fixture{
		service:      NewChatService(slog.Default(), participants, messages, index, moderator, clock),
		clock:        clock,
		participants: participants,
		messages:     messages,
	}
}

func hi(to string) domain.MessageFields {
	return domain.MessageFields{To: to, Text: "hi", Type: domain.MessageTypePublic}
}

func TestChatService_Join_Twice_Conflicts(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := setup(t)

	// Given Alice joined
	_, err := f.service.Join(ctx, "Alice")
	req.NoError(err)

	// When Alice joins again
	_, err = f.service.Join(ctx, "Alice")

	// Then the name is taken and only one Alice is listed
	req.ErrorIs(err, errors.ErrConflict)
	participants, err := f.service.ListParticipants(ctx)
	req.NoError(err)
	req.Equal([]string{"Alice"}, lo.Map(participants, func(p domain.Participant, _ int) string { return p.Name }))
}

func TestChatService_Join_Announces_Arrival(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := setup(t)

	_, err := f.service.Join(ctx, "  Alice ")
	req.NoError(err)

	messages, err := f.service.ListMessages(ctx)
	req.NoError(err)
	req.Len(messages, 1)
	req.Equal("Alice", messages[0].From)
	req.Equal(domain.Broadcast, messages[0].To)
	req.Equal(domain.JoinedText, messages[0].Text)
	req.Equal(domain.MessageTypeStatus, messages[0].Type)
}

func TestChatService_Join_Invalid_Name(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := setup(t)

	for _, name := range []string{"", " ", "A"} {
		_, err := f.service.Join(ctx, name)
		req.ErrorIs(err, errors.ErrValidation, name)
	}
	participants, err := f.service.ListParticipants(ctx)
	req.NoError(err)
	req.Empty(participants)
}

func TestChatService_PostMessage(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := setup(t)

	// Given Alice joined
	_, err := f.service.Join(ctx, "Alice")
	req.NoError(err)

	// When she says hi to everyone
	f.clock.Advance(2 * time.Second)
	message, err := f.service.PostMessage(ctx, "Alice", hi(domain.Broadcast))

	// Then the message is appended with her as sender
	req.NoError(err)
	req.NotEmpty(message.ID)
	req.Equal("Alice", message.From)
	req.Equal("10:00:02", message.Time)
	messages, err := f.service.ListMessages(ctx)
	req.NoError(err)
	req.Len(messages, 2)
	req.Equal(message.ID, messages[1].ID)
}

func TestChatService_PostMessage_Fresh_Time_Per_Message(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := setup(t)

	_, err := f.service.Join(ctx, "Alice")
	req.NoError(err)

	first, err := f.service.PostMessage(ctx, "Alice", hi(domain.Broadcast))
	req.NoError(err)
	f.clock.Advance(time.Second)
	second, err := f.service.PostMessage(ctx, "Alice", hi(domain.Broadcast))
	req.NoError(err)

	req.NotEqual(first.Time, second.Time)
}

func TestChatService_PostMessage_From_Someone_Who_Never_Joined(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := setup(t)

	// When Mallory posts without joining
	_, err := f.service.PostMessage(ctx, "Mallory", domain.MessageFields{To: domain.Broadcast, Text: "x", Type: domain.MessageTypePublic})

	// Then it is a validation failure and nothing is stored
	req.ErrorIs(err, errors.ErrSenderNotActive)
	req.ErrorIs(err, errors.ErrValidation)
	messages, err := f.service.ListMessages(ctx)
	req.NoError(err)
	req.Empty(messages)
}

func TestChatService_PostMessage_Invalid_Body(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := setup(t)
	_, err := f.service.Join(ctx, "Alice")
	req.NoError(err)

	cases := []domain.MessageFields{
		{To: "", Text: "hi", Type: domain.MessageTypePublic},
		{To: domain.Broadcast, Text: "  ", Type: domain.MessageTypePublic},
		{To: domain.Broadcast, Text: "hi", Type: domain.MessageTypeStatus},
		{To: domain.Broadcast, Text: "hi", Type: "shout"},
	}
	for _, fields := range cases {
		_, err := f.service.PostMessage(ctx, "Alice", fields)
		req.ErrorIs(err, errors.ErrValidation)
	}
	messages, err := f.service.ListMessages(ctx)
	req.NoError(err)
	req.Len(messages, 1)
}

func TestChatService_PostMessage_Is_Moderated(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := setup(t)
	_, err := f.service.Join(ctx, "Alice")
	req.NoError(err)

	message, err := f.service.PostMessage(ctx, "Alice", domain.MessageFields{To: domain.Broadcast, Text: "what a B4dword", Type: domain.MessageTypePublic})

	req.NoError(err)
	req.Equal("what a *******", message.Text)
}

func TestChatService_Delete_By_Someone_Else_Keeps_Message(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := setup(t)

	// Given Alice posted a message
	_, err := f.service.Join(ctx, "Alice")
	req.NoError(err)
	message, err := f.service.PostMessage(ctx, "Alice", hi(domain.Broadcast))
	req.NoError(err)

	// When Carol deletes or edits it
	err = f.service.DeleteMessage(ctx, message.ID, "Carol")
	req.ErrorIs(err, errors.ErrNotFoundOrForbidden)
	_, err = f.service.EditMessage(ctx, message.ID, "Carol", domain.MessageFields{To: domain.Broadcast, Text: "pwned", Type: domain.MessageTypePublic})
	req.ErrorIs(err, errors.ErrNotFoundOrForbidden)

	// Then the message is still there, unchanged
	messages, err := f.service.ListMessages(ctx)
	req.NoError(err)
	stored, ok := lo.Find(messages, func(m domain.Message) bool { return m.ID == message.ID })
	req.True(ok)
	req.Equal(message, stored)
}

func TestChatService_Edit_And_Delete_By_Owner(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := setup(t)
	_, err := f.service.Join(ctx, "Alice")
	req.NoError(err)
	message, err := f.service.PostMessage(ctx, "Alice", hi(domain.Broadcast))
	req.NoError(err)

	// When Alice turns her message into a private one
	edited, err := f.service.EditMessage(ctx, message.ID, "Alice", domain.MessageFields{To: "Bob", Text: "hello Bob", Type: domain.MessageTypePrivate})

	// Then identity and time are kept
	req.NoError(err)
	req.Equal(message.ID, edited.ID)
	req.Equal(message.Time, edited.Time)
	req.Equal("hello Bob", edited.Text)

	// When she deletes it
	req.NoError(f.service.DeleteMessage(ctx, message.ID, "Alice"))

	// Then it is gone from the log and from search
	messages, err := f.service.ListMessages(ctx)
	req.NoError(err)
	req.False(lo.ContainsBy(messages, func(m domain.Message) bool { return m.ID == message.ID }))
	found, err := f.service.SearchMessages(ctx, "Alice", "Bob", 10)
	req.NoError(err)
	req.Empty(found)
}

func TestChatService_Heartbeat(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := setup(t)
	_, err := f.service.Join(ctx, "Alice")
	req.NoError(err)

	f.clock.Advance(5 * time.Second)
	req.NoError(f.service.Heartbeat(ctx, "Alice"))

	participant, err := f.participants.Get("Alice")
	req.NoError(err)
	req.Equal(start.Add(5*time.Second), participant.LastSeen)

	req.ErrorIs(f.service.Heartbeat(ctx, "Bob"), errors.ErrNotFound)
}

func TestChatService_Silent_Participant_Is_Swept(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := setup(t)
	sweeper, err := workers.NewPresenceSweeper(slog.Default(), f.participants, f.messages, f.clock, workers.DefaultSweepPeriod, workers.DefaultExpiryThreshold)
	req.NoError(err)

	// Given Bob joined and went silent
	_, err = f.service.Join(ctx, "Bob")
	req.NoError(err)
	f.clock.Advance(workers.DefaultExpiryThreshold + time.Second)

	// When the sweeper runs
	sweeper.Sweep(ctx)

	// Then Bob is gone and his departure is announced
	participants, err := f.service.ListParticipants(ctx)
	req.NoError(err)
	req.Empty(participants)
	messages, err := f.service.ListMessages(ctx)
	req.NoError(err)
	req.True(lo.ContainsBy(messages, func(m domain.Message) bool {
		return m.From == "Bob" && m.To == domain.Broadcast && m.Type == domain.MessageTypeStatus && m.Text == domain.LeftText
	}))

	// And Bob can no longer post
	_, err = f.service.PostMessage(ctx, "Bob", hi(domain.Broadcast))
	req.ErrorIs(err, errors.ErrSenderNotActive)
}

func TestChatService_SearchMessages_Only_Visible(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := setup(t)
	for _, name := range []string{"Alice", "Bob", "Carol"} {
		_, err := f.service.Join(ctx, name)
		req.NoError(err)
	}

	// Given a public and a private message about the release
	public, err := f.service.PostMessage(ctx, "Alice", domain.MessageFields{To: domain.Broadcast, Text: "release is out", Type: domain.MessageTypePublic})
	req.NoError(err)
	private, err := f.service.PostMessage(ctx, "Alice", domain.MessageFields{To: "Bob", Text: "release notes are wrong", Type: domain.MessageTypePrivate})
	req.NoError(err)

	// When Bob and Carol search
	forBob, err := f.service.SearchMessages(ctx, "Bob", "release", 10)
	req.NoError(err)
	forCarol, err := f.service.SearchMessages(ctx, "Carol", "release", 10)
	req.NoError(err)

	// Then only Bob sees the private one
	ids := func(messages []domain.Message) []string {
		return lo.Map(messages, func(m domain.Message, _ int) string { return m.ID })
	}
	req.ElementsMatch([]string{public.ID, private.ID}, ids(forBob))
	req.Equal([]string{public.ID}, ids(forCarol))

	_, err = f.service.SearchMessages(ctx, "Bob", "   ", 10)
	req.ErrorIs(err, errors.ErrEmptyQuery)
}

func TestChatService_Store_Failure_Is_Internal(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	participants := mocks.NewMockIParticipantRepository(ctrl)
	messages := mocks.NewMockIMessageRepository(ctrl)
	index := mocks.NewMockIMessageIndex(ctrl)
	censor := mocks.NewMockCensor(ctrl)
	service := NewChatService(slog.Default(), participants, messages, index, censor, domain.NewManualClock(start))

	// Given a store that fails without a domain reason
	boom := fmt.Errorf("value log corrupted")
	participants.EXPECT().List().Return(nil, boom)
	censor.EXPECT().Censor("hi").Return("hi", nil)
	messages.EXPECT().AppendFromActive(gomock.Any()).Return(domain.Message{}, boom)

	// Then callers only see an internal error
	_, err := service.ListParticipants(ctx)
	req.ErrorIs(err, errors.ErrInternal)
	req.NotErrorIs(err, boom)

	_, err = service.PostMessage(ctx, "Alice", hi(domain.Broadcast))
	req.ErrorIs(err, errors.ErrInternal)
}

func TestChatService_Join_Succeeds_When_Announcement_Fails(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	participants := mocks.NewMockIParticipantRepository(ctrl)
	messages := mocks.NewMockIMessageRepository(ctrl)
	service := NewChatService(slog.Default(), participants, messages, mocks.NewMockIMessageIndex(ctrl), mocks.NewMockCensor(ctrl), domain.NewManualClock(start))

	alice := domain.Participant{ID: "1", Name: "Alice", LastSeen: start}
	participants.EXPECT().Join("Alice").Return(alice, nil)
	messages.EXPECT().Append(gomock.Any()).Return(domain.Message{}, fmt.Errorf("write refused"))

	participant, err := service.Join(ctx, "Alice")

	req.NoError(err)
	req.Equal(alice, participant)
}

func TestChatService_Post_Succeeds_When_Indexing_Fails(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	participants := mocks.NewMockIParticipantRepository(ctrl)
	messages := mocks.NewMockIMessageRepository(ctrl)
	index := mocks.NewMockIMessageIndex(ctrl)
	censor := mocks.NewMockCensor(ctrl)
	service := NewChatService(slog.Default(), participants, messages, index, censor, domain.NewManualClock(start))

	censor.EXPECT().Censor("hi").Return("hi", nil)
	messages.EXPECT().
		AppendFromActive(gomock.Any()).
		DoAndReturn(func(m domain.Message) (domain.Message, error) {
			m.ID = "m1"
			return m, nil
		})
	index.EXPECT().Index(gomock.Any()).Return(fmt.Errorf("index closed"))

	message, err := service.PostMessage(ctx, "Alice", hi(domain.Broadcast))

	req.NoError(err)
	req.Equal("m1", message.ID)
}
