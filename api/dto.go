package api

import (
	"chat-presence/domain"

	"github.com/samber/lo"
)

// CallerHeader carries the participant name a request acts for.
const CallerHeader = "User"

type JoinRequest struct {
	Name string `json:"name"`
}

type MessageRequest struct {
	To   string `json:"to"`
	Text string `json:"text"`
	Type string `json:"type"`
}

func (r MessageRequest) fields() domain.MessageFields {
	return domain.MessageFields{To: r.To, Text: r.Text, Type: domain.MessageType(r.Type)}
}

type ParticipantResponse struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	LastStatus int64  `json:"lastStatus"`
}

type MessageResponse struct {
	ID   string `json:"id"`
	From string `json:"from"`
	To   string `json:"to"`
	Text string `json:"text"`
	Type string `json:"type"`
	Time string `json:"time"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func toParticipantResponse(p domain.Participant, _ int) ParticipantResponse {
	return ParticipantResponse{ID: p.ID, Name: p.Name, LastStatus: p.LastSeen.UnixMilli()}
}

func toMessageResponse(m domain.Message, _ int) MessageResponse {
	return MessageResponse{
		ID:   m.ID,
		From: m.From,
		To:   m.To,
		Text: m.Text,
		Type: string(m.Type),
		Time: m.Time,
	}
}

func toParticipantResponses(participants []domain.Participant) []ParticipantResponse {
	return lo.Map(participants, toParticipantResponse)
}

func toMessageResponses(messages []domain.Message) []MessageResponse {
	return lo.Map(messages, toMessageResponse)
}
