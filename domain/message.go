// Package domain contains core concepts of the chat system.
// This file defines Message records and their visibility rules.
package domain

import "time"

type MessageType string

const (
	MessageTypePublic  MessageType = "message"
	MessageTypePrivate MessageType = "private_message"
	MessageTypeStatus  MessageType = "status"
)

// Broadcast is the recipient meaning "everyone in the room".
const Broadcast = "Todos"

const (
	JoinedText = "entra na sala..."
	LeftText   = "sai da sala..."
)

// TimeLayout is the display format of Message.Time.
const TimeLayout = "15:04:05"

// Message is one entry of the room log.
// Position is the insertion order assigned by the store.
type Message struct {
	ID       string
	From     string
	To       string
	Text     string
	Type     MessageType
	Time     string
	At       time.Time
	Position uint64
}

// MessageFields are the parts of a message its sender may change.
type MessageFields struct {
	To   string
	Text string
	Type MessageType
}

// NewMessage stamps a message created at the given instant.
func NewMessage(from string, fields MessageFields, at time.Time) Message {
	return Message{
		From: from,
		To:   fields.To,
		Text: fields.Text,
		Type: fields.Type,
		Time: at.Format(TimeLayout),
		At:   at,
	}
}

// NewStatusMessage builds a system notice attributed to the affected participant.
func NewStatusMessage(name, text string, at time.Time) Message {
	return NewMessage(name, MessageFields{To: Broadcast, Text: text, Type: MessageTypeStatus}, at)
}

// Apply replaces the mutable fields, keeping identity, author and position.
func (m Message) Apply(fields MessageFields) Message {
	m.To = fields.To
	m.Text = fields.Text
	m.Type = fields.Type
	return m
}

// VisibleTo reports whether viewer may read the message.
// Private messages are only shown to their sender and recipient.
func (m Message) VisibleTo(viewer string) bool {
	if m.Type != MessageTypePrivate {
		return true
	}
	return m.To == Broadcast || m.To == viewer || m.From == viewer
}
