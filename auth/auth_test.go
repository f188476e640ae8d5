package auth

import (
	"chat-presence/domain"
	"chat-presence/errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCanMutate_Only_Sender(t *testing.T) {
	req := require.New(t)
	message := domain.Message{ID: "m1", From: "Alice", To: domain.Broadcast, Text: "hi", Type: domain.MessageTypePublic}

	req.True(CanMutate(message, "Alice"))
	req.False(CanMutate(message, "Carol"))
	req.False(CanMutate(message, "alice"), "names are case sensitive")
	req.False(CanMutate(message, ""))
}

func TestValidateJoin(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		wantErr  bool
	}{
		{name: "Valid name", input: "Alice", expected: "Alice"},
		{name: "Surrounding spaces are trimmed", input: "  Bob ", expected: "Bob"},
		{name: "Two characters is the minimum", input: "Al", expected: "Al"},
		{name: "Single character is rejected", input: "A", wantErr: true},
		{name: "Blank name is rejected", input: "   ", wantErr: true},
		{name: "Empty name is rejected", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			name, err := ValidateJoin(tt.input)
			if tt.wantErr {
				req.ErrorIs(err, errors.ErrValidation)
				return
			}
			req.NoError(err)
			req.Equal(tt.expected, name)
		})
	}
}

func TestValidateMessage(t *testing.T) {
	tests := []struct {
		name    string
		input   domain.MessageFields
		wantErr bool
	}{
		{
			name:  "Public message",
			input: domain.MessageFields{To: domain.Broadcast, Text: "hi", Type: domain.MessageTypePublic},
		},
		{
			name:  "Private message",
			input: domain.MessageFields{To: "Bob", Text: "psst", Type: domain.MessageTypePrivate},
		},
		{
			name:    "Status type is reserved",
			input:   domain.MessageFields{To: domain.Broadcast, Text: "sai da sala...", Type: domain.MessageTypeStatus},
			wantErr: true,
		},
		{
			name:    "Unknown type",
			input:   domain.MessageFields{To: domain.Broadcast, Text: "hi", Type: "shout"},
			wantErr: true,
		},
		{
			name:    "Blank text",
			input:   domain.MessageFields{To: domain.Broadcast, Text: "  ", Type: domain.MessageTypePublic},
			wantErr: true,
		},
		{
			name:    "Missing recipient",
			input:   domain.MessageFields{Text: "hi", Type: domain.MessageTypePublic},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			fields, err := ValidateMessage(tt.input)
			if tt.wantErr {
				req.ErrorIs(err, errors.ErrValidation)
				return
			}
			req.NoError(err)
			req.Equal(tt.input, fields)
		})
	}
}
