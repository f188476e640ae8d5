package auth

import (
	"chat-presence/domain"
	"chat-presence/errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type JoinRequest struct {
	Name string `validate:"required,min=2"`
}

type MessageRequest struct {
	To   string `validate:"required"`
	Text string `validate:"required"`
	Type string `validate:"required,oneof=message private_message"`
}

// ValidateJoin trims the requested name and checks it before any store access.
func ValidateJoin(name string) (string, error) {
	req := JoinRequest{Name: strings.TrimSpace(name)}
	if err := validate.Struct(req); err != nil {
		return "", fmt.Errorf("%w: %v", errors.ErrValidation, err)
	}
	return req.Name, nil
}

// ValidateMessage checks a user supplied message body.
// Status messages are reserved to the system and rejected here.
func ValidateMessage(fields domain.MessageFields) (domain.MessageFields, error) {
	req := MessageRequest{
		To:   strings.TrimSpace(fields.To),
		Text: strings.TrimSpace(fields.Text),
		Type: string(fields.Type),
	}
	if err := validate.Struct(req); err != nil {
		return domain.MessageFields{}, fmt.Errorf("%w: %v", errors.ErrValidation, err)
	}
	return domain.MessageFields{To: req.To, Text: req.Text, Type: domain.MessageType(req.Type)}, nil
}
