package auth

import "chat-presence/domain"

// CanMutate reports whether actor may edit or delete message.
// Only the original sender owns a message; status notices belong to the participant they describe.
func CanMutate(message domain.Message, actor string) bool {
	return message.From == actor
}
