package errors

import "fmt"

// Kinds of failure surfaced by the chat core. Specific errors below wrap one
// of them so callers only need errors.Is against the kind.
var (
	ErrValidation          = fmt.Errorf("validation failed")
	ErrConflict            = fmt.Errorf("conflict")
	ErrNotFound            = fmt.Errorf("not found")
	ErrNotFoundOrForbidden = fmt.Errorf("not found or forbidden")
	ErrInternal            = fmt.Errorf("internal error")
)

var (
	ErrNameTaken           = fmt.Errorf("%w: participant name already taken", ErrConflict)
	ErrParticipantNotFound = fmt.Errorf("%w: participant is not active", ErrNotFound)
	ErrMessageNotFound     = fmt.Errorf("%w: message", ErrNotFoundOrForbidden)
	ErrSenderNotActive     = fmt.Errorf("%w: sender is not an active participant", ErrValidation)
	ErrEmptyQuery          = fmt.Errorf("%w: search query is empty", ErrValidation)
)

var (
	ErrWorkerPanic        = fmt.Errorf("worker panic")
	ErrInvalidSweepConfig = fmt.Errorf("expiry threshold must be positive and lower than the sweep period")
)
