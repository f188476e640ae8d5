package api

import (
	chaterrors "chat-presence/errors"
	"errors"
	"net/http"
)

var (
	errBadLimit    = errors.New("limit must be a positive integer")
	errBadBody     = errors.New("malformed request body")
	errMissingUser = errors.New("missing User header")
)

// statusFor maps a failure to its HTTP status. Anything the chat core did not
// classify is reported as a bad request without detail.
func statusFor(err error) int {
	switch {
	case errors.Is(err, chaterrors.ErrValidation),
		errors.Is(err, errBadLimit),
		errors.Is(err, errBadBody),
		errors.Is(err, errMissingUser):
		return http.StatusUnprocessableEntity
	case errors.Is(err, chaterrors.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, chaterrors.ErrNotFound),
		errors.Is(err, chaterrors.ErrNotFoundOrForbidden):
		return http.StatusNotFound
	default:
		return http.StatusBadRequest
	}
}

// publicMessage hides internal failures from clients.
func publicMessage(err error) string {
	if statusFor(err) == http.StatusBadRequest {
		return chaterrors.ErrInternal.Error()
	}
	return err.Error()
}
