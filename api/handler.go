package api

import (
	"chat-presence/domain"
	"chat-presence/services"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/samber/lo"
)

const DefaultMaxBodyBytes = 1 << 16

// Handler exposes ChatService over HTTP. The caller is whoever the User
// header names; nothing proves it.
type Handler struct {
	service      services.IChatService
	log          *slog.Logger
	maxBodyBytes int64
}

func NewHandler(service services.IChatService, log *slog.Logger, maxBodyBytes int64) *Handler {
	if maxBodyBytes <= 0 {
		maxBodyBytes = DefaultMaxBodyBytes
	}
	return &Handler{service: service, log: log, maxBodyBytes: maxBodyBytes}
}

func (h *Handler) ListParticipants(w http.ResponseWriter, r *http.Request) {
	participants, err := h.service.ListParticipants(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, toParticipantResponses(participants))
}

func (h *Handler) Join(w http.ResponseWriter, r *http.Request) {
	var body JoinRequest
	if err := h.decode(w, r, &body); err != nil {
		h.fail(w, r, err)
		return
	}
	if _, err := h.service.Join(r.Context(), body.Name); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

// ListMessages returns the messages visible to the caller, oldest first.
// With ?limit=N only the N most recent are kept.
func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	messages, err := h.service.ListMessages(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	caller := callerOf(r)
	visible := lo.Filter(messages, func(m domain.Message, _ int) bool { return m.VisibleTo(caller) })
	if limit > 0 && limit < len(visible) {
		visible = lo.Subset(visible, -limit, uint(limit))
	}
	h.respond(w, http.StatusOK, toMessageResponses(visible))
}

func (h *Handler) PostMessage(w http.ResponseWriter, r *http.Request) {
	var body MessageRequest
	if err := h.decode(w, r, &body); err != nil {
		h.fail(w, r, err)
		return
	}
	caller, err := requireCaller(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if _, err := h.service.PostMessage(r.Context(), caller, body.fields()); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (h *Handler) EditMessage(w http.ResponseWriter, r *http.Request) {
	var body MessageRequest
	if err := h.decode(w, r, &body); err != nil {
		h.fail(w, r, err)
		return
	}
	message, err := h.service.EditMessage(r.Context(), r.PathValue("id"), callerOf(r), body.fields())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, toMessageResponse(message, 0))
}

func (h *Handler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteMessage(r.Context(), r.PathValue("id"), callerOf(r)); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Heartbeat(r.Context(), callerOf(r)); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) SearchMessages(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	messages, err := h.service.SearchMessages(r.Context(), callerOf(r), r.URL.Query().Get("q"), limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, toMessageResponses(messages))
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", errBadBody, err)
	}
	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: trailing data", errBadBody)
	}
	return nil
}

func (h *Handler) respond(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.log.Warn("Failed to write response", "error", err)
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	h.log.Debug("Request failed", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	h.respond(w, status, ErrorResponse{Error: publicMessage(err)})
}

func callerOf(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(CallerHeader))
}

func requireCaller(r *http.Request) (string, error) {
	caller := callerOf(r)
	if caller == "" {
		return "", errMissingUser
	}
	return caller, nil
}

// parseLimit reads ?limit. Absent means no limit.
func parseLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, fmt.Errorf("%w: %q", errBadLimit, raw)
	}
	return limit, nil
}
