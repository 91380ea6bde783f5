package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/okian/tempoguard/internal/domain/model"
)

const maxHistoryLimit = 1000

// ParticipantDependencies defines the participant lifecycle and admin operations.
type ParticipantDependencies interface {
	Connect(ctx context.Context, participantID string) error
	Disconnect(ctx context.Context, participantID string) error
	Reset(ctx context.Context, participantID, checkID, reason string) error
	Participant(participantID string) (model.ParticipantView, bool)
	History(ctx context.Context, participantID string, limit int) ([]model.ViolationSnapshot, error)
}

// ParticipantsHandler serves /participants/{id}.
type ParticipantsHandler struct {
	deps ParticipantDependencies
}

// NewParticipantsHandler creates a new participants handler.
func NewParticipantsHandler(deps ParticipantDependencies) *ParticipantsHandler {
	return &ParticipantsHandler{deps: deps}
}

type resetRequest struct {
	CheckID string `json:"check_id"`
	Reason  string `json:"reason"`
}

// HandleConnect handles PUT /participants/{id}.
func (h *ParticipantsHandler) HandleConnect(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.Connect(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(r.Context(), w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleDisconnect handles DELETE /participants/{id}.
func (h *ParticipantsHandler) HandleDisconnect(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.Disconnect(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(r.Context(), w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleGet handles GET /participants/{id}.
func (h *ParticipantsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	view, ok := h.deps.Participant(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Code: "not_found", Message: "participant not connected: " + id})
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// HandleReset handles POST /participants/{id}/reset. An empty body resets every check.
func (h *ParticipantsHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxEventsBody)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(r.Context(), w, fmt.Errorf("%w: %w", ErrBadRequest, err))
		return
	}
	if err := h.deps.Reset(r.Context(), chi.URLParam(r, "id"), req.CheckID, req.Reason); err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// HandleViolations handles GET /participants/{id}/violations?limit=N.
func (h *ParticipantsHandler) HandleViolations(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxHistoryLimit {
			writeError(r.Context(), w, fmt.Errorf("%w: limit must be in [1, %d]", ErrBadRequest, maxHistoryLimit))
			return
		}
		limit = n
	}
	history, err := h.deps.History(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	if history == nil {
		history = []model.ViolationSnapshot{}
	}
	writeJSON(w, http.StatusOK, history)
}
