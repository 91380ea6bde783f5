package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/okian/tempoguard/internal/domain/normalize"
)

const maxEventsBody = 1 << 20

// EventDependencies defines the interface for event ingestion.
type EventDependencies interface {
	Submit(ctx context.Context, raw normalize.RawEvent) error
}

// EventsHandler handles event requests.
type EventsHandler struct {
	deps EventDependencies
}

// NewEventsHandler creates a new events handler.
func NewEventsHandler(deps EventDependencies) *EventsHandler {
	return &EventsHandler{deps: deps}
}

type ackResponse struct {
	Status   string `json:"status"`
	Accepted int    `json:"accepted"`
}

// HandlePostEvents handles POST /events. The body is one event or an array of events;
// events of a batch are submitted in order and the first failure stops the batch.
func (h *EventsHandler) HandlePostEvents(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxEventsBody))
	if err != nil {
		writeError(r.Context(), w, fmt.Errorf("%w: %w", ErrBadRequest, err))
		return
	}
	events, err := decodeEvents(body)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}

	for i, raw := range events {
		if err := h.deps.Submit(r.Context(), raw); err != nil {
			status, code := statusFor(err)
			writeJSON(w, status, struct {
				errorResponse
				Accepted int `json:"accepted"`
			}{errorResponse{Code: code, Message: err.Error()}, i})
			return
		}
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted", Accepted: len(events)})
}

func decodeEvents(body []byte) ([]normalize.RawEvent, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrBadRequest)
	}
	if trimmed[0] == '[' {
		var events []normalize.RawEvent
		if err := json.Unmarshal(trimmed, &events); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrBadRequest, err)
		}
		return events, nil
	}
	var ev normalize.RawEvent
	if err := json.Unmarshal(trimmed, &ev); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	return []normalize.RawEvent{ev}, nil
}
