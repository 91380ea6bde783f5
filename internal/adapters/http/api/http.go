// Package api exposes ingestion and administration over HTTP.
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/okian/tempoguard/internal/domain/model"
	"github.com/okian/tempoguard/internal/domain/normalize"
	"github.com/okian/tempoguard/pkg/logger"
	"github.com/okian/tempoguard/pkg/metrics"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to the service implementation.
type Dependencies interface {
	StatsProvider

	NodeID() string
	Submit(ctx context.Context, raw normalize.RawEvent) error
	Connect(ctx context.Context, participantID string) error
	Disconnect(ctx context.Context, participantID string) error
	Reset(ctx context.Context, participantID, checkID, reason string) error
	Participant(participantID string) (model.ParticipantView, bool)
	History(ctx context.Context, participantID string, limit int) ([]model.ViolationSnapshot, error)
}

// Server wires HTTP routes for the detection API.
type Server struct {
	healthHandler       *HealthHandler
	statsHandler        *StatsHandler
	eventsHandler       *EventsHandler
	participantsHandler *ParticipantsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies) *Server {
	return &Server{
		healthHandler:       NewHealthHandler(deps),
		statsHandler:        NewStatsHandler(deps),
		eventsHandler:       NewEventsHandler(deps),
		participantsHandler: NewParticipantsHandler(deps),
	}
}

// Router builds the chi router holding every route.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", s.healthHandler.HandleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))

	r.Group(func(r chi.Router) {
		r.Use(MetricsMiddleware)

		r.Get("/stats", s.statsHandler.HandleStats)
		r.Post("/events", s.eventsHandler.HandlePostEvents)

		r.Route("/participants/{id}", func(r chi.Router) {
			r.Put("/", s.participantsHandler.HandleConnect)
			r.Delete("/", s.participantsHandler.HandleDisconnect)
			r.Get("/", s.participantsHandler.HandleGet)
			r.Post("/reset", s.participantsHandler.HandleReset)
			r.Get("/violations", s.participantsHandler.HandleViolations)
		})
	})
	return r
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Named("api").Error(ctx, "request failed", logger.Error(err))
	}
	writeJSON(w, status, errorResponse{Code: code, Message: err.Error()})
}
