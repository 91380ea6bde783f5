package api

import "net/http"

// HealthHandler handles health check requests.
type HealthHandler struct {
	deps interface{ NodeID() string }
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(deps interface{ NodeID() string }) *HealthHandler {
	return &HealthHandler{deps: deps}
}

// HandleHealth handles GET /healthz requests.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "node": h.deps.NodeID()})
}
