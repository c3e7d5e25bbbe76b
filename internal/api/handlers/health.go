package handlers

import (
	"context"
	"net/http"
	"time"
)

// Check probes one dependency
type Check func(ctx context.Context) error

// HealthHandler reports service health and the state of optional dependencies
type HealthHandler struct {
	service string
	checks  map[string]Check
}

// NewHealthHandler creates a health handler; checks may be empty
func NewHealthHandler(service string, checks map[string]Check) *HealthHandler {
	return &HealthHandler{service: service, checks: checks}
}

// Health returns 200 when every check passes, 503 otherwise
// GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	status := "ok"
	code := http.StatusOK
	deps := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			deps[name] = err.Error()
			status = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		deps[name] = "ok"
	}

	respondJSON(w, code, map[string]interface{}{
		"status":       status,
		"service":      h.service,
		"dependencies": deps,
	})
}
