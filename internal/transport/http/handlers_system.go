package httptransport

import (
	"net/http"
)

func (h *Handler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	for _, check := range h.health {
		if check == nil {
			continue
		}
		if err := check.Health(r.Context()); err != nil {
			h.logger.ErrorContext(r.Context(), "health check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleSeed reloads the demo dataset. Only routed in dev mode, and
// unauthenticated on purpose: on a fresh database there is no admin account
// to sign in with yet.
func (h *Handler) handleSeed(w http.ResponseWriter, r *http.Request) {
	if err := h.seed(r.Context()); err != nil {
		h.logger.ErrorContext(r.Context(), "seeding failed", "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "seeded"})
}
