package httptransport

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	id "credara/pkg/domain"
	dErrors "credara/pkg/domain-errors"
)

func (h *Handler) handleSearchLookup(w http.ResponseWriter, r *http.Request) {
	_, institution, err := h.guard.RequireInstitution(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	results, err := h.unlocks.SearchLookup(r.Context(), institution, r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

type unlockRequest struct {
	TargetProfileID string `json:"target_profile_id"`
}

func (h *Handler) handleUnlockReport(w http.ResponseWriter, r *http.Request) {
	_, institution, err := h.guard.RequireInstitution(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	var req unlockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return
	}
	targetID, err := id.ParseProfileID(req.TargetProfileID)
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := h.unlocks.UnlockReport(r.Context(), institution.ID, targetID)
	if err != nil {
		writeError(w, err)
		return
	}
	status := http.StatusCreated
	if result.Repeat {
		status = http.StatusOK
	}
	writeJSON(w, status, result)
}

func (h *Handler) handleReportByTarget(w http.ResponseWriter, r *http.Request) {
	_, institution, err := h.guard.RequireInstitution(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	targetID, err := id.ParseProfileID(chi.URLParam(r, "targetID"))
	if err != nil {
		writeError(w, err)
		return
	}

	report, err := h.unlocks.GetReportByTargetID(r.Context(), institution.ID, targetID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) handleUnlockedReports(w http.ResponseWriter, r *http.Request) {
	_, institution, err := h.guard.RequireInstitution(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	page := queryInt(r, "page", 1)
	pageSize := queryInt(r, "page_size", 0)
	result, err := h.unlocks.GetUnlockedReports(r.Context(), institution.ID, page, pageSize)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func queryInt(r *http.Request, key string, fallback int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
