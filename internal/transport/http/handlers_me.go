package httptransport

import (
	"encoding/json"
	"net/http"

	"credara/internal/onboarding"
	"credara/internal/profile/models"
	dErrors "credara/pkg/domain-errors"
)

func (h *Handler) handleCompleteOnboarding(w http.ResponseWriter, r *http.Request) {
	ident, err := h.guard.RequireAuthenticated(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	var input onboarding.Input
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return
	}

	profile, err := h.onboarding.CompleteOnboarding(r.Context(), ident, input)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profileView(profile))
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	_, profile, err := h.guard.RequireProfile(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profileView(profile))
}

// meView is the self-service profile rendering. Risk level is derived on
// every read, never trusted from storage; admin-only fields stay hidden
// through the model's JSON tags.
type meView struct {
	*models.Profile
	RiskLevel *models.RiskLevel `json:"risk_level,omitempty"`
}

func profileView(p *models.Profile) meView {
	return meView{Profile: p, RiskLevel: p.RiskLevel()}
}
