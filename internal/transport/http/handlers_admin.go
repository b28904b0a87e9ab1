package httptransport

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"credara/internal/adminops"
	"credara/internal/audit"
	"credara/internal/profile/models"
	id "credara/pkg/domain"
	dErrors "credara/pkg/domain-errors"
)

func (h *Handler) handleAdminStats(w http.ResponseWriter, r *http.Request) {
	if _, _, err := h.guard.RequireAdmin(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	stats, err := h.admin.GetStats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	if _, _, err := h.guard.RequireAdmin(r.Context()); err != nil {
		writeError(w, err)
		return
	}

	q := r.URL.Query()
	filter := adminops.ListFilter{
		Role:               models.Role(q.Get("role")),
		VerificationStatus: models.VerificationStatus(q.Get("verification_status")),
		Search:             q.Get("search"),
	}
	result, err := h.admin.ListUsers(r.Context(), filter, queryInt(r, "page", 1), queryInt(r, "page_size", 0))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleGetUser(w http.ResponseWriter, r *http.Request) {
	if _, _, err := h.guard.RequireAdmin(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	targetID, err := id.ParseProfileID(chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, err)
		return
	}
	user, err := h.admin.GetUser(r.Context(), targetID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newAdminUserView(user))
}

type setVerificationRequest struct {
	Status string `json:"status"`
}

func (h *Handler) handleSetVerification(w http.ResponseWriter, r *http.Request) {
	admin, targetID, err := h.adminTarget(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req setVerificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return
	}

	user, err := h.admin.SetVerificationStatus(r.Context(), admin, targetID, models.VerificationStatus(req.Status))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newAdminUserView(user))
}

type overrideScoreRequest struct {
	TrustScore int `json:"trust_score"`
}

func (h *Handler) handleOverrideScore(w http.ResponseWriter, r *http.Request) {
	admin, targetID, err := h.adminTarget(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req overrideScoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return
	}

	user, err := h.admin.OverrideScore(r.Context(), admin, targetID, req.TrustScore)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newAdminUserView(user))
}

type updateProfileFieldsRequest struct {
	FullName  *string `json:"full_name,omitempty"`
	Email     *string `json:"email,omitempty"`
	CredaraID *string `json:"credara_id,omitempty"`
}

func (h *Handler) handleUpdateProfileFields(w http.ResponseWriter, r *http.Request) {
	admin, targetID, err := h.adminTarget(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req updateProfileFieldsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return
	}

	user, err := h.admin.UpdateProfileFields(r.Context(), admin, targetID, adminops.ProfileFieldsUpdate{
		FullName:  req.FullName,
		Email:     req.Email,
		CredaraID: req.CredaraID,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newAdminUserView(user))
}

type setNotesRequest struct {
	Notes string `json:"notes"`
}

func (h *Handler) handleSetInternalNotes(w http.ResponseWriter, r *http.Request) {
	admin, targetID, err := h.adminTarget(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req setNotesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return
	}

	user, err := h.admin.SetInternalNotes(r.Context(), admin, targetID, req.Notes)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newAdminUserView(user))
}

func (h *Handler) handleUpdateTrustReport(w http.ResponseWriter, r *http.Request) {
	admin, targetID, err := h.adminTarget(r)
	if err != nil {
		writeError(w, err)
		return
	}
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		writeError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return
	}

	user, err := h.admin.UpdateTrustReportContent(r.Context(), admin, targetID, raw)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newAdminUserView(user))
}

type addCreditsRequest struct {
	Amount           int     `json:"amount"`
	PaymentReference *string `json:"payment_reference,omitempty"`
}

func (h *Handler) handleAddCredits(w http.ResponseWriter, r *http.Request) {
	admin, targetID, err := h.adminTarget(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req addCreditsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return
	}

	user, err := h.admin.AddCredits(r.Context(), admin, targetID, req.Amount, req.PaymentReference)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newAdminUserView(user))
}

type updateSubscriptionRequest struct {
	Status    string     `json:"status"`
	Plan      *string    `json:"plan,omitempty"`
	StartDate *time.Time `json:"start_date,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty"`
}

func (h *Handler) handleUpdateSubscription(w http.ResponseWriter, r *http.Request) {
	admin, targetID, err := h.adminTarget(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req updateSubscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return
	}

	update := models.SubscriptionUpdate{
		Status:    models.SubscriptionStatus(req.Status),
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
	}
	if req.Plan != nil {
		plan := models.SubscriptionPlan(*req.Plan)
		update.Plan = &plan
	}

	user, err := h.admin.UpdateSubscription(r.Context(), admin, targetID, update)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newAdminUserView(user))
}

func (h *Handler) handleAuditLogs(w http.ResponseWriter, r *http.Request) {
	if _, _, err := h.guard.RequireAdmin(r.Context()); err != nil {
		writeError(w, err)
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{Action: audit.Action(q.Get("action"))}
	if v := q.Get("admin_id"); v != "" {
		adminID, err := id.ParseProfileID(v)
		if err != nil {
			writeError(w, err)
			return
		}
		filter.AdminID = adminID
	}
	if v := q.Get("target_user_id"); v != "" {
		targetID, err := id.ParseProfileID(v)
		if err != nil {
			writeError(w, err)
			return
		}
		filter.TargetUserID = targetID
	}

	result, err := h.admin.ListAuditLogs(r.Context(), filter, queryInt(r, "page", 1), queryInt(r, "page_size", 0))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// adminTarget runs the admin guard and parses the target user from the path.
func (h *Handler) adminTarget(r *http.Request) (id.ProfileID, id.ProfileID, error) {
	_, admin, err := h.guard.RequireAdmin(r.Context())
	if err != nil {
		return id.ProfileID{}, id.ProfileID{}, err
	}
	targetID, err := id.ParseProfileID(chi.URLParam(r, "userID"))
	if err != nil {
		return id.ProfileID{}, id.ProfileID{}, err
	}
	return admin.ID, targetID, nil
}

// adminUserView exposes the full row to admins, including the fields hidden
// from self-service JSON.
type adminUserView struct {
	*models.Profile
	RiskLevel     *models.RiskLevel          `json:"risk_level,omitempty"`
	InternalNotes *string                    `json:"internal_notes,omitempty"`
	TrustReport   *models.TrustReportContent `json:"trust_report_content,omitempty"`
}

func newAdminUserView(p *models.Profile) adminUserView {
	return adminUserView{
		Profile:       p,
		RiskLevel:     p.RiskLevel(),
		InternalNotes: p.InternalNotes,
		TrustReport:   p.TrustReport,
	}
}
