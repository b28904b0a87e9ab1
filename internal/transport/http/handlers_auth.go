package httptransport

import (
	"encoding/json"
	"net/http"

	dErrors "credara/pkg/domain-errors"
	"credara/pkg/requestcontext"
)

type signUpRequest struct {
	Phone    string  `json:"phone"`
	Email    *string `json:"email,omitempty"`
	Password string  `json:"password"`
}

func (h *Handler) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return
	}

	ident, err := h.identity.SignUp(r.Context(), req.Phone, req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"user_id": ident.UserID.String(),
		"phone":   ident.Phone,
	})
}

type signInRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

func (h *Handler) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return
	}

	ident, tokens, err := h.identity.SignIn(r.Context(), req.Login, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id": ident.UserID.String(),
		"tokens":  tokens,
	})
}

type callbackRequest struct {
	Code string `json:"code"`
}

// handleAuthCallback finishes a redirect flow (password reset link) by
// exchanging the one-time code for a session.
func (h *Handler) handleAuthCallback(w http.ResponseWriter, r *http.Request) {
	var req callbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return
	}

	ident, tokens, err := h.identity.ExchangeAuthorizationCode(r.Context(), req.Code)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id": ident.UserID.String(),
		"tokens":  tokens,
	})
}

type resetPasswordRequest struct {
	Email       string `json:"email"`
	RedirectURL string `json:"redirect_url"`
}

func (h *Handler) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return
	}

	if err := h.identity.ResetPassword(r.Context(), req.Email, req.RedirectURL); err != nil {
		writeError(w, err)
		return
	}
	// Accepted regardless of whether the account exists.
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) handleSignOut(w http.ResponseWriter, r *http.Request) {
	if err := h.identity.SignOut(r.Context(), requestcontext.AccessToken(r.Context())); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type updatePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (h *Handler) handleUpdatePassword(w http.ResponseWriter, r *http.Request) {
	ident, err := h.guard.RequireAuthenticated(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	var req updatePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return
	}
	if err := h.identity.UpdatePassword(r.Context(), ident.UserID, req.CurrentPassword, req.NewPassword); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
