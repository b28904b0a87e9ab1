// Package audit records admin actions in an append-only trail. Entries are
// written inside the same transaction as the mutation they describe, so a
// committed change always has its log row and a rolled-back change never does.
package audit

import (
	"time"

	id "credara/pkg/domain"
	dErrors "credara/pkg/domain-errors"
)

// Action classifies what an admin did. The OTHER bucket exists so new actions
// can be recorded before they get their own constant.
type Action string

const (
	ActionVerificationApprove  Action = "VERIFICATION_APPROVE"
	ActionVerificationReject   Action = "VERIFICATION_REJECT"
	ActionScoreOverride        Action = "SCORE_OVERRIDE"
	ActionCreditAdd            Action = "CREDIT_ADD"
	ActionSubscriptionActivate Action = "SUBSCRIPTION_ACTIVATE"
	ActionProfileUpdate        Action = "PROFILE_UPDATE"
	ActionOther                Action = "OTHER"
)

func (a Action) Valid() bool {
	switch a {
	case ActionVerificationApprove, ActionVerificationReject, ActionScoreOverride,
		ActionCreditAdd, ActionSubscriptionActivate, ActionProfileUpdate, ActionOther:
		return true
	}
	return false
}

// Entry is one immutable audit record. Details carries action-specific
// context (old/new values, amounts) as free-form key/value pairs.
type Entry struct {
	ID           id.AuditLogID  `json:"id"`
	AdminID      id.ProfileID   `json:"admin_id"`
	TargetUserID *id.ProfileID  `json:"target_user_id,omitempty"`
	Action       Action         `json:"action"`
	Details      map[string]any `json:"details,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// NewEntry builds a validated audit entry. Target may be nil for actions that
// are not about a specific user.
func NewEntry(adminID id.ProfileID, target *id.ProfileID, action Action, details map[string]any, now time.Time) (*Entry, error) {
	if adminID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "audit entry requires an admin id")
	}
	if !action.Valid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "invalid audit action")
	}
	return &Entry{
		ID:           id.NewAuditLogID(),
		AdminID:      adminID,
		TargetUserID: target,
		Action:       action,
		Details:      details,
		CreatedAt:    now,
	}, nil
}

// Filter selects entries for listing. Zero values mean "no constraint".
type Filter struct {
	AdminID      id.ProfileID
	TargetUserID id.ProfileID
	Action       Action
	Limit        int
	Offset       int
}
