// Package unlock implements the report access ledger. An unlock is the only
// way an institution gains access to an individual's trust report, and the
// pair (institution, target) unlocks at most once.
package unlock

import (
	"time"

	"credara/internal/profile/models"
	id "credara/pkg/domain"
	dErrors "credara/pkg/domain-errors"
)

// Snapshot freezes the target's report identity at unlock time. The list view
// renders from this, never from the live profile, so history does not drift
// when an admin later changes the score.
type Snapshot struct {
	FullName   *string           `json:"full_name,omitempty"`
	CredaraID  string            `json:"credara_id"`
	TrustScore *int              `json:"trust_score,omitempty"`
	RiskLevel  *models.RiskLevel `json:"risk_level,omitempty"`
}

// SnapshotOf captures the target's current report fields. RiskLevel is
// derived from the score at capture time.
func SnapshotOf(target *models.Profile) Snapshot {
	return Snapshot{
		FullName:   target.FullName,
		CredaraID:  target.CredaraID.String(),
		TrustScore: target.TrustScore,
		RiskLevel:  target.RiskLevel(),
	}
}

// Unlock is one immutable ledger row. CreditsSpent is the landlord debit (0
// for fintech unlocks).
type Unlock struct {
	ID                id.UnlockID  `json:"id"`
	InstitutionUserID id.ProfileID `json:"institution_user_id"`
	TargetProfileID   id.ProfileID `json:"target_profile_id"`
	CreditsSpent      int          `json:"credits_spent"`
	Snapshot          Snapshot     `json:"snapshot"`
	UnlockedAt        time.Time    `json:"unlocked_at"`
}

// NewUnlock builds a validated ledger row.
func NewUnlock(institutionID, targetID id.ProfileID, creditsSpent int, snapshot Snapshot, now time.Time) (*Unlock, error) {
	if institutionID.IsNil() || targetID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "unlock requires institution and target ids")
	}
	if creditsSpent < 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "credits spent must not be negative")
	}
	return &Unlock{
		ID:                id.NewUnlockID(),
		InstitutionUserID: institutionID,
		TargetProfileID:   targetID,
		CreditsSpent:      creditsSpent,
		Snapshot:          snapshot,
		UnlockedAt:        now,
	}, nil
}
