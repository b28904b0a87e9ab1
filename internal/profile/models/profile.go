package models

import (
	"time"

	id "credara/pkg/domain"
	dErrors "credara/pkg/domain-errors"
)

// Role partitions the profiles table into four disjoint behavioral subtypes
// sharing one physical representation. It is fixed at onboarding and never
// changes afterwards.
type Role string

const (
	RoleIndividual Role = "INDIVIDUAL"
	RoleLandlord   Role = "LANDLORD"
	RoleFintech    Role = "FINTECH"
	RoleAdmin      Role = "ADMIN"
)

func (r Role) Valid() bool {
	switch r {
	case RoleIndividual, RoleLandlord, RoleFintech, RoleAdmin:
		return true
	}
	return false
}

// IsInstitution reports whether the role consumes reports (landlord/fintech).
func (r Role) IsInstitution() bool {
	return r == RoleLandlord || r == RoleFintech
}

type VerificationStatus string

const (
	VerificationNotStarted VerificationStatus = "NOT_STARTED"
	VerificationInProgress VerificationStatus = "IN_PROGRESS"
	VerificationVerified   VerificationStatus = "VERIFIED"
	VerificationRejected   VerificationStatus = "REJECTED"
)

func (v VerificationStatus) Valid() bool {
	switch v {
	case VerificationNotStarted, VerificationInProgress, VerificationVerified, VerificationRejected:
		return true
	}
	return false
}

type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

type SubscriptionStatus string

const (
	SubscriptionActive  SubscriptionStatus = "ACTIVE"
	SubscriptionExpired SubscriptionStatus = "EXPIRED"
	SubscriptionNone    SubscriptionStatus = "NONE"
)

func (s SubscriptionStatus) Valid() bool {
	switch s {
	case SubscriptionActive, SubscriptionExpired, SubscriptionNone:
		return true
	}
	return false
}

type SubscriptionPlan string

const (
	PlanMonthly SubscriptionPlan = "MONTHLY"
	PlanYearly  SubscriptionPlan = "YEARLY"
)

func (p SubscriptionPlan) Valid() bool {
	return p == PlanMonthly || p == PlanYearly
}

// AdminLevel scopes admin permissions. Currently informational; all admins
// pass the same guard.
type AdminLevel string

const (
	AdminSuper    AdminLevel = "SUPER"
	AdminVerifier AdminLevel = "VERIFIER"
	AdminFinance  AdminLevel = "FINANCE"
	AdminSupport  AdminLevel = "SUPPORT"
)

// Trust score bounds. Writes clamp into this range rather than rejecting, so
// malformed admin input can never corrupt the stored range.
const (
	TrustScoreMin = 1
	TrustScoreMax = 100
)

// CreditsPerUnlock is the fixed landlord cost of one report unlock.
const CreditsPerUnlock = 1

// Profile is the single entity representing any authenticated party, tagged
// by role. Storage keeps one superset row; which fields are meaningful
// depends on Role.
//
// Invariants:
//   - ID and Role are immutable after creation
//   - CredaraID, once assigned, is never reassigned
//   - CreditBalance >= 0 at all times
//   - TotalCreditsPurchased and TotalReportsUnlocked never decrease
//   - TrustScore, when set, lies in [TrustScoreMin, TrustScoreMax]
type Profile struct {
	ID        id.ProfileID `json:"id"`
	Role      Role         `json:"role"`
	CredaraID id.CredaraID `json:"credara_id,omitempty"`
	Phone     string       `json:"phone"`
	Email     *string      `json:"email,omitempty"`
	FullName  *string      `json:"full_name,omitempty"`

	// Institution fields (landlord/fintech).
	InstitutionType *Role      `json:"institution_type,omitempty"`
	BusinessName    *string    `json:"business_name,omitempty"`
	IsActive        bool       `json:"is_active"`
	LastLogin       *time.Time `json:"last_login,omitempty"`

	// Individual fields.
	TrustScore           *int                `json:"trust_score,omitempty"`
	VerificationStatus   VerificationStatus  `json:"verification_status,omitempty"`
	LastVerificationDate *time.Time          `json:"last_verification_date,omitempty"`
	InternalNotes        *string             `json:"-"`
	TrustReport          *TrustReportContent `json:"-"`

	// Landlord fields.
	CreditBalance          int        `json:"credit_balance"`
	TotalCreditsPurchased  int        `json:"total_credits_purchased"`
	LastCreditPurchaseDate *time.Time `json:"last_credit_purchase_date,omitempty"`

	// Fintech fields.
	SubscriptionStatus    SubscriptionStatus `json:"subscription_status,omitempty"`
	SubscriptionPlan      *SubscriptionPlan  `json:"subscription_plan,omitempty"`
	SubscriptionStartDate *time.Time         `json:"subscription_start_date,omitempty"`
	SubscriptionEndDate   *time.Time         `json:"subscription_end_date,omitempty"`

	// Institution-shared counter.
	TotalReportsUnlocked int `json:"total_reports_unlocked"`

	// Admin fields.
	AdminLevel *AdminLevel `json:"admin_level,omitempty"`
	LastActive *time.Time  `json:"last_active,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (p *Profile) IsIndividual() bool  { return p.Role == RoleIndividual }
func (p *Profile) IsInstitution() bool { return p.Role.IsInstitution() }
func (p *Profile) IsAdmin() bool       { return p.Role == RoleAdmin }

// RiskLevel derives the risk label from the current trust score. The stored
// column is never read back as a source of truth; every mapping recomputes
// from the score so label and score cannot drift.
func (p *Profile) RiskLevel() *RiskLevel {
	return RiskLevelOf(p.TrustScore)
}

// RiskLevelOf is the single source of truth for score -> risk mapping.
// Nil score means not yet scored and maps to nil.
func RiskLevelOf(score *int) *RiskLevel {
	if score == nil {
		return nil
	}
	var level RiskLevel
	switch {
	case *score >= 67:
		level = RiskLow
	case *score >= 34:
		level = RiskMedium
	default:
		level = RiskHigh
	}
	return &level
}

// ClampTrustScore forces a score into the valid range. Out-of-range values
// are clamped, not rejected.
func ClampTrustScore(score int) int {
	if score < TrustScoreMin {
		return TrustScoreMin
	}
	if score > TrustScoreMax {
		return TrustScoreMax
	}
	return score
}

// NewProfile builds a profile with role-appropriate defaults. Institution
// rows get institutionType mirroring the role, isActive true and zeroed
// counters; individuals start NOT_STARTED with no score; fintechs start with
// no subscription.
func NewProfile(profileID id.ProfileID, role Role, credaraID id.CredaraID, phone string, email, fullName, businessName *string, now time.Time) (*Profile, error) {
	if profileID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "profile id is required")
	}
	if !role.Valid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "invalid role")
	}
	if phone == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "phone is required")
	}

	p := &Profile{
		ID:        profileID,
		Role:      role,
		CredaraID: credaraID,
		Phone:     phone,
		Email:     email,
		FullName:  fullName,
		CreatedAt: now,
		UpdatedAt: now,
	}
	switch {
	case role == RoleIndividual:
		p.VerificationStatus = VerificationNotStarted
	case role.IsInstitution():
		instType := role
		p.InstitutionType = &instType
		p.BusinessName = businessName
		p.IsActive = true
		if role == RoleFintech {
			p.SubscriptionStatus = SubscriptionNone
		}
	}
	return p, nil
}

// ApplyVerification records an admin verification decision. Only VERIFIED
// and REJECTED are admin-settable; the in-between states belong to the
// individual's own flow.
func (p *Profile) ApplyVerification(status VerificationStatus, now time.Time) error {
	if !p.IsIndividual() {
		return dErrors.New(dErrors.CodeNotFound, "user not found or not an individual")
	}
	if status != VerificationVerified && status != VerificationRejected {
		return dErrors.New(dErrors.CodeValidation, "status must be VERIFIED or REJECTED")
	}
	p.VerificationStatus = status
	p.LastVerificationDate = &now
	p.UpdatedAt = now
	return nil
}

// ApplyScoreOverride sets the trust score, clamping into the valid range.
func (p *Profile) ApplyScoreOverride(score int, now time.Time) error {
	if !p.IsIndividual() {
		return dErrors.New(dErrors.CodeNotFound, "user not found or not an individual")
	}
	clamped := ClampTrustScore(score)
	p.TrustScore = &clamped
	p.UpdatedAt = now
	return nil
}

// ApplyInternalNotes stores admin-only notes; an empty string clears them.
func (p *Profile) ApplyInternalNotes(notes string, now time.Time) error {
	if !p.IsIndividual() {
		return dErrors.New(dErrors.CodeNotFound, "user not found or not an individual")
	}
	if notes == "" {
		p.InternalNotes = nil
	} else {
		p.InternalNotes = &notes
	}
	p.UpdatedAt = now
	return nil
}

// ApplyCreditTopUp adds prepaid credits to a landlord. Amount must be
// positive; both the balance and the lifetime counter move together so the
// monotonic purchase history stays consistent.
func (p *Profile) ApplyCreditTopUp(amount int, now time.Time) error {
	if p.Role != RoleLandlord {
		return dErrors.New(dErrors.CodeNotFound, "user not found or not a landlord")
	}
	if amount <= 0 {
		return dErrors.New(dErrors.CodeValidation, "amount must be positive")
	}
	p.CreditBalance += amount
	p.TotalCreditsPurchased += amount
	p.LastCreditPurchaseDate = &now
	p.UpdatedAt = now
	return nil
}

// SubscriptionUpdate carries a full or partial replace of fintech
// subscription fields. Nil pointers leave the field untouched except Status,
// which is required.
type SubscriptionUpdate struct {
	Status    SubscriptionStatus
	Plan      *SubscriptionPlan
	StartDate *time.Time
	EndDate   *time.Time
}

// ApplySubscriptionUpdate replaces fintech subscription state.
func (p *Profile) ApplySubscriptionUpdate(update SubscriptionUpdate, now time.Time) error {
	if p.Role != RoleFintech {
		return dErrors.New(dErrors.CodeNotFound, "user not found or not a fintech")
	}
	if !update.Status.Valid() {
		return dErrors.New(dErrors.CodeValidation, "invalid subscription status")
	}
	if update.Plan != nil && !update.Plan.Valid() {
		return dErrors.New(dErrors.CodeValidation, "invalid subscription plan")
	}
	p.SubscriptionStatus = update.Status
	if update.Plan != nil {
		p.SubscriptionPlan = update.Plan
	}
	if update.StartDate != nil {
		p.SubscriptionStartDate = update.StartDate
	}
	if update.EndDate != nil {
		p.SubscriptionEndDate = update.EndDate
	}
	p.UpdatedAt = now
	return nil
}

// CanConsumeUnlock checks the institution's consumption rule without
// mutating: landlords need balance for the fixed cost, fintechs need an
// active subscription.
func (p *Profile) CanConsumeUnlock() error {
	switch p.Role {
	case RoleLandlord:
		if p.CreditBalance < CreditsPerUnlock {
			return dErrors.New(dErrors.CodeInsufficientResource, "Insufficient credits")
		}
		return nil
	case RoleFintech:
		if p.SubscriptionStatus != SubscriptionActive {
			return dErrors.New(dErrors.CodeInsufficientResource, "Subscription is not active")
		}
		return nil
	default:
		return dErrors.New(dErrors.CodeForbidden, "forbidden")
	}
}

// ApplyUnlockConsumption debits the landlord cost (fintechs pay nothing) and
// bumps the unlock counter. Call CanConsumeUnlock first; the two are split
// so the service can validate, snapshot, then mutate inside one transaction.
func (p *Profile) ApplyUnlockConsumption(now time.Time) error {
	if err := p.CanConsumeUnlock(); err != nil {
		return err
	}
	if p.Role == RoleLandlord {
		p.CreditBalance -= CreditsPerUnlock
	}
	p.TotalReportsUnlocked++
	p.UpdatedAt = now
	return nil
}
