package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	id "credara/pkg/domain"
	dErrors "credara/pkg/domain-errors"
)

type ProfileSuite struct {
	suite.Suite
	now time.Time
}

func TestProfileSuite(t *testing.T) {
	suite.Run(t, new(ProfileSuite))
}

func (s *ProfileSuite) SetupTest() {
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

func (s *ProfileSuite) newProfile(role Role) *Profile {
	credaraID, err := id.NewCredaraID()
	s.Require().NoError(err)
	business := "Acme"
	var businessName *string
	if role.IsInstitution() {
		businessName = &business
	}
	p, err := NewProfile(id.NewProfileID(), role, credaraID, "+2348012345678", nil, nil, businessName, s.now)
	s.Require().NoError(err)
	return p
}

// ====================================================================
// Risk derivation
// ====================================================================

func (s *ProfileSuite) TestRiskLevelOf() {
	low, medium, high := RiskLow, RiskMedium, RiskHigh
	cases := []struct {
		name  string
		score *int
		want  *RiskLevel
	}{
		{"nil score maps to nil", nil, nil},
		{"minimum score is high", intPtr(1), &high},
		{"33 is high", intPtr(33), &high},
		{"34 is the medium boundary", intPtr(34), &medium},
		{"66 is medium", intPtr(66), &medium},
		{"67 is the low boundary", intPtr(67), &low},
		{"maximum score is low", intPtr(100), &low},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			got := RiskLevelOf(tc.score)
			if tc.want == nil {
				s.Nil(got)
				return
			}
			s.Require().NotNil(got)
			s.Equal(*tc.want, *got)
		})
	}
}

func (s *ProfileSuite) TestClampTrustScore() {
	s.Equal(1, ClampTrustScore(-5))
	s.Equal(1, ClampTrustScore(0))
	s.Equal(50, ClampTrustScore(50))
	s.Equal(100, ClampTrustScore(500))
}

// ====================================================================
// Construction defaults
// ====================================================================

func (s *ProfileSuite) TestNewProfileDefaults() {
	s.Run("individual starts not started with no score", func() {
		p := s.newProfile(RoleIndividual)
		s.Equal(VerificationNotStarted, p.VerificationStatus)
		s.Nil(p.TrustScore)
		s.Nil(p.InstitutionType)
		s.False(p.IsActive)
	})

	s.Run("landlord gets institution defaults", func() {
		p := s.newProfile(RoleLandlord)
		s.Require().NotNil(p.InstitutionType)
		s.Equal(RoleLandlord, *p.InstitutionType)
		s.True(p.IsActive)
		s.Zero(p.CreditBalance)
	})

	s.Run("fintech starts with no subscription", func() {
		p := s.newProfile(RoleFintech)
		s.Equal(SubscriptionNone, p.SubscriptionStatus)
	})

	s.Run("rejects missing phone", func() {
		_, err := NewProfile(id.NewProfileID(), RoleIndividual, "", "", nil, nil, nil, s.now)
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})
}

// ====================================================================
// Mutators
// ====================================================================

func (s *ProfileSuite) TestApplyVerification() {
	s.Run("records decision and stamps dates", func() {
		p := s.newProfile(RoleIndividual)
		s.Require().NoError(p.ApplyVerification(VerificationVerified, s.now))
		s.Equal(VerificationVerified, p.VerificationStatus)
		s.Require().NotNil(p.LastVerificationDate)
		s.Equal(s.now, *p.LastVerificationDate)
	})

	s.Run("rejects in-between states", func() {
		p := s.newProfile(RoleIndividual)
		err := p.ApplyVerification(VerificationInProgress, s.now)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("non-individual target reads as not found", func() {
		p := s.newProfile(RoleLandlord)
		err := p.ApplyVerification(VerificationVerified, s.now)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ProfileSuite) TestApplyScoreOverride() {
	p := s.newProfile(RoleIndividual)

	s.Require().NoError(p.ApplyScoreOverride(500, s.now))
	s.Require().NotNil(p.TrustScore)
	s.Equal(100, *p.TrustScore)

	s.Require().NoError(p.ApplyScoreOverride(-5, s.now))
	s.Equal(1, *p.TrustScore)
}

func (s *ProfileSuite) TestApplyCreditTopUp() {
	s.Run("moves balance and lifetime counter together", func() {
		p := s.newProfile(RoleLandlord)
		s.Require().NoError(p.ApplyCreditTopUp(5, s.now))
		s.Require().NoError(p.ApplyCreditTopUp(3, s.now))
		s.Equal(8, p.CreditBalance)
		s.Equal(8, p.TotalCreditsPurchased)
		s.NotNil(p.LastCreditPurchaseDate)
	})

	s.Run("rejects non-positive amounts", func() {
		p := s.newProfile(RoleLandlord)
		s.True(dErrors.HasCode(p.ApplyCreditTopUp(0, s.now), dErrors.CodeValidation))
		s.True(dErrors.HasCode(p.ApplyCreditTopUp(-1, s.now), dErrors.CodeValidation))
	})

	s.Run("fintech target reads as not found", func() {
		p := s.newProfile(RoleFintech)
		s.True(dErrors.HasCode(p.ApplyCreditTopUp(5, s.now), dErrors.CodeNotFound))
	})
}

func (s *ProfileSuite) TestApplySubscriptionUpdate() {
	s.Run("replaces provided fields only", func() {
		p := s.newProfile(RoleFintech)
		plan := PlanMonthly
		s.Require().NoError(p.ApplySubscriptionUpdate(SubscriptionUpdate{
			Status: SubscriptionActive,
			Plan:   &plan,
		}, s.now))
		s.Equal(SubscriptionActive, p.SubscriptionStatus)
		s.Require().NotNil(p.SubscriptionPlan)
		s.Equal(PlanMonthly, *p.SubscriptionPlan)
		s.Nil(p.SubscriptionEndDate)
	})

	s.Run("rejects invalid status", func() {
		p := s.newProfile(RoleFintech)
		err := p.ApplySubscriptionUpdate(SubscriptionUpdate{Status: "LAPSED"}, s.now)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

// ====================================================================
// Unlock consumption rules
// ====================================================================

func (s *ProfileSuite) TestUnlockConsumption() {
	s.Run("landlord debits the fixed cost", func() {
		p := s.newProfile(RoleLandlord)
		s.Require().NoError(p.ApplyCreditTopUp(2, s.now))

		s.Require().NoError(p.ApplyUnlockConsumption(s.now))
		s.Equal(1, p.CreditBalance)
		s.Equal(1, p.TotalReportsUnlocked)
	})

	s.Run("landlord with empty balance is denied without mutation", func() {
		p := s.newProfile(RoleLandlord)
		err := p.ApplyUnlockConsumption(s.now)
		s.True(dErrors.HasCode(err, dErrors.CodeInsufficientResource))
		s.Zero(p.TotalReportsUnlocked)
	})

	s.Run("fintech needs an active subscription and pays nothing", func() {
		p := s.newProfile(RoleFintech)
		err := p.ApplyUnlockConsumption(s.now)
		s.True(dErrors.HasCode(err, dErrors.CodeInsufficientResource))

		s.Require().NoError(p.ApplySubscriptionUpdate(SubscriptionUpdate{Status: SubscriptionActive}, s.now))
		s.Require().NoError(p.ApplyUnlockConsumption(s.now))
		s.Zero(p.CreditBalance)
		s.Equal(1, p.TotalReportsUnlocked)
	})

	s.Run("expired subscription is denied", func() {
		p := s.newProfile(RoleFintech)
		s.Require().NoError(p.ApplySubscriptionUpdate(SubscriptionUpdate{Status: SubscriptionExpired}, s.now))
		err := p.ApplyUnlockConsumption(s.now)
		s.True(dErrors.HasCode(err, dErrors.CodeInsufficientResource))
	})

	s.Run("individuals cannot consume", func() {
		p := s.newProfile(RoleIndividual)
		s.True(dErrors.HasCode(p.CanConsumeUnlock(), dErrors.CodeForbidden))
	})
}

func intPtr(n int) *int { return &n }
