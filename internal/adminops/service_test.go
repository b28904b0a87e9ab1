package adminops

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"credara/internal/audit"
	auditstore "credara/internal/audit/store"
	"credara/internal/profile/models"
	"credara/internal/profile/store"
	id "credara/pkg/domain"
	dErrors "credara/pkg/domain-errors"
	"credara/pkg/platform/tx"
	"credara/pkg/requestcontext"
)

type ServiceSuite struct {
	suite.Suite
	ctx      context.Context
	profiles *store.InMemory
	auditLog *auditstore.InMemory
	svc      *Service
	adminID  id.ProfileID
	now      time.Time
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	s.profiles = store.NewInMemory()
	s.auditLog = auditstore.NewInMemory()
	s.svc = New(s.profiles, s.auditLog, tx.NewMemoryRunner())
	s.adminID = id.NewProfileID()
}

func (s *ServiceSuite) insert(role models.Role) *models.Profile {
	credaraID, err := id.NewCredaraID()
	s.Require().NoError(err)
	var businessName *string
	if role.IsInstitution() {
		b := "Biz"
		businessName = &b
	}
	name := "Test User"
	p, err := models.NewProfile(id.NewProfileID(), role, credaraID, "+2348012345678", nil, &name, businessName, s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.profiles.Insert(s.ctx, p))
	return p
}

// auditEntries returns the full trail for a target, newest first.
func (s *ServiceSuite) auditEntries(targetID id.ProfileID) []*audit.Entry {
	entries, err := s.auditLog.List(s.ctx, audit.Filter{TargetUserID: targetID})
	s.Require().NoError(err)
	return entries
}

func (s *ServiceSuite) TestSetVerificationStatus() {
	s.Run("approve writes one audit entry", func() {
		target := s.insert(models.RoleIndividual)
		got, err := s.svc.SetVerificationStatus(s.ctx, s.adminID, target.ID, models.VerificationVerified)
		s.Require().NoError(err)
		s.Equal(models.VerificationVerified, got.VerificationStatus)
		s.Require().NotNil(got.LastVerificationDate)

		entries := s.auditEntries(target.ID)
		s.Require().Len(entries, 1)
		s.Equal(audit.ActionVerificationApprove, entries[0].Action)
		s.Equal(s.adminID, entries[0].AdminID)
		s.Equal("VERIFIED", entries[0].Details["status"])
	})

	s.Run("reject uses the reject action", func() {
		target := s.insert(models.RoleIndividual)
		_, err := s.svc.SetVerificationStatus(s.ctx, s.adminID, target.ID, models.VerificationRejected)
		s.Require().NoError(err)

		entries := s.auditEntries(target.ID)
		s.Require().Len(entries, 1)
		s.Equal(audit.ActionVerificationReject, entries[0].Action)
	})

	s.Run("failed mutation leaves no audit entry", func() {
		target := s.insert(models.RoleLandlord)
		_, err := s.svc.SetVerificationStatus(s.ctx, s.adminID, target.ID, models.VerificationVerified)
		s.Require().True(dErrors.HasCode(err, dErrors.CodeNotFound))
		s.Empty(s.auditEntries(target.ID))
	})

	s.Run("missing target is not found", func() {
		_, err := s.svc.SetVerificationStatus(s.ctx, s.adminID, id.NewProfileID(), models.VerificationVerified)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ServiceSuite) TestOverrideScore() {
	target := s.insert(models.RoleIndividual)

	got, err := s.svc.OverrideScore(s.ctx, s.adminID, target.ID, 500)
	s.Require().NoError(err)
	s.Require().NotNil(got.TrustScore)
	s.Equal(100, *got.TrustScore)

	entries := s.auditEntries(target.ID)
	s.Require().Len(entries, 1)
	s.Equal(audit.ActionScoreOverride, entries[0].Action)
	s.Equal("set to 100", entries[0].Details["note"])
}

func (s *ServiceSuite) TestUpdateProfileFields() {
	s.Run("partial update records changed fields", func() {
		target := s.insert(models.RoleIndividual)
		name := "New Name"
		got, err := s.svc.UpdateProfileFields(s.ctx, s.adminID, target.ID, ProfileFieldsUpdate{FullName: &name})
		s.Require().NoError(err)
		s.Equal("New Name", *got.FullName)

		entries := s.auditEntries(target.ID)
		s.Require().Len(entries, 1)
		s.Equal(audit.ActionProfileUpdate, entries[0].Action)
		s.Equal("New Name", entries[0].Details["full_name"])
	})

	s.Run("empty update is a validation error", func() {
		target := s.insert(models.RoleIndividual)
		_, err := s.svc.UpdateProfileFields(s.ctx, s.adminID, target.ID, ProfileFieldsUpdate{})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("malformed credara id is rejected before the transaction", func() {
		target := s.insert(models.RoleIndividual)
		bad := "not-an-id"
		_, err := s.svc.UpdateProfileFields(s.ctx, s.adminID, target.ID, ProfileFieldsUpdate{CredaraID: &bad})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.Empty(s.auditEntries(target.ID))
	})

	s.Run("credara id collision conflicts", func() {
		target := s.insert(models.RoleIndividual)
		other := s.insert(models.RoleIndividual)
		taken := other.CredaraID.String()
		_, err := s.svc.UpdateProfileFields(s.ctx, s.adminID, target.ID, ProfileFieldsUpdate{CredaraID: &taken})
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})
}

func (s *ServiceSuite) TestSetInternalNotes() {
	target := s.insert(models.RoleIndividual)

	got, err := s.svc.SetInternalNotes(s.ctx, s.adminID, target.ID, "flagged for review")
	s.Require().NoError(err)
	s.Require().NotNil(got.InternalNotes)
	s.Equal("flagged for review", *got.InternalNotes)

	got, err = s.svc.SetInternalNotes(s.ctx, s.adminID, target.ID, "")
	s.Require().NoError(err)
	s.Nil(got.InternalNotes)
	s.Len(s.auditEntries(target.ID), 2)
}

func (s *ServiceSuite) TestUpdateTrustReportContent() {
	target := s.insert(models.RoleIndividual)

	raw := []byte(`{"identity": {"name_match": "Match", "phone_age": "bogus"}}`)
	got, err := s.svc.UpdateTrustReportContent(s.ctx, s.adminID, target.ID, raw)
	s.Require().NoError(err)
	s.Require().NotNil(got.TrustReport)
	s.Equal("Match", got.TrustReport.Identity.NameMatch)
	s.Empty(got.TrustReport.Identity.PhoneAge)
	s.Len(s.auditEntries(target.ID), 1)
}

func (s *ServiceSuite) TestAddCredits() {
	s.Run("tops up with payment reference in the trail", func() {
		target := s.insert(models.RoleLandlord)
		ref := "pay-123"
		got, err := s.svc.AddCredits(s.ctx, s.adminID, target.ID, 5, &ref)
		s.Require().NoError(err)
		s.Equal(5, got.CreditBalance)

		entries := s.auditEntries(target.ID)
		s.Require().Len(entries, 1)
		s.Equal(audit.ActionCreditAdd, entries[0].Action)
		s.Equal(5, entries[0].Details["amount"])
		s.Equal("pay-123", entries[0].Details["payment_reference"])
	})

	s.Run("non-landlord target is not found", func() {
		target := s.insert(models.RoleFintech)
		_, err := s.svc.AddCredits(s.ctx, s.adminID, target.ID, 5, nil)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("non-positive amount is rejected", func() {
		target := s.insert(models.RoleLandlord)
		_, err := s.svc.AddCredits(s.ctx, s.adminID, target.ID, 0, nil)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.Empty(s.auditEntries(target.ID))
	})
}

func (s *ServiceSuite) TestUpdateSubscription() {
	target := s.insert(models.RoleFintech)
	plan := models.PlanYearly

	got, err := s.svc.UpdateSubscription(s.ctx, s.adminID, target.ID, models.SubscriptionUpdate{
		Status: models.SubscriptionActive,
		Plan:   &plan,
	})
	s.Require().NoError(err)
	s.Equal(models.SubscriptionActive, got.SubscriptionStatus)

	entries := s.auditEntries(target.ID)
	s.Require().Len(entries, 1)
	s.Equal(audit.ActionSubscriptionActivate, entries[0].Action)
	s.Equal("ACTIVE", entries[0].Details["status"])
	s.Equal("YEARLY", entries[0].Details["plan"])
}

func (s *ServiceSuite) TestGetUser() {
	target := s.insert(models.RoleIndividual)

	got, err := s.svc.GetUser(s.ctx, target.ID)
	s.Require().NoError(err)
	s.Equal(target.ID, got.ID)

	_, err = s.svc.GetUser(s.ctx, id.NewProfileID())
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestListUsers() {
	for i := 0; i < 3; i++ {
		s.insert(models.RoleIndividual)
	}
	s.insert(models.RoleLandlord)

	s.Run("paginates with defaults", func() {
		page, err := s.svc.ListUsers(s.ctx, ListFilter{}, 0, 0)
		s.Require().NoError(err)
		s.Equal(4, page.Total)
		s.Equal(1, page.Page)
		s.Equal(DefaultPageSize, page.PageSize)
	})

	s.Run("caps oversized pages", func() {
		page, err := s.svc.ListUsers(s.ctx, ListFilter{}, 1, 10_000)
		s.Require().NoError(err)
		s.Equal(MaxPageSize, page.PageSize)
	})

	s.Run("filters by role", func() {
		page, err := s.svc.ListUsers(s.ctx, ListFilter{Role: models.RoleLandlord}, 1, 10)
		s.Require().NoError(err)
		s.Equal(1, page.Total)
		s.Len(page.Users, 1)
	})
}

func (s *ServiceSuite) TestListAuditLogs() {
	target := s.insert(models.RoleIndividual)
	_, err := s.svc.OverrideScore(s.ctx, s.adminID, target.ID, 50)
	s.Require().NoError(err)
	_, err = s.svc.SetVerificationStatus(s.ctx, s.adminID, target.ID, models.VerificationVerified)
	s.Require().NoError(err)

	page, err := s.svc.ListAuditLogs(s.ctx, audit.Filter{AdminID: s.adminID}, 1, 10)
	s.Require().NoError(err)
	s.Equal(2, page.Total)
	s.Len(page.Entries, 2)

	page, err = s.svc.ListAuditLogs(s.ctx, audit.Filter{Action: audit.ActionScoreOverride}, 1, 10)
	s.Require().NoError(err)
	s.Equal(1, page.Total)
}

func (s *ServiceSuite) TestGetStats() {
	verified := s.insert(models.RoleIndividual)
	_, err := s.svc.SetVerificationStatus(s.ctx, s.adminID, verified.ID, models.VerificationVerified)
	s.Require().NoError(err)
	s.insert(models.RoleIndividual)
	s.insert(models.RoleLandlord)
	s.insert(models.RoleFintech)
	s.insert(models.RoleAdmin)

	stats, err := s.svc.GetStats(s.ctx)
	s.Require().NoError(err)
	s.Equal(4, stats.TotalUsers)
	s.Equal(2, stats.Individuals)
	s.Equal(1, stats.Landlords)
	s.Equal(1, stats.Fintechs)
	s.Equal(1, stats.VerifiedIndividuals)
	s.Equal(0, stats.PendingIndividuals)
}
