// Package seed loads a small demo dataset for development: one admin, two
// individuals in different verification states, a landlord with credits and a
// fintech with an active subscription. Never enabled in production.
package seed

import (
	"context"
	"log/slog"
	"time"

	"credara/internal/identity"
	"credara/internal/profile/models"
	id "credara/pkg/domain"
	dErrors "credara/pkg/domain-errors"
)

// Password is shared by every demo account.
const Password = "credara-demo"

type ProfileStore interface {
	Insert(ctx context.Context, p *models.Profile) error
	Update(ctx context.Context, p *models.Profile) error
}

type user struct {
	phone        string
	email        string
	fullName     string
	businessName string
	role         models.Role
	customize    func(p *models.Profile, now time.Time)
}

var users = []user{
	{
		phone:    "+2348012345671",
		email:    "ada.verified@example.com",
		fullName: "Ada Obi",
		role:     models.RoleIndividual,
		customize: func(p *models.Profile, now time.Time) {
			score := 75
			p.TrustScore = &score
			p.VerificationStatus = models.VerificationVerified
			p.LastVerificationDate = &now
		},
	},
	{
		phone:    "+2348012345672",
		email:    "tunde.pending@example.com",
		fullName: "Tunde Bello",
		role:     models.RoleIndividual,
		customize: func(p *models.Profile, now time.Time) {
			p.VerificationStatus = models.VerificationInProgress
		},
	},
	{
		phone:        "+2348012345673",
		email:        "landlord@example.com",
		fullName:     "Ngozi Eze",
		businessName: "Eze Properties",
		role:         models.RoleLandlord,
		customize: func(p *models.Profile, now time.Time) {
			p.CreditBalance = 10
			p.TotalCreditsPurchased = 10
			p.LastCreditPurchaseDate = &now
		},
	},
	{
		phone:        "+2348012345674",
		email:        "fintech@example.com",
		fullName:     "Femi Ade",
		businessName: "Swift Lending",
		role:         models.RoleFintech,
		customize: func(p *models.Profile, now time.Time) {
			plan := models.PlanMonthly
			start := now.AddDate(0, -1, 0)
			end := now.AddDate(0, 1, 0)
			p.SubscriptionStatus = models.SubscriptionActive
			p.SubscriptionPlan = &plan
			p.SubscriptionStartDate = &start
			p.SubscriptionEndDate = &end
		},
	},
	{
		phone:    "+2348012345675",
		email:    "admin@example.com",
		fullName: "Chidi Okeke",
		role:     models.RoleAdmin,
		customize: func(p *models.Profile, now time.Time) {
			level := models.AdminSuper
			p.AdminLevel = &level
		},
	},
}

// Run creates the demo accounts and profiles. Safe to call on every startup:
// accounts that already exist are skipped.
func Run(ctx context.Context, provider identity.Provider, profiles ProfileStore, logger *slog.Logger) error {
	now := time.Now().UTC()
	for _, u := range users {
		email := u.email
		ident, err := provider.SignUp(ctx, u.phone, &email, Password)
		if dErrors.HasCode(err, dErrors.CodeConflict) {
			continue
		}
		if err != nil {
			return err
		}

		credaraID, err := id.NewCredaraID()
		if err != nil {
			return err
		}
		fullName := u.fullName
		var businessName *string
		if u.businessName != "" {
			name := u.businessName
			businessName = &name
		}
		profile, err := models.NewProfile(ident.UserID, u.role, credaraID, u.phone, &email, &fullName, businessName, now)
		if err != nil {
			return err
		}
		if u.customize != nil {
			u.customize(profile, now)
		}
		if err := profiles.Insert(ctx, profile); err != nil {
			return err
		}
		logger.InfoContext(ctx, "seeded demo user",
			"role", string(u.role), "email", email, "credara_id", credaraID.String())
	}
	return nil
}
