// Package onboarding moves an authenticated identity from "no profile" to
// "profile with role". The role is fixed here and never changes afterwards.
package onboarding

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/nyaruka/phonenumbers"

	"credara/internal/identity"
	"credara/internal/profile/models"
	id "credara/pkg/domain"
	dErrors "credara/pkg/domain-errors"
	"credara/pkg/platform/sentinel"
	"credara/pkg/requestcontext"
)

// DefaultPhoneRegion is applied when the phone number carries no country
// prefix. The portal launched in Nigeria.
const DefaultPhoneRegion = "NG"

// userTypeToRole is the only way a caller can obtain a role. ADMIN is absent
// on purpose: admin profiles are created by seeding, never by self-service.
var userTypeToRole = map[string]models.Role{
	"individual": models.RoleIndividual,
	"landlord":   models.RoleLandlord,
	"fintech":    models.RoleFintech,
}

// Input is the onboarding form. BusinessName is required for institution
// user types and ignored for individuals.
type Input struct {
	UserType     string  `json:"user_type"`
	Phone        string  `json:"phone"`
	FullName     *string `json:"full_name,omitempty"`
	BusinessName *string `json:"business_name,omitempty"`
}

// ProfileStore is the persistence surface onboarding needs.
type ProfileStore interface {
	Insert(ctx context.Context, p *models.Profile) error
	Update(ctx context.Context, p *models.Profile) error
	FindByID(ctx context.Context, profileID id.ProfileID) (*models.Profile, error)
}

type Service struct {
	store       ProfileStore
	phoneRegion string
	logger      *slog.Logger
}

type Option func(*Service)

func WithPhoneRegion(region string) Option {
	return func(s *Service) {
		if region != "" {
			s.phoneRegion = region
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewService(store ProfileStore, opts ...Option) *Service {
	s := &Service{
		store:       store,
		phoneRegion: DefaultPhoneRegion,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// CompleteOnboarding creates the caller's profile, or routes them onward if
// one already exists. Re-entry is idempotent: a complete profile is returned
// unchanged, a partial one (no credara ID) is upgraded in place.
func (s *Service) CompleteOnboarding(ctx context.Context, ident *identity.Identity, input Input) (*models.Profile, error) {
	role, phone, err := s.validate(input)
	if err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)

	existing, err := s.store.FindByID(ctx, ident.UserID)
	switch {
	case err == nil:
		if !existing.CredaraID.IsZero() {
			return existing, nil
		}
		// Partial row without an assigned ID. Finish it in place.
		credaraID, err := id.NewCredaraID()
		if err != nil {
			return nil, err
		}
		existing.CredaraID = credaraID
		existing.Phone = phone
		existing.UpdatedAt = now
		if err := s.store.Update(ctx, existing); err != nil {
			return nil, s.storeFailure(ctx, err)
		}
		s.logger.InfoContext(ctx, "onboarding completed partial profile",
			"user_id", ident.UserID.String(), "role", string(existing.Role))
		return existing, nil
	case errors.Is(err, sentinel.ErrNotFound):
		// Fall through to a fresh insert.
	default:
		return nil, s.storeFailure(ctx, err)
	}

	credaraID, err := id.NewCredaraID()
	if err != nil {
		return nil, err
	}
	profile, err := models.NewProfile(
		ident.UserID, role, credaraID, phone,
		ident.Email, trimPtr(input.FullName), trimPtr(input.BusinessName), now,
	)
	if err != nil {
		return nil, err
	}
	if err := s.store.Insert(ctx, profile); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			// Lost a race with a concurrent onboarding call. Honor
			// idempotence by returning whatever won.
			winner, findErr := s.store.FindByID(ctx, ident.UserID)
			if findErr == nil {
				return winner, nil
			}
		}
		return nil, s.storeFailure(ctx, err)
	}

	s.logger.InfoContext(ctx, "onboarding completed",
		"user_id", ident.UserID.String(), "role", string(role), "credara_id", profile.CredaraID.String())
	return profile, nil
}

func (s *Service) validate(input Input) (models.Role, string, error) {
	fields := map[string]string{}

	role, ok := userTypeToRole[strings.ToLower(strings.TrimSpace(input.UserType))]
	if !ok {
		fields["user_type"] = "user type must be individual, landlord or fintech"
	}

	phone := strings.TrimSpace(input.Phone)
	if phone == "" {
		fields["phone"] = "phone is required"
	} else {
		parsed, err := phonenumbers.Parse(phone, s.phoneRegion)
		if err != nil || !phonenumbers.IsValidNumber(parsed) {
			fields["phone"] = "phone is not a valid number"
		} else {
			phone = phonenumbers.Format(parsed, phonenumbers.E164)
		}
	}

	if ok && role.IsInstitution() {
		if trimPtr(input.BusinessName) == nil {
			fields["business_name"] = "business name is required"
		}
	}

	if len(fields) > 0 {
		return "", "", dErrors.NewValidation(fields)
	}
	return role, phone, nil
}

func (s *Service) storeFailure(ctx context.Context, err error) error {
	s.logger.ErrorContext(ctx, "onboarding storage failure", "error", err)
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to complete onboarding")
}

func trimPtr(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
