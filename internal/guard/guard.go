// Package guard is the single authorization chokepoint. Every protected
// operation starts with a guard call, and every guard call re-resolves the
// session and re-reads the profile. Nothing here is cached: a revoked session
// or changed role takes effect on the very next request.
package guard

import (
	"context"
	"errors"

	"credara/internal/identity"
	"credara/internal/profile/models"
	id "credara/pkg/domain"
	dErrors "credara/pkg/domain-errors"
	"credara/pkg/platform/sentinel"
	"credara/pkg/requestcontext"
)

// ProfileFinder is the narrow read the guard needs from the profile store.
type ProfileFinder interface {
	FindByID(ctx context.Context, profileID id.ProfileID) (*models.Profile, error)
}

type Guard struct {
	provider identity.Provider
	profiles ProfileFinder
}

func New(provider identity.Provider, profiles ProfileFinder) *Guard {
	return &Guard{provider: provider, profiles: profiles}
}

// RequireAuthenticated resolves the bearer token in context to an identity.
// It succeeds even when no profile row exists yet, because a freshly signed-up
// user must reach the onboarding endpoint.
func (g *Guard) RequireAuthenticated(ctx context.Context) (*identity.Identity, error) {
	return g.provider.Authenticate(ctx, requestcontext.AccessToken(ctx))
}

// RequireProfile resolves identity and profile together. Authenticated users
// without a profile get CodeForbidden with a message steering them to
// onboarding.
func (g *Guard) RequireProfile(ctx context.Context) (*identity.Identity, *models.Profile, error) {
	ident, err := g.RequireAuthenticated(ctx)
	if err != nil {
		return nil, nil, err
	}
	profile, err := g.profiles.FindByID(ctx, ident.UserID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, nil, dErrors.New(dErrors.CodeForbidden, "onboarding not completed")
	}
	if err != nil {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load profile")
	}
	return ident, profile, nil
}

// RequireRole demands an exact role match.
func (g *Guard) RequireRole(ctx context.Context, role models.Role) (*identity.Identity, *models.Profile, error) {
	ident, profile, err := g.RequireProfile(ctx)
	if err != nil {
		return nil, nil, err
	}
	if profile.Role != role {
		return nil, nil, dErrors.New(dErrors.CodeForbidden, "forbidden")
	}
	return ident, profile, nil
}

// RequireAdmin demands the admin role.
func (g *Guard) RequireAdmin(ctx context.Context) (*identity.Identity, *models.Profile, error) {
	return g.RequireRole(ctx, models.RoleAdmin)
}

// RequireInstitution demands a report-consuming role (landlord or fintech).
// Deactivated institutions are rejected even with a live session.
func (g *Guard) RequireInstitution(ctx context.Context) (*identity.Identity, *models.Profile, error) {
	ident, profile, err := g.RequireProfile(ctx)
	if err != nil {
		return nil, nil, err
	}
	if !profile.IsInstitution() {
		return nil, nil, dErrors.New(dErrors.CodeForbidden, "forbidden")
	}
	if !profile.IsActive {
		return nil, nil, dErrors.New(dErrors.CodeForbidden, "account is deactivated")
	}
	return ident, profile, nil
}
