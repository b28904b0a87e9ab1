// Package identity abstracts authentication. The portal's domain logic only
// ever sees an Identity; how credentials are checked and sessions tracked is
// the provider's business. The local provider signs JWTs itself; a hosted
// provider could replace it without touching guards or services.
package identity

import (
	"context"
	"time"

	id "credara/pkg/domain"
)

// Identity is the authenticated principal behind a request. UserID doubles as
// the profile ID: one identity maps to exactly one profile row.
type Identity struct {
	UserID id.ProfileID
	Phone  string
	Email  *string
}

// Tokens is what a successful sign-in hands back to the client.
type Tokens struct {
	AccessToken string       `json:"access_token"`
	SessionID   id.SessionID `json:"session_id"`
	ExpiresAt   time.Time    `json:"expires_at"`
}

// Provider is the authentication boundary. Authenticate must re-check the
// session on every call; callers never cache its result across requests.
type Provider interface {
	// SignUp registers credentials and returns the new identity. The profile
	// row is created later during onboarding, keyed by the returned UserID.
	SignUp(ctx context.Context, phone string, email *string, password string) (*Identity, error)

	// SignIn verifies credentials against the phone (or email) and opens a
	// session.
	SignIn(ctx context.Context, login, password string) (*Identity, *Tokens, error)

	// ExchangeAuthorizationCode redeems a one-time authorization code, such
	// as the one embedded in a password-reset link, for a session. Codes are
	// single use.
	ExchangeAuthorizationCode(ctx context.Context, code string) (*Identity, *Tokens, error)

	// Authenticate resolves an access token to a live identity. It fails with
	// CodeUnauthorized for expired tokens and revoked sessions alike.
	Authenticate(ctx context.Context, accessToken string) (*Identity, error)

	// SignOut revokes the session behind the token. Revoking an already
	// revoked session is a no-op.
	SignOut(ctx context.Context, accessToken string) error

	// UpdatePassword rotates the password after verifying the current one.
	// All other sessions of the user are revoked on success.
	UpdatePassword(ctx context.Context, userID id.ProfileID, currentPassword, newPassword string) error

	// ResetPassword starts the password-reset flow for the account behind
	// the email. It never reveals whether such an account exists; delivery
	// of the reset link is the provider's concern.
	ResetPassword(ctx context.Context, email, redirectURL string) error
}
