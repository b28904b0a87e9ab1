// Package local is the built-in identity provider: bcrypt credentials, HS256
// access tokens and revocable sessions. It exists so the portal runs without
// an external auth service; everything behind identity.Provider is swappable.
package local

import (
	"context"
	"time"

	id "credara/pkg/domain"
)

// Account holds one set of credentials. Its ID is the profile ID.
type Account struct {
	ID           id.ProfileID
	Phone        string
	Email        *string
	PasswordHash []byte
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Session is one live sign-in. A session is valid until it expires or is
// revoked, whichever comes first.
type Session struct {
	ID        id.SessionID `json:"id"`
	UserID    id.ProfileID `json:"user_id"`
	CreatedAt time.Time    `json:"created_at"`
	ExpiresAt time.Time    `json:"expires_at"`
}

// AccountStore persists credentials. Implementations return sentinel errors;
// the provider translates them to domain errors.
type AccountStore interface {
	Insert(ctx context.Context, a *Account) error
	FindByID(ctx context.Context, userID id.ProfileID) (*Account, error)
	// FindByLogin matches either the phone or the email.
	FindByLogin(ctx context.Context, login string) (*Account, error)
	UpdatePasswordHash(ctx context.Context, userID id.ProfileID, hash []byte, now time.Time) error
}

// SessionStore tracks live sessions. Find must not return expired or revoked
// sessions.
type SessionStore interface {
	Create(ctx context.Context, s *Session) error
	Find(ctx context.Context, sessionID id.SessionID) (*Session, error)
	Revoke(ctx context.Context, sessionID id.SessionID) error
	RevokeAllForUser(ctx context.Context, userID id.ProfileID) error
}
