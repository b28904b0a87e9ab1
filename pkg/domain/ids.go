// Package domain holds shared domain primitives: typed identifiers that make
// cross-entity mixups a compile error instead of a runtime bug.
package domain

import (
	"github.com/google/uuid"

	dErrors "credara/pkg/domain-errors"
)

// ProfileID identifies a profile row. It equals the identity-provider-issued
// user ID, so one identity maps to exactly one profile.
type ProfileID uuid.UUID

// UnlockID identifies a report unlock ledger row.
type UnlockID uuid.UUID

// AuditLogID identifies an audit log row.
type AuditLogID uuid.UUID

// SessionID identifies an authenticated session.
type SessionID uuid.UUID

func (id ProfileID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id ProfileID) String() string { return uuid.UUID(id).String() }

func (id UnlockID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id UnlockID) String() string { return uuid.UUID(id).String() }

func (id AuditLogID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id AuditLogID) String() string { return uuid.UUID(id).String() }

func (id SessionID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id SessionID) String() string { return uuid.UUID(id).String() }

// Defined types do not inherit uuid.UUID's text marshaling, so each ID
// implements it explicitly. Without these, JSON encoding would render IDs as
// raw byte arrays.

func (id ProfileID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id *ProfileID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	if err != nil {
		return err
	}
	*id = ProfileID(u)
	return nil
}

func (id UnlockID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id *UnlockID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	if err != nil {
		return err
	}
	*id = UnlockID(u)
	return nil
}

func (id AuditLogID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id *AuditLogID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	if err != nil {
		return err
	}
	*id = AuditLogID(u)
	return nil
}

func (id SessionID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id *SessionID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	if err != nil {
		return err
	}
	*id = SessionID(u)
	return nil
}

// NewProfileID returns a fresh random profile ID.
func NewProfileID() ProfileID { return ProfileID(uuid.New()) }

// NewUnlockID returns a fresh random unlock ID.
func NewUnlockID() UnlockID { return UnlockID(uuid.New()) }

// NewAuditLogID returns a fresh random audit log ID.
func NewAuditLogID() AuditLogID { return AuditLogID(uuid.New()) }

// NewSessionID returns a fresh random session ID.
func NewSessionID() SessionID { return SessionID(uuid.New()) }

// ParseProfileID validates and parses a profile ID from its string form.
// IDs must be valid, non-nil UUIDs; anything else is rejected at the trust
// boundary so stores never see malformed keys.
func ParseProfileID(s string) (ProfileID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return ProfileID{}, err
	}
	return ProfileID(u), nil
}

// ParseUnlockID validates and parses an unlock ID from its string form.
func ParseUnlockID(s string) (UnlockID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return UnlockID{}, err
	}
	return UnlockID(u), nil
}

func parseUUID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeValidation, "id is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeValidation, "id is not a valid UUID")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeValidation, "id must not be the nil UUID")
	}
	return u, nil
}
