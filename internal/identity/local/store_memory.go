package local

import (
	"context"
	"strings"
	"sync"
	"time"

	id "credara/pkg/domain"
	"credara/pkg/platform/sentinel"
)

// InMemoryAccounts is a map-backed account store for tests and dev mode. It
// enforces the same uniqueness as the SQL schema: unique phone, unique email.
type InMemoryAccounts struct {
	mu       sync.RWMutex
	accounts map[id.ProfileID]*Account
}

func NewInMemoryAccounts() *InMemoryAccounts {
	return &InMemoryAccounts{accounts: make(map[id.ProfileID]*Account)}
}

func (s *InMemoryAccounts) Insert(_ context.Context, a *Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.accounts[a.ID]; exists {
		return sentinel.ErrAlreadyUsed
	}
	for _, existing := range s.accounts {
		if existing.Phone == a.Phone {
			return sentinel.ErrAlreadyUsed
		}
		if existing.Email != nil && a.Email != nil && strings.EqualFold(*existing.Email, *a.Email) {
			return sentinel.ErrAlreadyUsed
		}
	}
	s.accounts[a.ID] = cloneAccount(a)
	return nil
}

func (s *InMemoryAccounts) FindByID(_ context.Context, userID id.ProfileID) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneAccount(a), nil
}

func (s *InMemoryAccounts) FindByLogin(_ context.Context, login string) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, a := range s.accounts {
		if a.Phone == login {
			return cloneAccount(a), nil
		}
		if a.Email != nil && strings.EqualFold(*a.Email, login) {
			return cloneAccount(a), nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryAccounts) UpdatePasswordHash(_ context.Context, userID id.ProfileID, hash []byte, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[userID]
	if !ok {
		return sentinel.ErrNotFound
	}
	a.PasswordHash = append([]byte(nil), hash...)
	a.UpdatedAt = now
	return nil
}

func cloneAccount(a *Account) *Account {
	c := *a
	c.PasswordHash = append([]byte(nil), a.PasswordHash...)
	if a.Email != nil {
		email := *a.Email
		c.Email = &email
	}
	return &c
}

// InMemorySessions is a map-backed session store. Expiry is checked on read.
type InMemorySessions struct {
	mu       sync.RWMutex
	sessions map[id.SessionID]*Session
}

func NewInMemorySessions() *InMemorySessions {
	return &InMemorySessions{sessions: make(map[id.SessionID]*Session)}
}

func (s *InMemorySessions) Create(_ context.Context, sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[sess.ID]; exists {
		return sentinel.ErrAlreadyUsed
	}
	c := *sess
	s.sessions[sess.ID] = &c
	return nil
}

func (s *InMemorySessions) Find(_ context.Context, sessionID id.SessionID) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[sessionID]
	if !ok || time.Now().After(sess.ExpiresAt) {
		return nil, sentinel.ErrNotFound
	}
	c := *sess
	return &c, nil
}

func (s *InMemorySessions) Revoke(_ context.Context, sessionID id.SessionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, sessionID)
	return nil
}

func (s *InMemorySessions) RevokeAllForUser(_ context.Context, userID id.ProfileID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for sid, sess := range s.sessions {
		if sess.UserID == userID {
			delete(s.sessions, sid)
		}
	}
	return nil
}
