// Package store persists the unlock ledger. Rows are append-only; the unique
// (institution, target) pair is what makes unlock idempotent.
package store

import (
	"context"
	"sort"
	"sync"

	"credara/internal/unlock"
	id "credara/pkg/domain"
	"credara/pkg/platform/sentinel"
)

type pairKey struct {
	institution id.ProfileID
	target      id.ProfileID
}

// InMemory is a map-backed unlock ledger for tests and dev mode.
type InMemory struct {
	mu    sync.RWMutex
	rows  []*unlock.Unlock
	pairs map[pairKey]*unlock.Unlock
}

func NewInMemory() *InMemory {
	return &InMemory{pairs: make(map[pairKey]*unlock.Unlock)}
}

func (s *InMemory) Insert(_ context.Context, u *unlock.Unlock) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pairKey{institution: u.InstitutionUserID, target: u.TargetProfileID}
	if _, exists := s.pairs[key]; exists {
		return sentinel.ErrAlreadyUsed
	}
	c := cloneUnlock(u)
	s.rows = append(s.rows, c)
	s.pairs[key] = c
	return nil
}

func (s *InMemory) FindByPair(_ context.Context, institutionID, targetID id.ProfileID) (*unlock.Unlock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.pairs[pairKey{institution: institutionID, target: targetID}]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneUnlock(u), nil
}

// ExistsForTargets is the batched membership check behind search results.
// Returns the subset of targetIDs the institution has unlocked.
func (s *InMemory) ExistsForTargets(_ context.Context, institutionID id.ProfileID, targetIDs []id.ProfileID) (map[id.ProfileID]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	unlocked := make(map[id.ProfileID]bool, len(targetIDs))
	for _, targetID := range targetIDs {
		if _, ok := s.pairs[pairKey{institution: institutionID, target: targetID}]; ok {
			unlocked[targetID] = true
		}
	}
	return unlocked, nil
}

func (s *InMemory) ListByInstitution(_ context.Context, institutionID id.ProfileID, limit, offset int) ([]*unlock.Unlock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*unlock.Unlock
	for _, u := range s.rows {
		if u.InstitutionUserID == institutionID {
			out = append(out, cloneUnlock(u))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UnlockedAt.Equal(out[j].UnlockedAt) {
			return out[i].UnlockedAt.After(out[j].UnlockedAt)
		}
		return out[i].ID.String() > out[j].ID.String()
	})

	if offset > 0 {
		if offset >= len(out) {
			return nil, nil
		}
		out = out[offset:]
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemory) CountByInstitution(_ context.Context, institutionID id.ProfileID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, u := range s.rows {
		if u.InstitutionUserID == institutionID {
			count++
		}
	}
	return count, nil
}

func cloneUnlock(u *unlock.Unlock) *unlock.Unlock {
	c := *u
	if u.Snapshot.FullName != nil {
		name := *u.Snapshot.FullName
		c.Snapshot.FullName = &name
	}
	if u.Snapshot.TrustScore != nil {
		score := *u.Snapshot.TrustScore
		c.Snapshot.TrustScore = &score
	}
	if u.Snapshot.RiskLevel != nil {
		level := *u.Snapshot.RiskLevel
		c.Snapshot.RiskLevel = &level
	}
	return &c
}
