package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"credara/internal/profile/models"
	id "credara/pkg/domain"
	"credara/pkg/platform/sentinel"
)

// InMemory is a map-backed profile store for tests and dev mode. It enforces
// the same uniqueness rules as the SQL schema: primary key on id, unique
// credara_id.
type InMemory struct {
	mu        sync.RWMutex
	profiles  map[id.ProfileID]*models.Profile
	credaraID map[id.CredaraID]id.ProfileID
}

func NewInMemory() *InMemory {
	return &InMemory{
		profiles:  make(map[id.ProfileID]*models.Profile),
		credaraID: make(map[id.CredaraID]id.ProfileID),
	}
}

func (s *InMemory) Insert(_ context.Context, p *models.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.profiles[p.ID]; exists {
		return sentinel.ErrAlreadyUsed
	}
	if !p.CredaraID.IsZero() {
		if _, taken := s.credaraID[p.CredaraID]; taken {
			return sentinel.ErrAlreadyUsed
		}
		s.credaraID[p.CredaraID] = p.ID
	}
	s.profiles[p.ID] = clone(p)
	return nil
}

func (s *InMemory) Update(_ context.Context, p *models.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.profiles[p.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if !p.CredaraID.IsZero() && p.CredaraID != existing.CredaraID {
		if owner, taken := s.credaraID[p.CredaraID]; taken && owner != p.ID {
			return sentinel.ErrAlreadyUsed
		}
		delete(s.credaraID, existing.CredaraID)
		s.credaraID[p.CredaraID] = p.ID
	}
	s.profiles[p.ID] = clone(p)
	return nil
}

func (s *InMemory) FindByID(_ context.Context, profileID id.ProfileID) (*models.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[profileID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(p), nil
}

// FindByIDForUpdate matches the postgres store's row-locking read. The
// in-memory runner already serializes whole transactions behind one lock, so
// a plain read is equivalent here.
func (s *InMemory) FindByIDForUpdate(ctx context.Context, profileID id.ProfileID) (*models.Profile, error) {
	return s.FindByID(ctx, profileID)
}

func (s *InMemory) List(_ context.Context, f Filter) ([]*models.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Profile
	for _, p := range s.profiles {
		if f.matches(p) {
			out = append(out, clone(p))
		}
	}
	// Newest first; ID breaks ties so pagination stays stable.
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() > out[j].ID.String()
	})

	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return nil, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *InMemory) Count(_ context.Context, f Filter) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, p := range s.profiles {
		if f.matches(p) {
			count++
		}
	}
	return count, nil
}

// SearchIndividuals returns individual profiles matching the term across
// phone, credara ID, full name and email, capped at limit.
func (s *InMemory) SearchIndividuals(ctx context.Context, term string, limit int) ([]*models.Profile, error) {
	return s.List(ctx, Filter{
		Role:   models.RoleIndividual,
		Search: strings.TrimSpace(term),
		Limit:  limit,
	})
}
