// Package store persists audit entries. The trail is append-only: neither
// implementation exposes update or delete.
package store

import (
	"context"
	"sort"
	"sync"

	"credara/internal/audit"
)

// InMemory is a slice-backed audit store for tests and dev mode.
type InMemory struct {
	mu      sync.RWMutex
	entries []*audit.Entry
}

func NewInMemory() *InMemory {
	return &InMemory{}
}

func (s *InMemory) Append(_ context.Context, e *audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := *e
	if e.TargetUserID != nil {
		t := *e.TargetUserID
		c.TargetUserID = &t
	}
	if e.Details != nil {
		details := make(map[string]any, len(e.Details))
		for k, v := range e.Details {
			details[k] = v
		}
		c.Details = details
	}
	s.entries = append(s.entries, &c)
	return nil
}

func (s *InMemory) List(_ context.Context, f audit.Filter) ([]*audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*audit.Entry
	for _, e := range s.entries {
		if matches(e, f) {
			c := *e
			out = append(out, &c)
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

func (s *InMemory) Count(_ context.Context, f audit.Filter) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, e := range s.entries {
		if matches(e, f) {
			count++
		}
	}
	return count, nil
}

func matches(e *audit.Entry, f audit.Filter) bool {
	if !f.AdminID.IsNil() && e.AdminID != f.AdminID {
		return false
	}
	if !f.TargetUserID.IsNil() {
		if e.TargetUserID == nil || *e.TargetUserID != f.TargetUserID {
			return false
		}
	}
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	return true
}
