// Package store persists profiles. Two implementations share the same
// behavior: InMemory for unit tests and dev seeding, Postgres for real
// deployments. Services define their own narrow interfaces over these.
package store

import (
	"strings"
	"time"

	"credara/internal/profile/models"
)

// Filter selects profiles for list/count queries. Zero values mean "no
// constraint". Search matches case-insensitive substrings across full name,
// email, phone and credara ID.
type Filter struct {
	Role               models.Role
	ExcludeRole        models.Role
	VerificationStatus models.VerificationStatus
	Search             string
	Limit              int
	Offset             int
}

func (f Filter) matches(p *models.Profile) bool {
	if f.Role != "" && p.Role != f.Role {
		return false
	}
	if f.ExcludeRole != "" && p.Role == f.ExcludeRole {
		return false
	}
	if f.VerificationStatus != "" && p.VerificationStatus != f.VerificationStatus {
		return false
	}
	if term := strings.TrimSpace(f.Search); term != "" {
		if !matchesSearch(p, term) {
			return false
		}
	}
	return true
}

func matchesSearch(p *models.Profile, term string) bool {
	term = strings.ToLower(term)
	candidates := []string{p.Phone, string(p.CredaraID)}
	if p.FullName != nil {
		candidates = append(candidates, *p.FullName)
	}
	if p.Email != nil {
		candidates = append(candidates, *p.Email)
	}
	for _, c := range candidates {
		if strings.Contains(strings.ToLower(c), term) {
			return true
		}
	}
	return false
}

// clone returns a deep copy so callers can never mutate stored state through
// a returned pointer.
func clone(p *models.Profile) *models.Profile {
	c := *p
	c.Email = cloneStr(p.Email)
	c.FullName = cloneStr(p.FullName)
	c.InstitutionType = cloneRole(p.InstitutionType)
	c.BusinessName = cloneStr(p.BusinessName)
	c.TrustScore = cloneInt(p.TrustScore)
	c.LastVerificationDate = cloneTime(p.LastVerificationDate)
	c.InternalNotes = cloneStr(p.InternalNotes)
	c.LastCreditPurchaseDate = cloneTime(p.LastCreditPurchaseDate)
	c.SubscriptionPlan = clonePlan(p.SubscriptionPlan)
	c.SubscriptionStartDate = cloneTime(p.SubscriptionStartDate)
	c.SubscriptionEndDate = cloneTime(p.SubscriptionEndDate)
	c.LastLogin = cloneTime(p.LastLogin)
	c.AdminLevel = cloneAdminLevel(p.AdminLevel)
	c.LastActive = cloneTime(p.LastActive)
	if p.TrustReport != nil {
		report := *p.TrustReport
		report.References = append([]models.TrustReportRef(nil), p.TrustReport.References...)
		c.TrustReport = &report
	}
	return &c
}

func cloneStr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneInt(n *int) *int {
	if n == nil {
		return nil
	}
	v := *n
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneRole(r *models.Role) *models.Role {
	if r == nil {
		return nil
	}
	v := *r
	return &v
}

func clonePlan(p *models.SubscriptionPlan) *models.SubscriptionPlan {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneAdminLevel(l *models.AdminLevel) *models.AdminLevel {
	if l == nil {
		return nil
	}
	v := *l
	return &v
}
