package unlock

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"credara/internal/unlock/metrics"

	"credara/internal/profile/models"
	id "credara/pkg/domain"
	dErrors "credara/pkg/domain-errors"
	"credara/pkg/platform/sentinel"
	"credara/pkg/platform/tx"
	"credara/pkg/requestcontext"
)

const (
	// MinSearchTermLength rejects near-empty queries before they become
	// full-table scans.
	MinSearchTermLength = 2
	// MaxSearchResults caps one search page.
	MaxSearchResults = 20
	// MaxPageSize bounds the unlocked-reports listing.
	MaxPageSize = 100
	// DefaultPageSize applies when the caller does not ask for a size.
	DefaultPageSize = 10
)

type ProfileStore interface {
	FindByID(ctx context.Context, profileID id.ProfileID) (*models.Profile, error)
	FindByIDForUpdate(ctx context.Context, profileID id.ProfileID) (*models.Profile, error)
	Update(ctx context.Context, p *models.Profile) error
	SearchIndividuals(ctx context.Context, term string, limit int) ([]*models.Profile, error)
}

type LedgerStore interface {
	Insert(ctx context.Context, u *Unlock) error
	FindByPair(ctx context.Context, institutionID, targetID id.ProfileID) (*Unlock, error)
	ExistsForTargets(ctx context.Context, institutionID id.ProfileID, targetIDs []id.ProfileID) (map[id.ProfileID]bool, error)
	ListByInstitution(ctx context.Context, institutionID id.ProfileID, limit, offset int) ([]*Unlock, error)
	CountByInstitution(ctx context.Context, institutionID id.ProfileID) (int, error)
}

type Service struct {
	profiles ProfileStore
	ledger   LedgerStore
	runner   tx.Runner
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func NewService(profiles ProfileStore, ledger LedgerStore, runner tx.Runner, opts ...Option) *Service {
	s := &Service{
		profiles: profiles,
		ledger:   ledger,
		runner:   runner,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// SearchResult is one row of an institution's individual search. Score and
// report content are absent on purpose: those require an unlock.
type SearchResult struct {
	ID                 id.ProfileID              `json:"id"`
	CredaraID          string                    `json:"credara_id"`
	FullName           *string                   `json:"full_name,omitempty"`
	Phone              string                    `json:"phone"`
	VerificationStatus models.VerificationStatus `json:"verification_status"`
	HasUnlocked        bool                      `json:"has_unlocked"`
}

// SearchLookup finds individuals matching the term and annotates each with
// whether the institution has already unlocked them. The annotation is one
// batched existence check, not a query per row.
func (s *Service) SearchLookup(ctx context.Context, institution *models.Profile, term string) ([]SearchResult, error) {
	start := time.Now()
	term = strings.TrimSpace(term)
	if len(term) < MinSearchTermLength {
		return []SearchResult{}, nil
	}

	matches, err := s.profiles.SearchIndividuals(ctx, term, MaxSearchResults)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "search failed")
	}

	targetIDs := make([]id.ProfileID, len(matches))
	for i, m := range matches {
		targetIDs[i] = m.ID
	}
	unlocked, err := s.ledger.ExistsForTargets(ctx, institution.ID, targetIDs)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "search failed")
	}

	results := make([]SearchResult, len(matches))
	for i, m := range matches {
		results[i] = SearchResult{
			ID:                 m.ID,
			CredaraID:          m.CredaraID.String(),
			FullName:           m.FullName,
			Phone:              m.Phone,
			VerificationStatus: m.VerificationStatus,
			HasUnlocked:        unlocked[m.ID],
		}
	}
	if s.metrics != nil {
		s.metrics.ObserveSearchLookup(start)
	}
	return results, nil
}

// UnlockResult is the outcome of an unlock call. Repeat is true when the pair
// was already unlocked and nothing was charged.
type UnlockResult struct {
	Unlock *Unlock `json:"unlock"`
	Repeat bool    `json:"repeat"`
}

// errPairExists aborts the unlock transaction when the pair turns out to be
// unlocked already, either at the locked re-check or at the ledger insert.
var errPairExists = errors.New("unlock pair already exists")

// UnlockReport grants the institution access to the target's report. Landlords
// pay the fixed credit cost, fintechs pass on an active subscription. The
// debit, counter bump and ledger insert commit as one transaction; the unlock
// is idempotent per pair, so a repeat call returns the existing row unchanged.
func (s *Service) UnlockReport(ctx context.Context, institutionID, targetID id.ProfileID) (*UnlockResult, error) {
	start := time.Now()
	now := requestcontext.Now(ctx)

	// Fast path outside the transaction: an existing pair never charges.
	if existing, err := s.ledger.FindByPair(ctx, institutionID, targetID); err == nil {
		if s.metrics != nil {
			s.metrics.IncrementRepeat()
		}
		return &UnlockResult{Unlock: existing, Repeat: true}, nil
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check unlock ledger")
	}

	var created *Unlock
	var role models.Role
	err := s.runner.RunInTx(ctx, func(txCtx context.Context) error {
		// Lock the institution row first. Concurrent unlocks against the
		// same balance serialize here, which is what keeps creditBalance
		// from going negative.
		institution, err := s.profiles.FindByIDForUpdate(txCtx, institutionID)
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeForbidden, "forbidden")
		}
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load institution")
		}
		role = institution.Role

		// Re-check the pair under the lock. A winner that committed after
		// the fast-path check is visible now, and the debit below must not
		// run for a pair that already exists: stores without rollback would
		// keep the charge.
		if _, err := s.ledger.FindByPair(txCtx, institutionID, targetID); err == nil {
			return errPairExists
		} else if !errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check unlock ledger")
		}

		target, err := s.profiles.FindByID(txCtx, targetID)
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "user not found or not an individual")
		}
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load target")
		}
		if !target.IsIndividual() {
			return dErrors.New(dErrors.CodeNotFound, "user not found or not an individual")
		}

		creditsBefore := institution.CreditBalance
		if err := institution.ApplyUnlockConsumption(now); err != nil {
			return err
		}
		if err := s.profiles.Update(txCtx, institution); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to apply consumption")
		}

		created, err = NewUnlock(institutionID, targetID, creditsBefore-institution.CreditBalance, SnapshotOf(target), now)
		if err != nil {
			return err
		}
		if err := s.ledger.Insert(txCtx, created); err != nil {
			if errors.Is(err, sentinel.ErrAlreadyUsed) {
				return errPairExists
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record unlock")
		}
		return nil
	})

	if errors.Is(err, errPairExists) {
		// Lost a race. The locked re-check fires before any charge; the
		// unique constraint is the SQL backstop behind it. Return the
		// winner's row.
		existing, findErr := s.ledger.FindByPair(ctx, institutionID, targetID)
		if findErr != nil {
			return nil, dErrors.Wrap(findErr, dErrors.CodeInternal, "failed to load existing unlock")
		}
		if s.metrics != nil {
			s.metrics.IncrementRepeat()
		}
		return &UnlockResult{Unlock: existing, Repeat: true}, nil
	}
	if err != nil {
		if s.metrics != nil && dErrors.HasCode(err, dErrors.CodeInsufficientResource) {
			s.metrics.IncrementDenied(deniedReason(role))
		}
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncrementUnlock(string(role))
		s.metrics.ObserveUnlock(start)
	}
	s.logger.InfoContext(ctx, "report unlocked",
		"institution_id", institutionID.String(),
		"target_id", targetID.String(),
		"credits_spent", created.CreditsSpent)
	return &UnlockResult{Unlock: created}, nil
}

// Report is the full report view an institution sees after unlocking. Content
// is the target's current state, not the unlock-time snapshot; only the list
// view renders frozen snapshots.
type Report struct {
	ID                   id.ProfileID               `json:"id"`
	CredaraID            string                     `json:"credara_id"`
	FullName             *string                    `json:"full_name,omitempty"`
	Phone                string                     `json:"phone"`
	TrustScore           *int                       `json:"trust_score,omitempty"`
	RiskLevel            *models.RiskLevel          `json:"risk_level,omitempty"`
	VerificationStatus   models.VerificationStatus  `json:"verification_status"`
	LastVerificationDate *time.Time                 `json:"last_verification_date,omitempty"`
	Content              *models.TrustReportContent `json:"content,omitempty"`
	UnlockedAt           time.Time                  `json:"unlocked_at"`
}

// GetReportByTargetID returns the target's report, gated on an existing
// unlock for the pair. No unlock row means not found, full stop; this is what
// makes unlock an access-control gate rather than just a billing event.
func (s *Service) GetReportByTargetID(ctx context.Context, institutionID, targetID id.ProfileID) (*Report, error) {
	row, err := s.ledger.FindByPair(ctx, institutionID, targetID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "report not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check unlock ledger")
	}

	target, err := s.profiles.FindByID(ctx, targetID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "report not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load report")
	}

	return &Report{
		ID:                   target.ID,
		CredaraID:            target.CredaraID.String(),
		FullName:             target.FullName,
		Phone:                target.Phone,
		TrustScore:           target.TrustScore,
		RiskLevel:            target.RiskLevel(),
		VerificationStatus:   target.VerificationStatus,
		LastVerificationDate: target.LastVerificationDate,
		Content:              target.TrustReport,
		UnlockedAt:           row.UnlockedAt,
	}, nil
}

// UnlockPage is one page of an institution's unlock history, rendered from
// frozen snapshots.
type UnlockPage struct {
	Unlocks  []*Unlock `json:"unlocks"`
	Total    int       `json:"total"`
	Page     int       `json:"page"`
	PageSize int       `json:"page_size"`
}

// GetUnlockedReports lists the institution's own unlocks, newest first.
func (s *Service) GetUnlockedReports(ctx context.Context, institutionID id.ProfileID, page, pageSize int) (*UnlockPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	unlocks, err := s.ledger.ListByInstitution(ctx, institutionID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list unlocks")
	}
	total, err := s.ledger.CountByInstitution(ctx, institutionID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count unlocks")
	}
	return &UnlockPage{Unlocks: unlocks, Total: total, Page: page, PageSize: pageSize}, nil
}

func deniedReason(role models.Role) string {
	if role == models.RoleFintech {
		return "subscription_inactive"
	}
	return "insufficient_credits"
}
