// Package adminops is the admin mutation pipeline. Every mutation follows the
// same shape: load the target inside a transaction, apply the change through
// a model mutator, persist, and append exactly one audit entry in the same
// transaction. A mutation without its audit row never commits.
package adminops

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"credara/internal/adminops/metrics"
	"credara/internal/audit"
	"credara/internal/profile/models"
	"credara/internal/profile/store"
	id "credara/pkg/domain"
	dErrors "credara/pkg/domain-errors"
	"credara/pkg/platform/sentinel"
	"credara/pkg/platform/tx"
	"credara/pkg/requestcontext"
)

// MaxPageSize bounds read queries so no admin endpoint can trigger an
// unbounded scan.
const MaxPageSize = 100

// DefaultPageSize applies when the caller does not ask for a size.
const DefaultPageSize = 20

type ProfileStore interface {
	FindByID(ctx context.Context, profileID id.ProfileID) (*models.Profile, error)
	FindByIDForUpdate(ctx context.Context, profileID id.ProfileID) (*models.Profile, error)
	Update(ctx context.Context, p *models.Profile) error
	List(ctx context.Context, f store.Filter) ([]*models.Profile, error)
	Count(ctx context.Context, f store.Filter) (int, error)
}

type AuditStore interface {
	Append(ctx context.Context, e *audit.Entry) error
	List(ctx context.Context, f audit.Filter) ([]*audit.Entry, error)
	Count(ctx context.Context, f audit.Filter) (int, error)
}

// AuditAnnouncer fans committed audit entries out to a stream. Optional and
// best-effort; called only after the transaction commits.
type AuditAnnouncer interface {
	Publish(ctx context.Context, e *audit.Entry)
}

type Service struct {
	profiles  ProfileStore
	auditLog  AuditStore
	runner    tx.Runner
	announcer AuditAnnouncer
	logger    *slog.Logger
	metrics   *metrics.Metrics
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

func WithAuditAnnouncer(a AuditAnnouncer) Option {
	return func(s *Service) {
		s.announcer = a
	}
}

func New(profiles ProfileStore, auditLog AuditStore, runner tx.Runner, opts ...Option) *Service {
	s := &Service{
		profiles: profiles,
		auditLog: auditLog,
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

// SetVerificationStatus records an admin verification decision on an
// individual. Only VERIFIED and REJECTED are accepted.
func (s *Service) SetVerificationStatus(ctx context.Context, adminID id.ProfileID, targetID id.ProfileID, status models.VerificationStatus) (*models.Profile, error) {
	action := audit.ActionVerificationApprove
	if status == models.VerificationRejected {
		action = audit.ActionVerificationReject
	}
	return s.mutate(ctx, adminID, targetID, action,
		func(p *models.Profile, now time.Time) (map[string]any, error) {
			if err := p.ApplyVerification(status, now); err != nil {
				return nil, err
			}
			return map[string]any{"status": string(status)}, nil
		})
}

// OverrideScore sets an individual's trust score, clamping out-of-range input.
func (s *Service) OverrideScore(ctx context.Context, adminID id.ProfileID, targetID id.ProfileID, score int) (*models.Profile, error) {
	return s.mutate(ctx, adminID, targetID, audit.ActionScoreOverride,
		func(p *models.Profile, now time.Time) (map[string]any, error) {
			if err := p.ApplyScoreOverride(score, now); err != nil {
				return nil, err
			}
			return map[string]any{"note": fmt.Sprintf("set to %d", *p.TrustScore)}, nil
		})
}

// ProfileFieldsUpdate is a partial update of an individual's identity fields.
// Nil pointers leave the field untouched.
type ProfileFieldsUpdate struct {
	FullName  *string
	Email     *string
	CredaraID *string
}

// UpdateProfileFields applies a privileged partial edit. All privileged
// profile edits are audited, even cosmetic ones.
func (s *Service) UpdateProfileFields(ctx context.Context, adminID id.ProfileID, targetID id.ProfileID, update ProfileFieldsUpdate) (*models.Profile, error) {
	var newCredaraID id.CredaraID
	if update.CredaraID != nil {
		parsed, err := id.ParseCredaraID(*update.CredaraID)
		if err != nil {
			return nil, err
		}
		newCredaraID = parsed
	}
	return s.mutate(ctx, adminID, targetID, audit.ActionProfileUpdate,
		func(p *models.Profile, now time.Time) (map[string]any, error) {
			if !p.IsIndividual() {
				return nil, dErrors.New(dErrors.CodeNotFound, "user not found or not an individual")
			}
			changed := map[string]any{}
			if update.FullName != nil {
				p.FullName = update.FullName
				changed["full_name"] = *update.FullName
			}
			if update.Email != nil {
				p.Email = update.Email
				changed["email"] = *update.Email
			}
			if !newCredaraID.IsZero() {
				p.CredaraID = newCredaraID
				changed["credara_id"] = newCredaraID.String()
			}
			if len(changed) == 0 {
				return nil, dErrors.New(dErrors.CodeValidation, "no fields to update")
			}
			p.UpdatedAt = now
			return changed, nil
		})
}

// SetInternalNotes stores admin-only notes on an individual.
func (s *Service) SetInternalNotes(ctx context.Context, adminID id.ProfileID, targetID id.ProfileID, notes string) (*models.Profile, error) {
	return s.mutate(ctx, adminID, targetID, audit.ActionProfileUpdate,
		func(p *models.Profile, now time.Time) (map[string]any, error) {
			if err := p.ApplyInternalNotes(notes, now); err != nil {
				return nil, err
			}
			return map[string]any{"field": "internal_notes"}, nil
		})
}

// UpdateTrustReportContent replaces an individual's structured report
// content. Input is normalized the same way reads are: unknown enum values
// are dropped rather than stored.
func (s *Service) UpdateTrustReportContent(ctx context.Context, adminID id.ProfileID, targetID id.ProfileID, raw []byte) (*models.Profile, error) {
	content := models.ParseTrustReportContent(raw)
	return s.mutate(ctx, adminID, targetID, audit.ActionProfileUpdate,
		func(p *models.Profile, now time.Time) (map[string]any, error) {
			if !p.IsIndividual() {
				return nil, dErrors.New(dErrors.CodeNotFound, "user not found or not an individual")
			}
			p.TrustReport = &content
			p.UpdatedAt = now
			return map[string]any{"field": "trust_report_content"}, nil
		})
}

// AddCredits tops up a landlord's prepaid balance.
func (s *Service) AddCredits(ctx context.Context, adminID id.ProfileID, targetID id.ProfileID, amount int, paymentReference *string) (*models.Profile, error) {
	return s.mutate(ctx, adminID, targetID, audit.ActionCreditAdd,
		func(p *models.Profile, now time.Time) (map[string]any, error) {
			if err := p.ApplyCreditTopUp(amount, now); err != nil {
				return nil, err
			}
			details := map[string]any{"amount": amount, "new_balance": p.CreditBalance}
			if paymentReference != nil {
				details["payment_reference"] = *paymentReference
			}
			return details, nil
		})
}

// UpdateSubscription replaces a fintech's subscription state.
func (s *Service) UpdateSubscription(ctx context.Context, adminID id.ProfileID, targetID id.ProfileID, update models.SubscriptionUpdate) (*models.Profile, error) {
	return s.mutate(ctx, adminID, targetID, audit.ActionSubscriptionActivate,
		func(p *models.Profile, now time.Time) (map[string]any, error) {
			if err := p.ApplySubscriptionUpdate(update, now); err != nil {
				return nil, err
			}
			details := map[string]any{"status": string(update.Status)}
			if update.Plan != nil {
				details["plan"] = string(*update.Plan)
			}
			return details, nil
		})
}

// mutate is the shared mutation skeleton: lock, load, apply, persist, audit.
func (s *Service) mutate(ctx context.Context, adminID id.ProfileID, targetID id.ProfileID, action audit.Action,
	apply func(p *models.Profile, now time.Time) (map[string]any, error)) (*models.Profile, error) {

	start := time.Now()
	now := requestcontext.Now(ctx)
	var result *models.Profile
	var entry *audit.Entry

	err := s.runner.RunInTx(ctx, func(txCtx context.Context) error {
		target, err := s.profiles.FindByIDForUpdate(txCtx, targetID)
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "user not found")
		}
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
		}

		details, err := apply(target, now)
		if err != nil {
			return err
		}
		if err := s.profiles.Update(txCtx, target); err != nil {
			if errors.Is(err, sentinel.ErrAlreadyUsed) {
				return dErrors.New(dErrors.CodeConflict, "credara id is already in use")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save user")
		}

		entry, err = audit.NewEntry(adminID, &targetID, action, details, now)
		if err != nil {
			return err
		}
		if err := s.auditLog.Append(txCtx, entry); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record audit entry")
		}
		result = target
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.announcer != nil {
		s.announcer.Publish(ctx, entry)
	}
	if s.metrics != nil {
		s.metrics.IncrementMutation(string(action))
		s.metrics.ObserveMutation(start)
	}
	s.logger.InfoContext(ctx, "admin mutation applied",
		"action", string(action), "admin_id", adminID.String(), "target_id", targetID.String())
	return result, nil
}

// GetUser returns the full profile, including admin-only fields.
func (s *Service) GetUser(ctx context.Context, targetID id.ProfileID) (*models.Profile, error) {
	p, err := s.profiles.FindByID(ctx, targetID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "user not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
	}
	return p, nil
}

// UserPage is one page of admin user listing results.
type UserPage struct {
	Users    []*models.Profile `json:"users"`
	Total    int               `json:"total"`
	Page     int               `json:"page"`
	PageSize int               `json:"page_size"`
}

// ListFilter narrows the user listing.
type ListFilter struct {
	Role               models.Role
	VerificationStatus models.VerificationStatus
	Search             string
}

// ListUsers returns a filtered, paginated user listing, newest first.
func (s *Service) ListUsers(ctx context.Context, filter ListFilter, page, pageSize int) (*UserPage, error) {
	start := time.Now()
	page, pageSize = normalizePage(page, pageSize)

	f := store.Filter{
		Role:               filter.Role,
		VerificationStatus: filter.VerificationStatus,
		Search:             filter.Search,
		Limit:              pageSize,
		Offset:             (page - 1) * pageSize,
	}
	users, err := s.profiles.List(ctx, f)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list users")
	}
	total, err := s.profiles.Count(ctx, store.Filter{
		Role:               filter.Role,
		VerificationStatus: filter.VerificationStatus,
		Search:             filter.Search,
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count users")
	}

	if s.metrics != nil {
		s.metrics.ObserveListUsers(start)
	}
	return &UserPage{Users: users, Total: total, Page: page, PageSize: pageSize}, nil
}

// AuditPage is one page of the audit trail.
type AuditPage struct {
	Entries  []*audit.Entry `json:"entries"`
	Total    int            `json:"total"`
	Page     int            `json:"page"`
	PageSize int            `json:"page_size"`
}

// ListAuditLogs returns the audit trail, newest first.
func (s *Service) ListAuditLogs(ctx context.Context, filter audit.Filter, page, pageSize int) (*AuditPage, error) {
	page, pageSize = normalizePage(page, pageSize)
	filter.Limit = pageSize
	filter.Offset = (page - 1) * pageSize

	entries, err := s.auditLog.List(ctx, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list audit logs")
	}
	filter.Limit, filter.Offset = 0, 0
	total, err := s.auditLog.Count(ctx, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count audit logs")
	}
	return &AuditPage{Entries: entries, Total: total, Page: page, PageSize: pageSize}, nil
}

// Stats is the admin dashboard aggregate. TotalUsers excludes admin rows.
type Stats struct {
	TotalUsers          int `json:"total_users"`
	Individuals         int `json:"individuals"`
	Landlords           int `json:"landlords"`
	Fintechs            int `json:"fintechs"`
	VerifiedIndividuals int `json:"verified_individuals"`
	RejectedIndividuals int `json:"rejected_individuals"`
	PendingIndividuals  int `json:"pending_individuals"`
}

// GetStats runs the dashboard counts in parallel. Each count is independent,
// so a fan-out keeps the dashboard snappy as the table grows.
func (s *Service) GetStats(ctx context.Context) (*Stats, error) {
	start := time.Now()
	var stats Stats

	count := func(dst *int, f store.Filter) func() error {
		return func() error {
			n, err := s.profiles.Count(ctx, f)
			if err != nil {
				return err
			}
			*dst = n
			return nil
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(count(&stats.TotalUsers, store.Filter{ExcludeRole: models.RoleAdmin}))
	g.Go(count(&stats.Individuals, store.Filter{Role: models.RoleIndividual}))
	g.Go(count(&stats.Landlords, store.Filter{Role: models.RoleLandlord}))
	g.Go(count(&stats.Fintechs, store.Filter{Role: models.RoleFintech}))
	g.Go(count(&stats.VerifiedIndividuals, store.Filter{Role: models.RoleIndividual, VerificationStatus: models.VerificationVerified}))
	g.Go(count(&stats.RejectedIndividuals, store.Filter{Role: models.RoleIndividual, VerificationStatus: models.VerificationRejected}))
	g.Go(count(&stats.PendingIndividuals, store.Filter{Role: models.RoleIndividual, VerificationStatus: models.VerificationInProgress}))
	if err := g.Wait(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to compute stats")
	}

	if s.metrics != nil {
		s.metrics.ObserveStats(start)
	}
	return &stats, nil
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return page, pageSize
}
