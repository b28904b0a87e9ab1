package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"credara/internal/profile/models"
	id "credara/pkg/domain"
	"credara/pkg/platform/sentinel"
	txcontext "credara/pkg/platform/tx"
)

// Postgres persists profiles in the profiles table. This store is pure I/O;
// role rules and counters live in the models and services. All writes honor
// a transaction carried in context so mutation + audit commit together.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Postgres) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const profileColumns = `
	id, role, credara_id, phone, email, full_name,
	institution_type, business_name, is_active, last_login,
	trust_score, verification_status, last_verification_date, internal_notes, trust_report_content,
	credit_balance, total_credits_purchased, last_credit_purchase_date,
	subscription_status, subscription_plan, subscription_start_date, subscription_end_date,
	total_reports_unlocked, admin_level, last_active, created_at, updated_at`

func (s *Postgres) Insert(ctx context.Context, p *models.Profile) error {
	query := `
		INSERT INTO profiles (` + profileColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
		        $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27)
	`
	args, err := profileArgs(p)
	if err != nil {
		return err
	}
	if _, err := s.execer(ctx).ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert profile: %w", err)
	}
	return nil
}

func (s *Postgres) Update(ctx context.Context, p *models.Profile) error {
	query := `
		UPDATE profiles SET
			credara_id = $2, phone = $3, email = $4, full_name = $5,
			institution_type = $6, business_name = $7, is_active = $8, last_login = $9,
			trust_score = $10, verification_status = $11, last_verification_date = $12,
			internal_notes = $13, trust_report_content = $14,
			credit_balance = $15, total_credits_purchased = $16, last_credit_purchase_date = $17,
			subscription_status = $18, subscription_plan = $19,
			subscription_start_date = $20, subscription_end_date = $21,
			total_reports_unlocked = $22, admin_level = $23, last_active = $24,
			updated_at = $25
		WHERE id = $1
	`
	args, err := profileArgs(p)
	if err != nil {
		return err
	}
	// Insert args minus role/created_at, which are immutable.
	updateArgs := append([]any{args[0]}, args[2:25]...)
	updateArgs = append(updateArgs, args[26])

	res, err := s.execer(ctx).ExecContext(ctx, query, updateArgs...)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("update profile: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, profileID id.ProfileID) (*models.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE id = $1`
	return s.queryOne(ctx, query, uuid.UUID(profileID))
}

// FindByIDForUpdate reads a profile with a row lock. Must run inside a
// transaction; the lock serializes concurrent ledger mutations against the
// same institution row so balance reads cannot go stale before the debit.
func (s *Postgres) FindByIDForUpdate(ctx context.Context, profileID id.ProfileID) (*models.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE id = $1 FOR UPDATE`
	return s.queryOne(ctx, query, uuid.UUID(profileID))
}

func (s *Postgres) queryOne(ctx context.Context, query string, args ...any) (*models.Profile, error) {
	p, err := scanProfile(s.execer(ctx).QueryRowContext(ctx, query, args...))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find profile: %w", err)
	}
	return p, nil
}

func (s *Postgres) List(ctx context.Context, f Filter) ([]*models.Profile, error) {
	where, args := buildWhere(f)
	query := `SELECT ` + profileColumns + ` FROM profiles` + where +
		` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.execer(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	var out []*models.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Postgres) Count(ctx context.Context, f Filter) (int, error) {
	where, args := buildWhere(f)
	var count int
	err := s.execer(ctx).QueryRowContext(ctx, `SELECT COUNT(*) FROM profiles`+where, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count profiles: %w", err)
	}
	return count, nil
}

func (s *Postgres) SearchIndividuals(ctx context.Context, term string, limit int) ([]*models.Profile, error) {
	return s.List(ctx, Filter{
		Role:   models.RoleIndividual,
		Search: strings.TrimSpace(term),
		Limit:  limit,
	})
}

func buildWhere(f Filter) (string, []any) {
	var conds []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.Role != "" {
		conds = append(conds, "role = "+arg(string(f.Role)))
	}
	if f.ExcludeRole != "" {
		conds = append(conds, "role <> "+arg(string(f.ExcludeRole)))
	}
	if f.VerificationStatus != "" {
		conds = append(conds, "verification_status = "+arg(string(f.VerificationStatus)))
	}
	if term := strings.TrimSpace(f.Search); term != "" {
		pattern := arg("%" + term + "%")
		conds = append(conds, fmt.Sprintf(
			"(full_name ILIKE %[1]s OR email ILIKE %[1]s OR phone ILIKE %[1]s OR credara_id ILIKE %[1]s)",
			pattern,
		))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func profileArgs(p *models.Profile) ([]any, error) {
	var reportJSON any
	if p.TrustReport != nil {
		b, err := json.Marshal(p.TrustReport)
		if err != nil {
			return nil, fmt.Errorf("marshal trust report: %w", err)
		}
		reportJSON = b
	}
	return []any{
		uuid.UUID(p.ID),
		string(p.Role),
		nullStr(optionalCredara(p.CredaraID)),
		p.Phone,
		nullStr(p.Email),
		nullStr(p.FullName),
		nullStr(optionalRole(p.InstitutionType)),
		nullStr(p.BusinessName),
		p.IsActive,
		nullTime(p.LastLogin),
		nullInt(p.TrustScore),
		nullStr(optionalString(string(p.VerificationStatus))),
		nullTime(p.LastVerificationDate),
		nullStr(p.InternalNotes),
		reportJSON,
		p.CreditBalance,
		p.TotalCreditsPurchased,
		nullTime(p.LastCreditPurchaseDate),
		nullStr(optionalString(string(p.SubscriptionStatus))),
		nullStr(optionalPlan(p.SubscriptionPlan)),
		nullTime(p.SubscriptionStartDate),
		nullTime(p.SubscriptionEndDate),
		p.TotalReportsUnlocked,
		nullStr(optionalAdminLevel(p.AdminLevel)),
		nullTime(p.LastActive),
		p.CreatedAt,
		p.UpdatedAt,
	}, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (*models.Profile, error) {
	var (
		p              models.Profile
		profileID      uuid.UUID
		role           string
		credaraID      sql.NullString
		email          sql.NullString
		fullName       sql.NullString
		instType       sql.NullString
		businessName   sql.NullString
		lastLogin      sql.NullTime
		trustScore     sql.NullInt64
		verification   sql.NullString
		lastVerifiedAt sql.NullTime
		internalNotes  sql.NullString
		trustReport    []byte
		lastPurchaseAt sql.NullTime
		subStatus      sql.NullString
		subPlan        sql.NullString
		subStart       sql.NullTime
		subEnd         sql.NullTime
		adminLevel     sql.NullString
		lastActive     sql.NullTime
	)
	err := row.Scan(
		&profileID, &role, &credaraID, &p.Phone, &email, &fullName,
		&instType, &businessName, &p.IsActive, &lastLogin,
		&trustScore, &verification, &lastVerifiedAt, &internalNotes, &trustReport,
		&p.CreditBalance, &p.TotalCreditsPurchased, &lastPurchaseAt,
		&subStatus, &subPlan, &subStart, &subEnd,
		&p.TotalReportsUnlocked, &adminLevel, &lastActive, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.ID = id.ProfileID(profileID)
	p.Role = models.Role(role)
	if credaraID.Valid {
		p.CredaraID = id.CredaraID(credaraID.String)
	}
	p.Email = strPtr(email)
	p.FullName = strPtr(fullName)
	if instType.Valid {
		r := models.Role(instType.String)
		p.InstitutionType = &r
	}
	p.BusinessName = strPtr(businessName)
	p.LastLogin = timePtr(lastLogin)
	if trustScore.Valid {
		score := int(trustScore.Int64)
		p.TrustScore = &score
	}
	if verification.Valid {
		p.VerificationStatus = models.VerificationStatus(verification.String)
	}
	p.LastVerificationDate = timePtr(lastVerifiedAt)
	p.InternalNotes = strPtr(internalNotes)
	if len(trustReport) > 0 {
		report := models.ParseTrustReportContent(trustReport)
		p.TrustReport = &report
	}
	p.LastCreditPurchaseDate = timePtr(lastPurchaseAt)
	if subStatus.Valid {
		p.SubscriptionStatus = models.SubscriptionStatus(subStatus.String)
	}
	if subPlan.Valid {
		plan := models.SubscriptionPlan(subPlan.String)
		p.SubscriptionPlan = &plan
	}
	p.SubscriptionStartDate = timePtr(subStart)
	p.SubscriptionEndDate = timePtr(subEnd)
	if adminLevel.Valid {
		level := models.AdminLevel(adminLevel.String)
		p.AdminLevel = &level
	}
	p.LastActive = timePtr(lastActive)
	return &p, nil
}

func isUniqueViolation(err error) bool {
	pqErr, ok := err.(*pq.Error)
	return ok && pqErr.Code == "23505"
}

func nullStr(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func nullInt(n *int) any {
	if n == nil {
		return nil
	}
	return *n
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func strPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func optionalCredara(c id.CredaraID) *string {
	if c.IsZero() {
		return nil
	}
	s := string(c)
	return &s
}

func optionalRole(r *models.Role) *string {
	if r == nil {
		return nil
	}
	s := string(*r)
	return &s
}

func optionalPlan(p *models.SubscriptionPlan) *string {
	if p == nil {
		return nil
	}
	s := string(*p)
	return &s
}

func optionalAdminLevel(l *models.AdminLevel) *string {
	if l == nil {
		return nil
	}
	s := string(*l)
	return &s
}
