package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"credara/internal/unlock"
	id "credara/pkg/domain"
	"credara/pkg/platform/sentinel"
	txcontext "credara/pkg/platform/tx"
)

// Postgres persists the unlock ledger in report_unlocks. Insert honors a
// transaction in context so the ledger row commits atomically with the
// institution debit; the unique pair constraint backs idempotence even if two
// transactions race past the pre-check.
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

func (s *Postgres) Insert(ctx context.Context, u *unlock.Unlock) error {
	snapshot, err := json.Marshal(u.Snapshot)
	if err != nil {
		return fmt.Errorf("marshal unlock snapshot: %w", err)
	}
	query := `
		INSERT INTO report_unlocks (id, institution_user_id, target_profile_id, credits_spent, snapshot, unlocked_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(u.ID),
		uuid.UUID(u.InstitutionUserID),
		uuid.UUID(u.TargetProfileID),
		u.CreditsSpent,
		snapshot,
		u.UnlockedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert unlock: %w", err)
	}
	return nil
}

func (s *Postgres) FindByPair(ctx context.Context, institutionID, targetID id.ProfileID) (*unlock.Unlock, error) {
	query := `
		SELECT id, institution_user_id, target_profile_id, credits_spent, snapshot, unlocked_at
		FROM report_unlocks
		WHERE institution_user_id = $1 AND target_profile_id = $2
	`
	row := s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(institutionID), uuid.UUID(targetID))
	u, err := scanUnlock(row)
	if err == sql.ErrNoRows {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find unlock: %w", err)
	}
	return u, nil
}

// ExistsForTargets answers "which of these individuals has this institution
// unlocked" in a single query.
func (s *Postgres) ExistsForTargets(ctx context.Context, institutionID id.ProfileID, targetIDs []id.ProfileID) (map[id.ProfileID]bool, error) {
	if len(targetIDs) == 0 {
		return map[id.ProfileID]bool{}, nil
	}
	ids := make([]uuid.UUID, len(targetIDs))
	for i, targetID := range targetIDs {
		ids[i] = uuid.UUID(targetID)
	}

	query := `
		SELECT target_profile_id FROM report_unlocks
		WHERE institution_user_id = $1 AND target_profile_id = ANY($2)
	`
	rows, err := s.execer(ctx).QueryContext(ctx, query, uuid.UUID(institutionID), pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("check unlocked targets: %w", err)
	}
	defer rows.Close()

	unlocked := make(map[id.ProfileID]bool, len(targetIDs))
	for rows.Next() {
		var targetID uuid.UUID
		if err := rows.Scan(&targetID); err != nil {
			return nil, fmt.Errorf("scan unlocked target: %w", err)
		}
		unlocked[id.ProfileID(targetID)] = true
	}
	return unlocked, rows.Err()
}

func (s *Postgres) ListByInstitution(ctx context.Context, institutionID id.ProfileID, limit, offset int) ([]*unlock.Unlock, error) {
	query := `
		SELECT id, institution_user_id, target_profile_id, credits_spent, snapshot, unlocked_at
		FROM report_unlocks
		WHERE institution_user_id = $1
		ORDER BY unlocked_at DESC, id DESC`
	args := []any{uuid.UUID(institutionID)}
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if offset > 0 {
		args = append(args, offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.execer(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list unlocks: %w", err)
	}
	defer rows.Close()

	var out []*unlock.Unlock
	for rows.Next() {
		u, err := scanUnlock(rows)
		if err != nil {
			return nil, fmt.Errorf("scan unlock: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *Postgres) CountByInstitution(ctx context.Context, institutionID id.ProfileID) (int, error) {
	var count int
	err := s.execer(ctx).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM report_unlocks WHERE institution_user_id = $1`,
		uuid.UUID(institutionID),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unlocks: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUnlock(row rowScanner) (*unlock.Unlock, error) {
	var (
		u             unlock.Unlock
		unlockID      uuid.UUID
		institutionID uuid.UUID
		targetID      uuid.UUID
		snapshot      []byte
	)
	err := row.Scan(&unlockID, &institutionID, &targetID, &u.CreditsSpent, &snapshot, &u.UnlockedAt)
	if err != nil {
		return nil, err
	}
	u.ID = id.UnlockID(unlockID)
	u.InstitutionUserID = id.ProfileID(institutionID)
	u.TargetProfileID = id.ProfileID(targetID)
	if err := json.Unmarshal(snapshot, &u.Snapshot); err != nil {
		return nil, fmt.Errorf("unmarshal unlock snapshot: %w", err)
	}
	return &u, nil
}
