package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"credara/internal/audit"
	id "credara/pkg/domain"
	txcontext "credara/pkg/platform/tx"
)

// Postgres writes audit entries to the audit_logs table. Append honors a
// transaction carried in context, which is how entries commit atomically with
// the admin mutation they describe.
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

func (s *Postgres) Append(ctx context.Context, e *audit.Entry) error {
	var details any
	if e.Details != nil {
		b, err := json.Marshal(e.Details)
		if err != nil {
			return fmt.Errorf("marshal audit details: %w", err)
		}
		details = b
	}
	var target any
	if e.TargetUserID != nil {
		target = uuid.UUID(*e.TargetUserID)
	}

	query := `
		INSERT INTO audit_logs (id, admin_id, target_user_id, action, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(e.ID),
		uuid.UUID(e.AdminID),
		target,
		string(e.Action),
		details,
		e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

func (s *Postgres) List(ctx context.Context, f audit.Filter) ([]*audit.Entry, error) {
	where, args := buildWhere(f)
	query := `
		SELECT id, admin_id, target_user_id, action, details, created_at
		FROM audit_logs` + where + `
		ORDER BY created_at DESC, id DESC`
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
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	defer rows.Close()

	var out []*audit.Entry
	for rows.Next() {
		var (
			e       audit.Entry
			entryID uuid.UUID
			adminID uuid.UUID
			target  uuid.NullUUID
			action  string
			details []byte
		)
		if err := rows.Scan(&entryID, &adminID, &target, &action, &details, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit log: %w", err)
		}
		e.ID = id.AuditLogID(entryID)
		e.AdminID = id.ProfileID(adminID)
		if target.Valid {
			t := id.ProfileID(target.UUID)
			e.TargetUserID = &t
		}
		e.Action = audit.Action(action)
		if len(details) > 0 {
			if err := json.Unmarshal(details, &e.Details); err != nil {
				return nil, fmt.Errorf("unmarshal audit details: %w", err)
			}
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

func (s *Postgres) Count(ctx context.Context, f audit.Filter) (int, error) {
	where, args := buildWhere(f)
	var count int
	err := s.execer(ctx).QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_logs`+where, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count audit logs: %w", err)
	}
	return count, nil
}

func buildWhere(f audit.Filter) (string, []any) {
	var conds []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if !f.AdminID.IsNil() {
		conds = append(conds, "admin_id = "+arg(uuid.UUID(f.AdminID)))
	}
	if !f.TargetUserID.IsNil() {
		conds = append(conds, "target_user_id = "+arg(uuid.UUID(f.TargetUserID)))
	}
	if f.Action != "" {
		conds = append(conds, "action = "+arg(string(f.Action)))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
