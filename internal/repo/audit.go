package repo

import (
	"context"
	"strings"

	"grievline/internal/domain"
)

const auditCols = `id,ts,actor_id,COALESCE(role,''),action,outcome,COALESCE(resource_kind,''),COALESCE(resource_id,''),COALESCE(source_ip,''),COALESCE(description,''),COALESCE(metadata_json,'')`

type AuditFilter struct {
	ActorID      string
	Action       string
	Outcome      string
	ResourceKind string
	ResourceID   string
	Since        string
	Until        string
	Limit        int
}

// ListAuditLog reads audit entries newest first. The audit table has no
// update or delete path anywhere in this package.
func (r Repo) ListAuditLog(ctx context.Context, f AuditFilter) ([]domain.AuditLogEntry, error) {
	query := `SELECT ` + auditCols + ` FROM audit_log`
	var (
		conds []string
		args  []any
	)
	if f.ActorID != "" {
		conds = append(conds, "actor_id=?")
		args = append(args, f.ActorID)
	}
	if f.Action != "" {
		conds = append(conds, "action=?")
		args = append(args, f.Action)
	}
	if f.Outcome != "" {
		conds = append(conds, "outcome=?")
		args = append(args, f.Outcome)
	}
	if f.ResourceKind != "" {
		conds = append(conds, "resource_kind=?")
		args = append(args, f.ResourceKind)
	}
	if f.ResourceID != "" {
		conds = append(conds, "resource_id=?")
		args = append(args, f.ResourceID)
	}
	if f.Since != "" {
		conds = append(conds, "ts>=?")
		args = append(args, f.Since)
	}
	if f.Until != "" {
		conds = append(conds, "ts<=?")
		args = append(args, f.Until)
	}
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY id DESC`
	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.AuditLogEntry
	for rows.Next() {
		var e domain.AuditLogEntry
		if err := rows.Scan(&e.ID, &e.TS, &e.ActorID, &e.Role, &e.Action, &e.Outcome,
			&e.ResourceKind, &e.ResourceID, &e.SourceIP, &e.Description, &e.Metadata); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// ListAuditLogAfter reads entries with id greater than afterID, oldest
// first. Used by the notification dispatcher cursor.
func (r Repo) ListAuditLogAfter(ctx context.Context, afterID int64, limit int) ([]domain.AuditLogEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT `+auditCols+` FROM audit_log WHERE id>? ORDER BY id LIMIT ?`, afterID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.AuditLogEntry
	for rows.Next() {
		var e domain.AuditLogEntry
		if err := rows.Scan(&e.ID, &e.TS, &e.ActorID, &e.Role, &e.Action, &e.Outcome,
			&e.ResourceKind, &e.ResourceID, &e.SourceIP, &e.Description, &e.Metadata); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}
