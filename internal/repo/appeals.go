package repo

import (
	"context"
	"database/sql"

	"grievline/internal/domain"
)

const appealCols = `id,report_id,submitter_id,type,reason,COALESCE(evidence,''),COALESCE(requested_action,''),status,reviewer_id,COALESCE(review_notes,''),reassigned_department_id,reassigned_officer_id,requires_rework,COALESCE(rework_notes,''),reviewed_at,created_at`

func scanAppeal(scan func(dest ...any) error) (domain.Appeal, error) {
	var a domain.Appeal
	var reviewer, reassignedDept, reassignedTo, reviewedAt sql.NullString
	var rework int
	err := scan(&a.ID, &a.ReportID, &a.SubmitterID, &a.Type, &a.Reason, &a.Evidence, &a.RequestedAction,
		&a.Status, &reviewer, &a.ReviewNotes, &reassignedDept, &reassignedTo, &rework, &a.ReworkNotes,
		&reviewedAt, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return a, ErrNotFound
	}
	if err != nil {
		return a, err
	}
	if reviewer.Valid {
		a.ReviewerID = &reviewer.String
	}
	if reassignedDept.Valid {
		a.ReassignedDept = &reassignedDept.String
	}
	if reassignedTo.Valid {
		a.ReassignedTo = &reassignedTo.String
	}
	a.RequiresRework = rework != 0
	if reviewedAt.Valid {
		a.ReviewedAt = &reviewedAt.String
	}
	return a, nil
}

func (r Repo) InsertAppealTx(ctx context.Context, tx *sql.Tx, a domain.Appeal) (int64, error) {
	res, err := tx.ExecContext(ctx, `INSERT INTO appeals(report_id,submitter_id,type,reason,evidence,requested_action,status,created_at) VALUES (?,?,?,?,?,?,?,?)`,
		a.ReportID, a.SubmitterID, a.Type, a.Reason, nullable(a.Evidence), nullable(a.RequestedAction), a.Status, a.CreatedAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r Repo) GetAppeal(ctx context.Context, id int64) (domain.Appeal, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+appealCols+` FROM appeals WHERE id=?`, id)
	return scanAppeal(row.Scan)
}

func (r Repo) GetAppealTx(ctx context.Context, tx *sql.Tx, id int64) (domain.Appeal, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+appealCols+` FROM appeals WHERE id=?`, id)
	return scanAppeal(row.Scan)
}

// GetOpenAppealTx returns the open appeal for a report, if any.
func (r Repo) GetOpenAppealTx(ctx context.Context, tx *sql.Tx, reportID int64) (domain.Appeal, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+appealCols+` FROM appeals WHERE report_id=? AND status IN ('submitted','under_review')`, reportID)
	return scanAppeal(row.Scan)
}

func (r Repo) ListAppealsByReport(ctx context.Context, reportID int64) ([]domain.Appeal, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+appealCols+` FROM appeals WHERE report_id=? ORDER BY id`, reportID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Appeal
	for rows.Next() {
		a, err := scanAppeal(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

func (r Repo) ListAppeals(ctx context.Context, status string) ([]domain.Appeal, error) {
	query := `SELECT ` + appealCols + ` FROM appeals`
	var args []any
	if status != "" {
		query += ` WHERE status=?`
		args = append(args, status)
	}
	query += ` ORDER BY id DESC`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Appeal
	for rows.Next() {
		a, err := scanAppeal(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

func (r Repo) SetAppealUnderReviewTx(ctx context.Context, tx *sql.Tx, id int64, reviewerID string) error {
	res, err := tx.ExecContext(ctx, `UPDATE appeals SET status=?, reviewer_id=? WHERE id=? AND status=?`,
		domain.AppealUnderReview, reviewerID, id, domain.AppealSubmitted)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

type AppealDecision struct {
	Status         domain.AppealStatus
	ReviewerID     string
	ReviewNotes    string
	ReassignedDept *string
	ReassignedTo   *string
	RequiresRework bool
	ReworkNotes    string
	ReviewedAt     string
}

func (r Repo) CloseAppealTx(ctx context.Context, tx *sql.Tx, id int64, d AppealDecision) error {
	rework := 0
	if d.RequiresRework {
		rework = 1
	}
	res, err := tx.ExecContext(ctx, `UPDATE appeals SET status=?, reviewer_id=?, review_notes=?, reassigned_department_id=?, reassigned_officer_id=?, requires_rework=?, rework_notes=?, reviewed_at=? WHERE id=? AND status IN ('submitted','under_review')`,
		d.Status, d.ReviewerID, nullable(d.ReviewNotes), nullableP(d.ReassignedDept), nullableP(d.ReassignedTo), rework, nullable(d.ReworkNotes), d.ReviewedAt, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) WithdrawAppealTx(ctx context.Context, tx *sql.Tx, id int64, submitterID string) error {
	res, err := tx.ExecContext(ctx, `UPDATE appeals SET status=? WHERE id=? AND submitter_id=? AND status IN ('submitted','under_review')`,
		domain.AppealWithdrawn, id, submitterID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

const escalationCols = `id,report_id,submitter_id,level,reason,status,sla_deadline,acknowledged_by,acknowledged_at,COALESCE(response,''),responded_at,resolved_at,created_at`

func scanEscalation(scan func(dest ...any) error) (domain.Escalation, error) {
	var e domain.Escalation
	var ackBy, ackAt, respondedAt, resolvedAt sql.NullString
	err := scan(&e.ID, &e.ReportID, &e.SubmitterID, &e.Level, &e.Reason, &e.Status, &e.SLADeadline,
		&ackBy, &ackAt, &e.Response, &respondedAt, &resolvedAt, &e.CreatedAt)
	if err == sql.ErrNoRows {
		return e, ErrNotFound
	}
	if err != nil {
		return e, err
	}
	if ackBy.Valid {
		e.AcknowledgedBy = &ackBy.String
	}
	if ackAt.Valid {
		e.AcknowledgedAt = &ackAt.String
	}
	if respondedAt.Valid {
		e.RespondedAt = &respondedAt.String
	}
	if resolvedAt.Valid {
		e.ResolvedAt = &resolvedAt.String
	}
	return e, nil
}

func (r Repo) InsertEscalationTx(ctx context.Context, tx *sql.Tx, e domain.Escalation) (int64, error) {
	res, err := tx.ExecContext(ctx, `INSERT INTO escalations(report_id,submitter_id,level,reason,status,sla_deadline,created_at) VALUES (?,?,?,?,?,?,?)`,
		e.ReportID, e.SubmitterID, e.Level, e.Reason, e.Status, e.SLADeadline, e.CreatedAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r Repo) GetEscalation(ctx context.Context, id int64) (domain.Escalation, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+escalationCols+` FROM escalations WHERE id=?`, id)
	return scanEscalation(row.Scan)
}

func (r Repo) GetEscalationTx(ctx context.Context, tx *sql.Tx, id int64) (domain.Escalation, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+escalationCols+` FROM escalations WHERE id=?`, id)
	return scanEscalation(row.Scan)
}

func (r Repo) ListEscalationsByReport(ctx context.Context, reportID int64) ([]domain.Escalation, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+escalationCols+` FROM escalations WHERE report_id=? ORDER BY id`, reportID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Escalation
	for rows.Next() {
		e, err := scanEscalation(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// ListOverdueEscalations returns unresolved escalations whose SLA
// deadline is at or before now.
func (r Repo) ListOverdueEscalations(ctx context.Context, now string) ([]domain.Escalation, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+escalationCols+` FROM escalations WHERE status != ? AND sla_deadline <= ? ORDER BY sla_deadline`, domain.EscalationResolved, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Escalation
	for rows.Next() {
		e, err := scanEscalation(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// The escalation machine moves one step at a time: submitted ->
// acknowledged -> responded -> resolved. Each guard matches exactly the
// prior status; zero rows means the step is not available.
func (r Repo) AcknowledgeEscalationTx(ctx context.Context, tx *sql.Tx, id int64, actorID, now string) error {
	res, err := tx.ExecContext(ctx, `UPDATE escalations SET status=?, acknowledged_by=?, acknowledged_at=? WHERE id=? AND status=?`,
		domain.EscalationAcknowledged, actorID, now, id, domain.EscalationSubmitted)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) RespondEscalationTx(ctx context.Context, tx *sql.Tx, id int64, response, now string) error {
	res, err := tx.ExecContext(ctx, `UPDATE escalations SET status=?, response=?, responded_at=? WHERE id=? AND status=?`,
		domain.EscalationResponded, response, now, id, domain.EscalationAcknowledged)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) ResolveEscalationTx(ctx context.Context, tx *sql.Tx, id int64, now string) error {
	res, err := tx.ExecContext(ctx, `UPDATE escalations SET status=?, resolved_at=? WHERE id=? AND status=?`,
		domain.EscalationResolved, now, id, domain.EscalationResponded)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
