package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"grievline/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var (
	ErrNotFound = errors.New("not found")
	// ErrVersionConflict means the report changed since the caller read it.
	ErrVersionConflict = errors.New("version conflict")
)

// IsUniqueViolation reports whether err is a SQLite unique constraint
// failure, such as the partial index guarding open appeals.
func IsUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

const reportCols = `id,number,title,COALESCE(description,''),COALESCE(category,''),severity,submitter_id,department_id,status,hold_status,suggested_category,suggested_severity,version,status_updated_at,created_at`

func scanReport(scan func(dest ...any) error) (domain.Report, error) {
	var rep domain.Report
	var deptID, holdStatus, sugCat, sugSev sql.NullString
	err := scan(&rep.ID, &rep.Number, &rep.Title, &rep.Description, &rep.Category, &rep.Severity,
		&rep.SubmitterID, &deptID, &rep.Status, &holdStatus, &sugCat, &sugSev,
		&rep.Version, &rep.StatusUpdatedAt, &rep.CreatedAt)
	if err == sql.ErrNoRows {
		return rep, ErrNotFound
	}
	if err != nil {
		return rep, err
	}
	if deptID.Valid {
		rep.DepartmentID = &deptID.String
	}
	if holdStatus.Valid {
		s := domain.Status(holdStatus.String)
		rep.HoldStatus = &s
	}
	if sugCat.Valid {
		rep.SuggestedCategory = &sugCat.String
	}
	if sugSev.Valid {
		s := domain.Severity(sugSev.String)
		rep.SuggestedSeverity = &s
	}
	return rep, nil
}

func (r Repo) InsertReport(ctx context.Context, tx *sql.Tx, rep domain.Report) (int64, error) {
	res, err := tx.ExecContext(ctx, `INSERT INTO reports(number,title,description,category,severity,submitter_id,department_id,status,hold_status,version,status_updated_at,created_at) VALUES (?,?,?,?,?,?,?,?,?,0,?,?)`,
		rep.Number, rep.Title, nullable(rep.Description), nullable(rep.Category), rep.Severity,
		rep.SubmitterID, nullableP(rep.DepartmentID), rep.Status, nil, rep.StatusUpdatedAt, rep.CreatedAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r Repo) GetReport(ctx context.Context, id int64) (domain.Report, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+reportCols+` FROM reports WHERE id=?`, id)
	return scanReport(row.Scan)
}

func (r Repo) GetReportTx(ctx context.Context, tx *sql.Tx, id int64) (domain.Report, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+reportCols+` FROM reports WHERE id=?`, id)
	return scanReport(row.Scan)
}

func (r Repo) GetReportByNumber(ctx context.Context, number string) (domain.Report, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+reportCols+` FROM reports WHERE number=?`, number)
	return scanReport(row.Scan)
}

type ReportFilter struct {
	Status       string
	DepartmentID string
	SubmitterID  string
	Severity     string
	Limit        int
}

func (r Repo) ListReports(ctx context.Context, f ReportFilter) ([]domain.Report, error) {
	query := `SELECT ` + reportCols + ` FROM reports`
	var (
		conds []string
		args  []any
	)
	if f.Status != "" {
		conds = append(conds, "status=?")
		args = append(args, f.Status)
	}
	if f.DepartmentID != "" {
		conds = append(conds, "department_id=?")
		args = append(args, f.DepartmentID)
	}
	if f.SubmitterID != "" {
		conds = append(conds, "submitter_id=?")
		args = append(args, f.SubmitterID)
	}
	if f.Severity != "" {
		conds = append(conds, "severity=?")
		args = append(args, f.Severity)
	}
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY id DESC`
	if f.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Report
	for rows.Next() {
		rep, err := scanReport(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, rep)
	}
	return res, rows.Err()
}

// UpdateReportStatusTx moves a report to newStatus guarded by the
// version counter. Zero rows affected means another writer got there
// first and the caller sees ErrVersionConflict.
func (r Repo) UpdateReportStatusTx(ctx context.Context, tx *sql.Tx, id, version int64, newStatus domain.Status, holdStatus *domain.Status, now string) error {
	res, err := tx.ExecContext(ctx, `UPDATE reports SET status=?, hold_status=?, version=version+1, status_updated_at=? WHERE id=? AND version=?`,
		newStatus, statusP(holdStatus), now, id, version)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrVersionConflict
	}
	return nil
}

func (r Repo) UpdateReportDepartmentTx(ctx context.Context, tx *sql.Tx, id, version int64, departmentID string, newStatus domain.Status, now string) error {
	res, err := tx.ExecContext(ctx, `UPDATE reports SET department_id=?, status=?, version=version+1, status_updated_at=? WHERE id=? AND version=?`,
		departmentID, newStatus, now, id, version)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrVersionConflict
	}
	return nil
}

func (r Repo) UpdateReportClassificationTx(ctx context.Context, tx *sql.Tx, id, version int64, category string, severity domain.Severity, newStatus domain.Status, now string) error {
	res, err := tx.ExecContext(ctx, `UPDATE reports SET category=?, severity=?, status=?, version=version+1, status_updated_at=? WHERE id=? AND version=?`,
		category, severity, newStatus, now, id, version)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrVersionConflict
	}
	return nil
}

func (r Repo) UpdateReportSeverityTx(ctx context.Context, tx *sql.Tx, id, version int64, severity domain.Severity) error {
	res, err := tx.ExecContext(ctx, `UPDATE reports SET severity=?, version=version+1 WHERE id=? AND version=?`,
		severity, id, version)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrVersionConflict
	}
	return nil
}

// UpdateReportSuggestions records advisory classification hints without
// touching the version counter; suggestions never gate transitions.
func (r Repo) UpdateReportSuggestions(ctx context.Context, id int64, category *string, severity *domain.Severity) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE reports SET suggested_category=?, suggested_severity=? WHERE id=?`,
		nullableP(category), severityP(severity), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanTask(scan func(dest ...any) error) (domain.Task, error) {
	var t domain.Task
	var deptID, ackAt, startedAt, resolvedAt, notes, supAt sql.NullString
	var priority sql.NullInt64
	var superseded int
	err := scan(&t.ID, &t.ReportID, &t.OfficerID, &t.AssignedBy, &deptID, &t.Status, &priority,
		&ackAt, &startedAt, &resolvedAt, &notes, &superseded, &supAt, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	if err != nil {
		return t, err
	}
	if deptID.Valid {
		t.DepartmentID = &deptID.String
	}
	if priority.Valid {
		p := int(priority.Int64)
		t.Priority = &p
	}
	if ackAt.Valid {
		t.AcknowledgedAt = &ackAt.String
	}
	if startedAt.Valid {
		t.StartedAt = &startedAt.String
	}
	if resolvedAt.Valid {
		t.ResolvedAt = &resolvedAt.String
	}
	if notes.Valid {
		t.ResolutionNotes = &notes.String
	}
	t.Superseded = superseded != 0
	if supAt.Valid {
		t.SupersededAt = &supAt.String
	}
	return t, nil
}

const taskCols = `id,report_id,officer_id,assigned_by,department_id,status,priority,acknowledged_at,started_at,resolved_at,resolution_notes,superseded,superseded_at,created_at`

func (r Repo) InsertTaskTx(ctx context.Context, tx *sql.Tx, t domain.Task) (int64, error) {
	res, err := tx.ExecContext(ctx, `INSERT INTO tasks(report_id,officer_id,assigned_by,department_id,status,priority,created_at) VALUES (?,?,?,?,?,?,?)`,
		t.ReportID, t.OfficerID, t.AssignedBy, nullableP(t.DepartmentID), t.Status, intP(t.Priority), t.CreatedAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r Repo) GetActiveTask(ctx context.Context, reportID int64) (domain.Task, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+taskCols+` FROM tasks WHERE report_id=? AND superseded=0`, reportID)
	return scanTask(row.Scan)
}

func (r Repo) GetActiveTaskTx(ctx context.Context, tx *sql.Tx, reportID int64) (domain.Task, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+taskCols+` FROM tasks WHERE report_id=? AND superseded=0`, reportID)
	return scanTask(row.Scan)
}

func (r Repo) ListTasksByOfficer(ctx context.Context, officerID string) ([]domain.Task, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+taskCols+` FROM tasks WHERE officer_id=? AND superseded=0 ORDER BY id DESC`, officerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Task
	for rows.Next() {
		t, err := scanTask(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

func (r Repo) ListTasksByReport(ctx context.Context, reportID int64) ([]domain.Task, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+taskCols+` FROM tasks WHERE report_id=? ORDER BY id`, reportID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Task
	for rows.Next() {
		t, err := scanTask(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

func (r Repo) UpdateTaskStatusTx(ctx context.Context, tx *sql.Tx, taskID int64, status domain.TaskStatus, stampCol, stamp string) error {
	query := `UPDATE tasks SET status=?`
	args := []any{status}
	switch stampCol {
	case "":
	case "acknowledged_at", "started_at", "resolved_at":
		query += `, ` + stampCol + `=?`
		args = append(args, stamp)
	default:
		return fmt.Errorf("unknown task stamp column %s", stampCol)
	}
	query += ` WHERE id=?`
	args = append(args, taskID)
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) SetTaskResolutionNotesTx(ctx context.Context, tx *sql.Tx, taskID int64, notes string) error {
	_, err := tx.ExecContext(ctx, `UPDATE tasks SET resolution_notes=? WHERE id=?`, nullable(notes), taskID)
	return err
}

// SupersedeActiveTaskTx retires the active task so a replacement can be
// inserted without violating the one-active-task index.
func (r Repo) SupersedeActiveTaskTx(ctx context.Context, tx *sql.Tx, reportID int64, now string) error {
	_, err := tx.ExecContext(ctx, `UPDATE tasks SET superseded=1, superseded_at=? WHERE report_id=? AND superseded=0`, now, reportID)
	return err
}

func (r Repo) InsertHistoryTx(ctx context.Context, tx *sql.Tx, h domain.StatusHistoryEntry) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO status_history(report_id,old_status,new_status,actor_id,notes,created_at) VALUES (?,?,?,?,?,?)`,
		h.ReportID, h.OldStatus, h.NewStatus, h.ActorID, nullable(h.Notes), h.CreatedAt)
	return err
}

func (r Repo) ListHistory(ctx context.Context, reportID int64) ([]domain.StatusHistoryEntry, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,report_id,old_status,new_status,actor_id,COALESCE(notes,''),created_at FROM status_history WHERE report_id=? ORDER BY id`, reportID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.StatusHistoryEntry
	for rows.Next() {
		var h domain.StatusHistoryEntry
		if err := rows.Scan(&h.ID, &h.ReportID, &h.OldStatus, &h.NewStatus, &h.ActorID, &h.Notes, &h.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, h)
	}
	return res, rows.Err()
}

func (r Repo) UpsertDepartment(ctx context.Context, d domain.Department) error {
	if d.CreatedAt == "" {
		d.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}
	_, err := r.DB.ExecContext(ctx, `INSERT INTO departments(id,name,created_at) VALUES (?,?,?)
ON CONFLICT(id) DO UPDATE SET name=excluded.name`, d.ID, d.Name, d.CreatedAt)
	return err
}

func (r Repo) GetDepartment(ctx context.Context, id string) (domain.Department, error) {
	var d domain.Department
	err := r.DB.QueryRowContext(ctx, `SELECT id,name,created_at FROM departments WHERE id=?`, id).Scan(&d.ID, &d.Name, &d.CreatedAt)
	if err == sql.ErrNoRows {
		return d, ErrNotFound
	}
	return d, err
}

func (r Repo) ListDepartments(ctx context.Context) ([]domain.Department, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,name,created_at FROM departments ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Department
	for rows.Next() {
		var d domain.Department
		if err := rows.Scan(&d.ID, &d.Name, &d.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, d)
	}
	return res, rows.Err()
}

func (r Repo) UpsertActor(ctx context.Context, id string, role domain.Role) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := r.DB.ExecContext(ctx, `INSERT INTO actors(id,role,created_at) VALUES (?,?,?)
ON CONFLICT(id) DO UPDATE SET role=excluded.role`, id, string(role), now)
	return err
}

func (r Repo) GetActorRole(ctx context.Context, id string) (domain.Role, error) {
	var role sql.NullString
	err := r.DB.QueryRowContext(ctx, `SELECT role FROM actors WHERE id=?`, id).Scan(&role)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return domain.Role(role.String), nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableP(v *string) any {
	if v == nil || *v == "" {
		return nil
	}
	return *v
}

func statusP(s *domain.Status) any {
	if s == nil {
		return nil
	}
	return string(*s)
}

func severityP(s *domain.Severity) any {
	if s == nil {
		return nil
	}
	return string(*s)
}

func intP(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}
