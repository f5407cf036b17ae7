package lifecycle

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"grievline/internal/audit"
	"grievline/internal/config"
	"grievline/internal/domain"
	"grievline/internal/repo"
)

// Engine is the only writer of report status and task fields. Every
// mutation runs as one transaction: report row, task row, history row
// and audit row commit together or not at all.
type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Audit  audit.Writer
	Config *config.Config
	Now    func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Audit:  audit.Writer{DB: db},
		Config: cfg,
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) nowRFC3339() string {
	return e.now().UTC().Format(time.RFC3339)
}

type CreateReportOptions struct {
	Title       string
	Description string
	Category    string
	Severity    domain.Severity
	Actor       Actor
}

// CreateReport files a new report in status received.
func (e Engine) CreateReport(ctx context.Context, opts CreateReportOptions) (domain.Report, error) {
	if strings.TrimSpace(opts.Title) == "" {
		return domain.Report{}, Errf(CodeInvalidArgument, "title is required")
	}
	if opts.Severity == "" {
		opts.Severity = domain.SeverityMedium
	}
	if !opts.Severity.Valid() {
		return domain.Report{}, Errf(CodeInvalidArgument, "unknown severity %s", opts.Severity)
	}

	now := e.nowRFC3339()
	rep := domain.Report{
		Number:          newReportNumber(e.now()),
		Title:           strings.TrimSpace(opts.Title),
		Description:     opts.Description,
		Category:        opts.Category,
		Severity:        opts.Severity,
		SubmitterID:     opts.Actor.ID,
		Status:          domain.StatusReceived,
		StatusUpdatedAt: now,
		CreatedAt:       now,
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Report{}, err
	}
	defer tx.Rollback()

	id, err := e.Repo.InsertReport(ctx, tx, rep)
	if err != nil {
		return domain.Report{}, fmt.Errorf("insert report: %w", err)
	}
	rep.ID = id
	if err := e.Audit.Append(ctx, tx, audit.Entry{
		ActorID:      opts.Actor.ID,
		Role:         string(opts.Actor.Role),
		Action:       "report.created",
		ResourceKind: "report",
		ResourceID:   fmt.Sprintf("%d", id),
		SourceIP:     opts.Actor.SourceIP,
		Description:  fmt.Sprintf("report %s filed", rep.Number),
		Metadata:     audit.Metadata{"number": rep.Number, "severity": string(rep.Severity)},
	}); err != nil {
		return domain.Report{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Report{}, err
	}
	return rep, nil
}

func newReportNumber(now time.Time) string {
	return fmt.Sprintf("GRV-%s-%s", now.UTC().Format("20060102"), strings.ToUpper(uuid.NewString()[:8]))
}

type TransitionOptions struct {
	ReportID int64
	Target   domain.Status
	Actor    Actor
	Notes    string
	// ViaAppealRework is set only by the appeal overlay; it sanctions
	// the pending_verification -> in_progress back-edge.
	ViaAppealRework bool
}

// ApplyTransition is the single entry point for status changes. Failed
// attempts leave report history untouched and are recorded in the audit
// log as failures.
func (e Engine) ApplyTransition(ctx context.Context, opts TransitionOptions) (domain.Report, error) {
	rep, err := e.applyTransition(ctx, opts)
	if err != nil {
		e.auditFailure(ctx, opts.Actor, "report.status_changed", opts.ReportID, err)
	}
	return rep, err
}

func (e Engine) applyTransition(ctx context.Context, opts TransitionOptions) (domain.Report, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Report{}, err
	}
	defer tx.Rollback()

	rep, err := e.loadReportTx(ctx, tx, opts.ReportID)
	if err != nil {
		return domain.Report{}, err
	}

	task, err := e.Repo.GetActiveTaskTx(ctx, tx, rep.ID)
	hasTask := err == nil
	if err != nil && err != repo.ErrNotFound {
		return domain.Report{}, err
	}

	if verr := Validate(ValidateInput{
		Report:          rep,
		Target:          opts.Target,
		Actor:           opts.Actor,
		HasActiveTask:   hasTask,
		ViaAppealRework: opts.ViaAppealRework,
	}); verr != nil {
		return domain.Report{}, verr
	}

	now := e.nowRFC3339()
	var hold *domain.Status
	if opts.Target == domain.StatusOnHold {
		prev := rep.Status
		hold = &prev
	}
	if err := e.Repo.UpdateReportStatusTx(ctx, tx, rep.ID, rep.Version, opts.Target, hold, now); err != nil {
		if err == repo.ErrVersionConflict {
			return domain.Report{}, Errf(CodeConcurrentConflict, "report %d changed concurrently", rep.ID)
		}
		return domain.Report{}, err
	}

	if hasTask {
		resume := rep.Status == domain.StatusOnHold
		if err := e.applyTaskEffect(ctx, tx, task, opts, now, resume); err != nil {
			return domain.Report{}, err
		}
	}

	if err := e.Repo.InsertHistoryTx(ctx, tx, domain.StatusHistoryEntry{
		ReportID:  rep.ID,
		OldStatus: rep.Status,
		NewStatus: opts.Target,
		ActorID:   opts.Actor.ID,
		Notes:     opts.Notes,
		CreatedAt: now,
	}); err != nil {
		return domain.Report{}, err
	}

	meta := audit.Metadata{"old_status": string(rep.Status), "new_status": string(opts.Target)}
	if opts.Notes != "" {
		meta["notes"] = opts.Notes
	}
	if err := e.Audit.Append(ctx, tx, audit.Entry{
		ActorID:      opts.Actor.ID,
		Role:         string(opts.Actor.Role),
		Action:       transitionAction(opts.Target),
		ResourceKind: "report",
		ResourceID:   fmt.Sprintf("%d", rep.ID),
		SourceIP:     opts.Actor.SourceIP,
		Description:  fmt.Sprintf("report %s: %s -> %s", rep.Number, rep.Status, opts.Target),
		Metadata:     meta,
	}); err != nil {
		return domain.Report{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Report{}, err
	}

	old := rep.Status
	rep.Status = opts.Target
	rep.HoldStatus = hold
	if old == domain.StatusOnHold {
		rep.HoldStatus = nil
	}
	rep.Version++
	rep.StatusUpdatedAt = now
	return rep, nil
}

func transitionAction(target domain.Status) string {
	switch target {
	case domain.StatusResolved:
		return "report.resolved"
	case domain.StatusRejected:
		return "report.rejected"
	case domain.StatusClosed:
		return "report.closed"
	case domain.StatusOnHold:
		return "report.held"
	default:
		return "report.status_changed"
	}
}

// applyTaskEffect keeps the active task in step with the report. A
// resume from on_hold restores the task status without re-stamping the
// original acknowledged/started times.
func (e Engine) applyTaskEffect(ctx context.Context, tx *sql.Tx, task domain.Task, opts TransitionOptions, now string, resume bool) error {
	switch opts.Target {
	case domain.StatusAssignedToOfficer:
		return e.Repo.UpdateTaskStatusTx(ctx, tx, task.ID, domain.TaskAssigned, "", "")
	case domain.StatusAcknowledged:
		if resume {
			return e.Repo.UpdateTaskStatusTx(ctx, tx, task.ID, domain.TaskAcknowledged, "", "")
		}
		return e.Repo.UpdateTaskStatusTx(ctx, tx, task.ID, domain.TaskAcknowledged, "acknowledged_at", now)
	case domain.StatusInProgress:
		if resume {
			return e.Repo.UpdateTaskStatusTx(ctx, tx, task.ID, domain.TaskInProgress, "", "")
		}
		return e.Repo.UpdateTaskStatusTx(ctx, tx, task.ID, domain.TaskInProgress, "started_at", now)
	case domain.StatusPendingVerification:
		if opts.Notes != "" {
			if err := e.Repo.SetTaskResolutionNotesTx(ctx, tx, task.ID, opts.Notes); err != nil {
				return err
			}
		}
		return e.Repo.UpdateTaskStatusTx(ctx, tx, task.ID, domain.TaskPendingVerification, "", "")
	case domain.StatusResolved:
		return e.Repo.UpdateTaskStatusTx(ctx, tx, task.ID, domain.TaskResolved, "resolved_at", now)
	case domain.StatusRejected:
		return e.Repo.UpdateTaskStatusTx(ctx, tx, task.ID, domain.TaskRejected, "resolved_at", now)
	case domain.StatusOnHold:
		return e.Repo.UpdateTaskStatusTx(ctx, tx, task.ID, domain.TaskOnHold, "", "")
	}
	return nil
}

type ClassifyOptions struct {
	ReportID int64
	Category string
	Severity domain.Severity
	Actor    Actor
	Notes    string
}

// Classify moves pending_classification -> classified and records the
// authoritative category and severity.
func (e Engine) Classify(ctx context.Context, opts ClassifyOptions) (domain.Report, error) {
	rep, err := e.classify(ctx, opts)
	if err != nil {
		e.auditFailure(ctx, opts.Actor, "report.classified", opts.ReportID, err)
	}
	return rep, err
}

func (e Engine) classify(ctx context.Context, opts ClassifyOptions) (domain.Report, error) {
	if strings.TrimSpace(opts.Category) == "" {
		return domain.Report{}, Errf(CodeInvalidArgument, "category is required")
	}
	if !opts.Severity.Valid() {
		return domain.Report{}, Errf(CodeInvalidArgument, "unknown severity %s", opts.Severity)
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Report{}, err
	}
	defer tx.Rollback()

	rep, err := e.loadReportTx(ctx, tx, opts.ReportID)
	if err != nil {
		return domain.Report{}, err
	}
	if verr := Validate(ValidateInput{Report: rep, Target: domain.StatusClassified, Actor: opts.Actor}); verr != nil {
		return domain.Report{}, verr
	}

	now := e.nowRFC3339()
	if err := e.Repo.UpdateReportClassificationTx(ctx, tx, rep.ID, rep.Version, opts.Category, opts.Severity, domain.StatusClassified, now); err != nil {
		if err == repo.ErrVersionConflict {
			return domain.Report{}, Errf(CodeConcurrentConflict, "report %d changed concurrently", rep.ID)
		}
		return domain.Report{}, err
	}
	if err := e.Repo.InsertHistoryTx(ctx, tx, domain.StatusHistoryEntry{
		ReportID:  rep.ID,
		OldStatus: rep.Status,
		NewStatus: domain.StatusClassified,
		ActorID:   opts.Actor.ID,
		Notes:     opts.Notes,
		CreatedAt: now,
	}); err != nil {
		return domain.Report{}, err
	}
	if err := e.Audit.Append(ctx, tx, audit.Entry{
		ActorID:      opts.Actor.ID,
		Role:         string(opts.Actor.Role),
		Action:       "report.classified",
		ResourceKind: "report",
		ResourceID:   fmt.Sprintf("%d", rep.ID),
		SourceIP:     opts.Actor.SourceIP,
		Description:  fmt.Sprintf("report %s classified as %s/%s", rep.Number, opts.Category, opts.Severity),
		Metadata:     audit.Metadata{"category": opts.Category, "severity": string(opts.Severity)},
	}); err != nil {
		return domain.Report{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Report{}, err
	}

	rep.Status = domain.StatusClassified
	rep.Category = opts.Category
	rep.Severity = opts.Severity
	rep.Version++
	rep.StatusUpdatedAt = now
	return rep, nil
}

type AssignDepartmentOptions struct {
	ReportID     int64
	DepartmentID string
	Actor        Actor
	Notes        string
}

// AssignDepartment routes a report to a department and moves it to
// assigned_to_department in one step.
func (e Engine) AssignDepartment(ctx context.Context, opts AssignDepartmentOptions) (domain.Report, error) {
	rep, err := e.assignDepartment(ctx, opts)
	if err != nil {
		e.auditFailure(ctx, opts.Actor, "report.department_assigned", opts.ReportID, err)
	}
	return rep, err
}

func (e Engine) assignDepartment(ctx context.Context, opts AssignDepartmentOptions) (domain.Report, error) {
	if strings.TrimSpace(opts.DepartmentID) == "" {
		return domain.Report{}, Errf(CodeMissingDepartment, "department_id is required")
	}
	if _, err := e.Repo.GetDepartment(ctx, opts.DepartmentID); err != nil {
		if err == repo.ErrNotFound {
			return domain.Report{}, Errf(CodeMissingDepartment, "unknown department %s", opts.DepartmentID)
		}
		return domain.Report{}, err
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Report{}, err
	}
	defer tx.Rollback()

	rep, err := e.loadReportTx(ctx, tx, opts.ReportID)
	if err != nil {
		return domain.Report{}, err
	}

	// Validate against the report as it will be once the department is set.
	candidate := rep
	candidate.DepartmentID = &opts.DepartmentID
	if verr := Validate(ValidateInput{Report: candidate, Target: domain.StatusAssignedToDepartment, Actor: opts.Actor}); verr != nil {
		return domain.Report{}, verr
	}

	now := e.nowRFC3339()
	if err := e.Repo.UpdateReportDepartmentTx(ctx, tx, rep.ID, rep.Version, opts.DepartmentID, domain.StatusAssignedToDepartment, now); err != nil {
		if err == repo.ErrVersionConflict {
			return domain.Report{}, Errf(CodeConcurrentConflict, "report %d changed concurrently", rep.ID)
		}
		return domain.Report{}, err
	}
	if err := e.Repo.InsertHistoryTx(ctx, tx, domain.StatusHistoryEntry{
		ReportID:  rep.ID,
		OldStatus: rep.Status,
		NewStatus: domain.StatusAssignedToDepartment,
		ActorID:   opts.Actor.ID,
		Notes:     opts.Notes,
		CreatedAt: now,
	}); err != nil {
		return domain.Report{}, err
	}
	if err := e.Audit.Append(ctx, tx, audit.Entry{
		ActorID:      opts.Actor.ID,
		Role:         string(opts.Actor.Role),
		Action:       "report.department_assigned",
		ResourceKind: "report",
		ResourceID:   fmt.Sprintf("%d", rep.ID),
		SourceIP:     opts.Actor.SourceIP,
		Description:  fmt.Sprintf("report %s routed to %s", rep.Number, opts.DepartmentID),
		Metadata:     audit.Metadata{"department_id": opts.DepartmentID},
	}); err != nil {
		return domain.Report{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Report{}, err
	}

	rep.Status = domain.StatusAssignedToDepartment
	rep.DepartmentID = &opts.DepartmentID
	rep.Version++
	rep.StatusUpdatedAt = now
	return rep, nil
}

type AssignOfficerOptions struct {
	ReportID  int64
	OfficerID string
	Priority  *int
	Actor     Actor
	Notes     string
}

// AssignOfficer creates the officer task and moves the report to
// assigned_to_officer. The two writes are inseparable: the status never
// shows assigned_to_officer without an active task.
func (e Engine) AssignOfficer(ctx context.Context, opts AssignOfficerOptions) (domain.Report, error) {
	rep, err := e.assignOfficer(ctx, opts)
	if err != nil {
		e.auditFailure(ctx, opts.Actor, "report.officer_assigned", opts.ReportID, err)
	}
	return rep, err
}

func (e Engine) assignOfficer(ctx context.Context, opts AssignOfficerOptions) (domain.Report, error) {
	if strings.TrimSpace(opts.OfficerID) == "" {
		return domain.Report{}, Errf(CodeMissingOfficer, "officer_id is required")
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Report{}, err
	}
	defer tx.Rollback()

	rep, err := e.loadReportTx(ctx, tx, opts.ReportID)
	if err != nil {
		return domain.Report{}, err
	}

	// The task is created in this same transaction, so validation sees
	// it as present.
	if verr := Validate(ValidateInput{Report: rep, Target: domain.StatusAssignedToOfficer, Actor: opts.Actor, HasActiveTask: true}); verr != nil {
		return domain.Report{}, verr
	}

	now := e.nowRFC3339()
	if err := e.Repo.SupersedeActiveTaskTx(ctx, tx, rep.ID, now); err != nil {
		return domain.Report{}, err
	}
	if _, err := e.Repo.InsertTaskTx(ctx, tx, domain.Task{
		ReportID:     rep.ID,
		OfficerID:    opts.OfficerID,
		AssignedBy:   opts.Actor.ID,
		DepartmentID: rep.DepartmentID,
		Status:       domain.TaskAssigned,
		Priority:     opts.Priority,
		CreatedAt:    now,
	}); err != nil {
		return domain.Report{}, fmt.Errorf("insert task: %w", err)
	}
	if err := e.Repo.UpdateReportStatusTx(ctx, tx, rep.ID, rep.Version, domain.StatusAssignedToOfficer, nil, now); err != nil {
		if err == repo.ErrVersionConflict {
			return domain.Report{}, Errf(CodeConcurrentConflict, "report %d changed concurrently", rep.ID)
		}
		return domain.Report{}, err
	}
	if err := e.Repo.InsertHistoryTx(ctx, tx, domain.StatusHistoryEntry{
		ReportID:  rep.ID,
		OldStatus: rep.Status,
		NewStatus: domain.StatusAssignedToOfficer,
		ActorID:   opts.Actor.ID,
		Notes:     opts.Notes,
		CreatedAt: now,
	}); err != nil {
		return domain.Report{}, err
	}
	if err := e.Audit.Append(ctx, tx, audit.Entry{
		ActorID:      opts.Actor.ID,
		Role:         string(opts.Actor.Role),
		Action:       "report.officer_assigned",
		ResourceKind: "report",
		ResourceID:   fmt.Sprintf("%d", rep.ID),
		SourceIP:     opts.Actor.SourceIP,
		Description:  fmt.Sprintf("report %s assigned to officer %s", rep.Number, opts.OfficerID),
		Metadata:     audit.Metadata{"officer_id": opts.OfficerID},
	}); err != nil {
		return domain.Report{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Report{}, err
	}

	rep.Status = domain.StatusAssignedToOfficer
	rep.Version++
	rep.StatusUpdatedAt = now
	return rep, nil
}

type ReassignOptions struct {
	ReportID     int64
	OfficerID    *string
	DepartmentID *string
	Actor        Actor
	Notes        string
}

// Reassign supersedes the active task and creates a replacement without
// changing the citizen-visible status. Used by the appeal overlay and
// by admins rebalancing workload.
func (e Engine) Reassign(ctx context.Context, opts ReassignOptions) error {
	err := e.reassign(ctx, opts)
	if err != nil {
		e.auditFailure(ctx, opts.Actor, "task.reassigned", opts.ReportID, err)
	}
	return err
}

func (e Engine) reassign(ctx context.Context, opts ReassignOptions) error {
	if opts.Actor.Role != domain.RoleAdmin {
		return Errf(CodeNotAuthorized, "role %s may not reassign tasks", opts.Actor.Role)
	}
	if opts.OfficerID == nil && opts.DepartmentID == nil {
		return Errf(CodeInvalidArgument, "officer_id or department_id is required")
	}
	if opts.DepartmentID != nil {
		if _, err := e.Repo.GetDepartment(ctx, *opts.DepartmentID); err != nil {
			if err == repo.ErrNotFound {
				return Errf(CodeMissingDepartment, "unknown department %s", *opts.DepartmentID)
			}
			return err
		}
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	rep, err := e.loadReportTx(ctx, tx, opts.ReportID)
	if err != nil {
		return err
	}
	task, err := e.Repo.GetActiveTaskTx(ctx, tx, rep.ID)
	if err != nil {
		if err == repo.ErrNotFound {
			return Errf(CodeMissingOfficer, "report %d has no active officer task", rep.ID)
		}
		return err
	}

	now := e.nowRFC3339()
	officerID := task.OfficerID
	if opts.OfficerID != nil {
		officerID = *opts.OfficerID
	}
	deptID := rep.DepartmentID
	if opts.DepartmentID != nil {
		deptID = opts.DepartmentID
	}

	if err := e.Repo.SupersedeActiveTaskTx(ctx, tx, rep.ID, now); err != nil {
		return err
	}
	if _, err := e.Repo.InsertTaskTx(ctx, tx, domain.Task{
		ReportID:     rep.ID,
		OfficerID:    officerID,
		AssignedBy:   opts.Actor.ID,
		DepartmentID: deptID,
		Status:       domain.TaskAssigned,
		Priority:     task.Priority,
		CreatedAt:    now,
	}); err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	if opts.DepartmentID != nil {
		res, err := tx.ExecContext(ctx, `UPDATE reports SET department_id=?, version=version+1 WHERE id=? AND version=?`,
			*opts.DepartmentID, rep.ID, rep.Version)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return Errf(CodeConcurrentConflict, "report %d changed concurrently", rep.ID)
		}
	}
	meta := audit.Metadata{"previous_officer_id": task.OfficerID, "officer_id": officerID}
	if opts.DepartmentID != nil {
		meta["department_id"] = *opts.DepartmentID
	}
	if err := e.Audit.Append(ctx, tx, audit.Entry{
		ActorID:      opts.Actor.ID,
		Role:         string(opts.Actor.Role),
		Action:       "task.reassigned",
		ResourceKind: "report",
		ResourceID:   fmt.Sprintf("%d", rep.ID),
		SourceIP:     opts.Actor.SourceIP,
		Description:  fmt.Sprintf("report %s reassigned to officer %s", rep.Number, officerID),
		Metadata:     meta,
	}); err != nil {
		return err
	}
	return tx.Commit()
}

type SetSeverityOptions struct {
	ReportID int64
	Severity domain.Severity
	Actor    Actor
}

// SetSeverity changes severity without touching status. Admin only.
func (e Engine) SetSeverity(ctx context.Context, opts SetSeverityOptions) error {
	err := e.setSeverity(ctx, opts)
	if err != nil {
		e.auditFailure(ctx, opts.Actor, "report.severity_changed", opts.ReportID, err)
	}
	return err
}

func (e Engine) setSeverity(ctx context.Context, opts SetSeverityOptions) error {
	if !opts.Severity.Valid() {
		return Errf(CodeInvalidArgument, "unknown severity %s", opts.Severity)
	}
	if opts.Actor.Role != domain.RoleAdmin {
		return Errf(CodeNotAuthorized, "role %s may not change severity", opts.Actor.Role)
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	rep, err := e.loadReportTx(ctx, tx, opts.ReportID)
	if err != nil {
		return err
	}
	if err := e.Repo.UpdateReportSeverityTx(ctx, tx, rep.ID, rep.Version, opts.Severity); err != nil {
		if err == repo.ErrVersionConflict {
			return Errf(CodeConcurrentConflict, "report %d changed concurrently", rep.ID)
		}
		return err
	}
	if err := e.Audit.Append(ctx, tx, audit.Entry{
		ActorID:      opts.Actor.ID,
		Role:         string(opts.Actor.Role),
		Action:       "report.severity_changed",
		ResourceKind: "report",
		ResourceID:   fmt.Sprintf("%d", rep.ID),
		SourceIP:     opts.Actor.SourceIP,
		Description:  fmt.Sprintf("report %s severity %s -> %s", rep.Number, rep.Severity, opts.Severity),
		Metadata:     audit.Metadata{"old_severity": string(rep.Severity), "severity": string(opts.Severity)},
	}); err != nil {
		return err
	}
	return tx.Commit()
}

func (e Engine) loadReportTx(ctx context.Context, tx *sql.Tx, id int64) (domain.Report, error) {
	rep, err := e.Repo.GetReportTx(ctx, tx, id)
	if err == repo.ErrNotFound {
		return rep, Errf(CodeNotFound, "report %d not found", id)
	}
	return rep, err
}

// auditFailure records a rejected attempt outside the rolled-back
// transaction. Only typed validation errors are recorded; infrastructure
// errors are not attempts.
func (e Engine) auditFailure(ctx context.Context, actor Actor, action string, reportID int64, err error) {
	le, ok := AsError(err)
	if !ok {
		return
	}
	_ = e.Audit.AppendStandalone(ctx, audit.Entry{
		ActorID:      actor.ID,
		Role:         string(actor.Role),
		Action:       action,
		Outcome:      audit.OutcomeFailure,
		ResourceKind: "report",
		ResourceID:   fmt.Sprintf("%d", reportID),
		SourceIP:     actor.SourceIP,
		Description:  le.Message,
		Metadata:     audit.Metadata{"reason": le.Code},
	})
}
