package lifecycle

import (
	"context"
	"fmt"

	"grievline/internal/audit"
	"grievline/internal/domain"
)

// BulkResult is the aggregate outcome contract. Partial success is the
// expected common case; callers branch on the per-item reason codes.
type BulkResult struct {
	Total         int         `json:"total"`
	Successful    int         `json:"successful"`
	Failed        int         `json:"failed"`
	Errors        []BulkError `json:"errors"`
	SuccessfulIDs []int64     `json:"successful_ids"`
	FailedIDs     []int64     `json:"failed_ids"`
}

type BulkError struct {
	ReportID int64  `json:"report_id"`
	Code     string `json:"code"`
	Message  string `json:"message"`
}

func (e Engine) checkBulkIDs(ids []int64) *Error {
	max := e.Config.MaxBulkItems()
	if len(ids) == 0 {
		return Errf(CodeInvalidArgument, "report_ids must not be empty")
	}
	if len(ids) > max {
		return Errf(CodeInvalidArgument, "report_ids exceeds limit of %d", max)
	}
	return nil
}

// runBulk applies op per id. Each item is its own atomic operation; one
// item's failure never rolls back another's success.
func runBulk(ids []int64, op func(id int64) error) BulkResult {
	res := BulkResult{
		Total:         len(ids),
		Errors:        []BulkError{},
		SuccessfulIDs: []int64{},
		FailedIDs:     []int64{},
	}
	for _, id := range ids {
		if err := op(id); err != nil {
			res.Failed++
			res.FailedIDs = append(res.FailedIDs, id)
			be := BulkError{ReportID: id, Code: "internal", Message: err.Error()}
			if le, ok := AsError(err); ok {
				be.Code = le.Code
			}
			res.Errors = append(res.Errors, be)
			continue
		}
		res.Successful++
		res.SuccessfulIDs = append(res.SuccessfulIDs, id)
	}
	return res
}

// BulkStatus applies one target status to many reports.
func (e Engine) BulkStatus(ctx context.Context, ids []int64, target domain.Status, actor Actor, notes string) (BulkResult, error) {
	if err := e.checkBulkIDs(ids); err != nil {
		return BulkResult{}, err
	}
	res := runBulk(ids, func(id int64) error {
		_, err := e.ApplyTransition(ctx, TransitionOptions{ReportID: id, Target: target, Actor: actor, Notes: notes})
		return err
	})
	e.auditBulk(ctx, actor, "report.bulk_status", string(target), ids, res)
	return res, nil
}

// BulkAssignDepartment routes many reports to one department.
func (e Engine) BulkAssignDepartment(ctx context.Context, ids []int64, departmentID string, actor Actor) (BulkResult, error) {
	if err := e.checkBulkIDs(ids); err != nil {
		return BulkResult{}, err
	}
	res := runBulk(ids, func(id int64) error {
		_, err := e.AssignDepartment(ctx, AssignDepartmentOptions{ReportID: id, DepartmentID: departmentID, Actor: actor})
		return err
	})
	e.auditBulk(ctx, actor, "report.bulk_department", departmentID, ids, res)
	return res, nil
}

// BulkAssignOfficer assigns one officer to many reports.
func (e Engine) BulkAssignOfficer(ctx context.Context, ids []int64, officerID string, priority *int, actor Actor) (BulkResult, error) {
	if err := e.checkBulkIDs(ids); err != nil {
		return BulkResult{}, err
	}
	res := runBulk(ids, func(id int64) error {
		_, err := e.AssignOfficer(ctx, AssignOfficerOptions{ReportID: id, OfficerID: officerID, Priority: priority, Actor: actor})
		return err
	})
	e.auditBulk(ctx, actor, "report.bulk_officer", officerID, ids, res)
	return res, nil
}

// BulkSetSeverity applies one severity to many reports.
func (e Engine) BulkSetSeverity(ctx context.Context, ids []int64, severity domain.Severity, actor Actor) (BulkResult, error) {
	if err := e.checkBulkIDs(ids); err != nil {
		return BulkResult{}, err
	}
	res := runBulk(ids, func(id int64) error {
		return e.SetSeverity(ctx, SetSeverityOptions{ReportID: id, Severity: severity, Actor: actor})
	})
	e.auditBulk(ctx, actor, "report.bulk_severity", string(severity), ids, res)
	return res, nil
}

// auditBulk appends the one batch summary entry on top of the per-item
// entries the single-item operations already wrote.
func (e Engine) auditBulk(ctx context.Context, actor Actor, action, target string, ids []int64, res BulkResult) {
	sample := ids
	if len(sample) > 10 {
		sample = sample[:10]
	}
	_ = e.Audit.AppendStandalone(ctx, audit.Entry{
		ActorID:      actor.ID,
		Role:         string(actor.Role),
		Action:       action,
		ResourceKind: "report_batch",
		SourceIP:     actor.SourceIP,
		Description:  fmt.Sprintf("%s target=%s total=%d ok=%d failed=%d", action, target, res.Total, res.Successful, res.Failed),
		Metadata: audit.Metadata{
			"target":     target,
			"total":      res.Total,
			"successful": res.Successful,
			"failed":     res.Failed,
			"id_sample":  sample,
		},
	})
}
