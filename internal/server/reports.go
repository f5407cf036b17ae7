package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"grievline/internal/domain"
	"grievline/internal/lifecycle"
	"grievline/internal/repo"
)

type ReportPath struct {
	ReportID int64 `path:"report_id"`
}

func registerReports(api huma.API, e lifecycle.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-report",
		Method:        http.MethodPost,
		Path:          "/reports",
		Summary:       "File a report",
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *struct {
		Body CreateReportRequest `json:"body"`
	}) (*struct {
		Body domain.Report `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		rep, err := e.CreateReport(ctx, lifecycle.CreateReportOptions{
			Title:       input.Body.Title,
			Description: input.Body.Description,
			Category:    input.Body.Category,
			Severity:    domain.Severity(input.Body.Severity),
			Actor:       actor,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Report `json:"body"`
		}{Body: rep}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-reports",
		Method:      http.MethodGet,
		Path:        "/reports",
		Summary:     "List reports",
	}, func(ctx context.Context, input *struct {
		Status     string `query:"status"`
		Department string `query:"department_id"`
		Submitter  string `query:"submitter_id"`
		Severity   string `query:"severity"`
		Limit      int    `query:"limit"`
	}) (*struct {
		Body ReportListResponse `json:"body"`
	}, error) {
		if _, authErr := actorFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		items, err := e.Repo.ListReports(ctx, repo.ReportFilter{
			Status:       input.Status,
			DepartmentID: input.Department,
			SubmitterID:  input.Submitter,
			Severity:     input.Severity,
			Limit:        input.Limit,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ReportListResponse `json:"body"`
		}{Body: ReportListResponse{Items: items}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-report",
		Method:      http.MethodGet,
		Path:        "/reports/{report_id}",
		Summary:     "Get report",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *ReportPath) (*struct {
		Body domain.Report `json:"body"`
	}, error) {
		if _, authErr := actorFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		rep, err := e.Repo.GetReport(ctx, input.ReportID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Report `json:"body"`
		}{Body: rep}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "change-report-status",
		Method:      http.MethodPost,
		Path:        "/reports/{report_id}/status",
		Summary:     "Apply a status transition",
		Errors:      []int{http.StatusConflict, http.StatusForbidden, http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		ReportPath
		Body StatusChangeRequest `json:"body"`
	}) (*struct {
		Body domain.Report `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		rep, err := e.ApplyTransition(ctx, lifecycle.TransitionOptions{
			ReportID: input.ReportID,
			Target:   domain.Status(input.Body.NewStatus),
			Actor:    actor,
			Notes:    input.Body.Notes,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Report `json:"body"`
		}{Body: rep}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "classify-report",
		Method:      http.MethodPost,
		Path:        "/reports/{report_id}/classify",
		Summary:     "Classify a report",
	}, func(ctx context.Context, input *struct {
		ReportPath
		Body ClassifyRequest `json:"body"`
	}) (*struct {
		Body domain.Report `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		rep, err := e.Classify(ctx, lifecycle.ClassifyOptions{
			ReportID: input.ReportID,
			Category: input.Body.Category,
			Severity: domain.Severity(input.Body.Severity),
			Actor:    actor,
			Notes:    input.Body.Notes,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Report `json:"body"`
		}{Body: rep}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "assign-department",
		Method:      http.MethodPost,
		Path:        "/reports/{report_id}/assign-department",
		Summary:     "Route a report to a department",
	}, func(ctx context.Context, input *struct {
		ReportPath
		Body AssignDepartmentRequest `json:"body"`
	}) (*struct {
		Body domain.Report `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		rep, err := e.AssignDepartment(ctx, lifecycle.AssignDepartmentOptions{
			ReportID:     input.ReportID,
			DepartmentID: input.Body.DepartmentID,
			Actor:        actor,
			Notes:        input.Body.Notes,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Report `json:"body"`
		}{Body: rep}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "assign-officer",
		Method:      http.MethodPost,
		Path:        "/reports/{report_id}/assign-officer",
		Summary:     "Assign an officer task",
	}, func(ctx context.Context, input *struct {
		ReportPath
		Body AssignOfficerRequest `json:"body"`
	}) (*struct {
		Body domain.Report `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		rep, err := e.AssignOfficer(ctx, lifecycle.AssignOfficerOptions{
			ReportID:  input.ReportID,
			OfficerID: input.Body.OfficerID,
			Priority:  input.Body.Priority,
			Actor:     actor,
			Notes:     input.Body.Notes,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Report `json:"body"`
		}{Body: rep}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "reassign-report",
		Method:      http.MethodPost,
		Path:        "/reports/{report_id}/reassign",
		Summary:     "Reassign the active task",
	}, func(ctx context.Context, input *struct {
		ReportPath
		Body ReassignRequest `json:"body"`
	}) (*struct {
		Body domain.Report `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.Reassign(ctx, lifecycle.ReassignOptions{
			ReportID:     input.ReportID,
			OfficerID:    input.Body.OfficerID,
			DepartmentID: input.Body.DepartmentID,
			Actor:        actor,
			Notes:        input.Body.Notes,
		}); err != nil {
			return nil, handleError(err)
		}
		rep, err := e.Repo.GetReport(ctx, input.ReportID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Report `json:"body"`
		}{Body: rep}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-report-severity",
		Method:      http.MethodPost,
		Path:        "/reports/{report_id}/severity",
		Summary:     "Change severity",
	}, func(ctx context.Context, input *struct {
		ReportPath
		Body SeverityRequest `json:"body"`
	}) (*struct {
		Body domain.Report `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.SetSeverity(ctx, lifecycle.SetSeverityOptions{
			ReportID: input.ReportID,
			Severity: domain.Severity(input.Body.Severity),
			Actor:    actor,
		}); err != nil {
			return nil, handleError(err)
		}
		rep, err := e.Repo.GetReport(ctx, input.ReportID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Report `json:"body"`
		}{Body: rep}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "report-history",
		Method:      http.MethodGet,
		Path:        "/reports/{report_id}/history",
		Summary:     "Status history",
	}, func(ctx context.Context, input *ReportPath) (*struct {
		Body HistoryResponse `json:"body"`
	}, error) {
		if _, authErr := actorFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		if _, err := e.Repo.GetReport(ctx, input.ReportID); err != nil {
			return nil, handleError(err)
		}
		items, err := e.Repo.ListHistory(ctx, input.ReportID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body HistoryResponse `json:"body"`
		}{Body: HistoryResponse{Items: items}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "report-tasks",
		Method:      http.MethodGet,
		Path:        "/reports/{report_id}/tasks",
		Summary:     "Task history including superseded tasks",
	}, func(ctx context.Context, input *ReportPath) (*struct {
		Body TaskListResponse `json:"body"`
	}, error) {
		if _, authErr := actorFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		items, err := e.Repo.ListTasksByReport(ctx, input.ReportID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TaskListResponse `json:"body"`
		}{Body: TaskListResponse{Items: items}}, nil
	})
}

func registerDepartments(api huma.API, e lifecycle.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-departments",
		Method:      http.MethodGet,
		Path:        "/departments",
		Summary:     "List departments",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body DepartmentListResponse `json:"body"`
	}, error) {
		if _, authErr := actorFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		items, err := e.Repo.ListDepartments(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body DepartmentListResponse `json:"body"`
		}{Body: DepartmentListResponse{Items: items}}, nil
	})
}

func registerBulk(api huma.API, e lifecycle.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "bulk-status",
		Method:      http.MethodPost,
		Path:        "/reports/bulk/status",
		Summary:     "Bulk status transition",
		Description: "Requires credential confirmation via X-Confirm-Key.",
	}, func(ctx context.Context, input *struct {
		Body BulkStatusRequest `json:"body"`
	}) (*struct {
		Body lifecycle.BulkResult `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := requireConfirmKey(ctx, e.Repo); err != nil {
			return nil, err
		}
		res, err := e.BulkStatus(ctx, input.Body.ReportIDs, domain.Status(input.Body.NewStatus), actor, input.Body.Notes)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body lifecycle.BulkResult `json:"body"`
		}{Body: res}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "bulk-department",
		Method:      http.MethodPost,
		Path:        "/reports/bulk/department",
		Summary:     "Bulk department routing",
		Description: "Requires credential confirmation via X-Confirm-Key.",
	}, func(ctx context.Context, input *struct {
		Body BulkDepartmentRequest `json:"body"`
	}) (*struct {
		Body lifecycle.BulkResult `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := requireConfirmKey(ctx, e.Repo); err != nil {
			return nil, err
		}
		res, err := e.BulkAssignDepartment(ctx, input.Body.ReportIDs, input.Body.DepartmentID, actor)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body lifecycle.BulkResult `json:"body"`
		}{Body: res}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "bulk-officer",
		Method:      http.MethodPost,
		Path:        "/reports/bulk/officer",
		Summary:     "Bulk officer assignment",
		Description: "Requires credential confirmation via X-Confirm-Key.",
	}, func(ctx context.Context, input *struct {
		Body BulkOfficerRequest `json:"body"`
	}) (*struct {
		Body lifecycle.BulkResult `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := requireConfirmKey(ctx, e.Repo); err != nil {
			return nil, err
		}
		res, err := e.BulkAssignOfficer(ctx, input.Body.ReportIDs, input.Body.OfficerID, input.Body.Priority, actor)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body lifecycle.BulkResult `json:"body"`
		}{Body: res}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "bulk-severity",
		Method:      http.MethodPost,
		Path:        "/reports/bulk/severity",
		Summary:     "Bulk severity change",
		Description: "Requires credential confirmation via X-Confirm-Key.",
	}, func(ctx context.Context, input *struct {
		Body BulkSeverityRequest `json:"body"`
	}) (*struct {
		Body lifecycle.BulkResult `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := requireConfirmKey(ctx, e.Repo); err != nil {
			return nil, err
		}
		res, err := e.BulkSetSeverity(ctx, input.Body.ReportIDs, domain.Severity(input.Body.Severity), actor)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body lifecycle.BulkResult `json:"body"`
		}{Body: res}, nil
	})
}
