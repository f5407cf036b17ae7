package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"grievline/internal/domain"
	"grievline/internal/review"
)

type AppealPath struct {
	AppealID int64 `path:"appeal_id"`
}

type EscalationPath struct {
	EscalationID int64 `path:"escalation_id"`
}

func registerAppeals(api huma.API, svc review.Service) {
	huma.Register(api, huma.Operation{
		OperationID:   "submit-appeal",
		Method:        http.MethodPost,
		Path:          "/appeals",
		Summary:       "Submit an appeal",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusConflict, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Body SubmitAppealRequest `json:"body"`
	}) (*struct {
		Body domain.Appeal `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		a, err := svc.SubmitAppeal(ctx, review.SubmitAppealOptions{
			ReportID:        input.Body.ReportID,
			Type:            domain.AppealType(input.Body.AppealType),
			Reason:          input.Body.Reason,
			Evidence:        input.Body.Evidence,
			RequestedAction: input.Body.RequestedAction,
			Actor:           actor,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Appeal `json:"body"`
		}{Body: a}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-appeals",
		Method:      http.MethodGet,
		Path:        "/appeals",
		Summary:     "List appeals",
	}, func(ctx context.Context, input *struct {
		Status string `query:"status"`
	}) (*struct {
		Body AppealListResponse `json:"body"`
	}, error) {
		if _, authErr := actorFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		items, err := svc.Engine.Repo.ListAppeals(ctx, input.Status)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body AppealListResponse `json:"body"`
		}{Body: AppealListResponse{Items: items}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-appeal",
		Method:      http.MethodGet,
		Path:        "/appeals/{appeal_id}",
		Summary:     "Get appeal",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *AppealPath) (*struct {
		Body domain.Appeal `json:"body"`
	}, error) {
		if _, authErr := actorFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		a, err := svc.Engine.Repo.GetAppeal(ctx, input.AppealID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Appeal `json:"body"`
		}{Body: a}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "start-appeal-review",
		Method:      http.MethodPost,
		Path:        "/appeals/{appeal_id}/start-review",
		Summary:     "Take an appeal under review",
	}, func(ctx context.Context, input *AppealPath) (*struct {
		Body domain.Appeal `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := svc.StartReview(ctx, input.AppealID, actor); err != nil {
			return nil, handleError(err)
		}
		a, err := svc.Engine.Repo.GetAppeal(ctx, input.AppealID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Appeal `json:"body"`
		}{Body: a}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "review-appeal",
		Method:      http.MethodPost,
		Path:        "/appeals/{appeal_id}/review",
		Summary:     "Approve or reject an appeal",
		Errors:      []int{http.StatusConflict, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		AppealPath
		Body ReviewAppealRequest `json:"body"`
	}) (*struct {
		Body domain.Appeal `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if input.Body.Status != string(domain.AppealApproved) && input.Body.Status != string(domain.AppealRejected) {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "status must be approved or rejected", nil)
		}
		a, err := svc.ReviewAppeal(ctx, review.ReviewAppealOptions{
			AppealID:       input.AppealID,
			Approve:        input.Body.Status == string(domain.AppealApproved),
			ReviewNotes:    input.Body.ReviewNotes,
			RequiresRework: input.Body.RequiresRework,
			ReworkNotes:    input.Body.ReworkNotes,
			ReassignedDept: input.Body.ReassignedDept,
			ReassignedTo:   input.Body.ReassignedTo,
			Actor:          actor,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Appeal `json:"body"`
		}{Body: a}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "withdraw-appeal",
		Method:      http.MethodDelete,
		Path:        "/appeals/{appeal_id}",
		Summary:     "Withdraw an appeal (submitter only)",
		Errors:      []int{http.StatusConflict, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *AppealPath) (*struct {
		Body domain.Appeal `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := requireConfirmKey(ctx, svc.Engine.Repo); err != nil {
			return nil, err
		}
		if err := svc.WithdrawAppeal(ctx, input.AppealID, actor); err != nil {
			return nil, handleError(err)
		}
		a, err := svc.Engine.Repo.GetAppeal(ctx, input.AppealID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Appeal `json:"body"`
		}{Body: a}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "report-appeals",
		Method:      http.MethodGet,
		Path:        "/reports/{report_id}/appeals",
		Summary:     "Appeals for one report",
	}, func(ctx context.Context, input *ReportPath) (*struct {
		Body AppealListResponse `json:"body"`
	}, error) {
		if _, authErr := actorFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		items, err := svc.Engine.Repo.ListAppealsByReport(ctx, input.ReportID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body AppealListResponse `json:"body"`
		}{Body: AppealListResponse{Items: items}}, nil
	})
}

func registerEscalations(api huma.API, svc review.Service) {
	huma.Register(api, huma.Operation{
		OperationID:   "submit-escalation",
		Method:        http.MethodPost,
		Path:          "/escalations",
		Summary:       "Escalate a report",
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *struct {
		Body SubmitEscalationRequest `json:"body"`
	}) (*struct {
		Body domain.Escalation `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		esc, err := svc.SubmitEscalation(ctx, review.SubmitEscalationOptions{
			ReportID: input.Body.ReportID,
			Level:    domain.EscalationLevel(input.Body.Level),
			Reason:   input.Body.Reason,
			Actor:    actor,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Escalation `json:"body"`
		}{Body: esc}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "acknowledge-escalation",
		Method:      http.MethodPost,
		Path:        "/escalations/{escalation_id}/acknowledge",
		Summary:     "Acknowledge an escalation",
	}, func(ctx context.Context, input *EscalationPath) (*struct {
		Body domain.Escalation `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := svc.AcknowledgeEscalation(ctx, input.EscalationID, actor); err != nil {
			return nil, handleError(err)
		}
		esc, err := svc.Engine.Repo.GetEscalation(ctx, input.EscalationID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Escalation `json:"body"`
		}{Body: esc}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-escalation",
		Method:      http.MethodPost,
		Path:        "/escalations/{escalation_id}/update",
		Summary:     "Record the handler response",
	}, func(ctx context.Context, input *struct {
		EscalationPath
		Body EscalationUpdateRequest `json:"body"`
	}) (*struct {
		Body domain.Escalation `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := svc.RespondEscalation(ctx, input.EscalationID, input.Body.Response, actor); err != nil {
			return nil, handleError(err)
		}
		esc, err := svc.Engine.Repo.GetEscalation(ctx, input.EscalationID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Escalation `json:"body"`
		}{Body: esc}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "resolve-escalation",
		Method:      http.MethodPost,
		Path:        "/escalations/{escalation_id}/resolve",
		Summary:     "Resolve an escalation",
	}, func(ctx context.Context, input *EscalationPath) (*struct {
		Body domain.Escalation `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := svc.ResolveEscalation(ctx, input.EscalationID, actor); err != nil {
			return nil, handleError(err)
		}
		esc, err := svc.Engine.Repo.GetEscalation(ctx, input.EscalationID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Escalation `json:"body"`
		}{Body: esc}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "overdue-escalations",
		Method:      http.MethodGet,
		Path:        "/escalations/overdue",
		Summary:     "Escalations past their SLA deadline",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body EscalationListResponse `json:"body"`
	}, error) {
		if _, authErr := actorFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		items, err := svc.OverdueEscalations(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body EscalationListResponse `json:"body"`
		}{Body: EscalationListResponse{Items: items}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "report-escalations",
		Method:      http.MethodGet,
		Path:        "/reports/{report_id}/escalations",
		Summary:     "Escalations for one report",
	}, func(ctx context.Context, input *ReportPath) (*struct {
		Body EscalationListResponse `json:"body"`
	}, error) {
		if _, authErr := actorFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		items, err := svc.Engine.Repo.ListEscalationsByReport(ctx, input.ReportID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body EscalationListResponse `json:"body"`
		}{Body: EscalationListResponse{Items: items}}, nil
	})
}
