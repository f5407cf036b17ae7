package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"grievline/internal/domain"
	"grievline/internal/lifecycle"
	"grievline/internal/repo"
)

// Audit reads are admin-only filtered queries. There is no write
// endpoint; entries come from the engine.
func registerAudit(api huma.API, e lifecycle.Engine) {
	requireAdmin := func(ctx context.Context) huma.StatusError {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return authErr
		}
		if actor.Role != domain.RoleAdmin && actor.Role != domain.RoleSupervisor {
			return newAPIError(http.StatusForbidden, "not_authorized", "audit log access is restricted", nil)
		}
		return nil
	}

	huma.Register(api, huma.Operation{
		OperationID: "audit-resource",
		Method:      http.MethodGet,
		Path:        "/audit/resource/{resource_kind}/{resource_id}",
		Summary:     "Audit entries for one resource",
	}, func(ctx context.Context, input *struct {
		ResourceKind string `path:"resource_kind"`
		ResourceID   string `path:"resource_id"`
		Limit        int    `query:"limit"`
	}) (*struct {
		Body AuditListResponse `json:"body"`
	}, error) {
		if err := requireAdmin(ctx); err != nil {
			return nil, err
		}
		items, err := e.Repo.ListAuditLog(ctx, repo.AuditFilter{
			ResourceKind: input.ResourceKind,
			ResourceID:   input.ResourceID,
			Limit:        input.Limit,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body AuditListResponse `json:"body"`
		}{Body: AuditListResponse{Items: items}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "audit-user",
		Method:      http.MethodGet,
		Path:        "/audit/user/{actor_id}",
		Summary:     "Audit entries for one actor",
	}, func(ctx context.Context, input *struct {
		ActorID string `path:"actor_id"`
		Limit   int    `query:"limit"`
	}) (*struct {
		Body AuditListResponse `json:"body"`
	}, error) {
		if err := requireAdmin(ctx); err != nil {
			return nil, err
		}
		items, err := e.Repo.ListAuditLog(ctx, repo.AuditFilter{
			ActorID: input.ActorID,
			Limit:   input.Limit,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body AuditListResponse `json:"body"`
		}{Body: AuditListResponse{Items: items}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "audit-recent",
		Method:      http.MethodGet,
		Path:        "/audit/recent",
		Summary:     "Recent audit entries",
	}, func(ctx context.Context, input *struct {
		Action  string `query:"action"`
		Outcome string `query:"outcome" enum:",success,failure"`
		Since   string `query:"since"`
		Until   string `query:"until"`
		Limit   int    `query:"limit"`
	}) (*struct {
		Body AuditListResponse `json:"body"`
	}, error) {
		if err := requireAdmin(ctx); err != nil {
			return nil, err
		}
		items, err := e.Repo.ListAuditLog(ctx, repo.AuditFilter{
			Action:  input.Action,
			Outcome: input.Outcome,
			Since:   input.Since,
			Until:   input.Until,
			Limit:   input.Limit,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body AuditListResponse `json:"body"`
		}{Body: AuditListResponse{Items: items}}, nil
	})
}
