package review

import (
	"context"
	"fmt"
	"strings"
	"time"

	"grievline/internal/audit"
	"grievline/internal/domain"
	"grievline/internal/lifecycle"
	"grievline/internal/repo"
)

type SubmitEscalationOptions struct {
	ReportID int64
	Level    domain.EscalationLevel
	Reason   string
	Actor    lifecycle.Actor
}

// SubmitEscalation raises urgency on a report. The SLA deadline is
// computed from the configured response window for the target level.
// Escalations never change report status.
func (s Service) SubmitEscalation(ctx context.Context, opts SubmitEscalationOptions) (domain.Escalation, error) {
	if !opts.Level.Valid() {
		return domain.Escalation{}, lifecycle.Errf(lifecycle.CodeInvalidArgument, "unknown escalation level %s", opts.Level)
	}
	if strings.TrimSpace(opts.Reason) == "" {
		return domain.Escalation{}, lifecycle.Errf(lifecycle.CodeInvalidArgument, "reason is required")
	}

	tx, err := s.Engine.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Escalation{}, err
	}
	defer tx.Rollback()

	rep, err := s.Engine.Repo.GetReportTx(ctx, tx, opts.ReportID)
	if err != nil {
		if err == repo.ErrNotFound {
			return domain.Escalation{}, lifecycle.Errf(lifecycle.CodeNotFound, "report %d not found", opts.ReportID)
		}
		return domain.Escalation{}, err
	}
	if opts.Actor.Role == domain.RoleCitizen && opts.Actor.ID != rep.SubmitterID {
		return domain.Escalation{}, lifecycle.Errf(lifecycle.CodeNotAuthorized, "only the report submitter may escalate report %d", rep.ID)
	}

	now := s.now().UTC()
	hours := s.Engine.Config.SLAHoursFor(string(opts.Level))
	esc := domain.Escalation{
		ReportID:    rep.ID,
		SubmitterID: opts.Actor.ID,
		Level:       opts.Level,
		Reason:      opts.Reason,
		Status:      domain.EscalationSubmitted,
		SLADeadline: now.Add(time.Duration(hours) * time.Hour).Format(time.RFC3339),
		CreatedAt:   now.Format(time.RFC3339),
	}
	id, err := s.Engine.Repo.InsertEscalationTx(ctx, tx, esc)
	if err != nil {
		return domain.Escalation{}, fmt.Errorf("insert escalation: %w", err)
	}
	esc.ID = id
	if err := s.Engine.Audit.Append(ctx, tx, audit.Entry{
		ActorID:      opts.Actor.ID,
		Role:         string(opts.Actor.Role),
		Action:       "escalation.submitted",
		ResourceKind: "escalation",
		ResourceID:   fmt.Sprintf("%d", id),
		SourceIP:     opts.Actor.SourceIP,
		Description:  fmt.Sprintf("report %s escalated to %s", rep.Number, opts.Level),
		Metadata:     audit.Metadata{"report_id": rep.ID, "level": string(opts.Level), "sla_deadline": esc.SLADeadline},
	}); err != nil {
		return domain.Escalation{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Escalation{}, err
	}
	return esc, nil
}

func escalationHandlerRole(role domain.Role) bool {
	return role == domain.RoleAdmin || role == domain.RoleSupervisor
}

// AcknowledgeEscalation records that a handler has seen the escalation.
func (s Service) AcknowledgeEscalation(ctx context.Context, id int64, actor lifecycle.Actor) error {
	if !escalationHandlerRole(actor.Role) {
		return lifecycle.Errf(lifecycle.CodeNotAuthorized, "role %s may not acknowledge escalations", actor.Role)
	}
	tx, err := s.Engine.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := s.Engine.Repo.AcknowledgeEscalationTx(ctx, tx, id, actor.ID, s.nowRFC3339()); err != nil {
		if err == repo.ErrNotFound {
			return lifecycle.Errf(lifecycle.CodeNotFound, "no submitted escalation %d", id)
		}
		return err
	}
	if err := s.Engine.Audit.Append(ctx, tx, audit.Entry{
		ActorID:      actor.ID,
		Role:         string(actor.Role),
		Action:       "escalation.acknowledged",
		ResourceKind: "escalation",
		ResourceID:   fmt.Sprintf("%d", id),
		SourceIP:     actor.SourceIP,
	}); err != nil {
		return err
	}
	return tx.Commit()
}

// RespondEscalation records the handler's response for SLA measurement.
func (s Service) RespondEscalation(ctx context.Context, id int64, response string, actor lifecycle.Actor) error {
	if !escalationHandlerRole(actor.Role) {
		return lifecycle.Errf(lifecycle.CodeNotAuthorized, "role %s may not respond to escalations", actor.Role)
	}
	if strings.TrimSpace(response) == "" {
		return lifecycle.Errf(lifecycle.CodeInvalidArgument, "response is required")
	}
	tx, err := s.Engine.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := s.Engine.Repo.RespondEscalationTx(ctx, tx, id, response, s.nowRFC3339()); err != nil {
		if err == repo.ErrNotFound {
			return lifecycle.Errf(lifecycle.CodeNotFound, "no open escalation %d", id)
		}
		return err
	}
	if err := s.Engine.Audit.Append(ctx, tx, audit.Entry{
		ActorID:      actor.ID,
		Role:         string(actor.Role),
		Action:       "escalation.responded",
		ResourceKind: "escalation",
		ResourceID:   fmt.Sprintf("%d", id),
		SourceIP:     actor.SourceIP,
	}); err != nil {
		return err
	}
	return tx.Commit()
}

// ResolveEscalation closes the escalation.
func (s Service) ResolveEscalation(ctx context.Context, id int64, actor lifecycle.Actor) error {
	if !escalationHandlerRole(actor.Role) {
		return lifecycle.Errf(lifecycle.CodeNotAuthorized, "role %s may not resolve escalations", actor.Role)
	}
	tx, err := s.Engine.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := s.Engine.Repo.ResolveEscalationTx(ctx, tx, id, s.nowRFC3339()); err != nil {
		if err == repo.ErrNotFound {
			return lifecycle.Errf(lifecycle.CodeNotFound, "no open escalation %d", id)
		}
		return err
	}
	if err := s.Engine.Audit.Append(ctx, tx, audit.Entry{
		ActorID:      actor.ID,
		Role:         string(actor.Role),
		Action:       "escalation.resolved",
		ResourceKind: "escalation",
		ResourceID:   fmt.Sprintf("%d", id),
		SourceIP:     actor.SourceIP,
	}); err != nil {
		return err
	}
	return tx.Commit()
}

// OverdueEscalations lists unresolved escalations past their SLA deadline.
func (s Service) OverdueEscalations(ctx context.Context) ([]domain.Escalation, error) {
	return s.Engine.Repo.ListOverdueEscalations(ctx, s.nowRFC3339())
}
