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

// Service is the appeal/escalation overlay. It never writes report
// status itself; the rework back-edge goes through the lifecycle engine
// like every other transition.
type Service struct {
	Engine lifecycle.Engine
}

func NewService(eng lifecycle.Engine) Service {
	return Service{Engine: eng}
}

func (s Service) now() time.Time {
	if s.Engine.Now != nil {
		return s.Engine.Now()
	}
	return time.Now()
}

func (s Service) nowRFC3339() string {
	return s.now().UTC().Format(time.RFC3339)
}

type SubmitAppealOptions struct {
	ReportID        int64
	Type            domain.AppealType
	Reason          string
	Evidence        string
	RequestedAction string
	Actor           lifecycle.Actor
}

// SubmitAppeal creates an appeal. At most one open appeal may exist per
// report; a second submission is rejected, not queued.
func (s Service) SubmitAppeal(ctx context.Context, opts SubmitAppealOptions) (domain.Appeal, error) {
	if !opts.Type.Valid() {
		return domain.Appeal{}, lifecycle.Errf(lifecycle.CodeInvalidArgument, "unknown appeal type %s", opts.Type)
	}
	if strings.TrimSpace(opts.Reason) == "" {
		return domain.Appeal{}, lifecycle.Errf(lifecycle.CodeInvalidArgument, "reason is required")
	}

	tx, err := s.Engine.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Appeal{}, err
	}
	defer tx.Rollback()

	rep, err := s.Engine.Repo.GetReportTx(ctx, tx, opts.ReportID)
	if err != nil {
		if err == repo.ErrNotFound {
			return domain.Appeal{}, lifecycle.Errf(lifecycle.CodeNotFound, "report %d not found", opts.ReportID)
		}
		return domain.Appeal{}, err
	}
	if opts.Actor.Role == domain.RoleCitizen && opts.Actor.ID != rep.SubmitterID {
		return domain.Appeal{}, lifecycle.Errf(lifecycle.CodeNotAuthorized, "only the report submitter may appeal report %d", rep.ID)
	}

	if _, err := s.Engine.Repo.GetOpenAppealTx(ctx, tx, rep.ID); err == nil {
		return domain.Appeal{}, lifecycle.Errf(lifecycle.CodeDuplicateOpenAppeal, "report %d already has an open appeal", rep.ID)
	} else if err != repo.ErrNotFound {
		return domain.Appeal{}, err
	}

	now := s.nowRFC3339()
	a := domain.Appeal{
		ReportID:        rep.ID,
		SubmitterID:     opts.Actor.ID,
		Type:            opts.Type,
		Reason:          opts.Reason,
		Evidence:        opts.Evidence,
		RequestedAction: opts.RequestedAction,
		Status:          domain.AppealSubmitted,
		CreatedAt:       now,
	}
	id, err := s.Engine.Repo.InsertAppealTx(ctx, tx, a)
	if err != nil {
		// A racing submission can slip past the read above; the
		// partial unique index stops it here.
		if repo.IsUniqueViolation(err) {
			return domain.Appeal{}, lifecycle.Errf(lifecycle.CodeDuplicateOpenAppeal, "report %d already has an open appeal", rep.ID)
		}
		return domain.Appeal{}, fmt.Errorf("insert appeal: %w", err)
	}
	a.ID = id
	if err := s.Engine.Audit.Append(ctx, tx, audit.Entry{
		ActorID:      opts.Actor.ID,
		Role:         string(opts.Actor.Role),
		Action:       "appeal.submitted",
		ResourceKind: "appeal",
		ResourceID:   fmt.Sprintf("%d", id),
		SourceIP:     opts.Actor.SourceIP,
		Description:  fmt.Sprintf("appeal on report %s (%s)", rep.Number, opts.Type),
		Metadata:     audit.Metadata{"report_id": rep.ID, "type": string(opts.Type)},
	}); err != nil {
		return domain.Appeal{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Appeal{}, err
	}
	return a, nil
}

// StartReview moves a submitted appeal under review. Admin only.
func (s Service) StartReview(ctx context.Context, appealID int64, actor lifecycle.Actor) error {
	if actor.Role != domain.RoleAdmin {
		return lifecycle.Errf(lifecycle.CodeNotAuthorized, "role %s may not review appeals", actor.Role)
	}
	tx, err := s.Engine.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := s.Engine.Repo.SetAppealUnderReviewTx(ctx, tx, appealID, actor.ID); err != nil {
		if err == repo.ErrNotFound {
			return lifecycle.Errf(lifecycle.CodeNotFound, "no submitted appeal %d", appealID)
		}
		return err
	}
	if err := s.Engine.Audit.Append(ctx, tx, audit.Entry{
		ActorID:      actor.ID,
		Role:         string(actor.Role),
		Action:       "appeal.review_started",
		ResourceKind: "appeal",
		ResourceID:   fmt.Sprintf("%d", appealID),
		SourceIP:     actor.SourceIP,
	}); err != nil {
		return err
	}
	return tx.Commit()
}

type ReviewAppealOptions struct {
	AppealID       int64
	Approve        bool
	ReviewNotes    string
	RequiresRework bool
	ReworkNotes    string
	ReassignedDept *string
	ReassignedTo   *string
	Actor          lifecycle.Actor
}

// ReviewAppeal closes an open appeal as approved or rejected. Approval
// may carry two independently optional effects: rework, which forces
// the report back to in_progress through the lifecycle engine, and
// reassignment, which supersedes the active task. Rejection carries
// neither.
func (s Service) ReviewAppeal(ctx context.Context, opts ReviewAppealOptions) (domain.Appeal, error) {
	if opts.Actor.Role != domain.RoleAdmin {
		return domain.Appeal{}, lifecycle.Errf(lifecycle.CodeNotAuthorized, "role %s may not review appeals", opts.Actor.Role)
	}
	if !opts.Approve && (opts.RequiresRework || opts.ReassignedDept != nil || opts.ReassignedTo != nil) {
		return domain.Appeal{}, lifecycle.Errf(lifecycle.CodeInvalidArgument, "rework and reassignment require approval")
	}

	tx, err := s.Engine.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Appeal{}, err
	}
	defer tx.Rollback()

	a, err := s.Engine.Repo.GetAppealTx(ctx, tx, opts.AppealID)
	if err != nil {
		if err == repo.ErrNotFound {
			return domain.Appeal{}, lifecycle.Errf(lifecycle.CodeNotFound, "appeal %d not found", opts.AppealID)
		}
		return domain.Appeal{}, err
	}
	if !a.Status.Open() {
		return domain.Appeal{}, lifecycle.Errf(lifecycle.CodeInvalidTransition, "appeal %d is already %s", a.ID, a.Status)
	}

	decision := domain.AppealRejected
	if opts.Approve {
		decision = domain.AppealApproved
	}
	now := s.nowRFC3339()
	if err := s.Engine.Repo.CloseAppealTx(ctx, tx, a.ID, repo.AppealDecision{
		Status:         decision,
		ReviewerID:     opts.Actor.ID,
		ReviewNotes:    opts.ReviewNotes,
		ReassignedDept: opts.ReassignedDept,
		ReassignedTo:   opts.ReassignedTo,
		RequiresRework: opts.RequiresRework,
		ReworkNotes:    opts.ReworkNotes,
		ReviewedAt:     now,
	}); err != nil {
		if err == repo.ErrNotFound {
			return domain.Appeal{}, lifecycle.Errf(lifecycle.CodeInvalidTransition, "appeal %d is no longer open", a.ID)
		}
		return domain.Appeal{}, err
	}
	if err := s.Engine.Audit.Append(ctx, tx, audit.Entry{
		ActorID:      opts.Actor.ID,
		Role:         string(opts.Actor.Role),
		Action:       "appeal." + string(decision),
		ResourceKind: "appeal",
		ResourceID:   fmt.Sprintf("%d", a.ID),
		SourceIP:     opts.Actor.SourceIP,
		Description:  fmt.Sprintf("appeal %d on report %d %s", a.ID, a.ReportID, decision),
		Metadata: audit.Metadata{
			"report_id":       a.ReportID,
			"requires_rework": opts.RequiresRework,
		},
	}); err != nil {
		return domain.Appeal{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Appeal{}, err
	}

	a.Status = decision
	a.ReviewerID = &opts.Actor.ID
	a.ReviewNotes = opts.ReviewNotes
	a.ReassignedDept = opts.ReassignedDept
	a.ReassignedTo = opts.ReassignedTo
	a.RequiresRework = opts.RequiresRework
	a.ReworkNotes = opts.ReworkNotes
	a.ReviewedAt = &now

	if !opts.Approve {
		return a, nil
	}

	if opts.RequiresRework {
		if _, err := s.Engine.ApplyTransition(ctx, lifecycle.TransitionOptions{
			ReportID:        a.ReportID,
			Target:          domain.StatusInProgress,
			Actor:           opts.Actor,
			Notes:           opts.ReworkNotes,
			ViaAppealRework: true,
		}); err != nil {
			return a, err
		}
	}
	if opts.ReassignedDept != nil || opts.ReassignedTo != nil {
		if err := s.Engine.Reassign(ctx, lifecycle.ReassignOptions{
			ReportID:     a.ReportID,
			OfficerID:    opts.ReassignedTo,
			DepartmentID: opts.ReassignedDept,
			Actor:        opts.Actor,
			Notes:        opts.ReviewNotes,
		}); err != nil {
			return a, err
		}
	}
	return a, nil
}

// WithdrawAppeal closes an open appeal at the submitter's request.
func (s Service) WithdrawAppeal(ctx context.Context, appealID int64, actor lifecycle.Actor) error {
	tx, err := s.Engine.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	a, err := s.Engine.Repo.GetAppealTx(ctx, tx, appealID)
	if err != nil {
		if err == repo.ErrNotFound {
			return lifecycle.Errf(lifecycle.CodeNotFound, "appeal %d not found", appealID)
		}
		return err
	}
	if a.SubmitterID != actor.ID {
		return lifecycle.Errf(lifecycle.CodeNotAuthorized, "only the submitter may withdraw appeal %d", appealID)
	}
	if !a.Status.Open() {
		return lifecycle.Errf(lifecycle.CodeInvalidTransition, "appeal %d is already %s", a.ID, a.Status)
	}
	if err := s.Engine.Repo.WithdrawAppealTx(ctx, tx, appealID, actor.ID); err != nil {
		return err
	}
	if err := s.Engine.Audit.Append(ctx, tx, audit.Entry{
		ActorID:      actor.ID,
		Role:         string(actor.Role),
		Action:       "appeal.withdrawn",
		ResourceKind: "appeal",
		ResourceID:   fmt.Sprintf("%d", appealID),
		SourceIP:     actor.SourceIP,
		Metadata:     audit.Metadata{"report_id": a.ReportID},
	}); err != nil {
		return err
	}
	return tx.Commit()
}
