package review_test

import (
	"context"
	"testing"
	"time"

	"grievline/internal/app"
	"grievline/internal/config"
	"grievline/internal/db"
	"grievline/internal/domain"
	"grievline/internal/lifecycle"
	"grievline/internal/migrate"
	"grievline/internal/repo"
	"grievline/internal/review"
)

type testEnv struct {
	Engine  lifecycle.Engine
	Service review.Service
	Ctx     context.Context
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.Default("testville")
	eng := lifecycle.New(conn, cfg)
	eng.Now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	ctx := context.Background()
	if err := app.SeedDepartments(ctx, eng.Repo, cfg); err != nil {
		t.Fatalf("seed departments: %v", err)
	}
	return testEnv{Engine: eng, Service: review.NewService(eng), Ctx: ctx}
}

func admin() lifecycle.Actor   { return lifecycle.Actor{ID: "adm-1", Role: domain.RoleAdmin} }
func citizen() lifecycle.Actor { return lifecycle.Actor{ID: "cit-1", Role: domain.RoleCitizen} }

// rejectedReport builds a report the submitter has grounds to appeal.
func (env testEnv) rejectedReport(t *testing.T) domain.Report {
	t.Helper()
	rep, err := env.Engine.CreateReport(env.Ctx, lifecycle.CreateReportOptions{
		Title: "Broken streetlight",
		Actor: citizen(),
	})
	if err != nil {
		t.Fatalf("create report: %v", err)
	}
	adm := admin()
	steps := []func() error{
		func() error {
			_, err := env.Engine.AssignDepartment(env.Ctx, lifecycle.AssignDepartmentOptions{ReportID: rep.ID, DepartmentID: "roads", Actor: adm})
			return err
		},
		func() error {
			_, err := env.Engine.AssignOfficer(env.Ctx, lifecycle.AssignOfficerOptions{ReportID: rep.ID, OfficerID: "off-1", Actor: adm})
			return err
		},
	}
	for _, target := range []domain.Status{domain.StatusAcknowledged, domain.StatusInProgress, domain.StatusPendingVerification, domain.StatusRejected} {
		target := target
		steps = append(steps, func() error {
			_, err := env.Engine.ApplyTransition(env.Ctx, lifecycle.TransitionOptions{ReportID: rep.ID, Target: target, Actor: adm})
			return err
		})
	}
	for _, step := range steps {
		if err := step(); err != nil {
			t.Fatalf("build rejected report: %v", err)
		}
	}
	got, err := env.Engine.Repo.GetReport(env.Ctx, rep.ID)
	if err != nil {
		t.Fatal(err)
	}
	return got
}

func TestSubmitAppealDuplicateGuard(t *testing.T) {
	env := newTestEnv(t)
	rep := env.rejectedReport(t)

	a, err := env.Service.SubmitAppeal(env.Ctx, review.SubmitAppealOptions{
		ReportID: rep.ID,
		Type:     domain.AppealRejection,
		Reason:   "the light is still broken",
		Actor:    citizen(),
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if a.Status != domain.AppealSubmitted {
		t.Fatalf("status = %s", a.Status)
	}

	_, err = env.Service.SubmitAppeal(env.Ctx, review.SubmitAppealOptions{
		ReportID: rep.ID,
		Type:     domain.AppealRejection,
		Reason:   "second attempt",
		Actor:    citizen(),
	})
	if le, ok := lifecycle.AsError(err); !ok || le.Code != lifecycle.CodeDuplicateOpenAppeal {
		t.Fatalf("expected duplicate_open_appeal, got %v", err)
	}

	// Withdrawal reopens the slot.
	if err := env.Service.WithdrawAppeal(env.Ctx, a.ID, citizen()); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if _, err := env.Service.SubmitAppeal(env.Ctx, review.SubmitAppealOptions{
		ReportID: rep.ID,
		Type:     domain.AppealRejection,
		Reason:   "resubmit after withdrawal",
		Actor:    citizen(),
	}); err != nil {
		t.Fatalf("resubmit: %v", err)
	}
}

func TestOpenAppealIndexBacksDuplicateGuard(t *testing.T) {
	env := newTestEnv(t)
	rep := env.rejectedReport(t)

	if _, err := env.Service.SubmitAppeal(env.Ctx, review.SubmitAppealOptions{
		ReportID: rep.ID,
		Type:     domain.AppealRejection,
		Reason:   "still broken",
		Actor:    citizen(),
	}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	// A submission racing past the read check lands on the partial
	// unique index. The insert error must classify as a unique
	// violation so the service can report duplicate_open_appeal
	// instead of a generic failure.
	tx, err := env.Engine.DB.BeginTx(env.Ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer tx.Rollback()
	_, err = env.Engine.Repo.InsertAppealTx(env.Ctx, tx, domain.Appeal{
		ReportID:    rep.ID,
		SubmitterID: citizen().ID,
		Type:        domain.AppealRejection,
		Reason:      "racing submission",
		Status:      domain.AppealSubmitted,
		CreatedAt:   "2026-03-01T12:00:00Z",
	})
	if err == nil {
		t.Fatal("second open appeal inserted past the index")
	}
	if !repo.IsUniqueViolation(err) {
		t.Fatalf("not classified as unique violation: %v", err)
	}
}

func TestSubmitAppealStrangerRejected(t *testing.T) {
	env := newTestEnv(t)
	rep := env.rejectedReport(t)

	_, err := env.Service.SubmitAppeal(env.Ctx, review.SubmitAppealOptions{
		ReportID: rep.ID,
		Type:     domain.AppealRejection,
		Reason:   "not my report",
		Actor:    lifecycle.Actor{ID: "cit-2", Role: domain.RoleCitizen},
	})
	if le, ok := lifecycle.AsError(err); !ok || le.Code != lifecycle.CodeNotAuthorized {
		t.Fatalf("expected not_authorized, got %v", err)
	}
}

func TestReviewAppealReworkEffect(t *testing.T) {
	env := newTestEnv(t)

	// Rework applies at pending_verification, before the verdict.
	rep, err := env.Engine.CreateReport(env.Ctx, lifecycle.CreateReportOptions{Title: "Leaking main", Actor: citizen()})
	if err != nil {
		t.Fatal(err)
	}
	adm := admin()
	if _, err := env.Engine.AssignDepartment(env.Ctx, lifecycle.AssignDepartmentOptions{ReportID: rep.ID, DepartmentID: "water", Actor: adm}); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.AssignOfficer(env.Ctx, lifecycle.AssignOfficerOptions{ReportID: rep.ID, OfficerID: "off-1", Actor: adm}); err != nil {
		t.Fatal(err)
	}
	for _, target := range []domain.Status{domain.StatusAcknowledged, domain.StatusInProgress, domain.StatusPendingVerification} {
		if _, err := env.Engine.ApplyTransition(env.Ctx, lifecycle.TransitionOptions{ReportID: rep.ID, Target: target, Actor: adm}); err != nil {
			t.Fatal(err)
		}
	}

	a, err := env.Service.SubmitAppeal(env.Ctx, review.SubmitAppealOptions{
		ReportID: rep.ID,
		Type:     domain.AppealQualityConcern,
		Reason:   "patch already failing",
		Actor:    citizen(),
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := env.Service.StartReview(env.Ctx, a.ID, adm); err != nil {
		t.Fatalf("start review: %v", err)
	}

	a, err = env.Service.ReviewAppeal(env.Ctx, review.ReviewAppealOptions{
		AppealID:       a.ID,
		Approve:        true,
		RequiresRework: true,
		ReworkNotes:    "redo the patch",
		Actor:          adm,
	})
	if err != nil {
		t.Fatalf("review: %v", err)
	}
	if a.Status != domain.AppealApproved || !a.RequiresRework {
		t.Fatalf("appeal = %+v", a)
	}

	// The back-edge went through the engine: status moved and history
	// carries the reviewer as actor.
	got, err := env.Engine.Repo.GetReport(env.Ctx, rep.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != domain.StatusInProgress {
		t.Fatalf("report status = %s, want in_progress", got.Status)
	}
	history, err := env.Engine.Repo.ListHistory(env.Ctx, rep.ID)
	if err != nil {
		t.Fatal(err)
	}
	last := history[len(history)-1]
	if last.OldStatus != domain.StatusPendingVerification || last.NewStatus != domain.StatusInProgress || last.ActorID != adm.ID {
		t.Fatalf("rework history = %+v", last)
	}
}

func TestReviewAppealReassignmentEffect(t *testing.T) {
	env := newTestEnv(t)
	rep := env.rejectedReport(t)

	a, err := env.Service.SubmitAppeal(env.Ctx, review.SubmitAppealOptions{
		ReportID: rep.ID,
		Type:     domain.AppealIncorrectAssignment,
		Reason:   "wrong crew",
		Actor:    citizen(),
	})
	if err != nil {
		t.Fatal(err)
	}
	newOfficer := "off-2"
	a, err = env.Service.ReviewAppeal(env.Ctx, review.ReviewAppealOptions{
		AppealID:     a.ID,
		Approve:      true,
		ReassignedTo: &newOfficer,
		Actor:        admin(),
	})
	if err != nil {
		t.Fatalf("review: %v", err)
	}
	if a.ReassignedTo == nil || *a.ReassignedTo != newOfficer {
		t.Fatalf("appeal reassignment = %+v", a)
	}

	task, err := env.Engine.Repo.GetActiveTask(env.Ctx, rep.ID)
	if err != nil {
		t.Fatal(err)
	}
	if task.OfficerID != newOfficer {
		t.Fatalf("active task officer = %s", task.OfficerID)
	}

	// Reassignment leaves the report status alone.
	got, err := env.Engine.Repo.GetReport(env.Ctx, rep.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != rep.Status {
		t.Fatalf("status changed: %s -> %s", rep.Status, got.Status)
	}
}

func TestReviewRejectionCarriesNoEffects(t *testing.T) {
	env := newTestEnv(t)
	rep := env.rejectedReport(t)

	a, err := env.Service.SubmitAppeal(env.Ctx, review.SubmitAppealOptions{
		ReportID: rep.ID,
		Type:     domain.AppealRejection,
		Reason:   "disagree",
		Actor:    citizen(),
	})
	if err != nil {
		t.Fatal(err)
	}

	_, err = env.Service.ReviewAppeal(env.Ctx, review.ReviewAppealOptions{
		AppealID:       a.ID,
		Approve:        false,
		RequiresRework: true,
		Actor:          admin(),
	})
	if le, ok := lifecycle.AsError(err); !ok || le.Code != lifecycle.CodeInvalidArgument {
		t.Fatalf("rework on rejection, got %v", err)
	}

	a, err = env.Service.ReviewAppeal(env.Ctx, review.ReviewAppealOptions{
		AppealID:    a.ID,
		Approve:     false,
		ReviewNotes: "resolution stands",
		Actor:       admin(),
	})
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if a.Status != domain.AppealRejected {
		t.Fatalf("status = %s", a.Status)
	}

	// A closed appeal cannot be reviewed again.
	_, err = env.Service.ReviewAppeal(env.Ctx, review.ReviewAppealOptions{AppealID: a.ID, Approve: true, Actor: admin()})
	if le, ok := lifecycle.AsError(err); !ok || le.Code != lifecycle.CodeInvalidTransition {
		t.Fatalf("double review, got %v", err)
	}
}

func TestReviewRequiresAdmin(t *testing.T) {
	env := newTestEnv(t)
	rep := env.rejectedReport(t)

	a, err := env.Service.SubmitAppeal(env.Ctx, review.SubmitAppealOptions{
		ReportID: rep.ID,
		Type:     domain.AppealRejection,
		Reason:   "disagree",
		Actor:    citizen(),
	})
	if err != nil {
		t.Fatal(err)
	}
	_, err = env.Service.ReviewAppeal(env.Ctx, review.ReviewAppealOptions{
		AppealID: a.ID,
		Approve:  true,
		Actor:    lifecycle.Actor{ID: "off-1", Role: domain.RoleOfficer},
	})
	if le, ok := lifecycle.AsError(err); !ok || le.Code != lifecycle.CodeNotAuthorized {
		t.Fatalf("officer review, got %v", err)
	}
}

func TestWithdrawRequiresSubmitter(t *testing.T) {
	env := newTestEnv(t)
	rep := env.rejectedReport(t)

	a, err := env.Service.SubmitAppeal(env.Ctx, review.SubmitAppealOptions{
		ReportID: rep.ID,
		Type:     domain.AppealRejection,
		Reason:   "disagree",
		Actor:    citizen(),
	})
	if err != nil {
		t.Fatal(err)
	}
	err = env.Service.WithdrawAppeal(env.Ctx, a.ID, lifecycle.Actor{ID: "cit-2", Role: domain.RoleCitizen})
	if le, ok := lifecycle.AsError(err); !ok || le.Code != lifecycle.CodeNotAuthorized {
		t.Fatalf("stranger withdraw, got %v", err)
	}
}
