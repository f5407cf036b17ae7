package review_test

import (
	"testing"
	"time"

	"grievline/internal/domain"
	"grievline/internal/lifecycle"
	"grievline/internal/review"
)

func TestEscalationSLADeadline(t *testing.T) {
	env := newTestEnv(t)
	rep, err := env.Engine.CreateReport(env.Ctx, lifecycle.CreateReportOptions{Title: "Overflowing bin", Actor: citizen()})
	if err != nil {
		t.Fatal(err)
	}

	esc, err := env.Service.SubmitEscalation(env.Ctx, review.SubmitEscalationOptions{
		ReportID: rep.ID,
		Level:    domain.EscalationSupervisor,
		Reason:   "no action for a week",
		Actor:    citizen(),
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if esc.Status != domain.EscalationSubmitted {
		t.Fatalf("status = %s", esc.Status)
	}

	// Supervisor level carries the configured 48h window.
	created, _ := time.Parse(time.RFC3339, esc.CreatedAt)
	deadline, _ := time.Parse(time.RFC3339, esc.SLADeadline)
	if got := deadline.Sub(created); got != 48*time.Hour {
		t.Fatalf("sla window = %v, want 48h", got)
	}

	// Report status is untouched.
	got, err := env.Engine.Repo.GetReport(env.Ctx, rep.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != domain.StatusReceived {
		t.Fatalf("report status = %s", got.Status)
	}
}

func TestEscalationHandlerFlow(t *testing.T) {
	env := newTestEnv(t)
	rep, err := env.Engine.CreateReport(env.Ctx, lifecycle.CreateReportOptions{Title: "Flooded underpass", Actor: citizen()})
	if err != nil {
		t.Fatal(err)
	}
	esc, err := env.Service.SubmitEscalation(env.Ctx, review.SubmitEscalationOptions{
		ReportID: rep.ID,
		Level:    domain.EscalationManager,
		Reason:   "safety hazard",
		Actor:    citizen(),
	})
	if err != nil {
		t.Fatal(err)
	}

	sup := lifecycle.Actor{ID: "sup-1", Role: domain.RoleSupervisor}

	// Citizens are not handlers.
	err = env.Service.AcknowledgeEscalation(env.Ctx, esc.ID, citizen())
	if le, ok := lifecycle.AsError(err); !ok || le.Code != lifecycle.CodeNotAuthorized {
		t.Fatalf("citizen acknowledge, got %v", err)
	}

	if err := env.Service.AcknowledgeEscalation(env.Ctx, esc.ID, sup); err != nil {
		t.Fatalf("acknowledge: %v", err)
	}
	// The small machine only moves forward.
	err = env.Service.AcknowledgeEscalation(env.Ctx, esc.ID, sup)
	if le, ok := lifecycle.AsError(err); !ok || le.Code != lifecycle.CodeNotFound {
		t.Fatalf("double acknowledge, got %v", err)
	}

	if err := env.Service.RespondEscalation(env.Ctx, esc.ID, "crew dispatched", sup); err != nil {
		t.Fatalf("respond: %v", err)
	}
	if err := env.Service.ResolveEscalation(env.Ctx, esc.ID, sup); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	got, err := env.Engine.Repo.GetEscalation(env.Ctx, esc.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != domain.EscalationResolved || got.Response != "crew dispatched" {
		t.Fatalf("escalation = %+v", got)
	}
	if got.AcknowledgedBy == nil || *got.AcknowledgedBy != "sup-1" {
		t.Fatalf("acknowledged_by = %v", got.AcknowledgedBy)
	}
}

func TestEscalationStepsCannotBeSkipped(t *testing.T) {
	env := newTestEnv(t)
	rep, err := env.Engine.CreateReport(env.Ctx, lifecycle.CreateReportOptions{Title: "Broken streetlight", Actor: citizen()})
	if err != nil {
		t.Fatal(err)
	}
	esc, err := env.Service.SubmitEscalation(env.Ctx, review.SubmitEscalationOptions{
		ReportID: rep.ID,
		Level:    domain.EscalationSupervisor,
		Reason:   "still dark",
		Actor:    citizen(),
	})
	if err != nil {
		t.Fatal(err)
	}

	sup := lifecycle.Actor{ID: "sup-1", Role: domain.RoleSupervisor}

	// Neither respond nor resolve is reachable from submitted.
	err = env.Service.RespondEscalation(env.Ctx, esc.ID, "too early", sup)
	if le, ok := lifecycle.AsError(err); !ok || le.Code != lifecycle.CodeNotFound {
		t.Fatalf("respond from submitted, got %v", err)
	}
	err = env.Service.ResolveEscalation(env.Ctx, esc.ID, sup)
	if le, ok := lifecycle.AsError(err); !ok || le.Code != lifecycle.CodeNotFound {
		t.Fatalf("resolve from submitted, got %v", err)
	}

	// Resolve is still not reachable from acknowledged.
	if err := env.Service.AcknowledgeEscalation(env.Ctx, esc.ID, sup); err != nil {
		t.Fatal(err)
	}
	err = env.Service.ResolveEscalation(env.Ctx, esc.ID, sup)
	if le, ok := lifecycle.AsError(err); !ok || le.Code != lifecycle.CodeNotFound {
		t.Fatalf("resolve from acknowledged, got %v", err)
	}

	got, err := env.Engine.Repo.GetEscalation(env.Ctx, esc.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != domain.EscalationAcknowledged {
		t.Fatalf("status = %s", got.Status)
	}
	if got.RespondedAt != nil || got.ResolvedAt != nil {
		t.Fatalf("skipped steps left stamps: %+v", got)
	}
}

func TestOverdueEscalations(t *testing.T) {
	env := newTestEnv(t)
	rep, err := env.Engine.CreateReport(env.Ctx, lifecycle.CreateReportOptions{Title: "Collapsed wall", Actor: citizen()})
	if err != nil {
		t.Fatal(err)
	}
	esc, err := env.Service.SubmitEscalation(env.Ctx, review.SubmitEscalationOptions{
		ReportID: rep.ID,
		Level:    domain.EscalationSupervisor,
		Reason:   "urgent",
		Actor:    citizen(),
	})
	if err != nil {
		t.Fatal(err)
	}

	overdue, err := env.Service.OverdueEscalations(env.Ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(overdue) != 0 {
		t.Fatalf("fresh escalation already overdue")
	}

	// Jump the clock past the 48h window.
	base := env.Engine.Now()
	env.Engine.Now = func() time.Time { return base.Add(49 * time.Hour) }
	env.Service = review.NewService(env.Engine)

	overdue, err = env.Service.OverdueEscalations(env.Ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(overdue) != 1 || overdue[0].ID != esc.ID {
		t.Fatalf("overdue = %+v", overdue)
	}

	// Resolved escalations drop off the overdue list.
	sup := lifecycle.Actor{ID: "sup-1", Role: domain.RoleSupervisor}
	if err := env.Service.AcknowledgeEscalation(env.Ctx, esc.ID, sup); err != nil {
		t.Fatal(err)
	}
	if err := env.Service.RespondEscalation(env.Ctx, esc.ID, "handled", sup); err != nil {
		t.Fatal(err)
	}
	if err := env.Service.ResolveEscalation(env.Ctx, esc.ID, sup); err != nil {
		t.Fatal(err)
	}
	overdue, err = env.Service.OverdueEscalations(env.Ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(overdue) != 0 {
		t.Fatalf("resolved escalation still overdue")
	}
}

func TestEscalationValidation(t *testing.T) {
	env := newTestEnv(t)
	rep, err := env.Engine.CreateReport(env.Ctx, lifecycle.CreateReportOptions{Title: "Noise complaint", Actor: citizen()})
	if err != nil {
		t.Fatal(err)
	}

	_, err = env.Service.SubmitEscalation(env.Ctx, review.SubmitEscalationOptions{
		ReportID: rep.ID,
		Level:    domain.EscalationLevel("mayor"),
		Reason:   "x",
		Actor:    citizen(),
	})
	if le, ok := lifecycle.AsError(err); !ok || le.Code != lifecycle.CodeInvalidArgument {
		t.Fatalf("bad level, got %v", err)
	}

	_, err = env.Service.SubmitEscalation(env.Ctx, review.SubmitEscalationOptions{
		ReportID: rep.ID,
		Level:    domain.EscalationSupervisor,
		Actor:    citizen(),
	})
	if le, ok := lifecycle.AsError(err); !ok || le.Code != lifecycle.CodeInvalidArgument {
		t.Fatalf("missing reason, got %v", err)
	}

	_, err = env.Service.SubmitEscalation(env.Ctx, review.SubmitEscalationOptions{
		ReportID: rep.ID,
		Level:    domain.EscalationSupervisor,
		Reason:   "not mine",
		Actor:    lifecycle.Actor{ID: "cit-9", Role: domain.RoleCitizen},
	})
	if le, ok := lifecycle.AsError(err); !ok || le.Code != lifecycle.CodeNotAuthorized {
		t.Fatalf("stranger escalate, got %v", err)
	}
}
