package lifecycle_test

import (
	"testing"

	"grievline/internal/domain"
	"grievline/internal/lifecycle"
	"grievline/internal/repo"
)

func TestBulkStatusPartialSuccess(t *testing.T) {
	env := newTestEnv(t)

	// Two reports ready for classification, one already past it.
	a := env.createReport(t, "cit-1")
	b := env.createReport(t, "cit-2")
	c := env.createReport(t, "cit-3")
	if _, err := env.Engine.ApplyTransition(env.Ctx, lifecycle.TransitionOptions{ReportID: c.ID, Target: domain.StatusPendingClassification, Actor: admin()}); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.Classify(env.Ctx, lifecycle.ClassifyOptions{ReportID: c.ID, Category: "roads", Severity: domain.SeverityLow, Actor: admin()}); err != nil {
		t.Fatal(err)
	}

	res, err := env.Engine.BulkStatus(env.Ctx, []int64{a.ID, b.ID, c.ID, 9999}, domain.StatusPendingClassification, admin(), "triage sweep")
	if err != nil {
		t.Fatalf("bulk: %v", err)
	}
	if res.Total != 4 || res.Successful != 2 || res.Failed != 2 {
		t.Fatalf("result = %+v", res)
	}
	if len(res.SuccessfulIDs) != 2 || len(res.FailedIDs) != 2 {
		t.Fatalf("id lists = %+v", res)
	}
	codes := map[int64]string{}
	for _, e := range res.Errors {
		codes[e.ReportID] = e.Code
	}
	if codes[c.ID] != lifecycle.CodeInvalidTransition {
		t.Fatalf("classified report code = %s", codes[c.ID])
	}
	if codes[9999] != lifecycle.CodeNotFound {
		t.Fatalf("missing report code = %s", codes[9999])
	}

	// One item's failure never rolls back another's success.
	got, err := env.Engine.Repo.GetReport(env.Ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != domain.StatusPendingClassification {
		t.Fatalf("report a status = %s", got.Status)
	}

	// One batch summary entry on top of the per-item entries.
	entries, err := env.Engine.Repo.ListAuditLog(env.Ctx, repo.AuditFilter{Action: "report.bulk_status"})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("summary entries = %d, want 1", len(entries))
	}
	if entries[0].ResourceKind != "report_batch" {
		t.Fatalf("summary resource kind = %s", entries[0].ResourceKind)
	}
}

func TestBulkSizeLimits(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.Engine.BulkStatus(env.Ctx, nil, domain.StatusClosed, admin(), "")
	if le, ok := lifecycle.AsError(err); !ok || le.Code != lifecycle.CodeInvalidArgument {
		t.Fatalf("empty batch, got %v", err)
	}

	ids := make([]int64, env.Engine.Config.MaxBulkItems()+1)
	for i := range ids {
		ids[i] = int64(i + 1)
	}
	_, err = env.Engine.BulkStatus(env.Ctx, ids, domain.StatusClosed, admin(), "")
	if le, ok := lifecycle.AsError(err); !ok || le.Code != lifecycle.CodeInvalidArgument {
		t.Fatalf("oversized batch, got %v", err)
	}
}

func TestBulkAssignDepartment(t *testing.T) {
	env := newTestEnv(t)
	a := env.createReport(t, "cit-1")
	b := env.createReport(t, "cit-2")

	res, err := env.Engine.BulkAssignDepartment(env.Ctx, []int64{a.ID, b.ID}, "sanitation", admin())
	if err != nil {
		t.Fatal(err)
	}
	if res.Successful != 2 {
		t.Fatalf("result = %+v", res)
	}
	for _, id := range []int64{a.ID, b.ID} {
		got, err := env.Engine.Repo.GetReport(env.Ctx, id)
		if err != nil {
			t.Fatal(err)
		}
		if got.Status != domain.StatusAssignedToDepartment || got.DepartmentID == nil || *got.DepartmentID != "sanitation" {
			t.Fatalf("report %d: %+v", id, got)
		}
	}
}

func TestBulkSeverityRoleGate(t *testing.T) {
	env := newTestEnv(t)
	a := env.createReport(t, "cit-1")

	res, err := env.Engine.BulkSetSeverity(env.Ctx, []int64{a.ID}, domain.SeverityCritical, lifecycle.Actor{ID: "off-1", Role: domain.RoleOfficer})
	if err != nil {
		t.Fatal(err)
	}
	if res.Failed != 1 || res.Errors[0].Code != lifecycle.CodeNotAuthorized {
		t.Fatalf("result = %+v", res)
	}
}
