package lifecycle_test

import (
	"testing"

	"grievline/internal/domain"
	"grievline/internal/lifecycle"
)

func statusPtr(s domain.Status) *domain.Status { return &s }

func admin() lifecycle.Actor {
	return lifecycle.Actor{ID: "adm-1", Role: domain.RoleAdmin}
}

func TestForwardEdges(t *testing.T) {
	dept := "sanitation"
	cases := []struct {
		name   string
		from   domain.Status
		to     domain.Status
		ok     bool
		code   string
		report func(r *domain.Report)
	}{
		{name: "received to pending_classification", from: domain.StatusReceived, to: domain.StatusPendingClassification, ok: true},
		{name: "received direct routing", from: domain.StatusReceived, to: domain.StatusAssignedToDepartment, ok: true,
			report: func(r *domain.Report) { r.DepartmentID = &dept }},
		{name: "pending_classification to classified", from: domain.StatusPendingClassification, to: domain.StatusClassified, ok: true},
		{name: "classified to department", from: domain.StatusClassified, to: domain.StatusAssignedToDepartment, ok: true,
			report: func(r *domain.Report) { r.DepartmentID = &dept }},
		{name: "skip to resolved", from: domain.StatusReceived, to: domain.StatusResolved, ok: false, code: lifecycle.CodeInvalidTransition},
		{name: "backwards", from: domain.StatusInProgress, to: domain.StatusAcknowledged, ok: false, code: lifecycle.CodeInvalidTransition},
		{name: "self transition", from: domain.StatusInProgress, to: domain.StatusInProgress, ok: false, code: lifecycle.CodeInvalidTransition},
		{name: "unknown status", from: domain.StatusReceived, to: domain.Status("bogus"), ok: false, code: lifecycle.CodeInvalidTransition},
		{name: "out of terminal", from: domain.StatusClosed, to: domain.StatusInProgress, ok: false, code: lifecycle.CodeInvalidTransition},
		{name: "resolved to closed", from: domain.StatusResolved, to: domain.StatusClosed, ok: true},
		{name: "rejected to closed", from: domain.StatusRejected, to: domain.StatusClosed, ok: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rep := domain.Report{ID: 1, Status: tc.from}
			if tc.report != nil {
				tc.report(&rep)
			}
			err := lifecycle.Validate(lifecycle.ValidateInput{
				Report:        rep,
				Target:        tc.to,
				Actor:         admin(),
				HasActiveTask: true,
			})
			if tc.ok && err != nil {
				t.Fatalf("expected legal edge, got %v", err)
			}
			if !tc.ok {
				if err == nil {
					t.Fatalf("expected rejection")
				}
				if err.Code != tc.code {
					t.Fatalf("code = %s, want %s", err.Code, tc.code)
				}
			}
		})
	}
}

func TestHoldRoundTrip(t *testing.T) {
	// Pausing is allowed from any non-terminal state.
	err := lifecycle.Validate(lifecycle.ValidateInput{
		Report: domain.Report{ID: 1, Status: domain.StatusInProgress},
		Target: domain.StatusOnHold,
		Actor:  admin(),
	})
	if err != nil {
		t.Fatalf("hold from in_progress: %v", err)
	}

	// Resuming must return exactly to the held state.
	held := domain.Report{ID: 1, Status: domain.StatusOnHold, HoldStatus: statusPtr(domain.StatusInProgress)}
	if err := lifecycle.Validate(lifecycle.ValidateInput{Report: held, Target: domain.StatusInProgress, Actor: admin(), HasActiveTask: true}); err != nil {
		t.Fatalf("resume to held status: %v", err)
	}
	err = lifecycle.Validate(lifecycle.ValidateInput{Report: held, Target: domain.StatusResolved, Actor: admin(), HasActiveTask: true})
	if err == nil || err.Code != lifecycle.CodeInvalidTransition {
		t.Fatalf("resume to other status should fail, got %v", err)
	}

	// Terminal reports never pause.
	err = lifecycle.Validate(lifecycle.ValidateInput{
		Report: domain.Report{ID: 1, Status: domain.StatusClosed},
		Target: domain.StatusOnHold,
		Actor:  admin(),
	})
	if err == nil {
		t.Fatalf("hold from closed should fail")
	}
}

func TestReworkBackEdge(t *testing.T) {
	rep := domain.Report{ID: 1, Status: domain.StatusPendingVerification}
	err := lifecycle.Validate(lifecycle.ValidateInput{Report: rep, Target: domain.StatusInProgress, Actor: admin(), HasActiveTask: true})
	if err == nil || err.Code != lifecycle.CodeInvalidTransition {
		t.Fatalf("back-edge without rework flag should fail, got %v", err)
	}
	err = lifecycle.Validate(lifecycle.ValidateInput{Report: rep, Target: domain.StatusInProgress, Actor: admin(), HasActiveTask: true, ViaAppealRework: true})
	if err != nil {
		t.Fatalf("sanctioned rework: %v", err)
	}
}

func TestPreconditions(t *testing.T) {
	err := lifecycle.Validate(lifecycle.ValidateInput{
		Report: domain.Report{ID: 1, Status: domain.StatusClassified},
		Target: domain.StatusAssignedToDepartment,
		Actor:  admin(),
	})
	if err == nil || err.Code != lifecycle.CodeMissingDepartment {
		t.Fatalf("expected missing_department, got %v", err)
	}

	err = lifecycle.Validate(lifecycle.ValidateInput{
		Report: domain.Report{ID: 1, Status: domain.StatusAssignedToOfficer},
		Target: domain.StatusAcknowledged,
		Actor:  admin(),
	})
	if err == nil || err.Code != lifecycle.CodeMissingOfficer {
		t.Fatalf("expected missing_officer, got %v", err)
	}
}

func TestRoleGates(t *testing.T) {
	officer := lifecycle.Actor{ID: "off-1", Role: domain.RoleOfficer}
	citizen := lifecycle.Actor{ID: "cit-1", Role: domain.RoleCitizen}

	// Officers work their assigned states.
	err := lifecycle.Validate(lifecycle.ValidateInput{
		Report:        domain.Report{ID: 1, Status: domain.StatusAssignedToOfficer},
		Target:        domain.StatusAcknowledged,
		Actor:         officer,
		HasActiveTask: true,
	})
	if err != nil {
		t.Fatalf("officer acknowledge: %v", err)
	}

	// Officers do not route departments.
	err = lifecycle.Validate(lifecycle.ValidateInput{
		Report: domain.Report{ID: 1, Status: domain.StatusPendingClassification},
		Target: domain.StatusClassified,
		Actor:  officer,
	})
	if err == nil || err.Code != lifecycle.CodeNotAuthorized {
		t.Fatalf("officer classify should fail, got %v", err)
	}

	// Officers may pause but not resume.
	if err := lifecycle.Validate(lifecycle.ValidateInput{
		Report:        domain.Report{ID: 1, Status: domain.StatusInProgress},
		Target:        domain.StatusOnHold,
		Actor:         officer,
		HasActiveTask: true,
	}); err != nil {
		t.Fatalf("officer hold: %v", err)
	}
	err = lifecycle.Validate(lifecycle.ValidateInput{
		Report:        domain.Report{ID: 1, Status: domain.StatusOnHold, HoldStatus: statusPtr(domain.StatusInProgress)},
		Target:        domain.StatusInProgress,
		Actor:         officer,
		HasActiveTask: true,
	})
	if err == nil || err.Code != lifecycle.CodeNotAuthorized {
		t.Fatalf("officer resume should fail, got %v", err)
	}

	// Submitters close their own finished report; strangers do not.
	resolved := domain.Report{ID: 1, Status: domain.StatusResolved, SubmitterID: "cit-1"}
	if err := lifecycle.Validate(lifecycle.ValidateInput{Report: resolved, Target: domain.StatusClosed, Actor: citizen}); err != nil {
		t.Fatalf("submitter close: %v", err)
	}
	err = lifecycle.Validate(lifecycle.ValidateInput{
		Report: resolved,
		Target: domain.StatusClosed,
		Actor:  lifecycle.Actor{ID: "cit-2", Role: domain.RoleCitizen},
	})
	if err == nil || err.Code != lifecycle.CodeNotAuthorized {
		t.Fatalf("stranger close should fail, got %v", err)
	}

	// Supervisors observe; they do not move reports.
	err = lifecycle.Validate(lifecycle.ValidateInput{
		Report: domain.Report{ID: 1, Status: domain.StatusPendingClassification},
		Target: domain.StatusClassified,
		Actor:  lifecycle.Actor{ID: "sup-1", Role: domain.RoleSupervisor},
	})
	if err == nil || err.Code != lifecycle.CodeNotAuthorized {
		t.Fatalf("supervisor classify should fail, got %v", err)
	}
}
