package lifecycle

import (
	"grievline/internal/domain"
)

// Actor is the principal invoking a transition.
type Actor struct {
	ID       string
	Role     domain.Role
	SourceIP string
}

// forwardEdges is the legal transition graph. ON_HOLD round trips and
// the rework back-edge are handled separately in Validate; nothing else
// may ever point backwards.
var forwardEdges = map[domain.Status][]domain.Status{
	domain.StatusReceived:              {domain.StatusPendingClassification, domain.StatusAssignedToDepartment},
	domain.StatusPendingClassification: {domain.StatusClassified},
	domain.StatusClassified:            {domain.StatusAssignedToDepartment},
	domain.StatusAssignedToDepartment:  {domain.StatusAssignedToOfficer},
	domain.StatusAssignedToOfficer:     {domain.StatusAcknowledged},
	domain.StatusAcknowledged:          {domain.StatusInProgress},
	domain.StatusInProgress:            {domain.StatusPendingVerification},
	domain.StatusPendingVerification:   {domain.StatusResolved, domain.StatusRejected},
	domain.StatusResolved:              {domain.StatusClosed},
	domain.StatusRejected:              {domain.StatusClosed},
}

// ValidateInput is everything Validate needs; it never touches storage.
type ValidateInput struct {
	Report domain.Report
	Target domain.Status
	Actor  Actor
	// HasActiveTask reflects whether a non-superseded task exists, or
	// will exist once the surrounding operation commits.
	HasActiveTask bool
	// ViaAppealRework sanctions the pending_verification -> in_progress
	// back-edge. Only the appeal overlay sets it.
	ViaAppealRework bool
}

// Validate checks, in order: edge legality, structural preconditions,
// then role authorization. It is pure: every write path, single, bulk
// or overlay, consults this one function.
func Validate(in ValidateInput) *Error {
	cur, target := in.Report.Status, in.Target
	if !target.Valid() {
		return Errf(CodeInvalidTransition, "unknown status %s", target)
	}
	if cur == target {
		return Errf(CodeInvalidTransition, "report already in status %s", cur)
	}

	if !edgeAllowed(in) {
		return Errf(CodeInvalidTransition, "invalid status transition %s -> %s", cur, target)
	}

	if err := checkPreconditions(in); err != nil {
		return err
	}

	return checkRole(in)
}

func edgeAllowed(in ValidateInput) bool {
	cur, target := in.Report.Status, in.Target

	// Any non-terminal state may pause; resuming must return to the
	// exact state the report held before the hold.
	if target == domain.StatusOnHold {
		return cur != domain.StatusOnHold && !cur.Terminal()
	}
	if cur == domain.StatusOnHold {
		return in.Report.HoldStatus != nil && *in.Report.HoldStatus == target
	}

	if cur == domain.StatusPendingVerification && target == domain.StatusInProgress {
		return in.ViaAppealRework
	}

	for _, next := range forwardEdges[cur] {
		if next == target {
			return true
		}
	}
	return false
}

func checkPreconditions(in ValidateInput) *Error {
	switch in.Target {
	case domain.StatusAssignedToDepartment:
		if in.Report.DepartmentID == nil || *in.Report.DepartmentID == "" {
			return Errf(CodeMissingDepartment, "report %d has no department assigned", in.Report.ID)
		}
	case domain.StatusAssignedToOfficer, domain.StatusAcknowledged, domain.StatusInProgress, domain.StatusPendingVerification:
		if !in.HasActiveTask {
			return Errf(CodeMissingOfficer, "report %d has no active officer task", in.Report.ID)
		}
	}
	return nil
}

func checkRole(in ValidateInput) *Error {
	if in.Actor.Role == domain.RoleAdmin {
		return nil
	}
	cur, target := in.Report.Status, in.Target

	switch target {
	case domain.StatusAcknowledged, domain.StatusInProgress, domain.StatusPendingVerification:
		if in.Actor.Role == domain.RoleOfficer && cur != domain.StatusOnHold {
			return nil
		}
	case domain.StatusOnHold:
		if in.Actor.Role == domain.RoleOfficer {
			return nil
		}
	case domain.StatusClosed:
		// Submitters may close their own resolved or rejected report.
		if in.Actor.Role == domain.RoleCitizen && in.Actor.ID == in.Report.SubmitterID {
			return nil
		}
	}
	return Errf(CodeNotAuthorized, "role %s may not move report %d from %s to %s", in.Actor.Role, in.Report.ID, cur, target)
}
