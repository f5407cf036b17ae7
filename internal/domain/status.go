package domain

// Status is the citizen-visible lifecycle state of a report.
type Status string

const (
	StatusReceived              Status = "received"
	StatusPendingClassification Status = "pending_classification"
	StatusClassified            Status = "classified"
	StatusAssignedToDepartment  Status = "assigned_to_department"
	StatusAssignedToOfficer     Status = "assigned_to_officer"
	StatusAcknowledged          Status = "acknowledged"
	StatusInProgress            Status = "in_progress"
	StatusPendingVerification   Status = "pending_verification"
	StatusResolved              Status = "resolved"
	StatusRejected              Status = "rejected"
	StatusOnHold                Status = "on_hold"
	StatusClosed                Status = "closed"
)

// AllStatuses lists every report status in lifecycle order.
var AllStatuses = []Status{
	StatusReceived,
	StatusPendingClassification,
	StatusClassified,
	StatusAssignedToDepartment,
	StatusAssignedToOfficer,
	StatusAcknowledged,
	StatusInProgress,
	StatusPendingVerification,
	StatusResolved,
	StatusRejected,
	StatusOnHold,
	StatusClosed,
}

// Terminal reports whether the status permits no further transitions
// except the resolved/rejected -> closed hop.
func (s Status) Terminal() bool {
	return s == StatusResolved || s == StatusRejected || s == StatusClosed
}

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	for _, v := range AllStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// RequiresTask reports whether the status implies an active officer task.
func (s Status) RequiresTask() bool {
	switch s {
	case StatusAssignedToOfficer, StatusAcknowledged, StatusInProgress, StatusPendingVerification:
		return true
	}
	return false
}

// TaskStatus tracks the officer assignment independently of the report
// status; a task can be superseded without rewriting report history.
type TaskStatus string

const (
	TaskAssigned            TaskStatus = "assigned"
	TaskAcknowledged        TaskStatus = "acknowledged"
	TaskInProgress          TaskStatus = "in_progress"
	TaskPendingVerification TaskStatus = "pending_verification"
	TaskResolved            TaskStatus = "resolved"
	TaskRejected            TaskStatus = "rejected"
	TaskOnHold              TaskStatus = "on_hold"
)

// Severity is an ordered classification scale.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

var severityRank = map[Severity]int{
	SeverityLow:      0,
	SeverityMedium:   1,
	SeverityHigh:     2,
	SeverityCritical: 3,
}

func (s Severity) Valid() bool {
	_, ok := severityRank[s]
	return ok
}

// AtLeast reports whether s ranks at or above other.
func (s Severity) AtLeast(other Severity) bool {
	return severityRank[s] >= severityRank[other]
}

// Role is the acting principal's role as asserted by the identity layer.
type Role string

const (
	RoleCitizen    Role = "citizen"
	RoleOfficer    Role = "officer"
	RoleAdmin      Role = "admin"
	RoleSupervisor Role = "supervisor"
)

func (r Role) Valid() bool {
	switch r {
	case RoleCitizen, RoleOfficer, RoleAdmin, RoleSupervisor:
		return true
	}
	return false
}

// AppealStatus is the review state of an appeal.
type AppealStatus string

const (
	AppealSubmitted   AppealStatus = "submitted"
	AppealUnderReview AppealStatus = "under_review"
	AppealApproved    AppealStatus = "approved"
	AppealRejected    AppealStatus = "rejected"
	AppealWithdrawn   AppealStatus = "withdrawn"
)

// Open reports whether the appeal still blocks new appeals on the report.
func (s AppealStatus) Open() bool {
	return s == AppealSubmitted || s == AppealUnderReview
}

// AppealType names what the submitter disputes.
type AppealType string

const (
	AppealClassification      AppealType = "classification"
	AppealResolution          AppealType = "resolution"
	AppealRejection           AppealType = "rejection"
	AppealIncorrectAssignment AppealType = "incorrect_assignment"
	AppealWorkload            AppealType = "workload"
	AppealResourceLack        AppealType = "resource_lack"
	AppealQualityConcern      AppealType = "quality_concern"
)

func (t AppealType) Valid() bool {
	switch t {
	case AppealClassification, AppealResolution, AppealRejection,
		AppealIncorrectAssignment, AppealWorkload, AppealResourceLack, AppealQualityConcern:
		return true
	}
	return false
}

// EscalationLevel is the authority level an escalation targets.
type EscalationLevel string

const (
	EscalationSupervisor EscalationLevel = "supervisor"
	EscalationManager    EscalationLevel = "manager"
	EscalationDirector   EscalationLevel = "director"
	EscalationExecutive  EscalationLevel = "executive"
)

func (l EscalationLevel) Valid() bool {
	switch l {
	case EscalationSupervisor, EscalationManager, EscalationDirector, EscalationExecutive:
		return true
	}
	return false
}

// EscalationStatus is the small escalation state machine:
// submitted -> acknowledged -> responded -> resolved.
type EscalationStatus string

const (
	EscalationSubmitted    EscalationStatus = "submitted"
	EscalationAcknowledged EscalationStatus = "acknowledged"
	EscalationResponded    EscalationStatus = "responded"
	EscalationResolved     EscalationStatus = "resolved"
)
