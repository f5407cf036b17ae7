package domain

// Report is one citizen-filed grievance and its lifecycle state.
type Report struct {
	ID           int64    `json:"id"`
	Number       string   `json:"number"`
	Title        string   `json:"title"`
	Description  string   `json:"description,omitempty"`
	Category     string   `json:"category,omitempty"`
	Severity     Severity `json:"severity"`
	SubmitterID  string   `json:"submitter_id"`
	DepartmentID *string  `json:"department_id,omitempty"`
	Status       Status   `json:"status"`
	// HoldStatus records where an on_hold report returns to.
	HoldStatus *Status `json:"hold_status,omitempty"`
	// Advisory AI suggestions; never authoritative.
	SuggestedCategory *string   `json:"suggested_category,omitempty"`
	SuggestedSeverity *Severity `json:"suggested_severity,omitempty"`
	Version           int64     `json:"version"`
	StatusUpdatedAt   string    `json:"status_updated_at" format:"date-time"`
	CreatedAt         string    `json:"created_at" format:"date-time"`
}

// Task is the officer work assignment for one report. Reassignment
// supersedes the task rather than deleting it; at most one task per
// report is active (superseded=false) at a time.
type Task struct {
	ID              int64      `json:"id"`
	ReportID        int64      `json:"report_id"`
	OfficerID       string     `json:"officer_id"`
	AssignedBy      string     `json:"assigned_by"`
	DepartmentID    *string    `json:"department_id,omitempty"`
	Status          TaskStatus `json:"status"`
	Priority        *int       `json:"priority,omitempty"`
	AcknowledgedAt  *string    `json:"acknowledged_at,omitempty" format:"date-time"`
	StartedAt       *string    `json:"started_at,omitempty" format:"date-time"`
	ResolvedAt      *string    `json:"resolved_at,omitempty" format:"date-time"`
	ResolutionNotes *string    `json:"resolution_notes,omitempty"`
	Superseded      bool       `json:"superseded"`
	SupersededAt    *string    `json:"superseded_at,omitempty" format:"date-time"`
	CreatedAt       string     `json:"created_at" format:"date-time"`
}

// StatusHistoryEntry is one row per report status transition.
// Append-only; never updated or deleted.
type StatusHistoryEntry struct {
	ID        int64  `json:"id"`
	ReportID  int64  `json:"report_id"`
	OldStatus Status `json:"old_status"`
	NewStatus Status `json:"new_status"`
	ActorID   string `json:"actor_id"`
	Notes     string `json:"notes,omitempty"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

// Appeal disputes a report's classification, assignment, or resolution.
type Appeal struct {
	ID              int64        `json:"id"`
	ReportID        int64        `json:"report_id"`
	SubmitterID     string       `json:"submitter_id"`
	Type            AppealType   `json:"type"`
	Reason          string       `json:"reason"`
	Evidence        string       `json:"evidence,omitempty"`
	RequestedAction string       `json:"requested_action,omitempty"`
	Status          AppealStatus `json:"status"`
	ReviewerID      *string      `json:"reviewer_id,omitempty"`
	ReviewNotes     string       `json:"review_notes,omitempty"`
	ReassignedDept  *string      `json:"reassigned_department_id,omitempty"`
	ReassignedTo    *string      `json:"reassigned_officer_id,omitempty"`
	RequiresRework  bool         `json:"requires_rework"`
	ReworkNotes     string       `json:"rework_notes,omitempty"`
	ReviewedAt      *string      `json:"reviewed_at,omitempty" format:"date-time"`
	CreatedAt       string       `json:"created_at" format:"date-time"`
}

// Escalation raises urgency on a report without disputing it; it never
// changes the report's status.
type Escalation struct {
	ID             int64            `json:"id"`
	ReportID       int64            `json:"report_id"`
	SubmitterID    string           `json:"submitter_id"`
	Level          EscalationLevel  `json:"level"`
	Reason         string           `json:"reason"`
	Status         EscalationStatus `json:"status"`
	SLADeadline    string           `json:"sla_deadline" format:"date-time"`
	AcknowledgedBy *string          `json:"acknowledged_by,omitempty"`
	AcknowledgedAt *string          `json:"acknowledged_at,omitempty" format:"date-time"`
	Response       string           `json:"response,omitempty"`
	RespondedAt    *string          `json:"responded_at,omitempty" format:"date-time"`
	ResolvedAt     *string          `json:"resolved_at,omitempty" format:"date-time"`
	CreatedAt      string           `json:"created_at" format:"date-time"`
}

// AuditLogEntry records one mutating action system-wide. Write-once.
type AuditLogEntry struct {
	ID           int64  `json:"id"`
	TS           string `json:"ts" format:"date-time"`
	ActorID      string `json:"actor_id"`
	Role         string `json:"role,omitempty"`
	Action       string `json:"action"`
	Outcome      string `json:"outcome"`
	ResourceKind string `json:"resource_kind,omitempty"`
	ResourceID   string `json:"resource_id,omitempty"`
	SourceIP     string `json:"source_ip,omitempty"`
	Description  string `json:"description,omitempty"`
	Metadata     string `json:"metadata_json,omitempty"`
}

// Department is a routing target for reports.
type Department struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

// APIKey authenticates non-interactive callers.
type APIKey struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}
