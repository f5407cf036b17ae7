package server

import (
	"grievline/internal/domain"
)

type CreateReportRequest struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category,omitempty"`
	Severity    string `json:"severity,omitempty" enum:"low,medium,high,critical"`
}

type StatusChangeRequest struct {
	NewStatus string `json:"new_status"`
	Notes     string `json:"notes,omitempty"`
}

type ClassifyRequest struct {
	Category string `json:"category"`
	Severity string `json:"severity" enum:"low,medium,high,critical"`
	Notes    string `json:"notes,omitempty"`
}

type AssignDepartmentRequest struct {
	DepartmentID string `json:"department_id"`
	Notes        string `json:"notes,omitempty"`
}

type AssignOfficerRequest struct {
	OfficerID string `json:"officer_id"`
	Priority  *int   `json:"priority,omitempty"`
	Notes     string `json:"notes,omitempty"`
}

type ReassignRequest struct {
	OfficerID    *string `json:"officer_id,omitempty"`
	DepartmentID *string `json:"department_id,omitempty"`
	Notes        string  `json:"notes,omitempty"`
}

type SeverityRequest struct {
	Severity string `json:"severity" enum:"low,medium,high,critical"`
}

type BulkStatusRequest struct {
	ReportIDs []int64 `json:"report_ids"`
	NewStatus string  `json:"new_status"`
	Notes     string  `json:"notes,omitempty"`
}

type BulkDepartmentRequest struct {
	ReportIDs    []int64 `json:"report_ids"`
	DepartmentID string  `json:"department_id"`
}

type BulkOfficerRequest struct {
	ReportIDs []int64 `json:"report_ids"`
	OfficerID string  `json:"officer_id"`
	Priority  *int    `json:"priority,omitempty"`
}

type BulkSeverityRequest struct {
	ReportIDs []int64 `json:"report_ids"`
	Severity  string  `json:"severity" enum:"low,medium,high,critical"`
}

type SubmitAppealRequest struct {
	ReportID        int64  `json:"report_id"`
	AppealType      string `json:"appeal_type"`
	Reason          string `json:"reason"`
	Evidence        string `json:"evidence,omitempty"`
	RequestedAction string `json:"requested_action,omitempty"`
}

type ReviewAppealRequest struct {
	Status         string  `json:"status" enum:"approved,rejected"`
	ReviewNotes    string  `json:"review_notes,omitempty"`
	RequiresRework bool    `json:"requires_rework,omitempty"`
	ReworkNotes    string  `json:"rework_notes,omitempty"`
	ReassignedTo   *string `json:"reassigned_to_officer,omitempty"`
	ReassignedDept *string `json:"reassigned_to_department,omitempty"`
}

type SubmitEscalationRequest struct {
	ReportID int64  `json:"report_id"`
	Level    string `json:"level" enum:"supervisor,manager,director,executive"`
	Reason   string `json:"reason"`
}

type EscalationUpdateRequest struct {
	Response string `json:"response"`
}

type ReportResponse struct {
	domain.Report
}

type ReportListResponse struct {
	Items []domain.Report `json:"items"`
}

type HistoryResponse struct {
	Items []domain.StatusHistoryEntry `json:"items"`
}

type TaskListResponse struct {
	Items []domain.Task `json:"items"`
}

type AppealListResponse struct {
	Items []domain.Appeal `json:"items"`
}

type EscalationListResponse struct {
	Items []domain.Escalation `json:"items"`
}

type AuditListResponse struct {
	Items []domain.AuditLogEntry `json:"items"`
}

type DepartmentListResponse struct {
	Items []domain.Department `json:"items"`
}
