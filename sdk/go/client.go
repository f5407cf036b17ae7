package grievlinesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Grievline HTTP API client.
type Client struct {
	BaseURL     string
	APIKey      string
	BearerToken string
	// ConfirmKey is re-presented on bulk calls via X-Confirm-Key.
	ConfirmKey string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Report represents the API report model (partial).
type Report struct {
	ID           int64   `json:"id"`
	Number       string  `json:"number"`
	Title        string  `json:"title"`
	Category     string  `json:"category,omitempty"`
	Severity     string  `json:"severity"`
	SubmitterID  string  `json:"submitter_id"`
	DepartmentID *string `json:"department_id,omitempty"`
	Status       string  `json:"status"`
	HoldStatus   *string `json:"hold_status,omitempty"`
	Version      int64   `json:"version"`
	CreatedAt    string  `json:"created_at"`
}

// HistoryEntry is one status transition record.
type HistoryEntry struct {
	ID        int64  `json:"id"`
	ReportID  int64  `json:"report_id"`
	OldStatus string `json:"old_status"`
	NewStatus string `json:"new_status"`
	ActorID   string `json:"actor_id"`
	Notes     string `json:"notes,omitempty"`
	CreatedAt string `json:"created_at"`
}

// Appeal represents an appeal on a report.
type Appeal struct {
	ID             int64  `json:"id"`
	ReportID       int64  `json:"report_id"`
	SubmitterID    string `json:"submitter_id"`
	Type           string `json:"type"`
	Reason         string `json:"reason"`
	Status         string `json:"status"`
	RequiresRework bool   `json:"requires_rework"`
	CreatedAt      string `json:"created_at"`
}

// Escalation represents an escalation on a report.
type Escalation struct {
	ID          int64  `json:"id"`
	ReportID    int64  `json:"report_id"`
	SubmitterID string `json:"submitter_id"`
	Level       string `json:"level"`
	Reason      string `json:"reason"`
	Status      string `json:"status"`
	SLADeadline string `json:"sla_deadline"`
	CreatedAt   string `json:"created_at"`
}

// BulkResult is the aggregate outcome of a bulk operation.
type BulkResult struct {
	Total         int         `json:"total"`
	Successful    int         `json:"successful"`
	Failed        int         `json:"failed"`
	Errors        []BulkError `json:"errors"`
	SuccessfulIDs []int64     `json:"successful_ids"`
	FailedIDs     []int64     `json:"failed_ids"`
}

type BulkError struct {
	ReportID int64  `json:"report_id"`
	Code     string `json:"code"`
	Message  string `json:"message"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// CreateReport files a report.
func (c *Client) CreateReport(ctx context.Context, title, description, severity string) (Report, error) {
	body := map[string]any{
		"title":       title,
		"description": description,
	}
	if severity != "" {
		body["severity"] = severity
	}
	var resp Report
	err := c.do(ctx, http.MethodPost, "v0/reports", body, &resp)
	return resp, err
}

// GetReport fetches a report by id.
func (c *Client) GetReport(ctx context.Context, id int64) (Report, error) {
	var resp Report
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("v0/reports/%d", id), nil, &resp)
	return resp, err
}

// ListReports lists reports, optionally filtered by status.
func (c *Client) ListReports(ctx context.Context, status string) ([]Report, error) {
	endpoint := "v0/reports"
	if status != "" {
		endpoint += "?status=" + url.QueryEscape(status)
	}
	var resp struct {
		Items []Report `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Items, err
}

// ChangeStatus applies a status transition.
func (c *Client) ChangeStatus(ctx context.Context, id int64, newStatus, notes string) (Report, error) {
	body := map[string]any{"new_status": newStatus}
	if notes != "" {
		body["notes"] = notes
	}
	var resp Report
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("v0/reports/%d/status", id), body, &resp)
	return resp, err
}

// Classify sets the authoritative category and severity.
func (c *Client) Classify(ctx context.Context, id int64, category, severity string) (Report, error) {
	body := map[string]any{"category": category, "severity": severity}
	var resp Report
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("v0/reports/%d/classify", id), body, &resp)
	return resp, err
}

// AssignDepartment routes a report to a department.
func (c *Client) AssignDepartment(ctx context.Context, id int64, departmentID string) (Report, error) {
	body := map[string]any{"department_id": departmentID}
	var resp Report
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("v0/reports/%d/assign-department", id), body, &resp)
	return resp, err
}

// AssignOfficer creates the officer task for a report.
func (c *Client) AssignOfficer(ctx context.Context, id int64, officerID string) (Report, error) {
	body := map[string]any{"officer_id": officerID}
	var resp Report
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("v0/reports/%d/assign-officer", id), body, &resp)
	return resp, err
}

// History returns the status history of a report.
func (c *Client) History(ctx context.Context, id int64) ([]HistoryEntry, error) {
	var resp struct {
		Items []HistoryEntry `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("v0/reports/%d/history", id), nil, &resp)
	return resp.Items, err
}

// BulkStatus applies one status to many reports. Requires ConfirmKey.
func (c *Client) BulkStatus(ctx context.Context, ids []int64, newStatus, notes string) (BulkResult, error) {
	body := map[string]any{"report_ids": ids, "new_status": newStatus}
	if notes != "" {
		body["notes"] = notes
	}
	var resp BulkResult
	err := c.do(ctx, http.MethodPost, "v0/reports/bulk/status", body, &resp)
	return resp, err
}

// BulkAssignDepartment routes many reports to one department. Requires ConfirmKey.
func (c *Client) BulkAssignDepartment(ctx context.Context, ids []int64, departmentID string) (BulkResult, error) {
	body := map[string]any{"report_ids": ids, "department_id": departmentID}
	var resp BulkResult
	err := c.do(ctx, http.MethodPost, "v0/reports/bulk/department", body, &resp)
	return resp, err
}

// SubmitAppeal files an appeal on a report.
func (c *Client) SubmitAppeal(ctx context.Context, reportID int64, appealType, reason string) (Appeal, error) {
	body := map[string]any{
		"report_id":   reportID,
		"appeal_type": appealType,
		"reason":      reason,
	}
	var resp Appeal
	err := c.do(ctx, http.MethodPost, "v0/appeals", body, &resp)
	return resp, err
}

// SubmitEscalation escalates a report to an authority level.
func (c *Client) SubmitEscalation(ctx context.Context, reportID int64, level, reason string) (Escalation, error) {
	body := map[string]any{
		"report_id": reportID,
		"level":     level,
		"reason":    reason,
	}
	var resp Escalation
	err := c.do(ctx, http.MethodPost, "v0/escalations", body, &resp)
	return resp, err
}

// OverdueEscalations lists escalations past their SLA deadline.
func (c *Client) OverdueEscalations(ctx context.Context) ([]Escalation, error) {
	var resp struct {
		Items []Escalation `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, "v0/escalations/overdue", nil, &resp)
	return resp.Items, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	if c.ConfirmKey != "" && strings.Contains(endpoint, "/bulk/") {
		req.Header.Set("X-Confirm-Key", c.ConfirmKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
