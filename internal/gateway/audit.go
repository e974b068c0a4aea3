package gateway

import (
	"context"
	"fmt"
	"net/http"

	"github.com/aechclawbot/opsdash/internal/workitem"
)

// AuditKind selects which audit pipeline a call addresses.
type AuditKind string

const (
	AuditQA       AuditKind = "qa"
	AuditSecurity AuditKind = "security"
)

// Finding is one issue reported by an audit scan. Selected is client-local
// state used to build task-generation and fix requests; it never goes back
// to the gateway as a field.
type Finding struct {
	ID          workitem.ID `json:"id"`
	Severity    string      `json:"severity"`
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	File        string      `json:"file,omitempty"`
	AutoFixable bool        `json:"auto_fixable"`

	Selected bool `json:"-"`
}

// AuditReport is the latest scan result for one audit kind.
type AuditReport struct {
	ID        workitem.ID `json:"id"`
	Status    string      `json:"status"`
	Summary   string      `json:"summary,omitempty"`
	CreatedAt string      `json:"created_at,omitempty"`
	Findings  []Finding   `json:"findings"`
}

// AuditReport fetches the most recent report for the given kind.
func (c *Client) AuditReport(ctx context.Context, kind AuditKind) (*AuditReport, error) {
	var report AuditReport
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/audit/%s/report", kind), nil, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// RunAudit starts a new scan.
func (c *Client) RunAudit(ctx context.Context, kind AuditKind) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/audit/%s/run", kind), nil, nil)
}

// AuditStatus polls a running scan.
func (c *Client) AuditStatus(ctx context.Context, kind AuditKind) (*Progress, error) {
	var p Progress
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/audit/%s/status", kind), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// FixFindings asks the gateway to auto-fix the given findings.
func (c *Client) FixFindings(ctx context.Context, kind AuditKind, reportID string, findingIDs []string) error {
	body := map[string]any{
		"reportId":   reportID,
		"findingIds": findingIDs,
	}
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/audit/%s/fix", kind), body, nil)
}

// FixStatus polls a running auto-fix.
func (c *Client) FixStatus(ctx context.Context, kind AuditKind) (*Progress, error) {
	var p Progress
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/audit/%s/fix-status", kind), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// GenerateTasks creates one work item per finding server-side. The server
// determines the generated task shape, so callers reload the task list
// afterwards instead of inserting optimistically.
func (c *Client) GenerateTasks(ctx context.Context, kind AuditKind, reportID string, findingIDs []string) error {
	body := map[string]any{
		"reportId":   reportID,
		"findingIds": findingIDs,
	}
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/audit/%s/generate-tasks", kind), body, nil)
}

// RunOpsCheck starts a gateway health/ops check.
func (c *Client) RunOpsCheck(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/ops/check", nil, nil)
}

// OpsStatus polls a running ops check.
func (c *Client) OpsStatus(ctx context.Context) (*Progress, error) {
	var p Progress
	if err := c.do(ctx, http.MethodGet, "/ops/status", nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}
