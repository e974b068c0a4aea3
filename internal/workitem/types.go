package workitem

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Source identifies which gateway collection owns the authoritative record.
type Source string

const (
	SourceTodo    Source = "todo"
	SourceFeature Source = "feature"
)

// Kind is the presentation/workflow category of a work item.
type Kind string

const (
	KindTask    Kind = "task"
	KindBug     Kind = "bug"
	KindFeature Kind = "feature"
)

// Priority represents work item priority
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Status is a lifecycle state drawn from a source-dependent vocabulary.
// Todo-sourced and feature-sourced items use different subsets; see the
// transition tables in lifecycle.go.
type Status string

const (
	StatusRequested        Status = "requested"
	StatusPending          Status = "pending"
	StatusPlanning         Status = "planning"
	StatusPlanned          Status = "planned"
	StatusAwaitingApproval Status = "awaiting_approval"
	StatusApproved         Status = "approved"
	StatusScheduled        Status = "scheduled"
	StatusBuilding         Status = "building"
	StatusExecuting        Status = "executing"
	StatusTesting          Status = "testing"
	StatusComplete         Status = "complete"
	StatusCompleted        Status = "completed"
	StatusFailed           Status = "failed"
	StatusIdle             Status = "idle"
)

// ID is an opaque record identifier. The gateway is loose about types here
// and returns either a JSON string or a bare number depending on endpoint,
// so unmarshalling accepts both.
type ID string

// UnmarshalJSON accepts both string and numeric identifiers.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid id %q: %w", data, err)
	}
	*id = ID(n.String())
	return nil
}

// String returns the identifier as a plain string.
func (id ID) String() string { return string(id) }

// Todo is the gateway's ad-hoc task record.
type Todo struct {
	ID              ID              `json:"id"`
	Title           string          `json:"title"`
	Description     string          `json:"description"`
	Context         string          `json:"context"`
	Kind            string          `json:"kind"`
	Priority        Priority        `json:"priority"`
	Status          Status          `json:"status"`
	CreatedAt       *time.Time      `json:"created_at"`
	UpdatedAt       *time.Time      `json:"updated_at"`
	CompletedAt     *time.Time      `json:"completed_at"`
	Plan            json.RawMessage `json:"plan,omitempty"`
	ApprovalStatus  string          `json:"approval_status,omitempty"`
	ScheduledTime   *time.Time      `json:"scheduled_time,omitempty"`
	RunPostOp       bool            `json:"run_post_op,omitempty"`
	ExecutionOutput string          `json:"execution_output,omitempty"`
	FailureReason   string          `json:"failure_reason,omitempty"`
}

// Feature is the gateway's structured feature-request record.
type Feature struct {
	ID                ID              `json:"id"`
	Title             string          `json:"title"`
	Description       string          `json:"description"`
	Priority          Priority        `json:"priority"`
	Status            Status          `json:"status"`
	CreatedAt         *time.Time      `json:"created_at"`
	RequestedAt       *time.Time      `json:"requested_at"`
	UpdatedAt         *time.Time      `json:"updated_at"`
	CompletedAt       *time.Time      `json:"completed_at"`
	ExecutionPlan     json.RawMessage `json:"execution_plan,omitempty"`
	RunLog            string          `json:"run_log,omitempty"`
	FailureReason     string          `json:"failure_reason,omitempty"`
	CompletionSummary string          `json:"completion_summary,omitempty"`
}

// WorkItem is the unified in-memory representation of either a todo or a
// feature request. It is the product of Merge and the entity the lifecycle
// engine operates on.
type WorkItem struct {
	ID          ID
	Source      Source
	Kind        Kind
	Title       string
	Description string
	Context     string
	Priority    Priority
	Status      Status
	CreatedAt   *time.Time
	UpdatedAt   *time.Time
	CompletedAt *time.Time

	// Plan artifacts. Plan is the todo-sourced payload, ExecutionPlan the
	// feature-sourced one; their structures differ and are opaque here.
	Plan          json.RawMessage
	ExecutionPlan json.RawMessage

	// Approval workflow metadata, todo-sourced items only.
	ApprovalStatus string
	ScheduledTime  *time.Time
	RunPostOp      bool

	// Terminal-state artifacts.
	ExecutionOutput   string
	RunLog            string
	FailureReason     string
	CompletionSummary string
}

// WorkItem converts a todo record, tagging source and deriving kind.
func (t Todo) WorkItem() WorkItem {
	kind := KindTask
	if t.Kind == string(KindBug) {
		kind = KindBug
	}
	created := t.CreatedAt
	if created == nil {
		created = t.UpdatedAt
	}
	return WorkItem{
		ID:              t.ID,
		Source:          SourceTodo,
		Kind:            kind,
		Title:           t.Title,
		Description:     t.Description,
		Context:         t.Context,
		Priority:        t.Priority,
		Status:          t.Status,
		CreatedAt:       created,
		UpdatedAt:       t.UpdatedAt,
		CompletedAt:     t.CompletedAt,
		Plan:            t.Plan,
		ApprovalStatus:  t.ApprovalStatus,
		ScheduledTime:   t.ScheduledTime,
		RunPostOp:       t.RunPostOp,
		ExecutionOutput: t.ExecutionOutput,
		FailureReason:   t.FailureReason,
	}
}

// WorkItem converts a feature record. Features are always KindFeature and
// fall back to requested_at when the gateway omits created_at.
func (f Feature) WorkItem() WorkItem {
	created := f.CreatedAt
	if created == nil {
		created = f.RequestedAt
	}
	return WorkItem{
		ID:                f.ID,
		Source:            SourceFeature,
		Kind:              KindFeature,
		Title:             f.Title,
		Description:       f.Description,
		Priority:          f.Priority,
		Status:            f.Status,
		CreatedAt:         created,
		UpdatedAt:         f.UpdatedAt,
		CompletedAt:       f.CompletedAt,
		ExecutionPlan:     f.ExecutionPlan,
		RunLog:            f.RunLog,
		FailureReason:     f.FailureReason,
		CompletionSummary: f.CompletionSummary,
	}
}
