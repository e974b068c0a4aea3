package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/aechclawbot/opsdash/internal/workitem"
)

// CreateTodoRequest is the payload for creating an ad-hoc todo.
type CreateTodoRequest struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Context     string `json:"context,omitempty"`
	Kind        string `json:"kind,omitempty"`
	Priority    string `json:"priority,omitempty"`
}

// ApproveTodoRequest drives the todo approval endpoint. Action is one of
// "approve", "schedule", or "reject"; ScheduledTime is required for
// schedule.
type ApproveTodoRequest struct {
	Action        string     `json:"action"`
	ScheduledTime *time.Time `json:"scheduled_time,omitempty"`
	RunPostOp     bool       `json:"run_post_op"`
}

// ListTodos fetches the todo collection.
func (c *Client) ListTodos(ctx context.Context) ([]workitem.Todo, error) {
	var todos []workitem.Todo
	if err := c.list(ctx, "/todos", "todos", &todos); err != nil {
		return nil, err
	}
	return todos, nil
}

// CreateTodo creates a todo and returns the server's record.
func (c *Client) CreateTodo(ctx context.Context, req CreateTodoRequest) (*workitem.Todo, error) {
	var todo workitem.Todo
	if err := c.do(ctx, http.MethodPost, "/todos", req, &todo); err != nil {
		return nil, err
	}
	return &todo, nil
}

// UpdateTodo applies a partial update.
func (c *Client) UpdateTodo(ctx context.Context, id string, patch map[string]any) error {
	return c.do(ctx, http.MethodPatch, "/todos/"+id, patch, nil)
}

// DeleteTodo hard-deletes a todo.
func (c *Client) DeleteTodo(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/todos/"+id, nil, nil)
}

// PlanTodo asks the gateway to start generating a plan.
func (c *Client) PlanTodo(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/todos/"+id+"/plan", nil, nil)
}

// TodoPlanProgress polls plan generation.
func (c *Client) TodoPlanProgress(ctx context.Context, id string) (*Progress, error) {
	var p Progress
	if err := c.do(ctx, http.MethodGet, "/todos/"+id+"/plan-progress", nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ApproveTodo approves, schedules, or rejects a planned todo.
func (c *Client) ApproveTodo(ctx context.Context, id string, req ApproveTodoRequest) error {
	return c.do(ctx, http.MethodPost, "/todos/"+id+"/approve", req, nil)
}

// ReplanTodo clears the existing plan and restarts planning.
func (c *Client) ReplanTodo(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/todos/"+id+"/replan", nil, nil)
}

// ExecuteTodo starts execution.
func (c *Client) ExecuteTodo(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/todos/"+id+"/execute", nil, nil)
}

// TodoProgress polls execution.
func (c *Client) TodoProgress(ctx context.Context, id string) (*Progress, error) {
	var p Progress
	if err := c.do(ctx, http.MethodGet, "/todos/"+id+"/progress", nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}
