package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aechclawbot/opsdash/internal/gateway"
	"github.com/aechclawbot/opsdash/internal/notify"
	"github.com/aechclawbot/opsdash/internal/workitem"
)

// runAction applies the standard optimistic-mutation pattern: validate the
// transition, write the optimistic state, issue the gateway call, and on
// failure restore the item exactly as it was and surface the error. Retry
// is always a deliberate user action; nothing here retries automatically.
func (e *Engine) runAction(
	ctx context.Context,
	id workitem.ID,
	src workitem.Source,
	action workitem.Action,
	optimistic func(*workitem.WorkItem),
	call func(context.Context) error,
) error {
	prev, ok := e.Item(id, src)
	if !ok {
		return fmt.Errorf("%s %s: %w", src, id, ErrNotFound)
	}
	if !workitem.CanApply(prev, action) {
		return fmt.Errorf("%s on %s item in status %q: %w", action, src, prev.Status, ErrIllegalAction)
	}

	e.mutateItem(id, src, optimistic)

	if err := call(ctx); err != nil {
		e.replaceItem(prev)
		e.notifier.Send(notify.Error(
			fmt.Sprintf("%s failed", actionLabel(action)),
			err.Error(),
			id.String(),
		))
		return err
	}
	return nil
}

func actionLabel(a workitem.Action) string {
	label := strings.ReplaceAll(string(a), "_", " ")
	if label == "" {
		return "Action"
	}
	return strings.ToUpper(label[:1]) + label[1:]
}

// --- Todo actions ---

// PlanTodo starts plan generation for a pending todo.
func (e *Engine) PlanTodo(ctx context.Context, id workitem.ID) error {
	err := e.runAction(ctx, id, workitem.SourceTodo, workitem.ActionPlan,
		func(it *workitem.WorkItem) { it.Status = workitem.StatusPlanning },
		func(ctx context.Context) error { return e.client.PlanTodo(ctx, id.String()) },
	)
	if err != nil {
		return err
	}
	e.startTodoPlanPoll(id)
	return nil
}

// RunTodoNow executes a pending todo directly, bypassing planning. Todos
// are built for fast iteration; this path is legal only for them.
func (e *Engine) RunTodoNow(ctx context.Context, id workitem.ID) error {
	err := e.runAction(ctx, id, workitem.SourceTodo, workitem.ActionRunNow,
		func(it *workitem.WorkItem) { it.Status = workitem.StatusExecuting },
		func(ctx context.Context) error { return e.client.ExecuteTodo(ctx, id.String()) },
	)
	if err != nil {
		return err
	}
	e.startTodoExecPoll(id)
	return nil
}

// ApproveTodoAndRun approves a planned todo and starts execution
// immediately; todos have no separate approved rest state on this path.
func (e *Engine) ApproveTodoAndRun(ctx context.Context, id workitem.ID, runPostOp bool) error {
	err := e.runAction(ctx, id, workitem.SourceTodo, workitem.ActionApproveRun,
		func(it *workitem.WorkItem) {
			it.Status = workitem.StatusExecuting
			it.ApprovalStatus = "approved"
			it.RunPostOp = runPostOp
		},
		func(ctx context.Context) error {
			return e.client.ApproveTodo(ctx, id.String(), gateway.ApproveTodoRequest{
				Action:    "approve",
				RunPostOp: runPostOp,
			})
		},
	)
	if err != nil {
		return err
	}
	e.startTodoExecPoll(id)
	return nil
}

// ScheduleTodo approves a planned todo for later execution at the given
// time. The item rests in scheduled until executed separately.
func (e *Engine) ScheduleTodo(ctx context.Context, id workitem.ID, when time.Time, runPostOp bool) error {
	return e.runAction(ctx, id, workitem.SourceTodo, workitem.ActionSchedule,
		func(it *workitem.WorkItem) {
			it.Status = workitem.StatusScheduled
			it.ApprovalStatus = "scheduled"
			it.ScheduledTime = &when
			it.RunPostOp = runPostOp
		},
		func(ctx context.Context) error {
			return e.client.ApproveTodo(ctx, id.String(), gateway.ApproveTodoRequest{
				Action:        "schedule",
				ScheduledTime: &when,
				RunPostOp:     runPostOp,
			})
		},
	)
}

// RejectTodo rejects the plan and returns the todo to pending.
func (e *Engine) RejectTodo(ctx context.Context, id workitem.ID) error {
	return e.runAction(ctx, id, workitem.SourceTodo, workitem.ActionReject,
		func(it *workitem.WorkItem) {
			it.Status = workitem.StatusPending
			it.Plan = nil
			it.ApprovalStatus = ""
		},
		func(ctx context.Context) error {
			return e.client.ApproveTodo(ctx, id.String(), gateway.ApproveTodoRequest{Action: "reject"})
		},
	)
}

// ReplanTodo clears the current plan and re-triggers planning.
func (e *Engine) ReplanTodo(ctx context.Context, id workitem.ID) error {
	err := e.runAction(ctx, id, workitem.SourceTodo, workitem.ActionReplan,
		func(it *workitem.WorkItem) {
			it.Status = workitem.StatusPlanning
			it.Plan = nil
			it.ApprovalStatus = ""
		},
		func(ctx context.Context) error { return e.client.ReplanTodo(ctx, id.String()) },
	)
	if err != nil {
		return err
	}
	e.startTodoPlanPoll(id)
	return nil
}

// ExecuteTodo starts execution of a scheduled or approved todo.
func (e *Engine) ExecuteTodo(ctx context.Context, id workitem.ID) error {
	err := e.runAction(ctx, id, workitem.SourceTodo, workitem.ActionExecute,
		func(it *workitem.WorkItem) { it.Status = workitem.StatusExecuting },
		func(ctx context.Context) error { return e.client.ExecuteTodo(ctx, id.String()) },
	)
	if err != nil {
		return err
	}
	e.startTodoExecPoll(id)
	return nil
}

// RetryTodo re-executes a failed todo.
func (e *Engine) RetryTodo(ctx context.Context, id workitem.ID) error {
	err := e.runAction(ctx, id, workitem.SourceTodo, workitem.ActionRetry,
		func(it *workitem.WorkItem) {
			it.Status = workitem.StatusExecuting
			it.FailureReason = ""
		},
		func(ctx context.Context) error { return e.client.ExecuteTodo(ctx, id.String()) },
	)
	if err != nil {
		return err
	}
	e.startTodoExecPoll(id)
	return nil
}

// DeleteTodo hard-deletes a todo. Confirmation is the caller's job; the
// engine removes the item locally only after the gateway accepts.
func (e *Engine) DeleteTodo(ctx context.Context, id workitem.ID) error {
	it, ok := e.Item(id, workitem.SourceTodo)
	if !ok {
		return fmt.Errorf("todo %s: %w", id, ErrNotFound)
	}
	if !workitem.CanApply(it, workitem.ActionDelete) {
		return fmt.Errorf("delete in status %q: %w", it.Status, ErrIllegalAction)
	}
	if err := e.client.DeleteTodo(ctx, id.String()); err != nil {
		e.notifier.Send(notify.Error("Delete failed", err.Error(), id.String()))
		return err
	}
	e.polls.Stop(todoPlanKey(id))
	e.polls.Stop(todoExecKey(id))
	e.removeItem(id, workitem.SourceTodo)
	return nil
}

// CreateTodo creates an ad-hoc todo and pushes the server's record into
// the list optimistically. Empty titles are rejected before any network
// call.
func (e *Engine) CreateTodo(ctx context.Context, req gateway.CreateTodoRequest) (workitem.WorkItem, error) {
	if strings.TrimSpace(req.Title) == "" {
		return workitem.WorkItem{}, ErrEmptyTitle
	}
	todo, err := e.client.CreateTodo(ctx, req)
	if err != nil {
		e.notifier.Send(notify.Error("Create failed", err.Error(), ""))
		return workitem.WorkItem{}, err
	}
	it := todo.WorkItem()
	e.prependItem(it)
	return it, nil
}

// --- Feature actions ---

// PlanFeature starts plan generation. Features always pass through
// planning before execution.
func (e *Engine) PlanFeature(ctx context.Context, id workitem.ID) error {
	err := e.runAction(ctx, id, workitem.SourceFeature, workitem.ActionPlan,
		func(it *workitem.WorkItem) {
			it.Status = workitem.StatusPlanning
			it.FailureReason = ""
		},
		func(ctx context.Context) error { return e.client.PlanFeature(ctx, id.String()) },
	)
	if err != nil {
		return err
	}
	e.startFeaturePoll(id)
	return nil
}

// ApproveFeature approves a planned feature.
func (e *Engine) ApproveFeature(ctx context.Context, id workitem.ID) error {
	return e.runAction(ctx, id, workitem.SourceFeature, workitem.ActionApprove,
		func(it *workitem.WorkItem) { it.Status = workitem.StatusApproved },
		func(ctx context.Context) error { return e.client.ApproveFeature(ctx, id.String()) },
	)
}

// RejectFeature rejects the plan, returning the feature to requested and
// clearing the plan artifact. Features have no hard delete; this is the
// delete surrogate.
func (e *Engine) RejectFeature(ctx context.Context, id workitem.ID) error {
	return e.runAction(ctx, id, workitem.SourceFeature, workitem.ActionReject,
		func(it *workitem.WorkItem) {
			it.Status = workitem.StatusRequested
			it.ExecutionPlan = nil
		},
		func(ctx context.Context) error { return e.client.RejectFeature(ctx, id.String()) },
	)
}

// ExecuteFeature starts building an approved feature.
func (e *Engine) ExecuteFeature(ctx context.Context, id workitem.ID) error {
	err := e.runAction(ctx, id, workitem.SourceFeature, workitem.ActionExecute,
		func(it *workitem.WorkItem) {
			it.Status = workitem.StatusBuilding
			it.FailureReason = ""
		},
		func(ctx context.Context) error { return e.client.ExecuteFeature(ctx, id.String()) },
	)
	if err != nil {
		return err
	}
	e.startFeaturePoll(id)
	return nil
}

// CompleteFeature marks a tested feature complete.
func (e *Engine) CompleteFeature(ctx context.Context, id workitem.ID) error {
	return e.runAction(ctx, id, workitem.SourceFeature, workitem.ActionComplete,
		func(it *workitem.WorkItem) {
			now := time.Now()
			it.Status = workitem.StatusComplete
			it.CompletedAt = &now
		},
		func(ctx context.Context) error { return e.client.CompleteFeature(ctx, id.String()) },
	)
}

// ReportFeatureIssues sends a tested feature back to building with notes.
func (e *Engine) ReportFeatureIssues(ctx context.Context, id workitem.ID, issues string) error {
	err := e.runAction(ctx, id, workitem.SourceFeature, workitem.ActionReportIssues,
		func(it *workitem.WorkItem) { it.Status = workitem.StatusBuilding },
		func(ctx context.Context) error { return e.client.ReportFeatureIssues(ctx, id.String(), issues) },
	)
	if err != nil {
		return err
	}
	e.startFeaturePoll(id)
	return nil
}

// CreateFeature files a feature request and pushes the record into the
// list optimistically.
func (e *Engine) CreateFeature(ctx context.Context, req gateway.CreateFeatureRequest) (workitem.WorkItem, error) {
	if strings.TrimSpace(req.Title) == "" {
		return workitem.WorkItem{}, ErrEmptyTitle
	}
	feature, err := e.client.CreateFeature(ctx, req)
	if err != nil {
		e.notifier.Send(notify.Error("Create failed", err.Error(), ""))
		return workitem.WorkItem{}, err
	}
	it := feature.WorkItem()
	e.prependItem(it)
	return it, nil
}
