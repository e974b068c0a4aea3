package engine

import (
	"context"
	"strings"
	"time"

	"github.com/aechclawbot/opsdash/internal/gateway"
	"github.com/aechclawbot/opsdash/internal/notify"
	"github.com/aechclawbot/opsdash/internal/workitem"
)

// Poll callbacks all follow the same shape: one progress GET per tick; on
// a transient status replace the output buffer and keep going; on a
// terminal status stop, clear the buffer, and either apply the final
// payload or trigger a full reload depending on whether the payload is
// self-sufficient for that endpoint.

// startTodoPlanPoll tracks plan generation for a todo. The plan artifact
// lives server-side, so any terminal status resolves through a full
// reload rather than patching the item locally.
func (e *Engine) startTodoPlanPoll(id workitem.ID) {
	key := todoPlanKey(id)
	e.polls.Start(key, e.pollInterval(), func(ctx context.Context) (bool, error) {
		p, err := e.client.TodoPlanProgress(ctx, id.String())
		if err != nil {
			return false, err
		}

		switch normStatus(p.Status) {
		case "planning", "running", "pending":
			e.setOutput(key, p.Output)
			return false, nil
		case "error", "failed":
			e.clearOutput(key)
			e.notifier.Send(notify.Error("Planning failed", progressError(p), id.String()))
			e.Refresh(ctx)
			return true, nil
		default:
			// idle/complete/done, or an unrecognized shape; either way the
			// server list is the source of truth now.
			e.clearOutput(key)
			e.Refresh(ctx)
			return true, nil
		}
	})
}

// startTodoExecPoll tracks todo execution. The terminal payload carries
// the full output buffer, so it is applied to the item directly.
func (e *Engine) startTodoExecPoll(id workitem.ID) {
	key := todoExecKey(id)
	e.polls.Start(key, e.pollInterval(), func(ctx context.Context) (bool, error) {
		p, err := e.client.TodoProgress(ctx, id.String())
		if err != nil {
			return false, err
		}

		switch normStatus(p.Status) {
		case "executing", "running":
			e.setOutput(key, p.Output)
			e.mutateItem(id, workitem.SourceTodo, func(it *workitem.WorkItem) {
				it.ExecutionOutput = p.Output
			})
			return false, nil
		case "completed", "complete", "done", "idle":
			e.clearOutput(key)
			now := time.Now()
			e.mutateItem(id, workitem.SourceTodo, func(it *workitem.WorkItem) {
				it.Status = workitem.StatusCompleted
				it.ExecutionOutput = p.Output
				it.CompletedAt = &now
			})
			e.notifier.Send(notify.Success("Todo completed", p.Summary, id.String()))
			return true, nil
		case "error", "failed":
			e.clearOutput(key)
			e.mutateItem(id, workitem.SourceTodo, func(it *workitem.WorkItem) {
				it.Status = workitem.StatusFailed
				it.ExecutionOutput = p.Output
				it.FailureReason = progressError(p)
			})
			e.notifier.Send(notify.Error("Todo failed", progressError(p), id.String()))
			return true, nil
		default:
			e.clearOutput(key)
			e.Refresh(ctx)
			return true, nil
		}
	})
}

// startFeaturePoll tracks a feature through planning and building; the
// gateway reports both phases via one progress endpoint. Rest states stop
// the poller; completion reloads the list for the server-side summary.
func (e *Engine) startFeaturePoll(id workitem.ID) {
	key := featureKey(id)
	e.polls.Start(key, e.pollInterval(), func(ctx context.Context) (bool, error) {
		p, err := e.client.FeatureProgress(ctx, id.String())
		if err != nil {
			return false, err
		}

		status := normStatus(p.Status)
		switch status {
		case "planning", "building", "executing", "running":
			e.setOutput(key, p.Output)
			e.mutateItem(id, workitem.SourceFeature, func(it *workitem.WorkItem) {
				it.RunLog = p.Output
			})
			return false, nil
		case "planned", "awaiting_approval":
			e.clearOutput(key)
			e.mutateItem(id, workitem.SourceFeature, func(it *workitem.WorkItem) {
				it.Status = workitem.Status(status)
				it.ExecutionPlan = p.Plan
			})
			e.notifier.Send(notify.Success("Plan ready", "feature plan awaiting approval", id.String()))
			return true, nil
		case "testing":
			e.clearOutput(key)
			e.mutateItem(id, workitem.SourceFeature, func(it *workitem.WorkItem) {
				it.Status = workitem.StatusTesting
				it.RunLog = p.Output
			})
			e.notifier.Send(notify.Success("Build finished", "feature ready for verification", id.String()))
			return true, nil
		case "requested", "pending":
			// Planning was rejected or reset server-side.
			e.clearOutput(key)
			e.mutateItem(id, workitem.SourceFeature, func(it *workitem.WorkItem) {
				it.Status = workitem.Status(status)
				it.ExecutionPlan = nil
			})
			return true, nil
		case "error", "failed":
			e.clearOutput(key)
			// An error before a plan exists is not a build failure; the
			// feature goes back to the request stage instead.
			if cur, ok := e.Item(id, workitem.SourceFeature); ok && cur.Status == workitem.StatusPlanning {
				e.mutateItem(id, workitem.SourceFeature, func(it *workitem.WorkItem) {
					it.Status = workitem.StatusRequested
					it.ExecutionPlan = nil
				})
				e.notifier.Send(notify.Error("Planning failed", progressError(p), id.String()))
				return true, nil
			}
			e.mutateItem(id, workitem.SourceFeature, func(it *workitem.WorkItem) {
				it.Status = workitem.StatusFailed
				it.FailureReason = progressError(p)
			})
			e.notifier.Send(notify.Error("Feature failed", progressError(p), id.String()))
			return true, nil
		case "complete", "completed":
			// The completion summary is generated server-side; reload.
			e.clearOutput(key)
			e.Refresh(ctx)
			e.notifier.Send(notify.Success("Feature complete", p.Summary, id.String()))
			return true, nil
		default:
			e.clearOutput(key)
			e.Refresh(ctx)
			return true, nil
		}
	})
}

func normStatus(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func progressError(p *gateway.Progress) string {
	if p.Error != "" {
		return p.Error
	}
	if p.Output != "" {
		return p.Output
	}
	return "operation failed"
}
