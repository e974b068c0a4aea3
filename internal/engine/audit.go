package engine

import (
	"context"
	"fmt"

	"github.com/aechclawbot/opsdash/internal/gateway"
	"github.com/aechclawbot/opsdash/internal/notify"
)

const (
	keyQARun  = "qa-run"
	keyQAFix  = "qa-fix"
	keySecRun = "sec-run"
	keySecFix = "sec-fix"
	keyOpsRun = "ops-run"
)

func runKey(kind gateway.AuditKind) string {
	if kind == gateway.AuditSecurity {
		return keySecRun
	}
	return keyQARun
}

func fixKey(kind gateway.AuditKind) string {
	if kind == gateway.AuditSecurity {
		return keySecFix
	}
	return keyQAFix
}

// LoadAuditReport fetches the latest report for a kind. Selections made on
// the previous report survive only for finding IDs still present; stale
// selections are dropped so a fix request can never name a vanished
// finding.
func (e *Engine) LoadAuditReport(ctx context.Context, kind gateway.AuditKind) error {
	report, err := e.client.AuditReport(ctx, kind)
	if err != nil {
		return fmt.Errorf("load %s report: %w", kind, err)
	}

	e.mu.Lock()
	prev := e.selected[kind]
	next := make(map[string]bool)
	for i := range report.Findings {
		id := report.Findings[i].ID.String()
		if prev[id] {
			next[id] = true
			report.Findings[i].Selected = true
		}
	}
	e.reports[kind] = report
	e.selected[kind] = next
	e.mu.Unlock()
	return nil
}

// Report returns the cached report for a kind, or nil if none is loaded.
func (e *Engine) Report(kind gateway.AuditKind) *gateway.AuditReport {
	e.mu.Lock()
	defer e.mu.Unlock()
	r := e.reports[kind]
	if r == nil {
		return nil
	}
	out := *r
	out.Findings = make([]gateway.Finding, len(r.Findings))
	copy(out.Findings, r.Findings)
	return &out
}

// ToggleFinding flips a finding's selection state.
func (e *Engine) ToggleFinding(kind gateway.AuditKind, findingID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r := e.reports[kind]
	if r == nil {
		return
	}
	for i := range r.Findings {
		if r.Findings[i].ID.String() == findingID {
			r.Findings[i].Selected = !r.Findings[i].Selected
			if e.selected[kind] == nil {
				e.selected[kind] = make(map[string]bool)
			}
			if r.Findings[i].Selected {
				e.selected[kind][findingID] = true
			} else {
				delete(e.selected[kind], findingID)
			}
			return
		}
	}
}

// SelectedFindings returns the IDs of currently selected findings.
func (e *Engine) SelectedFindings(kind gateway.AuditKind) []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	r := e.reports[kind]
	if r == nil {
		return nil
	}
	var ids []string
	for _, f := range r.Findings {
		if f.Selected {
			ids = append(ids, f.ID.String())
		}
	}
	return ids
}

// RunAudit starts a scan and polls it to completion. The finished scan
// reloads the report so the new findings land in the cache.
func (e *Engine) RunAudit(ctx context.Context, kind gateway.AuditKind) error {
	if err := e.client.RunAudit(ctx, kind); err != nil {
		e.notifier.Send(notify.Error(fmt.Sprintf("%s scan failed to start", kind), err.Error(), ""))
		return err
	}
	key := runKey(kind)
	e.polls.Start(key, e.pollInterval(), func(ctx context.Context) (bool, error) {
		p, err := e.client.AuditStatus(ctx, kind)
		if err != nil {
			return false, err
		}
		switch normStatus(p.Status) {
		case "running", "pending", "scanning":
			e.setOutput(key, p.Output)
			return false, nil
		case "error", "failed":
			e.clearOutput(key)
			e.notifier.Send(notify.Error(fmt.Sprintf("%s scan failed", kind), progressError(p), ""))
			return true, nil
		default:
			e.clearOutput(key)
			if err := e.LoadAuditReport(ctx, kind); err != nil {
				e.log.Warn().Err(err).Str("kind", string(kind)).Msg("report reload after scan failed")
			}
			e.notifier.Send(notify.Success(fmt.Sprintf("%s scan complete", kind), p.Summary, ""))
			return true, nil
		}
	})
	return nil
}

// FixFindings asks the gateway to auto-fix the selected findings and polls
// the fix to completion. A finished fix reloads the report; fixed findings
// disappear from it server-side.
func (e *Engine) FixFindings(ctx context.Context, kind gateway.AuditKind) error {
	ids := e.SelectedFindings(kind)
	if len(ids) == 0 {
		return ErrNoFindingsSelected
	}
	report := e.Report(kind)
	if report == nil {
		return fmt.Errorf("fix %s findings: %w", kind, ErrNotFound)
	}
	if err := e.client.FixFindings(ctx, kind, report.ID.String(), ids); err != nil {
		e.notifier.Send(notify.Error(fmt.Sprintf("%s fix failed to start", kind), err.Error(), ""))
		return err
	}
	key := fixKey(kind)
	e.polls.Start(key, e.pollInterval(), func(ctx context.Context) (bool, error) {
		p, err := e.client.FixStatus(ctx, kind)
		if err != nil {
			return false, err
		}
		switch normStatus(p.Status) {
		case "running", "pending", "fixing":
			e.setOutput(key, p.Output)
			return false, nil
		case "error", "failed":
			e.clearOutput(key)
			e.notifier.Send(notify.Error(fmt.Sprintf("%s fix failed", kind), progressError(p), ""))
			return true, nil
		default:
			e.clearOutput(key)
			if err := e.LoadAuditReport(ctx, kind); err != nil {
				e.log.Warn().Err(err).Str("kind", string(kind)).Msg("report reload after fix failed")
			}
			e.notifier.Send(notify.Success(fmt.Sprintf("%s fix complete", kind), p.Summary, ""))
			return true, nil
		}
	})
	return nil
}

// GenerateTasks creates one todo per selected finding server-side and
// reloads the task list. The server owns the generated task shape, so
// nothing is inserted optimistically; selections clear on success.
func (e *Engine) GenerateTasks(ctx context.Context, kind gateway.AuditKind) error {
	ids := e.SelectedFindings(kind)
	if len(ids) == 0 {
		e.notifier.Send(notify.Error("Nothing to generate", "select at least one finding first", ""))
		return ErrNoFindingsSelected
	}
	report := e.Report(kind)
	if report == nil {
		return fmt.Errorf("generate tasks from %s report: %w", kind, ErrNotFound)
	}

	if err := e.client.GenerateTasks(ctx, kind, report.ID.String(), ids); err != nil {
		e.notifier.Send(notify.Error("Task generation failed", err.Error(), ""))
		return err
	}

	e.mu.Lock()
	e.selected[kind] = make(map[string]bool)
	if r := e.reports[kind]; r != nil {
		for i := range r.Findings {
			r.Findings[i].Selected = false
		}
	}
	e.mu.Unlock()

	e.Refresh(ctx)
	e.notifier.Send(notify.Success("Tasks generated", fmt.Sprintf("%d findings converted to tasks", len(ids)), ""))
	return nil
}

// RunOpsCheck starts a gateway ops/health check and polls it to completion.
func (e *Engine) RunOpsCheck(ctx context.Context) error {
	if err := e.client.RunOpsCheck(ctx); err != nil {
		e.notifier.Send(notify.Error("Ops check failed to start", err.Error(), ""))
		return err
	}
	e.polls.Start(keyOpsRun, e.pollInterval(), func(ctx context.Context) (bool, error) {
		p, err := e.client.OpsStatus(ctx)
		if err != nil {
			return false, err
		}
		switch normStatus(p.Status) {
		case "running", "pending", "checking":
			e.setOutput(keyOpsRun, p.Output)
			return false, nil
		case "error", "failed":
			e.clearOutput(keyOpsRun)
			e.notifier.Send(notify.Error("Ops check failed", progressError(p), ""))
			return true, nil
		default:
			e.clearOutput(keyOpsRun)
			e.notifier.Send(notify.Success("Ops check complete", p.Summary, ""))
			return true, nil
		}
	})
	return nil
}
