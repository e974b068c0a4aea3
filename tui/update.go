package tui

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/aechclawbot/opsdash/internal/gateway"
	"github.com/aechclawbot/opsdash/internal/workitem"
)

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.searching {
			return m.updateSearch(msg)
		}
		return m.updateKeys(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case TickMsg:
		m.items = m.eng.Items()
		m.lastRefresh = time.Time(msg)
		m.clampSelection()
		return m, tickCmd()

	case ActionDoneMsg:
		if msg.Err != nil {
			m.setFlash(fmt.Sprintf("%s: %v", msg.Label, msg.Err))
		} else {
			m.setFlash(msg.Label + " ok")
		}
		m.items = m.eng.Items()
		return m, nil

	case CronLoadedMsg:
		if msg.Err == nil {
			m.cronJobs = msg.Jobs
		} else {
			m.setFlash(fmt.Sprintf("cron load: %v", msg.Err))
		}
		return m, nil

	case ContainersLoadedMsg:
		if msg.Err == nil {
			m.containers = msg.Containers
		} else {
			m.setFlash(fmt.Sprintf("container load: %v", msg.Err))
		}
		return m, nil

	case AuditLoadedMsg:
		if msg.Err != nil {
			m.setFlash(fmt.Sprintf("%s report: %v", msg.Kind, msg.Err))
		}
		return m, nil
	}

	return m, nil
}

func (m Model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.searching = false
		m.filter.Query = m.searchBuf
		m.selectedRow = 0
	case "esc":
		m.searching = false
		m.searchBuf = ""
		m.filter.Query = ""
	case "backspace":
		if len(m.searchBuf) > 0 {
			m.searchBuf = m.searchBuf[:len(m.searchBuf)-1]
		}
	default:
		if len(msg.Runes) > 0 {
			m.searchBuf += string(msg.Runes)
		}
	}
	return m, nil
}

func (m Model) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.confirmDelete != "" {
		id := m.confirmDelete
		m.confirmDelete = ""
		if msg.String() == "y" {
			return m, actionCmd("delete", func(ctx context.Context) error { return m.eng.DeleteTodo(ctx, id) })
		}
		m.setFlash("delete cancelled")
		return m, nil
	}

	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "tab":
		m.activeTab = (m.activeTab + 1) % tabCount
		m.selectedRow = 0
		m.scroll = 0
		m.showDetail = false
	case "j", "down":
		m.selectedRow++
		m.clampSelection()
	case "k", "up":
		if m.selectedRow > 0 {
			m.selectedRow--
		}
		if m.selectedRow < m.scroll {
			m.scroll = m.selectedRow
		}
	case "esc":
		if m.showDetail {
			m.showDetail = false
			return m, nil
		}
		if m.filter.Query != "" {
			m.filter.Query = ""
			m.searchBuf = ""
			m.selectedRow = 0
		}
	case "enter":
		if m.activeTab == tabTasks {
			m.showDetail = !m.showDetail
		}
	}

	switch m.activeTab {
	case tabTasks:
		return m.updateTasksKeys(msg)
	case tabAudit:
		return m.updateAuditKeys(msg)
	case tabCron:
		return m.updateCronKeys(msg)
	case tabContainers:
		return m.updateContainersKeys(msg)
	}
	return m, nil
}

func (m Model) updateTasksKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "/":
		m.searching = true
		m.searchBuf = ""
		return m, nil
	case "f":
		m.filter.Kind = cycleKind(m.filter.Kind)
		m.selectedRow = 0
		return m, nil
	case "v":
		m.filter.Status = cycleStatus(m.filter.Status)
		m.selectedRow = 0
		return m, nil
	case "R":
		return m, actionCmd("reload", func(ctx context.Context) error {
			m.eng.Refresh(ctx)
			return nil
		})
	}

	it, ok := m.selectedItem()
	if !ok {
		return m, nil
	}
	id := it.ID

	// Each key maps to one lifecycle action; illegal ones are rejected by
	// the engine, so the gate here is only a courtesy for the status bar.
	switch msg.String() {
	case "p":
		if workitem.CanApply(it, workitem.ActionPlan) {
			if it.Source == workitem.SourceFeature {
				return m, actionCmd("plan", func(ctx context.Context) error { return m.eng.PlanFeature(ctx, id) })
			}
			return m, actionCmd("plan", func(ctx context.Context) error { return m.eng.PlanTodo(ctx, id) })
		}
	case "a":
		if workitem.CanApply(it, workitem.ActionApprove) {
			return m, actionCmd("approve", func(ctx context.Context) error { return m.eng.ApproveFeature(ctx, id) })
		}
		if workitem.CanApply(it, workitem.ActionApproveRun) {
			return m, actionCmd("approve", func(ctx context.Context) error { return m.eng.ApproveTodoAndRun(ctx, id, false) })
		}
	case "s":
		if workitem.CanApply(it, workitem.ActionSchedule) {
			when := nextMorning(time.Now())
			return m, actionCmd("schedule", func(ctx context.Context) error { return m.eng.ScheduleTodo(ctx, id, when, false) })
		}
	case "n":
		if workitem.CanApply(it, workitem.ActionRunNow) {
			return m, actionCmd("run", func(ctx context.Context) error { return m.eng.RunTodoNow(ctx, id) })
		}
	case "x":
		if workitem.CanApply(it, workitem.ActionExecute) {
			if it.Source == workitem.SourceFeature {
				return m, actionCmd("execute", func(ctx context.Context) error { return m.eng.ExecuteFeature(ctx, id) })
			}
			return m, actionCmd("execute", func(ctx context.Context) error { return m.eng.ExecuteTodo(ctx, id) })
		}
	case "r":
		if workitem.CanApply(it, workitem.ActionRetry) {
			return m, actionCmd("retry", func(ctx context.Context) error { return m.eng.RetryTodo(ctx, id) })
		}
		if workitem.CanApply(it, workitem.ActionReplan) {
			return m, actionCmd("replan", func(ctx context.Context) error { return m.eng.ReplanTodo(ctx, id) })
		}
	case "X":
		if workitem.CanApply(it, workitem.ActionReject) {
			if it.Source == workitem.SourceFeature {
				return m, actionCmd("reject", func(ctx context.Context) error { return m.eng.RejectFeature(ctx, id) })
			}
			return m, actionCmd("reject", func(ctx context.Context) error { return m.eng.RejectTodo(ctx, id) })
		}
	case "c":
		if workitem.CanApply(it, workitem.ActionComplete) {
			return m, actionCmd("complete", func(ctx context.Context) error { return m.eng.CompleteFeature(ctx, id) })
		}
	case "d":
		if workitem.CanApply(it, workitem.ActionDelete) {
			m.confirmDelete = id
			m.setFlash(fmt.Sprintf("delete %q? y to confirm", truncate(it.Title, 30)))
		}
	}
	return m, nil
}

func (m Model) updateAuditKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "1":
		m.auditKind = gateway.AuditQA
		m.selectedRow = 0
		return m, m.loadAuditCmd(gateway.AuditQA)
	case "2":
		m.auditKind = gateway.AuditSecurity
		m.selectedRow = 0
		return m, m.loadAuditCmd(gateway.AuditSecurity)
	case " ":
		report := m.eng.Report(m.auditKind)
		if report != nil && m.selectedRow < len(report.Findings) {
			m.eng.ToggleFinding(m.auditKind, report.Findings[m.selectedRow].ID.String())
		}
		return m, nil
	case "S":
		kind := m.auditKind
		return m, actionCmd("scan", func(ctx context.Context) error { return m.eng.RunAudit(ctx, kind) })
	case "F":
		kind := m.auditKind
		return m, actionCmd("fix", func(ctx context.Context) error { return m.eng.FixFindings(ctx, kind) })
	case "G":
		kind := m.auditKind
		return m, actionCmd("generate tasks", func(ctx context.Context) error { return m.eng.GenerateTasks(ctx, kind) })
	case "O":
		return m, actionCmd("ops check", func(ctx context.Context) error { return m.eng.RunOpsCheck(ctx) })
	}
	return m, nil
}

func (m Model) updateCronKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "R":
		return m, loadCronCmd(m.client)
	case "e":
		if m.selectedRow < len(m.cronJobs) {
			job := m.cronJobs[m.selectedRow]
			client := m.client
			return m, tea.Sequence(
				actionCmd("toggle "+job.Name, func(ctx context.Context) error {
					return client.SetCronJobEnabled(ctx, job.Name, !job.Enabled)
				}),
				loadCronCmd(client),
			)
		}
	}
	return m, nil
}

func (m Model) updateContainersKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "R":
		return m, loadContainersCmd(m.client)
	case "r":
		if m.selectedRow < len(m.containers) {
			c := m.containers[m.selectedRow]
			client := m.client
			return m, tea.Sequence(
				actionCmd("restart "+c.Name, func(ctx context.Context) error {
					return client.RestartContainer(ctx, c.ID)
				}),
				loadContainersCmd(client),
			)
		}
	}
	return m, nil
}

func (m Model) loadAuditCmd(kind gateway.AuditKind) tea.Cmd {
	eng := m.eng
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return AuditLoadedMsg{Kind: kind, Err: eng.LoadAuditReport(ctx, kind)}
	}
}

func (m *Model) setFlash(s string) {
	m.flash = s
	m.flashExp = time.Now().Add(4 * time.Second)
}

func (m *Model) clampSelection() {
	var max int
	switch m.activeTab {
	case tabTasks:
		max = len(m.visibleItems())
	case tabAudit:
		if r := m.eng.Report(m.auditKind); r != nil {
			max = len(r.Findings)
		}
	case tabCron:
		max = len(m.cronJobs)
	case tabContainers:
		max = len(m.containers)
	}
	if max == 0 {
		m.selectedRow = 0
		m.scroll = 0
		return
	}
	if m.selectedRow >= max {
		m.selectedRow = max - 1
	}
	maxVisible := 15
	if m.selectedRow >= m.scroll+maxVisible {
		m.scroll = m.selectedRow - maxVisible + 1
	}
}

func cycleKind(k string) string {
	switch k {
	case "", "all":
		return string(workitem.KindTask)
	case string(workitem.KindTask):
		return string(workitem.KindBug)
	case string(workitem.KindBug):
		return string(workitem.KindFeature)
	default:
		return ""
	}
}

func cycleStatus(s string) string {
	switch s {
	case workitem.StatusActive:
		return string(workitem.StatusFailed)
	case string(workitem.StatusFailed):
		return "all"
	default:
		return workitem.StatusActive
	}
}

// nextMorning returns 9:00 the following day, the default schedule slot.
func nextMorning(now time.Time) time.Time {
	next := now.AddDate(0, 0, 1)
	return time.Date(next.Year(), next.Month(), next.Day(), 9, 0, 0, 0, now.Location())
}
