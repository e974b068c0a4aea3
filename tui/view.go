package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/aechclawbot/opsdash/internal/workitem"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("255")).
			Padding(0, 1)

	sectionStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	runningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("244"))

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("255"))

	tabActiveStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			Underline(true)

	tabInactiveStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("244"))

	completedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	inProgressStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	normalStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255"))

	selectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))
)

// View renders the TUI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	var b strings.Builder

	visible := m.visibleItems()
	active := 0
	for _, it := range m.items {
		if workitem.IsTransient(it.Status) {
			active++
		}
	}
	header := fmt.Sprintf(" opsdash │ Items: %d (%d shown) │ Running: %d │ Cron: %d │ Containers: %d ",
		len(m.items), len(visible), active, len(m.cronJobs), len(m.containers))
	b.WriteString(headerStyle.Width(m.width).Render(header))
	b.WriteString("\n")

	b.WriteString(m.renderTabs())
	b.WriteString("\n")

	var content string
	switch m.activeTab {
	case tabTasks:
		if m.showDetail {
			content = m.renderTaskDetail()
		} else {
			content = m.renderTasks()
		}
	case tabAudit:
		content = m.renderAudit()
	case tabCron:
		content = m.renderCron()
	case tabContainers:
		content = m.renderContainers()
	}
	b.WriteString(sectionStyle.Width(m.width - 2).Render(content))
	b.WriteString("\n")

	if m.searching {
		b.WriteString(warningStyle.Width(m.width).Render(" search: " + m.searchBuf + "█"))
		b.WriteString("\n")
	} else if m.flash != "" && time.Now().Before(m.flashExp) {
		style := completedStyle
		if !strings.HasSuffix(m.flash, " ok") {
			style = warningStyle
		}
		b.WriteString(style.Width(m.width).Render(" " + m.flash + " "))
		b.WriteString("\n")
	}

	b.WriteString(statusBarStyle.Width(m.width).Render(m.statusBar()))
	return b.String()
}

func (m Model) renderTabs() string {
	tabs := []string{"Tasks", "Audit", "Cron", "Containers"}
	var parts []string
	for i, tab := range tabs {
		if i == m.activeTab {
			parts = append(parts, tabActiveStyle.Render(fmt.Sprintf(" %s ", tab)))
		} else {
			parts = append(parts, tabInactiveStyle.Render(fmt.Sprintf(" %s ", tab)))
		}
	}
	return strings.Join(parts, "│")
}

func (m Model) renderTasks() string {
	var b strings.Builder

	label := m.filter.Status
	if label == "" {
		label = "all"
	}
	b.WriteString(titleStyle.Render(fmt.Sprintf("WORK ITEMS (%s)", label)))
	if m.filter.Kind != "" && m.filter.Kind != "all" {
		b.WriteString(dimStyle.Render(" kind=" + m.filter.Kind))
	}
	if m.filter.Query != "" {
		b.WriteString(dimStyle.Render(" /" + m.filter.Query))
	}
	b.WriteString("\n")

	items := m.visibleItems()
	if len(items) == 0 {
		b.WriteString(dimStyle.Render("  No matching work items"))
		return b.String()
	}

	maxVisible := 15
	start := m.scroll
	if start >= len(items) {
		start = 0
	}
	end := start + maxVisible
	if end > len(items) {
		end = len(items)
	}

	for i := start; i < end; i++ {
		line := m.formatItemLine(items[i])
		if i == m.selectedRow {
			b.WriteString(selectedStyle.Render("> " + line))
		} else {
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
	}

	if len(items) > maxVisible {
		b.WriteString(dimStyle.Render(fmt.Sprintf("  ... showing %d-%d of %d (j/k to scroll)", start+1, end, len(items))))
		b.WriteString("\n")
	}

	return strings.TrimSuffix(b.String(), "\n")
}

func (m Model) formatItemLine(it workitem.WorkItem) string {
	icon, style := statusGlyph(it.Status)

	kind := " "
	switch it.Kind {
	case workitem.KindBug:
		kind = "B"
	case workitem.KindFeature:
		kind = "F"
	case workitem.KindTask:
		kind = "T"
	}

	age := ""
	if it.CreatedAt != nil {
		age = humanize.Time(*it.CreatedAt)
	}

	spin := ""
	if workitem.IsTransient(it.Status) {
		spin = " …"
	}

	return style.Render(fmt.Sprintf("%s %s %-18s %-35s %-8s %s%s",
		icon, kind, truncate(string(it.Status), 18), truncate(it.Title, 35),
		truncate(string(it.Priority), 8), age, spin))
}

func statusGlyph(s workitem.Status) (string, lipgloss.Style) {
	switch {
	case s == workitem.StatusComplete || s == workitem.StatusCompleted:
		return "✓", completedStyle
	case s == workitem.StatusFailed:
		return "✗", errorStyle
	case workitem.IsTransient(s):
		return "●", inProgressStyle
	case s == workitem.StatusAwaitingApproval || s == workitem.StatusPlanned:
		return "◆", warningStyle
	default:
		return "○", normalStyle
	}
}

func (m Model) renderTaskDetail() string {
	it, ok := m.selectedItem()
	if !ok {
		return dimStyle.Render("  Nothing selected")
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("%s [%s/%s]", strings.ToUpper(it.Title), it.Source, it.Kind)))
	b.WriteString("\n\n")

	icon, style := statusGlyph(it.Status)
	b.WriteString(fmt.Sprintf("  Status:   %s\n", style.Render(icon+" "+string(it.Status))))
	b.WriteString(fmt.Sprintf("  Priority: %s\n", it.Priority))
	if it.CreatedAt != nil {
		b.WriteString(fmt.Sprintf("  Created:  %s\n", humanize.Time(*it.CreatedAt)))
	}
	if it.ScheduledTime != nil {
		b.WriteString(fmt.Sprintf("  Runs at:  %s\n", it.ScheduledTime.Format(time.RFC1123)))
	}
	if it.Description != "" {
		b.WriteString("\n  " + truncate(it.Description, m.width-8) + "\n")
	}
	if it.FailureReason != "" {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render("  FAILED: " + truncate(it.FailureReason, m.width-12)))
		b.WriteString("\n")
	}
	if it.CompletionSummary != "" {
		b.WriteString("\n")
		b.WriteString(completedStyle.Render("  " + truncate(it.CompletionSummary, m.width-8)))
		b.WriteString("\n")
	}

	// Live output while a poller is tracking this item.
	for _, key := range []string{"plan-" + it.ID.String(), "todo-" + it.ID.String(), "feat-" + it.ID.String()} {
		if out := m.eng.Output(key); out != "" {
			b.WriteString("\n")
			b.WriteString(titleStyle.Render("  PROGRESS:"))
			b.WriteString("\n")
			lines := strings.Split(out, "\n")
			if len(lines) > 10 {
				lines = lines[len(lines)-10:]
			}
			for _, line := range lines {
				b.WriteString(dimStyle.Render("  " + truncate(line, m.width-8)))
				b.WriteString("\n")
			}
			break
		}
	}

	actions := workitem.LegalActions(it)
	if len(actions) > 0 {
		var names []string
		for _, a := range actions {
			names = append(names, string(a))
		}
		b.WriteString("\n")
		b.WriteString(dimStyle.Render("  Available: " + strings.Join(names, ", ")))
	}

	return strings.TrimSuffix(b.String(), "\n")
}

func (m Model) renderAudit() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("AUDIT (%s)", m.auditKind)))
	b.WriteString("\n")

	for _, key := range []string{"qa-run", "sec-run", "qa-fix", "sec-fix", "ops-run"} {
		if m.eng.InFlight(key) {
			b.WriteString(inProgressStyle.Render("  ⏳ " + key + " in progress"))
			b.WriteString("\n")
		}
	}

	report := m.eng.Report(m.auditKind)
	if report == nil {
		b.WriteString(dimStyle.Render("  No report loaded. Press [1] for QA, [2] for security."))
		return b.String()
	}
	if len(report.Findings) == 0 {
		b.WriteString(completedStyle.Render("  No findings. Clean bill of health."))
		return b.String()
	}

	selected := 0
	for i, f := range report.Findings {
		mark := "[ ]"
		if f.Selected {
			mark = "[x]"
			selected++
		}
		fix := "   "
		if f.AutoFixable {
			fix = "fix"
		}
		line := fmt.Sprintf("%s %-8s %s %-40s %s",
			mark, f.Severity, fix, truncate(f.Title, 40), truncate(f.File, 30))

		style := severityStyle(f.Severity)
		if i == m.selectedRow {
			b.WriteString(selectedStyle.Render("> " + line))
		} else {
			b.WriteString(style.Render("  " + line))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("  %d findings, %d selected", len(report.Findings), selected)))
	return strings.TrimSuffix(b.String(), "\n")
}

func severityStyle(sev string) lipgloss.Style {
	switch strings.ToLower(sev) {
	case "critical", "high":
		return errorStyle
	case "medium":
		return warningStyle
	default:
		return normalStyle
	}
}

func (m Model) renderCron() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("CRON JOBS"))
	b.WriteString("\n")

	if len(m.cronJobs) == 0 {
		b.WriteString(dimStyle.Render("  No cron jobs. Press [R] to reload."))
		return b.String()
	}

	header := fmt.Sprintf("  %-24s %-16s %-8s %-20s %s",
		"Name", "Schedule", "Enabled", "Next run", "Last run")
	b.WriteString(headerStyle.Render(header))
	b.WriteString("\n")

	now := time.Now()
	for i, job := range m.cronJobs {
		enabled := "off"
		style := dimStyle
		if job.Enabled {
			enabled = "on"
			style = normalStyle
		}

		next := "-"
		if t := job.NextRun(now); !t.IsZero() {
			next = humanize.Time(t)
		}
		last := "-"
		if job.LastRun != nil {
			last = humanize.Time(*job.LastRun)
			if job.LastExit != 0 {
				last += fmt.Sprintf(" (exit %d)", job.LastExit)
				style = warningStyle
			}
		}

		line := fmt.Sprintf("%-24s %-16s %-8s %-20s %s",
			truncate(job.Name, 24), job.Schedule, enabled, next, last)
		if i == m.selectedRow {
			b.WriteString(selectedStyle.Render("> " + line))
		} else {
			b.WriteString(style.Render("  " + line))
		}
		b.WriteString("\n")
	}

	return strings.TrimSuffix(b.String(), "\n")
}

func (m Model) renderContainers() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("CONTAINERS"))
	b.WriteString("\n")

	if len(m.containers) == 0 {
		b.WriteString(dimStyle.Render("  No containers. Press [R] to reload."))
		return b.String()
	}

	for i, c := range m.containers {
		var icon string
		var style lipgloss.Style
		switch strings.ToLower(c.State) {
		case "running":
			icon = "●"
			style = runningStyle
		case "exited", "dead":
			icon = "✗"
			style = errorStyle
		default:
			icon = "○"
			style = dimStyle
		}

		line := fmt.Sprintf("%s %-24s %-30s %-10s %s",
			icon, truncate(c.Name, 24), truncate(c.Image, 30), c.State, c.Status)
		if i == m.selectedRow {
			b.WriteString(selectedStyle.Render("> " + line))
		} else {
			b.WriteString(style.Render("  " + line))
		}
		b.WriteString("\n")
	}

	return strings.TrimSuffix(b.String(), "\n")
}

func (m Model) statusBar() string {
	switch m.activeTab {
	case tabAudit:
		return " [1]qa [2]security [space]select [S]can [F]ix [G]enerate tasks [O]ps check [tab]switch [q]uit "
	case tabCron:
		return " [j/k]navigate [e]nable/disable [R]eload [tab]switch [q]uit "
	case tabContainers:
		return " [j/k]navigate [r]estart [R]eload [tab]switch [q]uit "
	default:
		if m.showDetail {
			return " [esc]back [p]lan [a]pprove [x]ecute [r]etry [c]omplete [d]elete [q]uit "
		}
		return " [tab]switch [j/k]navigate [enter]detail [/]search [f]kind [v]status [q]uit "
	}
}

func truncate(s string, max int) string {
	if max < 4 {
		max = 4
	}
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
