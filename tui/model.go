package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/aechclawbot/opsdash/internal/engine"
	"github.com/aechclawbot/opsdash/internal/gateway"
	"github.com/aechclawbot/opsdash/internal/workitem"
)

// Tab indices
const (
	tabTasks = iota
	tabAudit
	tabCron
	tabContainers
	tabCount
)

// Model is the TUI application model
type Model struct {
	eng    *engine.Engine
	client *gateway.Client

	// Data
	items      []workitem.WorkItem
	cronJobs   []gateway.CronJob
	containers []gateway.Container

	// Filter state
	filter    workitem.Filter
	searching bool
	searchBuf string

	// UI state
	width       int
	height      int
	activeTab   int
	selectedRow int
	scroll      int
	showDetail  bool
	auditKind   gateway.AuditKind

	// Hard deletes are armed by the first keypress and only issued on an
	// explicit confirmation. Empty means nothing is pending.
	confirmDelete workitem.ID

	// Status
	statusMsg string
	flash     string
	flashExp  time.Time

	lastRefresh time.Time
}

// NewModel creates a new TUI model
func NewModel(eng *engine.Engine, client *gateway.Client) Model {
	return Model{
		eng:       eng,
		client:    client,
		filter:    workitem.Filter{Status: workitem.StatusActive},
		auditKind: gateway.AuditQA,
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		loadCronCmd(m.client),
		loadContainersCmd(m.client),
	)
}

// visibleItems applies the current filter to the engine's merged list.
func (m Model) visibleItems() []workitem.WorkItem {
	return m.filter.Apply(m.items)
}

// selectedItem returns the item under the cursor, if any.
func (m Model) selectedItem() (workitem.WorkItem, bool) {
	visible := m.visibleItems()
	if m.selectedRow < 0 || m.selectedRow >= len(visible) {
		return workitem.WorkItem{}, false
	}
	return visible[m.selectedRow], true
}

// TickMsg triggers a redraw and a snapshot pull from the engine.
type TickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// ActionDoneMsg reports the outcome of an engine action started from a key.
type ActionDoneMsg struct {
	Label string
	Err   error
}

// CronLoadedMsg carries a fresh cron job list.
type CronLoadedMsg struct {
	Jobs []gateway.CronJob
	Err  error
}

// ContainersLoadedMsg carries a fresh container list.
type ContainersLoadedMsg struct {
	Containers []gateway.Container
	Err        error
}

// AuditLoadedMsg reports a finished report load.
type AuditLoadedMsg struct {
	Kind gateway.AuditKind
	Err  error
}

func loadCronCmd(client *gateway.Client) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		jobs, err := client.ListCronJobs(ctx)
		return CronLoadedMsg{Jobs: jobs, Err: err}
	}
}

func loadContainersCmd(client *gateway.Client) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		containers, err := client.ListContainers(ctx)
		return ContainersLoadedMsg{Containers: containers, Err: err}
	}
}

func actionCmd(label string, fn func(context.Context) error) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return ActionDoneMsg{Label: label, Err: fn(ctx)}
	}
}
