package tui

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/aechclawbot/opsdash/internal/engine"
	"github.com/aechclawbot/opsdash/internal/gateway"
	"github.com/aechclawbot/opsdash/internal/notify"
	"github.com/aechclawbot/opsdash/internal/workitem"
)

func newTestModel(t *testing.T) Model {
	t.Helper()
	client := gateway.New("http://127.0.0.1:1", time.Second, zerolog.Nop())
	eng := engine.New(client, notify.Noop{}, zerolog.Nop(), engine.Config{})
	t.Cleanup(eng.Close)
	return NewModel(eng, client)
}

func TestVisibleItems_DefaultFilterHidesTerminal(t *testing.T) {
	m := newTestModel(t)
	m.items = []workitem.WorkItem{
		{ID: "1", Source: workitem.SourceTodo, Title: "a", Status: workitem.StatusPending},
		{ID: "2", Source: workitem.SourceTodo, Title: "b", Status: workitem.StatusCompleted},
		{ID: "3", Source: workitem.SourceFeature, Title: "c", Status: workitem.StatusFailed},
		{ID: "4", Source: workitem.SourceTodo, Title: "d", Status: workitem.StatusExecuting},
	}

	visible := m.visibleItems()
	if len(visible) != 2 {
		t.Fatalf("got %d visible, want 2", len(visible))
	}
	for _, it := range visible {
		if it.Status == workitem.StatusCompleted || it.Status == workitem.StatusFailed {
			t.Errorf("terminal item %s leaked through the active filter", it.ID)
		}
	}
}

func TestSearch_EnterAppliesQuery(t *testing.T) {
	m := newTestModel(t)
	m.items = []workitem.WorkItem{
		{ID: "1", Source: workitem.SourceTodo, Title: "Fix login bug", Status: workitem.StatusPending},
		{ID: "2", Source: workitem.SourceTodo, Title: "Water plants", Status: workitem.StatusPending},
	}
	m.searching = true

	var mdl tea.Model = m
	for _, r := range "login" {
		mdl, _ = mdl.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	mdl, _ = mdl.Update(tea.KeyMsg{Type: tea.KeyEnter})

	got := mdl.(Model)
	if got.searching {
		t.Error("still in search mode after enter")
	}
	visible := got.visibleItems()
	if len(visible) != 1 || visible[0].ID != "1" {
		t.Errorf("visible = %+v, want only the login item", visible)
	}
}

func TestTabKeyCyclesAndResetsSelection(t *testing.T) {
	m := newTestModel(t)
	m.selectedRow = 3
	m.activeTab = tabContainers

	mdl, _ := m.Update(tea.KeyMsg{Type: tea.KeyTab})
	got := mdl.(Model)
	if got.activeTab != tabTasks {
		t.Errorf("activeTab = %d, want wrap to %d", got.activeTab, tabTasks)
	}
	if got.selectedRow != 0 {
		t.Errorf("selectedRow = %d, want 0", got.selectedRow)
	}
}

func TestDeleteKeyRequiresConfirmation(t *testing.T) {
	m := newTestModel(t)
	m.items = []workitem.WorkItem{
		{ID: "1", Source: workitem.SourceTodo, Title: "Old backup", Status: workitem.StatusPending},
	}

	mdl, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'d'}})
	got := mdl.(Model)
	if cmd != nil {
		t.Error("delete issued without confirmation")
	}
	if got.confirmDelete != "1" {
		t.Fatalf("confirmDelete = %q, want 1", got.confirmDelete)
	}

	mdl, cmd = got.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'n'}})
	got = mdl.(Model)
	if cmd != nil {
		t.Error("declined confirmation still produced a command")
	}
	if got.confirmDelete != "" {
		t.Error("confirmation state not cleared on decline")
	}

	mdl, _ = got.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'d'}})
	got = mdl.(Model)
	mdl, cmd = got.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'y'}})
	got = mdl.(Model)
	if cmd == nil {
		t.Error("confirmed delete produced no command")
	}
	if got.confirmDelete != "" {
		t.Error("confirmation state not cleared on confirm")
	}
}

func TestClampSelection(t *testing.T) {
	m := newTestModel(t)
	m.items = []workitem.WorkItem{
		{ID: "1", Source: workitem.SourceTodo, Title: "a", Status: workitem.StatusPending},
		{ID: "2", Source: workitem.SourceTodo, Title: "b", Status: workitem.StatusPending},
	}
	m.selectedRow = 9
	m.clampSelection()
	if m.selectedRow != 1 {
		t.Errorf("selectedRow = %d, want clamped to 1", m.selectedRow)
	}
}

func TestCycleStatus(t *testing.T) {
	got := cycleStatus(workitem.StatusActive)
	if got != string(workitem.StatusFailed) {
		t.Errorf("active -> %q, want failed", got)
	}
	got = cycleStatus(got)
	if got != "all" {
		t.Errorf("failed -> %q, want all", got)
	}
	got = cycleStatus(got)
	if got != workitem.StatusActive {
		t.Errorf("all -> %q, want active", got)
	}
}

func TestStatusGlyph(t *testing.T) {
	tests := []struct {
		status workitem.Status
		want   string
	}{
		{workitem.StatusCompleted, "✓"},
		{workitem.StatusFailed, "✗"},
		{workitem.StatusExecuting, "●"},
		{workitem.StatusAwaitingApproval, "◆"},
		{workitem.StatusPending, "○"},
	}
	for _, tt := range tests {
		if got, _ := statusGlyph(tt.status); got != tt.want {
			t.Errorf("statusGlyph(%s) = %q, want %q", tt.status, got, tt.want)
		}
	}
}

func TestNextMorning(t *testing.T) {
	now := time.Date(2026, 3, 14, 15, 30, 0, 0, time.UTC)
	got := nextMorning(now)
	want := time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("nextMorning = %v, want %v", got, want)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate short = %q", got)
	}
	if got := truncate("a very long title here", 10); got != "a very ..." {
		t.Errorf("truncate long = %q", got)
	}
}
