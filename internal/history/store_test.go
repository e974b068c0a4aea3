package history

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/aechclawbot/opsdash/internal/workitem"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveAndListSnapshots(t *testing.T) {
	s := newTestStore(t)

	now := time.Now()
	items := []workitem.WorkItem{
		{ID: "1", Source: workitem.SourceTodo, Kind: workitem.KindTask, Title: "Backup database", Status: workitem.StatusPending, CreatedAt: &now},
		{ID: "f1", Source: workitem.SourceFeature, Kind: workitem.KindFeature, Title: "Dark mode", Status: workitem.StatusRequested},
	}

	id, err := s.SaveSnapshot("http://gw.local", "before upgrade", items)
	if err != nil {
		t.Fatal(err)
	}

	snaps, err := s.ListSnapshots()
	if err != nil {
		t.Fatal(err)
	}
	if len(snaps) != 1 {
		t.Fatalf("got %d snapshots, want 1", len(snaps))
	}
	if snaps[0].ID != id {
		t.Errorf("id = %d, want %d", snaps[0].ID, id)
	}
	if snaps[0].ItemCount != 2 {
		t.Errorf("item_count = %d, want 2", snaps[0].ItemCount)
	}
	if snaps[0].Note != "before upgrade" {
		t.Errorf("note = %q", snaps[0].Note)
	}
}

func TestSnapshotItems_RoundTrip(t *testing.T) {
	s := newTestStore(t)

	items := []workitem.WorkItem{
		{ID: "7", Source: workitem.SourceTodo, Kind: workitem.KindBug, Title: "Fix login bug", Status: workitem.StatusFailed, FailureReason: "timeout"},
	}
	id, err := s.SaveSnapshot("http://gw.local", "", items)
	if err != nil {
		t.Fatal(err)
	}

	got, err := s.SnapshotItems(id)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d items, want 1", len(got))
	}
	if got[0].Title != "Fix login bug" || got[0].FailureReason != "timeout" {
		t.Errorf("round trip lost fields: %+v", got[0])
	}
	if got[0].Source != workitem.SourceTodo || got[0].Kind != workitem.KindBug {
		t.Errorf("source/kind = %s/%s", got[0].Source, got[0].Kind)
	}
}

func TestSaveSnapshot_EmptyListIsValid(t *testing.T) {
	s := newTestStore(t)

	id, err := s.SaveSnapshot("http://gw.local", "empty", nil)
	if err != nil {
		t.Fatal(err)
	}
	got, err := s.SnapshotItems(id)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("got %d items, want 0", len(got))
	}
}
