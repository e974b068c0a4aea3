package workitem

import (
	"testing"
	"time"
)

func ts(offset int) *time.Time {
	t := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC).Add(time.Duration(offset) * time.Minute)
	return &t
}

func TestMerge_Empty(t *testing.T) {
	if got := Merge(nil, nil); len(got) != 0 {
		t.Errorf("Merge(nil, nil) returned %d items, want 0", len(got))
	}
}

func TestMerge_TodosOnlyPreservesOrder(t *testing.T) {
	todos := []Todo{
		{ID: "1", Title: "Rotate backups", CreatedAt: ts(0)},
		{ID: "2", Title: "Prune images", CreatedAt: ts(10)},
		{ID: "3", Title: "Check certs", CreatedAt: ts(5)},
	}

	got := Merge(todos, nil)
	if len(got) != 3 {
		t.Fatalf("item count = %d, want 3", len(got))
	}
	// Newest first.
	wantIDs := []ID{"2", "3", "1"}
	for i, want := range wantIDs {
		if got[i].ID != want {
			t.Errorf("item[%d].ID = %q, want %q", i, got[i].ID, want)
		}
		if got[i].Source != SourceTodo {
			t.Errorf("item[%d].Source = %q, want todo", i, got[i].Source)
		}
	}
}

func TestMerge_FeatureWinsTitleCollision(t *testing.T) {
	todos := []Todo{
		{ID: "7", Title: "Fix login bug", CreatedAt: ts(20)},
	}
	features := []Feature{
		{ID: "3", Title: "fix login bug ", CreatedAt: ts(0)},
	}

	got := Merge(todos, features)
	if len(got) != 1 {
		t.Fatalf("item count = %d, want 1", len(got))
	}
	if got[0].Source != SourceFeature {
		t.Errorf("Source = %q, want feature", got[0].Source)
	}
	if got[0].ID != "3" {
		t.Errorf("ID = %q, want 3", got[0].ID)
	}
}

func TestMerge_FeatureReplacesTodoInPlace(t *testing.T) {
	todos := []Todo{
		{ID: "1", Title: "Alpha", CreatedAt: ts(30)},
		{ID: "2", Title: "Shared title", CreatedAt: ts(20)},
		{ID: "3", Title: "Beta", CreatedAt: ts(10)},
	}
	features := []Feature{
		{ID: "9", Title: "shared title", CreatedAt: ts(0)},
	}

	got := Merge(todos, features)
	if len(got) != 3 {
		t.Fatalf("item count = %d, want 3", len(got))
	}
	// The feature takes over the todo's position, not its own sorted slot.
	if got[1].ID != "9" || got[1].Source != SourceFeature {
		t.Errorf("item[1] = %q/%q, want 9/feature", got[1].ID, got[1].Source)
	}
	if got[0].ID != "1" || got[2].ID != "3" {
		t.Errorf("surrounding order disturbed: got %q, %q", got[0].ID, got[2].ID)
	}
}

func TestMerge_SameSourceCollisionFirstSeenWins(t *testing.T) {
	todos := []Todo{
		{ID: "1", Title: "Duplicate", CreatedAt: ts(0)},
		{ID: "2", Title: "duplicate", CreatedAt: ts(10)},
	}

	got := Merge(todos, nil)
	if len(got) != 1 {
		t.Fatalf("item count = %d, want 1", len(got))
	}
	// Newest sorts first and is therefore first-seen.
	if got[0].ID != "2" {
		t.Errorf("kept ID = %q, want 2", got[0].ID)
	}
}

func TestMerge_FeatureNeverReplacedByFeature(t *testing.T) {
	features := []Feature{
		{ID: "1", Title: "Same", CreatedAt: ts(10)},
		{ID: "2", Title: "same", CreatedAt: ts(0)},
	}

	got := Merge(nil, features)
	if len(got) != 1 {
		t.Fatalf("item count = %d, want 1", len(got))
	}
	if got[0].ID != "1" {
		t.Errorf("kept ID = %q, want 1 (first-seen)", got[0].ID)
	}
}

func TestMerge_EmptyTitlesNeverCollide(t *testing.T) {
	todos := []Todo{
		{ID: "1", Title: "", CreatedAt: ts(0)},
		{ID: "2", Title: "   ", CreatedAt: ts(5)},
	}
	features := []Feature{
		{ID: "3", Title: "", CreatedAt: ts(10)},
	}

	got := Merge(todos, features)
	if len(got) != 3 {
		t.Errorf("item count = %d, want 3", len(got))
	}
}

func TestMerge_CreatedAtFallback(t *testing.T) {
	// Feature without created_at falls back to requested_at for ordering.
	features := []Feature{
		{ID: "1", Title: "A", RequestedAt: ts(20)},
		{ID: "2", Title: "B", CreatedAt: ts(10)},
	}

	got := Merge(nil, features)
	if len(got) != 2 {
		t.Fatalf("item count = %d, want 2", len(got))
	}
	if got[0].ID != "1" {
		t.Errorf("item[0].ID = %q, want 1", got[0].ID)
	}
}

func TestTodoKindDerivation(t *testing.T) {
	tests := []struct {
		kind string
		want Kind
	}{
		{"bug", KindBug},
		{"task", KindTask},
		{"", KindTask},
		{"weird", KindTask},
	}

	for _, tt := range tests {
		it := Todo{ID: "1", Kind: tt.kind}.WorkItem()
		if it.Kind != tt.want {
			t.Errorf("Todo{Kind: %q}.WorkItem().Kind = %q, want %q", tt.kind, it.Kind, tt.want)
		}
	}
}
