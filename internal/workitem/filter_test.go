package workitem

import "testing"

func filterFixture() []WorkItem {
	return []WorkItem{
		{ID: "1", Source: SourceTodo, Kind: KindTask, Title: "Rotate backups", Description: "nightly tarball", Priority: PriorityHigh, Status: StatusPending},
		{ID: "2", Source: SourceTodo, Kind: KindBug, Title: "Fix cron drift", Description: "", Priority: PriorityMedium, Status: StatusCompleted},
		{ID: "3", Source: SourceFeature, Kind: KindFeature, Title: "Meal planner v2", Description: "shopping list sync", Priority: PriorityLow, Status: StatusFailed},
		{ID: "4", Source: SourceTodo, Kind: KindTask, Title: "Prune images", Description: "docker cleanup", Priority: PriorityLow, Status: StatusExecuting},
	}
}

func ids(items []WorkItem) []ID {
	out := make([]ID, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func TestFilter_ActiveExcludesTerminalStatuses(t *testing.T) {
	got := Filter{Status: StatusActive}.Apply(filterFixture())
	want := []ID{"1", "4"}
	if len(got) != len(want) {
		t.Fatalf("active filter kept %v, want %v", ids(got), want)
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Errorf("item[%d].ID = %q, want %q", i, got[i].ID, id)
		}
	}
}

func TestFilter_ZeroValueMatchesAll(t *testing.T) {
	got := Filter{}.Apply(filterFixture())
	if len(got) != 4 {
		t.Errorf("zero filter kept %d items, want 4", len(got))
	}
}

func TestFilter_Dimensions(t *testing.T) {
	tests := []struct {
		name   string
		filter Filter
		want   []ID
	}{
		{"by kind", Filter{Kind: "bug"}, []ID{"2"}},
		{"by literal status", Filter{Status: "executing"}, []ID{"4"}},
		{"by priority", Filter{Priority: "low"}, []ID{"3", "4"}},
		{"all sentinel", Filter{Kind: "all", Status: "all", Priority: "all"}, []ID{"1", "2", "3", "4"}},
		{"query title", Filter{Query: "CRON"}, []ID{"2"}},
		{"query description", Filter{Query: "docker"}, []ID{"4"}},
		{"query and status", Filter{Status: StatusActive, Query: "e"}, []ID{"1", "4"}},
		{"no match", Filter{Query: "zzz"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.filter.Apply(filterFixture())
			if len(got) != len(tt.want) {
				t.Fatalf("kept %v, want %v", ids(got), tt.want)
			}
			for i, id := range tt.want {
				if got[i].ID != id {
					t.Errorf("item[%d].ID = %q, want %q", i, got[i].ID, id)
				}
			}
		})
	}
}
