package workitem

import (
	"sort"
	"strings"
	"time"
)

// NormalizeTitle trims and case-folds a title for collision detection.
// Empty titles never collide.
func NormalizeTitle(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}

// Merge combines both gateway collections into one newest-first list of
// unified work items, deduplicated by normalized title.
//
// Collision policy: a feature always wins against a todo with the same
// normalized title and takes over the todo's position in the output;
// among same-source collisions the first-seen (newest) item wins.
func Merge(todos []Todo, features []Feature) []WorkItem {
	items := make([]WorkItem, 0, len(todos)+len(features))
	for _, t := range todos {
		items = append(items, t.WorkItem())
	}
	for _, f := range features {
		items = append(items, f.WorkItem())
	}

	sort.SliceStable(items, func(i, j int) bool {
		return sortTime(items[i]).After(sortTime(items[j]))
	})

	out := make([]WorkItem, 0, len(items))
	kept := make(map[string]int, len(items))
	for _, it := range items {
		key := NormalizeTitle(it.Title)
		if key == "" {
			out = append(out, it)
			continue
		}
		idx, seen := kept[key]
		if !seen {
			kept[key] = len(out)
			out = append(out, it)
			continue
		}
		// Feature records carry the richer lifecycle and replace a kept
		// todo in place; every other collision keeps the first-seen item.
		if it.Source == SourceFeature && out[idx].Source == SourceTodo {
			out[idx] = it
		}
	}
	return out
}

func sortTime(it WorkItem) time.Time {
	if it.CreatedAt != nil {
		return *it.CreatedAt
	}
	if it.UpdatedAt != nil {
		return *it.UpdatedAt
	}
	return time.Time{}
}
