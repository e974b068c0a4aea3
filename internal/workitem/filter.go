package workitem

import "strings"

// StatusActive is the derived status filter value: everything that has not
// reached completed/complete/failed. It is the default view.
const StatusActive = "active"

// Filter selects the visible subset of a merged work item list. The zero
// value matches everything. Apply is pure and recomputed on every render.
type Filter struct {
	Kind     string // "", "all", or a Kind value
	Status   string // "", "all", StatusActive, or a literal status
	Priority string // "", "all", or a Priority value
	Query    string // case-insensitive substring over title+description
}

// Apply returns the items matching every filter dimension, preserving order.
func (f Filter) Apply(items []WorkItem) []WorkItem {
	out := make([]WorkItem, 0, len(items))
	query := strings.ToLower(strings.TrimSpace(f.Query))
	for _, it := range items {
		if !matchDim(f.Kind, string(it.Kind)) {
			continue
		}
		if !f.matchStatus(it.Status) {
			continue
		}
		if !matchDim(f.Priority, string(it.Priority)) {
			continue
		}
		if query != "" &&
			!strings.Contains(strings.ToLower(it.Title), query) &&
			!strings.Contains(strings.ToLower(it.Description), query) {
			continue
		}
		out = append(out, it)
	}
	return out
}

func (f Filter) matchStatus(s Status) bool {
	switch f.Status {
	case "", "all":
		return true
	case StatusActive:
		switch strings.ToLower(string(s)) {
		case string(StatusCompleted), string(StatusComplete), string(StatusFailed):
			return false
		}
		return true
	default:
		return strings.EqualFold(f.Status, string(s))
	}
}

func matchDim(want, have string) bool {
	return want == "" || want == "all" || strings.EqualFold(want, have)
}
