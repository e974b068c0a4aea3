package workitem

import "testing"

func hasAction(actions []Action, a Action) bool {
	for _, x := range actions {
		if x == a {
			return true
		}
	}
	return false
}

func TestFeatureRequestedExcludesApprove(t *testing.T) {
	it := WorkItem{Source: SourceFeature, Status: StatusRequested}

	actions := LegalActions(it)
	if hasAction(actions, ActionApprove) {
		t.Error("Approve must not be legal for a requested feature")
	}
	if !hasAction(actions, ActionPlan) {
		t.Error("Plan should be legal for a requested feature")
	}
}

func TestFeatureApprovalRequiresPlannedStatus(t *testing.T) {
	for _, s := range []Status{StatusPlanned, StatusAwaitingApproval} {
		it := WorkItem{Source: SourceFeature, Status: s}
		if !CanApply(it, ActionApprove) {
			t.Errorf("Approve should be legal from %q", s)
		}
		if !CanApply(it, ActionReject) {
			t.Errorf("Reject should be legal from %q", s)
		}
	}
}

func TestFeatureTransitionTable(t *testing.T) {
	tests := []struct {
		status Status
		action Action
		legal  bool
	}{
		{StatusApproved, ActionExecute, true},
		{StatusApproved, ActionPlan, false},
		{StatusTesting, ActionComplete, true},
		{StatusTesting, ActionReportIssues, true},
		{StatusTesting, ActionExecute, false},
		{StatusBuilding, ActionComplete, false},
		{StatusComplete, ActionExecute, false},
		{StatusFailed, ActionPlan, true},
		{StatusFailed, ActionExecute, true},
		{StatusFailed, ActionApprove, false},
	}

	for _, tt := range tests {
		it := WorkItem{Source: SourceFeature, Status: tt.status}
		if got := CanApply(it, tt.action); got != tt.legal {
			t.Errorf("feature %s/%s legal = %v, want %v", tt.status, tt.action, got, tt.legal)
		}
	}
}

func TestTodoRunNowBypassesPlanning(t *testing.T) {
	it := WorkItem{Source: SourceTodo, Status: StatusPending}
	if !CanApply(it, ActionRunNow) {
		t.Error("RunNow should be legal for a pending todo")
	}
	if !CanApply(it, ActionPlan) {
		t.Error("Plan should be legal for a pending todo")
	}
}

func TestTodoAwaitingApprovalBranches(t *testing.T) {
	it := WorkItem{Source: SourceTodo, Status: StatusAwaitingApproval}
	for _, a := range []Action{ActionApproveRun, ActionSchedule, ActionReplan, ActionReject} {
		if !CanApply(it, a) {
			t.Errorf("%s should be legal from awaiting_approval", a)
		}
	}
	// Plain approve is a feature action; todos approve-and-run.
	if CanApply(it, ActionApprove) {
		t.Error("Approve must not be legal for a todo awaiting approval")
	}
}

func TestTodoFailedAllowsRetryAndReplan(t *testing.T) {
	it := WorkItem{Source: SourceTodo, Status: StatusFailed}
	if !CanApply(it, ActionRetry) {
		t.Error("Retry should be legal for a failed todo")
	}
	if !CanApply(it, ActionReplan) {
		t.Error("Replan should be legal for a failed todo")
	}
}

func TestTransientStatusesHaveNoActions(t *testing.T) {
	for _, src := range []Source{SourceTodo, SourceFeature} {
		for _, s := range []Status{StatusPlanning, StatusExecuting, StatusBuilding} {
			it := WorkItem{Source: src, Status: s}
			if actions := LegalActions(it); len(actions) != 0 {
				t.Errorf("%s/%s has actions %v, want none", src, s, actions)
			}
		}
	}
}

func TestIsTerminal(t *testing.T) {
	terminal := []Status{StatusComplete, StatusCompleted, StatusFailed, StatusIdle}
	for _, s := range terminal {
		if !IsTerminal(s) {
			t.Errorf("IsTerminal(%q) = false, want true", s)
		}
	}
	for _, s := range []Status{StatusPending, StatusPlanning, StatusTesting, StatusApproved} {
		if IsTerminal(s) {
			t.Errorf("IsTerminal(%q) = true, want false", s)
		}
	}
}

func TestIsTransient(t *testing.T) {
	for _, s := range []Status{StatusPlanning, StatusExecuting, StatusBuilding} {
		if !IsTransient(s) {
			t.Errorf("IsTransient(%q) = false, want true", s)
		}
	}
	if IsTransient(StatusTesting) {
		t.Error("testing is a rest state, not transient")
	}
}
