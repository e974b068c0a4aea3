package workitem

// Action is a user-triggered lifecycle transition.
type Action string

const (
	ActionPlan         Action = "plan"
	ActionApprove      Action = "approve"
	ActionReject       Action = "reject"
	ActionExecute      Action = "execute"
	ActionComplete     Action = "complete"
	ActionReportIssues Action = "report_issues"
	ActionApproveRun   Action = "approve_run"
	ActionSchedule     Action = "schedule"
	ActionReplan       Action = "replan"
	ActionRetry        Action = "retry"
	ActionRunNow       Action = "run_now"
	ActionDelete       Action = "delete"
)

// featureActions maps feature-sourced statuses to the actions legal from
// them. Features always pass through planning before execution; the only
// way out of failed is the replan/execute path.
var featureActions = map[Status][]Action{
	StatusRequested:        {ActionPlan},
	StatusPending:          {ActionPlan},
	StatusPlanning:         {},
	StatusPlanned:          {ActionApprove, ActionReject},
	StatusAwaitingApproval: {ActionApprove, ActionReject},
	StatusApproved:         {ActionExecute},
	StatusBuilding:         {},
	StatusExecuting:        {},
	StatusTesting:          {ActionComplete, ActionReportIssues},
	StatusComplete:         {},
	StatusFailed:           {ActionPlan, ActionExecute},
}

// todoActions maps todo-sourced statuses to their legal actions. Todos are
// optimized for fast iteration: running without a plan is legal from
// pending, and approval flows straight into execution.
var todoActions = map[Status][]Action{
	StatusPending:          {ActionPlan, ActionRunNow, ActionDelete},
	StatusPlanning:         {},
	StatusAwaitingApproval: {ActionApproveRun, ActionSchedule, ActionReplan, ActionReject},
	StatusApproved:         {ActionExecute, ActionDelete},
	StatusScheduled:        {ActionExecute, ActionDelete},
	StatusExecuting:        {},
	StatusIdle:             {ActionDelete},
	StatusCompleted:        {ActionDelete},
	StatusComplete:         {ActionDelete},
	StatusFailed:           {ActionRetry, ActionReplan, ActionDelete},
}

// LegalActions returns the actions a user may trigger on the item in its
// current status. Transient statuses have no legal actions; they resolve
// through polling.
func LegalActions(it WorkItem) []Action {
	var table map[Status][]Action
	switch it.Source {
	case SourceFeature:
		table = featureActions
	case SourceTodo:
		table = todoActions
	default:
		return nil
	}
	return table[it.Status]
}

// CanApply reports whether the action is legal for the item's current status.
func CanApply(it WorkItem, a Action) bool {
	for _, legal := range LegalActions(it) {
		if legal == a {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further automatic transition occurs from
// the status without explicit user action.
func IsTerminal(s Status) bool {
	switch s {
	case StatusComplete, StatusCompleted, StatusFailed, StatusIdle:
		return true
	}
	return false
}

// IsTransient reports whether the status represents a long-running backend
// operation. Every transient item must have an active poller.
func IsTransient(s Status) bool {
	switch s {
	case StatusPlanning, StatusExecuting, StatusBuilding:
		return true
	}
	return false
}
