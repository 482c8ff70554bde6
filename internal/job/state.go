package job

// State is the lifecycle state of a job.
type State string

// Job states. A job leaves NotSubmitted when a service accepts it and never leaves a terminal
// state.
const (
	NotSubmitted State = "NOT_SUBMITTED"
	Pending      State = "PENDING"
	Running      State = "RUNNING"
	Completed    State = "COMPLETED"
	Failed       State = "FAILED"
	Terminated   State = "TERMINATED"
	Expired      State = "EXPIRED"
)

// Terminal returns true if no transition leaves the state.
func (s State) Terminal() bool {
	switch s {
	case Completed, Failed, Terminated, Expired:
		return true
	default:
		return false
	}
}

// ActionState is the lifecycle state of an action.
type ActionState string

// Action states.
const (
	NotReady        ActionState = "NOT_READY"
	Ready           ActionState = "READY"
	ActionRunning   ActionState = "RUNNING"
	ActionCompleted ActionState = "COMPLETED"
	ActionFailed    ActionState = "FAILED"
	Killed          ActionState = "KILLED"
)

// Terminal returns true if the action is done, successfully or not.
func (s ActionState) Terminal() bool {
	return s == ActionCompleted || s == ActionFailed || s == Killed
}

// Kind distinguishes the job types a service may accept.
type Kind string

// Job kinds.
const (
	StandardKind Kind = "standard"
	PilotKind    Kind = "pilot"
	CompoundKind Kind = "compound"
)
