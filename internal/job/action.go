package job

import (
	"github.com/determined-ai/schedsim/internal/failures"
	"github.com/determined-ai/schedsim/internal/storage"
	"github.com/determined-ai/schedsim/pkg/check"
)

// ActionKind is the type of work an action performs.
type ActionKind string

// Action kinds.
const (
	ComputeAction    ActionKind = "compute"
	SleepAction      ActionKind = "sleep"
	FileReadAction   ActionKind = "file_read"
	FileWriteAction  ActionKind = "file_write"
	FileCopyAction   ActionKind = "file_copy"
	FileDeleteAction ActionKind = "file_delete"
	CustomAction     ActionKind = "custom"
)

// CustomFunc runs a custom action on its allocation and returns its duration in simulated seconds.
type CustomFunc func(host string, cores int, ram float64) (float64, error)

// Action is a unit of work inside a compound job.
type Action struct {
	name string
	kind ActionKind
	job  *CompoundJob

	minCores int
	maxCores int
	ram      float64

	flops float64
	model ParallelModel

	sleep float64

	file        storage.File
	source      storage.Location
	destination storage.Location

	custom CustomFunc

	parents  []*Action
	children []*Action

	state     ActionState
	history   history
	abandoned failures.Cause
}

// Name returns the name of the action, unique within its job.
func (a *Action) Name() string { return a.name }

// Kind returns the kind of work the action performs.
func (a *Action) Kind() ActionKind { return a.kind }

// Job returns the compound job the action belongs to.
func (a *Action) Job() *CompoundJob { return a.job }

// MinCores returns the minimum number of cores the action runs on.
func (a *Action) MinCores() int { return a.minCores }

// MaxCores returns the maximum number of cores the action can use.
func (a *Action) MaxCores() int { return a.maxCores }

// RAM returns the memory the action needs, in bytes.
func (a *Action) RAM() float64 { return a.ram }

// Flops returns the work of a compute action.
func (a *Action) Flops() float64 { return a.flops }

// Model returns the parallel model of a compute action.
func (a *Action) Model() ParallelModel {
	if a.model == nil {
		return DefaultModel
	}
	return a.model
}

// SleepDuration returns the duration of a sleep action.
func (a *Action) SleepDuration() float64 { return a.sleep }

// File returns the file an I/O action operates on.
func (a *Action) File() storage.File { return a.file }

// Source returns the location an I/O action reads from, or deletes at.
func (a *Action) Source() storage.Location { return a.source }

// Destination returns the location an I/O action writes to.
func (a *Action) Destination() storage.Location { return a.destination }

// Custom returns the function of a custom action.
func (a *Action) Custom() CustomFunc { return a.custom }

// Parents returns the actions this action depends on.
func (a *Action) Parents() []*Action { return append([]*Action(nil), a.parents...) }

// Children returns the actions depending on this action.
func (a *Action) Children() []*Action { return append([]*Action(nil), a.children...) }

// State returns the state of the action.
func (a *Action) State() ActionState { return a.state }

// ExecutionHistory returns a copy of every attempt at running the action, oldest first.
func (a *Action) ExecutionHistory() []ExecutionRecord {
	return append([]ExecutionRecord(nil), a.history...)
}

// CurrentAttempt returns the latest attempt, if any.
func (a *Action) CurrentAttempt() (ExecutionRecord, bool) {
	return a.history.current()
}

// StartDate returns the start of the latest attempt, or NotSet.
func (a *Action) StartDate() float64 {
	if r, ok := a.history.current(); ok {
		return r.Start
	}
	return NotSet
}

// EndDate returns the end of the latest attempt, or NotSet.
func (a *Action) EndDate() float64 {
	if r, ok := a.history.current(); ok {
		return r.End
	}
	return NotSet
}

// FailureCause returns the cause recorded on the latest attempt, or the reason the action was
// abandoned.
func (a *Action) FailureCause() failures.Cause {
	if a.abandoned != nil {
		return a.abandoned
	}
	if r, ok := a.history.current(); ok {
		return r.FailureCause
	}
	return nil
}

// dependenciesCompleted returns true if every parent has completed.
func (a *Action) dependenciesCompleted() bool {
	for _, p := range a.parents {
		if p.state != ActionCompleted {
			return false
		}
	}
	return true
}

// refreshReadiness moves a NOT_READY action to READY once its parents completed.
func (a *Action) refreshReadiness() {
	if a.state == NotReady && a.dependenciesCompleted() {
		a.state = Ready
	}
}

// StartAttempt appends a new execution record and moves the action to RUNNING. The action must
// be READY.
func (a *Action) StartAttempt(r ExecutionRecord) {
	check.Panic(check.True(a.state == Ready, "action %s is %s, not READY", a.name, a.state))
	a.history = a.history.withAttempt(r)
	a.state = ActionRunning
}

// Complete ends the current attempt successfully and readies the children that can now run.
// It returns the children that became READY.
func (a *Action) Complete(date float64) []*Action {
	a.history = a.history.withCurrentEnded(date, nil)
	a.state = ActionCompleted
	var ready []*Action
	for _, c := range a.children {
		before := c.state
		c.refreshReadiness()
		if before != Ready && c.state == Ready {
			ready = append(ready, c)
		}
	}
	return ready
}

// FailAttempt ends the current attempt with a cause and moves the action to FAILED.
func (a *Action) FailAttempt(date float64, cause failures.Cause) {
	a.history = a.history.withCurrentEnded(date, cause)
	a.state = ActionFailed
}

// Kill ends the current attempt with a cause and moves the action to KILLED. An action killed
// while waiting to run keeps the cause without a new attempt.
func (a *Action) Kill(date float64, cause failures.Cause) {
	if a.state == ActionRunning {
		a.history = a.history.withCurrentEnded(date, cause)
	} else {
		a.abandoned = cause
	}
	a.state = Killed
}

// Restart ends the current attempt with a cause and returns the action to READY so that a new
// attempt can be made.
func (a *Action) Restart(date float64, cause failures.Cause) {
	a.history = a.history.withCurrentEnded(date, cause)
	a.state = Ready
}

// Abandon fails an action that is not running, without recording an attempt.
func (a *Action) Abandon(cause failures.Cause) {
	if a.state.Terminal() || a.state == ActionRunning {
		return
	}
	a.abandoned = cause
	a.state = ActionFailed
}
