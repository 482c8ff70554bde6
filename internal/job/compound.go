package job

import (
	"github.com/determined-ai/schedsim/internal/failures"
	"github.com/determined-ai/schedsim/internal/storage"
)

// CompoundJob is a named set of actions linked by dependencies within the job.
type CompoundJob struct {
	base
	actions []*Action
	byName  map[string]*Action
	owner   Job
}

// NewCompoundJob returns an empty compound job.
func NewCompoundJob(name string) (*CompoundJob, error) {
	if name == "" {
		return nil, failures.InvalidArgument("a compound job needs a name")
	}
	return &CompoundJob{base: newBase(name), byName: make(map[string]*Action)}, nil
}

// Kind implements Job.
func (j *CompoundJob) Kind() Kind { return CompoundKind }

// Owner returns the job the controller submitted: the standard job this compound job implements,
// or the compound job itself.
func (j *CompoundJob) Owner() Job {
	if j.owner != nil {
		return j.owner
	}
	return j
}

// Actions returns the actions in the order they were added.
func (j *CompoundJob) Actions() []*Action {
	return append([]*Action(nil), j.actions...)
}

// Action returns the action with the given name.
func (j *CompoundJob) Action(name string) *Action {
	return j.byName[name]
}

// ReadyActions returns the actions that are READY, in the order they were added.
func (j *CompoundJob) ReadyActions() []*Action {
	var ready []*Action
	for _, a := range j.actions {
		if a.state == Ready {
			ready = append(ready, a)
		}
	}
	return ready
}

// Finished returns true when every action is terminal.
func (j *CompoundJob) Finished() bool {
	for _, a := range j.actions {
		if !a.state.Terminal() {
			return false
		}
	}
	return true
}

// Succeeded returns true when every action completed.
func (j *CompoundJob) Succeeded() bool {
	for _, a := range j.actions {
		if a.state != ActionCompleted {
			return false
		}
	}
	return true
}

func (j *CompoundJob) checkMutable() error {
	if j.submitted {
		return failures.InvalidArgument("job %s has already been submitted", j.name)
	}
	return nil
}

func (j *CompoundJob) add(a *Action) (*Action, error) {
	if err := j.checkMutable(); err != nil {
		return nil, err
	}
	if a.name == "" {
		return nil, failures.InvalidArgument("actions need a name")
	}
	if _, ok := j.byName[a.name]; ok {
		return nil, failures.InvalidArgument("job %s already has an action named %s", j.name, a.name)
	}
	if a.minCores < 1 || a.maxCores < a.minCores {
		return nil, failures.InvalidArgument("action %s: invalid core range [%d, %d]",
			a.name, a.minCores, a.maxCores)
	}
	if a.ram < 0 {
		return nil, failures.InvalidArgument("action %s: negative RAM", a.name)
	}
	a.job = j
	a.state = Ready
	j.actions = append(j.actions, a)
	j.byName[a.name] = a
	return a, nil
}

// AddComputeAction adds an action computing flops on between minCores and maxCores cores.
func (j *CompoundJob) AddComputeAction(
	name string, flops, ram float64, minCores, maxCores int, model ParallelModel,
) (*Action, error) {
	if flops < 0 {
		return nil, failures.InvalidArgument("action %s: negative flops", name)
	}
	if err := validateModel(model); err != nil {
		return nil, failures.InvalidArgument("action %s: %s", name, err)
	}
	return j.add(&Action{
		name: name, kind: ComputeAction,
		flops: flops, ram: ram, minCores: minCores, maxCores: maxCores, model: model,
	})
}

// AddSleepAction adds an action that occupies one core for a fixed duration.
func (j *CompoundJob) AddSleepAction(name string, duration float64) (*Action, error) {
	if duration < 0 {
		return nil, failures.InvalidArgument("action %s: negative sleep", name)
	}
	return j.add(&Action{name: name, kind: SleepAction, sleep: duration, minCores: 1, maxCores: 1})
}

// AddFileReadAction adds an action reading a file from a location to the execution host.
func (j *CompoundJob) AddFileReadAction(
	name string, file storage.File, from storage.Location,
) (*Action, error) {
	if from.Service == nil {
		return nil, failures.InvalidArgument("action %s: read location needs a storage service", name)
	}
	return j.add(&Action{name: name, kind: FileReadAction, file: file, source: from,
		minCores: 1, maxCores: 1})
}

// AddFileWriteAction adds an action writing a file from the execution host to a location.
func (j *CompoundJob) AddFileWriteAction(
	name string, file storage.File, to storage.Location,
) (*Action, error) {
	if to.Service == nil {
		return nil, failures.InvalidArgument("action %s: write location needs a storage service", name)
	}
	return j.add(&Action{name: name, kind: FileWriteAction, file: file, destination: to,
		minCores: 1, maxCores: 1})
}

// AddFileCopyAction adds an action copying a file between two locations.
func (j *CompoundJob) AddFileCopyAction(
	name string, file storage.File, from, to storage.Location,
) (*Action, error) {
	if from.Service == nil || to.Service == nil {
		return nil, failures.InvalidArgument("action %s: copy locations need storage services", name)
	}
	if from.Equal(to) {
		return nil, failures.InvalidArgument("action %s: cannot copy %s onto itself at %s",
			name, file.Name, from)
	}
	return j.add(&Action{name: name, kind: FileCopyAction, file: file, source: from,
		destination: to, minCores: 1, maxCores: 1})
}

// AddFileDeleteAction adds an action deleting a file.
func (j *CompoundJob) AddFileDeleteAction(
	name string, file storage.File, at storage.Location,
) (*Action, error) {
	if at.Service == nil {
		return nil, failures.InvalidArgument("action %s: delete location needs a storage service", name)
	}
	return j.add(&Action{name: name, kind: FileDeleteAction, file: file, source: at,
		minCores: 1, maxCores: 1})
}

// AddCustomAction adds an action running a user function on its allocation.
func (j *CompoundJob) AddCustomAction(
	name string, ram float64, minCores, maxCores int, fn CustomFunc,
) (*Action, error) {
	if fn == nil {
		return nil, failures.InvalidArgument("action %s: nil custom function", name)
	}
	return j.add(&Action{name: name, kind: CustomAction, ram: ram, minCores: minCores,
		maxCores: maxCores, custom: fn})
}

// AddDependency makes child wait for parent to complete. Both actions must belong to this job
// and the dependency must not close a cycle.
func (j *CompoundJob) AddDependency(parent, child *Action) error {
	if err := j.checkMutable(); err != nil {
		return err
	}
	if parent == nil || child == nil {
		return failures.InvalidArgument("dependencies need two actions")
	}
	if parent.job != j || child.job != j {
		return failures.InvalidArgument("dependency %s -> %s crosses job boundaries",
			parent.name, child.name)
	}
	if parent == child || child.reaches(parent) {
		return failures.InvalidArgument("dependency %s -> %s would create a cycle",
			parent.name, child.name)
	}
	for _, p := range child.parents {
		if p == parent {
			return nil
		}
	}
	parent.children = append(parent.children, child)
	child.parents = append(child.parents, parent)
	if child.state == Ready && parent.state != ActionCompleted {
		child.state = NotReady
	}
	return nil
}

func (a *Action) reaches(target *Action) bool {
	for _, c := range a.children {
		if c == target || c.reaches(target) {
			return true
		}
	}
	return false
}

// AbandonPending fails every action that has not started, with the cause.
func (j *CompoundJob) AbandonPending(cause failures.Cause) {
	for _, a := range j.actions {
		a.Abandon(cause)
	}
}
