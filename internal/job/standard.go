package job

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/determined-ai/schedsim/internal/failures"
	"github.com/determined-ai/schedsim/internal/storage"
)

// Task is a flop-bound unit of work in a standard job.
type Task struct {
	Name     string
	Flops    float64
	MinCores int
	MaxCores int
	RAM      float64
	Model    ParallelModel

	action *Action
}

// State mirrors the state of the action running the task.
func (t *Task) State() ActionState {
	if t.action == nil {
		return NotReady
	}
	return t.action.State()
}

// Action returns the action running the task.
func (t *Task) Action() *Action {
	return t.action
}

// ExecutionHistory returns the attempts at running the task.
func (t *Task) ExecutionHistory() []ExecutionRecord {
	if t.action == nil {
		return nil
	}
	return t.action.ExecutionHistory()
}

// FileCopy copies a file between two locations.
type FileCopy struct {
	File storage.File
	From storage.Location
	To   storage.Location
}

// FileDelete deletes a file at a location.
type FileDelete struct {
	File storage.File
	At   storage.Location
}

// StandardJobSpec describes a standard job.
type StandardJobSpec struct {
	Tasks       []*Task
	PreCopies   []FileCopy
	PostCopies  []FileCopy
	PostDeletes []FileDelete
}

// StandardJob runs a set of independent tasks between optional file staging operations. It is
// executed through an underlying compound job.
type StandardJob struct {
	base
	tasks    []*Task
	compound *CompoundJob
}

// NewStandardJob validates the spec and builds the job.
func NewStandardJob(name string, spec StandardJobSpec) (*StandardJob, error) {
	var merr *multierror.Error
	if len(spec.Tasks) == 0 {
		merr = multierror.Append(merr, errors.Errorf("at least one task is required"))
	}
	for i, t := range spec.Tasks {
		if t == nil {
			merr = multierror.Append(merr, errors.Errorf("task %d is nil", i))
			continue
		}
		if t.action != nil {
			merr = multierror.Append(merr, errors.Errorf("task %s already belongs to a job", t.Name))
		}
	}
	for _, c := range append(append([]FileCopy(nil), spec.PreCopies...), spec.PostCopies...) {
		if c.From.Service == nil || c.To.Service == nil {
			merr = multierror.Append(merr, errors.Errorf("copy of %s needs two locations", c.File.Name))
		} else if c.From.Equal(c.To) {
			merr = multierror.Append(merr,
				errors.Errorf("copy of %s has identical source and destination", c.File.Name))
		}
	}
	for _, d := range spec.PostDeletes {
		if d.At.Service == nil {
			merr = multierror.Append(merr, errors.Errorf("delete of %s needs a location", d.File.Name))
		}
	}
	if err := merr.ErrorOrNil(); err != nil {
		return nil, failures.InvalidArgument("standard job %s: %v", name, err)
	}

	compound, err := NewCompoundJob(name)
	if err != nil {
		return nil, err
	}
	if err := expand(compound, spec); err != nil {
		return nil, err
	}
	j := &StandardJob{base: newBase(name), tasks: append([]*Task(nil), spec.Tasks...)}
	compound.owner = j
	j.compound = compound
	return j, nil
}

func expand(compound *CompoundJob, spec StandardJobSpec) error {
	var pre, computes, post []*Action
	for i, c := range spec.PreCopies {
		a, err := compound.AddFileCopyAction(fmt.Sprintf("pre-copy-%d", i), c.File, c.From, c.To)
		if err != nil {
			return err
		}
		pre = append(pre, a)
	}
	for _, t := range spec.Tasks {
		a, err := compound.AddComputeAction(t.Name, t.Flops, t.RAM, t.MinCores, t.MaxCores, t.Model)
		if err != nil {
			return err
		}
		if err := dependOnAll(compound, pre, a); err != nil {
			return err
		}
		computes = append(computes, a)
	}
	for i, c := range spec.PostCopies {
		a, err := compound.AddFileCopyAction(fmt.Sprintf("post-copy-%d", i), c.File, c.From, c.To)
		if err != nil {
			return err
		}
		if err := dependOnAll(compound, computes, a); err != nil {
			return err
		}
		post = append(post, a)
	}
	deleteAfter := post
	if len(deleteAfter) == 0 {
		deleteAfter = computes
	}
	for i, d := range spec.PostDeletes {
		a, err := compound.AddFileDeleteAction(fmt.Sprintf("post-delete-%d", i), d.File, d.At)
		if err != nil {
			return err
		}
		if err := dependOnAll(compound, deleteAfter, a); err != nil {
			return err
		}
	}
	for i, t := range spec.Tasks {
		t.action = computes[i]
	}
	return nil
}

func dependOnAll(compound *CompoundJob, parents []*Action, child *Action) error {
	for _, p := range parents {
		if err := compound.AddDependency(p, child); err != nil {
			return err
		}
	}
	return nil
}

// Kind implements Job.
func (j *StandardJob) Kind() Kind { return StandardKind }

// Tasks returns the tasks of the job.
func (j *StandardJob) Tasks() []*Task {
	return append([]*Task(nil), j.tasks...)
}

// Compound returns the compound job executing this job.
func (j *StandardJob) Compound() *CompoundJob {
	return j.compound
}

// MinimumRequiredCores returns the largest minimum core count among the tasks.
func (j *StandardJob) MinimumRequiredCores() int {
	required := 0
	for _, t := range j.tasks {
		if t.MinCores > required {
			required = t.MinCores
		}
	}
	return required
}
