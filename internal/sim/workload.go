package sim

import (
	"os"

	"github.com/ghodss/yaml"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/determined-ai/schedsim/internal/job"
	"github.com/determined-ai/schedsim/internal/jobmanager"
	"github.com/determined-ai/schedsim/internal/platform"
	"github.com/determined-ai/schedsim/pkg/check"
)

// Job kinds of a workload.
const (
	StandardJob = "standard"
	CompoundJob = "compound"
	PilotJob    = "pilot"
)

// ModelSpec selects the parallel model of a computation. Efficiency selects a constant
// efficiency model and Alpha an Amdahl model; perfect parallelism is used when both are unset.
type ModelSpec struct {
	Efficiency *float64 `json:"efficiency"`
	Alpha      *float64 `json:"alpha"`
}

func (m *ModelSpec) build() job.ParallelModel {
	switch {
	case m == nil:
		return job.DefaultModel
	case m.Alpha != nil:
		return job.Amdahl{Alpha: *m.Alpha}
	case m.Efficiency != nil:
		return job.ConstantEfficiency{Efficiency: *m.Efficiency}
	default:
		return job.DefaultModel
	}
}

// TaskSpec describes a computation. MinCores defaults to one and MaxCores to MinCores.
type TaskSpec struct {
	Name     string         `json:"name"`
	Flops    float64        `json:"flops"`
	MinCores int            `json:"min_cores"`
	MaxCores int            `json:"max_cores"`
	RAM      platform.Bytes `json:"ram"`
	Model    *ModelSpec     `json:"model"`
}

func (t TaskSpec) cores() (int, int) {
	minCores, maxCores := t.MinCores, t.MaxCores
	if minCores == 0 {
		minCores = 1
	}
	if maxCores == 0 {
		maxCores = minCores
	}
	return minCores, maxCores
}

// ActionSpec describes an action of a compound job: a computation, or a sleep when Sleep is
// set. After names the actions it depends on.
type ActionSpec struct {
	TaskSpec
	Sleep *float64 `json:"sleep"`
	After []string `json:"after"`
}

// JobSpec describes a job of a workload. A job targets either a named service or the compute
// service of a pilot job of the same workload, in which case it is submitted once the pilot
// started. Args are the service-specific arguments, such as the batch "-N", "-c" and "-t".
type JobSpec struct {
	Name        string            `json:"name"`
	Kind        string            `json:"kind"`
	Service     string            `json:"service"`
	Pilot       string            `json:"pilot"`
	SubmitAt    decimal.Decimal   `json:"submit_at"`
	TerminateAt *decimal.Decimal  `json:"terminate_at"`
	Args        map[string]string `json:"args"`
	Tasks       []TaskSpec        `json:"tasks"`
	Actions     []ActionSpec      `json:"actions"`
}

// Validate implements the check.Validatable interface.
func (s JobSpec) Validate() []error {
	errs := []error{
		check.Contains(s.Kind, []interface{}{StandardJob, CompoundJob, PilotJob},
			"invalid kind for job %s", s.Name),
		check.True((s.Service == "") != (s.Pilot == ""),
			"job %s needs exactly one of service and pilot", s.Name),
		check.False(s.SubmitAt.IsNegative(), "job %s is submitted at a negative date", s.Name),
	}
	if s.TerminateAt != nil {
		errs = append(errs, check.False(s.TerminateAt.LessThan(s.SubmitAt),
			"job %s is terminated before its submission", s.Name))
	}
	switch s.Kind {
	case StandardJob:
		errs = append(errs, check.GreaterThan(float64(len(s.Tasks)), 0,
			"standard job %s needs tasks", s.Name))
	case CompoundJob:
		errs = append(errs, check.GreaterThan(float64(len(s.Actions)), 0,
			"compound job %s needs actions", s.Name))
	}
	return errs
}

func date(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

func (s JobSpec) build(m *jobmanager.JobManager) (job.Job, error) {
	switch s.Kind {
	case StandardJob:
		var tasks []*job.Task
		for _, t := range s.Tasks {
			minCores, maxCores := t.cores()
			tasks = append(tasks, &job.Task{
				Name: t.Name, Flops: t.Flops, MinCores: minCores, MaxCores: maxCores,
				RAM: float64(t.RAM), Model: t.Model.build(),
			})
		}
		return m.CreateStandardJob(s.Name, job.StandardJobSpec{Tasks: tasks})
	case CompoundJob:
		j, err := m.CreateCompoundJob(s.Name)
		if err != nil {
			return nil, err
		}
		for _, a := range s.Actions {
			if a.Sleep != nil {
				_, err = j.AddSleepAction(a.Name, *a.Sleep)
			} else {
				minCores, maxCores := a.cores()
				_, err = j.AddComputeAction(
					a.Name, a.Flops, float64(a.RAM), minCores, maxCores, a.Model.build())
			}
			if err != nil {
				return nil, err
			}
		}
		for _, a := range s.Actions {
			for _, parent := range a.After {
				p := j.Action(parent)
				if p == nil {
					return nil, errors.Errorf("action %s of job %s depends on unknown action %s",
						a.Name, s.Name, parent)
				}
				if err := j.AddDependency(p, j.Action(a.Name)); err != nil {
					return nil, err
				}
			}
		}
		return j, nil
	case PilotJob:
		return m.CreatePilotJob(s.Name), nil
	default:
		return nil, errors.Errorf("invalid kind %q for job %s", s.Kind, s.Name)
	}
}

// Workload is a list of jobs replayed against the services of a simulation.
type Workload struct {
	Jobs []JobSpec `json:"jobs"`
}

// Validate implements the check.Validatable interface.
func (w Workload) Validate() []error {
	var errs []error
	pilots := make(map[string]bool)
	names := make(map[string]bool)
	for _, s := range w.Jobs {
		if s.Name == "" {
			continue
		}
		errs = append(errs, check.False(names[s.Name], "duplicate job name %s", s.Name))
		names[s.Name] = true
		if s.Kind == PilotJob {
			pilots[s.Name] = true
		}
	}
	for _, s := range w.Jobs {
		if s.Pilot != "" {
			errs = append(errs, check.True(pilots[s.Pilot],
				"job %s targets unknown pilot job %s", s.Name, s.Pilot))
		}
	}
	return errs
}

// ParseWorkload parses and validates a workload.
func ParseWorkload(raw []byte) (*Workload, error) {
	var w Workload
	if err := yaml.Unmarshal(raw, &w, yaml.DisallowUnknownFields); err != nil {
		return nil, errors.Wrap(err, "parsing workload")
	}
	if err := check.Validate(w); err != nil {
		return nil, err
	}
	return &w, nil
}

// LoadWorkload reads a workload file.
func LoadWorkload(path string) (*Workload, error) {
	raw, err := os.ReadFile(path) // #nosec G304
	if err != nil {
		return nil, errors.Wrapf(err, "reading workload file %s", path)
	}
	return ParseWorkload(raw)
}
