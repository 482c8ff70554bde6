package job

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"gotest.tools/assert"

	"github.com/determined-ai/schedsim/internal/failures"
	"github.com/determined-ai/schedsim/internal/platform"
	"github.com/determined-ai/schedsim/internal/storage"
	"github.com/determined-ai/schedsim/pkg/actor"
)

func TestJobLifecycle(t *testing.T) {
	j := NewPilotJob("pilot")
	assert.Equal(t, j.State(), NotSubmitted)
	assert.Equal(t, j.StartDate(), NotSet)

	j.MarkSubmitted(nil, 1)
	assert.Equal(t, j.State(), Pending)
	assert.Assert(t, j.Submitted())
	assert.Assert(t, j.ComputeService() == nil)

	j.Transition(Running, 5)
	j.Transition(Expired, 65)
	j.Fail(failures.JobKilled{Job: "pilot"}, 70)
	assert.Equal(t, j.State(), Expired)
	assert.Equal(t, j.StartDate(), 5.0)
	assert.Equal(t, j.EndDate(), 65.0)
	assert.Assert(t, j.FailureCause() == nil)
}

func TestCompoundJobDAG(t *testing.T) {
	j, err := NewCompoundJob("dag")
	require.NoError(t, err)
	a, err := j.AddSleepAction("a", 10)
	require.NoError(t, err)
	b, err := j.AddComputeAction("b", 100, 0, 1, 4, Amdahl{Alpha: 0.5})
	require.NoError(t, err)
	c, err := j.AddSleepAction("c", 1)
	require.NoError(t, err)

	require.NoError(t, j.AddDependency(a, b))
	require.NoError(t, j.AddDependency(b, c))
	require.NoError(t, j.AddDependency(a, b))
	require.ErrorIs(t, j.AddDependency(c, a), failures.ErrInvalidArgument)
	require.ErrorIs(t, j.AddDependency(a, a), failures.ErrInvalidArgument)

	require.Equal(t, []*Action{a}, j.ReadyActions())
	require.Equal(t, NotReady, b.State())
	require.Equal(t, []*Action{a}, b.Parents())

	a.StartAttempt(ExecutionRecord{Start: 0, CoresAllocated: 1, ExecutionHost: "h1"})
	require.Equal(t, []*Action{b}, a.Complete(10))
	require.Equal(t, Ready, b.State())
	require.Equal(t, NotReady, c.State())
	require.False(t, j.Finished())

	j.AbandonPending(failures.JobKilled{Job: "dag"})
	require.Equal(t, ActionFailed, b.State())
	require.Equal(t, failures.JobKilled{Job: "dag"}, c.FailureCause())
	require.True(t, j.Finished())
	require.False(t, j.Succeeded())
}

func TestCompoundJobValidation(t *testing.T) {
	_, err := NewCompoundJob("")
	require.ErrorIs(t, err, failures.ErrInvalidArgument)

	j, err := NewCompoundJob("j")
	require.NoError(t, err)
	other, err := NewCompoundJob("other")
	require.NoError(t, err)
	foreign, err := other.AddSleepAction("x", 1)
	require.NoError(t, err)
	mine, err := j.AddSleepAction("x", 1)
	require.NoError(t, err)

	cases := map[string]func() error{
		"duplicate name": func() error { _, err := j.AddSleepAction("x", 1); return err },
		"negative sleep": func() error { _, err := j.AddSleepAction("y", -1); return err },
		"bad cores": func() error {
			_, err := j.AddComputeAction("z", 1, 0, 4, 2, nil)
			return err
		},
		"bad model": func() error {
			_, err := j.AddComputeAction("z", 1, 0, 1, 2, ConstantEfficiency{Efficiency: 2})
			return err
		},
		"nil custom":    func() error { _, err := j.AddCustomAction("z", 0, 1, 1, nil); return err },
		"cross job dep": func() error { return j.AddDependency(foreign, mine) },
		"nil dep":       func() error { return j.AddDependency(nil, mine) },
	}
	for name, f := range cases {
		t.Run(name, func(t *testing.T) {
			require.ErrorIs(t, f(), failures.ErrInvalidArgument)
		})
	}

	j.MarkSubmitted(nil, 0)
	_, err = j.AddSleepAction("late", 1)
	require.ErrorIs(t, err, failures.ErrInvalidArgument)
}

func TestExecutionHistoryIsAppendOnly(t *testing.T) {
	j, err := NewCompoundJob("j")
	require.NoError(t, err)
	a, err := j.AddComputeAction("a", 100, 10, 1, 2, nil)
	require.NoError(t, err)

	first := ExecutionRecord{Start: 0, CoresAllocated: 2, RAMAllocated: 10,
		ExecutionHost: "h1", PhysicalHost: "h1"}
	a.StartAttempt(first)
	snapshot := a.ExecutionHistory()
	a.Restart(3, failures.HostError{Host: "h1"})
	require.Equal(t, NotSet, snapshot[0].End)
	require.Equal(t, Ready, a.State())

	second := ExecutionRecord{Start: 7, CoresAllocated: 2, RAMAllocated: 10,
		ExecutionHost: "h2", PhysicalHost: "h2"}
	a.StartAttempt(second)
	a.Complete(57)

	expected := []ExecutionRecord{
		{Start: 0, End: 3, CoresAllocated: 2, RAMAllocated: 10, ExecutionHost: "h1",
			PhysicalHost: "h1", FailureCause: failures.HostError{Host: "h1"}},
		{Start: 7, End: 57, CoresAllocated: 2, RAMAllocated: 10, ExecutionHost: "h2",
			PhysicalHost: "h2"},
	}
	if diff := cmp.Diff(expected, a.ExecutionHistory()); diff != "" {
		t.Fatalf("unexpected history (-want +got):\n%s", diff)
	}
	require.Equal(t, 7.0, a.StartDate())
	require.Equal(t, 57.0, a.EndDate())
	require.Nil(t, a.FailureCause())
	require.Panics(t, func() { a.StartAttempt(second) })
}

func TestParallelModels(t *testing.T) {
	require.Equal(t, 25.0, DefaultModel.Duration(100, 4, 1))
	require.Equal(t, 50.0, ConstantEfficiency{Efficiency: 0.5}.Duration(100, 4, 1))
	require.Equal(t, 62.5, Amdahl{Alpha: 0.5}.Duration(100, 4, 1))
	custom := CustomModel{PerThreadWork: func(flops float64, cores int) float64 {
		return flops / float64(cores*cores)
	}}
	require.Equal(t, 3.125, custom.Duration(100, 4, 2))
}

func TestStandardJob(t *testing.T) {
	p, err := platform.NewSimple(actor.NewSystem(t.Name()),
		[]platform.Host{{Name: "h1", Cores: 1, Speed: 1}}, platform.Link{})
	require.NoError(t, err)
	ss := storage.NewSimple("ss", "h1", p)
	in := storage.Location{Service: ss, Dir: "/in"}
	out := storage.Location{Service: ss, Dir: "/out"}
	f := storage.File{Name: "f", Size: 1}

	t1 := &Task{Name: "t1", Flops: 10, MinCores: 1, MaxCores: 2}
	t2 := &Task{Name: "t2", Flops: 20, MinCores: 2, MaxCores: 2}
	j, err := NewStandardJob("std", StandardJobSpec{
		Tasks:       []*Task{t1, t2},
		PreCopies:   []FileCopy{{File: f, From: in, To: out}},
		PostDeletes: []FileDelete{{File: f, At: out}},
	})
	require.NoError(t, err)
	require.Equal(t, StandardKind, j.Kind())
	require.Equal(t, 2, j.MinimumRequiredCores())
	require.Equal(t, Job(j), j.Compound().Owner())

	actions := j.Compound().Actions()
	require.Len(t, actions, 4)
	require.Equal(t, []*Action{actions[0]}, j.Compound().ReadyActions())
	require.Equal(t, NotReady, t1.State())
	require.Len(t, actions[3].Parents(), 2)

	_, err = NewStandardJob("reuse", StandardJobSpec{Tasks: []*Task{t1}})
	require.ErrorIs(t, err, failures.ErrInvalidArgument)
}

func TestStandardJobValidation(t *testing.T) {
	p, err := platform.NewSimple(actor.NewSystem(t.Name()),
		[]platform.Host{{Name: "h1", Cores: 1, Speed: 1}}, platform.Link{})
	require.NoError(t, err)
	loc := storage.Location{Service: storage.NewSimple("ss", "h1", p), Dir: "/x"}
	f := storage.File{Name: "f"}

	for name, spec := range map[string]StandardJobSpec{
		"no tasks": {},
		"nil task": {Tasks: []*Task{nil}},
		"self copy": {
			Tasks:     []*Task{{Name: "t", Flops: 1, MinCores: 1, MaxCores: 1}},
			PreCopies: []FileCopy{{File: f, From: loc, To: loc}},
		},
		"bad cores": {Tasks: []*Task{{Name: "t", Flops: 1, MinCores: 0, MaxCores: 1}}},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := NewStandardJob("j", spec)
			require.ErrorIs(t, err, failures.ErrInvalidArgument)
		})
	}
}
