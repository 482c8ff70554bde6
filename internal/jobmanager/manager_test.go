package jobmanager

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gotest.tools/assert"

	"github.com/determined-ai/schedsim/internal/compute/baremetal"
	"github.com/determined-ai/schedsim/internal/compute/batch"
	"github.com/determined-ai/schedsim/internal/failures"
	"github.com/determined-ai/schedsim/internal/job"
	"github.com/determined-ai/schedsim/internal/platform"
	"github.com/determined-ai/schedsim/internal/rm/resourcepool"
	"github.com/determined-ai/schedsim/pkg/actor"
)

type fixture struct {
	system    *actor.System
	manager   *JobManager
	batch     job.Service
	baremetal job.Service
}

func newFixture(t *testing.T) *fixture {
	f := &fixture{system: actor.NewSystem(t.Name())}
	hosts := []platform.Host{
		{Name: "n1", Cores: 4, RAM: 1000, Speed: 1},
		{Name: "n2", Cores: 4, RAM: 1000, Speed: 1},
	}
	p, err := platform.NewSimple(f.system, hosts, platform.Link{})
	require.NoError(t, err)

	sched, err := batch.New("batch", hosts, p, batch.DefaultConfig())
	require.NoError(t, err)
	f.system.MustActorOf(actor.Addr("batch"), sched)
	f.batch = sched.Handle()

	pool, err := resourcepool.New("bm", hosts)
	require.NoError(t, err)
	bm := baremetal.New("bm", pool, p, baremetal.Config{})
	f.system.MustActorOf(actor.Addr("bm"), bm)
	f.baremetal = bm.Handle()

	f.manager = New(f.system, actor.Addr("controller"))
	return f
}

func sleepJob(t *testing.T, m *JobManager, name string, d float64) *job.CompoundJob {
	j, err := m.CreateCompoundJob(name)
	require.NoError(t, err)
	_, err = j.AddSleepAction("sleep", d)
	require.NoError(t, err)
	return j
}

func args(nodes, cores int, walltime float64) map[string]string {
	return batch.Args(job.Request{Nodes: nodes, CoresPerNode: cores, Walltime: walltime})
}

func TestCreateJobs(t *testing.T) {
	f := newFixture(t)

	a, b := f.manager.CreatePilotJob(""), f.manager.CreatePilotJob("")
	assert.Assert(t, a.Name() != "")
	assert.Assert(t, a.Name() != b.Name())
	assert.Equal(t, f.manager.CreatePilotJob("named").Name(), "named")

	j, err := f.manager.CreateStandardJob("", job.StandardJobSpec{})
	require.ErrorIs(t, err, failures.ErrInvalidArgument)
	require.Nil(t, j)

	j, err = f.manager.CreateStandardJob("std", job.StandardJobSpec{Tasks: []*job.Task{
		{Name: "t", Flops: 10, MinCores: 1, MaxCores: 1},
	}})
	require.NoError(t, err)
	assert.Equal(t, j.State(), job.NotSubmitted)
}

func TestSubmitJobErrors(t *testing.T) {
	f := newFixture(t)
	j := sleepJob(t, f.manager, "j", 10)

	require.ErrorIs(t, f.manager.SubmitJob(nil, f.baremetal, nil), failures.ErrInvalidArgument)
	require.ErrorIs(t, f.manager.SubmitJob(j, nil, nil), failures.ErrInvalidArgument)
	require.ErrorIs(t, f.manager.SubmitJob(f.manager.CreatePilotJob("p"), f.baremetal, nil),
		failures.ErrInvalidArgument)
	require.ErrorIs(t, f.manager.SubmitJob(j, f.batch, nil), failures.ErrInvalidArgument)
	require.Equal(t, job.NotSubmitted, j.State())

	require.NoError(t, f.manager.SubmitJob(j, f.baremetal, nil))
	require.ErrorIs(t, f.manager.SubmitJob(j, f.baremetal, nil), failures.ErrInvalidArgument)
	require.ErrorIs(t, f.manager.SubmitJob(j, f.batch, args(1, 1, 60)), failures.ErrInvalidArgument)

	require.ErrorIs(t, f.manager.TerminateJob(nil), failures.ErrInvalidArgument)
	require.ErrorIs(t, f.manager.TerminateJob(sleepJob(t, f.manager, "fresh", 1)),
		failures.ErrNotAllowed)
}

func TestEventsInProductionOrder(t *testing.T) {
	f := newFixture(t)
	m := f.manager

	pilot := m.CreatePilotJob("pilot")
	require.NoError(t, m.SubmitJob(pilot, f.batch, args(1, 4, 100)))
	short := sleepJob(t, m, "short", 10)
	require.NoError(t, m.SubmitJob(short, f.batch, args(1, 2, 60)))
	direct := sleepJob(t, m, "direct", 5)
	require.NoError(t, m.SubmitJob(direct, f.baremetal, nil))

	e, err := m.WaitForNextEvent()
	require.NoError(t, err)
	require.Equal(t, Event{Type: PilotJobStartedEvent, Job: pilot, Date: 0}, e)

	inner := sleepJob(t, m, "inner", 500)
	require.NoError(t, m.SubmitJob(inner, pilot.ComputeService(), nil))

	var got []string
	for {
		e, err := m.WaitForNextEvent()
		if err != nil {
			require.ErrorIs(t, err, ErrNoEvent)
			break
		}
		got = append(got, e.String())
	}
	require.Equal(t, []string{
		"job_completed direct",
		"job_completed short",
		"pilot_job_expired pilot",
		"job_failed inner (job pilot has timed out)",
	}, got)
	require.Equal(t, 0, m.Pending())
}

func TestTerminateJob(t *testing.T) {
	f := newFixture(t)
	m := f.manager
	j := sleepJob(t, m, "j", 100)
	require.NoError(t, m.SubmitJob(j, f.batch, args(2, 4, 200)))

	_, ok := m.WaitForNextEventWithTimeout(30)
	require.False(t, ok)
	require.Equal(t, 30.0, f.system.Now())

	require.NoError(t, m.TerminateJob(j))
	require.Equal(t, job.Terminated, j.State())
	require.ErrorIs(t, m.TerminateJob(j), failures.ErrNotAllowed)

	e, ok := m.WaitForNextEventWithTimeout(1)
	require.True(t, ok)
	require.Equal(t, Event{Type: JobTerminatedEvent, Job: j, Date: 30}, e)
}

func TestOneTerminalEventPerJob(t *testing.T) {
	f := newFixture(t)
	m := f.manager
	jobs := map[string]job.Job{}
	for i, d := range []float64{10, 70, 20, 5} {
		j := sleepJob(t, m, "", d)
		jobs[j.Name()] = j
		svc, a := f.batch, args(1, 1+i%4, 60)
		if i%2 == 1 {
			svc, a = f.baremetal, nil
		}
		require.NoError(t, m.SubmitJob(j, svc, a))
	}

	seen := map[string]int{}
	for {
		e, err := m.WaitForNextEvent()
		if err != nil {
			break
		}
		seen[e.Job.Name()]++
		require.True(t, e.Job.State().Terminal())
	}
	require.Len(t, seen, len(jobs))
	for name := range jobs {
		require.Equal(t, 1, seen[name], name)
	}
}
