package baremetal

import (
	"fmt"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/determined-ai/schedsim/internal/compute/aes"
	"github.com/determined-ai/schedsim/internal/failures"
	"github.com/determined-ai/schedsim/internal/job"
	"github.com/determined-ai/schedsim/internal/platform"
	"github.com/determined-ai/schedsim/internal/rm/resourcepool"
	"github.com/determined-ai/schedsim/internal/sproto"
	"github.com/determined-ai/schedsim/pkg/actor"
)

type fixture struct {
	system  *actor.System
	handle  *Handle
	pool    *resourcepool.Pool
	events  []string
	control *actor.Ref
}

func newFixture(t *testing.T, config Config, cores int) *fixture {
	f := &fixture{system: actor.NewSystem(t.Name())}
	hosts := []platform.Host{{Name: "h1", Cores: cores, RAM: 1000, Speed: 1}}
	p, err := platform.NewSimple(f.system, hosts, platform.Link{})
	require.NoError(t, err)
	f.pool, err = resourcepool.New("bm", hosts)
	require.NoError(t, err)
	svc := New("bm", f.pool, p, config)
	f.system.MustActorOf(actor.Addr("bm"), svc)
	f.handle = svc.Handle()
	f.control = f.system.MustActorOf(actor.Addr("controller"),
		actor.ActorFunc(func(ctx *actor.Context) error {
			switch msg := ctx.Message().(type) {
			case sproto.JobCompleted:
				f.events = append(f.events, fmt.Sprintf("%v completed %s", msg.Date, msg.Job.Name()))
			case sproto.JobFailed:
				f.events = append(f.events, fmt.Sprintf("%v failed %s: %s", msg.Date, msg.Job.Name(), msg.Cause))
			case sproto.JobTerminated:
				f.events = append(f.events, fmt.Sprintf("%v terminated %s", msg.Date, msg.Job.Name()))
			}
			return nil
		}))
	return f
}

func (f *fixture) submit(j job.Job) error {
	return f.system.Ask(f.handle.Ref(), sproto.SubmitJob{Job: j, Notify: f.control}).Error()
}

func TestStandardJob(t *testing.T) {
	f := newFixture(t, Config{}, 4)
	a := &job.Task{Name: "a", Flops: 100, MinCores: 2, MaxCores: 2}
	b := &job.Task{Name: "b", Flops: 200, MinCores: 2, MaxCores: 2}
	j, err := job.NewStandardJob("std", job.StandardJobSpec{Tasks: []*job.Task{a, b}})
	require.NoError(t, err)

	require.NoError(t, f.submit(j))
	require.Equal(t, job.Running, j.State())
	require.Equal(t, f.handle, j.Service())
	f.system.Run()

	require.Equal(t, []string{"100 completed std"}, f.events)
	require.Equal(t, job.Completed, j.State())
	require.Equal(t, 0.0, j.StartDate())
	require.Equal(t, 100.0, j.EndDate())
	require.Equal(t, 50.0, a.Action().EndDate())
	require.Equal(t, 0, f.pool.Allocations())
}

func TestCompoundJobFollowsDependencies(t *testing.T) {
	f := newFixture(t, Config{}, 4)
	j, err := job.NewCompoundJob("dag")
	require.NoError(t, err)
	first, _ := j.AddSleepAction("first", 10)
	second, _ := j.AddComputeAction("second", 40, 0, 1, 4, nil)
	require.NoError(t, j.AddDependency(first, second))

	require.NoError(t, f.submit(j))
	f.system.Run()

	require.Equal(t, []string{"20 completed dag"}, f.events)
	require.Equal(t, 10.0, second.StartDate())
	r, _ := second.CurrentAttempt()
	require.Equal(t, 4, r.CoresAllocated)
}

func TestFailedActionFailsJob(t *testing.T) {
	f := newFixture(t, Config{}, 4)
	j, err := job.NewCompoundJob("broken")
	require.NoError(t, err)
	slow, _ := j.AddSleepAction("slow", 100)
	bad, _ := j.AddCustomAction("bad", 0, 1, 1, func(string, int, float64) (float64, error) {
		return 0, errors.New("boom")
	})
	after, _ := j.AddSleepAction("after", 1)
	require.NoError(t, j.AddDependency(bad, after))

	require.NoError(t, f.submit(j))
	f.system.Run()

	require.Equal(t, []string{"0 failed broken: computation failed: boom"}, f.events)
	require.Equal(t, job.Failed, j.State())
	require.Equal(t, job.ActionFailed, bad.State())
	require.Equal(t, job.Killed, slow.State())
	require.Equal(t, job.ActionFailed, after.State())
	require.Equal(t, j.FailureCause(), after.FailureCause())
}

func TestSubmissionErrors(t *testing.T) {
	f := newFixture(t, Config{}, 4)

	require.ErrorIs(t, f.submit(nil), failures.ErrInvalidArgument)
	require.ErrorIs(t, f.submit(job.NewPilotJob("pilot")), failures.ErrInvalidArgument)
	require.False(t, f.handle.Supports(job.PilotKind))

	empty, err := job.NewCompoundJob("empty")
	require.NoError(t, err)
	require.ErrorIs(t, f.submit(empty), failures.ErrInvalidArgument)

	big, err := job.NewStandardJob("big", job.StandardJobSpec{Tasks: []*job.Task{
		{Name: "t", Flops: 1, MinCores: 8, MaxCores: 8},
	}})
	require.NoError(t, err)
	require.ErrorIs(t, f.submit(big), failures.ErrNotEnoughResources)
	require.Equal(t, job.NotSubmitted, big.State())

	ok, err := job.NewCompoundJob("ok")
	require.NoError(t, err)
	_, err = ok.AddSleepAction("s", 1)
	require.NoError(t, err)
	require.NoError(t, f.submit(ok))
	require.ErrorIs(t, f.submit(ok), failures.ErrInvalidArgument)
}

func TestIdleAdmission(t *testing.T) {
	f := newFixture(t, Config{IdleAdmission: true}, 4)
	hog, err := job.NewCompoundJob("hog")
	require.NoError(t, err)
	_, err = hog.AddComputeAction("all", 400, 0, 4, 4, nil)
	require.NoError(t, err)
	require.NoError(t, f.submit(hog))

	late, err := job.NewCompoundJob("late")
	require.NoError(t, err)
	_, err = late.AddSleepAction("s", 1)
	require.NoError(t, err)
	require.ErrorIs(t, f.submit(late), failures.ErrNotEnoughResources)
}

func TestTerminateJob(t *testing.T) {
	f := newFixture(t, Config{Actions: aes.DefaultConfig()}, 4)
	j, err := job.NewCompoundJob("j")
	require.NoError(t, err)
	s, _ := j.AddSleepAction("s", 100)

	require.NoError(t, f.submit(j))
	f.system.Advance(5)
	require.NoError(t, f.system.Ask(f.handle.Ref(), sproto.TerminateJob{Job: j}).Error())
	require.Equal(t, job.Terminated, j.State())
	require.Equal(t, job.Killed, s.State())
	require.Equal(t, failures.JobKilled{Job: "j"}, s.FailureCause())

	err = f.system.Ask(f.handle.Ref(), sproto.TerminateJob{Job: j}).Error()
	require.ErrorIs(t, err, failures.ErrNotAllowed)
	f.system.Run()
	require.Equal(t, []string{"5 terminated j"}, f.events)
	require.Equal(t, 0, f.pool.Allocations())
}

func TestStopFailsRunningJobs(t *testing.T) {
	f := newFixture(t, Config{}, 4)
	var jobs []*job.CompoundJob
	for _, name := range []string{"x", "y"} {
		j, err := job.NewCompoundJob(name)
		require.NoError(t, err)
		_, err = j.AddSleepAction("s", 100)
		require.NoError(t, err)
		require.NoError(t, f.submit(j))
		jobs = append(jobs, j)
	}

	f.system.Advance(60)
	f.system.Tell(f.handle.Ref(), sproto.Stop{Cause: failures.JobTimeout{Job: "pilot"}})
	f.system.Run()

	require.Equal(t, []string{
		"60 failed x: job pilot has timed out",
		"60 failed y: job pilot has timed out",
	}, f.events)
	for _, j := range jobs {
		require.Equal(t, failures.JobTimeout{Job: "pilot"}, j.FailureCause())
	}
	require.True(t, f.handle.Ref().Stopped())
}
