package batch

import (
	"github.com/determined-ai/schedsim/internal/failures"
	"github.com/determined-ai/schedsim/internal/job"
	"github.com/determined-ai/schedsim/internal/rm/tasklist"
	"github.com/determined-ai/schedsim/internal/sproto"
	"github.com/determined-ai/schedsim/pkg/actor"
)

// startPilot exposes the service running on a pilot's allocation to the pilot's submitter.
// Jobs submitted to it are admitted against the pilot's nodes only.
func (s *Scheduler) startPilot(ctx *actor.Context, rec *tasklist.Record, svc job.Service) {
	p := rec.Job.(*job.PilotJob)
	p.SetComputeService(svc)
	if rec.Notify != nil {
		ctx.Tell(rec.Notify, sproto.PilotJobStarted{Job: p, Date: ctx.Now()})
	}
}

// expirePilot revokes a pilot whose walltime elapsed: every job still inside fails with a
// timeout and the pilot expires.
func (s *Scheduler) expirePilot(ctx *actor.Context, rec *tasklist.Record, p *job.PilotJob) {
	p.Transition(job.Expired, ctx.Now())
	s.interrupt(ctx, rec, failures.JobTimeout{Job: p.Name()})
	ctx.Log().Infof("pilot job %s expired", p.Name())
	s.notify(ctx, rec, sproto.PilotJobExpired{Job: p, Date: ctx.Now()})
}
