// Package baremetal implements a compute service that runs standard and compound jobs directly
// on the hosts of a resource pool, starting every action as soon as it is READY and fits.
package baremetal

import (
	"golang.org/x/exp/slices"

	"github.com/determined-ai/schedsim/internal/compute/aes"
	"github.com/determined-ai/schedsim/internal/failures"
	"github.com/determined-ai/schedsim/internal/job"
	"github.com/determined-ai/schedsim/internal/platform"
	"github.com/determined-ai/schedsim/internal/prom"
	"github.com/determined-ai/schedsim/internal/rm/resourcepool"
	"github.com/determined-ai/schedsim/internal/sproto"
	"github.com/determined-ai/schedsim/pkg/actor"
)

// Config tunes a bare-metal service.
type Config struct {
	Actions aes.Config `json:"actions"`
	// IdleAdmission refuses jobs with an action that does not fit the pool's idle resources at
	// submission time, instead of its total capacity.
	IdleAdmission bool `json:"idle_admission"`
}

// Handle is the job.Service view of a started bare-metal service.
type Handle struct {
	name string
	ref  *actor.Ref
}

// NewHandle returns a handle on a bare-metal service actor.
func NewHandle(name string, ref *actor.Ref) *Handle {
	return &Handle{name: name, ref: ref}
}

// Name implements job.Service.
func (h *Handle) Name() string { return h.name }

// Ref implements job.Service.
func (h *Handle) Ref() *actor.Ref { return h.ref }

// Supports implements job.Service. Pilot jobs need a batch scheduler.
func (h *Handle) Supports(kind job.Kind) bool {
	return kind == job.StandardKind || kind == job.CompoundKind
}

type jobRecord struct {
	job       job.Job
	compound  *job.CompoundJob
	notify    *actor.Ref
	submitted map[*job.Action]bool
}

// Service is the bare-metal compute service actor.
type Service struct {
	name     string
	config   Config
	pool     *resourcepool.Pool
	platform platform.Platform

	handle   *Handle
	aes      *actor.Ref
	jobs     []*jobRecord
	byAction map[*job.Action]*jobRecord
}

// New returns a bare-metal service over the pool. Its handle is available once the actor is
// started.
func New(name string, pool *resourcepool.Pool, p platform.Platform, config Config) *Service {
	return &Service{
		name:     name,
		config:   config,
		pool:     pool,
		platform: p,
		byAction: make(map[*job.Action]*jobRecord),
	}
}

// Handle returns the job.Service of the started actor.
func (s *Service) Handle() *Handle {
	return s.handle
}

// Receive implements the actor.Actor interface.
func (s *Service) Receive(ctx *actor.Context) error {
	switch msg := ctx.Message().(type) {
	case actor.PreStart:
		ctx.AddLabel("service", s.name)
		s.handle = NewHandle(s.name, ctx.Self())
		s.aes = ctx.MustActorOf("aes", aes.New(s.pool, s.platform, s.config.Actions))

	case sproto.SubmitJob:
		ctx.RespondCheckError(nil, s.accept(ctx, msg.Job, msg.Notify, true))

	case sproto.AdoptJob:
		ctx.RespondCheckError(nil, s.accept(ctx, msg.Job, msg.Notify, false))

	case sproto.TerminateJob:
		ctx.RespondCheckError(nil, s.terminate(ctx, msg.Job))

	case sproto.ActionDone:
		s.actionDone(ctx, msg.Action)

	case sproto.GetResourceInfo:
		ctx.Respond(aes.ResourceInfo(s.pool))

	case sproto.Stop:
		ctx.Log().Infof("stopping: %s", msg.Cause)
		s.failAll(ctx, msg.Cause)
		ctx.Self().Stop()

	case actor.ChildFailed:
		ctx.Log().WithError(msg.Error).Error("action execution service crashed")
		s.failAll(ctx, failures.ServiceIsDown{Service: s.name})
		ctx.Self().Stop()

	case actor.ChildStopped:

	case actor.PostStop:
		s.failAll(ctx, failures.ServiceIsDown{Service: s.name})

	default:
		return actor.ErrUnexpectedMessage(ctx)
	}
	return nil
}

func (s *Service) accept(ctx *actor.Context, j job.Job, notify *actor.Ref, submit bool) error {
	if j == nil {
		return failures.InvalidArgument("nil job submitted to %s", s.name)
	}
	var compound *job.CompoundJob
	switch typed := j.(type) {
	case *job.StandardJob:
		compound = typed.Compound()
	case *job.CompoundJob:
		compound = typed
	default:
		return failures.InvalidArgument("%s cannot run %s job %s", s.name, j.Kind(), j.Name())
	}
	if submit && j.Submitted() {
		return failures.InvalidArgument("job %s has already been submitted", j.Name())
	}
	if len(compound.Actions()) == 0 {
		return failures.InvalidArgument("job %s has no work", j.Name())
	}
	for _, a := range compound.Actions() {
		amount := resourcepool.Amount{Cores: a.MinCores(), RAM: a.RAM()}
		if !s.admits(amount) {
			return failures.NotEnoughResources("%s cannot run action %s of job %s (%d cores, %v bytes)",
				s.name, a.Name(), j.Name(), amount.Cores, amount.RAM)
		}
	}

	if submit {
		j.MarkSubmitted(s.handle, ctx.Now())
		prom.JobsSubmitted.WithLabelValues(s.name, string(j.Kind())).Inc()
	}
	j.Transition(job.Running, ctx.Now())
	if job.Job(compound) != j {
		compound.MarkSubmitted(s.handle, ctx.Now())
		compound.Transition(job.Running, ctx.Now())
	}

	rec := &jobRecord{job: j, compound: compound, notify: notify, submitted: make(map[*job.Action]bool)}
	s.jobs = append(s.jobs, rec)
	for _, a := range compound.Actions() {
		s.byAction[a] = rec
	}
	ctx.Log().Infof("running job %s", j.Name())
	s.submitReady(ctx, rec)
	return nil
}

func (s *Service) admits(amount resourcepool.Amount) bool {
	if !s.config.IdleAdmission {
		return s.pool.CanEverFit(amount)
	}
	for _, h := range s.pool.Hosts() {
		if s.pool.IsHostOn(h) && amount.Fits(s.pool.Available(h)) {
			return true
		}
	}
	return false
}

func (s *Service) submitReady(ctx *actor.Context, rec *jobRecord) {
	for _, a := range rec.compound.ReadyActions() {
		if rec.submitted[a] {
			continue
		}
		rec.submitted[a] = true
		resp := ctx.Ask(s.aes, sproto.SubmitAction{Action: a})
		switch {
		case resp.Empty():
			s.failJob(ctx, rec, failures.ServiceIsDown{Service: s.name})
			return
		case resp.Error() != nil:
			s.failJob(ctx, rec, failures.CauseOf(resp.Error()))
			return
		}
	}
}

func (s *Service) actionDone(ctx *actor.Context, a *job.Action) {
	rec := s.byAction[a]
	if rec == nil {
		return
	}
	switch a.State() {
	case job.ActionCompleted:
		if rec.compound.Succeeded() {
			s.finish(ctx, rec)
			rec.job.Transition(job.Completed, ctx.Now())
			rec.compound.Transition(job.Completed, ctx.Now())
			ctx.Log().Infof("job %s completed", rec.job.Name())
			s.notify(ctx, rec, sproto.JobCompleted{Job: rec.job, Date: ctx.Now()})
			return
		}
		s.submitReady(ctx, rec)
	case job.ActionFailed:
		s.failJob(ctx, rec, a.FailureCause())
	}
}

// failJob kills the job's remaining work and fails it with the cause. A job already ended by
// the parent service is not reported again.
func (s *Service) failJob(ctx *actor.Context, rec *jobRecord, cause failures.Cause) {
	s.killActions(ctx, rec, cause)
	s.finish(ctx, rec)
	ended := rec.job.State().Terminal()
	rec.job.Fail(cause, ctx.Now())
	rec.compound.Fail(cause, ctx.Now())
	if ended {
		return
	}
	ctx.Log().Infof("job %s failed: %s", rec.job.Name(), cause)
	s.notify(ctx, rec, sproto.JobFailed{Job: rec.job, Cause: rec.job.FailureCause(), Date: ctx.Now()})
}

func (s *Service) terminate(ctx *actor.Context, j job.Job) error {
	i := slices.IndexFunc(s.jobs, func(rec *jobRecord) bool { return rec.job == j })
	if j == nil || i < 0 {
		return failures.NotAllowed("job %v is not running on %s", j, s.name)
	}
	rec := s.jobs[i]
	s.killActions(ctx, rec, failures.JobKilled{Job: j.Name()})
	s.finish(ctx, rec)
	j.Transition(job.Terminated, ctx.Now())
	rec.compound.Transition(job.Terminated, ctx.Now())
	ctx.Log().Infof("job %s terminated", j.Name())
	s.notify(ctx, rec, sproto.JobTerminated{Job: j, Date: ctx.Now()})
	return nil
}

// killActions terminates every submitted action that is still in flight and abandons the rest.
func (s *Service) killActions(ctx *actor.Context, rec *jobRecord, cause failures.Cause) {
	for _, a := range rec.compound.Actions() {
		if rec.submitted[a] && !a.State().Terminal() {
			if resp := ctx.Ask(s.aes, sproto.TerminateAction{Action: a, Cause: cause}); resp.Empty() {
				a.Kill(ctx.Now(), cause)
			}
		}
	}
	rec.compound.AbandonPending(cause)
}

// finish forgets a job.
func (s *Service) finish(ctx *actor.Context, rec *jobRecord) {
	s.jobs = slices.DeleteFunc(s.jobs, func(other *jobRecord) bool { return other == rec })
	for _, a := range rec.compound.Actions() {
		delete(s.byAction, a)
	}
}

func (s *Service) notify(ctx *actor.Context, rec *jobRecord, msg actor.Message) {
	prom.JobsFinished.WithLabelValues(s.name, string(rec.job.State())).Inc()
	if rec.notify != nil {
		ctx.Tell(rec.notify, msg)
	}
}

func (s *Service) failAll(ctx *actor.Context, cause failures.Cause) {
	for len(s.jobs) > 0 {
		s.failJob(ctx, s.jobs[0], cause)
	}
}
