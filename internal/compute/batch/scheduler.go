// Package batch implements a batch scheduler: jobs request whole-node slices of a homogeneous
// cluster for a walltime and wait in a queue until the slices are free.
package batch

import (
	"fmt"

	"github.com/determined-ai/schedsim/internal/compute/aes"
	"github.com/determined-ai/schedsim/internal/compute/baremetal"
	"github.com/determined-ai/schedsim/internal/failures"
	"github.com/determined-ai/schedsim/internal/job"
	"github.com/determined-ai/schedsim/internal/platform"
	"github.com/determined-ai/schedsim/internal/prom"
	"github.com/determined-ai/schedsim/internal/rm/backfill"
	"github.com/determined-ai/schedsim/internal/rm/fitting"
	"github.com/determined-ai/schedsim/internal/rm/resourcepool"
	"github.com/determined-ai/schedsim/internal/rm/tasklist"
	"github.com/determined-ai/schedsim/internal/sproto"
	"github.com/determined-ai/schedsim/pkg/actor"
	"github.com/determined-ai/schedsim/pkg/actor/actors"
	"github.com/determined-ai/schedsim/pkg/check"
	"github.com/determined-ai/schedsim/pkg/logger"
)

// Config tunes a batch scheduler.
type Config struct {
	// Policy selects the hosts of a job. Delegated picks hosts first fit and orders the queue
	// with conservative backfilling; every other policy keeps the queue strictly first come,
	// first served.
	Policy string `json:"policy"`
	// Actions configures the services running the actions of started jobs.
	Actions aes.Config `json:"actions"`
}

// DefaultConfig returns a first fit, first come first served scheduler.
func DefaultConfig() Config {
	return Config{Policy: string(fitting.FirstFit), Actions: aes.DefaultConfig()}
}

// Handle is the job.Service view of a started batch scheduler.
type Handle struct {
	name string
	ref  *actor.Ref
}

// Name implements job.Service.
func (h *Handle) Name() string { return h.name }

// Ref implements job.Service.
func (h *Handle) Ref() *actor.Ref { return h.ref }

// Supports implements job.Service.
func (h *Handle) Supports(kind job.Kind) bool {
	return kind == job.StandardKind || kind == job.CompoundKind || kind == job.PilotKind
}

type (
	walltimeExpired struct {
		id string
	}
	wakeUp struct{}
)

// Scheduler is the batch scheduler actor.
type Scheduler struct {
	name     string
	config   Config
	policy   fitting.Policy
	platform platform.Platform
	node     platform.Host
	nodes    int

	handle   *Handle
	pool     *resourcepool.Pool
	selector *fitting.Selector
	queue    *tasklist.TaskList
	timeline *backfill.Timeline

	wakeup   *actor.Ref
	wakeupAt float64
	started  int
}

// New returns a scheduler over the hosts, which must all have the same cores, RAM and speed.
func New(name string, hosts []platform.Host, p platform.Platform, config Config) (*Scheduler, error) {
	if len(hosts) == 0 {
		return nil, failures.InvalidArgument("batch scheduler %s needs at least one host", name)
	}
	for _, h := range hosts[1:] {
		if !h.SameCapacity(hosts[0]) {
			return nil, failures.InvalidArgument("batch scheduler %s: host %s differs from host %s",
				name, h.Name, hosts[0].Name)
		}
	}
	policy, err := fitting.ParsePolicy(config.Policy)
	if err != nil {
		return nil, err
	}
	pool, err := resourcepool.New(name, hosts)
	if err != nil {
		return nil, err
	}
	s := &Scheduler{
		name:     name,
		config:   config,
		policy:   policy,
		platform: p,
		node:     hosts[0],
		nodes:    len(hosts),
		pool:     pool,
		selector: fitting.NewSelector(policy),
		queue:    tasklist.New(),
	}
	if policy == fitting.Delegated {
		s.timeline = backfill.NewTimeline(len(hosts))
	}
	return s, nil
}

// Handle returns the job.Service of the started actor.
func (s *Scheduler) Handle() *Handle {
	return s.handle
}

// Receive implements the actor.Actor interface.
func (s *Scheduler) Receive(ctx *actor.Context) error {
	switch msg := ctx.Message().(type) {
	case actor.PreStart:
		ctx.AddLabels(logger.Context{"service": s.name, "policy": s.selector.Policy()})
		s.handle = &Handle{name: s.name, ref: ctx.Self()}
		if s.platform != nil {
			s.platform.Subscribe(ctx.Self())
		}

	case sproto.SubmitJob:
		ctx.RespondCheckError(nil, s.submit(ctx, msg))

	case sproto.TerminateJob:
		ctx.RespondCheckError(nil, s.terminate(ctx, msg.Job))

	case sproto.JobCompleted:
		if rec := s.runningIn(ctx.Sender(), msg.Job); rec != nil {
			s.release(ctx, rec)
			s.notify(ctx, rec, sproto.JobCompleted{Job: rec.Job, Date: ctx.Now()})
			s.schedule(ctx)
		}

	case sproto.JobFailed:
		if rec := s.runningIn(ctx.Sender(), msg.Job); rec != nil {
			s.release(ctx, rec)
			s.notify(ctx, rec, sproto.JobFailed{Job: rec.Job, Cause: msg.Cause, Date: ctx.Now()})
			s.schedule(ctx)
		}

	case walltimeExpired:
		if rec, ok := s.queue.Get(msg.id); ok && rec.Running() {
			s.expire(ctx, rec)
			s.schedule(ctx)
		}

	case wakeUp:
		s.wakeup = nil
		s.schedule(ctx)

	case platform.HostStateChanged:
		if s.pool.Has(msg.Host) {
			s.pool.SetHostOn(msg.Host, msg.On)
			s.schedule(ctx)
		}

	case sproto.GetQueue:
		ctx.Respond(s.snapshot())

	case sproto.GetResourceInfo:
		ctx.Respond(aes.ResourceInfo(s.pool))

	case sproto.Stop:
		s.shutdown(ctx, msg.Cause)
		ctx.Self().Stop()

	case actor.ChildFailed:
		for _, rec := range s.queue.Running() {
			if rec.Service == msg.Child {
				ctx.Log().WithError(msg.Error).Errorf("service of job %s crashed", rec.Job.Name())
				s.fail(ctx, rec, failures.ServiceIsDown{Service: msg.Child.Address().Local()})
				s.schedule(ctx)
			}
		}

	case actor.ChildStopped:

	case actor.PostStop:
		s.shutdown(ctx, failures.ServiceIsDown{Service: s.name})
		if s.platform != nil {
			s.platform.Unsubscribe(ctx.Self())
		}

	default:
		return actor.ErrUnexpectedMessage(ctx)
	}
	return nil
}

// ramPerNode is the RAM that comes with cores of a node.
func (s *Scheduler) ramPerNode(cores int) float64 {
	return float64(s.node.RAM) * float64(cores) / float64(s.node.Cores)
}

func compoundOf(j job.Job) *job.CompoundJob {
	switch typed := j.(type) {
	case *job.StandardJob:
		return typed.Compound()
	case *job.CompoundJob:
		return typed
	default:
		return nil
	}
}

func (s *Scheduler) submit(ctx *actor.Context, msg sproto.SubmitJob) error {
	j := msg.Job
	if j == nil {
		return failures.InvalidArgument("nil job submitted to %s", s.name)
	}
	if j.Submitted() {
		return failures.InvalidArgument("job %s has already been submitted", j.Name())
	}
	req, username, err := ParseArgs(msg.Args)
	if err != nil {
		return err
	}
	if req.Nodes > s.nodes || req.CoresPerNode > s.node.Cores {
		return failures.NotEnoughResources("%s has %d nodes of %d cores, job %s asks %d nodes of %d cores",
			s.name, s.nodes, s.node.Cores, j.Name(), req.Nodes, req.CoresPerNode)
	}

	switch typed := j.(type) {
	case *job.PilotJob:
		typed.SetRequest(req)
	case *job.StandardJob, *job.CompoundJob:
		compound := compoundOf(j)
		if len(compound.Actions()) == 0 {
			return failures.InvalidArgument("job %s has no work", j.Name())
		}
		slice := resourcepool.Amount{Cores: req.CoresPerNode, RAM: s.ramPerNode(req.CoresPerNode)}
		for _, a := range compound.Actions() {
			if !(resourcepool.Amount{Cores: a.MinCores(), RAM: a.RAM()}).Fits(slice) {
				return failures.NotEnoughResources(
					"action %s of job %s does not fit %d cores and %v bytes per node",
					a.Name(), j.Name(), slice.Cores, slice.RAM)
			}
		}
	default:
		return failures.InvalidArgument("%s cannot run %s job %s", s.name, j.Kind(), j.Name())
	}

	if s.timeline != nil {
		start, err := s.timeline.EarliestStart(ctx.Now(), req.Nodes, req.Walltime)
		if err != nil {
			return failures.NotEnoughResources("%v", err)
		}
		if err := s.timeline.Add(j.ID(), backfill.Reservation{
			Nodes: req.Nodes, Start: start, End: start + req.Walltime,
		}); err != nil {
			return failures.NotEnoughResources("%v", err)
		}
	}
	j.MarkSubmitted(s.handle, ctx.Now())
	s.queue.Add(&tasklist.Record{
		Job:        j,
		Request:    req,
		Username:   username,
		Notify:     msg.Notify,
		SubmitDate: ctx.Now(),
		StartDate:  job.NotSet,
	})
	prom.JobsSubmitted.WithLabelValues(s.name, string(j.Kind())).Inc()
	ctx.Log().Infof("queued %s job %s: %d nodes x %d cores for %vs",
		j.Kind(), j.Name(), req.Nodes, req.CoresPerNode, req.Walltime)
	s.schedule(ctx)
	return nil
}

// schedule starts the pending jobs allowed to start now.
func (s *Scheduler) schedule(ctx *actor.Context) {
	if s.timeline == nil {
		for _, rec := range s.queue.Pending() {
			if !s.start(ctx, rec) {
				return
			}
		}
		return
	}

	var waiting []string
	for _, rec := range s.queue.Pending() {
		id := rec.Job.ID()
		if r, ok := s.timeline.Get(id); ok && r.Start <= ctx.Now() && s.start(ctx, rec) {
			continue
		}
		waiting = append(waiting, id)
	}
	next, ok := s.timeline.NextStartAfter(ctx.Now(), waiting)
	if !ok || (s.wakeup != nil && s.wakeupAt == next) {
		return
	}
	if s.wakeup != nil {
		ctx.Kill(s.wakeup.Address().Local())
	}
	s.wakeup = actors.NotifyAfter(ctx, next-ctx.Now(), wakeUp{})
	s.wakeupAt = next
}

// start allocates whole node slices to a pending job and runs it. It returns false if the
// slices are not free.
func (s *Scheduler) start(ctx *actor.Context, rec *tasklist.Record) bool {
	req := rec.Request
	amount := resourcepool.Amount{Cores: req.CoresPerNode, RAM: s.ramPerNode(req.CoresPerNode)}
	hosts, ok := s.selector.SelectN(s.pool, req.Nodes, amount)
	if !ok {
		return false
	}
	amounts := make(map[string]resourcepool.Amount, len(hosts))
	for _, h := range hosts {
		amounts[h] = amount
	}
	alloc, ok := s.pool.TryAllocate(amounts)
	if !ok {
		return false
	}

	s.started++
	id := fmt.Sprintf("job-%d", s.started)
	_, pilot := rec.Job.(*job.PilotJob)
	svc := baremetal.New(s.name+"/"+id, resourcepool.NewFromAllocation(s.name+"/"+id, alloc),
		s.platform, baremetal.Config{Actions: s.config.Actions, IdleAdmission: pilot})
	rec.Service = ctx.MustActorOf(id, svc)
	rec.Allocation = alloc
	rec.StartDate = ctx.Now()
	rec.Job.Transition(job.Running, ctx.Now())
	if s.timeline != nil {
		check.Panic(s.timeline.Add(rec.Job.ID(), backfill.Reservation{
			Nodes: req.Nodes, Start: ctx.Now(), End: ctx.Now() + req.Walltime,
		}))
	}
	rec.Timer = actors.NotifyDeadline(ctx, req.Walltime, walltimeExpired{id: rec.Job.ID()})
	ctx.Log().Infof("started job %s on %v", rec.Job.Name(), hosts)

	if pilot {
		s.startPilot(ctx, rec, svc.Handle())
		return true
	}
	resp := ctx.Ask(rec.Service, sproto.AdoptJob{Job: rec.Job, Notify: ctx.Self()})
	if err := resp.Error(); err != nil {
		s.fail(ctx, rec, failures.CauseOf(err))
	}
	return true
}

// runningIn returns the record of a job running in the service, if any.
func (s *Scheduler) runningIn(service *actor.Ref, j job.Job) *tasklist.Record {
	if j == nil {
		return nil
	}
	rec, ok := s.queue.Get(j.ID())
	if !ok || !rec.Running() || rec.Service != service {
		return nil
	}
	return rec
}

// release stops a job's service and timer, frees its nodes and forgets it.
func (s *Scheduler) release(ctx *actor.Context, rec *tasklist.Record) {
	if rec.Running() {
		ctx.Kill(rec.Timer.Address().Local())
		ctx.Kill(rec.Service.Address().Local())
		s.pool.Release(rec.Allocation)
	}
	s.queue.Remove(rec.Job.ID())
	if s.timeline != nil {
		s.timeline.Remove(rec.Job.ID())
		var queue []string
		for _, pending := range s.queue.Pending() {
			queue = append(queue, pending.Job.ID())
		}
		s.timeline.Compact(ctx.Now(), queue)
	}
}

// interrupt tells the service of a running job to fail the work inside it, then releases it.
func (s *Scheduler) interrupt(ctx *actor.Context, rec *tasklist.Record, cause failures.Cause) {
	if rec.Running() {
		ctx.Tell(rec.Service, sproto.Stop{Cause: cause})
	}
	s.release(ctx, rec)
}

func (s *Scheduler) notify(ctx *actor.Context, rec *tasklist.Record, msg actor.Message) {
	prom.JobsFinished.WithLabelValues(s.name, string(rec.Job.State())).Inc()
	if rec.Notify != nil {
		ctx.Tell(rec.Notify, msg)
	}
}

// fail fails a queued or running job with the cause.
func (s *Scheduler) fail(ctx *actor.Context, rec *tasklist.Record, cause failures.Cause) {
	rec.Job.Fail(cause, ctx.Now())
	s.interrupt(ctx, rec, cause)
	ctx.Log().Infof("job %s failed: %s", rec.Job.Name(), cause)
	s.notify(ctx, rec, sproto.JobFailed{Job: rec.Job, Cause: cause, Date: ctx.Now()})
}

func (s *Scheduler) expire(ctx *actor.Context, rec *tasklist.Record) {
	if p, ok := rec.Job.(*job.PilotJob); ok {
		s.expirePilot(ctx, rec, p)
		return
	}
	s.fail(ctx, rec, failures.JobTimeout{Job: rec.Job.Name()})
}

func (s *Scheduler) terminate(ctx *actor.Context, j job.Job) error {
	if j == nil {
		return failures.InvalidArgument("nil job terminated on %s", s.name)
	}
	rec, ok := s.queue.Get(j.ID())
	if !ok {
		return failures.NotAllowed("job %s is not queued or running on %s", j.Name(), s.name)
	}
	cause := failures.JobKilled{Job: j.Name()}
	j.Transition(job.Terminated, ctx.Now())
	s.interrupt(ctx, rec, cause)
	ctx.Log().Infof("job %s terminated", j.Name())
	s.notify(ctx, rec, sproto.JobTerminated{Job: j, Date: ctx.Now()})
	s.schedule(ctx)
	return nil
}

func (s *Scheduler) shutdown(ctx *actor.Context, cause failures.Cause) {
	for s.queue.Len() > 0 {
		it := s.queue.Iterator()
		it.Next()
		s.fail(ctx, it.Value(), cause)
	}
}

func (s *Scheduler) snapshot() sproto.Queue {
	var q sproto.Queue
	for _, rec := range append(s.queue.Running(), s.queue.Pending()...) {
		q.Entries = append(q.Entries, sproto.QueueEntry{
			Job:        rec.Job,
			Username:   rec.Username,
			Request:    rec.Request,
			SubmitDate: rec.SubmitDate,
			StartDate:  rec.StartDate,
			Running:    rec.Running(),
		})
	}
	return q
}
