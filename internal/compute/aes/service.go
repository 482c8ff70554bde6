// Package aes implements the action execution service: it runs the READY actions submitted to it
// on the hosts of a resource pool, one executor per attempt.
package aes

import (
	"fmt"

	"golang.org/x/exp/slices"

	"github.com/determined-ai/schedsim/internal/compute/executor"
	"github.com/determined-ai/schedsim/internal/failures"
	"github.com/determined-ai/schedsim/internal/job"
	"github.com/determined-ai/schedsim/internal/platform"
	"github.com/determined-ai/schedsim/internal/prom"
	"github.com/determined-ai/schedsim/internal/rm/fitting"
	"github.com/determined-ai/schedsim/internal/rm/resourcepool"
	"github.com/determined-ai/schedsim/internal/sproto"
	"github.com/determined-ai/schedsim/pkg/actor"
	"github.com/determined-ai/schedsim/pkg/check"
)

// Config tunes an action execution service.
type Config struct {
	// Policy selects the host of each action.
	Policy fitting.Policy `json:"policy"`
	// FailActionAfterExecutorCrash fails an action whose host turns off instead of running it again.
	FailActionAfterExecutorCrash bool `json:"fail_action_after_executor_crash"`
}

// DefaultConfig returns the default configuration: first fit, restart after host failures.
func DefaultConfig() Config {
	return Config{Policy: fitting.FirstFit}
}

type execution struct {
	action   *job.Action
	executor *actor.Ref
	alloc    *resourcepool.Allocation
	host     string
}

// Service is the actor running actions. Its parent is told ActionDone for every action that
// completes or fails on its own; actions terminated through TerminateAction are not reported.
type Service struct {
	config   Config
	pool     *resourcepool.Pool
	platform platform.Platform
	selector *fitting.Selector

	ready     []*job.Action
	running   []*execution
	submitted map[*job.Action]bool
	attempts  int
}

// New returns a service running actions in the pool. The platform, if not nil, notifies the
// service of hosts turning on and off.
func New(pool *resourcepool.Pool, p platform.Platform, config Config) *Service {
	return &Service{
		config:    config,
		pool:      pool,
		platform:  p,
		selector:  fitting.NewSelector(config.Policy),
		submitted: make(map[*job.Action]bool),
	}
}

// Receive implements the actor.Actor interface.
func (s *Service) Receive(ctx *actor.Context) error {
	switch msg := ctx.Message().(type) {
	case actor.PreStart:
		ctx.AddLabel("pool", s.pool.Name())
		if s.platform != nil {
			s.platform.Subscribe(ctx.Self())
		}

	case sproto.SubmitAction:
		ctx.RespondCheckError(nil, s.submit(ctx, msg.Action))

	case sproto.TerminateAction:
		ctx.RespondCheckError(nil, s.terminate(ctx, msg.Action, msg.Cause))

	case sproto.ExecutorDone:
		s.executorDone(ctx, msg)

	case platform.HostStateChanged:
		s.hostStateChanged(ctx, msg)

	case sproto.GetResourceInfo:
		ctx.Respond(ResourceInfo(s.pool))

	case sproto.Stop:
		s.shutdown(ctx, msg.Cause)
		ctx.Self().Stop()

	case actor.ChildStopped, actor.ChildFailed:

	case actor.PostStop:
		s.shutdown(ctx, failures.ServiceIsDown{Service: s.pool.Name()})
		if s.platform != nil {
			s.platform.Unsubscribe(ctx.Self())
		}

	default:
		return actor.ErrUnexpectedMessage(ctx)
	}
	return nil
}

func (s *Service) submit(ctx *actor.Context, a *job.Action) error {
	check.Panic(check.True(a != nil, "nil action submitted to %s", s.pool.Name()))
	check.Panic(check.True(a.State() == job.Ready,
		"action %s submitted to %s while %s", a.Name(), s.pool.Name(), a.State()))
	check.Panic(check.False(s.submitted[a], "action %s submitted twice", a.Name()))

	if !s.pool.CanEverFit(resourcepool.Amount{Cores: a.MinCores(), RAM: a.RAM()}) {
		return failures.NotEnoughResources("no host of %s can run action %s (%d cores, %v bytes)",
			s.pool.Name(), a.Name(), a.MinCores(), a.RAM())
	}
	s.submitted[a] = true
	s.ready = append(s.ready, a)
	ctx.Log().Debugf("action %s queued", a.Name())
	s.dispatch(ctx)
	return nil
}

// dispatch starts every queued action that fits right now, in queue order. An action that does
// not fit does not hold back the ones behind it.
func (s *Service) dispatch(ctx *actor.Context) {
	var waiting []*job.Action
	for _, a := range s.ready {
		placement, ok := s.selector.Select(s.pool, fitting.Request{
			MinCores: a.MinCores(), MaxCores: a.MaxCores(), RAM: a.RAM(),
		})
		if !ok {
			waiting = append(waiting, a)
			continue
		}
		alloc, ok := s.pool.TryAllocate(map[string]resourcepool.Amount{
			placement.Host: {Cores: placement.Cores, RAM: placement.RAM},
		})
		if !ok {
			waiting = append(waiting, a)
			continue
		}
		s.start(ctx, a, placement, alloc)
	}
	s.ready = waiting
}

func (s *Service) start(
	ctx *actor.Context, a *job.Action, placement fitting.Placement, alloc *resourcepool.Allocation,
) {
	a.StartAttempt(job.ExecutionRecord{
		Start:          ctx.Now(),
		End:            job.NotSet,
		CoresAllocated: placement.Cores,
		RAMAllocated:   placement.RAM,
		ExecutionHost:  placement.Host,
		PhysicalHost:   s.pool.Host(placement.Host).Name,
	})
	s.attempts++
	ref := ctx.MustActorOf(fmt.Sprintf("executor-%d", s.attempts),
		executor.New(a, s.pool.Host(placement.Host), placement.Cores, placement.RAM))
	s.running = append(s.running, &execution{
		action: a, executor: ref, alloc: alloc, host: placement.Host,
	})
}

func (s *Service) find(a *job.Action) (int, *execution) {
	for i, e := range s.running {
		if e.action == a {
			return i, e
		}
	}
	return -1, nil
}

// stopExecution kills the executor of an attempt and releases its resources.
func (s *Service) stopExecution(ctx *actor.Context, i int, e *execution) {
	ctx.Kill(e.executor.Address().Local())
	s.pool.Release(e.alloc)
	s.running = slices.Delete(s.running, i, i+1)
}

func (s *Service) executorDone(ctx *actor.Context, msg sproto.ExecutorDone) {
	i, e := s.find(msg.Action)
	if e == nil || e.executor != ctx.Sender() {
		return
	}
	s.stopExecution(ctx, i, e)
	if msg.Cause == nil {
		msg.Action.Complete(ctx.Now())
		prom.ActionAttempts.WithLabelValues("completed").Inc()
		ctx.Log().Debugf("action %s completed", msg.Action.Name())
	} else {
		msg.Action.FailAttempt(ctx.Now(), msg.Cause)
		prom.ActionAttempts.WithLabelValues("failed").Inc()
		ctx.Log().Infof("action %s failed: %s", msg.Action.Name(), msg.Cause)
	}
	ctx.Tell(ctx.Self().Parent(), sproto.ActionDone{Action: msg.Action})
	s.dispatch(ctx)
}

func (s *Service) terminate(ctx *actor.Context, a *job.Action, cause failures.Cause) error {
	check.Panic(check.True(s.submitted[a], "action %s was never submitted to %s",
		a.Name(), s.pool.Name()))
	if a.State().Terminal() {
		return failures.NotAllowed("action %s is already %s", a.Name(), a.State())
	}
	if cause == nil {
		cause = failures.NotAllowedCause{Detail: "terminated"}
	}
	if i, e := s.find(a); e != nil {
		s.stopExecution(ctx, i, e)
		prom.ActionAttempts.WithLabelValues("killed").Inc()
	} else if i := slices.Index(s.ready, a); i >= 0 {
		s.ready = slices.Delete(s.ready, i, i+1)
	}
	a.Kill(ctx.Now(), cause)
	s.dispatch(ctx)
	return nil
}

func (s *Service) hostStateChanged(ctx *actor.Context, msg platform.HostStateChanged) {
	if !s.pool.Has(msg.Host) {
		return
	}
	s.pool.SetHostOn(msg.Host, msg.On)
	if msg.On {
		s.dispatch(ctx)
		return
	}

	cause := failures.HostError{Host: msg.Host}
	var crashed []*execution
	for _, e := range s.running {
		if e.host == msg.Host {
			crashed = append(crashed, e)
		}
	}
	for _, e := range crashed {
		i, _ := s.find(e.action)
		s.stopExecution(ctx, i, e)
		prom.ActionAttempts.WithLabelValues("crashed").Inc()
		if s.config.FailActionAfterExecutorCrash {
			e.action.FailAttempt(ctx.Now(), cause)
			ctx.Log().Infof("action %s failed: %s", e.action.Name(), cause)
			ctx.Tell(ctx.Self().Parent(), sproto.ActionDone{Action: e.action})
			continue
		}
		e.action.Restart(ctx.Now(), cause)
		ctx.Log().Infof("action %s will be restarted after %s", e.action.Name(), cause)
		s.ready = append(s.ready, e.action)
	}
	s.dispatch(ctx)
}

// shutdown kills every running and queued action with the cause.
func (s *Service) shutdown(ctx *actor.Context, cause failures.Cause) {
	for len(s.running) > 0 {
		e := s.running[0]
		s.stopExecution(ctx, 0, e)
		e.action.Kill(ctx.Now(), cause)
	}
	for _, a := range s.ready {
		a.Kill(ctx.Now(), cause)
	}
	s.ready = nil
}

// ResourceInfo describes the hosts of a pool in canonical order.
func ResourceInfo(pool *resourcepool.Pool) sproto.ResourceInfo {
	var info sproto.ResourceInfo
	for _, h := range pool.Hosts() {
		capacity, available := pool.Capacity(h), pool.Available(h)
		info.Hosts = append(info.Hosts, sproto.HostResources{
			Host:      h,
			Cores:     capacity.Cores,
			IdleCores: available.Cores,
			RAM:       capacity.RAM,
			IdleRAM:   available.RAM,
			On:        pool.IsHostOn(h),
		})
	}
	return info
}
