// Package executor runs a single action attempt on a reserved slice of one host.
package executor

import (
	"github.com/determined-ai/schedsim/internal/failures"
	"github.com/determined-ai/schedsim/internal/job"
	"github.com/determined-ai/schedsim/internal/platform"
	"github.com/determined-ai/schedsim/internal/sproto"
	"github.com/determined-ai/schedsim/internal/storage"
	"github.com/determined-ai/schedsim/pkg/actor"
	"github.com/determined-ai/schedsim/pkg/actor/actors"
)

type workDone struct{}

// Executor is the actor running one attempt of an action. It tells its parent ExecutorDone once
// the work is over and then waits to be stopped; stopping it early cancels the work.
type Executor struct {
	action *job.Action
	host   platform.Host
	cores  int
	ram    float64
}

// New returns an executor for an action granted cores and RAM on a host.
func New(action *job.Action, host platform.Host, cores int, ram float64) *Executor {
	return &Executor{action: action, host: host, cores: cores, ram: ram}
}

// Receive implements the actor.Actor interface.
func (e *Executor) Receive(ctx *actor.Context) error {
	switch ctx.Message().(type) {
	case actor.PreStart:
		ctx.AddLabel("action", e.action.Name())
		d, cause := e.Duration()
		if cause != nil {
			ctx.Log().Debugf("action failed on %s: %s", e.host.Name, cause)
			ctx.Tell(ctx.Self().Parent(), sproto.ExecutorDone{Action: e.action, Cause: cause})
			return nil
		}
		ctx.Log().Debugf("running on %s with %d cores for %vs", e.host.Name, e.cores, d)
		actors.NotifyAfter(ctx, d, workDone{})
	case workDone:
		cause := e.commit()
		ctx.Tell(ctx.Self().Parent(), sproto.ExecutorDone{Action: e.action, Cause: cause})
	case actor.PostStop, actor.ChildStopped:
	default:
		return actor.ErrUnexpectedMessage(ctx)
	}
	return nil
}

// Duration returns how long the action runs on the executor's allocation, or the cause that
// prevents it from running at all. It does not change any storage.
func (e *Executor) Duration() (float64, failures.Cause) {
	a := e.action
	switch a.Kind() {
	case job.ComputeAction:
		if a.Flops() == 0 {
			return 0, nil
		}
		return a.Model().Duration(a.Flops(), e.cores, e.host.Speed), nil
	case job.SleepAction:
		return a.SleepDuration(), nil
	case job.FileReadAction:
		return a.Source().Service.ReadFile(a.File(), a.Source().Dir, e.host.Name)
	case job.FileWriteAction:
		return a.Destination().Service.WriteFile(a.File(), a.Destination().Dir, e.host.Name)
	case job.FileCopyAction:
		return storage.CopyTime(a.File(), a.Source(), a.Destination())
	case job.FileDeleteAction:
		if !a.Source().Service.LookupFile(a.File(), a.Source().Dir) {
			return 0, failures.FileNotFound{
				File: a.File().Name, Location: a.Source().Service.Name() + ":" + a.Source().Dir,
			}
		}
		return 0, nil
	case job.CustomAction:
		d, err := a.Custom()(e.host.Name, e.cores, e.ram)
		if err != nil {
			return 0, failures.ComputationError{Err: err}
		}
		return d, nil
	default:
		return 0, failures.NotAllowedCause{Detail: "unknown action kind " + string(a.Kind())}
	}
}

// commit applies the storage effect of a file action whose work is over.
func (e *Executor) commit() failures.Cause {
	a := e.action
	switch a.Kind() {
	case job.FileWriteAction, job.FileCopyAction:
		a.Destination().Service.StoreFile(a.File(), a.Destination().Dir)
	case job.FileDeleteAction:
		return a.Source().Service.DeleteFile(a.File(), a.Source().Dir)
	}
	return nil
}
