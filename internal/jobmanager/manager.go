// Package jobmanager is the controller-side facade of the compute services: it creates jobs,
// submits and terminates them, and queues the events they produce.
package jobmanager

import (
	"fmt"

	petname "github.com/dustinkirkland/golang-petname"
	"github.com/pkg/errors"

	"github.com/determined-ai/schedsim/internal/failures"
	"github.com/determined-ai/schedsim/internal/job"
	"github.com/determined-ai/schedsim/internal/sproto"
	"github.com/determined-ai/schedsim/pkg/actor"
)

const (
	nameGeneratorWords = 2
	nameGeneratorSep   = "-"
)

// ErrNoEvent is returned when the simulation runs out of work before an event is produced.
var ErrNoEvent = errors.New("no event can occur: the simulation is idle")

// JobManager creates, submits and terminates the jobs of one controller. Controllers drive the
// simulation through WaitForNextEvent from outside any actor.
type JobManager struct {
	system *actor.System
	ref    *actor.Ref
	events []Event
	named  int
}

// New returns a job manager whose inbox actor lives at the provided address.
func New(system *actor.System, address actor.Address) *JobManager {
	m := &JobManager{system: system}
	m.ref = system.MustActorOf(address, actor.ActorFunc(m.receive))
	return m
}

// Ref returns the actor receiving the events of the jobs submitted through the manager.
func (m *JobManager) Ref() *actor.Ref {
	return m.ref
}

func (m *JobManager) receive(ctx *actor.Context) error {
	var e Event
	switch msg := ctx.Message().(type) {
	case actor.PreStart, actor.PostStop:
		return nil
	case sproto.JobCompleted:
		e = Event{Type: JobCompletedEvent, Job: msg.Job, Date: msg.Date}
	case sproto.JobFailed:
		e = Event{Type: JobFailedEvent, Job: msg.Job, Cause: msg.Cause, Date: msg.Date}
	case sproto.JobTerminated:
		e = Event{Type: JobTerminatedEvent, Job: msg.Job, Date: msg.Date}
	case sproto.PilotJobStarted:
		e = Event{Type: PilotJobStartedEvent, Job: msg.Job, Date: msg.Date}
	case sproto.PilotJobExpired:
		e = Event{Type: PilotJobExpiredEvent, Job: msg.Job, Date: msg.Date}
	default:
		return actor.ErrUnexpectedMessage(ctx)
	}
	ctx.Log().Debugf("event: %s", e)
	m.events = append(m.events, e)
	return nil
}

func (m *JobManager) name(name string) string {
	if name != "" {
		return name
	}
	m.named++
	return fmt.Sprintf("%s-%d", petname.Generate(nameGeneratorWords, nameGeneratorSep), m.named)
}

// CreateStandardJob builds a standard job. An empty name is replaced by a generated one.
func (m *JobManager) CreateStandardJob(name string, spec job.StandardJobSpec) (*job.StandardJob, error) {
	return job.NewStandardJob(m.name(name), spec)
}

// CreatePilotJob builds a pilot job; its request is given at submission.
func (m *JobManager) CreatePilotJob(name string) *job.PilotJob {
	return job.NewPilotJob(m.name(name))
}

// CreateCompoundJob builds an empty compound job to which actions are then added.
func (m *JobManager) CreateCompoundJob(name string) (*job.CompoundJob, error) {
	return job.NewCompoundJob(m.name(name))
}

// SubmitJob submits a job to a compute service. Batch schedulers read the job's request from
// the arguments. A job object can only be submitted once.
func (m *JobManager) SubmitJob(j job.Job, svc job.Service, args map[string]string) error {
	switch {
	case j == nil:
		return failures.InvalidArgument("cannot submit a nil job")
	case svc == nil || svc.Ref() == nil:
		return failures.InvalidArgument("cannot submit job %s to a nil service", j.Name())
	case !svc.Supports(j.Kind()):
		return failures.InvalidArgument("service %s does not support %s jobs", svc.Name(), j.Kind())
	case j.Submitted():
		return failures.InvalidArgument("job %s has already been submitted", j.Name())
	}
	resp := m.system.Ask(svc.Ref(), sproto.SubmitJob{Job: j, Args: args, Notify: m.ref})
	if resp.Empty() {
		return failures.NotAllowed("service %s is down", svc.Name())
	}
	return resp.Error()
}

// TerminateJob terminates a submitted job that has not ended yet.
func (m *JobManager) TerminateJob(j job.Job) error {
	switch {
	case j == nil:
		return failures.InvalidArgument("cannot terminate a nil job")
	case !j.Submitted():
		return failures.NotAllowed("job %s was never submitted", j.Name())
	case j.State().Terminal():
		return failures.NotAllowed("job %s is already %s", j.Name(), j.State())
	}
	svc := j.Service()
	resp := m.system.Ask(svc.Ref(), sproto.TerminateJob{Job: j})
	if resp.Empty() {
		return failures.NotAllowed("service %s is down", svc.Name())
	}
	return resp.Error()
}

// Pending returns the number of events waiting to be consumed.
func (m *JobManager) Pending() int {
	return len(m.events)
}

func (m *JobManager) pop() Event {
	e := m.events[0]
	m.events = m.events[1:]
	return e
}

// WaitForNextEvent runs the simulation until an event is available and returns it. Events are
// returned in the order they were produced.
func (m *JobManager) WaitForNextEvent() (Event, error) {
	if !m.system.RunUntil(func() bool { return len(m.events) > 0 }) {
		return Event{}, ErrNoEvent
	}
	return m.pop(), nil
}

// WaitForNextEventWithTimeout is WaitForNextEvent bounded by d simulated seconds. It returns
// false if no event was produced in time; the clock then stands d seconds later.
func (m *JobManager) WaitForNextEventWithTimeout(d float64) (Event, bool) {
	return m.WaitForNextEventUntil(m.system.Now() + d)
}

// WaitForNextEventUntil is WaitForNextEvent bounded by a simulated date. It returns false if no
// event was produced by then; the clock then stands at that date.
func (m *JobManager) WaitForNextEventUntil(date float64) (Event, bool) {
	if !m.system.RunUntilDate(date, func() bool { return len(m.events) > 0 }) {
		return Event{}, false
	}
	return m.pop(), true
}
