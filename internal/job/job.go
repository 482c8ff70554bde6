// Package job holds the units of work submitted to compute services: standard jobs made of tasks,
// pilot jobs reserving resources for nested work, and compound jobs made of DAGs of actions.
package job

import (
	"github.com/google/uuid"

	"github.com/determined-ai/schedsim/internal/failures"
	"github.com/determined-ai/schedsim/pkg/actor"
)

// Service is a compute service that jobs are submitted to.
type Service interface {
	Name() string
	Ref() *actor.Ref
	Supports(kind Kind) bool
}

// Job is the state shared by every job type.
type Job interface {
	ID() string
	Name() string
	Kind() Kind
	State() State
	SubmitDate() float64
	StartDate() float64
	EndDate() float64
	FailureCause() failures.Cause
	Service() Service
	Submitted() bool

	// MarkSubmitted records the service that accepted the job. It is called once, by the service.
	MarkSubmitted(svc Service, date float64)
	// Transition moves the job to a new state at the provided date.
	Transition(state State, date float64)
	// Fail moves the job to Failed and records the cause.
	Fail(cause failures.Cause, date float64)
}

// NotSet marks a date that has not been reached.
const NotSet = -1.0

type base struct {
	id    string
	name  string
	state State

	submitDate float64
	startDate  float64
	endDate    float64
	cause      failures.Cause
	service    Service
	submitted  bool
}

func newBase(name string) base {
	return base{
		id:         uuid.New().String(),
		name:       name,
		state:      NotSubmitted,
		submitDate: NotSet,
		startDate:  NotSet,
		endDate:    NotSet,
	}
}

func (b *base) ID() string { return b.id }
func (b *base) Name() string { return b.name }
func (b *base) State() State { return b.state }
func (b *base) SubmitDate() float64 { return b.submitDate }
func (b *base) StartDate() float64 { return b.startDate }
func (b *base) EndDate() float64 { return b.endDate }
func (b *base) FailureCause() failures.Cause { return b.cause }
func (b *base) Service() Service { return b.service }
func (b *base) Submitted() bool { return b.submitted }
func (b *base) String() string { return b.name }

func (b *base) MarkSubmitted(svc Service, date float64) {
	b.submitted = true
	b.service = svc
	b.submitDate = date
	b.state = Pending
}

func (b *base) Transition(state State, date float64) {
	if b.state.Terminal() {
		return
	}
	b.state = state
	switch {
	case state == Running:
		b.startDate = date
	case state.Terminal():
		b.endDate = date
	}
}

func (b *base) Fail(cause failures.Cause, date float64) {
	if b.state.Terminal() {
		return
	}
	b.cause = cause
	b.Transition(Failed, date)
}
