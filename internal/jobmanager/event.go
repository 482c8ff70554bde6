package jobmanager

import (
	"fmt"

	"github.com/determined-ai/schedsim/internal/failures"
	"github.com/determined-ai/schedsim/internal/job"
)

// EventType is the kind of a job event.
type EventType string

// Event types.
const (
	JobCompletedEvent    EventType = "job_completed"
	JobFailedEvent       EventType = "job_failed"
	JobTerminatedEvent   EventType = "job_terminated"
	PilotJobStartedEvent EventType = "pilot_job_started"
	PilotJobExpiredEvent EventType = "pilot_job_expired"
)

// Event is a job transition reported to a controller. Cause is only set on JobFailedEvent.
type Event struct {
	Type  EventType
	Job   job.Job
	Cause failures.Cause
	Date  float64
}

func (e Event) String() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s %s (%s)", e.Type, e.Job.Name(), e.Cause)
	}
	return fmt.Sprintf("%s %s", e.Type, e.Job.Name())
}
