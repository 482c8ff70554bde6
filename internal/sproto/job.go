// Package sproto holds the messages exchanged between compute services, their executors and the
// controllers submitting work.
package sproto

import (
	"github.com/determined-ai/schedsim/internal/failures"
	"github.com/determined-ai/schedsim/internal/job"
	"github.com/determined-ai/schedsim/pkg/actor"
)

// Job submission and termination. Both are asked; the answer is nil or an error.
type (
	// SubmitJob asks a service to accept a job. Notify receives the job's events.
	SubmitJob struct {
		Job    job.Job
		Args   map[string]string
		Notify *actor.Ref
	}
	// TerminateJob asks a service to terminate a job it accepted.
	TerminateJob struct {
		Job job.Job
	}
	// AdoptJob asks a service to run a job that a parent service already accepted and started.
	// The job's submission is left untouched.
	AdoptJob struct {
		Job    job.Job
		Notify *actor.Ref
	}
)

// Job events, told to the Notify ref of the submission.
type (
	// JobCompleted is told once a job has completed.
	JobCompleted struct {
		Job  job.Job
		Date float64
	}
	// JobFailed is told once a job has failed.
	JobFailed struct {
		Job   job.Job
		Cause failures.Cause
		Date  float64
	}
	// JobTerminated is told once a terminated job has released its resources.
	JobTerminated struct {
		Job  job.Job
		Date float64
	}
	// PilotJobStarted is told once a pilot job is running and its compute service is available.
	PilotJobStarted struct {
		Job  *job.PilotJob
		Date float64
	}
	// PilotJobExpired is told once a pilot job's walltime has elapsed.
	PilotJobExpired struct {
		Job  *job.PilotJob
		Date float64
	}
)

// Stop asks a service to shut down, failing all work inside it with the cause.
type Stop struct {
	Cause failures.Cause
}
