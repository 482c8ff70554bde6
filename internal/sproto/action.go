package sproto

import (
	"github.com/determined-ai/schedsim/internal/failures"
	"github.com/determined-ai/schedsim/internal/job"
)

// Action execution messages.
type (
	// SubmitAction asks an action execution service to run a READY action. The answer is nil or
	// an error.
	SubmitAction struct {
		Action *job.Action
	}
	// TerminateAction asks an action execution service to kill a submitted action.
	TerminateAction struct {
		Action *job.Action
		Cause  failures.Cause
	}
	// ActionDone is told to the parent of an action execution service when an action reaches a
	// terminal state; the action's state and history tell how it ended.
	ActionDone struct {
		Action *job.Action
	}
	// ExecutorDone is told by an executor to its service when the action's work is over. A nil
	// cause means the work succeeded.
	ExecutorDone struct {
		Action *job.Action
		Cause  failures.Cause
	}
)

// Resource queries.
type (
	// GetResourceInfo asks a service for the state of its hosts.
	GetResourceInfo struct{}
	// HostResources describes the capacity and availability of one host.
	HostResources struct {
		Host      string
		Cores     int
		IdleCores int
		RAM       float64
		IdleRAM   float64
		On        bool
	}
	// ResourceInfo answers GetResourceInfo, with hosts in canonical order.
	ResourceInfo struct {
		Hosts []HostResources
	}
	// GetQueue asks a batch scheduler for its pending and running jobs.
	GetQueue struct{}
	// QueueEntry describes a job known to a batch scheduler.
	QueueEntry struct {
		Job        job.Job
		Username   string
		Request    job.Request
		SubmitDate float64
		StartDate  float64
		Running    bool
	}
	// Queue answers GetQueue, running jobs first and then pending jobs in queue order.
	Queue struct {
		Entries []QueueEntry
	}
)
