package failures

import "fmt"

// Cause describes why a job, task or action did not complete. Causes travel as data on events
// and execution records.
type Cause interface {
	fmt.Stringer
	isCause()
}

type (
	// JobTimeout is the cause of a job whose walltime elapsed before it completed.
	JobTimeout struct {
		Job string
	}
	// JobKilled is the cause of a job, or of work nested in it, terminated on request.
	JobKilled struct {
		Job string
	}
	// ServiceIsDown is the cause of work submitted to, or running in, a stopped service.
	ServiceIsDown struct {
		Service string
	}
	// HostError is the cause of work lost because its host was turned off.
	HostError struct {
		Host string
	}
	// NetworkError is the cause of a transfer that could not reach its peer.
	NetworkError struct {
		Source      string
		Destination string
	}
	// FileNotFound is the cause of an I/O action whose file does not exist.
	FileNotFound struct {
		File     string
		Location string
	}
	// NotEnoughResourcesCause is the asynchronous form of ErrNotEnoughResources.
	NotEnoughResourcesCause struct {
		Detail string
	}
	// NotAllowedCause is the asynchronous form of ErrNotAllowed.
	NotAllowedCause struct {
		Detail string
	}
	// ComputationError is the cause of a custom action whose function returned an error.
	ComputationError struct {
		Err error
	}
)

func (JobTimeout) isCause()              {}
func (JobKilled) isCause()               {}
func (ServiceIsDown) isCause()           {}
func (HostError) isCause()               {}
func (NetworkError) isCause()            {}
func (FileNotFound) isCause()            {}
func (NotEnoughResourcesCause) isCause() {}
func (NotAllowedCause) isCause()         {}
func (ComputationError) isCause()        {}

func (c JobTimeout) String() string {
	return fmt.Sprintf("job %s has timed out", c.Job)
}

func (c JobKilled) String() string {
	return fmt.Sprintf("job %s was killed", c.Job)
}

func (c ServiceIsDown) String() string {
	return fmt.Sprintf("service %s is down", c.Service)
}

func (c HostError) String() string {
	return fmt.Sprintf("host %s is off", c.Host)
}

func (c NetworkError) String() string {
	return fmt.Sprintf("network error between %s and %s", c.Source, c.Destination)
}

func (c FileNotFound) String() string {
	return fmt.Sprintf("file %s not found at %s", c.File, c.Location)
}

func (c NotEnoughResourcesCause) String() string {
	return "not enough resources: " + c.Detail
}

func (c NotAllowedCause) String() string {
	return "not allowed: " + c.Detail
}

func (c ComputationError) String() string {
	return fmt.Sprintf("computation failed: %v", c.Err)
}
