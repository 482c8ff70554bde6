package job

// Request is the resource request of a batch job: nodes, cores per node and walltime in seconds.
type Request struct {
	Nodes        int
	CoresPerNode int
	Walltime     float64
}

// PilotJob reserves resources on a batch scheduler. While running, the reservation is exposed as
// a nested compute service.
type PilotJob struct {
	base
	request        Request
	computeService Service
}

// NewPilotJob returns a pilot job; its request is bound when it is submitted.
func NewPilotJob(name string) *PilotJob {
	return &PilotJob{base: newBase(name)}
}

// Kind implements Job.
func (j *PilotJob) Kind() Kind { return PilotKind }

// Request returns the request bound at submission.
func (j *PilotJob) Request() Request { return j.request }

// SetRequest binds the request. It is called by the service accepting the pilot.
func (j *PilotJob) SetRequest(r Request) { j.request = r }

// ComputeService returns the nested service while the pilot is running and nil otherwise.
func (j *PilotJob) ComputeService() Service {
	if j.state != Running {
		return nil
	}
	return j.computeService
}

// SetComputeService attaches the nested service created when the pilot started.
func (j *PilotJob) SetComputeService(svc Service) { j.computeService = svc }
