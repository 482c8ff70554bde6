// Package sim wires a platform, its compute services and a job manager into a simulation and
// replays workloads on it.
package sim

import (
	"fmt"
	"sort"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"golang.org/x/exp/maps"

	"github.com/determined-ai/schedsim/internal/compute/baremetal"
	"github.com/determined-ai/schedsim/internal/compute/batch"
	"github.com/determined-ai/schedsim/internal/config"
	"github.com/determined-ai/schedsim/internal/failures"
	"github.com/determined-ai/schedsim/internal/job"
	"github.com/determined-ai/schedsim/internal/jobmanager"
	"github.com/determined-ai/schedsim/internal/platform"
	"github.com/determined-ai/schedsim/internal/rm/resourcepool"
	"github.com/determined-ai/schedsim/pkg/actor"
	"github.com/determined-ai/schedsim/pkg/logger"
)

const controllerName = "controller"

// Simulation is a platform with its compute services and the job manager of one controller.
type Simulation struct {
	config   *config.Config
	clock    clockwork.Clock
	system   *actor.System
	platform *platform.Simple
	manager  *jobmanager.JobManager
	services map[string]job.Service
	labels   logger.Context
	log      *log.Entry
}

// New builds the platform and starts every configured service. The clock only measures the wall
// time of runs.
func New(c *config.Config, pc *platform.Config, clock clockwork.Clock) (*Simulation, error) {
	system := actor.NewSystem("schedsim")
	p, err := pc.Build(system)
	if err != nil {
		return nil, err
	}
	labels := logger.Context{"component": "sim", "system": system.ID()}
	s := &Simulation{
		config:   c,
		clock:    clock,
		system:   system,
		platform: p,
		manager:  jobmanager.New(system, actor.Addr(controllerName)),
		services: make(map[string]job.Service, len(c.Services)),
		labels:   labels,
		log:      log.WithFields(labels.Fields()),
	}
	for _, sc := range c.Services {
		if err := s.startService(sc); err != nil {
			return nil, errors.Wrapf(err, "starting service %s", sc.Name)
		}
	}
	return s, nil
}

func (s *Simulation) hosts(names []string) ([]platform.Host, error) {
	if len(names) == 0 {
		return s.platform.Hosts(), nil
	}
	hosts := make([]platform.Host, 0, len(names))
	for _, name := range names {
		h, ok := s.platform.Host(name)
		if !ok {
			return nil, errors.Errorf("unknown host %s", name)
		}
		hosts = append(hosts, h)
	}
	return hosts, nil
}

func (s *Simulation) startService(sc config.ServiceConfig) error {
	hosts, err := s.hosts(sc.Hosts)
	if err != nil {
		return err
	}
	var (
		a   actor.Actor
		svc func() job.Service
	)
	switch sc.Type {
	case config.BatchService:
		sched, err := batch.New(sc.Name, hosts, s.platform, sc.Batch)
		if err != nil {
			return err
		}
		a, svc = sched, func() job.Service { return sched.Handle() }
	case config.BareMetalService:
		pool, err := resourcepool.New(sc.Name, hosts)
		if err != nil {
			return err
		}
		bm := baremetal.New(sc.Name, pool, s.platform, sc.BareMetal)
		a, svc = bm, func() job.Service { return bm.Handle() }
	default:
		return errors.Errorf("unknown service type %s", sc.Type)
	}
	if _, ok := s.system.ActorOf(actor.Addr(sc.Name), a); !ok {
		return errors.Errorf("the name %s is taken", sc.Name)
	}
	s.services[sc.Name] = svc()
	s.log.Infof("started %s service %s on %d hosts", sc.Type, sc.Name, len(hosts))
	return nil
}

// Service returns a started service by name.
func (s *Simulation) Service(name string) (job.Service, bool) {
	svc, ok := s.services[name]
	return svc, ok
}

// Services returns the names of the started services, sorted.
func (s *Simulation) Services() []string {
	names := maps.Keys(s.services)
	sort.Strings(names)
	return names
}

// Manager returns the job manager of the simulation.
func (s *Simulation) Manager() *jobmanager.JobManager {
	return s.manager
}

// Platform returns the simulated platform.
func (s *Simulation) Platform() platform.Platform {
	return s.platform
}

// Now returns the simulated date.
func (s *Simulation) Now() float64 {
	return s.system.Now()
}

// Report summarizes a workload replay.
type Report struct {
	Events []jobmanager.Event
	// Rejected holds the submission errors, by job name.
	Rejected map[string]error
	// Makespan is the simulated date at which the last event occurred.
	Makespan float64
	// Elapsed is the wall time taken by the replay.
	Elapsed time.Duration
}

// Count returns the number of events of a type.
func (r *Report) Count(t jobmanager.EventType) int {
	n := 0
	for _, e := range r.Events {
		if e.Type == t {
			n++
		}
	}
	return n
}

// FormatDate renders a simulated date with a fixed number of decimals.
func FormatDate(date float64, precision int32) string {
	return decimal.NewFromFloat(date).StringFixed(precision)
}

// FormatEvent renders an event prefixed with its date.
func FormatEvent(e jobmanager.Event, precision int32) string {
	return fmt.Sprintf("[%s] %s", FormatDate(e.Date, precision), e)
}

type step struct {
	date      float64
	terminate bool
	spec      *JobSpec
	job       job.Job
}

type replay struct {
	sim     *Simulation
	report  *Report
	onEvent func(jobmanager.Event)
	steps   []step
	pilots  map[string]*job.PilotJob
	// parked holds the submissions waiting for their pilot job to start, by pilot name.
	parked map[string][]step
}

// Run replays a workload until every job ended and no event can occur anymore. Submission
// errors are recorded in the report rather than returned; the returned error is reserved for
// invalid workloads. onEvent, when set, is called for every event as it is consumed.
func (s *Simulation) Run(w *Workload, onEvent func(jobmanager.Event)) (*Report, error) {
	start := s.clock.Now()
	runLog := log.WithFields(logger.MergeContexts(s.labels, logger.Context{"jobs": len(w.Jobs)}).Fields())
	r := &replay{
		sim:     s,
		report:  &Report{Rejected: make(map[string]error)},
		onEvent: onEvent,
		pilots:  make(map[string]*job.PilotJob),
		parked:  make(map[string][]step),
	}
	for i := range w.Jobs {
		spec := &w.Jobs[i]
		if spec.Service != "" {
			if _, ok := s.services[spec.Service]; !ok {
				return nil, failures.InvalidArgument("job %s targets unknown service %s",
					spec.Name, spec.Service)
			}
		}
		j, err := spec.build(s.manager)
		if err != nil {
			return nil, errors.Wrapf(err, "building job %s", spec.Name)
		}
		if p, ok := j.(*job.PilotJob); ok {
			r.pilots[spec.Name] = p
		}
		r.steps = append(r.steps, step{date: date(spec.SubmitAt), spec: spec, job: j})
		if spec.TerminateAt != nil {
			r.steps = append(r.steps, step{
				date: date(*spec.TerminateAt), terminate: true, spec: spec, job: j,
			})
		}
	}
	sort.SliceStable(r.steps, func(i, j int) bool { return r.steps[i].date < r.steps[j].date })

	for len(r.steps) > 0 {
		next := r.steps[0]
		if e, ok := s.manager.WaitForNextEventUntil(next.date); ok {
			r.consume(e)
			continue
		}
		r.steps = r.steps[1:]
		r.apply(next)
	}
	for {
		e, err := s.manager.WaitForNextEvent()
		if err != nil {
			break
		}
		r.consume(e)
	}
	for pilot, parked := range r.parked {
		for _, st := range parked {
			r.reject(st.job, failures.NotAllowed("pilot job %s never started", pilot))
		}
	}

	if n := len(r.report.Events); n > 0 {
		r.report.Makespan = r.report.Events[n-1].Date
	}
	r.report.Elapsed = s.clock.Since(start)
	runLog.Infof("replayed workload in %s: makespan %s, %d events, %d rejected",
		r.report.Elapsed, FormatDate(r.report.Makespan, s.config.DatePrecision),
		len(r.report.Events), len(r.report.Rejected))
	return r.report, nil
}

func (r *replay) consume(e jobmanager.Event) {
	r.report.Events = append(r.report.Events, e)
	if r.onEvent != nil {
		r.onEvent(e)
	}
	name := e.Job.Name()
	parked, ok := r.parked[name]
	if !ok {
		return
	}
	delete(r.parked, name)
	switch e.Type {
	case jobmanager.PilotJobStartedEvent:
		now := r.sim.Now()
		for i := range parked {
			parked[i].date = now
		}
		r.steps = append(parked, r.steps...)
	default:
		for _, st := range parked {
			r.reject(st.job, failures.NotAllowed("pilot job %s is %s", name, e.Job.State()))
		}
	}
}

func (r *replay) reject(j job.Job, err error) {
	r.sim.log.WithError(err).Warnf("job %s rejected", j.Name())
	r.report.Rejected[j.Name()] = err
}

func (r *replay) apply(st step) {
	if st.terminate {
		if !st.job.Submitted() || st.job.State().Terminal() {
			r.sim.log.Debugf("skipping termination of job %s in state %s", st.job.Name(), st.job.State())
			return
		}
		if err := r.sim.manager.TerminateJob(st.job); err != nil {
			r.sim.log.WithError(err).Warnf("terminating job %s", st.job.Name())
		}
		return
	}

	var svc job.Service
	if st.spec.Pilot != "" {
		p := r.pilots[st.spec.Pilot]
		switch {
		case p == nil:
			r.reject(st.job, failures.InvalidArgument("unknown pilot job %s", st.spec.Pilot))
			return
		case p.State() == job.Running:
			svc = p.ComputeService()
		case p.State().Terminal():
			r.reject(st.job, failures.NotAllowed("pilot job %s is %s", p.Name(), p.State()))
			return
		default:
			r.parked[p.Name()] = append(r.parked[p.Name()], st)
			return
		}
	} else {
		svc = r.sim.services[st.spec.Service]
	}
	if err := r.sim.manager.SubmitJob(st.job, svc, st.spec.Args); err != nil {
		r.reject(st.job, err)
	}
}
