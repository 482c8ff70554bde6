package sim

import (
	"testing"
	"time"

	"github.com/go-test/deep"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
	"gotest.tools/assert"

	"github.com/determined-ai/schedsim/internal/config"
	"github.com/determined-ai/schedsim/internal/failures"
	"github.com/determined-ai/schedsim/internal/job"
	"github.com/determined-ai/schedsim/internal/jobmanager"
	"github.com/determined-ai/schedsim/internal/platform"
)

const platformYAML = `
hosts:
  - {name: n1, cores: 4, ram: 1KB, speed: 1}
  - {name: n2, cores: 4, ram: 1KB, speed: 1}
  - {name: n3, cores: 4, ram: 1KB, speed: 1}
`

const configYAML = `
platform: platform.yaml
services:
  - name: batch
    type: batch
    hosts: [n1, n2]
  - name: bm
    type: bare_metal
    hosts: [n3]
    bare_metal:
      actions:
        policy: BestFit
`

const workloadYAML = `
jobs:
  - name: a
    kind: compound
    service: batch
    submit_at: 0
    args: {"-N": "1", "-c": "4", "-t": "100"}
    actions:
      - {name: s, sleep: 50}
  - name: inner
    kind: standard
    pilot: p
    submit_at: 0
    tasks:
      - {name: t, flops: 40, min_cores: 4}
  - name: sleeper
    kind: compound
    service: bm
    submit_at: "5"
    terminate_at: "15"
    actions:
      - {name: x, sleep: 100}
  - name: p
    kind: pilot
    service: batch
    submit_at: 10
    args: {"-N": "1", "-c": "4", "-t": "200"}
`

func newSimulation(t *testing.T, clock clockwork.Clock) *Simulation {
	c, err := config.Parse([]byte(configYAML))
	require.NoError(t, err)
	pc, err := platform.ParseConfig([]byte(platformYAML))
	require.NoError(t, err)
	s, err := New(c, pc, clock)
	require.NoError(t, err)
	return s
}

func TestNewStartsServices(t *testing.T) {
	s := newSimulation(t, clockwork.NewFakeClock())
	assert.DeepEqual(t, s.Services(), []string{"batch", "bm"})

	svc, ok := s.Service("batch")
	require.True(t, ok)
	require.True(t, svc.Supports(job.PilotKind))
	svc, ok = s.Service("bm")
	require.True(t, ok)
	require.False(t, svc.Supports(job.PilotKind))
}

func TestNewRejectsBadServices(t *testing.T) {
	pc, err := platform.ParseConfig([]byte(platformYAML))
	require.NoError(t, err)

	c := config.DefaultConfig()
	c.Services[0].Hosts = []string{"n9"}
	_, err = New(c, pc, clockwork.NewFakeClock())
	require.ErrorContains(t, err, "unknown host n9")

	c = config.DefaultConfig()
	c.Services[0].Name = "controller"
	_, err = New(c, pc, clockwork.NewFakeClock())
	require.ErrorContains(t, err, "taken")
}

func TestRunReplaysWorkload(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := newSimulation(t, clock)
	w, err := ParseWorkload([]byte(workloadYAML))
	require.NoError(t, err)

	var printed []string
	report, err := s.Run(w, func(e jobmanager.Event) {
		printed = append(printed, FormatEvent(e, 1))
		clock.Advance(time.Second)
	})
	require.NoError(t, err)

	expected := []string{
		"[10.0] pilot_job_started p",
		"[15.0] job_terminated sleeper",
		"[20.0] job_completed inner",
		"[50.0] job_completed a",
		"[210.0] pilot_job_expired p",
	}
	if diff := deep.Equal(printed, expected); diff != nil {
		t.Error(diff)
	}
	require.Empty(t, report.Rejected)
	require.Equal(t, 210.0, report.Makespan)
	require.Equal(t, 5*time.Second, report.Elapsed)
	require.Equal(t, 2, report.Count(jobmanager.JobCompletedEvent))
	require.Equal(t, 0, report.Count(jobmanager.JobFailedEvent))
}

func TestRunRecordsRejections(t *testing.T) {
	s := newSimulation(t, clockwork.NewFakeClock())
	w, err := ParseWorkload([]byte(`
jobs:
  - name: q
    kind: pilot
    service: batch
    submit_at: 0
    args: {"-N": "3", "-c": "4", "-t": "10"}
  - name: orphan
    kind: compound
    pilot: q
    submit_at: 1
    actions: [{name: x, sleep: 1}]
  - name: nowalltime
    kind: compound
    service: batch
    submit_at: 2
    args: {"-N": "1", "-c": "1"}
    actions: [{name: x, sleep: 1}]
`))
	require.NoError(t, err)

	report, err := s.Run(w, nil)
	require.NoError(t, err)
	require.Empty(t, report.Events)
	require.Len(t, report.Rejected, 3)
	require.ErrorIs(t, report.Rejected["q"], failures.ErrNotEnoughResources)
	require.ErrorIs(t, report.Rejected["orphan"], failures.ErrNotAllowed)
	require.ErrorIs(t, report.Rejected["nowalltime"], failures.ErrInvalidArgument)
	require.Equal(t, "0", FormatDate(report.Makespan, 0))
}

func TestRunUnknownService(t *testing.T) {
	s := newSimulation(t, clockwork.NewFakeClock())
	_, err := s.Run(&Workload{Jobs: []JobSpec{{Name: "x", Kind: PilotJob, Service: "nope"}}}, nil)
	require.ErrorIs(t, err, failures.ErrInvalidArgument)
}

func TestFormatDate(t *testing.T) {
	require.Equal(t, "1.500", FormatDate(1.5, config.DefaultDatePrecision))
	require.Equal(t, "0.333", FormatDate(1.0/3, 3))
}
