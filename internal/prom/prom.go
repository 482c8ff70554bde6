// Package prom holds the prometheus collectors of the scheduling core.
package prom

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "schedsim"

var (
	// JobsSubmitted counts jobs accepted, by service and job kind.
	JobsSubmitted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "jobs",
		Name:      "submitted_total",
		Help:      "jobs accepted by compute services",
	}, []string{"service", "kind"})

	// JobsFinished counts jobs reaching a terminal state, by service and state.
	JobsFinished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "jobs",
		Name:      "finished_total",
		Help:      "jobs reaching a terminal state",
	}, []string{"service", "state"})

	// CoresInUse tracks the allocated cores of every resource pool.
	CoresInUse = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "pool",
		Name:      "cores_in_use",
		Help:      "cores currently allocated in a resource pool",
	}, []string{"pool"})

	// ActionAttempts counts action attempts by outcome.
	ActionAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "actions",
		Name:      "attempts_total",
		Help:      "action attempts by outcome",
	}, []string{"outcome"})
)

func init() {
	prometheus.MustRegister(JobsSubmitted, JobsFinished, CoresInUse, ActionAttempts)
}
