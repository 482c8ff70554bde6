package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/ghodss/yaml"
	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/exp/maps"

	"github.com/determined-ai/schedsim/internal/config"
	"github.com/determined-ai/schedsim/internal/jobmanager"
	"github.com/determined-ai/schedsim/internal/platform"
	"github.com/determined-ai/schedsim/internal/sim"
	"github.com/determined-ai/schedsim/pkg/logger"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Replay a workload and print every job event",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSimulation(cmd.OutOrStdout())
	},
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the configuration, platform and workload and print the configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCheck(cmd.OutOrStdout())
	},
}

type inputs struct {
	config   *config.Config
	platform *platform.Config
	workload *sim.Workload
}

func loadInputs() (*inputs, error) {
	c, err := initializeConfig()
	if err != nil {
		return nil, err
	}
	logger.SetLogrus(c.Log)

	printable, err := c.Printable()
	if err != nil {
		return nil, err
	}
	log.Debugf("configuration: %s", printable)

	if c.Workload == "" {
		return nil, errors.New("a workload file is required")
	}
	pc, err := platform.LoadConfig(c.Platform)
	if err != nil {
		return nil, err
	}
	w, err := sim.LoadWorkload(c.Workload)
	if err != nil {
		return nil, err
	}
	return &inputs{config: c, platform: pc, workload: w}, nil
}

func runSimulation(out io.Writer) error {
	in, err := loadInputs()
	if err != nil {
		return err
	}
	s, err := sim.New(in.config, in.platform, clockwork.NewRealClock())
	if err != nil {
		return err
	}

	precision := in.config.DatePrecision
	report, err := s.Run(in.workload, func(e jobmanager.Event) {
		fmt.Fprintln(out, sim.FormatEvent(e, precision))
	})
	if err != nil {
		return err
	}

	rejected := maps.Keys(report.Rejected)
	sort.Strings(rejected)
	for _, name := range rejected {
		fmt.Fprintf(out, "rejected %s: %v\n", name, report.Rejected[name])
	}
	fmt.Fprintf(out, "makespan %s: %d completed, %d failed, %d terminated, %d rejected\n",
		sim.FormatDate(report.Makespan, precision),
		report.Count(jobmanager.JobCompletedEvent),
		report.Count(jobmanager.JobFailedEvent),
		report.Count(jobmanager.JobTerminatedEvent),
		len(report.Rejected))
	return nil
}

func runCheck(out io.Writer) error {
	in, err := loadInputs()
	if err != nil {
		return err
	}
	printable, err := in.config.Printable()
	if err != nil {
		return err
	}
	bs, err := yaml.JSONToYAML(printable)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "%s---\n%d hosts, %d jobs\n", bs,
		len(in.platform.Hosts), len(in.workload.Jobs))
	return err
}
