// Package config holds the configuration of a simulation run.
package config

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/ghodss/yaml"
	"github.com/pkg/errors"

	"github.com/determined-ai/schedsim/internal/compute/aes"
	"github.com/determined-ai/schedsim/internal/compute/baremetal"
	"github.com/determined-ai/schedsim/internal/compute/batch"
	"github.com/determined-ai/schedsim/internal/rm/fitting"
	"github.com/determined-ai/schedsim/pkg/check"
	"github.com/determined-ai/schedsim/pkg/logger"
)

// Service types.
const (
	BatchService     = "batch"
	BareMetalService = "bare_metal"
)

// DefaultDatePrecision is the number of decimals of printed simulated dates.
const DefaultDatePrecision = 3

// ServiceConfig describes one compute service started on the platform.
type ServiceConfig struct {
	Name string `json:"name"`
	Type string `json:"type"`
	// Hosts lists the platform hosts of the service. All hosts are used when it is empty.
	Hosts     []string         `json:"hosts"`
	Batch     batch.Config     `json:"batch"`
	BareMetal baremetal.Config `json:"bare_metal"`
}

// Validate implements the check.Validatable interface.
func (s ServiceConfig) Validate() []error {
	errs := []error{
		check.NotEmpty(s.Name, "service name must be set"),
		check.False(strings.Contains(s.Name, "/"), "service name %s contains a slash", s.Name),
		check.Contains(s.Type, []interface{}{BatchService, BareMetalService},
			"invalid type for service %s", s.Name),
	}
	switch s.Type {
	case BatchService:
		_, err := fitting.ParsePolicy(s.Batch.Policy)
		errs = append(errs, err, validateActions(s.Batch.Actions))
	case BareMetalService:
		errs = append(errs, validateActions(s.BareMetal.Actions))
	}
	return errs
}

func validateActions(c aes.Config) error {
	p, err := fitting.ParsePolicy(string(c.Policy))
	if err != nil {
		return err
	}
	return check.True(p != fitting.Delegated, "actions cannot use the %s policy", p)
}

// DefaultConfig returns a configuration with a single first fit batch scheduler over every
// host of the platform.
func DefaultConfig() *Config {
	return &Config{
		Log:           *logger.DefaultConfig(),
		DatePrecision: DefaultDatePrecision,
		Services: []ServiceConfig{{
			Name:  "batch",
			Type:  BatchService,
			Batch: batch.DefaultConfig(),
		}},
	}
}

// Config is the configuration of a simulation run.
//
// It is populated, in the following order, by the configuration file, environment variables and
// command line arguments.
type Config struct {
	ConfigFile    string          `json:"config_file"`
	Log           logger.Config   `json:"log"`
	Platform      string          `json:"platform"`
	Workload      string          `json:"workload"`
	DatePrecision int32           `json:"date_precision"`
	Services      []ServiceConfig `json:"services"`
}

// Validate implements the check.Validatable interface.
func (c Config) Validate() []error {
	errs := []error{
		check.NotEmpty(c.Platform, "a platform file is required"),
		check.GreaterThanOrEqualTo(float64(c.DatePrecision), 0, "date precision must not be negative"),
		check.GreaterThan(float64(len(c.Services)), 0, "at least one service is required"),
	}
	seen := make(map[string]bool, len(c.Services))
	for _, s := range c.Services {
		errs = append(errs, check.False(seen[s.Name], "duplicate service name %s", s.Name))
		seen[s.Name] = true
	}
	return errs
}

// Resolve normalizes the policy names of every service.
func (c *Config) Resolve() error {
	for i := range c.Services {
		s := &c.Services[i]
		if s.Type == "" {
			s.Type = BatchService
		}
		if s.Batch.Policy == "" {
			s.Batch.Policy = string(fitting.FirstFit)
		}
		if s.Batch.Actions.Policy == "" {
			s.Batch.Actions.Policy = fitting.FirstFit
		}
		if s.BareMetal.Actions.Policy == "" {
			s.BareMetal.Actions.Policy = fitting.FirstFit
		}
		if p, err := fitting.ParsePolicy(s.Batch.Policy); err == nil {
			s.Batch.Policy = string(p)
		}
		if p, err := fitting.ParsePolicy(string(s.Batch.Actions.Policy)); err == nil {
			s.Batch.Actions.Policy = p
		}
		if p, err := fitting.ParsePolicy(string(s.BareMetal.Actions.Policy)); err == nil {
			s.BareMetal.Actions.Policy = p
		}
	}
	return nil
}

// Printable returns the configuration as JSON.
func (c Config) Printable() ([]byte, error) {
	bs, err := json.Marshal(c)
	if err != nil {
		return nil, errors.Wrap(err, "unable to convert config to JSON")
	}
	return bs, nil
}

// Parse reads a YAML configuration over the defaults, then resolves and validates it.
func Parse(raw []byte) (*Config, error) {
	c := DefaultConfig()
	if err := yaml.Unmarshal(raw, c, yaml.DisallowUnknownFields); err != nil {
		return nil, errors.Wrap(err, "cannot unmarshal configuration")
	}
	if err := c.Resolve(); err != nil {
		return nil, err
	}
	if err := check.Validate(c); err != nil {
		return nil, err
	}
	return c, nil
}

// Load reads a configuration file.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path) // #nosec G304
	if err != nil {
		return nil, errors.Wrapf(err, "reading configuration file %s", path)
	}
	return Parse(raw)
}
