package platform

import (
	"os"

	"github.com/ghodss/yaml"
	"github.com/pkg/errors"

	"github.com/determined-ai/schedsim/pkg/actor"
	"github.com/determined-ai/schedsim/pkg/check"
)

// Route is a link declared between two named hosts.
type Route struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
	Link
}

// Config describes a platform in YAML.
type Config struct {
	Hosts       []Host  `json:"hosts"`
	DefaultLink Link    `json:"default_link"`
	Routes      []Route `json:"routes"`
}

// Validate implements the check.Validatable interface.
func (c Config) Validate() []error {
	return []error{
		check.GreaterThan(float64(len(c.Hosts)), 0, "a platform needs at least one host"),
		check.GreaterThanOrEqualTo(c.DefaultLink.Latency, 0, "latency must not be negative"),
	}
}

// ParseConfig parses and validates a platform description.
func ParseConfig(raw []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, errors.Wrap(err, "parsing platform")
	}
	if err := check.Validate(c); err != nil {
		return nil, err
	}
	return &c, nil
}

// LoadConfig reads a platform description from a file.
func LoadConfig(path string) (*Config, error) {
	raw, err := os.ReadFile(path) // #nosec G304
	if err != nil {
		return nil, errors.Wrapf(err, "reading platform file %s", path)
	}
	return ParseConfig(raw)
}

// Build instantiates the described platform.
func (c Config) Build(system *actor.System) (*Simple, error) {
	p, err := NewSimple(system, c.Hosts, c.DefaultLink)
	if err != nil {
		return nil, err
	}
	for _, r := range c.Routes {
		if _, ok := p.Host(r.Source); !ok {
			return nil, errors.Errorf("route from unknown host %s", r.Source)
		}
		if _, ok := p.Host(r.Destination); !ok {
			return nil, errors.Errorf("route to unknown host %s", r.Destination)
		}
		p.AddRoute(r.Source, r.Destination, r.Link)
	}
	return p, nil
}
