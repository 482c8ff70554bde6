// Package platform describes the simulated hardware: compute hosts, their on/off state and the
// network links between them.
package platform

import (
	"encoding/json"
	"strconv"
	"strings"

	units "github.com/docker/go-units"
	"github.com/pkg/errors"

	"github.com/determined-ai/schedsim/pkg/check"
)

// Host is a multicore compute host. Speed is the per-core speed in flop/s and RAM is in bytes.
type Host struct {
	Name  string  `json:"name"`
	Cores int     `json:"cores"`
	RAM   Bytes   `json:"ram"`
	Speed float64 `json:"speed"`
}

// Validate implements the check.Validatable interface.
func (h Host) Validate() []error {
	return []error{
		check.NotEmpty(h.Name, "host name must be set"),
		check.GreaterThan(float64(h.Cores), 0, "host %s must have at least one core", h.Name),
		check.GreaterThanOrEqualTo(float64(h.RAM), 0, "host %s RAM must not be negative", h.Name),
		check.GreaterThan(h.Speed, 0, "host %s speed must be positive", h.Name),
	}
}

// SameCapacity returns true if both hosts have identical core count, speed and RAM.
func (h Host) SameCapacity(other Host) bool {
	return h.Cores == other.Cores && h.Speed == other.Speed && h.RAM == other.RAM
}

// Bytes is an amount of bytes. It unmarshals from a number or from a human-readable string such
// as "16GiB" or "125MB".
type Bytes float64

// UnmarshalJSON implements the json.Unmarshaler interface.
func (b *Bytes) UnmarshalJSON(data []byte) error {
	var number float64
	if err := json.Unmarshal(data, &number); err == nil {
		*b = Bytes(number)
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return errors.Wrap(err, "bytes must be a number or a string")
	}
	parsed, err := ParseBytes(raw)
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}

// ParseBytes parses a human-readable size. Binary suffixes (KiB, GiB) use powers of 1024 and
// decimal suffixes (kB, GB) use powers of 1000.
func ParseBytes(raw string) (Bytes, error) {
	if number, err := strconv.ParseFloat(raw, 64); err == nil {
		return Bytes(number), nil
	}
	if strings.HasSuffix(strings.ToLower(raw), "ib") {
		size, err := units.RAMInBytes(raw)
		if err != nil {
			return 0, errors.Wrapf(err, "parsing %q", raw)
		}
		return Bytes(size), nil
	}
	size, err := units.FromHumanSize(raw)
	if err != nil {
		return 0, errors.Wrapf(err, "parsing %q", raw)
	}
	return Bytes(size), nil
}

func (b Bytes) String() string {
	return units.BytesSize(float64(b))
}
