package job

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
)

// ParallelModel prices the execution of a number of flops over a number of cores.
type ParallelModel interface {
	// Duration returns the simulated seconds needed to compute flops on cores of the given
	// per-core speed.
	Duration(flops float64, cores int, speed float64) float64
	fmt.Stringer
}

// ConstantEfficiency spreads the work evenly over the cores, each running at the given
// efficiency.
type ConstantEfficiency struct {
	Efficiency float64
}

// Duration implements ParallelModel.
func (m ConstantEfficiency) Duration(flops float64, cores int, speed float64) float64 {
	return flops / (float64(cores) * m.Efficiency * speed)
}

func (m ConstantEfficiency) String() string {
	return fmt.Sprintf("constant_efficiency(%v)", m.Efficiency)
}

// Amdahl runs an Alpha fraction of the work in parallel and the rest sequentially.
type Amdahl struct {
	Alpha float64
}

// Duration implements ParallelModel.
func (m Amdahl) Duration(flops float64, cores int, speed float64) float64 {
	parallel := m.Alpha * flops / float64(cores)
	sequential := (1 - m.Alpha) * flops
	return (parallel + sequential) / speed
}

func (m Amdahl) String() string {
	return fmt.Sprintf("amdahl(%v)", m.Alpha)
}

// CustomModel delegates to a function returning the flops each thread has to compute.
type CustomModel struct {
	PerThreadWork func(flops float64, cores int) float64
}

// Duration implements ParallelModel.
func (m CustomModel) Duration(flops float64, cores int, speed float64) float64 {
	return m.PerThreadWork(flops, cores) / speed
}

func (m CustomModel) String() string {
	return "custom"
}

// DefaultModel is perfectly efficient parallelism.
var DefaultModel ParallelModel = ConstantEfficiency{Efficiency: 1}

func validateModel(m ParallelModel) error {
	switch typed := m.(type) {
	case nil:
		return nil
	case ConstantEfficiency:
		if typed.Efficiency <= 0 || typed.Efficiency > 1 || math.IsNaN(typed.Efficiency) {
			return errors.Errorf("efficiency must be in (0, 1], got %v", typed.Efficiency)
		}
	case Amdahl:
		if typed.Alpha < 0 || typed.Alpha > 1 || math.IsNaN(typed.Alpha) {
			return errors.Errorf("alpha must be in [0, 1], got %v", typed.Alpha)
		}
	case CustomModel:
		if typed.PerThreadWork == nil {
			return errors.Errorf("custom model needs a work function")
		}
	}
	return nil
}
