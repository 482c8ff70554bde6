package fitting

import (
	"sort"

	"github.com/determined-ai/schedsim/internal/rm/resourcepool"
)

// Request is the need of one unit of work on a single host.
type Request struct {
	MinCores int
	MaxCores int
	RAM      float64
}

// Placement is where, and on how many cores, a request fits.
type Placement struct {
	Host  string
	Cores int
	RAM   float64
}

// Selector applies a policy to a pool. Only RoundRobin carries state between calls.
type Selector struct {
	policy Policy
	cursor int
}

// NewSelector returns a selector for the policy.
func NewSelector(policy Policy) *Selector {
	return &Selector{policy: policy}
}

// Policy returns the policy of the selector.
func (s *Selector) Policy() Policy {
	return s.policy
}

func satisfies(pool *resourcepool.Pool, host string, minCores int, ram float64) bool {
	if !pool.IsHostOn(host) {
		return false
	}
	available := pool.Available(host)
	return available.Cores >= minCores && available.RAM >= ram
}

// Select picks one host able to run the request right now and grants it as many cores as the
// request can use, up to MaxCores. It is deterministic and breaks ties by canonical host order.
func (s *Selector) Select(pool *resourcepool.Pool, req Request) (Placement, bool) {
	hosts := pool.Hosts()
	var chosen string
	switch s.policy {
	case BestFit:
		candidates := s.bestFit(pool, hosts, req.MinCores, req.RAM)
		if len(candidates) == 0 {
			return Placement{}, false
		}
		chosen = candidates[0]
	case RoundRobin:
		picked, ok := s.roundRobin(pool, hosts, 1, req.MinCores, req.RAM)
		if !ok {
			return Placement{}, false
		}
		chosen = picked[0]
	default:
		picked, ok := firstFit(pool, hosts, 1, req.MinCores, req.RAM)
		if !ok {
			return Placement{}, false
		}
		chosen = picked[0]
	}
	cores := pool.AvailableCores(chosen)
	if req.MaxCores > 0 && cores > req.MaxCores {
		cores = req.MaxCores
	}
	return Placement{Host: chosen, Cores: cores, RAM: req.RAM}, true
}

// SelectN picks n distinct hosts, each able to hold the amount right now. Nothing changes,
// including the round robin cursor, unless all n hosts are found.
func (s *Selector) SelectN(
	pool *resourcepool.Pool, n int, amount resourcepool.Amount,
) ([]string, bool) {
	if n <= 0 {
		return nil, false
	}
	hosts := pool.Hosts()
	switch s.policy {
	case BestFit:
		candidates := s.bestFit(pool, hosts, amount.Cores, amount.RAM)
		if len(candidates) < n {
			return nil, false
		}
		return candidates[:n], true
	case RoundRobin:
		return s.roundRobin(pool, hosts, n, amount.Cores, amount.RAM)
	default:
		return firstFit(pool, hosts, n, amount.Cores, amount.RAM)
	}
}

func firstFit(pool *resourcepool.Pool, hosts []string, n, cores int, ram float64) ([]string, bool) {
	var picked []string
	for _, h := range hosts {
		if satisfies(pool, h, cores, ram) {
			picked = append(picked, h)
			if len(picked) == n {
				return picked, true
			}
		}
	}
	return nil, false
}

// bestFit orders the satisfying hosts by fewest idle cores, then lowest idle RAM, then canonical
// order.
func (s *Selector) bestFit(pool *resourcepool.Pool, hosts []string, cores int, ram float64) []string {
	var candidates []string
	for _, h := range hosts {
		if satisfies(pool, h, cores, ram) {
			candidates = append(candidates, h)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := pool.Available(candidates[i]), pool.Available(candidates[j])
		if a.Cores != b.Cores {
			return a.Cores < b.Cores
		}
		return a.RAM < b.RAM
	})
	return candidates
}

func (s *Selector) roundRobin(
	pool *resourcepool.Pool, hosts []string, n, cores int, ram float64,
) ([]string, bool) {
	var picked []string
	last := 0
	for i := 0; i < len(hosts); i++ {
		idx := (s.cursor + i) % len(hosts)
		if satisfies(pool, hosts[idx], cores, ram) {
			picked = append(picked, hosts[idx])
			last = idx
			if len(picked) == n {
				s.cursor = (last + 1) % len(hosts)
				return picked, true
			}
		}
	}
	return nil, false
}
