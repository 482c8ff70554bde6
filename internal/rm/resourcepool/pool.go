// Package resourcepool keeps the per-host core and RAM bookkeeping of a compute service. It has
// no placement policy: callers decide where to allocate and the pool only admits or refuses.
package resourcepool

import (
	"fmt"

	"github.com/pkg/errors"
	"golang.org/x/exp/slices"

	"github.com/determined-ai/schedsim/internal/platform"
	"github.com/determined-ai/schedsim/internal/prom"
	"github.com/determined-ai/schedsim/pkg/check"
)

// Amount is a quantity of cores and RAM on one host.
type Amount struct {
	Cores int
	RAM   float64
}

// Fits returns true if the amount is no larger than other on both dimensions.
func (a Amount) Fits(other Amount) bool {
	return a.Cores <= other.Cores && a.RAM <= other.RAM
}

// Allocation is a successful reservation of amounts on one or more hosts of a pool.
type Allocation struct {
	pool     *Pool
	id       uint64
	amounts  map[string]Amount
	hosts    []string
	released bool
	nested   []*Pool
}

// Pool returns the pool the allocation was made in.
func (a *Allocation) Pool() *Pool { return a.pool }

// Hosts returns the allocated hosts in the pool's canonical order.
func (a *Allocation) Hosts() []string { return slices.Clone(a.hosts) }

// Amount returns the amount allocated on a host.
func (a *Allocation) Amount(host string) Amount { return a.amounts[host] }

// Released returns true once the allocation has been released.
func (a *Allocation) Released() bool { return a.released }

// TotalCores returns the cores allocated across all hosts.
func (a *Allocation) TotalCores() int {
	total := 0
	for _, amount := range a.amounts {
		total += amount.Cores
	}
	return total
}

func (a *Allocation) String() string {
	return fmt.Sprintf("allocation %d in %s on %v", a.id, a.pool.name, a.hosts)
}

type hostState struct {
	host     platform.Host
	capacity Amount
	inUse    Amount
	on       bool
}

// Pool tracks cores and RAM in use on a fixed set of hosts.
type Pool struct {
	name   string
	hosts  []string
	states map[string]*hostState
	live   map[*Allocation]bool
	nextID uint64
	parent *Allocation
}

// New returns a pool over the hosts, whose order becomes the canonical order.
func New(name string, hosts []platform.Host) (*Pool, error) {
	if len(hosts) == 0 {
		return nil, errors.Errorf("pool %s needs at least one host", name)
	}
	p := newPool(name)
	for _, h := range hosts {
		if _, ok := p.states[h.Name]; ok {
			return nil, errors.Errorf("pool %s: duplicate host %s", name, h.Name)
		}
		p.hosts = append(p.hosts, h.Name)
		p.states[h.Name] = &hostState{
			host: h, capacity: Amount{Cores: h.Cores, RAM: float64(h.RAM)}, on: true,
		}
	}
	return p, nil
}

// NewFromAllocation returns a pool whose capacity is exactly a live allocation of another pool.
// The nested pool never touches the parent pool; it only keeps a reference to the allocation it
// lives in.
func NewFromAllocation(name string, parent *Allocation) *Pool {
	check.Panic(check.True(!parent.released, "cannot nest a pool in a released allocation"))
	p := newPool(name)
	p.parent = parent
	parent.nested = append(parent.nested, p)
	for _, h := range parent.hosts {
		outer := parent.pool.states[h]
		p.hosts = append(p.hosts, h)
		p.states[h] = &hostState{host: outer.host, capacity: parent.amounts[h], on: outer.on}
	}
	return p
}

func newPool(name string) *Pool {
	return &Pool{name: name, states: make(map[string]*hostState), live: make(map[*Allocation]bool)}
}

// Name returns the name of the pool.
func (p *Pool) Name() string { return p.name }

// Parent returns the allocation a nested pool lives in, or nil.
func (p *Pool) Parent() *Allocation { return p.parent }

// Hosts returns the host names in canonical order.
func (p *Pool) Hosts() []string { return slices.Clone(p.hosts) }

// Has returns true if the host belongs to the pool.
func (p *Pool) Has(host string) bool {
	_, ok := p.states[host]
	return ok
}

// Host returns the description of a host of the pool.
func (p *Pool) Host(host string) platform.Host { return p.mustState(host).host }

// Capacity returns the cores and RAM of a host available to this pool.
func (p *Pool) Capacity(host string) Amount { return p.mustState(host).capacity }

// Available returns the idle cores and RAM of a host.
func (p *Pool) Available(host string) Amount {
	s := p.mustState(host)
	return Amount{Cores: s.capacity.Cores - s.inUse.Cores, RAM: s.capacity.RAM - s.inUse.RAM}
}

// AvailableCores returns the idle cores of a host.
func (p *Pool) AvailableCores(host string) int { return p.Available(host).Cores }

// AvailableRAM returns the idle RAM of a host.
func (p *Pool) AvailableRAM(host string) float64 { return p.Available(host).RAM }

// TotalCores returns the cores of every host of the pool.
func (p *Pool) TotalCores() int {
	total := 0
	for _, s := range p.states {
		total += s.capacity.Cores
	}
	return total
}

// IdleCores returns the idle cores of every host that is on.
func (p *Pool) IdleCores() int {
	idle := 0
	for _, s := range p.states {
		if s.on {
			idle += s.capacity.Cores - s.inUse.Cores
		}
	}
	return idle
}

// IsHostOn returns the on/off state of a host as last set on the pool.
func (p *Pool) IsHostOn(host string) bool { return p.mustState(host).on }

// SetHostOn records a host turning on or off. Allocations on the host are left to their owners.
func (p *Pool) SetHostOn(host string, on bool) {
	if s, ok := p.states[host]; ok {
		s.on = on
	}
}

// CanEverFit returns true if some host of the pool could hold the amount when fully idle.
func (p *Pool) CanEverFit(amount Amount) bool {
	for _, h := range p.hosts {
		if amount.Fits(p.states[h].capacity) {
			return true
		}
	}
	return false
}

// TryAllocate reserves the amounts on every listed host, or nothing at all. It returns false if
// any host is unknown, off, or lacks idle capacity.
func (p *Pool) TryAllocate(amounts map[string]Amount) (*Allocation, bool) {
	if len(amounts) == 0 {
		return nil, false
	}
	for host, amount := range amounts {
		s, ok := p.states[host]
		if !ok || !s.on || amount.Cores < 0 || amount.RAM < 0 {
			return nil, false
		}
		if !amount.Fits(p.Available(host)) {
			return nil, false
		}
	}

	p.nextID++
	alloc := &Allocation{pool: p, id: p.nextID, amounts: make(map[string]Amount, len(amounts))}
	for _, h := range p.hosts {
		amount, ok := amounts[h]
		if !ok {
			continue
		}
		s := p.states[h]
		s.inUse.Cores += amount.Cores
		s.inUse.RAM += amount.RAM
		alloc.amounts[h] = amount
		alloc.hosts = append(alloc.hosts, h)
	}
	p.live[alloc] = true
	p.observe()
	return alloc, true
}

// Release returns an allocation's amounts to the pool. Releasing an allocation twice, or one made
// in another pool, is a programming error and panics.
func (p *Pool) Release(alloc *Allocation) {
	check.Panic(check.True(alloc != nil && alloc.pool == p, "release of a foreign allocation in %s",
		p.name))
	check.Panic(check.True(p.live[alloc], "double release of %s", alloc))
	for h, amount := range alloc.amounts {
		s := p.states[h]
		s.inUse.Cores -= amount.Cores
		s.inUse.RAM -= amount.RAM
	}
	delete(p.live, alloc)
	alloc.released = true
	for _, nested := range alloc.nested {
		prom.CoresInUse.DeleteLabelValues(nested.name)
	}
	p.observe()
}

// Allocations returns the number of live allocations.
func (p *Pool) Allocations() int { return len(p.live) }

func (p *Pool) observe() {
	if p.parent != nil && p.parent.released {
		return
	}
	prom.CoresInUse.WithLabelValues(p.name).Set(float64(p.TotalCores() - p.sumIdle()))
}

func (p *Pool) sumIdle() int {
	idle := 0
	for _, s := range p.states {
		idle += s.capacity.Cores - s.inUse.Cores
	}
	return idle
}

func (p *Pool) mustState(host string) *hostState {
	s, ok := p.states[host]
	if !ok {
		panic(fmt.Sprintf("host %s is not in pool %s", host, p.name))
	}
	return s
}
