package resourcepool

import (
	"math/rand"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"gotest.tools/assert"

	"github.com/determined-ai/schedsim/internal/platform"
	"github.com/determined-ai/schedsim/internal/prom"
)

func hosts(n, cores int, ram float64) []platform.Host {
	var hs []platform.Host
	for i := 0; i < n; i++ {
		hs = append(hs, platform.Host{
			Name: string(rune('a' + i)), Cores: cores, RAM: platform.Bytes(ram), Speed: 1,
		})
	}
	return hs
}

func TestNew(t *testing.T) {
	_, err := New("empty", nil)
	assert.ErrorContains(t, err, "at least one host")

	_, err = New("dup", append(hosts(1, 1, 1), hosts(1, 1, 1)...))
	assert.ErrorContains(t, err, "duplicate host")

	p, err := New("p", hosts(3, 4, 100))
	assert.NilError(t, err)
	assert.DeepEqual(t, p.Hosts(), []string{"a", "b", "c"})
	assert.Equal(t, p.TotalCores(), 12)
	assert.Equal(t, p.IdleCores(), 12)
}

func TestTryAllocateIsAtomic(t *testing.T) {
	p, err := New("p", hosts(2, 4, 100))
	require.NoError(t, err)

	_, ok := p.TryAllocate(map[string]Amount{"a": {Cores: 2, RAM: 10}, "b": {Cores: 5}})
	require.False(t, ok)
	require.Equal(t, 4, p.AvailableCores("a"))

	alloc, ok := p.TryAllocate(map[string]Amount{"b": {Cores: 3, RAM: 60}, "a": {Cores: 1}})
	require.True(t, ok)
	require.Equal(t, []string{"a", "b"}, alloc.Hosts())
	require.Equal(t, 4, alloc.TotalCores())
	require.Equal(t, 40.0, p.AvailableRAM("b"))
	require.Equal(t, 4, p.IdleCores())

	_, ok = p.TryAllocate(map[string]Amount{"b": {Cores: 1, RAM: 41}})
	require.False(t, ok)
	_, ok = p.TryAllocate(map[string]Amount{"z": {Cores: 1}})
	require.False(t, ok)
	_, ok = p.TryAllocate(nil)
	require.False(t, ok)

	p.Release(alloc)
	require.True(t, alloc.Released())
	require.Equal(t, 8, p.IdleCores())
	require.Equal(t, 0, p.Allocations())
}

func TestCoresInUseGauge(t *testing.T) {
	p, err := New("gauge", hosts(2, 4, 100))
	require.NoError(t, err)
	gauge := prom.CoresInUse.WithLabelValues("gauge")

	alloc, ok := p.TryAllocate(map[string]Amount{"a": {Cores: 3}, "b": {Cores: 1}})
	require.True(t, ok)
	require.Equal(t, 4.0, testutil.ToFloat64(gauge))

	p.Release(alloc)
	require.Equal(t, 0.0, testutil.ToFloat64(gauge))
}

func TestNestedPoolGaugeDeletedOnRelease(t *testing.T) {
	p, err := New("outer", hosts(2, 4, 100))
	require.NoError(t, err)
	alloc, ok := p.TryAllocate(map[string]Amount{"a": {Cores: 4}, "b": {Cores: 4}})
	require.True(t, ok)

	nested := NewFromAllocation("outer/job-1", alloc)
	inner, ok := nested.TryAllocate(map[string]Amount{"a": {Cores: 2}})
	require.True(t, ok)
	require.Equal(t, 2.0, testutil.ToFloat64(prom.CoresInUse.WithLabelValues("outer/job-1")))

	p.Release(alloc)
	require.False(t, prom.CoresInUse.DeleteLabelValues("outer/job-1"))
	nested.Release(inner)
	require.False(t, prom.CoresInUse.DeleteLabelValues("outer/job-1"))
	require.Equal(t, 0.0, testutil.ToFloat64(prom.CoresInUse.WithLabelValues("outer")))
}

func TestReleaseMisuse(t *testing.T) {
	p, err := New("p", hosts(1, 4, 100))
	require.NoError(t, err)
	other, err := New("other", hosts(1, 4, 100))
	require.NoError(t, err)

	alloc, ok := p.TryAllocate(map[string]Amount{"a": {Cores: 1}})
	require.True(t, ok)
	require.Panics(t, func() { other.Release(alloc) })
	p.Release(alloc)
	require.Panics(t, func() { p.Release(alloc) })
	require.Panics(t, func() { p.Release(nil) })
}

func TestHostOff(t *testing.T) {
	p, err := New("p", hosts(2, 4, 100))
	require.NoError(t, err)
	p.SetHostOn("a", false)
	require.False(t, p.IsHostOn("a"))
	require.Equal(t, 4, p.IdleCores())
	_, ok := p.TryAllocate(map[string]Amount{"a": {Cores: 1}})
	require.False(t, ok)
	require.True(t, p.CanEverFit(Amount{Cores: 4, RAM: 100}))
	require.False(t, p.CanEverFit(Amount{Cores: 5}))
}

func TestNestedPool(t *testing.T) {
	parent, err := New("batch", hosts(4, 8, 80))
	require.NoError(t, err)
	alloc, ok := parent.TryAllocate(map[string]Amount{"b": {Cores: 2, RAM: 20}, "c": {Cores: 2, RAM: 20}})
	require.True(t, ok)

	nested := NewFromAllocation("pilot", alloc)
	require.Equal(t, alloc, nested.Parent())
	require.Equal(t, []string{"b", "c"}, nested.Hosts())
	require.Equal(t, 4, nested.TotalCores())
	require.Equal(t, Amount{Cores: 2, RAM: 20}, nested.Capacity("b"))
	require.False(t, nested.Has("a"))

	_, ok = nested.TryAllocate(map[string]Amount{"b": {Cores: 3}})
	require.False(t, ok, "nested pool must not see the parent's idle cores")
	inner, ok := nested.TryAllocate(map[string]Amount{"b": {Cores: 2, RAM: 20}})
	require.True(t, ok)
	require.Equal(t, 28, parent.IdleCores())
	nested.Release(inner)

	parent.Release(alloc)
	require.Panics(t, func() { NewFromAllocation("late", alloc) })
}

func TestConservation(t *testing.T) {
	p, err := New("p", hosts(3, 8, 64))
	require.NoError(t, err)
	r := rand.New(rand.NewSource(7))
	var live []*Allocation
	for i := 0; i < 2000; i++ {
		if len(live) > 0 && r.Intn(3) == 0 {
			k := r.Intn(len(live))
			p.Release(live[k])
			live = append(live[:k], live[k+1:]...)
		} else {
			h := p.Hosts()[r.Intn(3)]
			if alloc, ok := p.TryAllocate(map[string]Amount{
				h: {Cores: 1 + r.Intn(4), RAM: float64(r.Intn(32))},
			}); ok {
				live = append(live, alloc)
			}
		}
		for _, h := range p.Hosts() {
			avail := p.Available(h)
			require.GreaterOrEqual(t, avail.Cores, 0)
			require.GreaterOrEqual(t, avail.RAM, 0.0)
		}
	}
}
