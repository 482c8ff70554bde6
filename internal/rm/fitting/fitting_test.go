package fitting

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"gotest.tools/assert"

	"github.com/determined-ai/schedsim/internal/failures"
	"github.com/determined-ai/schedsim/internal/platform"
	"github.com/determined-ai/schedsim/internal/rm/resourcepool"
)

func newPool(t *testing.T, cores ...int) *resourcepool.Pool {
	var hosts []platform.Host
	for i, c := range cores {
		hosts = append(hosts, platform.Host{
			Name: fmt.Sprintf("h%d", i+1), Cores: c, RAM: 100, Speed: 1,
		})
	}
	p, err := resourcepool.New("test", hosts)
	require.NoError(t, err)
	return p
}

func TestParsePolicy(t *testing.T) {
	for name, expected := range map[string]Policy{
		"FirstFit":        FirstFit,
		"first_fit":       FirstFit,
		"first-fit":       FirstFit,
		"FIRSTFIT":        FirstFit,
		"BestFit":         BestFit,
		"round_robin":     RoundRobin,
		"ROUNDROBIN":      RoundRobin,
		"delegated":       Delegated,
		"conservative_bf": Delegated,
	} {
		t.Run(name, func(t *testing.T) {
			p, err := ParsePolicy(name)
			assert.NilError(t, err)
			assert.Equal(t, p, expected)
		})
	}
	_, err := ParsePolicy("worst_fit")
	require.ErrorIs(t, err, failures.ErrInvalidArgument)
	require.Panics(t, func() { MustParsePolicy("") })
}

func TestFirstFitDeterminism(t *testing.T) {
	pool := newPool(t, 4, 4)
	for i := 0; i < 10; i++ {
		placement, ok := NewSelector(FirstFit).Select(pool, Request{MinCores: 2, MaxCores: 2})
		require.True(t, ok)
		require.Equal(t, Placement{Host: "h1", Cores: 2}, placement)
	}
}

func TestBestFitMinimization(t *testing.T) {
	pool := newPool(t, 8, 9)
	placement, ok := NewSelector(BestFit).Select(pool, Request{MinCores: 8, MaxCores: 8})
	require.True(t, ok)
	require.Equal(t, "h1", placement.Host)

	pool = newPool(t, 9, 8)
	placement, ok = NewSelector(BestFit).Select(pool, Request{MinCores: 8, MaxCores: 8})
	require.True(t, ok)
	require.Equal(t, "h2", placement.Host)
}

func TestBestFitTies(t *testing.T) {
	pool := newPool(t, 4, 4, 4)
	_, ok := pool.TryAllocate(map[string]resourcepool.Amount{"h2": {RAM: 50}})
	require.True(t, ok)
	placement, ok := NewSelector(BestFit).Select(pool, Request{MinCores: 1, MaxCores: 1})
	require.True(t, ok)
	require.Equal(t, "h2", placement.Host)

	hosts, ok := NewSelector(BestFit).SelectN(pool, 2, resourcepool.Amount{Cores: 4})
	require.True(t, ok)
	require.Equal(t, []string{"h2", "h1"}, hosts)
}

func TestRoundRobinFairness(t *testing.T) {
	pool := newPool(t, 4, 4, 4, 4)
	s := NewSelector(RoundRobin)
	for i := 0; i < 16; i++ {
		placement, ok := s.Select(pool, Request{MinCores: 1, MaxCores: 1})
		require.True(t, ok)
		require.Equal(t, fmt.Sprintf("h%d", i%4+1), placement.Host)
		_, ok = pool.TryAllocate(map[string]resourcepool.Amount{placement.Host: {Cores: 1}})
		require.True(t, ok)
	}
	_, ok := s.Select(pool, Request{MinCores: 1, MaxCores: 1})
	require.False(t, ok)
}

func TestRoundRobinSkipsAndKeepsCursorOnFailure(t *testing.T) {
	pool := newPool(t, 1, 4, 1)
	s := NewSelector(RoundRobin)
	_, ok := s.SelectN(pool, 2, resourcepool.Amount{Cores: 2})
	require.False(t, ok)
	placement, ok := s.Select(pool, Request{MinCores: 2, MaxCores: 8})
	require.True(t, ok)
	require.Equal(t, Placement{Host: "h2", Cores: 4}, placement)
	placement, ok = s.Select(pool, Request{MinCores: 1, MaxCores: 1})
	require.True(t, ok)
	require.Equal(t, "h3", placement.Host)
}

func TestSelectSkipsOffHosts(t *testing.T) {
	for _, policy := range Policies {
		t.Run(string(policy), func(t *testing.T) {
			pool := newPool(t, 4, 4)
			pool.SetHostOn("h1", false)
			placement, ok := NewSelector(policy).Select(pool, Request{MinCores: 1, MaxCores: 1})
			require.True(t, ok)
			require.Equal(t, "h2", placement.Host)

			_, ok = NewSelector(policy).SelectN(pool, 2, resourcepool.Amount{Cores: 1})
			require.False(t, ok)
		})
	}
}

func TestSelectRAM(t *testing.T) {
	pool := newPool(t, 4, 4)
	_, ok := pool.TryAllocate(map[string]resourcepool.Amount{"h1": {RAM: 60}})
	require.True(t, ok)
	placement, ok := NewSelector(FirstFit).Select(pool, Request{MinCores: 1, MaxCores: 4, RAM: 50})
	require.True(t, ok)
	require.Equal(t, Placement{Host: "h2", Cores: 4, RAM: 50}, placement)
	_, ok = NewSelector(Delegated).Select(pool, Request{MinCores: 1, RAM: 101})
	require.False(t, ok)
}
