package batch

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/determined-ai/schedsim/internal/failures"
	"github.com/determined-ai/schedsim/internal/job"
)

func TestParseArgs(t *testing.T) {
	req, user, err := ParseArgs(map[string]string{"-N": "2", "-t": "90.5", "-c": "4", "-u": "alice"})
	require.NoError(t, err)
	require.Equal(t, job.Request{Nodes: 2, CoresPerNode: 4, Walltime: 90.5}, req)
	require.Equal(t, "alice", user)

	req, _, err = ParseArgs(Args(job.Request{Nodes: 1, CoresPerNode: 8, Walltime: 60}))
	require.NoError(t, err)
	require.Equal(t, job.Request{Nodes: 1, CoresPerNode: 8, Walltime: 60}, req)

	for _, args := range []map[string]string{
		nil,
		{"-N": "2", "-c": "4"},
		{"-N": "two", "-t": "60", "-c": "4"},
		{"-N": "2", "-t": "60", "-c": "0"},
		{"-N": "2", "-t": "0", "-c": "4"},
		{"-N": "2", "-t": "-5", "-c": "4"},
		{"-N": "2", "-t": "soon", "-c": "4"},
		{"-N": "1.5", "-t": "60", "-c": "4"},
	} {
		_, _, err := ParseArgs(args)
		require.ErrorIs(t, err, failures.ErrInvalidArgument, "%v", args)
	}
}
