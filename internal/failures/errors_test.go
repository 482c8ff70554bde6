package failures

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestSentinelsSurviveWrapping(t *testing.T) {
	err := errors.Wrap(InvalidArgument("bad -N value %q", "x"), "submitting job")
	require.ErrorIs(t, err, ErrInvalidArgument)
	require.NotErrorIs(t, err, ErrNotAllowed)
	require.Contains(t, err.Error(), `bad -N value "x"`)
}

func TestCauseOf(t *testing.T) {
	require.Nil(t, CauseOf(nil))
	require.IsType(t, NotEnoughResourcesCause{}, CauseOf(NotEnoughResources("4 cores")))
	require.IsType(t, NotAllowedCause{}, CauseOf(NotAllowed("finished")))
	require.Equal(t, "computation failed: boom", CauseOf(errors.New("boom")).String())
}
