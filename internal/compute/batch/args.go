package batch

import (
	"strconv"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/determined-ai/schedsim/internal/failures"
	"github.com/determined-ai/schedsim/internal/job"
)

// Submission argument keys.
const (
	NodesArg    = "-N"
	WalltimeArg = "-t"
	CoresArg    = "-c"
	UsernameArg = "-u"
)

// Args builds the submission arguments of a request.
func Args(r job.Request) map[string]string {
	return map[string]string{
		NodesArg:    strconv.Itoa(r.Nodes),
		WalltimeArg: strconv.FormatFloat(r.Walltime, 'f', -1, 64),
		CoresArg:    strconv.Itoa(r.CoresPerNode),
	}
}

func positiveInt(args map[string]string, key string) (int, error) {
	raw, ok := args[key]
	if !ok {
		return 0, errors.Errorf("missing argument %s", key)
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.Errorf("argument %s=%q is not an integer", key, raw)
	}
	if v <= 0 {
		return 0, errors.Errorf("argument %s must be positive, got %d", key, v)
	}
	return v, nil
}

// ParseArgs reads the request and the optional username of a submission. Walltimes are in
// seconds.
func ParseArgs(args map[string]string) (job.Request, string, error) {
	var merr *multierror.Error
	nodes, err := positiveInt(args, NodesArg)
	merr = multierror.Append(merr, err)
	cores, err := positiveInt(args, CoresArg)
	merr = multierror.Append(merr, err)

	var walltime float64
	if raw, ok := args[WalltimeArg]; !ok {
		merr = multierror.Append(merr, errors.Errorf("missing argument %s", WalltimeArg))
	} else if walltime, err = strconv.ParseFloat(raw, 64); err != nil {
		merr = multierror.Append(merr, errors.Errorf("argument %s=%q is not a number", WalltimeArg, raw))
	} else if walltime <= 0 {
		merr = multierror.Append(merr, errors.Errorf("argument %s must be positive, got %v",
			WalltimeArg, walltime))
	}

	if err := merr.ErrorOrNil(); err != nil {
		return job.Request{}, "", failures.InvalidArgument("%v", err)
	}
	return job.Request{Nodes: nodes, CoresPerNode: cores, Walltime: walltime}, args[UsernameArg], nil
}
