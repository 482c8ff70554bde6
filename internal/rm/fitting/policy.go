// Package fitting implements the host selection policies of compute services.
package fitting

import (
	"strings"

	"github.com/huandu/xstrings"

	"github.com/determined-ai/schedsim/internal/failures"
)

// Policy is a host selection policy.
type Policy string

// Host selection policies. Delegated services pick hosts FirstFit and order their queue with
// conservative backfilling.
const (
	FirstFit   Policy = "first_fit"
	BestFit    Policy = "best_fit"
	RoundRobin Policy = "round_robin"
	Delegated  Policy = "delegated"
)

// Policies lists every policy.
var Policies = []Policy{FirstFit, BestFit, RoundRobin, Delegated}

var aliases = map[string]Policy{
	"firstfit":       FirstFit,
	"bestfit":        BestFit,
	"roundrobin":     RoundRobin,
	"delegated":      Delegated,
	"conservativebf": Delegated,
}

// ParsePolicy resolves a policy name. Names are matched regardless of case and separators, so
// "FirstFit", "first_fit", "first-fit" and "FIRSTFIT" are equivalent.
func ParsePolicy(name string) (Policy, error) {
	normalized := xstrings.ToSnakeCase(strings.TrimSpace(name))
	normalized = strings.NewReplacer("_", "", "-", "", " ", "").Replace(normalized)
	if p, ok := aliases[normalized]; ok {
		return p, nil
	}
	return "", failures.InvalidArgument("unknown host selection policy %q", name)
}

// MustParsePolicy is ParsePolicy for names known to be valid.
func MustParsePolicy(name string) Policy {
	p, err := ParsePolicy(name)
	if err != nil {
		panic(err)
	}
	return p
}
