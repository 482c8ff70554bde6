package job

import (
	"github.com/determined-ai/schedsim/internal/failures"
)

// ExecutionRecord is one attempt at running an action. Records are values: the history hands out
// copies and the current attempt is replaced, never edited in place.
type ExecutionRecord struct {
	Start          float64
	End            float64
	CoresAllocated int
	RAMAllocated   float64
	ExecutionHost  string
	PhysicalHost   string
	FailureCause   failures.Cause
}

// Ended returns true once the attempt has an end date.
func (r ExecutionRecord) Ended() bool {
	return r.End != NotSet
}

// history is an append-only sequence of attempts.
type history []ExecutionRecord

func (h history) current() (ExecutionRecord, bool) {
	if len(h) == 0 {
		return ExecutionRecord{}, false
	}
	return h[len(h)-1], true
}

func (h history) withAttempt(r ExecutionRecord) history {
	r.End = NotSet
	r.FailureCause = nil
	return append(h, r)
}

func (h history) withCurrentEnded(end float64, cause failures.Cause) history {
	r, ok := h.current()
	if !ok || r.Ended() {
		return h
	}
	r.End = end
	r.FailureCause = cause
	stamped := make(history, len(h))
	copy(stamped, h)
	stamped[len(stamped)-1] = r
	return stamped
}
