// Package backfill plans conservative backfilling: every queued job holds a reservation of whole
// nodes, and a job may only be placed in a slot that leaves every earlier reservation intact.
package backfill

import (
	"math"
	"sort"

	"github.com/pkg/errors"
	"golang.org/x/exp/maps"
)

// Reservation is a number of nodes held over [Start, End).
type Reservation struct {
	Nodes int
	Start float64
	End   float64
}

// Timeline tracks node reservations over simulated time.
type Timeline struct {
	nodes        int
	reservations map[string]Reservation
}

// NewTimeline returns an empty timeline over a number of nodes.
func NewTimeline(nodes int) *Timeline {
	return &Timeline{nodes: nodes, reservations: make(map[string]Reservation)}
}

// Nodes returns the number of nodes of the timeline.
func (t *Timeline) Nodes() int {
	return t.nodes
}

// Get returns the reservation of a job.
func (t *Timeline) Get(id string) (Reservation, bool) {
	r, ok := t.reservations[id]
	return r, ok
}

// Add records a reservation for a job, replacing any previous one.
func (t *Timeline) Add(id string, r Reservation) error {
	if r.Nodes > t.nodes || r.Nodes <= 0 {
		return errors.Errorf("reservation of %d nodes on a %d node timeline", r.Nodes, t.nodes)
	}
	t.reservations[id] = r
	return nil
}

// Remove drops the reservation of a job.
func (t *Timeline) Remove(id string) {
	delete(t.reservations, id)
}

// UsedAt returns the nodes reserved at a date.
func (t *Timeline) UsedAt(date float64) int {
	used := 0
	for _, r := range t.reservations {
		if r.Start <= date && date < r.End {
			used += r.Nodes
		}
	}
	return used
}

// EarliestStart returns the earliest date, no earlier than now, at which nodes are free for the
// whole duration without overlapping any existing reservation.
func (t *Timeline) EarliestStart(now float64, nodes int, duration float64) (float64, error) {
	if nodes > t.nodes || nodes <= 0 {
		return 0, errors.Errorf("cannot reserve %d nodes on a %d node timeline", nodes, t.nodes)
	}
	candidates := []float64{now}
	for _, r := range t.reservations {
		if r.End > now {
			candidates = append(candidates, r.End)
		}
	}
	sort.Float64s(candidates)
	for _, start := range candidates {
		if t.fits(start, start+duration, nodes) {
			return start, nil
		}
	}
	// The latest reservation end always fits; this is only reached for an infinite duration.
	return math.Inf(1), nil
}

// fits checks the usage at the start of the window and at every reservation start inside it,
// which is where usage can grow.
func (t *Timeline) fits(start, end float64, nodes int) bool {
	if t.UsedAt(start)+nodes > t.nodes {
		return false
	}
	for _, r := range t.reservations {
		if r.Start > start && r.Start < end && t.UsedAt(r.Start)+nodes > t.nodes {
			return false
		}
	}
	return true
}

// NextStartAfter returns the earliest reservation start strictly after now among the ids.
func (t *Timeline) NextStartAfter(now float64, ids []string) (float64, bool) {
	next, found := math.Inf(1), false
	for _, id := range ids {
		if r, ok := t.reservations[id]; ok && r.Start > now && r.Start < next {
			next, found = r.Start, true
		}
	}
	return next, found
}

// IDs returns the ids holding reservations, in no particular order.
func (t *Timeline) IDs() []string {
	return maps.Keys(t.reservations)
}

// Compact moves every queued reservation, in queue order, to its earliest possible start. A
// reservation never moves later, since its previous slot is still free when it is re-planned.
func (t *Timeline) Compact(now float64, queue []string) {
	for _, id := range queue {
		r, ok := t.reservations[id]
		if !ok {
			continue
		}
		duration := r.End - r.Start
		t.Remove(id)
		start, err := t.EarliestStart(now, r.Nodes, duration)
		if err != nil || start > r.Start {
			start = math.Max(r.Start, now)
		}
		t.reservations[id] = Reservation{Nodes: r.Nodes, Start: start, End: start + duration}
	}
}
