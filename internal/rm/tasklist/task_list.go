// Package tasklist keeps the jobs known to a batch scheduler in submission order.
package tasklist

import (
	"github.com/emirpasic/gods/sets/treeset"

	"github.com/determined-ai/schedsim/internal/job"
	"github.com/determined-ai/schedsim/internal/rm/resourcepool"
	"github.com/determined-ai/schedsim/pkg/actor"
)

// Record is a job queued on, or running in, a batch scheduler.
type Record struct {
	Job        job.Job
	Request    job.Request
	Username   string
	Notify     *actor.Ref
	SubmitDate float64
	Seq        uint64

	// Set once the job runs.
	Allocation *resourcepool.Allocation
	StartDate  float64
	Service    *actor.Ref
	Timer      *actor.Ref
}

// Running returns true once the record holds an allocation.
func (r *Record) Running() bool {
	return r.Allocation != nil
}

func recordComparator(a, b interface{}) int {
	r1, r2 := a.(*Record), b.(*Record)
	switch {
	case r1.Seq < r2.Seq:
		return -1
	case r1.Seq > r2.Seq:
		return 1
	default:
		return 0
	}
}

// TaskList maintains all records in submission order.
type TaskList struct {
	bySeq  *treeset.Set
	byID   map[string]*Record
	nextID uint64
}

// New constructs a new TaskList.
func New() *TaskList {
	return &TaskList{
		bySeq: treeset.NewWith(recordComparator),
		byID:  make(map[string]*Record),
	}
}

// Len gives number of records in the TaskList.
func (l *TaskList) Len() int {
	return len(l.byID)
}

// Get returns the record of a job.
func (l *TaskList) Get(id string) (*Record, bool) {
	r, ok := l.byID[id]
	return r, ok
}

// Add appends a record to the queue, stamping its sequence number. It returns false if the job is
// already known.
func (l *TaskList) Add(r *Record) bool {
	if _, ok := l.byID[r.Job.ID()]; ok {
		return false
	}
	l.nextID++
	r.Seq = l.nextID
	l.bySeq.Add(r)
	l.byID[r.Job.ID()] = r
	return true
}

// Remove deletes the record of a job, returning it or nil.
func (l *TaskList) Remove(id string) *Record {
	r, ok := l.byID[id]
	if !ok {
		return nil
	}
	l.bySeq.Remove(r)
	delete(l.byID, id)
	return r
}

// Iterator returns an iterator over the records in submission order.
func (l *TaskList) Iterator() *Iterator {
	return &Iterator{it: l.bySeq.Iterator()}
}

// Pending returns the records waiting for resources, in submission order.
func (l *TaskList) Pending() []*Record {
	var pending []*Record
	for it := l.Iterator(); it.Next(); {
		if !it.Value().Running() {
			pending = append(pending, it.Value())
		}
	}
	return pending
}

// Running returns the records holding resources, in submission order.
func (l *TaskList) Running() []*Record {
	var running []*Record
	for it := l.Iterator(); it.Next(); {
		if it.Value().Running() {
			running = append(running, it.Value())
		}
	}
	return running
}

// Iterator walks a TaskList.
type Iterator struct {
	it treeset.Iterator
}

// Next moves the iterator forward, returning false at the end.
func (i *Iterator) Next() bool {
	return i.it.Next()
}

// Value returns the current record.
func (i *Iterator) Value() *Record {
	return i.it.Value().(*Record)
}
