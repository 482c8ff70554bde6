package actor

import (
	"fmt"
	"math"

	"github.com/emirpasic/gods/trees/binaryheap"
	"github.com/emirpasic/gods/utils"
	log "github.com/sirupsen/logrus"
)

// phase orders messages sharing a delivery date.
type phase int

const (
	ordinary phase = iota
	// deadline messages are delivered after every ordinary message of their date, including the
	// ones sent while that date is being processed.
	deadline
)

// event is a message waiting in the system's queue for its delivery date.
type event struct {
	date      float64
	phase     phase
	seq       uint64
	sender    *Ref
	recipient *Ref
	message   Message
}

func eventComparator(a, b interface{}) int {
	e1, e2 := a.(*event), b.(*event)
	switch {
	case e1.date < e2.date:
		return -1
	case e1.date > e2.date:
		return 1
	}
	if c := utils.IntComparator(int(e1.phase), int(e2.phase)); c != 0 {
		return c
	}
	return utils.UInt64Comparator(e1.seq, e2.seq)
}

// System is a deterministic actor system. It owns the simulated clock and the queue of messages
// waiting for delivery; nothing happens between two calls that drive the clock.
type System struct {
	*Ref
	id string

	now        float64
	seq        uint64
	registered uint64
	delivered  uint64
	events     *binaryheap.Heap
	refs       map[Address]*Ref

	// receiving is the stack of actors currently inside Receive.
	receiving []*Ref
}

// NewSystem constructs a new actor system with its clock at date zero.
func NewSystem(id string) *System {
	system := &System{
		id:     id,
		events: binaryheap.NewWith(eventComparator),
		refs:   make(map[Address]*Ref),
	}
	system.Ref = newRef(system, nil, rootAddress, &rootActor{})
	system.refs[rootAddress] = system.Ref
	return system
}

type rootActor struct{}

func (r *rootActor) Receive(context *Context) error {
	switch context.Message().(type) {
	case PreStart, PostStop, ChildFailed, ChildStopped:
		return nil
	default:
		return ErrUnexpectedMessage(context)
	}
}

// ID returns the identifier of the system.
func (s *System) ID() string {
	return s.id
}

// Now returns the current simulated date in seconds.
func (s *System) Now() float64 {
	return s.now
}

// Pending returns the number of messages waiting for delivery.
func (s *System) Pending() int {
	return s.events.Size()
}

// Delivered returns the number of messages delivered so far.
func (s *System) Delivered() uint64 {
	return s.delivered
}

// Get returns the actor reference with the id, or nil if no actor with that id is found.
func (s *System) Get(address Address) *Ref {
	return s.refs[address]
}

// ActorOf adds the actor with the provided address. The second argument is true if the actor
// reference was created and false otherwise. The parent of the address must already exist.
func (s *System) ActorOf(address Address, actor Actor) (*Ref, bool) {
	parent := s.refs[address.Parent()]
	if parent == nil {
		return nil, false
	}
	return parent.createChild(address, actor)
}

// MustActorOf adds the actor with the provided address. It panics if a new actor was not created.
func (s *System) MustActorOf(address Address, actor Actor) *Ref {
	ref, created := s.ActorOf(address, actor)
	if !created {
		panic(fmt.Sprintf("actor %s was not created", address))
	}
	return ref
}

// Tell sends the specified message to the actor from outside the system.
func (s *System) Tell(actor *Ref, message Message) {
	actor.tellAfter(nil, 0, message)
}

// TellAt sends the specified message to the actor at the provided date. Dates in the past are
// delivered at the current date.
func (s *System) TellAt(actor *Ref, date float64, message Message) {
	s.schedule(math.Max(date, s.now), ordinary, nil, actor, message)
}

// Ask sends the specified message to the actor from outside the system and returns its answer.
func (s *System) Ask(actor *Ref, message Message) Response {
	return actor.ask(nil, message)
}

// Step delivers the next queued message, advancing the clock to its date. It returns false if
// no message was waiting.
func (s *System) Step() bool {
	value, ok := s.events.Pop()
	if !ok {
		return false
	}
	e := value.(*event)
	s.now = e.date
	s.delivered++
	e.recipient.deliver(e.sender, e.message, nil)
	return true
}

// Run delivers messages until none are left.
func (s *System) Run() {
	for s.Step() {
	}
}

// RunUntil delivers messages until the condition holds. It returns false if the queue drained
// before the condition held.
func (s *System) RunUntil(cond func() bool) bool {
	for !cond() {
		if !s.Step() {
			return false
		}
	}
	return true
}

// RunUntilDate delivers every message dated at or before the provided date and then moves the
// clock to that date. It returns true if the condition held before that.
func (s *System) RunUntilDate(date float64, cond func() bool) bool {
	for !cond() {
		value, ok := s.events.Peek()
		if !ok || value.(*event).date > date {
			if date > s.now {
				s.now = date
			}
			return cond()
		}
		s.Step()
	}
	return true
}

// Advance delivers every message dated within the next d seconds and moves the clock forward by d.
func (s *System) Advance(d float64) {
	s.RunUntilDate(s.now+d, func() bool { return false })
}

func (s *System) schedule(date float64, p phase, sender, recipient *Ref, message Message) {
	s.seq++
	s.events.Push(&event{
		date:      date,
		phase:     p,
		seq:       s.seq,
		sender:    sender,
		recipient: recipient,
		message:   message,
	})
}

func (s *System) enter(r *Ref) {
	s.receiving = append(s.receiving, r)
}

func (s *System) leave() {
	s.receiving = s.receiving[:len(s.receiving)-1]
}

func (s *System) inAskChain(r *Ref) bool {
	for _, receiving := range s.receiving {
		if receiving == r {
			return true
		}
	}
	return false
}

// Log returns the system's logger.
func (s *System) Log() *log.Entry {
	return s.Ref.log.WithField("date", s.now)
}
