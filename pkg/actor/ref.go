package actor

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// stop is an internal message sent to actors to stop the actor.
type stop struct{}

// Ref is an immutable actor reference to an actor.
type Ref struct {
	log *log.Entry

	address        Address
	registeredTime float64
	registeredSeq  uint64

	system       *System
	actor        Actor
	parent       *Ref
	children     map[Address]*Ref
	deadChildren map[Address]bool

	err      error
	stopping bool
	shutdown bool
}

func newRef(system *System, parent *Ref, address Address, actor Actor) *Ref {
	typeName := reflect.TypeOf(actor).String()
	if strings.Contains(typeName, ".") {
		typeName = strings.Split(typeName, ".")[1]
	}
	system.registered++
	return &Ref{
		log: log.WithField("type", typeName).WithField("id", address.Local()).WithField(
			"system", system.id),

		address:        address,
		registeredTime: system.now,
		registeredSeq:  system.registered,

		system:       system,
		actor:        actor,
		parent:       parent,
		children:     make(map[Address]*Ref),
		deadChildren: make(map[Address]bool),
	}
}

// Parent returns the reference to the actor's parent.
func (r *Ref) Parent() *Ref {
	return r.parent
}

// Children returns a list of references to the actor's children in creation order.
func (r *Ref) Children() []*Ref {
	children := maps.Values(r.children)
	slices.SortFunc(children, func(a, b *Ref) int {
		return int(a.registeredSeq) - int(b.registeredSeq)
	})
	return children
}

// Child returns the child with the given local ID.
func (r *Ref) Child(id interface{}) *Ref {
	return r.children[r.address.Child(id)]
}

// Address returns the address of the actor.
func (r *Ref) Address() Address {
	return r.address
}

// RegisteredTime returns the simulated date at which the actor registered with the system.
func (r *Ref) RegisteredTime() float64 {
	return r.registeredTime
}

// System returns the underlying system that this actor belongs to.
func (r *Ref) System() *System {
	return r.system
}

// Stopped returns true once the actor has shut down.
func (r *Ref) Stopped() bool {
	return r.shutdown
}

func (r *Ref) String() string {
	return fmt.Sprintf("{%T registered at %v: %s://%s}",
		r.actor, r.registeredTime, r.system.id, r.address.String())
}

func (r *Ref) tellAfter(sender *Ref, d float64, message Message) {
	r.system.schedule(r.system.now+d, ordinary, sender, r, message)
}

func (r *Ref) tellDeadline(sender *Ref, d float64, message Message) {
	r.system.schedule(r.system.now+d, deadline, sender, r, message)
}

func (r *Ref) ask(sender *Ref, message Message) Response {
	if r.system.inAskChain(r) {
		panic(fmt.Sprintf("ask cycle detected: %s asked while awaiting its own answer (%T)",
			r.address, message))
	}
	result := &response{source: r}
	r.deliver(sender, message, result)
	return result
}

// Stop notifies the actor to stop. The actor stops once every message already queued for the
// current date has been processed.
func (r *Ref) Stop() {
	if r.stopping || r.shutdown {
		return
	}
	r.stopping = true
	r.system.schedule(r.system.now, ordinary, nil, r, stop{})
}

// AwaitTermination drives the system until the actor stops, returning an error if the actor
// failed during its lifecycle.
func (r *Ref) AwaitTermination() error {
	r.system.RunUntil(func() bool { return r.shutdown })
	return r.err
}

// StopAndAwaitTermination stops the actor and waits for it to shut down.
func (r *Ref) StopAndAwaitTermination() error {
	r.Stop()
	return r.AwaitTermination()
}

func (r *Ref) createChild(address Address, actor Actor) (*Ref, bool) {
	if existingRef, ok := r.children[address]; ok {
		return existingRef, false
	}
	if r.shutdown {
		return nil, false
	}

	ref := newRef(r.system, r, address, actor)
	r.children[address] = ref
	r.system.refs[address] = ref

	if ref.err = ref.sendInternalMessage(PreStart{}); ref.err != nil {
		ref.close(true)
	}
	return ref, true
}

// sendInternalMessage sends an actor framework message. These messages can be safely ignored by the
// actor.
func (r *Ref) sendInternalMessage(message Message) error {
	ctx := &Context{recipient: r, message: message}
	err := r.receive(ctx)
	// `errUnexpectedMessage` is ignored; other errors cause the actor to shut down.
	if _, ok := err.(errUnexpectedMessage); err != nil && !ok {
		return err
	}
	return nil
}

func (r *Ref) receive(ctx *Context) error {
	r.system.enter(r)
	defer r.system.leave()
	defer r.time(ctx)()
	err := r.actor.Receive(ctx)
	r.recordErr(ctx)(err)
	return err
}

func (r *Ref) deliver(sender *Ref, message Message, result *response) {
	if r.shutdown {
		return
	}
	ctx := &Context{message: message, sender: sender, recipient: r, result: result}

	r.log.Tracef("get %T at %v", message, r.system.now)

	// Handle any internal state change messages first.
	switch typed := message.(type) {
	case Ping:
		if ctx.ExpectingResponse() {
			ctx.Respond(typed)
		}
		return
	case ChildFailed:
		if r.deadChildren[typed.Child.address] {
			delete(r.deadChildren, typed.Child.address)
			return
		}
		r.deleteChild(typed.Child)
		if r.err = r.sendInternalMessage(message); r.err != nil {
			r.close(true)
		}
		return
	case ChildStopped:
		if r.deadChildren[typed.Child.address] {
			delete(r.deadChildren, typed.Child.address)
			return
		}
		r.deleteChild(typed.Child)
		if r.err = r.sendInternalMessage(message); r.err != nil {
			r.close(true)
		}
		return
	case stop:
		r.close(true)
		return
	}

	// Any message not handled internally is sent to the actor implementation.
	if sender != nil && r.deadChildren[sender.address] {
		return
	}
	if r.err = r.receive(ctx); r.err != nil {
		r.close(true)
	}
}

func (r *Ref) deleteChild(child *Ref) {
	if r.children[child.address] != child {
		return
	}
	delete(r.children, child.address)
	if r.system.refs[child.address] == child {
		delete(r.system.refs, child.address)
	}
}

// close shuts the actor down: children first, then PostStop, then the parent is told.
func (r *Ref) close(notifyParent bool) {
	if r.shutdown {
		return
	}
	r.shutdown = true

	if r.err != nil {
		r.log.WithError(r.err).Error("error while actor was running")
	}

	for _, child := range r.Children() {
		child.close(false)
		if child.err != nil && r.err == nil {
			r.err = errors.Wrapf(child.err, "error closing child: %s", child.address.Local())
		}
		r.deleteChild(child)
	}

	// Ask the underlying actor implementation to clean up.
	err := r.sendInternalMessage(PostStop{})
	if err != nil {
		r.log.WithError(err).Error("error shutting down actor")
		if r.err == nil {
			r.err = err
		} else {
			r.err = errors.Wrap(r.err, err.Error())
		}
	}
	if r.system.refs[r.address] == r {
		delete(r.system.refs, r.address)
	}

	// Notify the parent that the actor is no longer processing messages.
	if notifyParent && r.parent != nil && !r.parent.shutdown {
		if r.err != nil {
			r.parent.tellAfter(r, 0, ChildFailed{Child: r, Error: r.err})
		} else {
			r.parent.tellAfter(r, 0, ChildStopped{Child: r})
		}
	}
}
