// Package actor implements a deterministic, single-threaded actor system driven by a
// discrete-event clock. Actors exchange messages through references; every message is delivered
// at a simulated date and messages with the same date are delivered in send order.
package actor

// Message is anything sent to an actor.
type Message interface{}

// Lifecycle messages, delivered by the system.
type (
	// PreStart is delivered synchronously when the actor is created, before ActorOf returns.
	PreStart struct{}

	// ChildStopped tells a parent that a child shut down cleanly.
	ChildStopped struct {
		Child *Ref
	}

	// ChildFailed tells a parent that a child shut down because Receive returned an error.
	ChildFailed struct {
		Child *Ref
		Error error
	}

	// PostStop is the last message an actor receives, after its children are closed.
	PostStop struct{}

	// Ping is answered by the system itself with an empty response, without reaching Receive.
	Ping struct{}
)

// Actor is the behavior behind a reference.
type Actor interface {
	// Receive handles one message. A non-nil error shuts the actor down, except for
	// ErrUnexpectedMessage answers to lifecycle messages.
	Receive(context *Context) error
}

// ActorFunc adapts a function to the Actor interface.
type ActorFunc func(context *Context) error

// Receive implements actor.Actor.
func (f ActorFunc) Receive(context *Context) error {
	return f(context)
}
