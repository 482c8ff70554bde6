package actor

import (
	log "github.com/sirupsen/logrus"

	"github.com/determined-ai/schedsim/pkg/logger"
)

// Context holds contextual information for the context's recipient and the current message.
type Context struct {
	message   Message
	sender    *Ref
	recipient *Ref
	result    *response
}

// Message returns the underlying message.
func (c *Context) Message() Message {
	return c.message
}

// Sender returns the reference to the actor that sent the message, or nil for messages sent from
// outside the actor system.
func (c *Context) Sender() *Ref {
	return c.sender
}

// Log returns the context's recipient's logger.
func (c *Context) Log() *log.Entry {
	return c.recipient.log.WithField("date", c.recipient.system.now)
}

// AddLabel adds a new label to the context's recipient's logger.
func (c *Context) AddLabel(key string, value interface{}) {
	c.recipient.log = c.recipient.log.WithField(key, value)
}

// AddLabels adds new labels to the context's recipient's logger.
func (c *Context) AddLabels(ctx logger.Context) {
	c.recipient.log = c.recipient.log.WithFields(ctx.Fields())
}

// Now returns the current simulated date in seconds.
func (c *Context) Now() float64 {
	return c.recipient.system.now
}

// Tell sends the specified message to the actor (fire-and-forget semantics). The message is
// delivered at the current simulated date, after every message already queued for that date. The
// new context's sender is set to the recipient of this context.
func (c *Context) Tell(actor *Ref, message Message) {
	actor.tellAfter(c.recipient, 0, message)
}

// TellAfter sends the specified message to the actor once d simulated seconds have elapsed.
func (c *Context) TellAfter(actor *Ref, d float64, message Message) {
	actor.tellAfter(c.recipient, d, message)
}

// TellDeadline sends the specified message to the actor once d simulated seconds have elapsed,
// after every other message of that date has been delivered.
func (c *Context) TellDeadline(actor *Ref, d float64, message Message) {
	actor.tellDeadline(c.recipient, d, message)
}

// TellAll sends the specified message to all actors (fire-and-forget semantics).
func (c *Context) TellAll(message Message, actors ...*Ref) {
	for _, ref := range actors {
		ref.tellAfter(c.recipient, 0, message)
	}
}

// Ask sends the specified message to the actor and returns its answer. Asks are instantaneous in
// simulated time; asking an actor that is already part of the current ask chain panics.
func (c *Context) Ask(actor *Ref, message Message) Response {
	return actor.ask(c.recipient, message)
}

// ActorOf adds the actor to the system as a child of the context's recipient. If an actor with that
// ID already exists, that actor's reference is returned instead. The second argument is true if the
// actor reference was created and false otherwise.
func (c *Context) ActorOf(id interface{}, actor Actor) (*Ref, bool) {
	return c.recipient.createChild(c.recipient.address.Child(id), actor)
}

// MustActorOf adds the actor with the provided address. It panics if a new actor was not created.
func (c *Context) MustActorOf(id interface{}, actor Actor) *Ref {
	ref, created := c.ActorOf(id, actor)
	if !created {
		panic("actor was not created")
	}
	return ref
}

// Self returns the reference to the context's recipient.
func (c *Context) Self() *Ref {
	return c.recipient
}

// Children returns a list of references to the context's recipient's children.
func (c *Context) Children() []*Ref {
	return c.recipient.Children()
}

// Child returns the child with the given local ID.
func (c *Context) Child(id interface{}) *Ref {
	return c.recipient.Child(id)
}

// ExpectingResponse returns true if the sender is expecting a response and false otherwise.
func (c *Context) ExpectingResponse() bool {
	return c.result != nil && !c.result.sent
}

// Respond returns a response message for this request message back to the sender.
func (c *Context) Respond(message Message) {
	if c.result == nil {
		panic("sender is not expecting a response")
	}
	if c.result.sent {
		panic("response already sent")
	}
	c.result.sent = true
	c.result.result = message
}

// RespondCheckError returns a response message for this request message back to the sender. If the
// response has an error send that instead.
func (c *Context) RespondCheckError(message Message, err error) {
	if err != nil {
		c.Respond(err)
	} else {
		c.Respond(message)
	}
}

// Kill removes the child with the given local ID from this parent. All messages from this child to
// this actor are ignored from now on.
func (c *Context) Kill(id interface{}) bool {
	if child := c.Child(id); child != nil {
		delete(c.recipient.children, child.Address())
		c.recipient.deadChildren[child.Address()] = true
		child.Stop()
		return true
	}
	return false
}
