// Package actors contains reusable actors built on the simulated clock.
package actors

import (
	"github.com/google/uuid"

	"github.com/determined-ai/schedsim/pkg/actor"
)

type fire struct{}

type timer struct {
	d         float64
	deadline  bool
	recipient *actor.Ref
	msg       actor.Message
}

// Receive implements the actor.Actor interface.
func (t *timer) Receive(ctx *actor.Context) error {
	switch ctx.Message().(type) {
	case actor.PreStart:
		if t.deadline {
			ctx.TellDeadline(ctx.Self(), t.d, fire{})
		} else {
			ctx.TellAfter(ctx.Self(), t.d, fire{})
		}
	case fire:
		ctx.Tell(t.recipient, t.msg)
		ctx.Self().Stop()
	case actor.PostStop:
	default:
		return actor.ErrUnexpectedMessage(ctx)
	}
	return nil
}

// NotifyAfter notifies the context's recipient with the provided message once d simulated seconds
// have elapsed. The timer is a child of the recipient; stopping it, or the recipient, cancels the
// notification.
func NotifyAfter(ctx *actor.Context, d float64, msg actor.Message) *actor.Ref {
	return ctx.MustActorOf("notify-timer-"+uuid.New().String(),
		&timer{d: d, recipient: ctx.Self(), msg: msg})
}

// NotifyDeadline is NotifyAfter for deadlines: the notification is sent only once every other
// message dated at the deadline has been delivered, so work finishing exactly at the deadline is
// seen first.
func NotifyDeadline(ctx *actor.Context, d float64, msg actor.Message) *actor.Ref {
	return ctx.MustActorOf("deadline-timer-"+uuid.New().String(),
		&timer{d: d, deadline: true, recipient: ctx.Self(), msg: msg})
}
