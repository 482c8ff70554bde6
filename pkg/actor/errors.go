package actor

import (
	"fmt"

	"github.com/pkg/errors"
)

// errNoResponse is the response to an ask that the recipient never answered.
var errNoResponse = errors.New("actor did not respond")

type errUnexpectedMessage struct {
	ctx *Context
}

// ErrUnexpectedMessage is returned by an actor in response to a message that it was not expecting
// to receive. Lifecycle messages answered this way are ignored; any other message stops the actor.
func ErrUnexpectedMessage(ctx *Context) error {
	return errUnexpectedMessage{ctx: ctx}
}

func (e errUnexpectedMessage) Error() string {
	sender := "<external>"
	if e.ctx.sender != nil {
		sender = e.ctx.sender.address.String()
	}
	recipient := "<unknown>"
	if e.ctx.recipient != nil {
		recipient = e.ctx.recipient.address.String()
	}
	expecting := "no response expected"
	if e.ctx.result != nil {
		expecting = "response expected"
	}
	return fmt.Sprintf("unexpected message from %s to %s (%T): %v (%s)",
		sender, recipient, e.ctx.message, e.ctx.message, expecting)
}
