package actor

// Response holds the result of an ask. Asks are answered synchronously, so a response is complete
// as soon as Ask returns.
type Response interface {
	// Source returns the actor that the ask was sent to.
	Source() *Ref
	// Get returns the answer, or nil if the actor did not respond.
	Get() Message
	// Empty returns true if the actor did not respond.
	Empty() bool
	// Error returns the answer if it is an error and nil otherwise.
	Error() error
}

type response struct {
	source *Ref
	result Message
	sent   bool
}

func (r *response) Source() *Ref {
	return r.source
}

func (r *response) Get() Message {
	return r.result
}

func (r *response) Empty() bool {
	return !r.sent
}

func (r *response) Error() error {
	if err, ok := r.result.(error); ok {
		return err
	}
	return nil
}
