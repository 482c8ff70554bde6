package logger

import "github.com/sirupsen/logrus"

// Context is a set of structured log fields attached to an actor or a component.
type Context logrus.Fields

// Fields returns the context as logrus fields.
func (c Context) Fields() logrus.Fields {
	return logrus.Fields(c)
}

// MergeContexts merges the contexts in order; later contexts win on key conflicts.
func MergeContexts(contexts ...Context) Context {
	merged := make(Context)
	for _, c := range contexts {
		for key, value := range c {
			merged[key] = value
		}
	}
	return merged
}
