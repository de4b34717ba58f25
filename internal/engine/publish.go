package engine

import "github.com/roach88/overfall/internal/ir"

// Publish invokes every subscriber of the named event with args bundled
// into a single IRArray, regardless of dependencies.
//
// Returns an UNKNOWN_EVENT error if the event does not exist. Dependency
// sets are neither consulted nor modified.
func (e *Engine) Publish(name string, args ...ir.IRValue) error {
	ev, ok := e.events.get(name)
	if !ok {
		return NewUnknownEventError(name)
	}

	bundle := make(ir.IRArray, len(args))
	for i, arg := range args {
		bundle[i] = normalize(arg)
	}

	subs := ev.liveSubscribers()
	e.logger.Debug("event published",
		"engine", e.id,
		"event", name,
		"args", len(bundle),
		"subscribers", len(subs),
	)

	seq := e.clock.Current()
	for _, sub := range subs {
		if !e.isSubscribed(name, sub.id) {
			continue
		}
		sub.fn(Notification{
			Event:  name,
			Seq:    seq,
			Args:   bundle.Clone(),
			Manual: true,
		})
	}
	return nil
}
