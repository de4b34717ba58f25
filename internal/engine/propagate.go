package engine

import "github.com/roach88/overfall/internal/ir"

// Notification is what a subscriber receives.
//
// Automatic propagation sets Data to a projection holding exactly the
// event's dependency keys. Publish sets Args and Manual instead.
type Notification struct {
	Event  string
	Seq    int64
	Data   ir.IRObject
	Args   ir.IRArray
	Manual bool
}

// dispatch is one affected event, captured before any callback runs.
type dispatch struct {
	event       string
	projection  ir.IRObject
	subscribers []subscriberEntry
}

// propagate runs after every committed ChangeState.
//
// prev is the key index before the change, declared the update's declared
// key set. Every key of prev outside declared counts as removed. The new
// state is already in e.state.
func (e *Engine) propagate(prev map[string]struct{}, declared []string, seq int64) {
	declaredSet := make(map[string]struct{}, len(declared))
	for _, k := range declared {
		declaredSet[k] = struct{}{}
	}

	// Removal is judged against the declared set only. A key a patch did not
	// name stays in state, but dependencies on it are still pruned.
	var removed []string
	for k := range prev {
		if _, ok := declaredSet[k]; !ok {
			removed = append(removed, k)
		}
	}
	ir.SortKeys(removed)

	if len(removed) > 0 {
		e.pruneDependencies(removed)
	}

	e.rebuildIndex()

	if len(declared) == 0 {
		return
	}

	for _, d := range e.affected(declaredSet) {
		for _, sub := range d.subscribers {
			// Earlier callbacks may have unsubscribed this one or deleted
			// the event.
			if !e.isSubscribed(d.event, sub.id) {
				continue
			}
			sub.fn(Notification{
				Event: d.event,
				Seq:   seq,
				Data:  d.projection.Clone(),
			})
		}
	}
}

// pruneDependencies drops removed keys from every event's dependencies.
// An event left with no dependencies is deleted along with its subscribers.
func (e *Engine) pruneDependencies(removed []string) {
	for _, ev := range e.events.ordered() {
		pruned := false
		for _, key := range removed {
			if ev.removeDependency(key) {
				pruned = true
			}
		}
		if !pruned {
			continue
		}

		if len(ev.dependencies) == 0 {
			e.events.delete(ev.name)
			e.logger.Debug("event deleted: no dependencies left",
				"engine", e.id,
				"event", ev.name,
				"subscribers", len(ev.positions),
			)
			continue
		}
		e.logger.Debug("event dependencies pruned",
			"engine", e.id,
			"event", ev.name,
			"dependencies", ev.dependencies,
		)
	}
}

// affected returns, in registration order, every event with at least one
// dependency among the declared keys, with its projection and subscriber
// list frozen.
func (e *Engine) affected(declared map[string]struct{}) []dispatch {
	var out []dispatch
	for _, ev := range e.events.ordered() {
		if !ev.dependsOnAny(declared) {
			continue
		}

		projection := make(ir.IRObject, len(ev.dependencies))
		for _, dep := range ev.dependencies {
			if v, ok := e.state[dep]; ok {
				projection[dep] = ir.Clone(v)
			}
		}

		out = append(out, dispatch{
			event:       ev.name,
			projection:  projection,
			subscribers: ev.liveSubscribers(),
		})
		e.logger.Debug("event fired",
			"engine", e.id,
			"event", ev.name,
			"subscribers", len(ev.positions),
		)
	}
	return out
}

func (e *Engine) isSubscribed(name string, id SubscriptionID) bool {
	ev, ok := e.events.get(name)
	if !ok {
		return false
	}
	return ev.isSubscribed(id)
}
