package engine

import "slices"

// SubscriptionID identifies one subscriber within an engine.
// Ids are never reused, so a stale id can never remove a newer subscriber.
type SubscriptionID uint64

// Subscriber is a callback registered on an event.
type Subscriber func(Notification)

// subscriberEntry is one (id, callback) pair. A nil fn marks a removed
// entry awaiting compaction.
type subscriberEntry struct {
	id SubscriptionID
	fn Subscriber
}

// event is a named reaction unit: ordered subscribers plus the state keys
// it depends on.
//
// INVARIANTS:
//   - positions[id] is the index of id's live entry in subscribers
//   - dependencies has no duplicates and mirrors depSet
type event struct {
	name         string
	subscribers  []subscriberEntry
	positions    map[SubscriptionID]int
	removed      int
	dependencies []string
	depSet       map[string]struct{}
}

func newEvent(name string) *event {
	return &event{
		name:      name,
		positions: make(map[SubscriptionID]int),
		depSet:    make(map[string]struct{}),
	}
}

func (ev *event) subscribe(id SubscriptionID, fn Subscriber) {
	ev.positions[id] = len(ev.subscribers)
	ev.subscribers = append(ev.subscribers, subscriberEntry{id: id, fn: fn})
}

// unsubscribe tombstones id's entry in O(1). Entries are compacted once
// tombstones outnumber live subscribers.
func (ev *event) unsubscribe(id SubscriptionID) bool {
	pos, ok := ev.positions[id]
	if !ok {
		return false
	}
	ev.subscribers[pos].fn = nil
	delete(ev.positions, id)
	ev.removed++

	if ev.removed > len(ev.positions) {
		ev.compact()
	}
	return true
}

func (ev *event) compact() {
	live := make([]subscriberEntry, 0, len(ev.positions))
	for _, entry := range ev.subscribers {
		if entry.fn == nil {
			continue
		}
		ev.positions[entry.id] = len(live)
		live = append(live, entry)
	}
	ev.subscribers = live
	ev.removed = 0
}

func (ev *event) isSubscribed(id SubscriptionID) bool {
	_, ok := ev.positions[id]
	return ok
}

// liveSubscribers returns a copy of the live entries in subscription order.
func (ev *event) liveSubscribers() []subscriberEntry {
	out := make([]subscriberEntry, 0, len(ev.positions))
	for _, entry := range ev.subscribers {
		if entry.fn != nil {
			out = append(out, entry)
		}
	}
	return out
}

func (ev *event) hasDependency(key string) bool {
	_, ok := ev.depSet[key]
	return ok
}

func (ev *event) addDependency(key string) bool {
	if ev.hasDependency(key) {
		return false
	}
	ev.depSet[key] = struct{}{}
	ev.dependencies = append(ev.dependencies, key)
	return true
}

func (ev *event) removeDependency(key string) bool {
	if !ev.hasDependency(key) {
		return false
	}
	delete(ev.depSet, key)
	ev.dependencies = slices.DeleteFunc(ev.dependencies, func(k string) bool { return k == key })
	return true
}

// dependsOnAny reports whether any dependency is in keys.
func (ev *event) dependsOnAny(keys map[string]struct{}) bool {
	for _, dep := range ev.dependencies {
		if _, ok := keys[dep]; ok {
			return true
		}
	}
	return false
}

// registry holds events by name and remembers registration order.
type registry struct {
	events map[string]*event
	order  []string
}

func newRegistry() *registry {
	return &registry{events: make(map[string]*event)}
}

func (r *registry) get(name string) (*event, bool) {
	ev, ok := r.events[name]
	return ev, ok
}

// create returns the named event, creating it if needed.
func (r *registry) create(name string) *event {
	if ev, ok := r.events[name]; ok {
		return ev
	}
	ev := newEvent(name)
	r.events[name] = ev
	r.order = append(r.order, name)
	return ev
}

func (r *registry) delete(name string) bool {
	if _, ok := r.events[name]; !ok {
		return false
	}
	delete(r.events, name)
	r.order = slices.DeleteFunc(r.order, func(n string) bool { return n == name })
	return true
}

// ordered returns the events in registration order.
func (r *registry) ordered() []*event {
	out := make([]*event, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.events[name])
	}
	return out
}
