package engine

// EventInfo is a read-only view of one event. Delete removes the event it
// was taken from.
type EventInfo struct {
	Name         string   `json:"name"`
	Dependencies []string `json:"dependencies"`
	Subscribers  int      `json:"subscribers"`

	engine *Engine
}

// Delete removes the viewed event and its subscribers, as DeleteEvent.
// Reports whether the event still existed. A zero EventInfo deletes nothing.
func (info EventInfo) Delete() bool {
	if info.engine == nil {
		return false
	}
	return info.engine.DeleteEvent(info.Name)
}

// HasEvent reports whether the named event exists.
func (e *Engine) HasEvent(name string) bool {
	_, ok := e.events.get(name)
	return ok
}

// CreateEvent creates the named event with no subscribers and no
// dependencies. Creating an existing event is a no-op.
func (e *Engine) CreateEvent(name string) {
	if e.HasEvent(name) {
		return
	}
	e.events.create(name)
	e.logger.Debug("event created", "engine", e.id, "event", name)
}

// DeleteEvent removes the named event and its subscribers.
// Reports whether the event existed.
func (e *Engine) DeleteEvent(name string) bool {
	if !e.events.delete(name) {
		return false
	}
	e.logger.Debug("event deleted", "engine", e.id, "event", name)
	return true
}

// Subscribe appends fn to the named event's subscribers.
//
// Returns an UNKNOWN_EVENT error if the event was never created (use On or
// CreateEvent first) and an INVALID_ARGUMENT error for a nil fn.
func (e *Engine) Subscribe(name string, fn Subscriber) (SubscriptionID, error) {
	ev, ok := e.events.get(name)
	if !ok {
		return 0, NewUnknownEventError(name)
	}
	if fn == nil {
		return 0, NewInvalidArgumentError("subscriber must not be nil")
	}

	e.nextSubID++
	id := e.nextSubID
	ev.subscribe(id, fn)
	return id, nil
}

// Unsubscribe removes a subscriber. Unknown events and ids are a no-op.
func (e *Engine) Unsubscribe(name string, id SubscriptionID) {
	ev, ok := e.events.get(name)
	if !ok {
		return
	}
	ev.unsubscribe(id)
}

// AddDependencies adds keys to the named event's dependencies.
//
// Keys not currently present in state are silently dropped; keys already
// registered are skipped, so repeated calls are idempotent. Returns an
// UNKNOWN_EVENT error if the event does not exist.
func (e *Engine) AddDependencies(name string, keys ...string) error {
	ev, ok := e.events.get(name)
	if !ok {
		return NewUnknownEventError(name)
	}

	for _, key := range keys {
		if _, present := e.index[key]; !present {
			e.logger.Debug("dependency dropped: key not in state",
				"engine", e.id,
				"event", name,
				"key", key,
			)
			continue
		}
		ev.addDependency(key)
	}
	return nil
}

// Event returns a view of the named event.
func (e *Engine) Event(name string) (EventInfo, bool) {
	ev, ok := e.events.get(name)
	if !ok {
		return EventInfo{}, false
	}
	return e.eventInfo(ev), true
}

// Events returns a view of every event in registration order.
func (e *Engine) Events() []EventInfo {
	evs := e.events.ordered()
	out := make([]EventInfo, 0, len(evs))
	for _, ev := range evs {
		out = append(out, e.eventInfo(ev))
	}
	return out
}

func (e *Engine) eventInfo(ev *event) EventInfo {
	deps := append([]string{}, ev.dependencies...)
	return EventInfo{
		Name:         ev.name,
		Dependencies: deps,
		Subscribers:  len(ev.positions),
		engine:       e,
	}
}
