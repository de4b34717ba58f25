package engine

// Binder is returned by On and binds a callback to an event.
type Binder struct {
	engine *Engine
	event  string
}

// Subscription is a handle to one subscriber.
//
// It is a plain value: the engine resolves it by (event, id) on every call,
// so copies of a handle behave identically.
type Subscription struct {
	engine *Engine
	event  string
	id     SubscriptionID
}

// On ensures the named event exists and returns a binder for it.
//
//	sub := eng.On("update_movies").Do(handler).When("movies")
//	defer sub.Unsubscribe()
func (e *Engine) On(name string) Binder {
	e.CreateEvent(name)
	return Binder{engine: e, event: name}
}

// Do subscribes fn and returns its handle. The event is recreated if it was
// deleted since On.
//
// Panics if fn is nil.
func (b Binder) Do(fn Subscriber) Subscription {
	b.engine.CreateEvent(b.event)
	id, err := b.engine.Subscribe(b.event, fn)
	if err != nil {
		panic(err)
	}
	return Subscription{engine: b.engine, event: b.event, id: id}
}

// When registers keys as dependencies of the subscription's event and
// returns the handle. Keys absent from current state are dropped. If the
// event no longer exists, When does nothing.
func (s Subscription) When(keys ...string) Subscription {
	_ = s.engine.AddDependencies(s.event, keys...)
	return s
}

// Unsubscribe removes this subscriber. Calling it twice is harmless.
func (s Subscription) Unsubscribe() {
	s.engine.Unsubscribe(s.event, s.id)
}

// ID returns the subscription id.
func (s Subscription) ID() SubscriptionID {
	return s.id
}

// Event returns the event name the subscription is attached to.
func (s Subscription) Event() string {
	return s.event
}
