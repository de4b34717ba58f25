package testutil

import (
	"sync"

	"github.com/roach88/overfall/internal/engine"
)

// Recorder collects notifications delivered to a subscriber.
//
// Pass Recorder.Record to Do or Subscribe:
//
//	rec := testutil.NewRecorder()
//	eng.On("update_movies").Do(rec.Record).When("movies")
//
// Thread-safety: all methods are safe for concurrent use via internal mutex.
type Recorder struct {
	mu    sync.Mutex
	calls []engine.Notification
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Record appends n. Its signature matches engine.Subscriber.
func (r *Recorder) Record(n engine.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, n)
}

// Calls returns a copy of the recorded notifications in delivery order.
func (r *Recorder) Calls() []engine.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]engine.Notification{}, r.calls...)
}

// Count returns the number of recorded notifications.
func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

// Last returns the most recent notification, or false if none.
func (r *Recorder) Last() (engine.Notification, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.calls) == 0 {
		return engine.Notification{}, false
	}
	return r.calls[len(r.calls)-1], true
}

// Reset clears the recorded notifications.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}
