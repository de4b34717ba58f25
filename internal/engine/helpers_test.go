package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/roach88/overfall/internal/ir"
)

// recorder collects notifications in call order.
type recorder struct {
	calls []Notification
}

func (r *recorder) record(n Notification) {
	r.calls = append(r.calls, n)
}

func (r *recorder) count() int {
	return len(r.calls)
}

func (r *recorder) last() Notification {
	return r.calls[len(r.calls)-1]
}

// newTestEngine creates an engine with a fixed id and discarded logs.
func newTestEngine(t *testing.T, initial ir.IRObject, opts ...EngineOption) *Engine {
	t.Helper()
	base := []EngineOption{
		WithID("test-engine"),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}
	return New(initial, append(base, opts...)...)
}

// memoryPersister keeps snapshots in memory.
type memoryPersister struct {
	snapshots []ir.Snapshot
	fail      bool
}

func (p *memoryPersister) PersistState(_ context.Context, snap ir.Snapshot) error {
	if p.fail {
		return errors.New("disk full")
	}
	p.snapshots = append(p.snapshots, snap)
	return nil
}
