package engine

// DefaultMaxDepth is the default bound on nested ChangeState calls.
// A subscriber that calls ChangeState runs one level deeper than the change
// that notified it.
const DefaultMaxDepth = 32

// depthGuard tracks how many ChangeState calls are active on the stack.
//
// Together with dispatch-list snapshots it makes reentrant updates safe:
// snapshots keep iteration consistent, the guard keeps a subscriber that
// feeds its own dependency from recursing forever.
type depthGuard struct {
	maxDepth int
	current  int
}

func newDepthGuard(maxDepth int) depthGuard {
	return depthGuard{maxDepth: maxDepth}
}

// enter increments the depth and validates it against the limit.
// On error the depth is left unchanged and leave must not be called.
func (g *depthGuard) enter() error {
	if g.current+1 > g.maxDepth {
		return NewDepthExceededError(g.current+1, g.maxDepth)
	}
	g.current++
	return nil
}

// leave decrements the depth. Paired with a successful enter.
func (g *depthGuard) leave() {
	g.current--
}

// Current returns the active nesting depth.
func (g *depthGuard) Current() int {
	return g.current
}
