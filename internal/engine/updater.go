package engine

import "github.com/roach88/overfall/internal/ir"

// Updater is the sealed argument of ChangeState.
// Only Patch and Transform implement it, so merge and transform semantics
// are distinguished by type rather than by inspecting values at runtime.
type Updater interface {
	// apply returns the next state and the declared key set. current is the
	// live state and must not be mutated or retained.
	apply(current ir.IRObject) (next ir.IRObject, declared []string, err error)
}

// Patch is a partial state: its keys overwrite the current state's keys at
// the top level, every other key is preserved.
//
// Declared keys are the patch's own keys. A patch never removes a key from
// state, but dependencies on keys it does not name are pruned.
type Patch ir.IRObject

// Transform receives a deep copy of the current state and returns the full
// next state.
//
// Declared keys are the keys of the returned state. Any previously present
// key the transform leaves out is removed, and dependencies on it are pruned.
type Transform func(state ir.IRObject) ir.IRObject

func (p Patch) apply(current ir.IRObject) (ir.IRObject, []string, error) {
	next := current.Clone()
	declared := make([]string, 0, len(p))
	for k, v := range p {
		next[k] = normalize(v)
		declared = append(declared, k)
	}
	ir.SortKeys(declared)
	return next, declared, nil
}

func (f Transform) apply(current ir.IRObject) (ir.IRObject, []string, error) {
	if f == nil {
		return nil, nil, NewInvalidArgumentError("transform function is nil")
	}
	result := f(current.Clone())
	if result == nil {
		return nil, nil, NewInvalidArgumentError("transform returned nil state")
	}

	// The transform may keep references to its result; commit a private copy.
	next := make(ir.IRObject, len(result))
	for k, v := range result {
		next[k] = normalize(v)
	}
	return next, next.SortedKeys(), nil
}

// normalize deep-copies v and replaces a missing value with IRNull.
func normalize(v ir.IRValue) ir.IRValue {
	if v == nil {
		return ir.IRNull{}
	}
	return ir.Clone(v)
}
