package ir

// Clone returns a structural deep copy of v.
//
// Scalars are immutable and returned as-is; arrays and objects are copied
// recursively so that mutating the copy never affects the original and vice
// versa.
func Clone(v IRValue) IRValue {
	switch val := v.(type) {
	case IRArray:
		return val.Clone()
	case IRObject:
		return val.Clone()
	default:
		return val
	}
}

// Clone returns a deep copy of the object.
// A nil object clones to an empty, non-nil object.
func (obj IRObject) Clone() IRObject {
	out := make(IRObject, len(obj))
	for k, v := range obj {
		out[k] = Clone(v)
	}
	return out
}

// Clone returns a deep copy of the array.
// A nil array clones to nil.
func (arr IRArray) Clone() IRArray {
	if arr == nil {
		return nil
	}
	out := make(IRArray, len(arr))
	for i, v := range arr {
		out[i] = Clone(v)
	}
	return out
}
