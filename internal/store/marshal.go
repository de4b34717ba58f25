package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/overfall/internal/ir"
)

// marshalState converts IRObject to canonical JSON TEXT for storage.
// Uses RFC 8785 canonical JSON for deterministic serialization.
func marshalState(state ir.IRObject) (string, error) {
	if state == nil {
		state = ir.IRObject{}
	}
	data, err := ir.MarshalCanonical(state)
	if err != nil {
		return "", fmt.Errorf("marshal state: %w", err)
	}
	return string(data), nil
}

// marshalKeys converts a declared key list to canonical JSON TEXT.
func marshalKeys(keys []string) (string, error) {
	if keys == nil {
		keys = []string{}
	}
	data, err := ir.MarshalCanonical(keys)
	if err != nil {
		return "", fmt.Errorf("marshal declared keys: %w", err)
	}
	return string(data), nil
}

// unmarshalState parses canonical JSON TEXT to IRObject.
// Uses ir.IRObject.UnmarshalJSON, which keeps integers exact via json.Number.
func unmarshalState(data string) (ir.IRObject, error) {
	if data == "" || data == "{}" {
		return ir.IRObject{}, nil
	}
	var obj ir.IRObject
	if err := json.Unmarshal([]byte(data), &obj); err != nil {
		return nil, fmt.Errorf("unmarshal state: %w", err)
	}
	return obj, nil
}

// unmarshalKeys parses a JSON array of strings.
func unmarshalKeys(data string) ([]string, error) {
	keys := []string{}
	if data == "" {
		return keys, nil
	}
	if err := json.Unmarshal([]byte(data), &keys); err != nil {
		return nil, fmt.Errorf("unmarshal declared keys: %w", err)
	}
	return keys, nil
}
